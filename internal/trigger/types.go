package trigger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Payload identifies which of a user's daily delivery slots fired.
type Payload struct {
	UserID  int64
	Ordinal int
}

// Trigger is one scheduled recurring delivery for a user.
type Trigger struct {
	Key     string
	UserID  int64
	Ordinal int
	NextRun time.Time
}

// FireFunc is invoked when a user trigger fires.
type FireFunc func(ctx context.Context, p Payload)

// Store holds currently-scheduled recurring user triggers keyed by
// "{ordinal}_{userID}". The key pattern is the only index: a trigger belongs
// to a user iff its key says so.
type Store interface {
	ListByUser(ctx context.Context, userID int64) ([]Trigger, error)
	Upsert(ctx context.Context, key string, fireAt time.Time, p Payload) error
	Remove(ctx context.Context, key string) error
}

// Key builds the trigger key for an ordinal slot of a user.
func Key(ordinal int, userID int64) string {
	return fmt.Sprintf("%d_%d", ordinal, userID)
}

// ParseKey splits a trigger key back into ordinal and user id.
func ParseKey(key string) (ordinal int, userID int64, err error) {
	i := strings.IndexByte(key, '_')
	if i <= 0 || i == len(key)-1 {
		return 0, 0, fmt.Errorf("malformed trigger key %q", key)
	}
	ordinal, err = strconv.Atoi(key[:i])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed trigger key %q: %w", key, err)
	}
	userID, err = strconv.ParseInt(key[i+1:], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed trigger key %q: %w", key, err)
	}
	return ordinal, userID, nil
}
