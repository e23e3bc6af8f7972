package schedule

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"kanabot/internal/clock"
	"kanabot/internal/domain"
	"kanabot/internal/trigger"
	"kanabot/pkg/logx"
)

// imminentWindow is how far ahead an existing trigger may be scheduled and
// still be left untouched by reconciliation.
const imminentWindow = 24 * time.Hour

// Coordinator reconciles one user's desired daily trigger count against the
// trigger store: it purges corrupted trigger sets, keeps triggers already due
// within the next 24h, and (re)creates the rest from freshly generated slots.
//
// Reconcile is serialized per user so concurrent settings changes cannot race
// duplicate triggers for the same user.
type Coordinator struct {
	store  trigger.Store
	clk    clock.Clock
	log    logx.Logger
	window Window
	loc    *time.Location

	rmu sync.Mutex
	rng *rand.Rand

	lmu   sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewCoordinator(store trigger.Store, w Window, loc *time.Location, rng *rand.Rand, clk clock.Clock, log logx.Logger) *Coordinator {
	if clk == nil {
		clk = clock.System
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Coordinator{
		store:  store,
		clk:    clk,
		log:    log,
		window: w,
		loc:    loc,
		rng:    rng,
		locks:  map[int64]*sync.Mutex{},
	}
}

// Reconcile brings the user's trigger set in line with QuestionsPerDay.
// Store errors are propagated, not swallowed.
func (c *Coordinator) Reconcile(ctx context.Context, user *domain.User) error {
	desired := user.QuestionsPerDay
	if desired < 1 {
		desired = 1
	}

	mu := c.userLock(user.ID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := c.store.ListByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list triggers for user %d: %w", user.ID, err)
	}

	// Corruption guard: more stored triggers than desired means duplicates
	// accumulated; purge everything and rebuild from scratch.
	if len(existing) > desired {
		c.log.Warn("purging corrupted trigger set",
			logx.Int64("user", user.ID), logx.Int("stored", len(existing)), logx.Int("desired", desired))
		for _, t := range existing {
			if err := c.store.Remove(ctx, t.Key); err != nil {
				return fmt.Errorf("remove trigger %s: %w", t.Key, err)
			}
		}
		existing = nil
	}

	byKey := make(map[string]trigger.Trigger, len(existing))
	for _, t := range existing {
		byKey[t.Key] = t
	}

	slots, err := c.drawSlots(desired)
	if err != nil {
		return err
	}

	now := c.clk.Now().In(c.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)

	for ordinal := 1; ordinal <= desired; ordinal++ {
		key := trigger.Key(ordinal, user.ID)

		// Idempotence: leave triggers alone that are already due within the
		// next 24h.
		if t, ok := byKey[key]; ok && t.NextRun.After(now) && t.NextRun.Sub(now) <= imminentWindow {
			continue
		}

		slot := slots[min(ordinal, len(slots))-1]
		fireAt := midnight.Add(slot)
		if !fireAt.After(now) {
			fireAt = fireAt.Add(24 * time.Hour)
		}
		if err := c.store.Upsert(ctx, key, fireAt, trigger.Payload{UserID: user.ID, Ordinal: ordinal}); err != nil {
			return fmt.Errorf("upsert trigger %s: %w", key, err)
		}
		c.log.Debug("trigger scheduled",
			logx.Int64("user", user.ID), logx.Int("ordinal", ordinal), logx.Time("fire_at", fireAt))
	}
	return nil
}

func (c *Coordinator) drawSlots(count int) ([]time.Duration, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	slots, err := Slots(c.rng, c.window, count)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("window %v-%v yields no delivery slots", c.window.From, c.window.To)
	}
	return slots, nil
}

func (c *Coordinator) userLock(userID int64) *sync.Mutex {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	mu, ok := c.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[userID] = mu
	}
	return mu
}
