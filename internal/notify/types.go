package notify

import (
	"context"
	"time"
)

// Config controls the async notification pipeline.
type Config struct {
	Workers    int
	QueueSize  int
	RatePerSec int
	RetryMax   int
	RetryBase  time.Duration
}

// Notification is a fire-and-forget outcome message for a user.
type Notification struct {
	ChatID  int64
	Text    string
	ReplyTo int // message id to reply to; 0 for none
}

// Sink accepts notification intents. Delivery mechanics are the transport's
// concern; callers never learn transport errors.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}
