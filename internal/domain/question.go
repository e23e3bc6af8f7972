package domain

import (
	"time"

	"github.com/google/uuid"
)

// Question is a single delivered practice item.
//
// At most one of Answered/Expired ever becomes true; once either is set the
// record is terminal and Attempts is frozen. All transitions go through the
// lifecycle functions in this package.
type Question struct {
	ID        string
	UserID    int64
	Prompt    string
	Answer    string
	Attempts  int
	TimeLimit time.Duration
	CreatedAt time.Time
	SentAt    time.Time // zero until accepted
	Accepted  bool
	Answered  bool
	Expired   bool

	// MessageID is the transport message carrying the prompt, kept so outcome
	// notifications can reply in-thread. Zero when unknown.
	MessageID int
}

// NewQuestion builds a fresh pending-acceptance question.
func NewQuestion(userID int64, prompt, answer string, timeLimit time.Duration, now time.Time) *Question {
	return &Question{
		ID:        uuid.NewString(),
		UserID:    userID,
		Prompt:    prompt,
		Answer:    answer,
		TimeLimit: timeLimit,
		CreatedAt: now,
	}
}

// Terminal reports whether the question reached a final state.
func (q *Question) Terminal() bool { return q.Answered || q.Expired }
