package store

import (
	"context"
	"errors"
	"time"

	"kanabot/internal/domain"
)

// ErrNotFound is returned by Find* methods when no row matches.
var ErrNotFound = errors.New("not found")

// UserRepository persists registered users.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByChatID(ctx context.Context, chatID int64) (*domain.User, error)
	ListAll(ctx context.Context) ([]*domain.User, error)
	Save(ctx context.Context, u *domain.User) error
}

// QuestionRepository persists practice questions.
//
// The two expiry queries are mutually exclusive by construction: one selects
// unaccepted open questions, the other accepted open questions. No question
// can satisfy both in a single sweep cycle.
type QuestionRepository interface {
	Create(ctx context.Context, q *domain.Question) error
	FindByID(ctx context.Context, id string) (*domain.Question, error)
	// FindOpenByUser returns the most recent non-terminal question of a user,
	// or ErrNotFound.
	FindOpenByUser(ctx context.Context, userID int64) (*domain.Question, error)
	// FindAcceptanceExpired selects open, unaccepted questions created at or
	// before cutoff.
	FindAcceptanceExpired(ctx context.Context, cutoff time.Time) ([]*domain.Question, error)
	// FindAnswerExpired selects open, accepted questions whose answer deadline
	// (sentAt + timeLimit) is at or before now.
	FindAnswerExpired(ctx context.Context, now time.Time) ([]*domain.Question, error)
	Save(ctx context.Context, q *domain.Question) error
	SaveBatch(ctx context.Context, qs []*domain.Question) error
}
