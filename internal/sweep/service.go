// Package sweep resolves questions that time out at either lifecycle stage
// and resets the owning user's streak.
package sweep

import (
	"context"
	"fmt"

	"kanabot/internal/clock"
	"kanabot/internal/domain"
	"kanabot/internal/notify"
	"kanabot/internal/store"
	"kanabot/pkg/logx"
)

// Service runs the two periodic expiry passes. The passes sweep disjoint
// predicates (unaccepted vs. accepted open questions), so a question is never
// double-processed in one cycle; questions resolved concurrently by a user
// action fall out of the predicate at read time.
type Service struct {
	users     store.UserRepository
	questions store.QuestionRepository
	sink      notify.Sink
	clk       clock.Clock
	log       logx.Logger
}

func New(users store.UserRepository, questions store.QuestionRepository, sink notify.Sink, clk clock.Clock, log logx.Logger) *Service {
	if clk == nil {
		clk = clock.System
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{users: users, questions: questions, sink: sink, clk: clk, log: log}
}

// SweepAcceptance expires questions never confirmed within the acceptance
// window. Per-item failures are logged and skipped; only a failing batch
// commit fails the pass.
func (s *Service) SweepAcceptance(ctx context.Context) error {
	now := s.clk.Now()
	due, err := s.questions.FindAcceptanceExpired(ctx, now.Add(-domain.AcceptanceTimeout))
	if err != nil {
		return fmt.Errorf("query acceptance-expired: %w", err)
	}

	var batch []*domain.Question
	for _, q := range due {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		u, err := s.users.FindByID(ctx, q.UserID)
		if err != nil {
			s.log.Error("sweep: load user failed", logx.Int64("user", q.UserID), logx.Err(err))
			continue
		}
		if err := domain.ExpireUnaccepted(q, u); err != nil {
			// Already resolved by a racing user action.
			continue
		}
		if err := s.users.Save(ctx, u); err != nil {
			s.log.Error("sweep: save user failed", logx.Int64("user", u.ID), logx.Err(err))
			continue
		}
		batch = append(batch, q)
		s.emit(ctx, u, q, "Time limit for confirming reached.")
	}

	if err := s.questions.SaveBatch(ctx, batch); err != nil {
		return fmt.Errorf("commit acceptance sweep: %w", err)
	}
	if len(batch) > 0 {
		s.log.Info("acceptance sweep expired questions", logx.Int("count", len(batch)))
	}
	return nil
}

// SweepAnswers expires accepted questions not answered within their time limit.
func (s *Service) SweepAnswers(ctx context.Context) error {
	now := s.clk.Now()
	due, err := s.questions.FindAnswerExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("query answer-expired: %w", err)
	}

	var batch []*domain.Question
	for _, q := range due {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		u, err := s.users.FindByID(ctx, q.UserID)
		if err != nil {
			s.log.Error("sweep: load user failed", logx.Int64("user", q.UserID), logx.Err(err))
			continue
		}
		if err := domain.ExpireUnanswered(q, u); err != nil {
			continue
		}
		if err := s.users.Save(ctx, u); err != nil {
			s.log.Error("sweep: save user failed", logx.Int64("user", u.ID), logx.Err(err))
			continue
		}
		batch = append(batch, q)
		s.emit(ctx, u, q, fmt.Sprintf("Time limit for answering reached. The correct answer was %q.", q.Answer))
	}

	if err := s.questions.SaveBatch(ctx, batch); err != nil {
		return fmt.Errorf("commit answer sweep: %w", err)
	}
	if len(batch) > 0 {
		s.log.Info("answer sweep expired questions", logx.Int("count", len(batch)))
	}
	return nil
}

func (s *Service) emit(ctx context.Context, u *domain.User, q *domain.Question, text string) {
	if s.sink == nil {
		return
	}
	n := notify.Notification{ChatID: u.ChatID, Text: text, ReplyTo: q.MessageID}
	if err := s.sink.Notify(ctx, n); err != nil {
		s.log.Warn("sweep: notify failed", logx.Int64("user", u.ID), logx.Err(err))
	}
}
