package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	// MaxAttempts bounds incorrect answers before the question expires.
	MaxAttempts = 3

	// AcceptanceTimeout is the fixed deadline for confirming a delivered
	// prompt, measured from CreatedAt.
	AcceptanceTimeout = time.Hour
)

// ErrNotActionable reports a transition attempted on a question that already
// reached a terminal state (or was already accepted, for Accept). This is a
// benign race between a slow client and a sweep, never a fatal error.
var ErrNotActionable = errors.New("question not actionable")

// SubmitOutcome classifies the result of one answer submission.
type SubmitOutcome int

const (
	// SubmitNotActionable: the question was already answered or expired.
	SubmitNotActionable SubmitOutcome = iota
	// SubmitCorrect: terminal, streak bumped.
	SubmitCorrect
	// SubmitRetry: incorrect, attempts remain.
	SubmitRetry
	// SubmitExhausted: incorrect and attempt cap reached; terminal, streak reset.
	SubmitExhausted
)

// SubmitResult carries the outcome plus how many attempts remain for retries.
type SubmitResult struct {
	Outcome   SubmitOutcome
	Remaining int
}

// Accept marks the question confirmed and starts the answer timer.
func Accept(q *Question, now time.Time) error {
	if q.Terminal() || q.Accepted {
		return ErrNotActionable
	}
	q.Accepted = true
	q.SentAt = now
	return nil
}

// SubmitAnswer evaluates one candidate answer against the question.
//
// Correctness is a case-insensitive exact match. A correct answer is terminal
// and bumps the user's streak; the third incorrect answer is terminal and
// resets it. Attempts only move while the question is open.
func SubmitAnswer(q *Question, u *User, candidate string) SubmitResult {
	if q.Terminal() {
		return SubmitResult{Outcome: SubmitNotActionable}
	}

	if strings.EqualFold(strings.TrimSpace(candidate), q.Answer) {
		q.Answered = true
		u.BumpStreak()
		return SubmitResult{Outcome: SubmitCorrect}
	}

	q.Attempts++
	if q.Attempts >= MaxAttempts {
		q.Expired = true
		u.ResetStreak()
		return SubmitResult{Outcome: SubmitExhausted}
	}
	return SubmitResult{Outcome: SubmitRetry, Remaining: MaxAttempts - q.Attempts}
}

// ExpireUnaccepted resolves a question whose acceptance deadline passed.
func ExpireUnaccepted(q *Question, u *User) error {
	if q.Terminal() || q.Accepted {
		return ErrNotActionable
	}
	q.Expired = true
	u.ResetStreak()
	return nil
}

// ExpireUnanswered resolves an accepted question whose answer deadline passed.
func ExpireUnanswered(q *Question, u *User) error {
	if q.Terminal() || !q.Accepted {
		return ErrNotActionable
	}
	q.Expired = true
	u.ResetStreak()
	return nil
}

// AcceptanceDeadline is the instant after which an unconfirmed question expires.
func AcceptanceDeadline(q *Question) time.Time {
	return q.CreatedAt.Add(AcceptanceTimeout)
}

// AnswerDeadline is the instant after which an accepted question expires.
// Only meaningful once the question is accepted.
func AnswerDeadline(q *Question) time.Time {
	return q.SentAt.Add(q.TimeLimit)
}
