package domain

import (
	"testing"
	"time"
)

func newTestQuestion(t *testing.T) (*Question, *User) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	u := &User{ID: 7, ChatID: 7, Streak: 2, QuestionsPerDay: 1, CreatedAt: now}
	q := NewQuestion(u.ID, "つ", "tsu", 10*time.Minute, now)
	if err := Accept(q, now.Add(time.Minute)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return q, u
}

func TestSubmitAnswerCorrect(t *testing.T) {
	t.Parallel()
	q, u := newTestQuestion(t)

	res := SubmitAnswer(q, u, "TSU")
	if res.Outcome != SubmitCorrect {
		t.Fatalf("outcome = %v, want SubmitCorrect", res.Outcome)
	}
	if !q.Answered || q.Expired {
		t.Fatalf("answered=%v expired=%v, want answered terminal", q.Answered, q.Expired)
	}
	if q.Attempts != 0 {
		t.Fatalf("attempts = %d, want 0", q.Attempts)
	}
	if u.Streak != 3 {
		t.Fatalf("streak = %d, want 3", u.Streak)
	}
}

func TestSubmitAnswerTrimsWhitespace(t *testing.T) {
	t.Parallel()
	q, u := newTestQuestion(t)
	if res := SubmitAnswer(q, u, "  tsu \n"); res.Outcome != SubmitCorrect {
		t.Fatalf("outcome = %v, want SubmitCorrect", res.Outcome)
	}
}

func TestSubmitAnswerExhaustsAttempts(t *testing.T) {
	t.Parallel()
	q, u := newTestQuestion(t)

	steps := []struct {
		candidate string
		outcome   SubmitOutcome
		attempts  int
		remaining int
	}{
		{"ka", SubmitRetry, 1, 2},
		{"ki", SubmitRetry, 2, 1},
		{"ku", SubmitExhausted, 3, 0},
	}
	for i, st := range steps {
		res := SubmitAnswer(q, u, st.candidate)
		if res.Outcome != st.outcome {
			t.Fatalf("step %d: outcome = %v, want %v", i, res.Outcome, st.outcome)
		}
		if q.Attempts != st.attempts {
			t.Fatalf("step %d: attempts = %d, want %d", i, q.Attempts, st.attempts)
		}
		if res.Remaining != st.remaining {
			t.Fatalf("step %d: remaining = %d, want %d", i, res.Remaining, st.remaining)
		}
	}
	if !q.Expired || q.Answered {
		t.Fatalf("expired=%v answered=%v, want expired terminal", q.Expired, q.Answered)
	}
	if u.Streak != 0 {
		t.Fatalf("streak = %d, want 0 after reset", u.Streak)
	}
}

func TestSubmitAnswerTerminalIsFrozen(t *testing.T) {
	t.Parallel()
	q, u := newTestQuestion(t)
	SubmitAnswer(q, u, "tsu")

	res := SubmitAnswer(q, u, "tsu")
	if res.Outcome != SubmitNotActionable {
		t.Fatalf("outcome = %v, want SubmitNotActionable", res.Outcome)
	}
	if q.Attempts != 0 || u.Streak != 3 {
		t.Fatalf("terminal question mutated: attempts=%d streak=%d", q.Attempts, u.Streak)
	}
}

func TestAccept(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := NewQuestion(1, "か", "ka", time.Minute, now)

	if err := Accept(q, now.Add(time.Minute)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !q.Accepted || !q.SentAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("accepted=%v sentAt=%v", q.Accepted, q.SentAt)
	}

	// Second accept and accept-after-terminal are rejected.
	if err := Accept(q, now.Add(2*time.Minute)); err != ErrNotActionable {
		t.Fatalf("double accept err = %v, want ErrNotActionable", err)
	}
	q.Expired = true
	q.Accepted = false
	if err := Accept(q, now.Add(3*time.Minute)); err != ErrNotActionable {
		t.Fatalf("accept after expiry err = %v, want ErrNotActionable", err)
	}
}

func TestExpireUnaccepted(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	u := &User{ID: 1, Streak: 5}
	q := NewQuestion(1, "か", "ka", time.Minute, now)

	if err := ExpireUnaccepted(q, u); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if !q.Expired || u.Streak != 0 {
		t.Fatalf("expired=%v streak=%d", q.Expired, u.Streak)
	}

	// Accepted questions belong to the other sweep.
	u2 := &User{ID: 2, Streak: 5}
	q2 := NewQuestion(2, "か", "ka", time.Minute, now)
	if err := Accept(q2, now); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := ExpireUnaccepted(q2, u2); err != ErrNotActionable {
		t.Fatalf("err = %v, want ErrNotActionable", err)
	}
	if u2.Streak != 5 {
		t.Fatalf("streak mutated on rejected expiry: %d", u2.Streak)
	}
}

func TestExpireUnanswered(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	u := &User{ID: 1, Streak: 5}
	q := NewQuestion(1, "か", "ka", time.Minute, now)

	// Not accepted yet: wrong sweep.
	if err := ExpireUnanswered(q, u); err != ErrNotActionable {
		t.Fatalf("err = %v, want ErrNotActionable", err)
	}

	if err := Accept(q, now); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := ExpireUnanswered(q, u); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if !q.Expired || u.Streak != 0 {
		t.Fatalf("expired=%v streak=%d", q.Expired, u.Streak)
	}
}

func TestDeadlines(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := NewQuestion(1, "か", "ka", 10*time.Minute, now)

	if got := AcceptanceDeadline(q); !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("acceptance deadline = %v", got)
	}
	if err := Accept(q, now.Add(30*time.Minute)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got := AnswerDeadline(q); !got.Equal(now.Add(40 * time.Minute)) {
		t.Fatalf("answer deadline = %v", got)
	}
}
