package schedule

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"kanabot/internal/clock"
	"kanabot/internal/domain"
	"kanabot/internal/trigger"
	"kanabot/pkg/logx"
)

// fakeTriggerStore records mutations so tests can assert reconcile behavior.
type fakeTriggerStore struct {
	triggers map[string]trigger.Trigger
	upserts  int
	removes  int
}

func newFakeTriggerStore() *fakeTriggerStore {
	return &fakeTriggerStore{triggers: map[string]trigger.Trigger{}}
}

func (f *fakeTriggerStore) ListByUser(_ context.Context, userID int64) ([]trigger.Trigger, error) {
	var out []trigger.Trigger
	for _, t := range f.triggers {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTriggerStore) Upsert(_ context.Context, key string, fireAt time.Time, p trigger.Payload) error {
	f.upserts++
	f.triggers[key] = trigger.Trigger{Key: key, UserID: p.UserID, Ordinal: p.Ordinal, NextRun: fireAt}
	return nil
}

func (f *fakeTriggerStore) Remove(_ context.Context, key string) error {
	f.removes++
	delete(f.triggers, key)
	return nil
}

func newTestCoordinator(t *testing.T, st trigger.Store, clk clock.Clock) *Coordinator {
	t.Helper()
	w := mustWindow(t, "09:00", "21:00")
	rng := rand.New(rand.NewSource(1))
	return NewCoordinator(st, w, time.UTC, rng, clk, logx.Nop())
}

func testUser(perDay int) *domain.User {
	return &domain.User{ID: 42, ChatID: 42, QuestionsPerDay: perDay}
}

func TestReconcileCreatesDesiredTriggers(t *testing.T) {
	t.Parallel()
	st := newFakeTriggerStore()
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	c := newTestCoordinator(t, st, clock.NewFake(now))

	if err := c.Reconcile(context.Background(), testUser(3)); err != nil {
		t.Fatal(err)
	}
	if len(st.triggers) != 3 {
		t.Fatalf("got %d triggers, want 3", len(st.triggers))
	}
	for _, tr := range st.triggers {
		if !tr.NextRun.After(now) {
			t.Fatalf("trigger %s scheduled in the past: %v", tr.Key, tr.NextRun)
		}
		if tr.NextRun.Sub(now) > 48*time.Hour {
			t.Fatalf("trigger %s too far out: %v", tr.Key, tr.NextRun)
		}
	}
}

func TestReconcileIdempotentForImminentTriggers(t *testing.T) {
	t.Parallel()
	st := newFakeTriggerStore()
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	c := newTestCoordinator(t, st, clock.NewFake(now))
	u := testUser(3)

	if err := c.Reconcile(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	first := st.upserts

	// All triggers are now due within 24h; a second pass must not touch them.
	if err := c.Reconcile(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	if st.upserts != first {
		t.Fatalf("second reconcile upserted %d more triggers", st.upserts-first)
	}
	if st.removes != 0 {
		t.Fatalf("second reconcile removed %d triggers", st.removes)
	}
}

func TestReconcilePurgesCorruptedSet(t *testing.T) {
	t.Parallel()
	st := newFakeTriggerStore()
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	next := now.Add(2 * time.Hour)

	// Five stored triggers for a user who wants two.
	for i := 1; i <= 5; i++ {
		key := trigger.Key(i, 42)
		st.triggers[key] = trigger.Trigger{Key: key, UserID: 42, Ordinal: i, NextRun: next}
	}

	c := newTestCoordinator(t, st, clock.NewFake(now))
	if err := c.Reconcile(context.Background(), testUser(2)); err != nil {
		t.Fatal(err)
	}
	if st.removes != 5 {
		t.Fatalf("removes = %d, want 5 (full purge)", st.removes)
	}
	if len(st.triggers) != 2 {
		t.Fatalf("got %d triggers after purge, want 2", len(st.triggers))
	}
}

func TestReconcileReplacesStaleTrigger(t *testing.T) {
	t.Parallel()
	st := newFakeTriggerStore()
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	// Stale: next run is more than 24h away.
	key := trigger.Key(1, 42)
	st.triggers[key] = trigger.Trigger{Key: key, UserID: 42, Ordinal: 1, NextRun: now.Add(30 * time.Hour)}

	c := newTestCoordinator(t, st, clock.NewFake(now))
	if err := c.Reconcile(context.Background(), testUser(1)); err != nil {
		t.Fatal(err)
	}
	if st.upserts != 1 {
		t.Fatalf("upserts = %d, want 1 (stale trigger replaced)", st.upserts)
	}
	if got := st.triggers[key].NextRun; got.Sub(now) > 24*time.Hour {
		t.Fatalf("replacement still stale: %v", got)
	}
}

func TestReconcileRollsPastSlotsToTomorrow(t *testing.T) {
	t.Parallel()
	st := newFakeTriggerStore()
	// Late evening: the whole window already passed today.
	now := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)
	c := newTestCoordinator(t, st, clock.NewFake(now))

	if err := c.Reconcile(context.Background(), testUser(2)); err != nil {
		t.Fatal(err)
	}
	for _, tr := range st.triggers {
		if !tr.NextRun.After(now) {
			t.Fatalf("trigger %s not rolled to tomorrow: %v", tr.Key, tr.NextRun)
		}
		if tr.NextRun.Day() != 2 {
			t.Fatalf("trigger %s on day %d, want 2", tr.Key, tr.NextRun.Day())
		}
	}
}

func TestReconcileTreatsZeroDesiredAsOne(t *testing.T) {
	t.Parallel()
	st := newFakeTriggerStore()
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	c := newTestCoordinator(t, st, clock.NewFake(now))

	u := testUser(0)
	if err := c.Reconcile(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	if len(st.triggers) != 1 {
		t.Fatalf("got %d triggers, want 1", len(st.triggers))
	}
}
