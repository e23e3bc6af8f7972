package trigger

import (
	"context"
	"testing"
	"time"

	"kanabot/pkg/logx"
)

func TestUpsertListRemoveBeforeStart(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "UTC"}, nil, logx.Nop())
	ctx := context.Background()

	fireAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	key := Key(1, 42)
	if err := s.Upsert(ctx, key, fireAt, Payload{UserID: 42, Ordinal: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, Key(1, 7), fireAt, Payload{UserID: 7, Ordinal: 1}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListByUser(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Key != key || got[0].Ordinal != 1 {
		t.Fatalf("got %+v", got)
	}

	if err := s.Remove(ctx, key); err != nil {
		t.Fatal(err)
	}
	got, err = s.ListByUser(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %+v after remove", got)
	}

	// Removing a missing key is not an error.
	if err := s.Remove(ctx, "9_9"); err != nil {
		t.Fatal(err)
	}
}

func TestUpsertReplacesSameKey(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "UTC"}, nil, logx.Nop())
	ctx := context.Background()

	key := Key(1, 42)
	first := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	second := time.Date(2025, 6, 1, 18, 15, 0, 0, time.UTC)
	if err := s.Upsert(ctx, key, first, Payload{UserID: 42, Ordinal: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, key, second, Payload{UserID: 42, Ordinal: 1}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListByUser(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d triggers, want 1", len(got))
	}
}

func TestUpsertRejectsEmptyKey(t *testing.T) {
	t.Parallel()
	s := New(Config{}, nil, logx.Nop())
	if err := s.Upsert(context.Background(), "  ", time.Now(), Payload{}); err == nil {
		t.Fatal("want error for empty key")
	}
}

func TestAddIntervalRejectsNonPositive(t *testing.T) {
	t.Parallel()
	s := New(Config{}, nil, logx.Nop())
	err := s.AddInterval("x", 0, 0, func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("want error for zero interval")
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{"04:00", 4, 0, false},
		{"23:59", 23, 59, false},
		{" 9:05 ", 9, 5, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"nope", 0, 0, true},
	}
	for _, tc := range cases {
		h, m, err := parseHHMM(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseHHMM(%q): want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseHHMM(%q): %v", tc.in, err)
			continue
		}
		if h != tc.h || m != tc.m {
			t.Errorf("parseHHMM(%q) = %d:%d, want %d:%d", tc.in, h, m, tc.h, tc.m)
		}
	}
}
