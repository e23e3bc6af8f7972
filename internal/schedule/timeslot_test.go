package schedule

import (
	"math/rand"
	"testing"
	"time"
)

func mustWindow(t *testing.T, from, to string) Window {
	t.Helper()
	f, err := ParseWindowEdge(from)
	if err != nil {
		t.Fatal(err)
	}
	o, err := ParseWindowEdge(to)
	if err != nil {
		t.Fatal(err)
	}
	return Window{From: f, To: o}
}

func TestSlotsCountAndBounds(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	w := mustWindow(t, "09:00", "21:00")

	for count := 1; count <= 10; count++ {
		slots, err := Slots(rng, w, count)
		if err != nil {
			t.Fatalf("count %d: %v", count, err)
		}
		if len(slots) != count {
			t.Fatalf("count %d: got %d slots", count, len(slots))
		}
		for i, s := range slots {
			if s < w.From || s > w.To {
				t.Fatalf("slot %v outside window %v-%v", s, w.From, w.To)
			}
			if s%slotStep != 0 {
				t.Fatalf("slot %v not on a 15m mark", s)
			}
			if i > 0 && slots[i-1] >= s {
				t.Fatalf("slots not strictly increasing at %d: %v", i, slots)
			}
		}
	}
}

func TestSlotsSorted(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	w := mustWindow(t, "08:00", "22:00")
	for trial := 0; trial < 100; trial++ {
		slots, err := Slots(rng, w, 5)
		if err != nil {
			t.Fatal(err)
		}
		for i := 1; i < len(slots); i++ {
			if slots[i-1] > slots[i] {
				t.Fatalf("unsorted: %v", slots)
			}
		}
	}
}

func TestSlotsDegenerateFullSet(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))

	// 10:00-10:30 has exactly three marks.
	w := mustWindow(t, "10:00", "10:30")
	slots, err := Slots(rng, w, 99)
	if err != nil {
		t.Fatal(err)
	}
	want := []time.Duration{
		10 * time.Hour,
		10*time.Hour + 15*time.Minute,
		10*time.Hour + 30*time.Minute,
	}
	if len(slots) != len(want) {
		t.Fatalf("got %v, want %v", slots, want)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("got %v, want %v", slots, want)
		}
	}
}

func TestSlotsRoundsStartDown(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))

	// 09:10 rounds down to 09:00, so the 09:00 mark is a candidate.
	w := mustWindow(t, "09:10", "09:20")
	slots, err := Slots(rng, w, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 2 || slots[0] != 9*time.Hour || slots[1] != 9*time.Hour+15*time.Minute {
		t.Fatalf("got %v", slots)
	}
}

func TestSlotsFinalMarkReachable(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))
	w := mustWindow(t, "09:00", "12:00") // 13 marks

	// The last segment always contains the final candidate; over many trials a
	// single draw must hit it.
	hit := false
	last := 12 * time.Hour
	for trial := 0; trial < 500 && !hit; trial++ {
		slots, err := Slots(rng, w, 3)
		if err != nil {
			t.Fatal(err)
		}
		if slots[len(slots)-1] == last {
			hit = true
		}
	}
	if !hit {
		t.Fatal("final 15m mark never drawn in 500 trials")
	}
}

func TestSlotsInvalidInput(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))

	if _, err := Slots(rng, mustWindow(t, "09:00", "21:00"), 0); err == nil {
		t.Fatal("want error for count 0")
	}
	if _, err := Slots(rng, Window{From: 10 * time.Hour, To: 9 * time.Hour}, 1); err == nil {
		t.Fatal("want error for inverted window")
	}
	if _, err := Slots(rng, Window{From: -time.Hour, To: time.Hour}, 1); err == nil {
		t.Fatal("want error for negative start")
	}
}

func TestParseWindowEdge(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"09:00", 9 * time.Hour, false},
		{"23:59", 23*time.Hour + 59*time.Minute, false},
		{"0:05", 5 * time.Minute, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseWindowEdge(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseWindowEdge(%q): want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWindowEdge(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseWindowEdge(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
