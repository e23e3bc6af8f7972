package schedule

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// slotStep is the granularity of candidate delivery marks.
const slotStep = 15 * time.Minute

// Window is a daily delivery window, expressed as offsets from local midnight.
type Window struct {
	From time.Duration
	To   time.Duration
}

func (w Window) Validate() error {
	if w.From < 0 || w.To >= 24*time.Hour {
		return fmt.Errorf("window out of range: %v-%v", w.From, w.To)
	}
	if w.From > w.To {
		return fmt.Errorf("window start after end: %v-%v", w.From, w.To)
	}
	return nil
}

var errSlotCount = errors.New("slot count must be > 0")

// Slots returns up to count times of day spread across the window.
//
// Candidates are every 15-minute mark inside [From, To], with From rounded
// down to the nearest mark. The candidate index range is partitioned into
// count contiguous segments with floor(i*N/count) boundaries and one candidate
// is drawn uniformly from each non-empty segment, so the final mark is always
// reachable. When count meets or exceeds the number of candidates, the full
// candidate set is returned.
//
// The result is sorted ascending. Deterministic for a fixed rng.
func Slots(rng *rand.Rand, w Window, count int) ([]time.Duration, error) {
	if count <= 0 {
		return nil, errSlotCount
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	first := w.From - (w.From % slotStep)
	var candidates []time.Duration
	for t := first; t <= w.To; t += slotStep {
		candidates = append(candidates, t)
	}

	n := len(candidates)
	if count >= n {
		return candidates, nil
	}

	out := make([]time.Duration, 0, count)
	for i := 0; i < count; i++ {
		lo := i * n / count
		hi := (i+1)*n/count - 1
		if lo > hi {
			// Zero-width segment from rounding; cannot happen for count <= n.
			continue
		}
		out = append(out, candidates[lo+rng.Intn(hi-lo+1)])
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ParseWindowEdge parses a "HH:MM" time of day into an offset from midnight.
func ParseWindowEdge(s string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}
