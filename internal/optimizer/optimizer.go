// Package optimizer performs a small hill-climbing search over
// queue_depth across successive runs, accepting a candidate depth
// when it improves measured IOPS by more than a noise threshold.
package optimizer

// defaultNoiseThreshold is the minimum fractional IOPS improvement a
// candidate must clear to be accepted as the new best, avoiding
// chasing run-to-run measurement jitter.
const defaultNoiseThreshold = 0.02

// Search is a single-threaded hill climber over queue_depth. One
// Search instance drives one tuning session: construct it, read
// Candidate, run it, feed the resulting IOPS back via Record, repeat.
type Search struct {
	min, max       int
	noiseThreshold float64

	bestDepth int
	bestIOPS  float64

	candidate  int
	step       int
	increasing bool

	started bool
}

// NewSearch builds a Search starting at initialDepth, bounded to
// [min, max]. A noiseThreshold of 0 defaults to 2%.
func NewSearch(initialDepth, min, max int, noiseThreshold float64) *Search {
	if noiseThreshold <= 0 {
		noiseThreshold = defaultNoiseThreshold
	}
	depth := clamp(initialDepth, min, max)
	return &Search{
		min:            min,
		max:            max,
		noiseThreshold: noiseThreshold,
		bestDepth:      depth,
		candidate:      depth,
		step:           max - min,
		increasing:     true,
	}
}

// Candidate is the queue_depth the caller should run next.
func (s *Search) Candidate() int {
	return s.candidate
}

// Record reports the IOPS measured at Candidate's depth and returns
// the next depth to try. The first call establishes the baseline and
// always steps outward.
func (s *Search) Record(iops float64) int {
	if !s.started {
		s.started = true
		s.bestIOPS = iops
		s.bestDepth = s.candidate
		s.candidate = s.step_(s.candidate, true)
		return s.candidate
	}

	if iops > s.bestIOPS*(1+s.noiseThreshold) {
		s.bestIOPS = iops
		s.bestDepth = s.candidate
		s.step *= 2
		s.candidate = s.step_(s.candidate, s.increasing)
		return s.candidate
	}

	// No improvement: reverse direction from the best known depth
	// with a finer step, like backtracking off an overshoot.
	s.increasing = !s.increasing
	s.step = halve(s.step)
	s.candidate = s.step_(s.bestDepth, s.increasing)
	return s.candidate
}

// Best reports the best depth/IOPS pair observed so far.
func (s *Search) Best() (depth int, iops float64) {
	return s.bestDepth, s.bestIOPS
}

func (s *Search) step_(from int, increasing bool) int {
	if increasing {
		return clamp(from+s.step, s.min, s.max)
	}
	return clamp(from-s.step, s.min, s.max)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func halve(step int) int {
	if step/2 < 1 {
		return 1
	}
	return step / 2
}
