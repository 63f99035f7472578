package worker

import "time"

// slot records the per-op metadata the completion handler needs: which
// direction the op was, and whether it carries a submit timestamp for
// latency sampling. Slot index and buffer index are always the same
// value (the submission token modulo queue depth), so this table
// doubles as the buffer-ownership record.
type slot struct {
	isRead   bool
	sampled  bool
	submitTs time.Time
}

// slotTable is a fixed-size, token-indexed array of in-flight op
// metadata. Depth is always a queue_depth; when depth is a power of
// two, index() uses a bit mask instead of a modulo.
type slotTable struct {
	slots []slot
	mask  uint64 // depth-1 if depth is a power of two, else 0
	pow2  bool
	depth uint64
}

func newSlotTable(depth int) *slotTable {
	t := &slotTable{
		slots: make([]slot, depth),
		depth: uint64(depth),
	}
	if depth > 0 && depth&(depth-1) == 0 {
		t.pow2 = true
		t.mask = uint64(depth - 1)
	}
	return t
}

// index maps a monotonic token to its slot/buffer index.
func (t *slotTable) index(token uint64) int {
	if t.pow2 {
		return int(token & t.mask)
	}
	return int(token % t.depth)
}

// set writes the full slot: direction, sampling flag, and (if sampled)
// submit timestamp. Used on the non-fast-mode path, where direction
// can differ from one op at this index to the next.
func (t *slotTable) set(token uint64, isRead, sampled bool, submitTs time.Time) {
	s := &t.slots[t.index(token)]
	s.isRead = isRead
	s.sampled = sampled
	s.submitTs = submitTs
}

// setSampling writes only the sampling fields, leaving direction
// untouched. Safe under fast-mode, where every op sharing a slot index
// has the same direction and that direction was seeded once at setup.
func (t *slotTable) setSampling(token uint64, sampled bool, submitTs time.Time) {
	s := &t.slots[t.index(token)]
	s.sampled = sampled
	s.submitTs = submitTs
}

// seedDirection initializes every slot's direction to a constant,
// called once at setup for fast-mode patterns.
func (t *slotTable) seedDirection(isRead bool) {
	for i := range t.slots {
		t.slots[i].isRead = isRead
	}
}

func (t *slotTable) get(token uint64) slot {
	return t.slots[t.index(token)]
}
