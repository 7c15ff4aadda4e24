package sim

import "math"

// Reservoir accumulates a quantity up to a fixed capacity. Reservoirs perform
// no computation of their own; their value changes only as a side effect of
// Flows acting on them (or of overrides).
type Reservoir struct {
	base
	capacity float64 // +Inf when the document declares no max_level
	unit     string  // descriptive only
}

// NewReservoir builds a reservoir with both current and previous value set to
// the initial level. The current value is clamped to capacity; pass
// math.Inf(1) for an unbounded reservoir.
func NewReservoir(name, id string, capacity float64, unit string, initial float64) *Reservoir {
	r := &Reservoir{
		base:     base{name: name, id: id, kind: KindReservoir},
		capacity: capacity,
		unit:     unit,
	}
	r.SetCurrentValue(initial)
	r.previous = initial
	return r
}

// SetCurrentValue assigns the current value, silently clamping it to the
// reservoir's capacity. There is no lower bound; a reservoir can go negative
// when drained past empty.
func (r *Reservoir) SetCurrentValue(v float64) {
	if math.IsInf(r.capacity, 1) {
		r.current = v
		return
	}
	r.current = math.Min(v, r.capacity)
}

// Capacity returns the maximum value this reservoir can hold.
func (r *Reservoir) Capacity() float64 { return r.capacity }

// Unit returns the descriptive unit label ("Watts", "People", ...).
func (r *Reservoir) Unit() string { return r.unit }

// SourceSink is an unbounded, untracked external supply or drain. It behaves
// like a Reservoir with infinite capacity, except that both its values are
// pinned at +Inf for its entire lifetime: flows drawing from or feeding into
// it never change what it reports, and overrides cannot move it.
type SourceSink struct {
	Reservoir
}

// NewSourceSink builds a source-sink with both values fixed at +Inf.
func NewSourceSink(name, id, unit string) *SourceSink {
	s := &SourceSink{
		Reservoir: Reservoir{
			base:     base{name: name, id: id, kind: KindSourceSink},
			capacity: math.Inf(1),
			unit:     unit,
		},
	}
	s.current = math.Inf(1)
	s.previous = math.Inf(1)
	return s
}

// SetCurrentValue is a no-op: a source-sink's value is +Inf for its lifetime.
func (s *SourceSink) SetCurrentValue(float64) {}
