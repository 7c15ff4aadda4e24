package sim

import "math"

// Flow moves resources between two entities each step, at a rate dictated by
// its Control and capped by its own max rate. Until the loader's link pass
// runs, a flow knows its source, sink and control only by name.
type Flow struct {
	base
	maxRate float64 // +Inf when the document declares no max_capacity

	sourceName  string
	sinkName    string
	controlName string

	source  Entity
	sink    Entity
	control *Control
}

// NewFlow builds an unlinked flow. The starting level is clamped to maxRate;
// the previous value starts at zero.
func NewFlow(name, id string, maxRate float64, startLevel float64, sourceName, sinkName, controlName string) *Flow {
	f := &Flow{
		base:        base{name: name, id: id, kind: KindFlow},
		maxRate:     maxRate,
		sourceName:  sourceName,
		sinkName:    sinkName,
		controlName: controlName,
	}
	f.current = math.Min(startLevel, maxRate)
	return f
}

// SetCurrentValue assigns the flow's rate for this step, silently clamped to
// the max rate.
func (f *Flow) SetCurrentValue(v float64) {
	if math.IsInf(f.maxRate, 1) {
		f.current = v
		return
	}
	f.current = math.Min(v, f.maxRate)
}

// MaxRate returns the upper bound on this flow's per-step transfer.
func (f *Flow) MaxRate() float64 { return f.maxRate }

// SourceName returns the linked source's name, or the declared name before
// linking.
func (f *Flow) SourceName() string {
	if f.source != nil {
		return f.source.Name()
	}
	return f.sourceName
}

// SinkName returns the linked sink's name, or the declared name before linking.
func (f *Flow) SinkName() string {
	if f.sink != nil {
		return f.sink.Name()
	}
	return f.sinkName
}

// ControlName returns the linked control's name, or the declared name before
// linking.
func (f *Flow) ControlName() string {
	if f.control != nil {
		return f.control.Name()
	}
	return f.controlName
}

// Link resolves the flow's name references to entities. The loader calls this
// once, after every entity exists in the graph.
func (f *Flow) Link(source, sink Entity, control *Control) {
	f.source = source
	f.sink = sink
	f.control = control
}

// Propagate performs the flow's per-step update: read the control's previous
// value, clamp it to the max rate as this flow's current value, then move that
// amount from source to sink. Both movements go through the target's own
// setter, so capacity clamps apply immediately. When several flows touch the
// same reservoir in one step and its clamp is active, the final value depends
// on flow order; with no clamping the additions commute.
func (f *Flow) Propagate() {
	f.SetCurrentValue(f.control.PreviousValue())
	subtractFrom(f.source, f.current)
	addTo(f.sink, f.current)
}
