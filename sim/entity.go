package sim

// Kind identifies the concrete variant of an Entity.
type Kind int

const (
	KindReservoir Kind = iota
	KindSourceSink
	KindFlow
	KindControl
)

// String returns the lower-case variant name used in logs and error messages.
func (k Kind) String() string {
	switch k {
	case KindReservoir:
		return "reservoir"
	case KindSourceSink:
		return "source-sink"
	case KindFlow:
		return "flow"
	case KindControl:
		return "control"
	default:
		return "unknown"
	}
}

// Entity is the capability set shared by every variant in the graph. Each
// entity holds two values: the current value, mutated during a step, and the
// previous value, which is the snapshot of the current value at the start of
// the most recently completed step. All per-step computation reads previous
// values only, so the order entities are recomputed in does not matter.
//
// The interface is closed — only the four variant types in this package
// implement it, which lets the compute phase switch exhaustively over them.
type Entity interface {
	// Name is the unique primary identifier of the entity across the graph.
	Name() string
	// ID is an arbitrary secondary identifier; it is never used for linking.
	ID() string
	Kind() Kind
	CurrentValue() float64
	PreviousValue() float64
	// SetCurrentValue assigns the current value, subject to the variant's own
	// bound (reservoir capacity, flow max rate). SourceSinks ignore it.
	SetCurrentValue(v float64)
	// Backup records the current value as the new previous value. This is the
	// only operation that mutates the previous value.
	Backup()

	sealed()
}

// base carries the fields shared by all entity variants. Variants embed it and
// shadow SetCurrentValue when they clamp.
type base struct {
	name     string
	id       string
	kind     Kind
	current  float64
	previous float64
}

func (b *base) Name() string           { return b.name }
func (b *base) ID() string             { return b.id }
func (b *base) Kind() Kind             { return b.kind }
func (b *base) CurrentValue() float64  { return b.current }
func (b *base) PreviousValue() float64 { return b.previous }

// SetCurrentValue assigns with no bound. Reservoir, SourceSink and Flow shadow
// this with their own clamping behavior.
func (b *base) SetCurrentValue(v float64) { b.current = v }

func (b *base) Backup() { b.previous = b.current }

func (b *base) sealed() {}

// addTo and subtractFrom move resources through the target's own setter so the
// target's clamp (if any) applies.
func addTo(e Entity, v float64)        { e.SetCurrentValue(e.CurrentValue() + v) }
func subtractFrom(e Entity, v float64) { e.SetCurrentValue(e.CurrentValue() - v) }
