package sim

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/k3a-uw/caes-simulator/sim/stream"
)

// State is the clock's control state.
type State int

const (
	// StateStopped is the initial state: the clock has never run.
	StateStopped State = iota
	// StateRunning advances steps continuously until paused or completed.
	StateRunning
	// StatePaused accepts single manual steps; Run resumes continuous stepping.
	StatePaused
	// StateCompleted is terminal: the declared step count has been reached.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// RowWriter is the result sink: it receives the traversal-order entity names
// once, then one ordered row of current values per completed step.
type RowWriter interface {
	WriteHeader(names []string) error
	WriteRow(step int, values []float64) error
	Flush() error
}

// OverrideSource yields step-indexed override batches in document order.
// *stream.Reader implements it; tests substitute in-memory sources.
type OverrideSource interface {
	HasNext() bool
	Peek() *stream.Batch
	Next() *stream.Batch
}

// StepResult is published on the clock's events channel after each completed
// step. Values are the post-override, pre-compute snapshot in traversal order
// — the same row handed to the RowWriter.
type StepResult struct {
	Step   int
	Values []float64
}

// Clock drives the simulation: it owns the run/pause/step state machine and
// executes the two-phase per-step update over the entity graph. Run is meant
// to occupy a single dedicated goroutine; Pause, Step and the read accessors
// may be called from others. Pausing is cooperative — a step in flight always
// completes.
type Clock struct {
	mu          sync.Mutex // guards state and currentStep
	stepMu      sync.Mutex // serializes step execution between Run and Step
	state       State
	currentStep int

	graph    *Graph
	maxSteps int
	input    OverrideSource
	out      RowWriter
	events   chan StepResult
	runID    string
}

// NewClock builds a clock over a loaded model and writes the header row to the
// sink. A nil RowWriter discards output.
func NewClock(model *Model, out RowWriter) (*Clock, error) {
	c := &Clock{
		state:    StateStopped,
		graph:    model.Graph,
		maxSteps: model.TimeSteps,
		out:      out,
		events:   make(chan StepResult, 16),
		runID:    uuid.NewString(),
	}
	if out != nil {
		if err := out.WriteHeader(model.Graph.Names()); err != nil {
			return nil, fmt.Errorf("write header row: %w", err)
		}
	}
	return c, nil
}

// RunID identifies this clock's run in logs and output metadata.
func (c *Clock) RunID() string { return c.runID }

// SetOverrideSource attaches a data-driven override stream. Set it before the
// first step; the clock never rewinds the source.
func (c *Clock) SetOverrideSource(src OverrideSource) { c.input = src }

// Events returns the channel the clock publishes StepResults on. The channel
// is buffered and never blocks the stepping worker: results are dropped when
// no observer keeps up.
func (c *Clock) Events() <-chan StepResult { return c.events }

// State returns the current control state.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentStep returns the next step index to be simulated (equivalently, the
// number of completed steps).
func (c *Clock) CurrentStep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentStep
}

// Run advances the simulation step by step until the declared step count is
// reached (state becomes COMPLETED) or Pause is called from another goroutine.
// It executes on the caller's goroutine.
func (c *Clock) Run() {
	c.mu.Lock()
	if c.state == StateCompleted {
		c.mu.Unlock()
		return
	}
	c.state = StateRunning
	start := c.currentStep
	c.mu.Unlock()

	logrus.Infof("run %s: %s from step %d of %d", c.runID, StateRunning, start, c.maxSteps)

	for {
		c.mu.Lock()
		if c.currentStep >= c.maxSteps {
			c.state = StateCompleted
			c.mu.Unlock()
			break
		}
		if c.state != StateRunning {
			c.mu.Unlock()
			break
		}
		c.mu.Unlock()

		c.next()
	}

	c.flush()
	logrus.Infof("run %s: %s after %d completed steps", c.runID, c.State(), c.CurrentStep())
}

// Pause requests a stop at the next step boundary. Only meaningful while
// running; the in-flight step always completes.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning {
		c.state = StatePaused
	}
}

// Step performs exactly one update and returns to PAUSED. Manual stepping is
// accepted only while paused.
func (c *Clock) Step() error {
	c.mu.Lock()
	if c.state != StatePaused {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("manual step requires %s, clock is %s", StatePaused, state)
	}
	c.mu.Unlock()

	c.next()

	c.mu.Lock()
	if c.currentStep >= c.maxSteps {
		c.state = StateCompleted
	}
	c.mu.Unlock()
	c.flush()
	return nil
}

// next simulates one time step: apply pending overrides, back up every entity
// (capturing the output row), then recompute every entity from the
// previous-value snapshot.
func (c *Clock) next() {
	c.stepMu.Lock()
	defer c.stepMu.Unlock()

	c.mu.Lock()
	step := c.currentStep
	c.mu.Unlock()

	// Override phase: inject externally supplied values for this step index.
	c.applyOverrides(step)

	// Backup phase: previous := current for every entity, in traversal order.
	// The captured snapshot is what this step's output row reports.
	values := make([]float64, 0, c.graph.Len())
	for _, e := range c.graph.Entities() {
		values = append(values, e.CurrentValue())
		e.Backup()
	}

	// Compute phase: every entity recomputes from previous values only, so
	// traversal order cannot leak into the results (flow.go documents the one
	// clamping caveat).
	for _, e := range c.graph.Entities() {
		switch ent := e.(type) {
		case *Control:
			ent.ComputeStep()
		case *Flow:
			ent.Propagate()
		case *Reservoir, *SourceSink:
			// Passive: value changes only as a side effect of flows.
		}
	}

	if c.out != nil {
		if err := c.out.WriteRow(step, values); err != nil {
			logrus.Errorf("run %s: write row for step %d: %v", c.runID, step, err)
		}
	}

	c.mu.Lock()
	c.currentStep = step + 1
	c.mu.Unlock()

	// Publish without blocking the stepping worker.
	select {
	case c.events <- StepResult{Step: step, Values: values}:
	default:
	}

	logrus.Debugf("run %s: completed step %d", c.runID, step)
}

// applyOverrides consumes the pending batch whose step index matches the
// current step, if one exists, and applies each override against the entity's
// current (pre-step) value.
func (c *Clock) applyOverrides(step int) {
	if c.input == nil || !c.input.HasNext() {
		return
	}
	head := c.input.Peek()
	if head == nil || head.Step != step {
		return
	}
	batch := c.input.Next()
	for _, o := range batch.Overrides {
		e, ok := c.graph.Lookup(o.Name)
		if !ok {
			logrus.Warnf("run %s: step %d override names unknown entity %q; skipped", c.runID, step, o.Name)
			continue
		}
		e.SetCurrentValue(o.Mode.Apply(o.Value, e.CurrentValue()))
		logrus.Debugf("run %s: step %d override %s %s=%v", c.runID, step, o.Mode, o.Name, e.CurrentValue())
	}
}

// flush pushes buffered rows to the sink at run/pause boundaries.
func (c *Clock) flush() {
	if c.out == nil {
		return
	}
	if err := c.out.Flush(); err != nil {
		logrus.Errorf("run %s: flush output: %v", c.runID, err)
	}
}
