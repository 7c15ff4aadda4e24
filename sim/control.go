package sim

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrCycle reports a reference cycle found while initializing controls.
var ErrCycle = errors.New("control reference cycle")

// FuncKind names the evaluation strategy of a Control.
type FuncKind string

const (
	// FuncConstant always returns the declared initial value.
	FuncConstant FuncKind = "constant"
	// FuncFunction substitutes each {name} reference with that entity's
	// previous value and hands the literal expression to the evaluator.
	FuncFunction FuncKind = "function"
	// FuncRecursive evaluates exactly like FuncFunction; it is expected to
	// reference its own control's past value, which the init protocol handles.
	FuncRecursive FuncKind = "recursive"
	// FuncConditional compares two operand entities and returns one of two
	// literals depending on the result.
	FuncConditional FuncKind = "conditional"
)

// validFuncKinds maps accepted function kind strings.
var validFuncKinds = map[FuncKind]bool{
	FuncConstant:    true,
	FuncFunction:    true,
	FuncRecursive:   true,
	FuncConditional: true,
}

// IsValidFuncKind returns true if the given string is a recognized function kind.
func IsValidFuncKind(kind string) bool {
	return validFuncKinds[FuncKind(kind)]
}

// Control is the computational node of the graph: it acts as a valve for Flows
// and can appear as a parameter of other Controls. A control is usable for
// stepping only after Init has completed exactly once.
type Control struct {
	base
	funcKind FuncKind
	formula  string
	initial  float64

	// params holds the entities referenced by the formula, in reference order.
	// tokens holds every non-entity token of the formula, in order; the
	// conditional kind reads them as [operator, value_if_true, value_if_false].
	params []Entity
	tokens []string

	// initializing flags an Init call in progress (cycle detection);
	// initialized flags completion.
	initializing bool
	initialized  bool

	eval Evaluator
}

// NewControl builds a control with current, previous and initial value all set
// to initial. A nil evaluator defaults to ExprEvaluator.
func NewControl(name, id, formula string, kind FuncKind, initial float64, eval Evaluator) *Control {
	if eval == nil {
		eval = ExprEvaluator{}
	}
	return &Control{
		base:     base{name: name, id: id, kind: KindControl, current: initial, previous: initial},
		funcKind: kind,
		formula:  formula,
		initial:  initial,
		eval:     eval,
	}
}

// FuncKind returns the control's evaluation strategy.
func (c *Control) FuncKind() FuncKind { return c.funcKind }

// Formula returns the raw formula text from the configuration document.
func (c *Control) Formula() string { return c.formula }

// InitialValue returns the value the control settled on at initialization.
func (c *Control) InitialValue() float64 { return c.initial }

// Initialized reports whether Init has completed.
func (c *Control) Initialized() bool { return c.initialized }

// MarkInitialized flags the control as initialized without evaluating its
// formula. The loader uses this when the document declares an explicit
// initialvalue.
func (c *Control) MarkInitialized() { c.initialized = true }

// SetParameters hands the control the resolved entity references found in its
// formula, in reference order. Empty for the constant kind.
func (c *Control) SetParameters(params []Entity) { c.params = params }

// Parameters returns the resolved parameter entities in reference order.
func (c *Control) Parameters() []Entity { return c.params }

// SetTokens hands the control the retained non-entity formula tokens, in order.
func (c *Control) SetTokens(tokens []string) { c.tokens = tokens }

// Init settles the control's initial value, depth-first. Any parameter that is
// itself an uninitialized control is initialized first, so every dependency
// has a stable value before this control evaluates its own. Re-entry while
// already initializing means the formulas reference each other in a cycle,
// which is rejected rather than silently resolved.
func (c *Control) Init() error {
	if c.initializing {
		return fmt.Errorf("%w: initializing %q revisited itself; check initial values and references", ErrCycle, c.name)
	}
	c.initializing = true
	if !c.initialized {
		for _, p := range c.params {
			pc, ok := p.(*Control)
			if !ok || pc.Initialized() {
				continue
			}
			if err := pc.Init(); err != nil {
				return err
			}
		}
		v := c.evaluate()
		c.initial = v
		c.current = v
		c.previous = v
	}
	c.initialized = true
	c.initializing = false
	return nil
}

// ComputeStep recomputes the control's current value from the previous-value
// snapshot of its parameters.
func (c *Control) ComputeStep() {
	c.SetCurrentValue(c.evaluate())
}

// evaluate dispatches on the function kind. Evaluation failures are reported
// and default to 0 so the step completes; they never halt the simulation.
func (c *Control) evaluate() float64 {
	switch c.funcKind {
	case FuncConstant:
		return c.initial
	case FuncFunction, FuncRecursive:
		expr := c.formula
		for _, p := range c.params {
			expr = strings.ReplaceAll(expr, "{"+p.Name()+"}", formatValue(p.PreviousValue()))
		}
		v, err := c.eval.Evaluate(expr)
		if err != nil {
			logrus.Errorf("control %q: %v; defaulting to 0", c.name, err)
			return 0
		}
		return v
	case FuncConditional:
		return c.evaluateConditional()
	default:
		logrus.Errorf("control %q: unknown function kind %q; defaulting to 0", c.name, c.funcKind)
		return 0
	}
}

// evaluateConditional compares the two operand parameters with the retained
// operator token and returns the value_if_true or value_if_false literal.
func (c *Control) evaluateConditional() float64 {
	if len(c.params) < 2 || len(c.tokens) < 3 {
		logrus.Errorf("control %q: conditional needs two operands plus operator/true/false tokens; defaulting to 0", c.name)
		return 0
	}
	expr := formatValue(c.params[0].PreviousValue()) + " " + c.tokens[0] + " " + formatValue(c.params[1].PreviousValue())
	flag, err := c.eval.Evaluate(expr)
	if err != nil {
		logrus.Errorf("control %q: %v; defaulting to 0", c.name, err)
		return 0
	}

	var literal string
	switch flag {
	case 1: // true
		literal = c.tokens[1]
	case 0: // false
		literal = c.tokens[2]
	default:
		logrus.Errorf("control %q: comparison %q returned non-boolean %v; defaulting to 0", c.name, expr, flag)
		return 0
	}

	v, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		logrus.Errorf("control %q: bad result literal %q; defaulting to 0", c.name, literal)
		return 0
	}
	return v
}

// formatValue renders a value at full precision for substitution into an
// expression.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
