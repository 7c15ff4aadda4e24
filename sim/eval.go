package sim

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// Evaluator computes a fully substituted literal arithmetic (or comparison)
// expression. It is the one external capability the control engine depends on;
// its grammar is not specified here. Comparison results map to 1 (true) and
// 0 (false).
type Evaluator interface {
	Evaluate(expr string) (float64, error)
}

// ExprEvaluator adapts govaluate to the Evaluator interface. The zero value is
// ready to use.
type ExprEvaluator struct{}

// Evaluate parses and evaluates expr. Expressions are fully substituted before
// they get here, so no variable bindings are passed.
func (ExprEvaluator) Evaluate(expr string) (float64, error) {
	parsed, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", expr, err)
	}
	result, err := parsed.Evaluate(nil)
	if err != nil {
		return 0, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	switch v := result.(type) {
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("evaluate %q: non-numeric result %v", expr, result)
	}
}
