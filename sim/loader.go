package sim

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"

	"github.com/sirupsen/logrus"
)

// ErrBadDocument reports a configuration document that cannot be loaded.
// Every load failure is fatal: no partial graph is ever returned.
var ErrBadDocument = errors.New("invalid configuration document")

// Model is a fully loaded system: every entity built, every name reference
// resolved, every control initialized.
type Model struct {
	Graph *Graph
	// TimeSteps is the declared total step count from the system element.
	TimeSteps int
}

// Loader parses the XML configuration document, builds the entity graph
// variant by variant, links name references into direct relations, and
// initializes all controls.
type Loader struct {
	Eval Evaluator
}

// NewLoader builds a loader. A nil evaluator defaults to ExprEvaluator.
func NewLoader(eval Evaluator) *Loader {
	if eval == nil {
		eval = ExprEvaluator{}
	}
	return &Loader{Eval: eval}
}

// Document shapes. Optional attributes are pointers so absence is observable.
type xmlSystem struct {
	XMLName   xml.Name     `xml:"system"`
	TimeSteps *int         `xml:"timeSteps,attr"`
	Stocks    []xmlStock   `xml:"stock"`
	Clouds    []xmlCloud   `xml:"cloud"`
	Controls  []xmlControl `xml:"control"`
	Flows     []xmlFlow    `xml:"flow"`
}

type xmlStock struct {
	ID       string   `xml:"id,attr"`
	Name     string   `xml:"name,attr"`
	Units    string   `xml:"units,attr"`
	MaxLevel *float64 `xml:"max_level,attr"`
	CurLevel *int     `xml:"cur_level,attr"`
}

type xmlCloud struct {
	ID    string `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Units string `xml:"units,attr"`
}

type xmlControl struct {
	ID           string   `xml:"id,attr"`
	Name         string   `xml:"name,attr"`
	Function     string   `xml:"function,attr"`
	Type         string   `xml:"type,attr"`
	InitialValue *float64 `xml:"initialvalue,attr"`
}

type xmlFlow struct {
	ID          string   `xml:"id,attr"`
	Name        string   `xml:"name,attr"`
	MaxCapacity *float64 `xml:"max_capacity,attr"`
	CurLevel    *float64 `xml:"cur_level,attr"`
	SrcID       string   `xml:"src_id,attr"`
	SinkID      string   `xml:"sink_id,attr"`
	ControlName string   `xml:"control_name,attr"`
}

// formulaDelims splits control formulas into tokens. Commas, whitespace and
// braces all delimit; empty tokens are discarded.
var formulaDelims = regexp.MustCompile(`[,\s{}]+`)

// LoadFile loads a system configuration from the file at path.
func (l *Loader) LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return l.Load(f)
}

// Load parses the configuration document from r and returns the resolved
// model. Build order follows the document schema: system metadata, then
// stocks, clouds, controls and flows; linking and control initialization run
// after every entity exists.
func (l *Loader) Load(r io.Reader) (*Model, error) {
	var doc xmlSystem
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	if doc.TimeSteps == nil {
		return nil, fmt.Errorf("%w: system element is missing the timeSteps attribute", ErrBadDocument)
	}

	g := NewGraph()
	if err := l.build(g, &doc); err != nil {
		return nil, err
	}
	if err := l.link(g); err != nil {
		return nil, err
	}
	if err := initControls(g); err != nil {
		return nil, err
	}

	logrus.Infof("loaded %d entities, %d declared time steps", g.Len(), *doc.TimeSteps)
	return &Model{Graph: g, TimeSteps: *doc.TimeSteps}, nil
}

// build instantiates every declared entity and inserts it into the graph.
func (l *Loader) build(g *Graph, doc *xmlSystem) error {
	for _, s := range doc.Stocks {
		if s.Name == "" {
			return fmt.Errorf("%w: stock %q is missing a name", ErrBadDocument, s.ID)
		}
		if s.CurLevel == nil {
			return fmt.Errorf("%w: stock %q is missing cur_level", ErrBadDocument, s.Name)
		}
		capacity := math.Inf(1)
		if s.MaxLevel != nil {
			capacity = *s.MaxLevel
		}
		if err := g.Add(NewReservoir(s.Name, s.ID, capacity, s.Units, float64(*s.CurLevel))); err != nil {
			return err
		}
	}

	for _, c := range doc.Clouds {
		if c.Name == "" {
			return fmt.Errorf("%w: cloud %q is missing a name", ErrBadDocument, c.ID)
		}
		if err := g.Add(NewSourceSink(c.Name, c.ID, c.Units)); err != nil {
			return err
		}
	}

	for _, c := range doc.Controls {
		if c.Name == "" {
			return fmt.Errorf("%w: control %q is missing a name", ErrBadDocument, c.ID)
		}
		if !IsValidFuncKind(c.Type) {
			return fmt.Errorf("%w: control %q has unknown function type %q", ErrBadDocument, c.Name, c.Type)
		}
		initial := 0.0
		if c.InitialValue != nil {
			initial = *c.InitialValue
		}
		ctrl := NewControl(c.Name, c.ID, c.Function, FuncKind(c.Type), initial, l.Eval)
		if c.InitialValue != nil {
			// Declared initial value short-circuits formula evaluation at init time.
			ctrl.MarkInitialized()
		}
		if err := g.Add(ctrl); err != nil {
			return err
		}
	}

	for _, f := range doc.Flows {
		if f.Name == "" {
			return fmt.Errorf("%w: flow %q is missing a name", ErrBadDocument, f.ID)
		}
		if f.SrcID == "" || f.SinkID == "" || f.ControlName == "" {
			return fmt.Errorf("%w: flow %q must declare src_id, sink_id and control_name", ErrBadDocument, f.Name)
		}
		maxRate := math.Inf(1)
		if f.MaxCapacity != nil {
			maxRate = *f.MaxCapacity
		}
		startLevel := 0.0
		if f.CurLevel != nil {
			startLevel = *f.CurLevel
		}
		// Despite the attribute names, src_id/sink_id hold entity names.
		if err := g.Add(NewFlow(f.Name, f.ID, maxRate, startLevel, f.SrcID, f.SinkID, f.ControlName)); err != nil {
			return err
		}
	}

	return nil
}

// link resolves every flow's name references into direct relations and hands
// every control the resolved parameters and retained tokens of its formula.
func (l *Loader) link(g *Graph) error {
	for _, e := range g.Entities() {
		switch ent := e.(type) {
		case *Flow:
			source, ok := g.Lookup(ent.SourceName())
			if !ok {
				return fmt.Errorf("%w: flow %q references source %q", ErrUnknownName, ent.Name(), ent.SourceName())
			}
			sink, ok := g.Lookup(ent.SinkName())
			if !ok {
				return fmt.Errorf("%w: flow %q references sink %q", ErrUnknownName, ent.Name(), ent.SinkName())
			}
			ce, ok := g.Lookup(ent.ControlName())
			if !ok {
				return fmt.Errorf("%w: flow %q references control %q", ErrUnknownName, ent.Name(), ent.ControlName())
			}
			ctrl, ok := ce.(*Control)
			if !ok {
				return fmt.Errorf("%w: flow %q names %q as its control, but it is a %s", ErrBadDocument, ent.Name(), ce.Name(), ce.Kind())
			}
			ent.Link(source, sink, ctrl)
		case *Control:
			params, tokens := extractReferences(g, ent.Formula())
			ent.SetParameters(params)
			ent.SetTokens(tokens)
		}
	}
	return nil
}

// extractReferences tokenizes a formula and partitions the tokens: those
// matching an entity name become ordered parameter references, everything else
// is retained verbatim as an operator/literal token.
func extractReferences(g *Graph, formula string) ([]Entity, []string) {
	var params []Entity
	var tokens []string
	for _, tok := range formulaDelims.Split(formula, -1) {
		if tok == "" {
			continue
		}
		if e, ok := g.Lookup(tok); ok {
			params = append(params, e)
		} else {
			tokens = append(tokens, tok)
		}
	}
	return params, tokens
}

// initControls initializes every control that has no declared initial value.
// Iteration order does not matter — Init self-resolves dependency order — but
// any reference cycle aborts the load.
func initControls(g *Graph) error {
	for _, e := range g.Entities() {
		c, ok := e.(*Control)
		if !ok || c.Initialized() {
			continue
		}
		if err := c.Init(); err != nil {
			return err
		}
	}
	return nil
}
