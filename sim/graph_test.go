package sim

import (
	"errors"
	"math"
	"testing"
)

func TestGraph_Add_PreservesInsertionOrder(t *testing.T) {
	// GIVEN entities added as B, A, C
	g := NewGraph()
	for _, name := range []string{"B", "A", "C"} {
		if err := g.Add(NewReservoir(name, "1", math.Inf(1), "units", 0)); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}

	// WHEN names are read back
	got := g.Names()

	// THEN traversal order is insertion order, not lexical order
	want := []string{"B", "A", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
	if g.Len() != 3 {
		t.Errorf("Len(): got %d, want 3", g.Len())
	}
}

func TestGraph_Add_DuplicateName_Fails(t *testing.T) {
	// GIVEN a graph already holding "A"
	g := NewGraph()
	if err := g.Add(NewReservoir("A", "1", math.Inf(1), "units", 0)); err != nil {
		t.Fatalf("first Add: %v", err)
	}

	// WHEN a second entity with the same name is added
	err := g.Add(NewSourceSink("A", "2", "units"))

	// THEN it fails with ErrDuplicateName and the graph is unchanged
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("Add duplicate: got %v, want ErrDuplicateName", err)
	}
	if g.Len() != 1 {
		t.Errorf("Len() after rejected Add: got %d, want 1", g.Len())
	}
}

func TestGraph_Lookup(t *testing.T) {
	// GIVEN a graph with one reservoir
	g := NewGraph()
	r := NewReservoir("A", "1", math.Inf(1), "units", 42)
	if err := g.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// WHEN looking up present and absent names
	got, ok := g.Lookup("A")
	_, missing := g.Lookup("nope")

	// THEN the present name resolves to the same entity and the absent one does not
	if !ok || got != Entity(r) {
		t.Errorf("Lookup(A): got %v, ok=%v", got, ok)
	}
	if missing {
		t.Error("Lookup(nope): expected ok=false")
	}
}
