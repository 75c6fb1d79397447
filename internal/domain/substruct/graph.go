package substruct

import (
	"github.com/turtacn/molmatch/pkg/errors"
)

// Graph is the read-only view of a molecule or reaction the engine matches
// over.  Atoms and bonds are addressed by their stable zero-based index; the
// engine never holds references to implementation objects.
//
// Implementations must not change while a search call that borrows them is
// running.
type Graph interface {
	// ID identifies the graph in logs and results.
	ID() string

	NumAtoms() int
	NumBonds() int

	// AtomRole and BondRole return the single role of the element's owning
	// component.  A bond's role equals the role of both its atoms.
	AtomRole(atom int) Role
	BondRole(bond int) Role

	// AtomNeighbors returns the atoms bonded to atom.  The order is the
	// graph's own and determines candidate order during search.
	AtomNeighbors(atom int) []int

	// BondAtoms returns the two endpoints of bond.
	BondAtoms(bond int) (int, int)

	// BondBetween returns the bond connecting a1 and a2, if any.
	BondBetween(a1, a2 int) (int, bool)
}

// Validator is implemented by graphs that can check their own structure.
// The engine calls Validate at the start of each search that uses the graph.
type Validator interface {
	Validate() error
}

// Versioned is implemented by mutable graphs.  Version must change on every
// mutation; the engine recompiles query predicates when it does.
type Versioned interface {
	Version() uint64
}

func graphVersion(g Graph) uint64 {
	if v, ok := g.(Versioned); ok {
		return v.Version()
	}
	return 0
}

// checkGraph runs the graph's own validation and then verifies what the
// search relies on: single roles, bond endpoints in range and distinct,
// bond roles agreeing with their endpoints, and adjacency agreeing with the
// bond list.
func checkGraph(g Graph, kind string) error {
	if v, ok := g.(Validator); ok {
		if err := v.Validate(); err != nil {
			return errors.Wrap(err, errors.CodeMalformedGraph, kind+" graph failed validation").
				WithDetailf("graph=%s", g.ID())
		}
	}

	n := g.NumAtoms()
	for a := 0; a < n; a++ {
		if !g.AtomRole(a).IsSingle() {
			return errors.New(errors.CodeMalformedGraph, kind+" atom has no single role").
				WithDetailf("graph=%s atom=%d role=%s", g.ID(), a, g.AtomRole(a))
		}
	}
	for b := 0; b < g.NumBonds(); b++ {
		a1, a2 := g.BondAtoms(b)
		if a1 < 0 || a1 >= n || a2 < 0 || a2 >= n {
			return errors.New(errors.CodeMalformedGraph, kind+" bond references a missing atom").
				WithDetailf("graph=%s bond=%d atoms=(%d,%d) num_atoms=%d", g.ID(), b, a1, a2, n)
		}
		if a1 == a2 {
			return errors.New(errors.CodeMalformedGraph, kind+" bond is a self loop").
				WithDetailf("graph=%s bond=%d atom=%d", g.ID(), b, a1)
		}
		r := g.BondRole(b)
		if r != g.AtomRole(a1) || r != g.AtomRole(a2) {
			return errors.New(errors.CodeMalformedGraph, kind+" bond role disagrees with its atoms").
				WithDetailf("graph=%s bond=%d", g.ID(), b)
		}
		if found, ok := g.BondBetween(a1, a2); !ok || found != b {
			return errors.New(errors.CodeMalformedGraph, kind+" bond lookup is inconsistent").
				WithDetailf("graph=%s bond=%d atoms=(%d,%d)", g.ID(), b, a1, a2)
		}
	}

	degrees := 0
	for a := 0; a < n; a++ {
		for _, nb := range g.AtomNeighbors(a) {
			if nb < 0 || nb >= n {
				return errors.New(errors.CodeMalformedGraph, kind+" neighbor references a missing atom").
					WithDetailf("graph=%s atom=%d neighbor=%d", g.ID(), a, nb)
			}
			if _, ok := g.BondBetween(a, nb); !ok {
				return errors.New(errors.CodeMalformedGraph, kind+" neighbor has no bond").
					WithDetailf("graph=%s atom=%d neighbor=%d", g.ID(), a, nb)
			}
			degrees++
		}
	}
	if degrees != 2*g.NumBonds() {
		return errors.New(errors.CodeMalformedGraph, kind+" adjacency disagrees with bond list").
			WithDetailf("graph=%s degree_sum=%d num_bonds=%d", g.ID(), degrees, g.NumBonds())
	}
	return nil
}
