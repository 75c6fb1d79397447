// Package molecule provides the molecule and reaction graph model that the
// substructure engine matches over, together with the chemistry-flavoured
// predicate library and conversion from and to the document format.
//
// A Graph is a list of components, each carrying one reaction role.  A plain
// molecule is a single component with role none.  Atoms and bonds are
// numbered graph-wide in insertion order.
package molecule

import (
	"github.com/google/uuid"

	"github.com/turtacn/molmatch/internal/domain/substruct"
	"github.com/turtacn/molmatch/pkg/errors"
	mtypes "github.com/turtacn/molmatch/pkg/types/molecule"
)

// ─────────────────────────────────────────────────────────────────────────────
// Value objects
// ─────────────────────────────────────────────────────────────────────────────

// BondOrder is the order of a bond.  BondAny is only meaningful in queries.
type BondOrder int

const (
	BondSingle BondOrder = iota + 1
	BondDouble
	BondTriple
	BondAromatic
	BondAny
)

var bondOrderNames = map[BondOrder]mtypes.BondOrderName{
	BondSingle:   mtypes.BondSingle,
	BondDouble:   mtypes.BondDouble,
	BondTriple:   mtypes.BondTriple,
	BondAromatic: mtypes.BondAromatic,
	BondAny:      mtypes.BondAny,
}

// Name returns the document name of o.
func (o BondOrder) Name() mtypes.BondOrderName {
	if n, ok := bondOrderNames[o]; ok {
		return n
	}
	return "unknown"
}

func (o BondOrder) String() string { return string(o.Name()) }

// ParseBondOrder converts a document bond order; "" means single.
func ParseBondOrder(name mtypes.BondOrderName) (BondOrder, error) {
	if name == "" {
		return BondSingle, nil
	}
	for o, n := range bondOrderNames {
		if n == name {
			return o, nil
		}
	}
	return 0, errors.New(errors.CodeMoleculeInvalidFormat, "unknown bond order").
		WithDetailf("order=%q", name)
}

// Atom is one atom.  Isotope 0 means natural abundance; MapNumber 0 means
// the atom carries no reaction atom map.
type Atom struct {
	Symbol    string
	Charge    int
	Isotope   int
	Aromatic  bool
	Hydrogens int
	MapNumber int
}

// Bond connects two atoms of the same component by graph-wide index.
type Bond struct {
	Begin    int
	End      int
	Order    BondOrder
	Aromatic bool
}

// IsAromatic reports whether the bond is aromatic by order or flag.
func (b Bond) IsAromatic() bool {
	return b.Aromatic || b.Order == BondAromatic
}

// Component is a fragment of a Graph with a single reaction role.
type Component struct {
	Role  substruct.Role
	Atoms []int
	Bonds []int
}

// ─────────────────────────────────────────────────────────────────────────────
// Graph
// ─────────────────────────────────────────────────────────────────────────────

// Graph is a molecule or reaction.  It implements substruct.Graph,
// substruct.Validator and substruct.Versioned.  A Graph must not be modified
// while a search is using it.
type Graph struct {
	id   string
	name string

	atoms      []Atom
	bonds      []Bond
	components []Component

	atomComponent []int
	adjacency     [][]int
	incident      [][]int

	version uint64
}

var (
	_ substruct.Graph     = (*Graph)(nil)
	_ substruct.Validator = (*Graph)(nil)
	_ substruct.Versioned = (*Graph)(nil)
)

// NewGraph returns an empty graph with a random UUID identity.
func NewGraph(name string) *Graph {
	return NewGraphWithID(uuid.NewString(), name)
}

// NewGraphWithID returns an empty graph with the given identity.
func NewGraphWithID(id, name string) *Graph {
	if id == "" {
		id = uuid.NewString()
	}
	return &Graph{id: id, name: name}
}

// AddComponent appends a component with the given single role and returns
// its index.
func (g *Graph) AddComponent(role substruct.Role) (int, error) {
	if !role.IsSingle() {
		return -1, errors.InvalidParam("component role must be a single role").
			WithDetailf("role=%s", role)
	}
	g.components = append(g.components, Component{Role: role})
	g.version++
	return len(g.components) - 1, nil
}

// AddAtom appends an atom to component and returns its graph-wide index.
func (g *Graph) AddAtom(component int, a Atom) (int, error) {
	if component < 0 || component >= len(g.components) {
		return -1, errors.New(errors.CodeMalformedGraph, "atom references a missing component").
			WithDetailf("graph=%s component=%d", g.id, component)
	}
	idx := len(g.atoms)
	g.atoms = append(g.atoms, a)
	g.atomComponent = append(g.atomComponent, component)
	g.adjacency = append(g.adjacency, nil)
	g.incident = append(g.incident, nil)
	g.components[component].Atoms = append(g.components[component].Atoms, idx)
	g.version++
	return idx, nil
}

// SetAtom replaces the properties of atom i.  Its bonds and component are
// unchanged.
func (g *Graph) SetAtom(i int, a Atom) error {
	if i < 0 || i >= len(g.atoms) {
		return errors.IndexOutOfRange(i, len(g.atoms))
	}
	g.atoms[i] = a
	g.version++
	return nil
}

// AddBond appends a bond and returns its graph-wide index.  Both atoms must
// exist, differ, belong to the same component and not be bonded already.
func (g *Graph) AddBond(b Bond) (int, error) {
	n := len(g.atoms)
	switch {
	case b.Begin < 0 || b.Begin >= n || b.End < 0 || b.End >= n:
		return -1, errors.New(errors.CodeMalformedGraph, "bond references a missing atom").
			WithDetailf("graph=%s atoms=(%d,%d) num_atoms=%d", g.id, b.Begin, b.End, n)
	case b.Begin == b.End:
		return -1, errors.New(errors.CodeMalformedGraph, "bond is a self loop").
			WithDetailf("graph=%s atom=%d", g.id, b.Begin)
	case g.atomComponent[b.Begin] != g.atomComponent[b.End]:
		return -1, errors.New(errors.CodeMalformedGraph, "bond crosses components").
			WithDetailf("graph=%s atoms=(%d,%d)", g.id, b.Begin, b.End)
	}
	if _, ok := g.BondBetween(b.Begin, b.End); ok {
		return -1, errors.New(errors.CodeMalformedGraph, "duplicate bond").
			WithDetailf("graph=%s atoms=(%d,%d)", g.id, b.Begin, b.End)
	}
	if b.Order == 0 {
		b.Order = BondSingle
	}

	idx := len(g.bonds)
	g.bonds = append(g.bonds, b)
	g.adjacency[b.Begin] = append(g.adjacency[b.Begin], b.End)
	g.incident[b.Begin] = append(g.incident[b.Begin], idx)
	g.adjacency[b.End] = append(g.adjacency[b.End], b.Begin)
	g.incident[b.End] = append(g.incident[b.End], idx)
	comp := g.atomComponent[b.Begin]
	g.components[comp].Bonds = append(g.components[comp].Bonds, idx)
	g.version++
	return idx, nil
}

// Version advances on every mutation.
func (g *Graph) Version() uint64 { return g.version }

func (g *Graph) ID() string   { return g.id }
func (g *Graph) Name() string { return g.name }

func (g *Graph) NumAtoms() int      { return len(g.atoms) }
func (g *Graph) NumBonds() int      { return len(g.bonds) }
func (g *Graph) NumComponents() int { return len(g.components) }

// Atom returns atom i.  i must be in range.
func (g *Graph) Atom(i int) Atom { return g.atoms[i] }

// Bond returns bond i.  i must be in range.
func (g *Graph) Bond(i int) Bond { return g.bonds[i] }

// Component returns component i.  The slices are shared with the graph.
func (g *Graph) Component(i int) Component { return g.components[i] }

func (g *Graph) AtomRole(atom int) substruct.Role {
	return g.components[g.atomComponent[atom]].Role
}

func (g *Graph) BondRole(bond int) substruct.Role {
	return g.AtomRole(g.bonds[bond].Begin)
}

func (g *Graph) AtomNeighbors(atom int) []int { return g.adjacency[atom] }

func (g *Graph) BondAtoms(bond int) (int, int) {
	b := g.bonds[bond]
	return b.Begin, b.End
}

func (g *Graph) BondBetween(a1, a2 int) (int, bool) {
	if a1 < 0 || a1 >= len(g.adjacency) {
		return -1, false
	}
	for i, nb := range g.adjacency[a1] {
		if nb == a2 {
			return g.incident[a1][i], true
		}
	}
	return -1, false
}

// Validate checks the internal consistency of g.
func (g *Graph) Validate() error {
	if len(g.atomComponent) != len(g.atoms) || len(g.adjacency) != len(g.atoms) {
		return errors.New(errors.CodeMalformedGraph, "atom tables out of sync").
			WithDetailf("graph=%s", g.id)
	}
	for i, c := range g.components {
		if !c.Role.IsSingle() {
			return errors.New(errors.CodeMalformedGraph, "component has no single role").
				WithDetailf("graph=%s component=%d", g.id, i)
		}
	}
	for a, c := range g.atomComponent {
		if c < 0 || c >= len(g.components) {
			return errors.New(errors.CodeMalformedGraph, "atom references a missing component").
				WithDetailf("graph=%s atom=%d component=%d", g.id, a, c)
		}
	}
	for i, b := range g.bonds {
		if b.Begin < 0 || b.Begin >= len(g.atoms) || b.End < 0 || b.End >= len(g.atoms) || b.Begin == b.End {
			return errors.New(errors.CodeMalformedGraph, "bond endpoints invalid").
				WithDetailf("graph=%s bond=%d", g.id, i)
		}
		if g.atomComponent[b.Begin] != g.atomComponent[b.End] {
			return errors.New(errors.CodeMalformedGraph, "bond crosses components").
				WithDetailf("graph=%s bond=%d", g.id, i)
		}
	}
	return nil
}
