package molecule

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molmatch/internal/domain/substruct"
	"github.com/turtacn/molmatch/pkg/errors"
)

// buildMolecule builds a single-component graph from symbols and bonds.
func buildMolecule(t *testing.T, role substruct.Role, symbols []string, bonds ...Bond) *Graph {
	t.Helper()
	g := NewGraph("test")
	c, err := g.AddComponent(role)
	require.NoError(t, err)
	for _, s := range symbols {
		_, err := g.AddAtom(c, Atom{Symbol: s})
		require.NoError(t, err)
	}
	for _, b := range bonds {
		_, err := g.AddBond(b)
		require.NoError(t, err)
	}
	return g
}

func TestNewGraph_AssignsUUID(t *testing.T) {
	g := NewGraph("water")
	_, err := uuid.Parse(g.ID())
	assert.NoError(t, err)
	assert.Equal(t, "water", g.Name())
	assert.NotEqual(t, g.ID(), NewGraph("water").ID())

	assert.Equal(t, "fixed", NewGraphWithID("fixed", "").ID())
	_, err = uuid.Parse(NewGraphWithID("", "").ID())
	assert.NoError(t, err)
}

func TestGraph_BuildAndQuery(t *testing.T) {
	g := NewGraph("rxn")
	r, err := g.AddComponent(substruct.RoleReactant)
	require.NoError(t, err)
	p, err := g.AddComponent(substruct.RoleProduct)
	require.NoError(t, err)

	c0, _ := g.AddAtom(r, Atom{Symbol: "C"})
	o1, _ := g.AddAtom(r, Atom{Symbol: "O"})
	c2, _ := g.AddAtom(p, Atom{Symbol: "C", Charge: 1})

	b0, err := g.AddBond(Bond{Begin: c0, End: o1, Order: BondDouble})
	require.NoError(t, err)

	assert.Equal(t, 3, g.NumAtoms())
	assert.Equal(t, 1, g.NumBonds())
	assert.Equal(t, 2, g.NumComponents())
	assert.Equal(t, substruct.RoleReactant, g.AtomRole(o1))
	assert.Equal(t, substruct.RoleProduct, g.AtomRole(c2))
	assert.Equal(t, substruct.RoleReactant, g.BondRole(b0))
	assert.Equal(t, []int{o1}, g.AtomNeighbors(c0))
	assert.Empty(t, g.AtomNeighbors(c2))
	assert.Equal(t, 1, g.Atom(c2).Charge)
	assert.Equal(t, BondDouble, g.Bond(b0).Order)
	assert.Equal(t, []int{c0, o1}, g.Component(r).Atoms)

	a, b := g.BondAtoms(b0)
	assert.Equal(t, c0, a)
	assert.Equal(t, o1, b)

	idx, ok := g.BondBetween(o1, c0)
	assert.True(t, ok)
	assert.Equal(t, b0, idx)
	_, ok = g.BondBetween(c0, c2)
	assert.False(t, ok)
	_, ok = g.BondBetween(-1, c0)
	assert.False(t, ok)

	assert.NoError(t, g.Validate())
}

func TestGraph_AddBondDefaultsToSingle(t *testing.T) {
	g := buildMolecule(t, substruct.RoleNone, []string{"C", "C"}, Bond{Begin: 0, End: 1})
	assert.Equal(t, BondSingle, g.Bond(0).Order)
}

func TestGraph_BuilderRejectsDefects(t *testing.T) {
	g := NewGraph("bad")
	_, err := g.AddComponent(substruct.RoleReactant | substruct.RoleProduct)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = g.AddAtom(0, Atom{Symbol: "C"})
	assert.True(t, errors.IsCode(err, errors.CodeMalformedGraph))

	c0, _ := g.AddComponent(substruct.RoleReactant)
	c1, _ := g.AddComponent(substruct.RoleProduct)
	a0, _ := g.AddAtom(c0, Atom{Symbol: "C"})
	a1, _ := g.AddAtom(c0, Atom{Symbol: "C"})
	a2, _ := g.AddAtom(c1, Atom{Symbol: "C"})
	_, err = g.AddBond(Bond{Begin: a0, End: a1})
	require.NoError(t, err)

	cases := map[string]Bond{
		"missing atom": {Begin: a0, End: 9},
		"negative":     {Begin: -1, End: a0},
		"self loop":    {Begin: a1, End: a1},
		"cross":        {Begin: a1, End: a2},
		"duplicate":    {Begin: a1, End: a0},
	}
	for name, b := range cases {
		_, err := g.AddBond(b)
		assert.True(t, errors.IsCode(err, errors.CodeMalformedGraph), name)
	}
	assert.Equal(t, 1, g.NumBonds())
	assert.NoError(t, g.Validate())
}

func TestGraph_ValidateDetectsCorruption(t *testing.T) {
	g := buildMolecule(t, substruct.RoleNone, []string{"C", "C"}, Bond{Begin: 0, End: 1})
	g.bonds[0].End = 0
	assert.True(t, errors.IsCode(g.Validate(), errors.CodeMalformedGraph))

	g = buildMolecule(t, substruct.RoleNone, []string{"C"})
	g.components[0].Role = 0
	assert.True(t, errors.IsCode(g.Validate(), errors.CodeMalformedGraph))

	g = buildMolecule(t, substruct.RoleNone, []string{"C"})
	g.atomComponent[0] = 4
	assert.Error(t, g.Validate())

	g = buildMolecule(t, substruct.RoleNone, []string{"C"})
	g.adjacency = nil
	assert.Error(t, g.Validate())
}

func TestBondOrder_Names(t *testing.T) {
	for _, o := range []BondOrder{BondSingle, BondDouble, BondTriple, BondAromatic, BondAny} {
		parsed, err := ParseBondOrder(o.Name())
		require.NoError(t, err)
		assert.Equal(t, o, parsed)
	}
	o, err := ParseBondOrder("")
	require.NoError(t, err)
	assert.Equal(t, BondSingle, o)

	_, err = ParseBondOrder("quadruple")
	assert.True(t, errors.IsCode(err, errors.CodeMoleculeInvalidFormat))
	assert.Equal(t, "unknown", BondOrder(0).String())
	assert.Equal(t, "aromatic", BondAromatic.String())
}

func TestGraph_SetAtomAdvancesVersion(t *testing.T) {
	g := buildMolecule(t, substruct.RoleNone, []string{"C", "C"}, Bond{Begin: 0, End: 1})
	v := g.Version()
	assert.NotZero(t, v)

	require.NoError(t, g.SetAtom(1, Atom{Symbol: "N", Charge: 1}))
	assert.Equal(t, "N", g.Atom(1).Symbol)
	assert.Equal(t, 1, g.Atom(1).Charge)
	assert.Greater(t, g.Version(), v)
	assert.Equal(t, []int{0}, g.AtomNeighbors(1))

	v = g.Version()
	err := g.SetAtom(2, Atom{Symbol: "O"})
	assert.True(t, errors.IsCode(err, errors.CodeIndexOutOfRange))
	assert.Equal(t, v, g.Version())
}
