package substruct

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testGraph is a minimal labelled Graph.  An empty label on a query element
// matches anything.
type testGraph struct {
	id         string
	labels     []string
	roles      []Role
	bonds      [][2]int
	bondLabels []string
	adj        [][]int
}

func newTestGraph(id string, labels ...string) *testGraph {
	g := &testGraph{id: id, labels: labels}
	g.roles = make([]Role, len(labels))
	g.adj = make([][]int, len(labels))
	for i := range g.roles {
		g.roles[i] = RoleNone
	}
	return g
}

// chain builds an unlabelled path of n atoms.
func chain(id string, n int) *testGraph {
	g := newTestGraph(id, make([]string, n)...)
	for i := 1; i < n; i++ {
		g.bond(i-1, i)
	}
	return g
}

// ring builds an unlabelled cycle of n atoms.
func ring(id string, n int) *testGraph {
	g := chain(id, n)
	g.bond(n-1, 0)
	return g
}

func (g *testGraph) bond(a, b int) *testGraph {
	return g.labelledBond(a, b, "")
}

func (g *testGraph) labelledBond(a, b int, label string) *testGraph {
	g.bonds = append(g.bonds, [2]int{a, b})
	g.bondLabels = append(g.bondLabels, label)
	if a >= 0 && a < len(g.adj) && b >= 0 && b < len(g.adj) {
		g.adj[a] = append(g.adj[a], b)
		g.adj[b] = append(g.adj[b], a)
	}
	return g
}

// grow appends an unlabelled atom bonded to atom to.
func (g *testGraph) grow(to int) *testGraph {
	g.labels = append(g.labels, "")
	g.roles = append(g.roles, RoleNone)
	g.adj = append(g.adj, nil)
	return g.bond(to, len(g.labels)-1)
}

func (g *testGraph) withRoles(roles ...Role) *testGraph {
	copy(g.roles, roles)
	return g
}

func (g *testGraph) ID() string          { return g.id }
func (g *testGraph) NumAtoms() int       { return len(g.labels) }
func (g *testGraph) NumBonds() int       { return len(g.bonds) }
func (g *testGraph) AtomRole(a int) Role { return g.roles[a] }

func (g *testGraph) AtomNeighbors(a int) []int { return g.adj[a] }

func (g *testGraph) BondRole(b int) Role {
	a := g.bonds[b][0]
	if a < 0 || a >= len(g.roles) {
		return RoleNone
	}
	return g.roles[a]
}

func (g *testGraph) BondAtoms(b int) (int, int) {
	return g.bonds[b][0], g.bonds[b][1]
}

func (g *testGraph) BondBetween(a1, a2 int) (int, bool) {
	for i, e := range g.bonds {
		if (e[0] == a1 && e[1] == a2) || (e[0] == a2 && e[1] == a1) {
			return i, true
		}
	}
	return -1, false
}

// labelPredicates matches atoms and bonds by label.
type labelPredicates struct{}

func labelMatch(q, t string) bool { return q == "" || q == t }

func (labelPredicates) AtomPredicates(Graph, int) []AtomPredicate {
	return []AtomPredicate{LocalAtomPredicate(func(q Graph, qa int, t Graph, ta int) bool {
		return labelMatch(q.(*testGraph).labels[qa], t.(*testGraph).labels[ta])
	})}
}

func (labelPredicates) BondPredicates(Graph, int) []BondPredicate {
	return []BondPredicate{LocalBondPredicate(func(q Graph, qb int, t Graph, tb int) bool {
		return labelMatch(q.(*testGraph).bondLabels[qb], t.(*testGraph).bondLabels[tb])
	})}
}

func (labelPredicates) GraphPredicates(Graph) []GraphPredicate { return nil }

// bruteForce enumerates every injective role- and label-preserving atom
// map and keeps those whose query bonds all land on matching target bonds.
// It returns the number of mappings and the number of distinct covered
// target substructures.
func bruteForce(q, t *testGraph, roles Role) (total, distinct int) {
	var eligible []int
	for a := range q.labels {
		if roles.Has(q.roles[a]) {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		return 0, 0
	}

	assign := make([]int, len(q.labels))
	used := make([]bool, len(t.labels))
	keys := make(map[string]struct{})

	var rec func(i int)
	rec = func(i int) {
		if i == len(eligible) {
			var tbonds, tatoms []int
			for b, e := range q.bonds {
				if !roles.Has(q.BondRole(b)) {
					continue
				}
				tb, ok := t.BondBetween(assign[e[0]], assign[e[1]])
				if !ok || !labelMatch(q.bondLabels[b], t.bondLabels[tb]) {
					return
				}
				tbonds = append(tbonds, tb)
			}
			for _, qa := range eligible {
				tatoms = append(tatoms, assign[qa])
			}
			sort.Ints(tbonds)
			sort.Ints(tatoms)
			total++
			keys[fmt.Sprint(tbonds, tatoms)] = struct{}{}
			return
		}
		qa := eligible[i]
		for ta := range t.labels {
			if used[ta] || t.roles[ta] != q.roles[qa] || !labelMatch(q.labels[qa], t.labels[ta]) {
				continue
			}
			used[ta] = true
			assign[qa] = ta
			rec(i + 1)
			used[ta] = false
		}
	}
	rec(0)
	return total, len(keys)
}

// randomGraph builds a graph of n atoms with labels drawn from atomLabels,
// roles drawn from roles, and each same-role pair bonded with probability p.
func randomGraph(rng *rand.Rand, id string, n int, p float64, atomLabels, bondLabels []string, roles []Role) *testGraph {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = atomLabels[rng.Intn(len(atomLabels))]
	}
	g := newTestGraph(id, labels...)
	for i := range g.roles {
		g.roles[i] = roles[rng.Intn(len(roles))]
	}
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			if g.roles[a] == g.roles[b] && rng.Float64() < p {
				g.labelledBond(a, b, bondLabels[rng.Intn(len(bondLabels))])
			}
		}
	}
	return g
}

// requireSound checks that m respects roles, labels, injectivity and target
// connectivity.
func requireSound(t *testing.T, q, tg *testGraph, roles Role, m *Mapping) {
	t.Helper()
	seenAtoms := make(map[int]bool)
	for _, p := range m.AtomPairs() {
		require.True(t, roles.Has(q.roles[p.Query]), "atom %d has a disabled role", p.Query)
		require.Equal(t, q.roles[p.Query], tg.roles[p.Target])
		require.True(t, labelMatch(q.labels[p.Query], tg.labels[p.Target]))
		require.False(t, seenAtoms[p.Target], "target atom %d used twice", p.Target)
		seenAtoms[p.Target] = true
	}
	seenBonds := make(map[int]bool)
	for _, p := range m.BondPairs() {
		qa1, qa2 := q.BondAtoms(p.Query)
		ta1, _ := m.Atom(qa1)
		ta2, _ := m.Atom(qa2)
		tb, ok := tg.BondBetween(ta1, ta2)
		require.True(t, ok)
		require.Equal(t, tb, p.Target)
		require.True(t, labelMatch(q.bondLabels[p.Query], tg.bondLabels[p.Target]))
		require.False(t, seenBonds[p.Target], "target bond %d used twice", p.Target)
		seenBonds[p.Target] = true
	}
	// every enabled query bond is mapped
	for b := range q.bonds {
		_, ok := m.Bond(b)
		require.Equal(t, roles.Has(q.BondRole(b)), ok, "bond %d", b)
	}
}

func mappingStrings(e *Engine) []string {
	out := make([]string, 0, e.NumMappings())
	for _, m := range e.Mappings() {
		out = append(out, m.String())
	}
	return out
}

func describe(g *testGraph) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s labels=%v roles=%v bonds=%v", g.id, g.labels, g.roles, g.bonds)
	return sb.String()
}
