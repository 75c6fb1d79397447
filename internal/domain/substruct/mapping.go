package substruct

import (
	"fmt"
	"strings"
)

const unmapped = -1

// Pair is one query→target correspondence.
type Pair struct {
	Query  int
	Target int
}

// Mapping is an injective correspondence from query atoms and bonds to
// target atoms and bonds.  Elements whose role was disabled for the search
// are left unmapped.
//
// Mappings returned by an Engine are owned by it and stay valid until the
// next search call or ClearMappings.  Use Clone to keep one longer.
type Mapping struct {
	atoms []int
	bonds []int
}

// reset sizes m for a query and marks every element unmapped.
func (m *Mapping) reset(numAtoms, numBonds int) {
	m.atoms = resizeFill(m.atoms, numAtoms)
	m.bonds = resizeFill(m.bonds, numBonds)
}

// load copies a search assignment into m.
func (m *Mapping) load(atoms, bonds []int) {
	m.atoms = append(m.atoms[:0], atoms...)
	m.bonds = append(m.bonds[:0], bonds...)
}

func resizeFill(s []int, n int) []int {
	if cap(s) < n {
		s = make([]int, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = unmapped
	}
	return s
}

// Atom returns the target atom query atom q maps to.
func (m *Mapping) Atom(q int) (int, bool) {
	if q < 0 || q >= len(m.atoms) || m.atoms[q] == unmapped {
		return unmapped, false
	}
	return m.atoms[q], true
}

// Bond returns the target bond query bond q maps to.
func (m *Mapping) Bond(q int) (int, bool) {
	if q < 0 || q >= len(m.bonds) || m.bonds[q] == unmapped {
		return unmapped, false
	}
	return m.bonds[q], true
}

// NumAtoms returns the number of mapped atom pairs.
func (m *Mapping) NumAtoms() int { return countMapped(m.atoms) }

// NumBonds returns the number of mapped bond pairs.
func (m *Mapping) NumBonds() int { return countMapped(m.bonds) }

func countMapped(s []int) int {
	n := 0
	for _, v := range s {
		if v != unmapped {
			n++
		}
	}
	return n
}

// AtomPairs lists the mapped atoms in ascending query index order.
func (m *Mapping) AtomPairs() []Pair { return pairs(m.atoms) }

// BondPairs lists the mapped bonds in ascending query index order.
func (m *Mapping) BondPairs() []Pair { return pairs(m.bonds) }

func pairs(s []int) []Pair {
	out := make([]Pair, 0, len(s))
	for q, t := range s {
		if t != unmapped {
			out = append(out, Pair{Query: q, Target: t})
		}
	}
	return out
}

// Clone returns a copy of m not owned by any engine.
func (m *Mapping) Clone() *Mapping {
	c := &Mapping{}
	c.load(m.atoms, m.bonds)
	return c
}

// String renders m as "atoms{q:t ...} bonds{q:t ...}".
func (m *Mapping) String() string {
	var sb strings.Builder
	writePairs(&sb, "atoms", m.atoms)
	sb.WriteByte(' ')
	writePairs(&sb, "bonds", m.bonds)
	return sb.String()
}

func writePairs(sb *strings.Builder, label string, s []int) {
	sb.WriteString(label)
	sb.WriteByte('{')
	first := true
	for q, t := range s {
		if t == unmapped {
			continue
		}
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		fmt.Fprintf(sb, "%d:%d", q, t)
	}
	sb.WriteByte('}')
}
