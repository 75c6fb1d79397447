package molecule

import (
	"strings"

	"github.com/turtacn/molmatch/internal/domain/substruct"
)

// MatchOptions selects which atom properties a query atom constrains.
// Element and bond order are always compared.
type MatchOptions struct {
	Charge   bool
	Isotope  bool
	Aromatic bool

	// AtomMaps makes mapped query atoms require mapped target atoms and
	// adds AtomMapConstraint as a graph predicate.
	AtomMaps bool
}

// DefaultMatchOptions compares charge, isotope and aromaticity and ignores
// atom maps.
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{Charge: true, Isotope: true, Aromatic: true}
}

// Predicates is the substruct.PredicateProvider for molecule graphs.  Query
// or target graphs of another type never match.
type Predicates struct {
	opts MatchOptions
}

var _ substruct.PredicateProvider = (*Predicates)(nil)

// NewPredicates returns a provider using opts.
func NewPredicates(opts MatchOptions) *Predicates {
	return &Predicates{opts: opts}
}

// Options returns the options the provider was built with.
func (p *Predicates) Options() MatchOptions { return p.opts }

func atomOf(g substruct.Graph, i int) (Atom, bool) {
	mg, ok := g.(*Graph)
	if !ok || i < 0 || i >= len(mg.atoms) {
		return Atom{}, false
	}
	return mg.atoms[i], true
}

func bondOf(g substruct.Graph, i int) (Bond, bool) {
	mg, ok := g.(*Graph)
	if !ok || i < 0 || i >= len(mg.bonds) {
		return Bond{}, false
	}
	return mg.bonds[i], true
}

// IsWildcard reports whether a query symbol matches any element.
func IsWildcard(symbol string) bool {
	switch symbol {
	case "*", "R", "":
		return true
	}
	return false
}

// ElementMatches compares element symbols, ignoring case so that aromatic
// lower-case symbols match their element.
func ElementMatches(query, target string) bool {
	return IsWildcard(query) || strings.EqualFold(query, target)
}

// AtomPredicates implements substruct.PredicateProvider.
func (p *Predicates) AtomPredicates(q substruct.Graph, atom int) []substruct.AtomPredicate {
	qa, ok := atomOf(q, atom)
	if !ok {
		return nil
	}
	opts := p.opts
	local := func(_ substruct.Graph, _ int, t substruct.Graph, ta int) bool {
		a, ok := atomOf(t, ta)
		if !ok || !ElementMatches(qa.Symbol, a.Symbol) {
			return false
		}
		if opts.Charge && qa.Charge != a.Charge {
			return false
		}
		if opts.Isotope && qa.Isotope != 0 && qa.Isotope != a.Isotope {
			return false
		}
		if opts.Aromatic && qa.Aromatic != a.Aromatic {
			return false
		}
		if qa.Hydrogens > a.Hydrogens {
			return false
		}
		if opts.AtomMaps && qa.MapNumber != 0 && a.MapNumber == 0 {
			return false
		}
		return true
	}
	return []substruct.AtomPredicate{substruct.LocalAtomPredicate(local)}
}

// BondPredicates implements substruct.PredicateProvider.
func (p *Predicates) BondPredicates(q substruct.Graph, bond int) []substruct.BondPredicate {
	qb, ok := bondOf(q, bond)
	if !ok {
		return nil
	}
	local := func(_ substruct.Graph, _ int, t substruct.Graph, tb int) bool {
		b, ok := bondOf(t, tb)
		if !ok {
			return false
		}
		switch {
		case qb.Order == BondAny:
			return true
		case qb.IsAromatic():
			return b.IsAromatic()
		default:
			return qb.Order == b.Order && !b.IsAromatic()
		}
	}
	return []substruct.BondPredicate{substruct.LocalBondPredicate(local)}
}

// GraphPredicates implements substruct.PredicateProvider.
func (p *Predicates) GraphPredicates(q substruct.Graph) []substruct.GraphPredicate {
	mg, ok := q.(*Graph)
	if !ok || !p.opts.AtomMaps {
		return nil
	}
	if pred := AtomMapConstraint(mg); pred != nil {
		return []substruct.GraphPredicate{pred}
	}
	return nil
}

// AtomMapConstraint returns a predicate requiring that query atoms sharing
// a non-zero map number land on target atoms sharing a non-zero map number.
// This keeps a reactant atom and its product counterpart on corresponding
// target atoms.  It returns nil when no map number is used twice.
func AtomMapConstraint(q *Graph) substruct.GraphPredicate {
	byMap := make(map[int][]int)
	for i, a := range q.atoms {
		if a.MapNumber != 0 {
			byMap[a.MapNumber] = append(byMap[a.MapNumber], i)
		}
	}
	var groups [][]int
	for _, atoms := range byMap {
		if len(atoms) > 1 {
			groups = append(groups, atoms)
		}
	}
	if len(groups) == 0 {
		return nil
	}

	return func(_, t substruct.Graph, m *substruct.Mapping) bool {
		for _, group := range groups {
			want := 0
			for _, qa := range group {
				ta, ok := m.Atom(qa)
				if !ok {
					continue
				}
				a, ok := atomOf(t, ta)
				if !ok || a.MapNumber == 0 {
					return false
				}
				if want == 0 {
					want = a.MapNumber
				} else if a.MapNumber != want {
					return false
				}
			}
		}
		return true
	}
}
