package substruct

// Predicates come in two phases.  Local predicates only look at the two
// elements being compared and are folded into the equivalence bitsets before
// the search starts.  Mapped predicates also see a tentative complete
// mapping and are evaluated when the search reaches one.  The phase is part
// of the type so a provider cannot mislabel it.

// AtomPredicate is either a LocalAtomPredicate or a MappedAtomPredicate.
type AtomPredicate interface {
	atomPredicate()
}

// BondPredicate is either a LocalBondPredicate or a MappedBondPredicate.
type BondPredicate interface {
	bondPredicate()
}

// LocalAtomPredicate decides whether query atom qa may map to target atom ta.
type LocalAtomPredicate func(query Graph, qa int, target Graph, ta int) bool

// MappedAtomPredicate decides whether the pair (qa, ta) is acceptable within
// the complete mapping m.
type MappedAtomPredicate func(query Graph, qa int, target Graph, ta int, m *Mapping) bool

// LocalBondPredicate decides whether query bond qb may map to target bond tb.
type LocalBondPredicate func(query Graph, qb int, target Graph, tb int) bool

// MappedBondPredicate decides whether the pair (qb, tb) is acceptable within
// the complete mapping m.
type MappedBondPredicate func(query Graph, qb int, target Graph, tb int, m *Mapping) bool

// GraphPredicate decides whether a complete mapping as a whole is acceptable.
type GraphPredicate func(query, target Graph, m *Mapping) bool

func (LocalAtomPredicate) atomPredicate()  {}
func (MappedAtomPredicate) atomPredicate() {}
func (LocalBondPredicate) bondPredicate()  {}
func (MappedBondPredicate) bondPredicate() {}

// PredicateProvider supplies the predicates attached to query elements.  The
// engine asks once per query and memoises the answer until the query
// changes, so providers may do per-query precomputation.
type PredicateProvider interface {
	AtomPredicates(query Graph, atom int) []AtomPredicate
	BondPredicates(query Graph, bond int) []BondPredicate
	GraphPredicates(query Graph) []GraphPredicate
}

// NoPredicates matches every same-role pair.
type NoPredicates struct{}

func (NoPredicates) AtomPredicates(Graph, int) []AtomPredicate { return nil }
func (NoPredicates) BondPredicates(Graph, int) []BondPredicate { return nil }
func (NoPredicates) GraphPredicates(Graph) []GraphPredicate    { return nil }

// queryPredicates is the phase-split predicate table of one query.
type queryPredicates struct {
	localAtoms  [][]LocalAtomPredicate
	mappedAtoms [][]MappedAtomPredicate
	localBonds  [][]LocalBondPredicate
	mappedBonds [][]MappedBondPredicate
	graph       []GraphPredicate

	// mapped is true when any mapping-aware predicate exists.
	mapped bool
}

func compilePredicates(p PredicateProvider, q Graph) *queryPredicates {
	qp := &queryPredicates{
		localAtoms:  make([][]LocalAtomPredicate, q.NumAtoms()),
		mappedAtoms: make([][]MappedAtomPredicate, q.NumAtoms()),
		localBonds:  make([][]LocalBondPredicate, q.NumBonds()),
		mappedBonds: make([][]MappedBondPredicate, q.NumBonds()),
	}
	if p == nil {
		return qp
	}

	for a := range qp.localAtoms {
		for _, pred := range p.AtomPredicates(q, a) {
			switch fn := pred.(type) {
			case LocalAtomPredicate:
				if fn != nil {
					qp.localAtoms[a] = append(qp.localAtoms[a], fn)
				}
			case MappedAtomPredicate:
				if fn != nil {
					qp.mappedAtoms[a] = append(qp.mappedAtoms[a], fn)
					qp.mapped = true
				}
			}
		}
	}
	for b := range qp.localBonds {
		for _, pred := range p.BondPredicates(q, b) {
			switch fn := pred.(type) {
			case LocalBondPredicate:
				if fn != nil {
					qp.localBonds[b] = append(qp.localBonds[b], fn)
				}
			case MappedBondPredicate:
				if fn != nil {
					qp.mappedBonds[b] = append(qp.mappedBonds[b], fn)
					qp.mapped = true
				}
			}
		}
	}
	for _, fn := range p.GraphPredicates(q) {
		if fn != nil {
			qp.graph = append(qp.graph, fn)
			qp.mapped = true
		}
	}
	return qp
}

func (qp *queryPredicates) atomLocal(q Graph, qa int, t Graph, ta int) bool {
	for _, fn := range qp.localAtoms[qa] {
		if !fn(q, qa, t, ta) {
			return false
		}
	}
	return true
}

func (qp *queryPredicates) bondLocal(q Graph, qb int, t Graph, tb int) bool {
	for _, fn := range qp.localBonds[qb] {
		if !fn(q, qb, t, tb) {
			return false
		}
	}
	return true
}

// accepts evaluates every mapping-aware predicate against m.  Unmapped
// elements (disabled roles) are skipped.
func (qp *queryPredicates) accepts(q, t Graph, m *Mapping) bool {
	if !qp.mapped {
		return true
	}
	for qa, preds := range qp.mappedAtoms {
		ta, ok := m.Atom(qa)
		if !ok {
			continue
		}
		for _, fn := range preds {
			if !fn(q, qa, t, ta, m) {
				return false
			}
		}
	}
	for qb, preds := range qp.mappedBonds {
		tb, ok := m.Bond(qb)
		if !ok {
			continue
		}
		for _, fn := range preds {
			if !fn(q, qb, t, tb, m) {
				return false
			}
		}
	}
	for _, fn := range qp.graph {
		if !fn(q, t, m) {
			return false
		}
	}
	return true
}
