package substruct

import (
	"github.com/bits-and-blooms/bitset"
)

// frontierEntry is a query atom adjacent to the already-mapped atom parent.
type frontierEntry struct {
	atom   int
	parent int
}

// mark is a snapshot of every undoable piece of search state.
type mark struct {
	head  int
	tail  int
	atoms int
	bonds int
}

// completionHandler receives each complete assignment.  The slices are the
// live search state and must be copied if kept.
type completionHandler func(atoms, bonds []int) (stop bool, err error)

// searcher is the backtracking assignment search of one engine.  Every frame
// takes a mark on entry and rewinds to it on exit, so the state is empty
// again whenever run returns.
type searcher struct {
	query  Graph
	target Graph
	eq     *equivalence

	forwardCheck bool
	poll         func() error
	onComplete   completionHandler
	stats        *Stats

	atomMap   []int
	bondMap   []int
	usedAtoms *bitset.BitSet
	usedBonds *bitset.BitSet

	frontier []frontierEntry
	head     int

	atomTrail []int
	bondTrail []int

	// eligible query atoms, ascending; new components start from here
	order []int
}

func (s *searcher) reset(q, t Graph, eq *equivalence) {
	s.query, s.target, s.eq = q, t, eq
	s.atomMap = resizeFill(s.atomMap, q.NumAtoms())
	s.bondMap = resizeFill(s.bondMap, q.NumBonds())
	s.usedAtoms = bitset.New(uint(t.NumAtoms()))
	s.usedBonds = bitset.New(uint(t.NumBonds()))
	s.frontier = s.frontier[:0]
	s.head = 0
	s.atomTrail = s.atomTrail[:0]
	s.bondTrail = s.bondTrail[:0]
	s.order = s.order[:0]
	for qa := range eq.atoms {
		if eq.eligible(qa) {
			s.order = append(s.order, qa)
		}
	}
}

// run enumerates assignments until the handler stops it, the space is
// exhausted or poll fails.
func (s *searcher) run() error {
	if len(s.order) == 0 {
		return nil
	}
	_, err := s.extend()
	s.query, s.target, s.eq = nil, nil, nil
	return err
}

func (s *searcher) extend() (bool, error) {
	s.stats.Nodes++
	frame := s.mark()
	defer s.rewind(frame)

	qa, parent := s.nextAtom()
	if qa == unmapped {
		return s.onComplete(s.atomMap, s.bondMap)
	}

	if parent != unmapped {
		for _, ta := range s.target.AtomNeighbors(s.atomMap[parent]) {
			if stop, err := s.try(qa, ta); stop || err != nil {
				return stop, err
			}
		}
		return false, nil
	}

	cands := s.eq.atoms[qa]
	for i, ok := cands.NextSet(0); ok; i, ok = cands.NextSet(i + 1) {
		if stop, err := s.try(qa, int(i)); stop || err != nil {
			return stop, err
		}
	}
	return false, nil
}

// nextAtom pops the frontier, skipping atoms mapped since they were queued.
// With the frontier drained it starts a new component at the lowest
// unmapped eligible atom.
func (s *searcher) nextAtom() (atom, parent int) {
	for s.head < len(s.frontier) {
		e := s.frontier[s.head]
		s.head++
		if s.atomMap[e.atom] == unmapped {
			return e.atom, e.parent
		}
	}
	for _, qa := range s.order {
		if s.atomMap[qa] == unmapped {
			return qa, unmapped
		}
	}
	return unmapped, unmapped
}

func (s *searcher) try(qa, ta int) (bool, error) {
	if err := s.poll(); err != nil {
		return false, err
	}
	s.stats.Candidates++
	if ta < 0 || s.usedAtoms.Test(uint(ta)) || !s.eq.atoms[qa].Test(uint(ta)) {
		return false, nil
	}

	step := s.mark()
	defer s.rewind(step)

	if !s.commitBonds(qa, ta) {
		return false, nil
	}
	if s.forwardCheck && !s.degreeFeasible(qa, ta) {
		return false, nil
	}
	s.assign(qa, ta)
	s.expandFrontier(qa)
	return s.extend()
}

// commitBonds maps every query bond between qa and an already-mapped
// neighbor onto the target bond between ta and that neighbor's image.
func (s *searcher) commitBonds(qa, ta int) bool {
	for _, qn := range s.query.AtomNeighbors(qa) {
		tn := s.atomMap[qn]
		if tn == unmapped {
			continue
		}
		qb, ok := s.query.BondBetween(qa, qn)
		if !ok {
			return false
		}
		tb, ok := s.target.BondBetween(ta, tn)
		if !ok {
			return false
		}
		eq := s.eq.bonds[qb]
		if eq == nil || !eq.Test(uint(tb)) || s.usedBonds.Test(uint(tb)) {
			return false
		}
		s.bondMap[qb] = tb
		s.usedBonds.Set(uint(tb))
		s.bondTrail = append(s.bondTrail, qb)
	}
	return true
}

// degreeFeasible checks that ta has at least as many free neighbors as qa
// has unmapped eligible ones.
func (s *searcher) degreeFeasible(qa, ta int) bool {
	open := 0
	for _, qn := range s.query.AtomNeighbors(qa) {
		if s.eq.eligible(qn) && s.atomMap[qn] == unmapped {
			open++
		}
	}
	if open == 0 {
		return true
	}
	free := 0
	for _, tn := range s.target.AtomNeighbors(ta) {
		if !s.usedAtoms.Test(uint(tn)) {
			free++
			if free >= open {
				return true
			}
		}
	}
	return false
}

func (s *searcher) assign(qa, ta int) {
	s.atomMap[qa] = ta
	s.usedAtoms.Set(uint(ta))
	s.atomTrail = append(s.atomTrail, qa)
}

func (s *searcher) expandFrontier(qa int) {
	for _, qn := range s.query.AtomNeighbors(qa) {
		if s.eq.eligible(qn) && s.atomMap[qn] == unmapped {
			s.frontier = append(s.frontier, frontierEntry{atom: qn, parent: qa})
		}
	}
}

func (s *searcher) mark() mark {
	return mark{
		head:  s.head,
		tail:  len(s.frontier),
		atoms: len(s.atomTrail),
		bonds: len(s.bondTrail),
	}
}

// rewind undoes every assignment, bond commit and frontier change made
// since m was taken.
func (s *searcher) rewind(m mark) {
	for len(s.atomTrail) > m.atoms {
		qa := s.atomTrail[len(s.atomTrail)-1]
		s.atomTrail = s.atomTrail[:len(s.atomTrail)-1]
		s.usedAtoms.Clear(uint(s.atomMap[qa]))
		s.atomMap[qa] = unmapped
	}
	for len(s.bondTrail) > m.bonds {
		qb := s.bondTrail[len(s.bondTrail)-1]
		s.bondTrail = s.bondTrail[:len(s.bondTrail)-1]
		s.usedBonds.Clear(uint(s.bondMap[qb]))
		s.bondMap[qb] = unmapped
	}
	s.frontier = s.frontier[:m.tail]
	s.head = m.head
}

// clean reports whether no search state is left behind.
func (s *searcher) clean() bool {
	if s.head != 0 || len(s.frontier) != 0 || len(s.atomTrail) != 0 || len(s.bondTrail) != 0 {
		return false
	}
	if countMapped(s.atomMap) != 0 || countMapped(s.bondMap) != 0 {
		return false
	}
	if s.usedAtoms != nil && s.usedAtoms.Any() {
		return false
	}
	return s.usedBonds == nil || !s.usedBonds.Any()
}
