package substruct

import (
	"math/bits"

	"github.com/bits-and-blooms/bitset"
)

func roleIndex(r Role) int {
	return bits.TrailingZeros8(uint8(r))
}

// equivalence holds, for every query element with an enabled role, the set
// of same-role target elements its local predicates accept.  Entries for
// disabled query elements are nil.
type equivalence struct {
	atoms []*bitset.BitSet
	bonds []*bitset.BitSet

	// target elements of each enabled role, ascending
	targetAtoms [4][]int
	targetBonds [4][]int
}

// compute fills e for one query/target pair and reports whether every
// enabled query element has at least one candidate.  Constrained elements
// only consider their constraint targets.  poll is invoked once per query
// element.
func (e *equivalence) compute(
	q, t Graph,
	qp *queryPredicates,
	roles Role,
	atomConstraints, bondConstraints map[int][]int,
	poll func() error,
) (bool, error) {
	for i := range e.targetAtoms {
		e.targetAtoms[i] = e.targetAtoms[i][:0]
		e.targetBonds[i] = e.targetBonds[i][:0]
	}
	for ta := 0; ta < t.NumAtoms(); ta++ {
		if r := t.AtomRole(ta); roles.Has(r) {
			e.targetAtoms[roleIndex(r)] = append(e.targetAtoms[roleIndex(r)], ta)
		}
	}
	for tb := 0; tb < t.NumBonds(); tb++ {
		if r := t.BondRole(tb); roles.Has(r) {
			e.targetBonds[roleIndex(r)] = append(e.targetBonds[roleIndex(r)], tb)
		}
	}

	e.atoms = make([]*bitset.BitSet, q.NumAtoms())
	e.bonds = make([]*bitset.BitSet, q.NumBonds())

	var needAtoms, needBonds [4]int
	eligible := 0
	for qa := range e.atoms {
		r := q.AtomRole(qa)
		if !roles.Has(r) {
			continue
		}
		if err := poll(); err != nil {
			return false, err
		}
		eligible++
		ri := roleIndex(r)
		needAtoms[ri]++
		if needAtoms[ri] > len(e.targetAtoms[ri]) {
			return false, nil
		}

		bs := bitset.New(uint(t.NumAtoms()))
		if allowed, ok := atomConstraints[qa]; ok {
			for _, ta := range allowed {
				if ta >= 0 && ta < t.NumAtoms() && t.AtomRole(ta) == r && qp.atomLocal(q, qa, t, ta) {
					bs.Set(uint(ta))
				}
			}
		} else {
			for _, ta := range e.targetAtoms[ri] {
				if qp.atomLocal(q, qa, t, ta) {
					bs.Set(uint(ta))
				}
			}
		}
		if bs.None() {
			return false, nil
		}
		e.atoms[qa] = bs
	}
	if eligible == 0 {
		return false, nil
	}

	for qb := range e.bonds {
		r := q.BondRole(qb)
		if !roles.Has(r) {
			continue
		}
		if err := poll(); err != nil {
			return false, err
		}
		ri := roleIndex(r)
		needBonds[ri]++
		if needBonds[ri] > len(e.targetBonds[ri]) {
			return false, nil
		}

		bs := bitset.New(uint(t.NumBonds()))
		if allowed, ok := bondConstraints[qb]; ok {
			for _, tb := range allowed {
				if tb >= 0 && tb < t.NumBonds() && t.BondRole(tb) == r && qp.bondLocal(q, qb, t, tb) {
					bs.Set(uint(tb))
				}
			}
		} else {
			for _, tb := range e.targetBonds[ri] {
				if qp.bondLocal(q, qb, t, tb) {
					bs.Set(uint(tb))
				}
			}
		}
		if bs.None() {
			return false, nil
		}
		e.bonds[qb] = bs
	}
	return true, nil
}

func (e *equivalence) eligible(qa int) bool {
	return e.atoms[qa] != nil
}
