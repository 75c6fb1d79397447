package substruct

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"
)

// uniquenessFilter remembers which substructure occurrences a search call
// has already reported.  An occurrence is identified by the set of target
// bonds and target atoms a mapping covers, so mappings that differ only by
// a query automorphism share a key.
//
// Keys live in one bitset: bits [0, numBonds) are target bonds, the rest are
// target atoms offset by numBonds.  Keys are bucketed by an xxhash of their
// set bits and compared exactly within a bucket.
type uniquenessFilter struct {
	seen     map[uint64][]*bitset.BitSet
	scratch  *bitset.BitSet
	buf      []byte
	numBonds int
	size     uint
}

// reset forgets all keys and sizes the filter for a target graph.
func (f *uniquenessFilter) reset(numTargetAtoms, numTargetBonds int) {
	if f.seen == nil {
		f.seen = make(map[uint64][]*bitset.BitSet)
	} else {
		clear(f.seen)
	}
	f.numBonds = numTargetBonds
	f.size = uint(numTargetAtoms + numTargetBonds)
	f.scratch = bitset.New(f.size)
}

// insert records m's key and reports whether it was new.
func (f *uniquenessFilter) insert(m *Mapping) bool {
	key := f.scratch
	key.ClearAll()
	for _, tb := range m.bonds {
		if tb != unmapped {
			key.Set(uint(tb))
		}
	}
	for _, ta := range m.atoms {
		if ta != unmapped {
			key.Set(uint(f.numBonds + ta))
		}
	}

	f.buf = f.buf[:0]
	for i, ok := key.NextSet(0); ok; i, ok = key.NextSet(i + 1) {
		f.buf = binary.LittleEndian.AppendUint32(f.buf, uint32(i))
	}
	h := xxhash.Sum64(f.buf)

	for _, prev := range f.seen[h] {
		if prev.Equal(key) {
			return false
		}
	}
	f.seen[h] = append(f.seen[h], key.Clone())
	return true
}

// len returns the number of distinct keys recorded.
func (f *uniquenessFilter) len() int {
	n := 0
	for _, bucket := range f.seen {
		n += len(bucket)
	}
	return n
}
