package substruct

// mappingPool hands out Mapping containers and takes them back in bulk.
// Every container it ever allocated stays in all; free is the subset
// currently available.  FreeAll makes all of them available again, which
// invalidates any Mapping still held by a caller.
type mappingPool struct {
	all  []*Mapping
	free []*Mapping
}

// Get returns a container, allocating one only when none is free.
func (p *mappingPool) Get() *Mapping {
	if n := len(p.free); n > 0 {
		m := p.free[n-1]
		p.free = p.free[:n-1]
		return m
	}
	m := &Mapping{}
	p.all = append(p.all, m)
	return m
}

// Put returns one container obtained from Get.
func (p *mappingPool) Put(m *Mapping) {
	if m != nil {
		p.free = append(p.free, m)
	}
}

// FreeAll returns every container to the pool.
func (p *mappingPool) FreeAll() {
	p.free = append(p.free[:0], p.all...)
}

// Allocated reports how many containers the pool has created.
func (p *mappingPool) Allocated() int {
	return len(p.all)
}
