// Package substruct implements substructure search: finding every injective
// mapping of a query graph onto a target graph that respects reaction roles
// and per-element predicates.
//
// The search runs in three stages.  Local predicates are first folded into
// per-query-element candidate bitsets; an element with no candidate ends the
// search at once.  A backtracking search then assigns query atoms in
// connectivity order, committing bonds as both endpoints become mapped.
// Finally each complete assignment is checked against the mapping-aware
// predicates and optionally deduplicated by the target substructure it
// covers.
//
// An Engine is not safe for concurrent use.  Run one Engine per goroutine.
package substruct

import (
	"context"
	"reflect"
	"time"

	"github.com/turtacn/molmatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molmatch/pkg/errors"
)

// Stats counts the work done by the last search call.
type Stats struct {
	// Nodes is the number of search frames entered.
	Nodes int64
	// Candidates is the number of candidate target atoms examined.
	Candidates int64
	// Completed is the number of complete assignments reached.
	Completed int64
	// Rejected counts complete assignments refused by mapping-aware
	// predicates.
	Rejected int64
	// Duplicates counts mappings dropped by the uniqueness filter.
	Duplicates int64
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithPredicates sets the predicate provider.  The default matches every
// same-role pair.
func WithPredicates(p PredicateProvider) Option {
	return func(e *Engine) {
		if p != nil {
			e.provider = p
		}
	}
}

// WithLogger sets the logger used for per-call debug summaries.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithForwardChecking toggles the degree look-ahead.  It is on by default.
func WithForwardChecking(on bool) Option {
	return func(e *Engine) { e.forwardCheck = on }
}

// Engine matches one query graph against any number of targets.
type Engine struct {
	logger   logging.Logger
	provider PredicateProvider

	query    Graph
	qpreds   *queryPredicates
	qversion uint64

	maxMappings  int
	roles        Role
	uniqueOnly   bool
	forwardCheck bool

	atomConstraints map[int][]int
	bondConstraints map[int][]int

	// per call
	target     Graph
	existsOnly bool
	found      bool
	eq         equivalence
	search     searcher
	pool       mappingPool
	unique     uniquenessFilter
	mappings   []*Mapping
	stats      Stats
}

// New returns an Engine with no query, all roles enabled, no mapping cap and
// uniqueness filtering off.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:       logging.NewNopLogger(),
		provider:     NoPredicates{},
		roles:        RoleAll,
		forwardCheck: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetQuery sets the query graph.  Setting the graph already configured is a
// no-op; any other graph discards the memoised query predicates.  A query
// that grew or whose Version moved is recompiled at the next search either
// way.  Results of earlier calls are kept.
func (e *Engine) SetQuery(q Graph) {
	if sameGraph(e.query, q) {
		return
	}
	e.query = q
	e.qpreds = nil
}

// queryStale reports whether the memoised query predicates no longer
// describe the query, either because none are compiled or because the query
// changed shape or version since they were.
func (e *Engine) queryStale() bool {
	qp := e.qpreds
	if qp == nil {
		return true
	}
	if len(qp.localAtoms) != e.query.NumAtoms() || len(qp.localBonds) != e.query.NumBonds() {
		return true
	}
	return graphVersion(e.query) != e.qversion
}

// Query returns the configured query graph, or nil.
func (e *Engine) Query() Graph { return e.query }

// SetPredicateProvider replaces the predicate provider and discards the
// memoised query predicates.
func (e *Engine) SetPredicateProvider(p PredicateProvider) {
	if p == nil {
		p = NoPredicates{}
	}
	e.provider = p
	e.qpreds = nil
}

func sameGraph(a, b Graph) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// SetMaxNumMappings caps the number of mappings FindMappings collects.
// 0 means unlimited; negative values are treated as 0.
func (e *Engine) SetMaxNumMappings(n int) {
	if n < 0 {
		n = 0
	}
	e.maxMappings = n
}

// MaxNumMappings returns the configured cap.
func (e *Engine) MaxNumMappings() int { return e.maxMappings }

// SetEnabledRoles restricts matching to query and target elements whose
// role is in mask.
func (e *Engine) SetEnabledRoles(mask Role) error {
	if err := ValidateRoleMask(mask); err != nil {
		return err
	}
	e.roles = mask
	return nil
}

// EnabledRoles returns the enabled role mask.
func (e *Engine) EnabledRoles() Role { return e.roles }

// SetUniqueMappingsOnly toggles deduplication of mappings covering the same
// target atoms and bonds.
func (e *Engine) SetUniqueMappingsOnly(on bool) { e.uniqueOnly = on }

// UniqueMappingsOnly reports whether deduplication is on.
func (e *Engine) UniqueMappingsOnly() bool { return e.uniqueOnly }

// SetForwardChecking toggles the degree look-ahead.  Results do not depend
// on it.
func (e *Engine) SetForwardChecking(on bool) { e.forwardCheck = on }

// ForwardChecking reports whether the degree look-ahead is on.
func (e *Engine) ForwardChecking() bool { return e.forwardCheck }

// AddAtomMappingConstraint restricts query atom q to the target atoms given
// across all calls for q.  Constraints apply to every later search until
// cleared.
func (e *Engine) AddAtomMappingConstraint(q, t int) {
	if e.atomConstraints == nil {
		e.atomConstraints = make(map[int][]int)
	}
	e.atomConstraints[q] = append(e.atomConstraints[q], t)
}

// AddBondMappingConstraint restricts query bond q to the target bonds given
// across all calls for q.
func (e *Engine) AddBondMappingConstraint(q, t int) {
	if e.bondConstraints == nil {
		e.bondConstraints = make(map[int][]int)
	}
	e.bondConstraints[q] = append(e.bondConstraints[q], t)
}

// ClearAtomMappingConstraints removes all atom constraints.
func (e *Engine) ClearAtomMappingConstraints() { clear(e.atomConstraints) }

// ClearBondMappingConstraints removes all bond constraints.
func (e *Engine) ClearBondMappingConstraints() { clear(e.bondConstraints) }

// MappingExists reports whether at least one acceptable mapping of the
// query onto target exists.  It stops at the first one and keeps no
// results.
func (e *Engine) MappingExists(ctx context.Context, target Graph) (bool, error) {
	return e.run(ctx, target, true)
}

// FindMappings collects the acceptable mappings of the query onto target,
// up to MaxNumMappings, and reports whether any was found.  Results replace
// those of the previous call.
//
// When ctx is cancelled the search stops at its next poll and returns an
// error with code CodeSearchAborted; mappings collected so far remain
// available.
func (e *Engine) FindMappings(ctx context.Context, target Graph) (bool, error) {
	return e.run(ctx, target, false)
}

// NumMappings returns the number of mappings collected by the last call.
func (e *Engine) NumMappings() int { return len(e.mappings) }

// Mapping returns the i-th collected mapping.
func (e *Engine) Mapping(i int) (*Mapping, error) {
	if i < 0 || i >= len(e.mappings) {
		return nil, errors.IndexOutOfRange(i, len(e.mappings))
	}
	return e.mappings[i], nil
}

// Mappings returns the collected mappings.  The slice is owned by the
// Engine.
func (e *Engine) Mappings() []*Mapping { return e.mappings }

// ClearMappings drops the collected mappings.
func (e *Engine) ClearMappings() {
	e.mappings = e.mappings[:0]
	e.pool.FreeAll()
}

// Stats returns the counters of the last search call.
func (e *Engine) Stats() Stats { return e.stats }

func (e *Engine) run(ctx context.Context, target Graph, existsOnly bool) (bool, error) {
	e.ClearMappings()
	e.stats = Stats{}
	e.found = false
	if e.query == nil || target == nil {
		return false, nil
	}

	start := time.Now()
	if err := checkGraph(e.query, "query"); err != nil {
		return false, err
	}
	if err := checkGraph(target, "target"); err != nil {
		return false, err
	}
	if e.queryStale() {
		e.qpreds = compilePredicates(e.provider, e.query)
		e.qversion = graphVersion(e.query)
	}

	e.target = target
	e.existsOnly = existsOnly
	defer func() { e.target = nil }()

	poll := pollFunc(ctx)
	ok, err := e.eq.compute(e.query, target, e.qpreds, e.roles, e.atomConstraints, e.bondConstraints, poll)
	if err != nil {
		return false, err
	}
	if ok {
		if e.uniqueOnly {
			e.unique.reset(target.NumAtoms(), target.NumBonds())
		}
		e.search.reset(e.query, target, &e.eq)
		e.search.forwardCheck = e.forwardCheck
		e.search.poll = poll
		e.search.stats = &e.stats
		e.search.onComplete = e.complete
		err = e.search.run()
	}

	found := e.found || len(e.mappings) > 0
	e.logger.Debug("substructure search finished",
		logging.String("query", e.query.ID()),
		logging.String("target", target.ID()),
		logging.Bool("exists_only", existsOnly),
		logging.Bool("found", found),
		logging.Int("mappings", len(e.mappings)),
		logging.Int64("nodes", e.stats.Nodes),
		logging.Int64("candidates", e.stats.Candidates),
		logging.Duration("elapsed", time.Since(start)),
	)
	return found, err
}

// complete handles one complete assignment.
func (e *Engine) complete(atoms, bonds []int) (bool, error) {
	e.stats.Completed++
	m := e.pool.Get()
	m.load(atoms, bonds)

	if !e.qpreds.accepts(e.query, e.target, m) {
		e.pool.Put(m)
		e.stats.Rejected++
		return false, nil
	}
	if e.existsOnly {
		e.pool.Put(m)
		e.found = true
		return true, nil
	}
	if e.uniqueOnly && !e.unique.insert(m) {
		e.pool.Put(m)
		e.stats.Duplicates++
		return false, nil
	}
	e.mappings = append(e.mappings, m)
	return e.maxMappings > 0 && len(e.mappings) >= e.maxMappings, nil
}

func noPoll() error { return nil }

// pollFunc returns a cheap cancellation check for ctx.
func pollFunc(ctx context.Context) func() error {
	if ctx == nil || ctx.Done() == nil {
		return noPoll
	}
	done := ctx.Done()
	return func() error {
		select {
		case <-done:
			return errors.Wrap(ctx.Err(), errors.CodeSearchAborted, "substructure search aborted")
		default:
			return nil
		}
	}
}
