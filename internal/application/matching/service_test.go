package matching

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molmatch/internal/domain/substruct"
	"github.com/turtacn/molmatch/internal/testutil"
	"github.com/turtacn/molmatch/pkg/errors"
	mtypes "github.com/turtacn/molmatch/pkg/types/molecule"
)

// chainDoc builds a linear molecule from symbols.
func chainDoc(id string, role mtypes.RoleName, symbols ...string) *mtypes.GraphDocument {
	c := mtypes.ComponentDocument{Role: role}
	for i, s := range symbols {
		c.Atoms = append(c.Atoms, mtypes.AtomDocument{Symbol: s})
		if i > 0 {
			c.Bonds = append(c.Bonds, mtypes.BondDocument{Begin: i - 1, End: i})
		}
	}
	return &mtypes.GraphDocument{ID: id, Components: []mtypes.ComponentDocument{c}}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func newTestService(opts Options) (Service, *testutil.MockLogger, *testutil.MockRecorder) {
	logger := testutil.NewMockLogger()
	rec := testutil.NewMockRecorder()
	return NewService(opts, rec, logger), logger, rec
}

func TestParseRoles(t *testing.T) {
	cases := []struct {
		in   []string
		want substruct.Role
	}{
		{nil, substruct.RoleAll},
		{[]string{"all"}, substruct.RoleAll},
		{[]string{"reactant"}, substruct.RoleReactant},
		{[]string{"reactant,product"}, substruct.RoleReactant | substruct.RoleProduct},
		{[]string{"Agent", " none "}, substruct.RoleAgent | substruct.RoleNone},
	}
	for _, tc := range cases {
		got, err := ParseRoles(tc.in)
		require.NoError(t, err, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}

	_, err := ParseRoles([]string{"solvent"})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	_, err = ParseRoles([]string{" , "})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestOptions_Merge(t *testing.T) {
	base := DefaultOptions()
	base.Workers = 0
	r, err := base.merge(mtypes.MatchOptions{
		MaxMappings:     intPtr(3),
		UniqueOnly:      boolPtr(true),
		ForwardChecking: boolPtr(false),
		CheckCharge:     boolPtr(false),
		Roles:           []string{"product"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, r.MaxMappings)
	assert.True(t, r.UniqueOnly)
	assert.False(t, r.ForwardChecking)
	assert.False(t, r.Match.Charge)
	assert.True(t, r.Match.Isotope)
	assert.Equal(t, substruct.RoleProduct, r.roles)
	assert.Equal(t, 1, r.Workers)
	assert.Equal(t, ModeFind, r.mode())

	_, err = base.merge(mtypes.MatchOptions{MaxMappings: intPtr(-1)})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestService_Match(t *testing.T) {
	svc, logger, rec := newTestService(DefaultOptions())

	res, err := svc.Match(context.Background(), &MatchRequest{
		Query:  chainDoc("q", "", "C", "C"),
		Target: chainDoc("t", "", "C", "C", "O"),
	})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "q", res.QueryID)
	assert.Equal(t, "t", res.TargetID)
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Mappings, 2)
	assert.Equal(t, []mtypes.Pair{{Query: 0, Target: 0}, {Query: 1, Target: 1}}, res.Mappings[0].Atoms)
	assert.Equal(t, []mtypes.Pair{{Query: 0, Target: 0}}, res.Mappings[0].Bonds)
	assert.Positive(t, res.Stats.Nodes)

	assert.True(t, logger.HasMessage("info", "match finished"))
	require.Len(t, rec.Searches, 1)
	assert.Equal(t, ModeFind, rec.Searches[0].Mode)
	assert.Equal(t, ResultMatched, rec.Searches[0].Result)
	assert.Equal(t, 2, rec.Searches[0].Mappings)
}

func TestService_MatchOverrides(t *testing.T) {
	svc, _, rec := newTestService(DefaultOptions())
	q := chainDoc("q", "", "C", "C", "C")
	tg := chainDoc("t", "", "C", "C", "C")

	res, err := svc.Match(context.Background(), &MatchRequest{Query: q, Target: tg,
		Options: mtypes.MatchOptions{UniqueOnly: boolPtr(true)}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, int64(1), res.Stats.Duplicates)

	res, err = svc.Match(context.Background(), &MatchRequest{Query: q, Target: tg,
		Options: mtypes.MatchOptions{ExistsOnly: boolPtr(true)}})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, 1, res.Count)
	assert.Empty(t, res.Mappings)
	assert.Equal(t, ModeExists, rec.Searches[1].Mode)

	res, err = svc.Match(context.Background(), &MatchRequest{Query: q, Target: tg,
		Options: mtypes.MatchOptions{MaxMappings: intPtr(1)}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestService_MatchRoles(t *testing.T) {
	query := &mtypes.GraphDocument{ID: "rxn-q", Components: []mtypes.ComponentDocument{
		{Role: mtypes.RoleReactant, Atoms: []mtypes.AtomDocument{{Symbol: "C"}}},
		{Role: mtypes.RoleProduct, Atoms: []mtypes.AtomDocument{{Symbol: "N"}}},
	}}
	target := &mtypes.GraphDocument{ID: "rxn-t", Components: []mtypes.ComponentDocument{
		{Role: mtypes.RoleReactant, Atoms: []mtypes.AtomDocument{{Symbol: "C"}}},
		{Role: mtypes.RoleProduct, Atoms: []mtypes.AtomDocument{{Symbol: "O"}}},
	}}
	svc, _, _ := newTestService(DefaultOptions())

	res, err := svc.Match(context.Background(), &MatchRequest{Query: query, Target: target})
	require.NoError(t, err)
	assert.False(t, res.Matched)

	res, err = svc.Match(context.Background(), &MatchRequest{Query: query, Target: target,
		Options: mtypes.MatchOptions{Roles: []string{"reactant"}}})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, []mtypes.Pair{{Query: 0, Target: 0}}, res.Mappings[0].Atoms)
}

func TestService_MatchErrors(t *testing.T) {
	svc, _, rec := newTestService(DefaultOptions())
	ctx := context.Background()

	_, err := svc.Match(ctx, nil)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	_, err = svc.Match(ctx, &MatchRequest{Query: chainDoc("q", "", "C")})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	bad := chainDoc("bad", "", "C")
	bad.Components[0].Bonds = []mtypes.BondDocument{{Begin: 0, End: 4}}
	_, err = svc.Match(ctx, &MatchRequest{Query: bad, Target: chainDoc("t", "", "C")})
	assert.True(t, errors.IsCode(err, errors.CodeMalformedGraph))

	_, err = svc.Match(ctx, &MatchRequest{Query: chainDoc("q", "", "C"), Target: chainDoc("t", "", "C"),
		Options: mtypes.MatchOptions{Roles: []string{"catalyst"}}})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	assert.Empty(t, rec.Searches)
}

func TestService_MatchCancelled(t *testing.T) {
	svc, logger, rec := newTestService(DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Match(ctx, &MatchRequest{Query: chainDoc("q", "", "C", "C"), Target: chainDoc("t", "", "C", "C")})
	assert.True(t, errors.IsCode(err, errors.CodeSearchAborted))
	assert.True(t, logger.HasMessage("warn", "match failed"))
	require.Len(t, rec.Searches, 1)
	assert.Equal(t, ResultAborted, rec.Searches[0].Result)
}

// collectSink gathers batch results by index.
type collectSink struct {
	results map[int]*mtypes.MatchResponse
}

func (s *collectSink) Put(index int, res *mtypes.MatchResponse) error {
	if s.results == nil {
		s.results = make(map[int]*mtypes.MatchResponse)
	}
	s.results[index] = res
	return nil
}

func batchTargets(n int) []*mtypes.GraphDocument {
	docs := make([]*mtypes.GraphDocument, 0, n)
	for i := 0; i < n; i++ {
		if i%3 == 0 {
			docs = append(docs, chainDoc(fmt.Sprintf("t%d", i), "", "N", "N"))
		} else {
			docs = append(docs, chainDoc(fmt.Sprintf("t%d", i), "", "C", "O", "C"))
		}
	}
	return docs
}

func TestService_Batch(t *testing.T) {
	opts := DefaultOptions()
	opts.Workers = 3
	svc, logger, rec := newTestService(opts)
	sink := &collectSink{}

	summary, err := svc.Batch(context.Background(), &BatchRequest{
		Query:   chainDoc("q", "", "C", "O"),
		Targets: NewSliceSource(batchTargets(10)),
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Targets)
	assert.Equal(t, 6, summary.Matched)
	assert.Zero(t, summary.Failed)
	require.Len(t, sink.results, 10)
	for i := 0; i < 10; i++ {
		res := sink.results[i]
		require.NotNil(t, res, "index %d", i)
		assert.Equal(t, fmt.Sprintf("t%d", i), res.TargetID)
		assert.Equal(t, i%3 != 0, res.Matched)
		if res.Matched {
			assert.Equal(t, 2, res.Count)
		}
	}
	assert.Equal(t, 6, rec.BatchCount(ResultMatched))
	assert.Equal(t, 4, rec.BatchCount(ResultUnmatched))
	assert.True(t, logger.HasMessage("info", "batch finished"))
}

func TestService_BatchFailedTargets(t *testing.T) {
	targets := batchTargets(4)
	targets[1].Components[0].Role = "solvent"

	svc, logger, rec := newTestService(DefaultOptions())
	sink := &collectSink{}
	summary, err := svc.Batch(context.Background(), &BatchRequest{
		Query:   chainDoc("q", "", "C", "O"),
		Targets: NewSliceSource(targets),
	}, sink)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Targets)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Matched)
	assert.Contains(t, sink.results[1].Error, "MOL_003")
	assert.Equal(t, 1, rec.BatchCount(ResultError))
	assert.True(t, logger.HasMessage("warn", "batch target failed"))

	opts := DefaultOptions()
	opts.FailFast = true
	opts.Workers = 1
	svc, _, _ = newTestService(opts)
	summary, err = svc.Batch(context.Background(), &BatchRequest{
		Query:   chainDoc("q", "", "C", "O"),
		Targets: NewSliceSource(targets),
	}, &collectSink{})
	assert.True(t, errors.IsCode(err, errors.CodeMoleculeInvalidFormat), "got %v", err)
	assert.Equal(t, 1, summary.Targets)
}

func TestService_BatchNilTarget(t *testing.T) {
	targets := batchTargets(3)
	targets[1] = nil

	opts := DefaultOptions()
	opts.Workers = 1
	svc, logger, rec := newTestService(opts)
	sink := &collectSink{}
	var summary *BatchSummary
	var err error
	require.NotPanics(t, func() {
		summary, err = svc.Batch(context.Background(), &BatchRequest{
			Query:   chainDoc("q", "", "C", "O"),
			Targets: NewSliceSource(targets),
		}, sink)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Targets)
	assert.Equal(t, 1, summary.Failed)
	require.NotNil(t, sink.results[1])
	assert.Empty(t, sink.results[1].TargetID)
	assert.Equal(t, "q", sink.results[1].QueryID)
	assert.NotEmpty(t, sink.results[1].Error)
	assert.Equal(t, "t2", sink.results[2].TargetID)
	assert.Equal(t, 1, rec.BatchCount(ResultError))
	assert.True(t, logger.HasMessage("warn", "batch target failed"))
}

// errSource fails after serving its documents.
type errSource struct {
	SliceSource
}

func (s *errSource) Next() (*mtypes.GraphDocument, error) {
	doc, err := s.SliceSource.Next()
	if err != nil {
		return nil, errors.New(errors.CodeMoleculeParsingFailed, "broken stream")
	}
	return doc, nil
}

func TestService_BatchSourceAndSinkErrors(t *testing.T) {
	svc, _, _ := newTestService(DefaultOptions())
	query := chainDoc("q", "", "C")

	_, err := svc.Batch(context.Background(), &BatchRequest{
		Query:   query,
		Targets: &errSource{SliceSource: *NewSliceSource(batchTargets(2))},
	}, &collectSink{})
	assert.True(t, errors.IsCode(err, errors.CodeMoleculeParsingFailed))

	var calls atomic.Int32
	_, err = svc.Batch(context.Background(), &BatchRequest{
		Query:   query,
		Targets: NewSliceSource(batchTargets(5)),
	}, SinkFunc(func(int, *mtypes.MatchResponse) error {
		calls.Add(1)
		return fmt.Errorf("disk full")
	}))
	assert.True(t, errors.IsCode(err, errors.CodeInternal))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))

	_, err = svc.Batch(context.Background(), &BatchRequest{Query: query}, &collectSink{})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	_, err = svc.Batch(context.Background(), &BatchRequest{Query: query, Targets: NewSliceSource(nil)}, nil)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestService_BatchCancelled(t *testing.T) {
	svc, _, _ := newTestService(DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := svc.Batch(ctx, &BatchRequest{
		Query:   chainDoc("q", "", "C"),
		Targets: NewSliceSource(batchTargets(20)),
	}, &collectSink{})
	assert.True(t, errors.IsCode(err, errors.CodeSearchAborted), "got %v", err)
	assert.Less(t, summary.Targets, 20)
}

func TestSliceSource(t *testing.T) {
	s := NewSliceSource(batchTargets(2))
	_, err := s.Next()
	require.NoError(t, err)
	_, err = s.Next()
	require.NoError(t, err)
	_, err = s.Next()
	assert.Error(t, err)
}
