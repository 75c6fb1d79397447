// Package matching is the application service around the substructure
// engine.  It turns molecule documents into graphs, configures an engine per
// request from service defaults and request overrides, and runs single
// matches or batches of targets across a pool of workers.
package matching

import (
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/molmatch/internal/domain/molecule"
	"github.com/turtacn/molmatch/internal/domain/substruct"
	"github.com/turtacn/molmatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molmatch/pkg/errors"
	mtypes "github.com/turtacn/molmatch/pkg/types/molecule"
)

// Search modes used in metrics and logs.
const (
	ModeFind   = "find"
	ModeExists = "exists"
)

// Search outcomes used in metrics.
const (
	ResultMatched   = "matched"
	ResultUnmatched = "unmatched"
	ResultError     = "error"
	ResultAborted   = "aborted"
)

// Recorder receives per-search measurements.  Implementations must be safe
// for concurrent use.
type Recorder interface {
	ObserveSearch(mode, result string, elapsed time.Duration, mappings int, nodes int64)
	ObserveBatchTarget(result string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSearch(string, string, time.Duration, int, int64) {}
func (nopRecorder) ObserveBatchTarget(string)                               {}

// MatchRequest matches one query against one target.
type MatchRequest struct {
	Query   *mtypes.GraphDocument
	Target  *mtypes.GraphDocument
	Options mtypes.MatchOptions
}

// TargetSource yields batch targets and returns io.EOF when exhausted.
// molfile.Decoder satisfies it.
type TargetSource interface {
	Next() (*mtypes.GraphDocument, error)
}

// SliceSource serves targets from a slice.
type SliceSource struct {
	docs []*mtypes.GraphDocument
	pos  int
}

// NewSliceSource returns a TargetSource over docs.
func NewSliceSource(docs []*mtypes.GraphDocument) *SliceSource {
	return &SliceSource{docs: docs}
}

func (s *SliceSource) Next() (*mtypes.GraphDocument, error) {
	if s.pos >= len(s.docs) {
		return nil, io.EOF
	}
	doc := s.docs[s.pos]
	s.pos++
	return doc, nil
}

// BatchRequest matches one query against every target of a source.
type BatchRequest struct {
	Query   *mtypes.GraphDocument
	Targets TargetSource
	Options mtypes.MatchOptions
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	Targets  int           `json:"targets"`
	Matched  int           `json:"matched"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Sink receives batch results.  The service serialises calls, so
// implementations need not be safe for concurrent use.  Results arrive in
// completion order; index is the target's position in the source.
type Sink interface {
	Put(index int, res *mtypes.MatchResponse) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(index int, res *mtypes.MatchResponse) error

func (f SinkFunc) Put(index int, res *mtypes.MatchResponse) error { return f(index, res) }

// Service runs substructure matches.
type Service interface {
	Match(ctx context.Context, req *MatchRequest) (*mtypes.MatchResponse, error)
	Batch(ctx context.Context, req *BatchRequest, sink Sink) (*BatchSummary, error)
}

type serviceImpl struct {
	defaults Options
	metrics  Recorder
	logger   logging.Logger
}

// NewService returns a Service using defaults.  metrics and logger may be
// nil.
func NewService(defaults Options, metrics Recorder, logger logging.Logger) Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{defaults: defaults, metrics: metrics, logger: logger.Named("matching")}
}

func (s *serviceImpl) Match(ctx context.Context, req *MatchRequest) (*mtypes.MatchResponse, error) {
	if req == nil || req.Query == nil || req.Target == nil {
		return nil, errors.InvalidParam("query and target are required")
	}
	opts, err := s.defaults.merge(req.Options)
	if err != nil {
		return nil, err
	}
	query, err := buildGraph(req.Query, "query")
	if err != nil {
		return nil, err
	}
	target, err := buildGraph(req.Target, "target")
	if err != nil {
		return nil, err
	}
	e, err := opts.newEngine(substruct.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	e.SetQuery(query)

	res, err := s.search(ctx, e, target, opts)
	if err != nil {
		s.logger.Warn("match failed",
			logging.String("query", query.ID()),
			logging.String("target", target.ID()),
			logging.Err(err))
		return nil, err
	}
	s.logger.Info("match finished",
		logging.String("query", res.QueryID),
		logging.String("target", res.TargetID),
		logging.String("mode", opts.mode()),
		logging.Bool("matched", res.Matched),
		logging.Int("mappings", res.Count),
		logging.Float64("duration_ms", res.DurationMS))
	return res, nil
}

func buildGraph(doc *mtypes.GraphDocument, kind string) (*molecule.Graph, error) {
	g, err := molecule.FromDocument(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "invalid "+kind+" document")
	}
	return g, nil
}

// search runs one configured engine against target and records metrics.
func (s *serviceImpl) search(ctx context.Context, e *substruct.Engine, target *molecule.Graph, opts resolved) (*mtypes.MatchResponse, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		found bool
		err   error
	)
	if opts.ExistsOnly {
		found, err = e.MappingExists(ctx, target)
	} else {
		found, err = e.FindMappings(ctx, target)
	}
	elapsed := time.Since(start)
	stats := e.Stats()

	result := ResultUnmatched
	switch {
	case errors.IsCode(err, errors.CodeSearchAborted):
		result = ResultAborted
	case err != nil:
		result = ResultError
	case found:
		result = ResultMatched
	}
	s.metrics.ObserveSearch(opts.mode(), result, elapsed, e.NumMappings(), stats.Nodes)
	if err != nil {
		return nil, err
	}

	res := &mtypes.MatchResponse{
		QueryID:  e.Query().ID(),
		TargetID: target.ID(),
		Matched:  found,
		Count:    e.NumMappings(),
		Stats: mtypes.SearchStats{
			Nodes:      stats.Nodes,
			Candidates: stats.Candidates,
			Completed:  stats.Completed,
			Rejected:   stats.Rejected,
			Duplicates: stats.Duplicates,
		},
		DurationMS: float64(elapsed.Microseconds()) / 1000,
	}
	if found && opts.ExistsOnly {
		res.Count = 1
	}
	for _, m := range e.Mappings() {
		res.Mappings = append(res.Mappings, molecule.MappingToDocument(m))
	}
	return res, nil
}

type batchJob struct {
	index int
	doc   *mtypes.GraphDocument
}

// targetID is empty for a nil document.
func (j batchJob) targetID() string {
	if j.doc == nil {
		return ""
	}
	return j.doc.ID
}

func (s *serviceImpl) Batch(ctx context.Context, req *BatchRequest, sink Sink) (*BatchSummary, error) {
	if req == nil || req.Query == nil || req.Targets == nil {
		return nil, errors.InvalidParam("query and targets are required")
	}
	if sink == nil {
		return nil, errors.InvalidParam("sink is required")
	}
	opts, err := s.defaults.merge(req.Options)
	if err != nil {
		return nil, err
	}
	query, err := buildGraph(req.Query, "query")
	if err != nil {
		return nil, err
	}

	start := time.Now()
	summary := &BatchSummary{}
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	jobs := make(chan batchJob, opts.Workers)

	g.Go(func() error {
		defer close(jobs)
		for i := 0; ; i++ {
			doc, err := req.Targets.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return errors.Wrap(err, errors.CodeUnknown, "failed to read batch target").
					WithDetailf("index=%d", i)
			}
			select {
			case jobs <- batchJob{index: i, doc: doc}:
			case <-gCtx.Done():
				return nil
			}
		}
	})

	for w := 0; w < opts.Workers; w++ {
		logger := s.logger.With(logging.Int("worker", w))
		g.Go(func() error {
			// each worker owns its engine; the query graph is shared read-only
			e, err := opts.newEngine(substruct.WithLogger(logger))
			if err != nil {
				return err
			}
			e.SetQuery(query)

			for job := range jobs {
				res, err := s.batchTarget(gCtx, e, job, opts)
				if err != nil {
					if errors.IsCode(err, errors.CodeSearchAborted) && gCtx.Err() != nil {
						return err
					}
					if opts.FailFast {
						return err
					}
					logger.Warn("batch target failed", logging.Int("index", job.index), logging.Err(err))
					res = &mtypes.MatchResponse{QueryID: query.ID(), TargetID: job.targetID(), Error: err.Error()}
				}

				mu.Lock()
				summary.Targets++
				switch {
				case res.Error != "":
					summary.Failed++
				case res.Matched:
					summary.Matched++
				}
				err = sink.Put(job.index, res)
				mu.Unlock()
				if err != nil {
					return errors.Wrap(err, errors.CodeInternal, "batch sink rejected result").
						WithDetailf("index=%d", job.index)
				}
			}
			return nil
		})
	}

	err = g.Wait()
	summary.Duration = time.Since(start)
	if err == nil && ctx.Err() != nil {
		err = errors.Wrap(ctx.Err(), errors.CodeSearchAborted, "batch cancelled")
	}

	fields := []logging.Field{
		logging.String("query", query.ID()),
		logging.Int("targets", summary.Targets),
		logging.Int("matched", summary.Matched),
		logging.Int("failed", summary.Failed),
		logging.Int("workers", opts.Workers),
		logging.Duration("elapsed", summary.Duration),
	}
	if err != nil {
		s.logger.Warn("batch stopped", append(fields, logging.Err(err))...)
		return summary, err
	}
	s.logger.Info("batch finished", fields...)
	return summary, nil
}

func (s *serviceImpl) batchTarget(ctx context.Context, e *substruct.Engine, job batchJob, opts resolved) (*mtypes.MatchResponse, error) {
	target, err := buildGraph(job.doc, "target")
	if err != nil {
		s.metrics.ObserveBatchTarget(ResultError)
		return nil, errors.Wrap(err, errors.CodeUnknown, "invalid batch target").WithDetailf("index=%d", job.index)
	}
	res, err := s.search(ctx, e, target, opts)
	switch {
	case err != nil:
		s.metrics.ObserveBatchTarget(ResultError)
		return nil, errors.Wrap(err, errors.CodeUnknown, "batch target search failed").WithDetailf("index=%d", job.index)
	case res.Matched:
		s.metrics.ObserveBatchTarget(ResultMatched)
	default:
		s.metrics.ObserveBatchTarget(ResultUnmatched)
	}
	s.logger.Debug("batch target done",
		logging.Int("index", job.index),
		logging.String("target", res.TargetID),
		logging.Bool("matched", res.Matched),
		logging.Int("mappings", res.Count))
	return res, nil
}
