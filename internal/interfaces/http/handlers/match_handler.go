package handlers

import (
	"net/http"
	"sort"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/molmatch/internal/application/matching"
	"github.com/turtacn/molmatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molmatch/pkg/errors"
	mtypes "github.com/turtacn/molmatch/pkg/types/molecule"
)

// DefaultMaxBatchTargets bounds the targets of one batch request.
const DefaultMaxBatchTargets = 1000

// BatchRequestBody is the body of POST /api/v1/match/batch.
type BatchRequestBody struct {
	Query   *mtypes.GraphDocument   `json:"query" binding:"required"`
	Targets []*mtypes.GraphDocument `json:"targets" binding:"required,min=1,dive,required"`
	Options mtypes.MatchOptions     `json:"options"`
}

// BatchResponseBody lists results in target order.
type BatchResponseBody struct {
	Summary *matching.BatchSummary  `json:"summary"`
	Results []*mtypes.MatchResponse `json:"results"`
}

type serviceBox struct {
	svc matching.Service
}

// MatchHandler serves substructure matches.  The service can be replaced at
// runtime, e.g. after a configuration reload.
type MatchHandler struct {
	svc        atomic.Pointer[serviceBox]
	maxTargets atomic.Int64
	logger     logging.Logger
}

// NewMatchHandler returns a handler backed by svc.
func NewMatchHandler(svc matching.Service, logger logging.Logger) *MatchHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	h := &MatchHandler{logger: logger.Named("http")}
	h.maxTargets.Store(DefaultMaxBatchTargets)
	h.SetService(svc)
	return h
}

// SetService swaps the backing service.  In-flight requests finish on the
// previous one.
func (h *MatchHandler) SetService(svc matching.Service) {
	h.svc.Store(&serviceBox{svc: svc})
}

// SetMaxBatchTargets changes the batch size limit; n < 1 restores the
// default.  It is safe to call while requests are served.
func (h *MatchHandler) SetMaxBatchTargets(n int) {
	if n < 1 {
		n = DefaultMaxBatchTargets
	}
	h.maxTargets.Store(int64(n))
}

func (h *MatchHandler) service() matching.Service {
	return h.svc.Load().svc
}

// Match handles POST /api/v1/match.
func (h *MatchHandler) Match(c *gin.Context) {
	var req mtypes.MatchRequestDocument
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAppError(c, errors.Wrap(err, errors.CodeInvalidParam, "invalid match request"))
		return
	}

	res, err := h.service().Match(c.Request.Context(), &matching.MatchRequest{
		Query:   req.Query,
		Target:  req.Target,
		Options: req.Options,
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type indexedResult struct {
	index int
	res   *mtypes.MatchResponse
}

// MatchBatch handles POST /api/v1/match/batch.
func (h *MatchHandler) MatchBatch(c *gin.Context) {
	var req BatchRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAppError(c, errors.Wrap(err, errors.CodeInvalidParam, "invalid batch request"))
		return
	}
	if limit := h.maxTargets.Load(); int64(len(req.Targets)) > limit {
		writeAppError(c, errors.InvalidParam("too many batch targets").
			WithDetailf("targets=%d max=%d", len(req.Targets), limit))
		return
	}

	results := make([]indexedResult, 0, len(req.Targets))
	summary, err := h.service().Batch(c.Request.Context(), &matching.BatchRequest{
		Query:   req.Query,
		Targets: matching.NewSliceSource(req.Targets),
		Options: req.Options,
	}, matching.SinkFunc(func(index int, res *mtypes.MatchResponse) error {
		results = append(results, indexedResult{index: index, res: res})
		return nil
	}))
	if err != nil {
		writeAppError(c, err)
		return
	}

	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })
	body := BatchResponseBody{Summary: summary, Results: make([]*mtypes.MatchResponse, len(results))}
	for i, r := range results {
		body.Results[i] = r.res
	}
	c.JSON(http.StatusOK, body)
}
