package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/molmatch/internal/application/matching"
	mtypes "github.com/turtacn/molmatch/pkg/types/molecule"
)

// HealthChecker is a component that can report its health.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checkers []HealthChecker
	version  string
	startAt  time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(version string, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{checkers: checkers, version: version, startAt: time.Now()}
}

// LivenessResponse is the response for the liveness probe.
type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ReadinessResponse is the response for the readiness probe.
type ReadinessResponse struct {
	Status     string                    `json:"status"`
	Components map[string]ComponentCheck `json:"components,omitempty"`
}

// ComponentCheck is the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Liveness handles GET /healthz.  It always succeeds while the process runs.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:  "alive",
		Version: h.version,
		Uptime:  time.Since(h.startAt).Truncate(time.Second).String(),
	})
}

// Readiness handles GET /readyz: 200 when every checker passes, 503
// otherwise.
func (h *HealthHandler) Readiness(c *gin.Context) {
	if len(h.checkers) == 0 {
		c.JSON(http.StatusOK, ReadinessResponse{Status: "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	components := h.checkAll(ctx)

	resp := ReadinessResponse{Status: "ready", Components: components}
	status := http.StatusOK
	for _, cc := range components {
		if cc.Status != "healthy" {
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(status, resp)
}

// checkAll runs all checkers concurrently.
func (h *HealthHandler) checkAll(ctx context.Context) map[string]ComponentCheck {
	results := make(map[string]ComponentCheck, len(h.checkers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, checker := range h.checkers {
		wg.Add(1)
		go func(hc HealthChecker) {
			defer wg.Done()

			start := time.Now()
			err := hc.Check(ctx)
			cc := ComponentCheck{
				Status:  "healthy",
				Latency: time.Since(start).Truncate(time.Microsecond).String(),
			}
			if err != nil {
				cc.Status = "unhealthy"
				cc.Error = err.Error()
			}

			mu.Lock()
			results[hc.Name()] = cc
			mu.Unlock()
		}(checker)
	}
	wg.Wait()
	return results
}

// EngineCheck matches a fixed two-atom query against a three-atom chain.
type EngineCheck struct {
	svc func() matching.Service
}

// NewEngineCheck checks the service currently served by h.
func NewEngineCheck(h *MatchHandler) *EngineCheck {
	return &EngineCheck{svc: h.service}
}

func (e *EngineCheck) Name() string { return "engine" }

func (e *EngineCheck) Check(ctx context.Context) error {
	existsOnly := true
	res, err := e.svc().Match(ctx, &matching.MatchRequest{
		Query:  probeChain("probe-query", "C", "O"),
		Target: probeChain("probe-target", "C", "O", "C"),
		Options: mtypes.MatchOptions{
			ExistsOnly: &existsOnly,
			Roles:      []string{"all"},
		},
	})
	if err != nil {
		return err
	}
	if !res.Matched {
		return fmt.Errorf("engine probe found no mapping")
	}
	return nil
}

func probeChain(id string, symbols ...string) *mtypes.GraphDocument {
	comp := mtypes.ComponentDocument{}
	for i, s := range symbols {
		comp.Atoms = append(comp.Atoms, mtypes.AtomDocument{Symbol: s})
		if i > 0 {
			comp.Bonds = append(comp.Bonds, mtypes.BondDocument{Begin: i - 1, End: i})
		}
	}
	return &mtypes.GraphDocument{ID: id, Components: []mtypes.ComponentDocument{comp}}
}
