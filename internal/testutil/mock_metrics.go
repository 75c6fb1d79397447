package testutil

import (
	"sync"
	"time"
)

// SearchObservation is one call to MockRecorder.ObserveSearch.
type SearchObservation struct {
	Mode     string
	Result   string
	Elapsed  time.Duration
	Mappings int
	Nodes    int64
}

// MockRecorder records matching measurements in memory.  It satisfies
// matching.Recorder.
type MockRecorder struct {
	mu       sync.Mutex
	Searches []SearchObservation
	Batch    map[string]int
}

// NewMockRecorder returns an empty MockRecorder.
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{Batch: make(map[string]int)}
}

func (r *MockRecorder) ObserveSearch(mode, result string, elapsed time.Duration, mappings int, nodes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Searches = append(r.Searches, SearchObservation{
		Mode: mode, Result: result, Elapsed: elapsed, Mappings: mappings, Nodes: nodes,
	})
}

func (r *MockRecorder) ObserveBatchTarget(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Batch[result]++
}

// Results counts recorded searches by result.
func (r *MockRecorder) Results() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int)
	for _, s := range r.Searches {
		out[s.Result]++
	}
	return out
}

// BatchCount returns the number of batch targets recorded with result.
func (r *MockRecorder) BatchCount(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Batch[result]
}
