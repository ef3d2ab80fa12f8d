package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	errorCount      map[string]int64
	mirrorWrites    map[string]int64
	mirrorSkips     map[string]int64
	sweepTransition map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		mirrorWrites:    make(map[string]int64),
		mirrorSkips:     make(map[string]int64),
		sweepTransition: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordMirrorWrite counts a successful archival write per workspace.
func (m *Metrics) RecordMirrorWrite(workspaceID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirrorWrites[workspaceID]++
}

// RecordMirrorSuppressed counts a routine mirror dropped by the cooldown.
func (m *Metrics) RecordMirrorSuppressed(workspaceID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirrorSkips[workspaceID]++
}

// RecordSweepTransition counts scheduler-driven state transitions by kind
// (reminded, close_confirming, orphan_deleted).
func (m *Metrics) RecordSweepTransition(workspaceID, kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepTransition[workspaceID+"|"+kind]++
}

// Snapshot returns copies of the counter maps for dashboards.
func (m *Metrics) Snapshot() (requests, errors, mirrors map[string]int64) {
	if m == nil {
		return nil, nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	requests = copyCounts(m.requestCount)
	errors = copyCounts(m.errorCount)
	mirrors = copyCounts(m.mirrorWrites)
	return requests, errors, mirrors
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
