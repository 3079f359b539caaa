package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Break lifecycle metrics
	AssignmentsTotal        int64
	AssignmentRejectedTotal int64
	StatusChangesTotal      int64
	ResetsTotal             int64
	SchedulesGeneratedTotal int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// Snapshot push metrics
	SnapshotsBroadcastTotal int64
	SnapshotErrorsTotal     int64
	lastSnapshotDuration    time.Duration

	// Agent gauges, refreshed on every snapshot build
	totalAgents   int
	agentsOnBreak int

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			httpRequestsTotal:    make(map[string]map[int]int64),
			httpRequestDurations: make(map[string][]float64),
			startTime:            time.Now(),
		}
	})
	return instance
}

// RecordAssignment increments the assignment counter
func (m *Metrics) RecordAssignment() {
	m.mu.Lock()
	m.AssignmentsTotal++
	m.mu.Unlock()
}

// RecordAssignmentRejected increments the rejected assignment counter
func (m *Metrics) RecordAssignmentRejected() {
	m.mu.Lock()
	m.AssignmentRejectedTotal++
	m.mu.Unlock()
}

// RecordStatusChange increments the status change counter
func (m *Metrics) RecordStatusChange() {
	m.mu.Lock()
	m.StatusChangesTotal++
	m.mu.Unlock()
}

// RecordReset increments the daily reset counter
func (m *Metrics) RecordReset() {
	m.mu.Lock()
	m.ResetsTotal++
	m.mu.Unlock()
}

// RecordScheduleGenerated increments the schedule generation counter
func (m *Metrics) RecordScheduleGenerated() {
	m.mu.Lock()
	m.SchedulesGeneratedTotal++
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordSnapshotBroadcast records one snapshot push cycle
func (m *Metrics) RecordSnapshotBroadcast(duration time.Duration) {
	m.mu.Lock()
	m.SnapshotsBroadcastTotal++
	m.lastSnapshotDuration = duration
	m.mu.Unlock()
}

// RecordSnapshotError increments the snapshot build error counter
func (m *Metrics) RecordSnapshotError() {
	m.mu.Lock()
	m.SnapshotErrorsTotal++
	m.mu.Unlock()
}

// UpdateAgentStats updates agent gauge metrics
func (m *Metrics) UpdateAgentStats(agents []types.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalAgents = len(agents)
	m.agentsOnBreak = 0
	for _, agent := range agents {
		if agent.IsOnBreak {
			m.agentsOnBreak++
		}
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /internal/metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("breaks_uptime_seconds", time.Since(m.startTime).Seconds())

		// Break lifecycle metrics
		write("breaks_assignments_total", m.AssignmentsTotal)
		write("breaks_assignments_rejected_total", m.AssignmentRejectedTotal)
		write("breaks_status_changes_total", m.StatusChangesTotal)
		write("breaks_resets_total", m.ResetsTotal)
		write("breaks_schedules_generated_total", m.SchedulesGeneratedTotal)

		// WebSocket metrics
		write("breaks_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("breaks_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("breaks_websocket_active_connections", m.activeConnections)
		write("breaks_websocket_errors_total", m.WebSocketErrorsTotal)

		// Snapshot push metrics
		write("breaks_snapshots_broadcast_total", m.SnapshotsBroadcastTotal)
		write("breaks_snapshot_errors_total", m.SnapshotErrorsTotal)
		write("breaks_snapshot_duration_seconds", m.lastSnapshotDuration.Seconds())

		// Agent gauges
		write("breaks_agents_total", m.totalAgents)
		write("breaks_agents_on_break", m.agentsOnBreak)

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("breaks_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
