package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Monitor tracks the health of named components. All methods are safe
// for concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
	}
}

// Update records the status for a named component.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// UpdateHealthy marks a component healthy.
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateDegraded marks a component degraded.
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// UpdateUnhealthy marks a component unhealthy.
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// Get retrieves the status for a named component.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[name]
	return status, ok
}

// Remove drops a component from monitoring.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.statuses, name)
}

// Aggregate combines all component statuses into one system status:
// unhealthy if any component is unhealthy, degraded if any is degraded,
// healthy otherwise.
func (m *Monitor) Aggregate(systemName string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agg := NewHealthy(systemName, "all components healthy")
	for _, status := range m.statuses {
		agg.SubStatuses = append(agg.SubStatuses, status)
		switch {
		case status.IsUnhealthy():
			agg.Healthy = false
			agg.Status = StateUnhealthy
			agg.Message = "one or more components unhealthy"
		case status.IsDegraded() && !agg.IsUnhealthy():
			agg.Healthy = false
			agg.Status = StateDegraded
			agg.Message = "one or more components degraded"
		}
	}
	return agg
}

// Handler serves the aggregate status as JSON. Unhealthy aggregates
// return 503 so load balancers and orchestrators can act on it.
func (m *Monitor) Handler(systemName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		agg := m.Aggregate(systemName)

		w.Header().Set("Content-Type", "application/json")
		if agg.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(agg)
	})
}
