package app

import (
	"sort"
	"sync"
	"time"
)

// Component names reported by the health tracker.
const (
	ComponentPatternStore = "pattern_store"
	ComponentLLM          = "llm"
	ComponentHistory      = "history"
	ComponentScraper      = "scraper"
	ComponentEmbedder     = "embedder"
)

// HealthStatus represents the health of a component.
type HealthStatus struct {
	Healthy     bool      `json:"healthy"`
	LastCheck   time.Time `json:"last_check"`
	LastSuccess time.Time `json:"last_success,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// Health tracks the health of various components.
type Health struct {
	mu         sync.RWMutex
	components map[string]*HealthStatus
}

// NewHealth creates a new health tracker.
func NewHealth() *Health {
	return &Health{
		components: make(map[string]*HealthStatus),
	}
}

func (h *Health) component(name string) *HealthStatus {
	status, ok := h.components[name]
	if !ok {
		status = &HealthStatus{}
		h.components[name] = status
	}
	return status
}

// SetHealthy marks a component as healthy.
func (h *Health) SetHealthy(component, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	status := h.component(component)
	status.Healthy = true
	status.LastCheck = now
	status.LastSuccess = now
	status.LastError = ""
	status.Message = message
}

// SetUnhealthy marks a component as unhealthy. A degraded component that
// still serves requests is recorded the same way.
func (h *Health) SetUnhealthy(component string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	status := h.component(component)
	status.Healthy = false
	status.LastCheck = time.Now()
	if err != nil {
		status.LastError = err.Error()
		status.Message = err.Error()
	}
}

// Record marks component healthy when err is nil and unhealthy otherwise.
func (h *Health) Record(component string, err error, message string) {
	if err != nil {
		h.SetUnhealthy(component, err)
		return
	}
	h.SetHealthy(component, message)
}

// GetStatus returns a copy of a component's status, or nil if unknown.
func (h *Health) GetStatus(component string) *HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if status, exists := h.components[component]; exists {
		copied := *status
		return &copied
	}
	return nil
}

// GetAllStatuses returns copies of all component statuses.
func (h *Health) GetAllStatuses() map[string]*HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make(map[string]*HealthStatus, len(h.components))
	for name, status := range h.components {
		copied := *status
		result[name] = &copied
	}
	return result
}

// Components returns the tracked component names in sorted order.
func (h *Health) Components() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.components))
	for name := range h.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsOverallHealthy returns true if all components are healthy.
func (h *Health) IsOverallHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, status := range h.components {
		if !status.Healthy {
			return false
		}
	}
	return true
}
