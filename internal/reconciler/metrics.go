package reconciler

import (
	"sync"
	"time"

	"github.com/giantswarm/sharekeeper/internal/access"
	"github.com/giantswarm/sharekeeper/internal/api"
	"github.com/giantswarm/sharekeeper/pkg/logging"
)

// ReconcilerMetrics tracks reconciliation outcomes per resource type and the
// engine passes they took.
//
// It implements access.Observer so the engine reports every pass, including
// the drift passes that never surface as a separate reconcile attempt.
type ReconcilerMetrics struct {
	mu sync.RWMutex

	resourceMetrics map[ResourceType]*resourceTypeMetrics

	totalReconcileAttempts  int64
	totalReconcileSuccesses int64
	totalReconcileFailures  int64
	totalEnginePasses       int64
	totalPassFailures       int64
	totalConvergenceErrors  int64
}

var _ access.Observer = (*ReconcilerMetrics)(nil)

type resourceTypeMetrics struct {
	ResourceType       ResourceType
	ReconcileAttempts  int64
	ReconcileSuccesses int64
	ReconcileFailures  int64
	LastReconcileAt    time.Time
	LastSuccessAt      time.Time
	LastFailureAt      time.Time
}

// NewReconcilerMetrics creates a new ReconcilerMetrics instance.
func NewReconcilerMetrics() *ReconcilerMetrics {
	return &ReconcilerMetrics{
		resourceMetrics: make(map[ResourceType]*resourceTypeMetrics),
	}
}

func (m *ReconcilerMetrics) getOrCreateResourceMetrics(resourceType ResourceType) *resourceTypeMetrics {
	if metrics, exists := m.resourceMetrics[resourceType]; exists {
		return metrics
	}

	metrics := &resourceTypeMetrics{ResourceType: resourceType}
	m.resourceMetrics[resourceType] = metrics
	return metrics
}

// RecordReconcileAttempt records the start of a reconcile.
func (m *ReconcilerMetrics) RecordReconcileAttempt(resourceType ResourceType, resourceName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreateResourceMetrics(resourceType)
	metrics.ReconcileAttempts++
	metrics.LastReconcileAt = time.Now()
	m.totalReconcileAttempts++
}

// RecordReconcileSuccess records a reconcile that converged.
func (m *ReconcilerMetrics) RecordReconcileSuccess(resourceType ResourceType, resourceName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreateResourceMetrics(resourceType)
	metrics.ReconcileSuccesses++
	metrics.LastSuccessAt = time.Now()
	m.totalReconcileSuccesses++
}

// RecordReconcileFailure records a failed reconcile.
func (m *ReconcilerMetrics) RecordReconcileFailure(resourceType ResourceType, resourceName string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreateResourceMetrics(resourceType)
	metrics.ReconcileFailures++
	metrics.LastFailureAt = time.Now()
	m.totalReconcileFailures++

	logging.Warn("ReconcilerMetrics", "Reconcile failure for %s/%s: %s (failures: %d)",
		resourceType, resourceName, reason, metrics.ReconcileFailures)
}

// PassCompleted counts one engine pass for instanceID.
func (m *ReconcilerMetrics) PassCompleted(instanceID string, pass int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalEnginePasses++
	if err != nil {
		m.totalPassFailures++
		logging.Debug("ReconcilerMetrics", "Pass %d for instance %s failed: %v", pass, instanceID, err)
	}
}

// RecordConvergenceFailure records an instance whose stored rules kept
// changing until the engine's pass limit was reached.
func (m *ReconcilerMetrics) RecordConvergenceFailure(resourceName string, err *api.ConvergenceError) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalConvergenceErrors++
	logging.Warn("ReconcilerMetrics", "Instance %s did not converge after %d passes", resourceName, err.Passes)
}

// ReconcilerMetricsSummary provides a summary of reconciliation metrics.
type ReconcilerMetricsSummary struct {
	TotalReconcileAttempts  int64                    `json:"total_reconcile_attempts"`
	TotalReconcileSuccesses int64                    `json:"total_reconcile_successes"`
	TotalReconcileFailures  int64                    `json:"total_reconcile_failures"`
	TotalEnginePasses       int64                    `json:"total_engine_passes"`
	TotalPassFailures       int64                    `json:"total_pass_failures"`
	TotalConvergenceErrors  int64                    `json:"total_convergence_errors"`
	PerResourceTypeMetrics  []ResourceTypeMetricView `json:"per_resource_type_metrics"`
	ReconcileFailureRate    float64                  `json:"reconcile_failure_rate"`
}

// ResourceTypeMetricView is a read-only view of resource-type-specific metrics.
type ResourceTypeMetricView struct {
	ResourceType       ResourceType `json:"resource_type"`
	ReconcileAttempts  int64        `json:"reconcile_attempts"`
	ReconcileSuccesses int64        `json:"reconcile_successes"`
	ReconcileFailures  int64        `json:"reconcile_failures"`
	LastReconcileAt    time.Time    `json:"last_reconcile_at,omitempty"`
	LastSuccessAt      time.Time    `json:"last_success_at,omitempty"`
	LastFailureAt      time.Time    `json:"last_failure_at,omitempty"`
}

// Summary returns a snapshot of the collected metrics.
func (m *ReconcilerMetrics) Summary() ReconcilerMetricsSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := ReconcilerMetricsSummary{
		TotalReconcileAttempts:  m.totalReconcileAttempts,
		TotalReconcileSuccesses: m.totalReconcileSuccesses,
		TotalReconcileFailures:  m.totalReconcileFailures,
		TotalEnginePasses:       m.totalEnginePasses,
		TotalPassFailures:       m.totalPassFailures,
		TotalConvergenceErrors:  m.totalConvergenceErrors,
		PerResourceTypeMetrics:  make([]ResourceTypeMetricView, 0, len(m.resourceMetrics)),
	}
	if m.totalReconcileAttempts > 0 {
		summary.ReconcileFailureRate = float64(m.totalReconcileFailures) / float64(m.totalReconcileAttempts)
	}

	for _, rm := range m.resourceMetrics {
		summary.PerResourceTypeMetrics = append(summary.PerResourceTypeMetrics, ResourceTypeMetricView{
			ResourceType:       rm.ResourceType,
			ReconcileAttempts:  rm.ReconcileAttempts,
			ReconcileSuccesses: rm.ReconcileSuccesses,
			ReconcileFailures:  rm.ReconcileFailures,
			LastReconcileAt:    rm.LastReconcileAt,
			LastSuccessAt:      rm.LastSuccessAt,
			LastFailureAt:      rm.LastFailureAt,
		})
	}
	return summary
}

// GetResourceTypeMetrics returns the metrics of a single resource type.
func (m *ReconcilerMetrics) GetResourceTypeMetrics(resourceType ResourceType) (ResourceTypeMetricView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rm, ok := m.resourceMetrics[resourceType]
	if !ok {
		return ResourceTypeMetricView{}, false
	}
	return ResourceTypeMetricView{
		ResourceType:       rm.ResourceType,
		ReconcileAttempts:  rm.ReconcileAttempts,
		ReconcileSuccesses: rm.ReconcileSuccesses,
		ReconcileFailures:  rm.ReconcileFailures,
		LastReconcileAt:    rm.LastReconcileAt,
		LastSuccessAt:      rm.LastSuccessAt,
		LastFailureAt:      rm.LastFailureAt,
	}, true
}

// Reset clears all counters.
func (m *ReconcilerMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resourceMetrics = make(map[ResourceType]*resourceTypeMetrics)
	m.totalReconcileAttempts = 0
	m.totalReconcileSuccesses = 0
	m.totalReconcileFailures = 0
	m.totalEnginePasses = 0
	m.totalPassFailures = 0
	m.totalConvergenceErrors = 0
}

var (
	globalReconcilerMetrics     *ReconcilerMetrics
	globalReconcilerMetricsOnce sync.Once
)

// GetReconcilerMetrics returns the process-wide metrics instance.
func GetReconcilerMetrics() *ReconcilerMetrics {
	globalReconcilerMetricsOnce.Do(func() {
		globalReconcilerMetrics = NewReconcilerMetrics()
	})
	return globalReconcilerMetrics
}
