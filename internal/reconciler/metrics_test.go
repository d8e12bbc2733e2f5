package reconciler

import (
	"errors"
	"sync"
	"testing"

	"github.com/giantswarm/sharekeeper/internal/api"
)

func TestReconcilerMetrics_NewInstance(t *testing.T) {
	metrics := NewReconcilerMetrics()
	if metrics.resourceMetrics == nil {
		t.Error("expected resourceMetrics map to be initialized")
	}
	if len(metrics.Summary().PerResourceTypeMetrics) != 0 {
		t.Error("expected empty summary")
	}
}

func TestReconcilerMetrics_ReconcileOutcomes(t *testing.T) {
	metrics := NewReconcilerMetrics()

	metrics.RecordReconcileAttempt(ResourceTypeShareAccess, "inst-1")
	metrics.RecordReconcileSuccess(ResourceTypeShareAccess, "inst-1")
	metrics.RecordReconcileAttempt(ResourceTypeShareAccess, "inst-2")
	metrics.RecordReconcileFailure(ResourceTypeShareAccess, "inst-2", "driver failed")

	summary := metrics.Summary()
	if summary.TotalReconcileAttempts != 2 {
		t.Errorf("expected TotalReconcileAttempts=2, got %d", summary.TotalReconcileAttempts)
	}
	if summary.TotalReconcileSuccesses != 1 {
		t.Errorf("expected TotalReconcileSuccesses=1, got %d", summary.TotalReconcileSuccesses)
	}
	if summary.TotalReconcileFailures != 1 {
		t.Errorf("expected TotalReconcileFailures=1, got %d", summary.TotalReconcileFailures)
	}
	if summary.ReconcileFailureRate != 0.5 {
		t.Errorf("expected ReconcileFailureRate=0.5, got %f", summary.ReconcileFailureRate)
	}

	view, ok := metrics.GetResourceTypeMetrics(ResourceTypeShareAccess)
	if !ok {
		t.Fatal("expected ShareAccess metrics to exist")
	}
	if view.ReconcileAttempts != 2 || view.ReconcileFailures != 1 {
		t.Errorf("unexpected per-type metrics: %+v", view)
	}
	if view.LastFailureAt.IsZero() || view.LastSuccessAt.IsZero() {
		t.Error("expected LastFailureAt and LastSuccessAt to be set")
	}

	if _, ok := metrics.GetResourceTypeMetrics("Unknown"); ok {
		t.Error("expected no metrics for an unknown type")
	}
}

func TestReconcilerMetrics_Passes(t *testing.T) {
	metrics := NewReconcilerMetrics()

	metrics.PassCompleted("inst-1", 1, nil)
	metrics.PassCompleted("inst-1", 2, nil)
	metrics.PassCompleted("inst-2", 1, errors.New("driver failed"))
	metrics.RecordConvergenceFailure("inst-3", &api.ConvergenceError{InstanceID: "inst-3", Passes: 10})

	summary := metrics.Summary()
	if summary.TotalEnginePasses != 3 {
		t.Errorf("expected TotalEnginePasses=3, got %d", summary.TotalEnginePasses)
	}
	if summary.TotalPassFailures != 1 {
		t.Errorf("expected TotalPassFailures=1, got %d", summary.TotalPassFailures)
	}
	if summary.TotalConvergenceErrors != 1 {
		t.Errorf("expected TotalConvergenceErrors=1, got %d", summary.TotalConvergenceErrors)
	}
}

func TestReconcilerMetrics_Reset(t *testing.T) {
	metrics := NewReconcilerMetrics()
	metrics.RecordReconcileAttempt(ResourceTypeShareAccess, "inst-1")
	metrics.PassCompleted("inst-1", 1, nil)

	metrics.Reset()

	summary := metrics.Summary()
	if summary.TotalReconcileAttempts != 0 || summary.TotalEnginePasses != 0 {
		t.Errorf("expected zeroed counters, got %+v", summary)
	}
	if _, ok := metrics.GetResourceTypeMetrics(ResourceTypeShareAccess); ok {
		t.Error("expected per-type metrics to be cleared")
	}
}

func TestReconcilerMetrics_Concurrent(t *testing.T) {
	metrics := NewReconcilerMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.RecordReconcileAttempt(ResourceTypeShareAccess, "inst")
			metrics.PassCompleted("inst", 1, nil)
			_ = metrics.Summary()
		}()
	}
	wg.Wait()

	if got := metrics.Summary().TotalReconcileAttempts; got != 20 {
		t.Errorf("expected 20 attempts, got %d", got)
	}
}

func TestGetReconcilerMetrics_Singleton(t *testing.T) {
	if GetReconcilerMetrics() != GetReconcilerMetrics() {
		t.Error("expected the same global instance")
	}
}
