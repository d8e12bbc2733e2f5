package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/sharekeeper/internal/api"
	"github.com/giantswarm/sharekeeper/pkg/logging"
)

// Manager coordinates all reconciliation activities.
//
// It manages:
//   - the change detector watching the manifest root
//   - resource-specific reconcilers
//   - periodic resync of instances left in error or out of sync
//   - the work queue, worker pool and retry backoff
type Manager struct {
	mu sync.RWMutex

	config ManagerConfig

	changeDetector ChangeDetector
	reconcilers    map[ResourceType]Reconciler
	resyncSources  []ResyncSource
	metrics        *ReconcilerMetrics

	queue         *delayedQueue
	statusTracker map[string]*ReconcileStatus
	changeChan    chan ChangeEvent

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	running    bool
}

// NewManager creates a new reconciliation manager.
func NewManager(config ManagerConfig) *Manager {
	if config.WorkerCount == 0 {
		config.WorkerCount = 2
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 5
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 5 * time.Minute
	}
	if config.DebounceInterval == 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}
	if config.ReconcileTimeout == 0 {
		config.ReconcileTimeout = 2 * time.Minute
	}
	if config.DisabledResourceTypes == nil {
		config.DisabledResourceTypes = make(map[ResourceType]bool)
	}

	m := &Manager{
		config:        config,
		reconcilers:   make(map[ResourceType]Reconciler),
		metrics:       GetReconcilerMetrics(),
		queue:         NewDelayedQueue(),
		statusTracker: make(map[string]*ReconcileStatus),
		changeChan:    make(chan ChangeEvent, 100),
	}
	if config.FilesystemPath != "" {
		m.changeDetector = NewFilesystemDetector(config.FilesystemPath, config.DebounceInterval)
	}
	return m
}

// SetChangeDetector replaces the change detector. It must be called before
// Start.
func (m *Manager) SetChangeDetector(detector ChangeDetector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changeDetector = detector
}

// SetMetrics replaces the metrics sink. It must be called before Start.
func (m *Manager) SetMetrics(metrics *ReconcilerMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
}

// RegisterReconciler registers a reconciler for a specific resource type.
func (m *Manager) RegisterReconciler(reconciler Reconciler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	resourceType := reconciler.GetResourceType()
	if _, exists := m.reconcilers[resourceType]; exists {
		return fmt.Errorf("reconciler for %s already registered", resourceType)
	}

	m.reconcilers[resourceType] = reconciler
	logging.Info("ReconcileManager", "Registered reconciler for %s", resourceType)

	if m.changeDetector != nil {
		if err := m.changeDetector.AddResourceType(resourceType); err != nil {
			logging.Warn("ReconcileManager", "Failed to add watch for %s: %v", resourceType, err)
		}
	}

	return nil
}

// RegisterResyncSource adds a source polled every ResyncInterval.
func (m *Manager) RegisterResyncSource(source ResyncSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resyncSources = append(m.resyncSources, source)
}

// Start begins the reconciliation system.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}

	m.ctx, m.cancelFunc = context.WithCancel(ctx)
	m.running = true
	detector := m.changeDetector
	resync := len(m.resyncSources) > 0 && m.config.ResyncInterval > 0
	m.mu.Unlock()

	if detector != nil {
		if err := detector.Start(m.ctx, m.changeChan); err != nil {
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			m.cancelFunc()
			return fmt.Errorf("failed to start change detector: %w", err)
		}
	}

	m.wg.Add(1)
	go m.processChangeEvents()

	if resync {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			wait.UntilWithContext(m.ctx, m.resync, m.config.ResyncInterval)
		}()
	}

	for i := 0; i < m.config.WorkerCount; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	logging.Info("ReconcileManager", "Started with %d workers", m.config.WorkerCount)
	return nil
}

// resync enqueues every resource reported by the registered sources.
func (m *Manager) resync(ctx context.Context) {
	m.mu.RLock()
	sources := append([]ResyncSource(nil), m.resyncSources...)
	m.mu.RUnlock()

	for _, source := range sources {
		names, err := source.PendingResync(ctx)
		if err != nil {
			logging.Error("ReconcileManager", err, "Resync listing failed for %s", source.GetResourceType())
			continue
		}
		for _, name := range names {
			m.handleChangeEvent(ChangeEvent{
				Type:      source.GetResourceType(),
				Name:      name,
				Operation: OperationUpdate,
				Timestamp: time.Now(),
				Source:    SourceResync,
			})
		}
		if len(names) > 0 {
			logging.Debug("ReconcileManager", "Resync queued %d %s resources", len(names), source.GetResourceType())
		}
	}
}

func (m *Manager) processChangeEvents() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case event, ok := <-m.changeChan:
			if !ok {
				return
			}
			m.handleChangeEvent(event)
		}
	}
}

func (m *Manager) handleChangeEvent(event ChangeEvent) {
	if !m.IsResourceTypeEnabled(event.Type) {
		logging.Debug("ReconcileManager", "Skipping change event for disabled resource type: %s %s/%s",
			event.Operation, event.Type, event.Name)
		return
	}

	logging.Debug("ReconcileManager", "Handling change event: %s %s/%s (%s)",
		event.Operation, event.Type, event.Name, event.Source)

	m.updateStatus(event.Type, event.Name, StatePending, "")

	m.queue.Add(ReconcileRequest{
		Type:    event.Type,
		Name:    event.Name,
		Source:  event.Source,
		Attempt: 1,
	})
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()

	logging.Debug("ReconcileManager", "Worker %d started", id)

	for {
		req, ok := m.queue.Get(m.ctx)
		if !ok {
			logging.Debug("ReconcileManager", "Worker %d shutting down", id)
			return
		}

		m.processRequest(req)
		m.queue.Done(req)
	}
}

func (m *Manager) processRequest(req ReconcileRequest) {
	m.mu.RLock()
	reconciler, ok := m.reconcilers[req.Type]
	timeout := m.config.ReconcileTimeout
	metrics := m.metrics
	m.mu.RUnlock()

	if !ok {
		logging.Warn("ReconcileManager", "No reconciler for resource type: %s", req.Type)
		return
	}

	m.updateStatus(req.Type, req.Name, StateReconciling, "")
	metrics.RecordReconcileAttempt(req.Type, req.Name)

	logging.Debug("ReconcileManager", "Reconciling %s/%s (attempt %d)",
		req.Type, req.Name, req.Attempt)

	ctx, cancel := context.WithTimeout(m.ctx, timeout)
	defer cancel()

	result := reconciler.Reconcile(ctx, req)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Error = fmt.Errorf("reconciliation timed out after %v", timeout)
		result.Requeue = true
	}

	switch {
	case result.Error != nil:
		m.handleReconcileError(req, result)
	case result.Requeue || result.RequeueAfter > 0:
		metrics.RecordReconcileSuccess(req.Type, req.Name)
		m.handleRequeue(req, result)
		m.updateStatus(req.Type, req.Name, StateSynced, "")
	default:
		metrics.RecordReconcileSuccess(req.Type, req.Name)
		m.handleSuccess(req)
	}
}

func (m *Manager) handleReconcileError(req ReconcileRequest, result ReconcileResult) {
	m.mu.RLock()
	metrics := m.metrics
	m.mu.RUnlock()

	logging.Warn("ReconcileManager", "Reconciliation failed for %s/%s: %v",
		req.Type, req.Name, result.Error)
	metrics.RecordReconcileFailure(req.Type, req.Name, result.Error.Error())

	var convErr *api.ConvergenceError
	if errors.As(result.Error, &convErr) {
		metrics.RecordConvergenceFailure(req.Name, convErr)
	}

	// Invalid input does not get better by retrying; the next manifest
	// change or resync enqueues the instance again.
	if api.IsInvalid(result.Error) || req.Attempt >= m.config.MaxRetries {
		logging.Error("ReconcileManager", result.Error,
			"Giving up on %s/%s after %d attempts", req.Type, req.Name, req.Attempt)
		m.updateStatus(req.Type, req.Name, StateFailed, result.Error.Error())
		return
	}

	m.updateStatus(req.Type, req.Name, StateError, result.Error.Error())

	backoff := m.calculateBackoff(req.Attempt)

	req.Attempt++
	req.LastError = result.Error
	m.queue.AddAfter(req, backoff)

	logging.Debug("ReconcileManager", "Requeuing %s/%s after %v (attempt %d)",
		req.Type, req.Name, backoff, req.Attempt)
}

func (m *Manager) handleRequeue(req ReconcileRequest, result ReconcileResult) {
	delay := result.RequeueAfter
	if delay == 0 {
		delay = m.config.InitialBackoff
	}

	req.Attempt = 1
	req.LastError = nil
	m.queue.AddAfter(req, delay)
	logging.Debug("ReconcileManager", "Requeuing %s/%s after %v",
		req.Type, req.Name, delay)
}

func (m *Manager) handleSuccess(req ReconcileRequest) {
	logging.Debug("ReconcileManager", "Successfully reconciled %s/%s", req.Type, req.Name)
	m.updateStatus(req.Type, req.Name, StateSynced, "")
}

// calculateBackoff doubles InitialBackoff per attempt, capped at MaxBackoff.
func (m *Manager) calculateBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := m.config.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= m.config.MaxBackoff {
			return m.config.MaxBackoff
		}
	}
	if backoff > m.config.MaxBackoff {
		backoff = m.config.MaxBackoff
	}
	return backoff
}

func (m *Manager) updateStatus(resourceType ResourceType, name string, state ReconcileState, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := requestKey(ReconcileRequest{Type: resourceType, Name: name})
	status, ok := m.statusTracker[key]
	if !ok {
		status = &ReconcileStatus{
			ResourceType: resourceType,
			Name:         name,
		}
		m.statusTracker[key] = status
	}

	status.State = state
	status.LastError = errMsg

	switch state {
	case StateSynced:
		now := time.Now()
		status.LastReconcileTime = &now
		status.RetryCount = 0
	case StateError:
		status.RetryCount++
	}
}

// Stop gracefully shuts down the reconciliation manager.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	detector := m.changeDetector
	m.mu.Unlock()

	logging.Info("ReconcileManager", "Stopping reconciliation manager...")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	if detector != nil {
		if err := detector.Stop(); err != nil {
			logging.Error("ReconcileManager", err, "Error stopping change detector")
		}
	}

	m.queue.Shutdown()
	m.wg.Wait()

	logging.Info("ReconcileManager", "Reconciliation manager stopped")
	return nil
}

// GetStatus returns the reconciliation status for a resource.
func (m *Manager) GetStatus(resourceType ResourceType, name string) (*ReconcileStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statusTracker[requestKey(ReconcileRequest{Type: resourceType, Name: name})]
	if !ok {
		return nil, false
	}
	copied := *status
	return &copied, true
}

// GetAllStatuses returns all reconciliation statuses ordered by name.
func (m *Manager) GetAllStatuses() []ReconcileStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]ReconcileStatus, 0, len(m.statusTracker))
	for _, status := range m.statusTracker {
		statuses = append(statuses, *status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].ResourceType != statuses[j].ResourceType {
			return statuses[i].ResourceType < statuses[j].ResourceType
		}
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

// TriggerReconcile manually triggers reconciliation for a resource.
func (m *Manager) TriggerReconcile(resourceType ResourceType, name string) {
	m.handleChangeEvent(ChangeEvent{
		Type:      resourceType,
		Name:      name,
		Operation: OperationUpdate,
		Timestamp: time.Now(),
		Source:    SourceManual,
	})
}

// IsRunning returns whether the manager is running.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// GetQueueLength returns the number of requests ready to be processed.
func (m *Manager) GetQueueLength() int {
	return m.queue.Len()
}

// GetEnabledResourceTypes returns the resource types with reconciliation
// enabled, sorted.
func (m *Manager) GetEnabledResourceTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	types := make([]string, 0, len(m.reconcilers))
	for rt := range m.reconcilers {
		if !m.config.DisabledResourceTypes[rt] {
			types = append(types, string(rt))
		}
	}
	sort.Strings(types)
	return types
}

// IsResourceTypeEnabled checks if reconciliation is enabled for a resource type.
func (m *Manager) IsResourceTypeEnabled(resourceType ResourceType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, registered := m.reconcilers[resourceType]
	return registered && !m.config.DisabledResourceTypes[resourceType]
}

// DisableResourceType disables reconciliation for a specific resource type.
func (m *Manager) DisableResourceType(resourceType ResourceType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config.DisabledResourceTypes[resourceType] = true
	logging.Info("ReconcileManager", "Disabled reconciliation for %s", resourceType)
}

// EnableResourceType enables reconciliation for a specific resource type.
func (m *Manager) EnableResourceType(resourceType ResourceType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.config.DisabledResourceTypes, resourceType)
	logging.Info("ReconcileManager", "Enabled reconciliation for %s", resourceType)
}
