package reconciler

import (
	"context"
	"time"
)

// ResourceType names a kind of reconciled resource.
type ResourceType string

// ResourceTypeShareAccess is the access rule set of one share instance.
// Its manifests live in <root>/shares and its names are instance ids.
const ResourceTypeShareAccess ResourceType = "ShareAccess"

// ChangeEvent reports that a resource may need reconciling.
type ChangeEvent struct {
	Type      ResourceType
	Name      string // share instance id
	Operation ChangeOperation
	Timestamp time.Time
	Source    ChangeSource

	// FilePath is set for filesystem events only.
	FilePath string
}

type ChangeOperation string

const (
	OperationCreate ChangeOperation = "Create"
	OperationUpdate ChangeOperation = "Update"
	OperationDelete ChangeOperation = "Delete"
)

// ChangeSource tells a reconciler why it runs. AccessReconciler only prunes
// on filesystem deletes.
type ChangeSource string

const (
	SourceFilesystem ChangeSource = "Filesystem"
	SourceResync     ChangeSource = "Resync" // periodic poll of ResyncSources
	SourceManual     ChangeSource = "Manual" // TriggerReconcile or the CLI
)

// ReconcileResult is what a Reconciler reports back to the manager.
// A non-nil Error is retried with backoff unless it is an
// api.InvalidError. RequeueAfter schedules a fresh run after a success.
type ReconcileResult struct {
	Requeue      bool
	RequeueAfter time.Duration
	Error        error
}

// ReconcileRequest is one queued unit of work. Requests for the same type
// and name are merged while queued.
type ReconcileRequest struct {
	Type   ResourceType
	Name   string
	Source ChangeSource

	// Attempt starts at 1 and grows with every retry.
	Attempt   int
	LastError error
}

// Reconciler converges one resource type. Reconcile must be idempotent.
type Reconciler interface {
	Reconcile(ctx context.Context, req ReconcileRequest) ReconcileResult
	GetResourceType() ResourceType
}

// ChangeDetector feeds change events into the manager.
type ChangeDetector interface {
	Start(ctx context.Context, changes chan<- ChangeEvent) error
	Stop() error
	GetSource() ChangeSource
	AddResourceType(resourceType ResourceType) error
	RemoveResourceType(resourceType ResourceType) error
}

// ResyncSource lists resources to reconcile on every resync tick,
// whether or not anything changed on disk.
type ResyncSource interface {
	PendingResync(ctx context.Context) ([]string, error)
	GetResourceType() ResourceType
}

// ReconcileQueue hands requests to workers.
//
// Get blocks until a request is ready, the context ends or the queue shuts
// down. A request returned by Get is in flight until Done; adding it again
// meanwhile marks it dirty and it is requeued by Done.
type ReconcileQueue interface {
	Add(req ReconcileRequest)
	Get(ctx context.Context) (ReconcileRequest, bool)
	Done(req ReconcileRequest)
	Len() int
	Shutdown()
}

// ManagerConfig configures a Manager. Zero values take the defaults noted.
type ManagerConfig struct {
	// FilesystemPath is the manifest root to watch; empty disables watching.
	FilesystemPath string

	WorkerCount      int           // default 2
	MaxRetries       int           // default 5
	InitialBackoff   time.Duration // default 1s, doubled per attempt
	MaxBackoff       time.Duration // default 5m
	DebounceInterval time.Duration // default 500ms
	ReconcileTimeout time.Duration // default 2m

	// ResyncInterval is the poll period of the resync sources; zero
	// disables resync.
	ResyncInterval time.Duration

	DisabledResourceTypes map[ResourceType]bool
}

// ReconcileStatus is the manager's view of one resource.
type ReconcileStatus struct {
	ResourceType ResourceType
	Name         string

	// LastReconcileTime is the time of the last success.
	LastReconcileTime *time.Time
	LastError         string
	RetryCount        int
	State             ReconcileState
}

type ReconcileState string

const (
	StatePending     ReconcileState = "Pending"
	StateReconciling ReconcileState = "Reconciling"
	StateSynced      ReconcileState = "Synced"
	StateError       ReconcileState = "Error"  // will be retried
	StateFailed      ReconcileState = "Failed" // retries exhausted or invalid input
)
