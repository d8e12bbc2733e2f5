package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/giantswarm/sharekeeper/internal/manifest"
	"github.com/giantswarm/sharekeeper/pkg/logging"
)

// resourceDirMapping maps resource types to their directory below the
// manifest root.
var resourceDirMapping = map[ResourceType]string{
	ResourceTypeShareAccess: manifest.SharesDir,
}

// FilesystemDetector implements ChangeDetector for manifest files.
//
// It uses fsnotify to watch the per-type directories and emits one debounced
// change event per instance when its manifest is created, written, removed
// or renamed.
type FilesystemDetector struct {
	mu sync.RWMutex

	basePath         string
	watcher          *fsnotify.Watcher
	resourceTypes    map[ResourceType]bool
	debounceInterval time.Duration
	pendingEvents    map[string]*debounceEntry
	stopCh           chan struct{}
	running          bool
}

type debounceEntry struct {
	event ChangeEvent
	timer *time.Timer
}

// NewFilesystemDetector creates a new filesystem change detector.
func NewFilesystemDetector(basePath string, debounceInterval time.Duration) *FilesystemDetector {
	if debounceInterval == 0 {
		debounceInterval = 500 * time.Millisecond
	}

	return &FilesystemDetector{
		basePath:         basePath,
		resourceTypes:    make(map[ResourceType]bool),
		debounceInterval: debounceInterval,
		pendingEvents:    make(map[string]*debounceEntry),
		stopCh:           make(chan struct{}),
	}
}

// Start begins watching for filesystem changes.
func (d *FilesystemDetector) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.mu.Unlock()
		return err
	}

	d.watcher = watcher
	d.running = true
	d.stopCh = make(chan struct{})
	stopCh := d.stopCh

	for resourceType := range d.resourceTypes {
		if err := d.addWatchLocked(resourceType); err != nil {
			logging.Warn("FilesystemDetector", "Failed to add watch for %s: %v", resourceType, err)
		}
	}
	d.mu.Unlock()

	// The loop holds its own references so Stop can release d.watcher.
	go d.processEvents(ctx, watcher, stopCh, changes)

	logging.Info("FilesystemDetector", "Started watching %s for manifest changes", d.basePath)
	return nil
}

// addWatchLocked must be called with mu held and the watcher set.
func (d *FilesystemDetector) addWatchLocked(resourceType ResourceType) error {
	dirName, ok := resourceDirMapping[resourceType]
	if !ok {
		return nil
	}

	watchPath := filepath.Join(d.basePath, dirName)
	if err := os.MkdirAll(watchPath, 0755); err != nil {
		return err
	}
	if err := d.watcher.Add(watchPath); err != nil {
		return err
	}

	logging.Debug("FilesystemDetector", "Watching directory: %s", watchPath)
	return nil
}

func (d *FilesystemDetector) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh <-chan struct{}, changes chan<- ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			d.cleanupPendingEvents()
			return

		case <-stopCh:
			d.cleanupPendingEvents()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			d.handleFsEvent(event, changes)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("FilesystemDetector", err, "Filesystem watcher error")
		}
	}
}

func (d *FilesystemDetector) handleFsEvent(event fsnotify.Event, changes chan<- ChangeEvent) {
	if !isYAMLFile(event.Name) {
		return
	}

	resourceType, name := d.parseFilePath(event.Name)
	if resourceType == "" {
		return
	}

	d.mu.RLock()
	watching := d.resourceTypes[resourceType]
	d.mu.RUnlock()
	if !watching {
		return
	}

	var operation ChangeOperation
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		operation = OperationCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		operation = OperationUpdate
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		operation = OperationDelete
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		// The new name, if still below the root, arrives as a Create.
		operation = OperationDelete
	default:
		return
	}

	d.debounceEvent(ChangeEvent{
		Type:      resourceType,
		Name:      name,
		Operation: operation,
		Timestamp: time.Now(),
		Source:    SourceFilesystem,
		FilePath:  event.Name,
	}, changes)
}

// debounceEvent collapses bursts of events for one instance into a single
// event emitted after the debounce interval.
func (d *FilesystemDetector) debounceEvent(event ChangeEvent, changes chan<- ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := requestKey(ReconcileRequest{Type: event.Type, Name: event.Name})

	if entry, ok := d.pendingEvents[key]; ok {
		entry.timer.Stop()
		event.Operation = mergeOperations(entry.event.Operation, event.Operation)
	}

	timer := time.AfterFunc(d.debounceInterval, func() {
		d.mu.Lock()
		entry, ok := d.pendingEvents[key]
		if ok {
			delete(d.pendingEvents, key)
		}
		d.mu.Unlock()

		if !ok {
			return
		}
		select {
		case changes <- entry.event:
			logging.Debug("FilesystemDetector", "Emitted change event: %s %s/%s",
				entry.event.Operation, entry.event.Type, entry.event.Name)
		default:
			logging.Warn("FilesystemDetector", "Change event channel full, dropping event for %s/%s",
				entry.event.Type, entry.event.Name)
		}
	})

	d.pendingEvents[key] = &debounceEntry{event: event, timer: timer}
}

// mergeOperations folds a new operation into a pending one. A pending
// Create absorbs updates, and a Delete always wins. Editors that save via
// rename produce Delete then Create, which merges to Create.
func mergeOperations(old, new ChangeOperation) ChangeOperation {
	switch {
	case new == OperationDelete:
		return OperationDelete
	case old == OperationCreate:
		return OperationCreate
	default:
		return new
	}
}

// parseFilePath extracts the resource type and instance id from a manifest
// path below basePath.
func (d *FilesystemDetector) parseFilePath(path string) (ResourceType, string) {
	relPath, err := filepath.Rel(d.basePath, path)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return "", ""
	}

	parts := strings.Split(relPath, string(filepath.Separator))
	if len(parts) != 2 {
		return "", ""
	}

	for rt, dirName := range resourceDirMapping {
		if dirName != parts[0] {
			continue
		}
		if id, ok := manifest.InstanceID(path); ok {
			return rt, id
		}
	}
	return "", ""
}

func (d *FilesystemDetector) cleanupPendingEvents() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, entry := range d.pendingEvents {
		entry.timer.Stop()
	}
	d.pendingEvents = make(map[string]*debounceEntry)
}

// Stop gracefully stops the filesystem detector.
func (d *FilesystemDetector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.running = false
	close(d.stopCh)

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			logging.Error("FilesystemDetector", err, "Error closing filesystem watcher")
		}
		d.watcher = nil
	}

	logging.Info("FilesystemDetector", "Stopped filesystem detector")
	return nil
}

func (d *FilesystemDetector) GetSource() ChangeSource {
	return SourceFilesystem
}

// AddResourceType adds a resource type to watch. The watch is added
// immediately when the detector is running.
func (d *FilesystemDetector) AddResourceType(resourceType ResourceType) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.resourceTypes[resourceType] = true
	if d.running {
		return d.addWatchLocked(resourceType)
	}
	return nil
}

// RemoveResourceType stops emitting events for resourceType. The directory
// watch stays in place.
func (d *FilesystemDetector) RemoveResourceType(resourceType ResourceType) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.resourceTypes, resourceType)
	return nil
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
