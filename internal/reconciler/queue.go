package reconciler

import (
	"context"
	"sync"
	"time"
)

// requestKey identifies a request for deduplication. Requests for the same
// instance collapse into one queue entry regardless of their source.
func requestKey(req ReconcileRequest) string {
	return string(req.Type) + "/" + req.Name
}

// workQueue implements ReconcileQueue. An instance is never handed to two
// workers at once: adds that arrive while it is processing are parked in
// dirty and requeued by Done.
type workQueue struct {
	mu   sync.Mutex
	cond *sync.Cond

	items      []ReconcileRequest
	queued     map[string]int
	processing map[string]bool
	dirty      map[string]ReconcileRequest

	shuttingDown bool
}

// NewQueue creates a new reconciliation queue.
func NewQueue() ReconcileQueue {
	q := &workQueue{
		queued:     make(map[string]int),
		processing: make(map[string]bool),
		dirty:      make(map[string]ReconcileRequest),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add enqueues req, replacing any queued request for the same instance.
func (q *workQueue) Add(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}

	key := requestKey(req)
	if q.processing[key] {
		q.dirty[key] = req
		return
	}
	if i, ok := q.queued[key]; ok {
		q.items[i] = req
		return
	}

	q.push(key, req)
}

// push must be called with mu held.
func (q *workQueue) push(key string, req ReconcileRequest) {
	q.queued[key] = len(q.items)
	q.items = append(q.items, req)
	q.cond.Signal()
}

// Get blocks until a request is available, the queue shuts down, or ctx is
// done.
func (q *workQueue) Get(ctx context.Context) (ReconcileRequest, bool) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.shuttingDown && ctx.Err() == nil {
		q.cond.Wait()
	}
	if ctx.Err() != nil || len(q.items) == 0 {
		return ReconcileRequest{}, false
	}

	req := q.items[0]
	q.items = q.items[1:]

	key := requestKey(req)
	delete(q.queued, key)
	for k, i := range q.queued {
		q.queued[k] = i - 1
	}
	q.processing[key] = true

	return req, true
}

// Done releases req and requeues the latest request parked while it was
// processing.
func (q *workQueue) Done(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := requestKey(req)
	delete(q.processing, key)

	if parked, ok := q.dirty[key]; ok {
		delete(q.dirty, key)
		if !q.shuttingDown {
			q.push(key, parked)
		}
	}
}

func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Shutdown stops accepting requests. Queued requests are still handed out
// until the queue drains.
func (q *workQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
	q.cond.Broadcast()
}

// delayedQueue adds timed requeue on top of a workQueue.
type delayedQueue struct {
	queue ReconcileQueue

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewDelayedQueue creates a queue that supports delayed requeuing.
func NewDelayedQueue() *delayedQueue {
	return &delayedQueue{
		queue:  NewQueue(),
		timers: make(map[string]*time.Timer),
	}
}

func (d *delayedQueue) Add(req ReconcileRequest) {
	d.queue.Add(req)
}

// AddAfter enqueues req once delay has elapsed. A later AddAfter for the same
// instance replaces the pending timer.
func (d *delayedQueue) AddAfter(req ReconcileRequest, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	key := requestKey(req)
	if timer, ok := d.timers[key]; ok {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		if d.timers[key] == timer {
			delete(d.timers, key)
		}
		closed := d.closed
		d.mu.Unlock()

		if !closed {
			d.queue.Add(req)
		}
	})
	d.timers[key] = timer
}

// Pending returns the number of requests waiting on a timer.
func (d *delayedQueue) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

func (d *delayedQueue) Get(ctx context.Context) (ReconcileRequest, bool) {
	return d.queue.Get(ctx)
}

func (d *delayedQueue) Done(req ReconcileRequest) {
	d.queue.Done(req)
}

func (d *delayedQueue) Len() int {
	return d.queue.Len()
}

// Shutdown stops the queue and cancels pending timers.
func (d *delayedQueue) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, timer := range d.timers {
		timer.Stop()
	}
	d.timers = make(map[string]*time.Timer)
	d.mu.Unlock()

	d.queue.Shutdown()
}
