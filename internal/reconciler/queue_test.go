package reconciler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func shareRequest(name string, attempt int) ReconcileRequest {
	return ReconcileRequest{
		Type:    ResourceTypeShareAccess,
		Name:    name,
		Source:  SourceFilesystem,
		Attempt: attempt,
	}
}

func TestWorkQueue_AddAndGet(t *testing.T) {
	q := NewQueue()
	q.Add(shareRequest("inst-1", 1))

	if q.Len() != 1 {
		t.Errorf("expected queue length 1, got %d", q.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected to get item from queue")
	}
	if got.Name != "inst-1" || got.Type != ResourceTypeShareAccess {
		t.Errorf("got unexpected request: %+v", got)
	}
	q.Done(got)
}

func TestWorkQueue_Deduplication(t *testing.T) {
	q := NewQueue()

	q.Add(shareRequest("inst-1", 1))
	q.Add(shareRequest("inst-2", 1))
	second := shareRequest("inst-1", 2)
	second.Source = SourceResync
	q.Add(second)

	if q.Len() != 2 {
		t.Fatalf("expected queue length 2 after deduplication, got %d", q.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, _ := q.Get(ctx)
	if got.Name != "inst-1" || got.Attempt != 2 || got.Source != SourceResync {
		t.Errorf("expected latest inst-1 request in its original position, got %+v", got)
	}
	q.Done(got)

	got, _ = q.Get(ctx)
	if got.Name != "inst-2" {
		t.Errorf("expected inst-2, got %+v", got)
	}
	q.Done(got)
}

func TestWorkQueue_DedupAfterGet(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q.Add(shareRequest("a", 1))
	q.Add(shareRequest("b", 1))
	q.Add(shareRequest("c", 1))

	got, _ := q.Get(ctx)
	q.Done(got)

	// The index of c must have shifted with the pop.
	q.Add(shareRequest("c", 5))
	if q.Len() != 2 {
		t.Fatalf("expected queue length 2, got %d", q.Len())
	}

	got, _ = q.Get(ctx)
	if got.Name != "b" || got.Attempt != 1 {
		t.Errorf("expected b untouched, got %+v", got)
	}
	q.Done(got)

	got, _ = q.Get(ctx)
	if got.Name != "c" || got.Attempt != 5 {
		t.Errorf("expected updated c, got %+v", got)
	}
	q.Done(got)
}

func TestWorkQueue_DirtyRequeue(t *testing.T) {
	q := NewQueue()
	q.Add(shareRequest("inst-1", 1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected to get item from queue")
	}

	q.Add(shareRequest("inst-1", 2))
	if q.Len() != 0 {
		t.Errorf("expected queue length 0 while processing, got %d", q.Len())
	}

	q.Done(got)
	if q.Len() != 1 {
		t.Errorf("expected queue length 1 after done, got %d", q.Len())
	}

	got2, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected to get dirty item from queue")
	}
	if got2.Attempt != 2 {
		t.Errorf("expected attempt 2, got %d", got2.Attempt)
	}
	q.Done(got2)
}

func TestWorkQueue_Shutdown(t *testing.T) {
	q := NewQueue()

	done := make(chan bool)
	go func() {
		_, ok := q.Get(context.Background())
		done <- ok
	}()

	time.Sleep(50 * time.Millisecond)
	q.Shutdown()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected Get to return false after shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not unblock after shutdown")
	}

	q.Add(shareRequest("inst-1", 1))
	if q.Len() != 0 {
		t.Errorf("expected add after shutdown to be ignored, got length %d", q.Len())
	}
}

func TestWorkQueue_ContextCancel(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool)
	go func() {
		_, ok := q.Get(ctx)
		done <- ok
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected Get to return false after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not unblock after context cancel")
	}
}

func TestWorkQueue_ConcurrentAccess(t *testing.T) {
	q := NewQueue()

	const producers, perProducer = 5, 10

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Add(shareRequest(fmt.Sprintf("inst-%d-%d", p, j), 1))
			}
		}(i)
	}
	wg.Wait()
	q.Shutdown()

	seen := make(map[string]bool)
	for {
		req, ok := q.Get(context.Background())
		if !ok {
			break
		}
		seen[req.Name] = true
		q.Done(req)
	}

	if len(seen) != producers*perProducer {
		t.Errorf("expected %d distinct requests, got %d", producers*perProducer, len(seen))
	}
}

func TestDelayedQueue_AddAfter(t *testing.T) {
	q := NewDelayedQueue()
	defer q.Shutdown()

	start := time.Now()
	delay := 100 * time.Millisecond
	q.AddAfter(shareRequest("inst-1", 2), delay)

	if q.Pending() != 1 {
		t.Errorf("expected 1 pending timer, got %d", q.Pending())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected to get item from queue")
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("item returned too quickly: %v < %v", elapsed, delay)
	}
	if got.Name != "inst-1" {
		t.Errorf("got unexpected request: %+v", got)
	}
	q.Done(got)

	if q.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", q.Pending())
	}
}

func TestDelayedQueue_ReplacesTimer(t *testing.T) {
	q := NewDelayedQueue()
	defer q.Shutdown()

	q.AddAfter(shareRequest("inst-1", 1), time.Hour)
	q.AddAfter(shareRequest("inst-1", 2), 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected replaced timer to fire")
	}
	if got.Attempt != 2 {
		t.Errorf("expected attempt 2, got %d", got.Attempt)
	}
	q.Done(got)
}

func TestDelayedQueue_CancelPending(t *testing.T) {
	q := NewDelayedQueue()
	q.AddAfter(shareRequest("inst-1", 1), time.Hour)

	q.Shutdown()
	q.Shutdown()

	if q.Len() != 0 {
		t.Errorf("expected empty queue after shutdown, got %d", q.Len())
	}
	if q.Pending() != 0 {
		t.Errorf("expected no pending timers after shutdown, got %d", q.Pending())
	}

	q.AddAfter(shareRequest("inst-2", 1), time.Millisecond)
	if q.Pending() != 0 {
		t.Error("expected AddAfter after shutdown to be ignored")
	}
}
