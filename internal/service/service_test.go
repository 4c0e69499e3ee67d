package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"docbase/internal/service"
)

// ─────────────────────────────────────────────────────────────
// uploadGuard tests
// ─────────────────────────────────────────────────────────────

func TestUploadGuard_OneRunPerJob(t *testing.T) {
	var g service.ExportedUploadGuard

	// A manual run, a cron fire, and a few watcher fires race for the
	// same job. Exactly one may win.
	var wg sync.WaitGroup
	wins := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- g.TryLock("job-import")
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
	if g.Running() != 1 {
		t.Fatalf("expected 1 running job, got %d", g.Running())
	}

	g.Unlock("job-import")
	if g.Running() != 0 {
		t.Fatalf("expected 0 running jobs after unlock, got %d", g.Running())
	}
	if !g.TryLock("job-import") {
		t.Fatal("expected TryLock to succeed once the previous run finished")
	}
	g.Unlock("job-import")
}

func TestUploadGuard_ActiveOrder(t *testing.T) {
	var g service.ExportedUploadGuard

	for _, id := range []string{"job-c", "job-a", "job-b"} {
		if !g.TryLock(id) {
			t.Fatalf("TryLock %s failed", id)
		}
		time.Sleep(2 * time.Millisecond)
	}

	// Longest-running first, not alphabetical.
	active := g.Active()
	if len(active) != 3 || active[0] != "job-c" || active[2] != "job-b" {
		t.Fatalf("expected admission order [job-c job-a job-b], got %v", active)
	}

	g.Unlock("job-a")
	if active := g.Active(); len(active) != 2 {
		t.Errorf("expected 2 active jobs after unlock, got %v", active)
	}
	g.Unlock("job-c")
	g.Unlock("job-b")
}

func TestUploadGuard_WaitAll(t *testing.T) {
	var g service.ExportedUploadGuard

	g.TryLock("job-1")
	g.TryLock("job-2")

	// Both runs finish shortly after WaitAll starts blocking.
	go func() {
		time.Sleep(15 * time.Millisecond)
		g.Unlock("job-1")
		time.Sleep(15 * time.Millisecond)
		g.Unlock("job-2")
	}()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	g.WaitAll(ctx)

	if g.Running() != 0 {
		t.Fatalf("expected all jobs finished, got %d running", g.Running())
	}
	if time.Since(start) >= 2*time.Second {
		t.Fatal("WaitAll hit the deadline instead of returning on completion")
	}
}

func TestUploadGuard_WaitAllHonorsContext(t *testing.T) {
	var g service.ExportedUploadGuard

	g.TryLock("job-stuck")
	defer g.Unlock("job-stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		g.WaitAll(ctx)
		close(done)
	}()

	select {
	case <-done:
		// gave up on the stuck job
	case <-time.After(1 * time.Second):
		t.Fatal("WaitAll ignored context cancellation")
	}
}

// ─────────────────────────────────────────────────────────────
// MockEmitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	if m.Last() != nil {
		t.Fatal("expected no events on a fresh emitter")
	}

	m.Emit(ctx, "upload:finished", map[string]any{"jobId": "j1", "count": 3})
	m.Emit(ctx, "upload:failed", map[string]any{"jobId": "j2"})

	if len(m.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(m.Events))
	}
	if m.Events[0].Event != "upload:finished" {
		t.Errorf("expected 'upload:finished' first, got %q", m.Events[0].Event)
	}

	last := m.Last()
	if last == nil || last.Event != "upload:failed" {
		t.Fatalf("expected 'upload:failed' last, got %+v", last)
	}
	data, ok := last.Data.(map[string]any)
	if !ok || data["jobId"] != "j2" {
		t.Errorf("expected payload to survive, got %+v", last.Data)
	}
}
