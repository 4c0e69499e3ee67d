package service

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ExportedUploadGuard is an exported alias so _test packages can test the guard.
type ExportedUploadGuard = uploadGuard

// ─────────────────────────────────────────────────────────────
// uploadGuard — one run per job at a time
// ─────────────────────────────────────────────────────────────

// uploadGuard admits a single run per job ID and remembers when each
// admitted run started. Manual runs, cron fires, and file-watch fires
// all pass through it, so a slow upload cannot stack on itself and
// shutdown can report which uploads it is still waiting on.
type uploadGuard struct {
	mu      sync.Mutex
	started map[string]time.Time
	wg      sync.WaitGroup
}

// TryLock attempts to mark jobID as running. Returns false when the job
// is already running.
func (g *uploadGuard) TryLock(jobID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started == nil {
		g.started = make(map[string]time.Time)
	}
	if _, ok := g.started[jobID]; ok {
		return false // already running
	}
	g.started[jobID] = time.Now()
	g.wg.Add(1)
	return true
}

// Unlock marks the job as no longer running. Must be called after TryLock returns true.
func (g *uploadGuard) Unlock(jobID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.started, jobID)
	g.wg.Done()
}

// Running returns how many jobs are currently running.
func (g *uploadGuard) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.started)
}

// Active returns the IDs of running jobs, longest-running first.
func (g *uploadGuard) Active() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.started))
	for id := range g.started {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := g.started[ids[i]], g.started[ids[j]]
		if a.Equal(b) {
			return ids[i] < ids[j]
		}
		return a.Before(b)
	})
	return ids
}

// WaitAll blocks until all currently running jobs complete or ctx is cancelled.
func (g *uploadGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
