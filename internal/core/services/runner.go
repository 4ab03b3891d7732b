package services

import (
	"fmt"
	"sync"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
)

// TaskRunner tracks background tasks keyed by ID so the same document
// is never processed twice concurrently.
type TaskRunner struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

// NewTaskRunner creates an empty runner.
func NewTaskRunner() *TaskRunner {
	return &TaskRunner{
		inFlight: make(map[string]struct{}),
	}
}

// Go starts fn in a goroutine under the given ID. A task already
// running under the same ID yields domain.ErrIngestInProgress.
func (r *TaskRunner) Go(id string, fn func()) error {
	r.mu.Lock()
	if _, busy := r.inFlight[id]; busy {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrIngestInProgress, id)
	}
	r.inFlight[id] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.inFlight, id)
			r.mu.Unlock()
			r.wg.Done()
		}()
		fn()
	}()

	return nil
}

// InFlight returns the number of running tasks.
func (r *TaskRunner) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inFlight)
}

// Wait blocks until all running tasks finish.
func (r *TaskRunner) Wait() {
	r.wg.Wait()
}
