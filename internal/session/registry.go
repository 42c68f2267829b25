// Package session tracks in-flight upload pipelines, at most one per
// (user, upload) key, and carries their cooperative cancellation state.
package session

import (
	"context"
	"sync"
	"time"

	appErr "github.com/rawsence/procheck/internal/pkg/errors"
)

type task struct {
	cancel context.CancelFunc
	ctime  time.Time
}

// Registry owns the task map and the cancellation flag set. Both are
// keyed by upload so independent uploads never contend on an entry. All
// cross-task shared state of the pipeline lives here and nowhere else.
type Registry struct {
	mu        sync.Mutex
	tasks     map[string]*task
	cancelled map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		tasks:     make(map[string]*task),
		cancelled: make(map[string]bool),
	}
}

func key(userID, uploadID string) string {
	return userID + "_" + uploadID
}

// Register records a running upload task. A live entry under the same
// key rejects the registration; the caller surfaces that as a conflict
// rather than racing two tasks onto one preview record.
func (r *Registry) Register(userID, uploadID string, cancel context.CancelFunc) error {
	k := key(userID, uploadID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[k]; ok {
		return appErr.ErrConflict
	}
	r.tasks[k] = &task{cancel: cancel, ctime: time.Now()}
	return nil
}

// Cancel marks the key cancelled before touching the task, so any stage
// checking the flag after this call observes cancellation even if the
// task happens to finish concurrently. It then fires the task's context
// cancellation to unblock a stage stuck inside an external call.
// Returns true only when a live task existed; false is a no-op signal,
// not an error, and repeated calls are safe.
func (r *Registry) Cancel(userID, uploadID string) bool {
	k := key(userID, uploadID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled[k] = true
	entry, ok := r.tasks[k]
	if !ok {
		// No live task means nothing will ever read or clear the
		// flag, so drop it again instead of leaking an entry.
		delete(r.cancelled, k)
		return false
	}
	entry.cancel()
	return true
}

// IsCancelled is the non-blocking checkpoint probe consulted between
// pipeline stages and around every model invocation.
func (r *Registry) IsCancelled(userID, uploadID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled[key(userID, uploadID)]
}

// Active reports whether a task is currently registered under the key.
func (r *Registry) Active(userID, uploadID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[key(userID, uploadID)]
	return ok
}

// Unregister drops the task handle and clears the cancellation flag.
// Runs unconditionally when the owning task finishes, whatever the
// outcome, so the key is immediately reusable by a retried upload.
func (r *Registry) Unregister(userID, uploadID string) {
	k := key(userID, uploadID)
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, k)
	delete(r.cancelled, k)
}
