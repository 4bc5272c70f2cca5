package taskmanager

import (
	"sync"

	"go.uber.org/zap"

	"github.com/autoclaw/autoclaw-backend/internal/logger"
	"github.com/autoclaw/autoclaw-backend/pkg/domain/entities"
)

// TaskManager runs each submitted task on its own goroutine. There is
// no admission control; the invariant it enforces is one in-flight task
// per id, so no deployment ever has two workflows mutating its record.
type TaskManager struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	stopped  bool
	wg       sync.WaitGroup
}

func NewTaskManager() *TaskManager {
	return &TaskManager{
		inFlight: make(map[string]struct{}),
	}
}

// Submit starts the task unless one is already running for the same id
// or the manager has stopped. Returns whether the task was accepted.
func (tm *TaskManager) Submit(id string, task entities.Task) bool {
	tm.mu.Lock()
	if tm.stopped {
		tm.mu.Unlock()
		return false
	}
	if _, running := tm.inFlight[id]; running {
		tm.mu.Unlock()
		logger.Warn("Task already in flight", zap.String("id", id))
		return false
	}
	tm.inFlight[id] = struct{}{}
	tm.wg.Add(1)
	tm.mu.Unlock()

	go func() {
		defer func() {
			tm.mu.Lock()
			delete(tm.inFlight, id)
			tm.mu.Unlock()
			tm.wg.Done()
		}()
		task()
	}()

	return true
}

// Stop rejects new submissions and waits for in-flight tasks.
func (tm *TaskManager) Stop() {
	tm.mu.Lock()
	tm.stopped = true
	tm.mu.Unlock()
	tm.wg.Wait()
	logger.Info("All tasks finished")
}
