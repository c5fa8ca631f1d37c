package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	MaxLogsPerTask = 1000
	DefaultTimeout = 5 * time.Minute
)

var ErrStopped = errors.New("task manager is stopped")

type Manager struct {
	tasks sync.Map
	cron  *cron.Cron

	// triggered tracks runs started by Trigger, cron tracks its own
	mu        sync.Mutex
	stopped   bool
	triggered sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{
		cron: cron.New(),
	}
}

// Register adds a task and schedules it if it has a schedule.
func (m *Manager) Register(def TaskDefinition) error {
	if _, exists := m.tasks.Load(def.Name); exists {
		return TaskRegisteredError{Name: def.Name}
	}
	if def.Timeout <= 0 {
		def.Timeout = DefaultTimeout
	}

	task := &RunnableTask{
		Name:     def.Name,
		Schedule: def.Schedule,
		Timeout:  def.Timeout,
		Handler:  def.Handler,
		logs:     make([]LogEntry, 0),
	}

	if def.Schedule != "" {
		id, err := m.cron.AddFunc(def.Schedule, task.Run)
		if err != nil {
			return fmt.Errorf("scheduling task '%s': %w", def.Name, err)
		}
		task.next = func() time.Time {
			return m.cron.Entry(id).Next
		}
	}

	m.tasks.Store(def.Name, task)
	return nil
}

// Start runs the scheduler in its own goroutine.
func (m *Manager) Start() {
	m.cron.Start()
}

// Stop stops the scheduler and waits for scheduled and triggered runs
// until ctx is done.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	cronDone := m.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		m.triggered.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger runs a task now, outside of its schedule.
func (m *Manager) Trigger(name string) error {
	t, ok := m.tasks.Load(name)
	if !ok {
		return TaskNotFoundError{Name: name}
	}
	task := t.(*RunnableTask)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	m.triggered.Add(1)
	go func() {
		defer m.triggered.Done()
		task.Run()
	}()
	return nil
}

func (m *Manager) ListStatus() []TaskStatus {
	list := make([]TaskStatus, 0)
	m.tasks.Range(func(key, value any) bool {
		task := value.(*RunnableTask)
		list = append(list, task.Status())
		return true
	})
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

func (m *Manager) GetLogs(name string) ([]LogEntry, error) {
	t, ok := m.tasks.Load(name)
	if !ok {
		return nil, TaskNotFoundError{Name: name}
	}
	task := t.(*RunnableTask)
	return task.GetLogs(), nil
}
