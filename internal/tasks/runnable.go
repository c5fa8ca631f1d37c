package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const resultSuccess = "success"

// RunnableTask is a registered task and the state of its latest run.
// A task never runs concurrently with itself.
type RunnableTask struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Handler  TaskFunc

	// next reports the next scheduled run, nil for unscheduled tasks
	next func() time.Time

	mu           sync.RWMutex
	running      bool
	lastRun      time.Time
	lastDuration time.Duration
	lastResult   string
	logs         []LogEntry
}

// begin marks the task as running and clears the log buffer of the previous run.
// It reports false if a run is already in progress.
func (t *RunnableTask) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	t.logs = make([]LogEntry, 0)
	return true
}

func (t *RunnableTask) finish(start time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.lastRun = start
	t.lastDuration = time.Since(start)
	if err != nil {
		t.lastResult = fmt.Sprintf("failed: %v", err)
	} else {
		t.lastResult = resultSuccess
	}
}

// Run executes the handler once, bounded by the task timeout. It is the cron
// job of scheduled tasks and is also called by Manager.Trigger.
func (t *RunnableTask) Run() {
	zl := log.With().Str("task", t.Name).Logger()
	if !t.begin() {
		zl.Warn().Msg("task is already running, skipping execution")
		return
	}

	logger := runLogger(t, zl)
	logger.Info("starting task execution")

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(zl.WithContext(context.Background()), timeout)
	defer cancel()

	start := time.Now()
	err := t.Handler(ctx, logger)
	t.finish(start, err)

	if err != nil {
		logger.Error("task failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return
	}
	logger.Info("task completed successfully in %s", time.Since(start).Round(time.Millisecond))
}

func (t *RunnableTask) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := TaskStatus{
		Name:         t.Name,
		Schedule:     t.Schedule,
		Running:      t.running,
		LastRun:      t.lastRun,
		LastDuration: t.lastDuration,
		LastResult:   t.lastResult,
	}
	if t.next != nil {
		s.NextRun = t.next()
	}
	return s
}

// GetLogs returns a copy of the log buffer of the latest run.
func (t *RunnableTask) GetLogs() []LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append(make([]LogEntry, 0, len(t.logs)), t.logs...)
}

// AppendLog adds a message to the log buffer, dropping the oldest entries
// beyond MaxLogsPerTask.
func (t *RunnableTask) AppendLog(level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logs = append(t.logs, LogEntry{Time: time.Now(), Level: level, Message: msg})
	if over := len(t.logs) - MaxLogsPerTask; over > 0 {
		t.logs = t.logs[over:]
	}
}
