package tasks

import (
	"context"
	"time"

	"github.com/darmiel/linkgate/internal/logging"
)

// TaskFunc is the unit of work.
// It receives a TaskLogger which stores the logging output (at runtime).
type TaskFunc func(ctx context.Context, logger logging.InternalLogger) error

type TaskDefinition struct {
	Name string

	// Schedule is a cron spec ("@every 6h", "0 */6 * * *").
	// Tasks without a schedule only run when triggered.
	Schedule string

	// Timeout bounds a single run, DefaultTimeout if zero.
	Timeout time.Duration

	Handler TaskFunc
}

type TaskStatus struct {
	Name         string        `json:"name,omitempty"`
	Schedule     string        `json:"schedule,omitempty"`
	Running      bool          `json:"running,omitempty"`
	LastRun      time.Time     `json:"last_run"`
	LastDuration time.Duration `json:"last_duration,omitempty"`
	LastResult   string        `json:"last_result,omitempty"`
	NextRun      time.Time     `json:"next_run"`
}

type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level,omitempty"`
	Message string    `json:"message,omitempty"`
}
