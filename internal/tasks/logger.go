package tasks

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/darmiel/linkgate/internal/logging"
)

var _ logging.InternalLogger = bufferLogger{}

// bufferLogger appends formatted messages to the log buffer of a task run.
type bufferLogger struct {
	task *RunnableTask
}

func (b bufferLogger) write(level zerolog.Level, format string, args []any) {
	b.task.AppendLog(level.String(), fmt.Sprintf(format, args...))
}

func (b bufferLogger) Info(format string, args ...any)  { b.write(zerolog.InfoLevel, format, args) }
func (b bufferLogger) Warn(format string, args ...any)  { b.write(zerolog.WarnLevel, format, args) }
func (b bufferLogger) Error(format string, args ...any) { b.write(zerolog.ErrorLevel, format, args) }

// runLogger writes to zlog and to the log buffer of task.
func runLogger(task *RunnableTask, zlog zerolog.Logger) logging.InternalLogger {
	return logging.NewMultiLogger(logging.NewZLogger(zlog), bufferLogger{task: task})
}
