package logging

import "github.com/rs/zerolog"

// InternalLogger is the printf-style logger handed to background work such as
// the renewal sweep.
type InternalLogger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

var _ InternalLogger = ZLogger{}

// ZLogger forwards to a zerolog logger.
type ZLogger struct {
	ZLog zerolog.Logger
}

func NewZLogger(zlog zerolog.Logger) ZLogger {
	return ZLogger{ZLog: zlog}
}

func (l ZLogger) Info(format string, args ...any)  { l.ZLog.Info().Msgf(format, args...) }
func (l ZLogger) Warn(format string, args ...any)  { l.ZLog.Warn().Msgf(format, args...) }
func (l ZLogger) Error(format string, args ...any) { l.ZLog.Error().Msgf(format, args...) }

var _ InternalLogger = MultiLogger{}

// MultiLogger writes every message to all of its loggers, in order.
type MultiLogger []InternalLogger

func NewMultiLogger(loggers ...InternalLogger) MultiLogger {
	return MultiLogger(loggers)
}

func (m MultiLogger) each(fn func(InternalLogger)) {
	for _, l := range m {
		fn(l)
	}
}

func (m MultiLogger) Info(format string, args ...any) {
	m.each(func(l InternalLogger) { l.Info(format, args...) })
}

func (m MultiLogger) Warn(format string, args ...any) {
	m.each(func(l InternalLogger) { l.Warn(format, args...) })
}

func (m MultiLogger) Error(format string, args ...any) {
	m.each(func(l InternalLogger) { l.Error(format, args...) })
}
