// ABOUTME: Structured logging sink for diagnostics
// ABOUTME: Writes through slog behind a rate limiter
package diag

import "log/slog"

// LogSink logs diagnostics at error level
type LogSink struct {
	logger  *slog.Logger
	limiter *RateLimiter
}

// NewLogSink creates a sink logging to logger, or slog.Default() when nil
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{
		logger:  logger,
		limiter: NewRateLimiter(DefaultRateLimit, DefaultRateWindow),
	}
}

func (s *LogSink) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Report implements Sink
func (s *LogSink) Report(d Diagnostic) {
	allowed, announce := s.limiter.Allow()
	if announce {
		s.log().Warn("suppressing further diagnostics",
			slog.Float64("window_seconds", s.limiter.Window))
	}
	if !allowed {
		return
	}
	s.log().Error("operation failed",
		slog.String("operation", d.Operation),
		slog.String("file", d.File),
		slog.Int("line", d.Line),
		slog.Int("code", int(d.Code)),
		slog.Any("error", d.Err),
	)
}
