package middleware

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/watt-toolkit/arc/pkg/arc"
)

// LoggerConfig configures Logger's output.
type LoggerConfig struct {
	// Output receives one JSON line per request. Defaults to os.Stdout.
	Output io.Writer
}

// DefaultLoggerConfig returns the configuration used by Logger.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{Output: os.Stdout}
}

type logEntry struct {
	Time       string `json:"time"`
	RequestID  string `json:"request_id"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	DurationMs int64  `json:"duration_ms"`
}

// Logger wraps next, emitting one structured JSON log line per request
// to stdout: method, path, a per-request correlation id, and duration.
// There is no status code to report here (arc.Response does not expose
// one to middleware after Send), matching the wire decoder's own
// policy of not widening its surface beyond what the spec calls for.
func Logger(next arc.HandlerFunc) arc.HandlerFunc {
	return LoggerWithConfig(DefaultLoggerConfig(), next)
}

// LoggerWithConfig is Logger with an explicit output destination.
func LoggerWithConfig(config LoggerConfig, next arc.HandlerFunc) arc.HandlerFunc {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	encoder := json.NewEncoder(config.Output)

	return func(req *arc.Request, res *arc.Response) {
		start := time.Now()
		requestID := uuid.NewString()

		next(req, res)

		entry := logEntry{
			Time:       start.UTC().Format(time.RFC3339),
			RequestID:  requestID,
			Method:     req.Method,
			Path:       req.Pathname,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if err := encoder.Encode(entry); err != nil {
			log.Printf("arc: logger middleware failed to encode entry: %v", err)
		}
	}
}
