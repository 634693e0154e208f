package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
)

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	logging.Logger
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{Logger: logging.NewNopLogger()}
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) Info(msg string, fields ...logging.Field)  { l.record("info", msg) }
func (l *recordingLogger) Warn(msg string, fields ...logging.Field)  { l.record("warn", msg) }
func (l *recordingLogger) Error(msg string, fields ...logging.Field) { l.record("error", msg) }

func (l *recordingLogger) last() (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return logEntry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func TestRequestLoggingLevels(t *testing.T) {
	cases := []struct {
		name   string
		status int
		level  string
	}{
		{"success logs info", http.StatusOK, "info"},
		{"client error logs warn", http.StatusNotFound, "warn"},
		{"server error logs error", http.StatusInternalServerError, "error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger := newRecordingLogger()
			handler := RequestLogging(logger, DefaultLoggingConfig())(statusHandler(tc.status))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/compounds", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			entry, ok := logger.last()
			require.True(t, ok)
			assert.Equal(t, tc.level, entry.level)
		})
	}
}

func TestRequestLoggingSkipsConfiguredPaths(t *testing.T) {
	logger := newRecordingLogger()
	handler := RequestLogging(logger, DefaultLoggingConfig())(statusHandler(http.StatusOK))

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}

	assert.Equal(t, 0, logger.count())
}

func TestWrappedResponseWriterDefaultsTo200(t *testing.T) {
	logger := newRecordingLogger()
	handler := RequestLogging(logger, DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) // no explicit WriteHeader
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/compounds", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	entry, ok := logger.last()
	require.True(t, ok)
	assert.Equal(t, "info", entry.level)
}
