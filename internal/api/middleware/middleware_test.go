package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/ingamehud/internal/testutil"
)

func TestRecoveryWritesInternalError(t *testing.T) {
	logger, logs := testutil.NewRecordingLogger()
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "INTERNAL_ERROR")
	require.Len(t, logs.AtLevel(slog.LevelError), 1)
}

func TestLoggingLevels(t *testing.T) {
	tests := []struct {
		status int
		level  slog.Level
	}{
		{http.StatusOK, slog.LevelDebug},
		{http.StatusBadRequest, slog.LevelInfo},
		{http.StatusServiceUnavailable, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			logger, logs := testutil.NewRecordingLogger()
			h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("{}"))
			}))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/players", nil))

			records := logs.Records()
			require.Len(t, records, 1)
			assert.Equal(t, tt.level, records[0].Level)
			assert.Equal(t, "admin request", records[0].Message)
		})
	}
}
