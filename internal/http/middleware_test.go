package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/example/exam-timeline/internal/application"
)

type staticVerifier string

func (v staticVerifier) Verify(key string) error {
	if key != string(v) {
		return application.ErrUnauthorized
	}
	return nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireOperatorKey(t *testing.T) {
	t.Parallel()

	handler := RequireOperatorKey(staticVerifier("secret"), nil)(okHandler())

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{name: "missing key", want: http.StatusUnauthorized},
		{name: "wrong key", header: "X-Operator-Key", value: "nope", want: http.StatusUnauthorized},
		{name: "header key", header: "X-Operator-Key", value: "secret", want: http.StatusNoContent},
		{name: "bearer token", header: "Authorization", value: "Bearer secret", want: http.StatusNoContent},
		{name: "other scheme", header: "Authorization", value: "Basic secret", want: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPut, "/allocations/a", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), codeUnauthorized)
			}
		})
	}
}

func TestRequireOperatorKeyDisabled(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	RequireOperatorKey(nil, nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOperatorKeyVerifier(t *testing.T) {
	t.Parallel()

	encoded, err := application.HashOperatorKey("s3cret", application.Argon2idParams{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)

	verifier, err := NewOperatorKeyVerifier(encoded)
	require.NoError(t, err)

	require.NoError(t, verifier.Verify("s3cret"))
	assert.Equal(t, 1, verifier.verified.Len())
	require.NoError(t, verifier.Verify("s3cret"))
	assert.ErrorIs(t, verifier.Verify("guess"), application.ErrUnauthorized)

	_, err = NewOperatorKeyVerifier("  ")
	assert.Error(t, err)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	handler := RateLimit(rate.NewLimiter(rate.Limit(0), 1), nil)(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), codeRateLimited)
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var seen *slog.Logger
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = LoggerFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))

	require.NotNil(t, seen)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, buf.String(), `"msg":"request completed"`)
	assert.Contains(t, buf.String(), `"status":202`)
	assert.Contains(t, buf.String(), `"path":"/rooms"`)
}
