package http

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/example/exam-timeline/internal/application"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// RequestLogger attaches a logger carrying a request id, method and path to
// the request context and logs start and completion.
func RequestLogger(base *slog.Logger) Middleware {
	base = defaultLogger(base)
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", rec.status, "duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// KeyVerifier checks a presented operator key.
type KeyVerifier interface {
	Verify(key string) error
}

// OperatorKeyVerifier checks keys against an argon2id hash. Keys that
// verified recently are remembered by digest so repeated requests skip the
// key derivation.
type OperatorKeyVerifier struct {
	encoded  string
	verified *lru.Cache[string, struct{}]
}

// NewOperatorKeyVerifier accepts either an encoded argon2id hash or a plain
// key, which is hashed once at startup.
func NewOperatorKeyVerifier(configured string) (*OperatorKeyVerifier, error) {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return nil, errors.New("operator key must not be empty")
	}
	encoded := configured
	if !application.IsOperatorKeyHash(configured) {
		var err error
		if encoded, err = application.HashOperatorKey(configured, application.DefaultArgon2idParams); err != nil {
			return nil, err
		}
	}
	cache, err := lru.New[string, struct{}](64)
	if err != nil {
		return nil, err
	}
	return &OperatorKeyVerifier{encoded: encoded, verified: cache}, nil
}

// Verify returns application.ErrUnauthorized for a wrong key.
func (v *OperatorKeyVerifier) Verify(key string) error {
	sum := sha256.Sum256([]byte(key))
	digest := hex.EncodeToString(sum[:])
	if v.verified.Contains(digest) {
		return nil
	}
	if err := application.VerifyOperatorKey(v.encoded, key); err != nil {
		return err
	}
	v.verified.Add(digest, struct{}{})
	return nil
}

// RequireOperatorKey rejects requests without a valid operator key. A nil
// verifier disables the check.
func RequireOperatorKey(verifier KeyVerifier, logger *slog.Logger) Middleware {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractOperatorKey(r)
			if key == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingOperatorKey)
				return
			}
			if err := verifier.Verify(key); err != nil {
				if errors.Is(err, application.ErrUnauthorized) {
					responder.writeError(r.Context(), w, http.StatusUnauthorized, errInvalidOperatorKey)
					return
				}
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "operator key verification failed", "error", err)
				responder.writeError(r.Context(), w, http.StatusInternalServerError, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractOperatorKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-Operator-Key")); key != "" {
		return key
	}
	const prefix = "Bearer "
	if header := strings.TrimSpace(r.Header.Get("Authorization")); strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, prefix))
	}
	return ""
}

// RateLimit rejects requests with 429 once limiter runs out of tokens. A nil
// limiter disables the check.
func RateLimit(limiter *rate.Limiter, logger *slog.Logger) Middleware {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				responder.writeError(r.Context(), w, http.StatusTooManyRequests, errRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func chain(handler http.Handler, middleware []Middleware) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		if middleware[i] != nil {
			handler = middleware[i](handler)
		}
	}
	return handler
}
