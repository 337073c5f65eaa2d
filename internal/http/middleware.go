package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/events"
)

const (
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderUserID        = "X-User-Id"
	HeaderAdminToken    = "X-Admin-Token"
)

type ctxKey string

const ctxUserID ctxKey = "user_id"

// CorrelationID reuses the caller's correlation id or mints one, echoes it to
// the client and makes it available to events emitted by the request.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := strings.TrimSpace(r.Header.Get(HeaderCorrelationID))
		if cid == "" {
			cid = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, cid)
		next.ServeHTTP(w, r.WithContext(events.WithCorrelationID(r.Context(), cid)))
	})
}

// RequireUserID enforces X-User-Id and stores it in the request context.
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if uid == "" {
			writeProblem(w, r, http.StatusBadRequest, string(apperr.KindInvalidArgument), "missing required header: "+HeaderUserID)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserID, uid)))
	})
}

func userID(ctx context.Context) string {
	s, _ := ctx.Value(ctxUserID).(string)
	return s
}

// RequireAdmin guards catalog and order administration. An empty token leaves
// the admin routes open, which is only meant for local development.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderAdminToken)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeProblem(w, r, http.StatusUnauthorized, "unauthorized", "admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger writes one access log line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("correlation_id", events.CorrelationID(r.Context())),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("request", fields...)
				return
			}
			logger.Info("request", fields...)
		})
	}
}

// Recover turns a panic into a JSON 500 carrying the correlation id.
func Recover(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.String("correlation_id", events.CorrelationID(r.Context())),
						zap.Stack("stack"),
					)
					writeProblem(w, r, http.StatusInternalServerError, "internal", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
