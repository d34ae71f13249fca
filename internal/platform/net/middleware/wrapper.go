// Package middleware bundles the chi and cors middlewares the API mounts
package middleware

import (
	"net/http"
	"time"

	"newsroom/internal/platform/logger"
	pnet "newsroom/internal/platform/net"
	pstrings "newsroom/internal/platform/strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
)

// CORSOptions is the subset of go-chi/cors the API exposes
type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// CORS wraps go-chi/cors with defaults for empty lists
func CORS(o CORSOptions) func(http.Handler) http.Handler {
	return chicors.Handler(chicors.Options{
		AllowedOrigins: pstrings.IfEmpty(o.AllowedOrigins, []string{"*"}),
		AllowedMethods: pstrings.IfEmpty(o.AllowedMethods, []string{"GET", "POST", "OPTIONS"}),
		AllowedHeaders: pstrings.IfEmpty(o.AllowedHeaders, []string{"Accept", "Content-Type", "X-Request-ID"}),
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         o.MaxAge,
	})
}

// LogContext copies the chi request id into the logger context so
// logger.C(ctx) tags every line with it
func LogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := pnet.RequestID(r.Context())
		if id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r.WithContext(logger.WithRequest(r.Context(), id)))
	})
}

// Defaults is the stack every API router starts with
func Defaults(timeout time.Duration, cors CORSOptions) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		chimw.RealIP,
		chimw.RequestID,
		LogContext,
		RecoverJSON,
		AccessLog(AccessLogOptions{Slow: 500 * time.Millisecond}),
		chimw.Timeout(timeout),
		CORS(cors),
	}
}
