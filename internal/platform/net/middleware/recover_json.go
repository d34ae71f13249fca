package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/logger"
	pnet "newsroom/internal/platform/net"
)

type panicWire struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code"`
	Error      string         `json:"error"`
	RequestID  string         `json:"request_id,omitempty"`
}

// RecoverJSON turns a handler panic into a JSON 500 and logs the stack
func RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			reqID := pnet.RequestID(r.Context())
			logger.C(r.Context()).Error().
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(panicWire{
				StatusCode: http.StatusInternalServerError,
				Status:     http.StatusText(http.StatusInternalServerError),
				Code:       perr.ErrorCodePanic,
				Error:      "internal error",
				RequestID:  reqID,
			})
		}()
		next.ServeHTTP(w, r)
	})
}
