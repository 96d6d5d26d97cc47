package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

// Error codes written by middleware. They share the envelope and code
// namespace of the API handlers.
const (
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeAuthFailed      = "auth_failed"
	ErrCodeForbidden       = "forbidden"
	ErrCodeOriginForbidden = "origin_not_allowed"
)

// writeError writes {"error":{"code","message"}} and records code for the
// logging middleware.
func writeError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(ctx, code))

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
