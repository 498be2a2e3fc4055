// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mealwise/internal/logging"
	"github.com/tomtom215/mealwise/internal/models"
)

// Envelope status values.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// Codes for failures raised by the HTTP layer itself rather than the engine.
const (
	codeUnauthorized = "UNAUTHORIZED"
	codeForbidden    = "FORBIDDEN"
	codeNotFound     = "NOT_FOUND"
)

// ResponseWriter writes models.APIResponse envelopes, stamping timing and the
// request ID from the request context.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

// NewResponseWriter creates a new response writer.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{
		w:         w,
		r:         r,
		startTime: time.Now(),
	}
}

func (rw *ResponseWriter) metadata() models.Metadata {
	return models.Metadata{
		Timestamp:   time.Now().UTC(),
		QueryTimeMS: time.Since(rw.startTime).Milliseconds(),
		RequestID:   logging.RequestIDFromContext(rw.r.Context()),
	}
}

// Success writes a 200 response with data.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.write(http.StatusOK, data, false)
}

// SuccessCached writes a 200 response flagged as served from a stored result.
func (rw *ResponseWriter) SuccessCached(data interface{}, cached bool) {
	rw.write(http.StatusOK, data, cached)
}

// NoContent writes a 204 No Content response.
func (rw *ResponseWriter) NoContent() {
	rw.w.WriteHeader(http.StatusNoContent)
}

func (rw *ResponseWriter) write(status int, data interface{}, cached bool) {
	meta := rw.metadata()
	meta.Cached = cached
	respondJSON(rw.w, status, &models.APIResponse{
		Status:   statusSuccess,
		Data:     data,
		Metadata: meta,
	})
}

// Error writes an error envelope with the given status and code.
func (rw *ResponseWriter) Error(status int, code, message string) {
	rw.ErrorWithDetails(status, code, message, nil)
}

// ErrorWithDetails writes an error envelope with additional details.
func (rw *ResponseWriter) ErrorWithDetails(status int, code, message string, details map[string]interface{}) {
	respondJSON(rw.w, status, &models.APIResponse{
		Status:   statusError,
		Metadata: rw.metadata(),
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// Fail maps err onto its HTTP status and error code and writes the envelope.
// Server-side failures are logged and their text is not returned to the client.
func (rw *ResponseWriter) Fail(err error) {
	status := statusForError(err)
	code := models.ErrorCode(err)
	message := err.Error()
	details := errorDetails(err)

	var rl *models.RateLimitError
	if errors.As(err, &rl) {
		rw.w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rl.RetryAfter)))
	}

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logging.Ctx(rw.r.Context()).Error().
			Str("code", code).
			Str("path", sanitizeLogValue(rw.r.URL.Path)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
		if status == http.StatusInternalServerError {
			message = "internal error"
		}
	}

	rw.ErrorWithDetails(status, code, message, details)
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrCostLimitExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrExternalService), errors.Is(err, models.ErrParse):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorDetails(err error) map[string]interface{} {
	var (
		verr *models.ValidationError
		rl   *models.RateLimitError
		cl   *models.CostLimitError
	)
	switch {
	case errors.As(err, &verr):
		if len(verr.Fields) == 0 {
			return nil
		}
		return map[string]interface{}{"fields": verr.Fields}
	case errors.As(err, &rl):
		return map[string]interface{}{
			"scope":               rl.Scope,
			"retry_after_seconds": retryAfterSeconds(rl.RetryAfter),
		}
	case errors.As(err, &cl):
		return map[string]interface{}{
			"limit": cl.Limit,
			"used":  cl.Used,
			"max":   cl.Max,
		}
	default:
		return nil
	}
}

// retryAfterSeconds rounds up so clients never retry early.
func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
