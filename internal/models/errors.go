// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrValidation        = errors.New("validation failed")
	ErrExternalService   = errors.New("external service failure")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrCostLimitExceeded = errors.New("cost limit exceeded")
	ErrCacheCorruption   = errors.New("cache corruption")
	ErrParse             = errors.New("unparseable response")
	ErrNotFound          = errors.New("not found")
)

// ErrUnknownValue is wrapped by enum decoders rejecting a value.
var ErrUnknownValue = errors.New("unknown value")

// API error codes.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeRateLimit       = "RATE_LIMIT_EXCEEDED"
	CodeCostLimit       = "COST_LIMIT_EXCEEDED"
	CodeCacheCorruption = "CACHE_CORRUPTION"
	CodeParse           = "PARSE_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeInternal        = "INTERNAL_ERROR"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed input. Requests failing validation are not
// processed at all.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

// NewValidationError creates a validation error with optional field details.
func NewValidationError(message string, fields ...FieldError) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ExternalServiceError wraps a failed call to a collaborator (AI service, places
// lookup, preference store). RetryAfter carries the upstream's Retry-After hint
// when it sent one.
type ExternalServiceError struct {
	Service    string
	StatusCode int
	Retryable  bool
	RetryAfter time.Duration
	Cause      error
}

func (e *ExternalServiceError) Error() string {
	msg := e.Service + " call failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ExternalServiceError) Unwrap() error { return e.Cause }

// Is matches ErrExternalService.
func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }

// RateLimitError reports a rejected call. RetryAfter is always positive.
type RateLimitError struct {
	Scope      string
	RetryAfter time.Duration
}

// NewRateLimitError creates a rate-limit error, forcing a positive retry hint.
func NewRateLimitError(scope string, retryAfter time.Duration) *RateLimitError {
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	return &RateLimitError{Scope: scope, RetryAfter: retryAfter}
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded, retry after %s", e.Scope, e.RetryAfter.Round(time.Millisecond))
}

// Is matches ErrRateLimitExceeded.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimitExceeded }

// RetryAfterSeconds rounds the hint up to whole seconds, at least 1.
func (e *RateLimitError) RetryAfterSeconds() int {
	return max(1, int(math.Ceil(e.RetryAfter.Seconds())))
}

// CostLimitError reports that the daily request quota or cost cap is exhausted.
type CostLimitError struct {
	Limit string
	Used  float64
	Max   float64
}

func (e *CostLimitError) Error() string {
	return fmt.Sprintf("daily %s limit reached (%.4g of %.4g)", e.Limit, e.Used, e.Max)
}

// Is matches ErrCostLimitExceeded.
func (e *CostLimitError) Is(target error) bool { return target == ErrCostLimitExceeded }

// CacheCorruptionError reports an unreadable cache entry.
type CacheCorruptionError struct {
	Key   string
	Layer string
	Cause error
}

func (e *CacheCorruptionError) Error() string {
	msg := "corrupt cache entry " + e.Key + " in " + e.Layer + " layer"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CacheCorruptionError) Unwrap() error { return e.Cause }

// Is matches ErrCacheCorruption.
func (e *CacheCorruptionError) Is(target error) bool { return target == ErrCacheCorruption }

// ParseError reports a response that could not be decoded or failed validation.
type ParseError struct {
	Reason  string
	Excerpt string
	Cause   error
}

const excerptLimit = 200

// NewParseError creates a parse error carrying a truncated excerpt of the raw payload.
func NewParseError(reason, raw string, cause error) *ParseError {
	if len(raw) > excerptLimit {
		cut := excerptLimit
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut] + "..."
	}
	return &ParseError{Reason: reason, Excerpt: raw, Cause: cause}
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return "parse error: " + e.Reason + ": " + e.Cause.Error()
	}
	return "parse error: " + e.Reason
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error { return e.Cause }

// Is matches ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// IsRetryable reports whether err is transient: a timeout, a network failure,
// an HTTP 500/502/503/504, or an explicit upstream rate-limit signal (HTTP 429).
// Local rate-limit and cost-limit rejections, parse failures and auth failures
// are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrParse) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrCostLimitExceeded) || errors.Is(err, ErrRateLimitExceeded) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var ext *ExternalServiceError
	if errors.As(err, &ext) {
		if ext.StatusCode != 0 {
			return retryableStatus(ext.StatusCode)
		}
		if ext.Retryable {
			return true
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ErrorCode maps an error onto its stable API error code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return CodeValidation
	case errors.Is(err, ErrRateLimitExceeded):
		return CodeRateLimit
	case errors.Is(err, ErrCostLimitExceeded):
		return CodeCostLimit
	case errors.Is(err, ErrCacheCorruption):
		return CodeCacheCorruption
	case errors.Is(err, ErrParse):
		return CodeParse
	case errors.Is(err, ErrExternalService):
		return CodeExternalService
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CodeTimeout
	default:
		return CodeInternal
	}
}
