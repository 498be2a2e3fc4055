// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

// Package upstream holds the HTTP plumbing shared by the outbound clients:
// bounded error-body reads, Retry-After parsing and the mapping of transport
// and status failures onto models.ExternalServiceError.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/mealwise/internal/models"
)

// maxErrorBodySize caps how much of an error response is kept.
const maxErrorBodySize = 64 * 1024

// maxRetryAfter caps an upstream Retry-After hint.
const maxRetryAfter = 5 * time.Minute

// ReadBodyForError reads at most 64KB of r for inclusion in an error.
func ReadBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// ParseRetryAfter reads a Retry-After header given either as delay seconds or
// as an HTTP date. Unparseable or past values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		d = at.Sub(now)
	}
	if d <= 0 {
		return 0
	}
	return min(d, maxRetryAfter)
}

// StatusError converts a non-2xx response into an ExternalServiceError and
// closes nothing; the caller owns resp.Body.
func StatusError(service string, resp *http.Response) *models.ExternalServiceError {
	body := ReadBodyForError(resp.Body)
	return &models.ExternalServiceError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Retryable:  retryableStatus(resp.StatusCode),
		RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		Cause:      fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
	}
}

// TransportError wraps a failed round trip. Cancellation by the caller is
// returned as is so it is never retried.
func TransportError(service string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &models.ExternalServiceError{Service: service, Retryable: true, Cause: err}
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
