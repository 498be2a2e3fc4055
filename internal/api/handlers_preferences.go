// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/mealwise/internal/models"
)

// preferenceUser reads {userID} and enforces the token binding. It writes the
// response and returns false when the request must stop.
func preferenceUser(rw *ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		rw.Fail(models.NewValidationError("invalid request", models.FieldError{Field: "user_id", Message: "user_id is required"}))
		return "", false
	}
	if !mayActFor(r.Context(), userID) {
		rw.Error(http.StatusForbidden, codeForbidden, "token subject does not match user_id")
		return "", false
	}
	return userID, true
}

// GetPreferences handles GET /api/v1/preferences/{userID}.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID, ok := preferenceUser(rw, r)
	if !ok {
		return
	}

	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		rw.Fail(err)
		return
	}
	rw.Success(profile)
}

// PutPreferences handles PUT /api/v1/preferences/{userID}. The body's user_id
// may be omitted; when present it must match the path.
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID, ok := preferenceUser(rw, r)
	if !ok {
		return
	}

	var profile models.UserPreferenceProfile
	if err := decodeJSON(w, r, &profile); err != nil {
		rw.Fail(err)
		return
	}
	if profile.UserID != "" && profile.UserID != userID {
		rw.Fail(models.NewValidationError("invalid request", models.FieldError{Field: "user_id", Message: "body user_id does not match path"}))
		return
	}
	profile.UserID = userID
	// The store stamps the write time; clients cannot backdate a profile.
	profile.UpdatedAt = time.Time{}

	if err := h.profiles.Put(r.Context(), &profile); err != nil {
		rw.Fail(err)
		return
	}

	stored, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		rw.Fail(err)
		return
	}
	rw.Success(stored)
}

// DeletePreferences handles DELETE /api/v1/preferences/{userID}.
func (h *Handler) DeletePreferences(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID, ok := preferenceUser(rw, r)
	if !ok {
		return
	}

	if err := h.profiles.Delete(r.Context(), userID); err != nil {
		rw.Fail(err)
		return
	}
	rw.NoContent()
}
