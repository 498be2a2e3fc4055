// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/mealwise/internal/logging"
)

// minSecretLength is the shortest accepted HS256 secret.
const minSecretLength = 32

type subjectKey struct{}

// Authenticator validates HS256 bearer tokens. The token subject is the user
// the caller may act for.
type Authenticator struct {
	secret []byte
	issuer string
	clock  func() time.Time
}

// NewAuthenticator creates an authenticator. issuer may be empty, in which
// case the iss claim is not checked.
func NewAuthenticator(secret, issuer string) (*Authenticator, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("JWT secret must be at least %d characters", minSecretLength)
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer, clock: time.Now}, nil
}

// GenerateToken signs a token for subject valid for ttl.
func (a *Authenticator) GenerateToken(subject string, ttl time.Duration) (string, error) {
	now := a.clock()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses tokenString and returns its subject. Only HS256 is
// accepted, and the token must carry an expiry.
func (a *Authenticator) ValidateToken(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clock),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// Authenticate rejects requests without a valid bearer token and stores the
// token subject on the request context.
func (a *Authenticator) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="mealwise"`)
			NewResponseWriter(w, r).Error(http.StatusUnauthorized, codeUnauthorized, "bearer token required")
			return
		}

		subject, err := a.ValidateToken(raw)
		if err != nil {
			logging.Ctx(r.Context()).Warn().
				Str("path", sanitizeLogValue(r.URL.Path)).
				Str("error", sanitizeLogValue(err.Error())).
				Msg("Rejected bearer token")
			w.Header().Set("WWW-Authenticate", `Bearer realm="mealwise", error="invalid_token"`)
			NewResponseWriter(w, r).Error(http.StatusUnauthorized, codeUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey{}, subject)
		ctx = logging.ContextWithUserID(ctx, subject)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// subjectFromContext returns the authenticated subject, if any.
func subjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok
}

// mayActFor reports whether the caller may act for userID. Without
// authentication every caller may.
func mayActFor(ctx context.Context, userID string) bool {
	subject, ok := subjectFromContext(ctx)
	return !ok || subject == userID
}
