// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/lib/pq" // postgres driver
	"github.com/rs/zerolog"

	"github.com/tomtom215/mealwise/internal/models"
	"github.com/tomtom215/mealwise/internal/validation"
)

const schema = `
CREATE TABLE IF NOT EXISTS preference_profiles (
	user_id    TEXT PRIMARY KEY,
	profile    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresConfig configures the connection pool.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresStore keeps profiles as JSONB rows.
type PostgresStore struct {
	db       *sql.DB
	notifier Notifier
	clock    func() time.Time
	logger   zerolog.Logger
}

// OpenPostgres opens and pings the database and creates the table if needed.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create preference schema: %w", err)
	}
	return db, nil
}

// NewPostgresStore wraps an open database. notifier may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPostgresStore(db *sql.DB, notifier Notifier, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		db:       db,
		notifier: notifier,
		clock:    time.Now,
		logger:   logger.With().Str("component", "preferences").Str("backend", "postgres").Logger(),
	}
}

// Get reads and validates the user's profile. A stored profile that no longer
// validates is reported as a ValidationError rather than served.
func (s *PostgresStore) Get(ctx context.Context, userID string) (*models.UserPreferenceProfile, error) {
	var raw []byte
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT profile, updated_at
		FROM preference_profiles
		WHERE user_id = $1
	`, userID).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get preference profile: %w", err)
	}

	var p models.UserPreferenceProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, models.NewValidationError("stored preference profile is unreadable",
			models.FieldError{Field: "profile", Message: err.Error()})
	}
	p.UserID = userID
	p.UpdatedAt = updatedAt.UTC()
	if verr := validation.ValidateStruct(&p); verr != nil {
		return nil, verr
	}
	return &p, nil
}

// Put upserts the profile and notifies.
func (s *PostgresStore) Put(ctx context.Context, profile *models.UserPreferenceProfile) error {
	p, err := normalize(profile, s.clock())
	if err != nil {
		return err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preference profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preference_profiles (user_id, profile, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET profile = EXCLUDED.profile, updated_at = EXCLUDED.updated_at
	`, p.UserID, raw, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert preference profile: %w", err)
	}

	s.notify(ctx, p.UserID, p.UpdatedAt)
	return nil
}

// Delete removes the user's profile.
func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM preference_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete preference profile: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete preference profile: %w", err)
	}
	if n == 0 {
		return notFound(userID)
	}
	s.notify(ctx, userID, s.clock())
	return nil
}

func (s *PostgresStore) notify(ctx context.Context, userID string, at time.Time) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PreferenceUpdated(ctx, userID, at); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Preference change notification failed")
	}
}
