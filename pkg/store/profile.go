package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rayhq/docuchat/internal/tracing"
)

// CreateProfile persists a new assistant profile. Profile names are
// unique, case-insensitively; a duplicate name fails with ErrConflict.
func (s *Store) CreateProfile(ctx context.Context, p Profile) (Profile, error) {
	if p.Name == "" {
		return Profile{}, errors.New("profile name is required")
	}
	if p.Model == "" {
		return Profile{}, errors.New("profile model is required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, name, description, model, temperature, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Model, p.Temperature, now.Unix(), now.Unix(),
	)
	if err != nil {
		if isConstraintErr(err) {
			return Profile{}, fmt.Errorf("profile name %q already in use: %w", p.Name, ErrConflict)
		}
		return Profile{}, fmt.Errorf("failed to create profile: %w", err)
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().
		Str("profile_id", p.ID).
		Str("name", p.Name).
		Str("model", p.Model).
		Msg("Profile created")

	return p, nil
}

// GetProfile fetches one profile by ID.
func (s *Store) GetProfile(ctx context.Context, id string) (Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, model, temperature, created_at, updated_at
		FROM profiles WHERE id = ?`, id)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// ListProfiles returns all profiles ordered by name.
func (s *Store) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, model, temperature, created_at, updated_at
		FROM profiles ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// DeleteProfile removes a profile by ID.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Warn().Str("profile_id", id).Msg("Profile deleted")
	return nil
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	var createdAt, updatedAt int64
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Model, &p.Temperature, &createdAt, &updatedAt)
	if err != nil {
		return Profile{}, err
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return p, nil
}
