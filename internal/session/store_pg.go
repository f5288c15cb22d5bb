package session

import (
	"context"
	"database/sql"
	"errors"
)

// PGStore implements Store using Postgres, one row per (profile, slice).
type PGStore struct {
	DB *sql.DB
}

// Load returns the stored slice or ErrNotFound.
func (s *PGStore) Load(ctx context.Context, profileID, key string) ([]byte, error) {
	const query = `SELECT value FROM session_state WHERE profile_id = $1 AND slice_key = $2`
	var value []byte
	err := s.DB.QueryRowContext(ctx, query, profileID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Save upserts the slice. Writes are idempotent overwrites.
func (s *PGStore) Save(ctx context.Context, profileID, key string, value []byte) error {
	const query = `
INSERT INTO session_state (profile_id, slice_key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (profile_id, slice_key)
DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	_, err := s.DB.ExecContext(ctx, query, profileID, key, value)
	return err
}

// Delete removes one slice. Deleting an absent slice is not an error.
func (s *PGStore) Delete(ctx context.Context, profileID, key string) error {
	const query = `DELETE FROM session_state WHERE profile_id = $1 AND slice_key = $2`
	_, err := s.DB.ExecContext(ctx, query, profileID, key)
	return err
}

// Reset removes every slice for the profile.
func (s *PGStore) Reset(ctx context.Context, profileID string) error {
	const query = `DELETE FROM session_state WHERE profile_id = $1`
	_, err := s.DB.ExecContext(ctx, query, profileID)
	return err
}

var _ Store = (*PGStore)(nil)
