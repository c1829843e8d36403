package storage

import (
	"database/sql"
	"errors"
	"time"
)

// SetSetting stores or replaces a settings value.
func (s *Store) SetSetting(key, value string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	return err
}

// GetSetting returns a settings value, or ErrNotFound.
func (s *Store) GetSetting(key string) (string, error) {
	if s == nil || s.db == nil {
		return "", ErrStoreClosed
	}
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// DeleteSetting removes a settings value if present.
func (s *Store) DeleteSetting(key string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}
