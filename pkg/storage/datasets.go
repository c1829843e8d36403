package storage

import (
	"database/sql"
	"errors"
	"time"
)

// SaveDataset upserts the raw dataset payload for a domain.
func (s *Store) SaveDataset(domain string, payload []byte, fetchedAt time.Time) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`
		INSERT INTO datasets (domain, payload, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at
	`, domain, payload, fetchedAt.UTC())
	return err
}

// LoadDataset returns the cached payload and fetch time for a domain.
func (s *Store) LoadDataset(domain string) ([]byte, time.Time, error) {
	if s == nil || s.db == nil {
		return nil, time.Time{}, ErrStoreClosed
	}
	var payload []byte
	var fetchedAt time.Time
	err := s.db.QueryRow(`SELECT payload, fetched_at FROM datasets WHERE domain = ?`, domain).
		Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return payload, fetchedAt, nil
}

// DeleteDataset removes the cached payload for a domain.
func (s *Store) DeleteDataset(domain string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`DELETE FROM datasets WHERE domain = ?`, domain)
	return err
}
