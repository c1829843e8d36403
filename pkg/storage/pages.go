package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/lolikgiovi/lockey/pkg/reconcile"
)

// CachedPage is the persisted shape of one extracted Confluence page.
// Hidden keys survive refreshes: they live in their own table and are only
// removed on explicit page deletion or unhide.
type CachedPage struct {
	PageID     string                `json:"pageId"`
	Title      string                `json:"title"`
	Lockeys    []reconcile.Candidate `json:"lockeys"`
	HiddenKeys []string              `json:"hiddenKeys"`
	UpdatedAt  time.Time             `json:"updatedAt"`
}

// SavePage creates or refreshes a cached page. Hidden keys recorded for the
// page are preserved.
func (s *Store) SavePage(pageID, title string, lockeys []reconcile.Candidate) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	data, err := json.Marshal(lockeys)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO pages (page_id, title, lockeys, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(page_id) DO UPDATE SET title = excluded.title, lockeys = excluded.lockeys, updated_at = excluded.updated_at
	`, pageID, title, string(data), time.Now().UTC())
	return err
}

// GetPage loads a cached page with its hidden key set.
func (s *Store) GetPage(pageID string) (*CachedPage, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	var page CachedPage
	var lockeysJSON string
	err := s.db.QueryRow(`SELECT page_id, title, lockeys, updated_at FROM pages WHERE page_id = ?`, pageID).
		Scan(&page.PageID, &page.Title, &lockeysJSON, &page.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(lockeysJSON), &page.Lockeys); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT key FROM hidden_keys WHERE page_id = ? ORDER BY key`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		page.HiddenKeys = append(page.HiddenKeys, key)
	}
	return &page, rows.Err()
}

// ListPages returns all cached pages, most recently updated first.
func (s *Store) ListPages() ([]CachedPage, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	rows, err := s.db.Query(`SELECT page_id FROM pages ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pages := make([]CachedPage, 0, len(ids))
	for _, id := range ids {
		page, err := s.GetPage(id)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *page)
	}
	return pages, nil
}

// DeletePage removes a cached page and its hidden keys.
func (s *Store) DeletePage(pageID string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if _, err := s.db.Exec(`DELETE FROM hidden_keys WHERE page_id = ?`, pageID); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM pages WHERE page_id = ?`, pageID)
	return err
}

// HideKey marks a key as hidden for a page.
func (s *Store) HideKey(pageID, key string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO hidden_keys (page_id, key) VALUES (?, ?)
		ON CONFLICT(page_id, key) DO NOTHING
	`, pageID, key)
	return err
}

// UnhideKey removes a hidden-key mark.
func (s *Store) UnhideKey(pageID, key string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`DELETE FROM hidden_keys WHERE page_id = ? AND key = ?`, pageID, key)
	return err
}
