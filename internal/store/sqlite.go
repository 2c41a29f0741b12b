package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobby-s-dev/species-archive/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteStore{
		db:  db,
		now: time.Now,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS favorites (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			common_name TEXT NOT NULL,
			species_data BLOB NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			query TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_favorites_user ON favorites(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_history_user ON history(user_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveFavorite stores record for userID. Saving a name that is already a
// favorite replaces the stored copy.
func (s *SQLiteStore) SaveFavorite(ctx context.Context, userID string, record *models.SpeciesRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("error encoding favorite: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error saving favorite: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND common_name = ?`, userID, record.CommonName); err != nil {
		return fmt.Errorf("error saving favorite: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO favorites (id, user_id, common_name, species_data, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, record.CommonName, data, s.now().UTC()); err != nil {
		return fmt.Errorf("error saving favorite: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) RemoveFavorite(ctx context.Context, userID, commonName string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND common_name = ?`, userID, commonName)
	if err != nil {
		return fmt.Errorf("error removing favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error removing favorite: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFavorites returns the user's favorites, newest first.
func (s *SQLiteStore) ListFavorites(ctx context.Context, userID string) ([]models.SpeciesRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT species_data FROM favorites WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing favorites: %w", err)
	}
	defer rows.Close()

	records := []models.SpeciesRecord{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("error scanning favorite: %w", err)
		}
		var record models.SpeciesRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("error decoding favorite: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, userID, query string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (user_id, query, created_at) VALUES (?, ?, ?)`,
		userID, query, s.now().UTC())
	if err != nil {
		return fmt.Errorf("error appending history: %w", err)
	}
	return nil
}

// ListHistory returns the 50 most recent searches, newest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, userID string) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT query, created_at FROM history WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("error listing history: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.Query, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) ClearHistory(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("error clearing history: %w", err)
	}
	return nil
}
