package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/splitify/internal/shared"
)

// SQLiteStore implements [Store] on the migrated credentials table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database whose migrations have already been applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenSQLiteStore opens (creating if needed) the database at path and applies migrations.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := shared.OpenMigrated(path)
	if err != nil {
		return nil, unavailable("open", err)
	}
	return NewSQLiteStore(db), nil
}

const upsertCredential = `
	INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`

func (s *SQLiteStore) Get(key Key) (string, bool, error) {
	if err := checkKeys(key); err != nil {
		return "", false, err
	}

	var value string
	err := s.db.QueryRow("SELECT value FROM credentials WHERE key = ?", string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(key Key, value string) error {
	return s.SetMany(map[Key]string{key: value})
}

func (s *SQLiteStore) Remove(key Key) error {
	return s.RemoveMany(key)
}

func (s *SQLiteStore) SetMany(values map[Key]string) error {
	for k := range values {
		if err := checkKeys(k); err != nil {
			return err
		}
	}
	return s.inTx("set", func(tx *sql.Tx) error {
		for k, v := range values {
			if _, err := tx.Exec(upsertCredential, string(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) RemoveMany(keys ...Key) error {
	if err := checkKeys(keys...); err != nil {
		return err
	}
	return s.inTx("remove", func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.Exec("DELETE FROM credentials WHERE key = ?", string(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return unavailable(op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return unavailable(op, err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}
