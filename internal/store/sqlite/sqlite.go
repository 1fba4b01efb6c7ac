package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// Schema creates the identity table. Applied by New; tests may pass it to NewWithSetup.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
	client_id       TEXT NOT NULL,
	display_name    TEXT NOT NULL,
	tag             TEXT NOT NULL,
	credential_hash TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (client_id, display_name),
	UNIQUE (display_name, tag)
);
`

// SQLiteStore implements store.IdentityStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.IdentityStore = (*SQLiteStore)(nil)

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetIdentity retrieves the record a client holds for a display name.
func (s *SQLiteStore) GetIdentity(ctx context.Context, clientID, displayName string) (*store.IdentityRecord, error) {
	query := `
		SELECT client_id, display_name, tag, credential_hash, created_at
		FROM identities
		WHERE client_id = ? AND display_name = ?
	`
	var rec store.IdentityRecord
	err := s.db.QueryRowContext(ctx, query, clientID, displayName).Scan(
		&rec.ClientID,
		&rec.DisplayName,
		&rec.Tag,
		&rec.CredentialHash,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query identity: %w", err)
	}

	return &rec, nil
}

// CreateIdentity inserts a new record.
func (s *SQLiteStore) CreateIdentity(ctx context.Context, rec *store.IdentityRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO identities (client_id, display_name, tag, credential_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, rec.ClientID, rec.DisplayName, rec.Tag, rec.CredentialHash, createdAt)
	if err == nil {
		return nil
	}
	if !isConstraintViolation(err) {
		return fmt.Errorf("insert identity: %w", err)
	}

	// Tell the two unique keys apart by checking the primary key directly.
	if _, getErr := s.GetIdentity(ctx, rec.ClientID, rec.DisplayName); getErr == nil {
		return store.ErrIdentityExists
	}
	return store.ErrTagTaken
}

// CountIdentities returns how many records share a display name.
func (s *SQLiteStore) CountIdentities(ctx context.Context, displayName string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities WHERE display_name = ?`, displayName).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
