package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - kv_meta records the value codec
const currentSchemaVersion = 1

// MemoryPath is the SQLite path for a private in-memory database.
const MemoryPath = ":memory:"

// Options configures how a Store is opened.
type Options struct {
	// Codec names the value codec used when the database is new.
	// Empty means CodecNone.
	Codec string

	// BusyTimeout is the SQLite busy timeout in milliseconds.
	// Zero means 5000.
	BusyTimeout int

	// DisableWAL keeps the default rollback journal for file databases.
	DisableWAL bool
}

// Store is the ordered key-value table behind one engine session.
// Not safe for concurrent use: the open transaction pins the only connection.
type Store struct {
	db    *sql.DB
	tx    *sql.Tx
	codec Codec
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations, resolves the value codec and
// begins the first transaction.
func Open(path string, opts Options) (*Store, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The held transaction owns the connection; a second one would
	// either block or see a different in-memory database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, path, opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	codec, err := resolveCodec(db, opts.Codec)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to resolve codec: %w", err)
	}

	s := &Store{db: db, codec: codec}
	if err := s.begin(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close commits the pending transaction and closes the database.
// The database is closed even when the commit fails.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	var commitErr error
	if s.tx != nil {
		commitErr = s.tx.Commit()
		s.tx = nil
	}
	closeErr := s.db.Close()
	s.db = nil
	if commitErr != nil {
		return fmt.Errorf("commit on close: %w", commitErr)
	}
	return closeErr
}

// Commit makes every write since the last boundary durable.
func (s *Store) Commit() error {
	if s.tx == nil {
		return errClosed
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		// The transaction is gone either way; start over so the store
		// stays usable.
		if beginErr := s.begin(); beginErr != nil {
			return errors.Join(fmt.Errorf("commit: %w", err), beginErr)
		}
		return fmt.Errorf("commit: %w", err)
	}
	return s.begin()
}

// Rollback discards every write since the last boundary.
func (s *Store) Rollback() error {
	if s.tx == nil {
		return errClosed
	}
	err := s.tx.Rollback()
	s.tx = nil
	if beginErr := s.begin(); beginErr != nil {
		return errors.Join(err, beginErr)
	}
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Codec returns the effective value codec.
func (s *Store) Codec() Codec {
	return s.codec
}

func (s *Store) begin() error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

var errClosed = errors.New("store is closed")

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, path string, opts Options) error {
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5000
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy),
		"PRAGMA synchronous = NORMAL",
	}
	if !opts.DisableWAL && path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 marks pre-codec databases as uncompressed so they keep
// reading correctly whatever codec a later open asks for.
func migrateToV1(db *sql.DB) error {
	var rows int
	if err := db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&rows); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	if rows == 0 {
		return nil
	}
	_, err := db.Exec(`INSERT INTO kv_meta (name, value) VALUES ('codec', ?)
		ON CONFLICT(name) DO NOTHING`, CodecNone)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// resolveCodec returns the recorded codec, recording the requested one
// when the database has none yet.
func resolveCodec(db *sql.DB, requested string) (Codec, error) {
	var name string
	err := db.QueryRow("SELECT value FROM kv_meta WHERE name = 'codec'").Scan(&name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if requested == "" {
			requested = CodecNone
		}
		codec, err := NewCodec(requested)
		if err != nil {
			return nil, err
		}
		if _, err := db.Exec("INSERT INTO kv_meta (name, value) VALUES ('codec', ?)", codec.Name()); err != nil {
			return nil, fmt.Errorf("record codec: %w", err)
		}
		return codec, nil
	case err != nil:
		return nil, fmt.Errorf("read codec: %w", err)
	default:
		return NewCodec(name)
	}
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.tx.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
