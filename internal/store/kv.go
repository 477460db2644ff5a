package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Match selects how Seek compares the probe key with stored keys.
type Match int

const (
	// MatchExact finds the key itself.
	MatchExact Match = iota
	// MatchLE finds the greatest key less than or equal to the probe.
	MatchLE
	// MatchGE finds the smallest key greater than or equal to the probe.
	MatchGE
)

// Get returns the decoded value stored under key.
// found is false (with a nil error) when the key is absent.
func (s *Store) Get(ctx context.Context, key []byte) (value []byte, found bool, err error) {
	if s.tx == nil {
		return nil, false, errClosed
	}
	var raw []byte
	err = s.tx.QueryRowContext(ctx, "SELECT v FROM kv WHERE k = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get: %w", err)
	}
	value, err = s.decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("get: %w", err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key, value []byte) error {
	if s.tx == nil {
		return errClosed
	}
	enc, err := s.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("put: encode: %w", err)
	}
	_, err = s.tx.ExecContext(ctx, `
		INSERT INTO kv (k, v) VALUES (?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v
	`, key, nonNil(enc))
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}

// Append adds value to the end of the record under key, creating the
// record when it does not exist.
func (s *Store) Append(ctx context.Context, key, value []byte) error {
	current, _, err := s.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("append: %w", err)
	}
	joined := make([]byte, 0, len(current)+len(value))
	joined = append(joined, current...)
	joined = append(joined, value...)
	if err := s.Put(ctx, key, joined); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	return nil
}

// Delete removes key. deleted is false when there was nothing to remove.
func (s *Store) Delete(ctx context.Context, key []byte) (deleted bool, err error) {
	if s.tx == nil {
		return false, errClosed
	}
	res, err := s.tx.ExecContext(ctx, "DELETE FROM kv WHERE k = ?", key)
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s.tx == nil {
		return 0, errClosed
	}
	var n int64
	if err := s.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM kv").Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Seek returns the stored key selected by probe and match.
func (s *Store) Seek(ctx context.Context, probe []byte, match Match) (key []byte, found bool, err error) {
	switch match {
	case MatchLE:
		return s.oneKey(ctx, "SELECT k FROM kv WHERE k <= ? ORDER BY k DESC LIMIT 1", probe)
	case MatchGE:
		return s.oneKey(ctx, "SELECT k FROM kv WHERE k >= ? ORDER BY k ASC LIMIT 1", probe)
	default:
		return s.oneKey(ctx, "SELECT k FROM kv WHERE k = ?", probe)
	}
}

// First returns the smallest stored key.
func (s *Store) First(ctx context.Context) ([]byte, bool, error) {
	return s.oneKey(ctx, "SELECT k FROM kv ORDER BY k ASC LIMIT 1")
}

// Last returns the greatest stored key.
func (s *Store) Last(ctx context.Context) ([]byte, bool, error) {
	return s.oneKey(ctx, "SELECT k FROM kv ORDER BY k DESC LIMIT 1")
}

// Next returns the smallest key strictly greater than after.
func (s *Store) Next(ctx context.Context, after []byte) ([]byte, bool, error) {
	return s.oneKey(ctx, "SELECT k FROM kv WHERE k > ? ORDER BY k ASC LIMIT 1", after)
}

// Prev returns the greatest key strictly less than before.
func (s *Store) Prev(ctx context.Context, before []byte) ([]byte, bool, error) {
	return s.oneKey(ctx, "SELECT k FROM kv WHERE k < ? ORDER BY k DESC LIMIT 1", before)
}

func (s *Store) oneKey(ctx context.Context, query string, args ...any) ([]byte, bool, error) {
	if s.tx == nil {
		return nil, false, errClosed
	}
	var key []byte
	err := s.tx.QueryRowContext(ctx, query, args...).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("seek: %w", err)
	}
	return nonNil(key), true, nil
}

func (s *Store) decode(raw []byte) ([]byte, error) {
	value, err := s.codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s value: %w", s.codec.Name(), err)
	}
	return nonNil(value), nil
}

// nonNil keeps empty values distinguishable from absent ones.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
