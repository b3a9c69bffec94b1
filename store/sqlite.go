package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/goliatone/go-errors"
	stateflow "github.com/goliatone/go-stateflow"
)

// SQLiteStore persists values in a SQLite table, one row per identifier with
// a JSON payload and a version counter. The caller owns the *sql.DB; hosts
// typically open it with the modernc.org/sqlite driver.
type SQLiteStore struct {
	db    *sql.DB
	table string

	schemaOnce sync.Once
	schemaErr  error
}

// NewSQLiteStore builds a store over db using the given table name.
func NewSQLiteStore(db *sql.DB, table string) *SQLiteStore {
	if table == "" {
		table = "values"
	}
	return &SQLiteStore{db: db, table: table}
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			identifier TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			version    INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL
		)`, s.table)
		_, s.schemaErr = s.db.ExecContext(ctx, stmt)
	})
	return s.schemaErr
}

func (s *SQLiteStore) ReadValue(ctx context.Context, id stateflow.Identifier) (stateflow.Value, error) {
	if s == nil || s.db == nil {
		return stateflow.Value{}, stderrors.New("sqlite store not configured")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return stateflow.Value{}, err
	}

	q := fmt.Sprintf(`SELECT payload FROM %q WHERE identifier = ?`, s.table)
	var payload string
	err := s.db.QueryRowContext(ctx, q, string(id)).Scan(&payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return stateflow.Value{}, notFoundError(id)
	}
	if err != nil {
		return stateflow.Value{}, err
	}

	var data any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return stateflow.Value{}, apperrors.Wrap(err, apperrors.CategoryBadInput, "decode stored value").
			WithMetadata(map[string]any{"identifier": string(id)})
	}
	return stateflow.NewValue(id, data), nil
}

func (s *SQLiteStore) Values(ctx context.Context, ids []stateflow.Identifier) ([]stateflow.Value, error) {
	out := make([]stateflow.Value, 0, len(ids))
	for _, id := range ids {
		v, err := s.ReadValue(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateValue(ctx context.Context, v stateflow.Value) error {
	if s == nil || s.db == nil {
		return stderrors.New("sqlite store not configured")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(v.Data)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryBadInput, "encode value").
			WithMetadata(map[string]any{"identifier": string(v.Identifier())})
	}

	stmt := fmt.Sprintf(`INSERT INTO %q (identifier, payload, version, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			payload = excluded.payload,
			version = %q.version + 1,
			updated_at = excluded.updated_at`, s.table, s.table)
	_, err = s.db.ExecContext(ctx, stmt, string(v.Identifier()), string(payload), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) Versions(ctx context.Context, ids []stateflow.Identifier) (map[stateflow.Identifier]int64, error) {
	if s == nil || s.db == nil {
		return nil, stderrors.New("sqlite store not configured")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	out := make(map[stateflow.Identifier]int64, len(ids))
	q := fmt.Sprintf(`SELECT version FROM %q WHERE identifier = ?`, s.table)
	for _, id := range ids {
		var version int64
		err := s.db.QueryRowContext(ctx, q, string(id)).Scan(&version)
		if stderrors.Is(err, sql.ErrNoRows) {
			out[id] = 0
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = version
	}
	return out, nil
}

func (s *SQLiteStore) UpdateValueIfFresh(ctx context.Context, v stateflow.Value, expected int64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, stderrors.New("sqlite store not configured")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}

	payload, err := json.Marshal(v.Data)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CategoryBadInput, "encode value").
			WithMetadata(map[string]any{"identifier": string(v.Identifier())})
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if expected == 0 {
		stmt := fmt.Sprintf(`INSERT INTO %q (identifier, payload, version, updated_at)
			VALUES (?, ?, 1, ?)
			ON CONFLICT(identifier) DO NOTHING`, s.table)
		res, err := s.db.ExecContext(ctx, stmt, string(v.Identifier()), string(payload), now)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			current, verr := s.currentVersion(ctx, v.Identifier())
			if verr != nil {
				return 0, verr
			}
			return 0, versionConflictError(v.Identifier(), expected, current)
		}
		return 1, nil
	}

	stmt := fmt.Sprintf(`UPDATE %q SET payload = ?, version = version + 1, updated_at = ?
		WHERE identifier = ? AND version = ?`, s.table)
	res, err := s.db.ExecContext(ctx, stmt, string(payload), now, string(v.Identifier()), expected)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		current, verr := s.currentVersion(ctx, v.Identifier())
		if verr != nil {
			return 0, verr
		}
		return 0, versionConflictError(v.Identifier(), expected, current)
	}
	return expected + 1, nil
}

func (s *SQLiteStore) currentVersion(ctx context.Context, id stateflow.Identifier) (int64, error) {
	q := fmt.Sprintf(`SELECT version FROM %q WHERE identifier = ?`, s.table)
	var version int64
	err := s.db.QueryRowContext(ctx, q, string(id)).Scan(&version)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return version, err
}
