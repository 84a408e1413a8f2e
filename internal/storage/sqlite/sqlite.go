package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/michaelbrown/mentor/internal/sandbox"
	"github.com/michaelbrown/mentor/internal/storage"

	_ "modernc.org/sqlite"
)

const scriptColumns = `id, title, code, language, created_at, updated_at`

// timeFormat is fixed-width so that text ordering matches time ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateScript(ctx context.Context, sc *storage.Script) error {
	now := time.Now().UTC()
	sc.CreatedAt = now
	sc.UpdatedAt = now
	if sc.Language == "" {
		sc.Language = storage.LanguageJavaScript
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scripts (`+scriptColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.Title, sc.Code, sc.Language,
		sc.CreatedAt.Format(timeFormat), sc.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting script: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetScript(ctx context.Context, id string) (*storage.Script, error) {
	// Try exact match first, then prefix match
	sc, err := scanScript(s.db.QueryRowContext(ctx, `
		SELECT `+scriptColumns+` FROM scripts WHERE id = ?`, id))
	if err == nil {
		return sc, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying script: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scriptColumns+` FROM scripts WHERE id LIKE ? || '%'`, id)
	if err != nil {
		return nil, fmt.Errorf("querying script: %w", err)
	}
	defer rows.Close()

	var matches []*storage.Script
	for rows.Next() {
		sc, err := scanScript(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous script prefix %q matches %d scripts", id, len(matches))
	}
}

func (s *SQLiteStore) ListScripts(ctx context.Context, opts storage.ScriptListOptions) ([]storage.Script, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + scriptColumns + ` FROM scripts`
	var args []any

	if q := strings.TrimSpace(opts.Query); q != "" {
		query += ` WHERE lower(title) LIKE '%' || lower(?) || '%'`
		args = append(args, q)
	}

	query += ` ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing scripts: %w", err)
	}
	defer rows.Close()

	var scripts []storage.Script
	for rows.Next() {
		sc, err := scanScript(rows)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, *sc)
	}
	return scripts, rows.Err()
}

func (s *SQLiteStore) UpdateScript(ctx context.Context, sc *storage.Script) error {
	sc.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE scripts SET title = ?, code = ?, updated_at = ? WHERE id = ?`,
		sc.Title, sc.Code, sc.UpdatedAt.Format(timeFormat), sc.ID,
	)
	if err != nil {
		return fmt.Errorf("updating script: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, sc.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteScript(ctx context.Context, id string) error {
	// Resolve prefix first
	sc, err := s.GetScript(ctx, id)
	if err != nil {
		return err
	}

	// Delete the run first (foreign key), then the script
	if _, err := s.db.ExecContext(ctx, `DELETE FROM script_runs WHERE script_id = ?`, sc.ID); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM scripts WHERE id = ?`, sc.ID)
	return err
}

func (s *SQLiteStore) SaveRun(ctx context.Context, scriptID string, result sandbox.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	now := time.Now().UTC().Format(timeFormat)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO script_runs (script_id, result, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(script_id) DO UPDATE SET result = excluded.result, updated_at = excluded.updated_at`,
		scriptID, string(data), now,
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LastRun(ctx context.Context, scriptID string) (*sandbox.Result, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT result FROM script_runs WHERE script_id = ?`, scriptID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading run: %w", err)
	}

	var result sandbox.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("unmarshaling run: %w", err)
	}
	return &result, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Scanner interface to work with both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanScript(s scanner) (*storage.Script, error) {
	var sc storage.Script
	var createdAt, updatedAt string
	err := s.Scan(&sc.ID, &sc.Title, &sc.Code, &sc.Language, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &sc, nil
}
