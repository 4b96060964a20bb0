package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cutroom/cutroom-agent/internal/project"
)

type Repository interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	SaveSession(ctx context.Context, p *project.Project) error
	LoadSession(ctx context.Context) (*project.Project, error)

	AppendTrail(ctx context.Context, entries []project.LogEntry) error
	ListTrail(ctx context.Context, limit int) ([]project.LogEntry, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// SaveSession overwrites the single persisted session with the
// project's JSON form. The trail is persisted separately and dropped
// from the snapshot to keep it bounded.
func (r *SQLiteRepository) SaveSession(ctx context.Context, p *project.Project) error {
	slim := p.Clone()
	slim.Trail = nil

	data, err := json.Marshal(slim)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO session (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, string(data), time.Now().Format(time.RFC3339))
	return err
}

// LoadSession returns the persisted session, or nil when none exists.
func (r *SQLiteRepository) LoadSession(ctx context.Context) (*project.Project, error) {
	var data string
	err := r.db.QueryRowContext(ctx, "SELECT data FROM session WHERE id = 1").Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p project.Project
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if p.State == "" {
		p.State = project.StateIdle
	}
	return &p, nil
}

func (r *SQLiteRepository) AppendTrail(ctx context.Context, entries []project.LogEntry) error {
	for _, e := range entries {
		if _, err := r.db.ExecContext(ctx,
			"INSERT INTO trail (at, message) VALUES (?, ?)",
			e.At.Format(time.RFC3339Nano), e.Message,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) ListTrail(ctx context.Context, limit int) ([]project.LogEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT at, message FROM trail ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []project.LogEntry
	for rows.Next() {
		var at, message string
		if err := rows.Scan(&at, &message); err != nil {
			return nil, err
		}
		var e project.LogEntry
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.Message = message
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
