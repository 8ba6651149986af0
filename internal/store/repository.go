package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/contentforge/api/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS contents (
	id TEXT PRIMARY KEY,
	topic TEXT NOT NULL,
	content_type TEXT NOT NULL,
	status TEXT NOT NULL,
	phase TEXT,
	error TEXT,
	data TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_contents_status ON contents(status);
CREATE INDEX IF NOT EXISTS idx_contents_created_at ON contents(created_at);`

// ListOptions selects one page of jobs, newest first.
type ListOptions struct {
	Limit  int
	Offset int
	Status model.ContentStatus
}

// Repository stores finished and running jobs in SQLite
type Repository struct {
	db *sql.DB
}

// Open opens the SQLite database at path and applies the schema.
func Open(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	repo := NewRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewRepository wraps an open database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the contents table if needed.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to migrate contents table")
	}
	return nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save inserts job or replaces the stored copy.
func (r *Repository) Save(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "failed to marshal job")
	}

	query := `
		INSERT INTO contents (id, topic, content_type, status, phase, error, data, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			phase = excluded.phase,
			error = excluded.error,
			data = excluded.data,
			completed_at = excluded.completed_at`

	_, err = r.db.ExecContext(ctx, query,
		job.ID, job.Request.Topic, string(job.Request.ContentType), string(job.Status),
		nullString(string(job.Phase)), nullString(job.Error), string(data),
		job.CreatedAt, nullTime(job.CompletedAt),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save job %s", job.ID)
	}
	return nil
}

// Get loads one job.
func (r *Repository) Get(ctx context.Context, jobID string) (*model.Job, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM contents WHERE id = ?`, jobID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to load job %s", jobID)
	}
	return decodeJob(data)
}

// List returns one page of jobs, newest first.
func (r *Repository) List(ctx context.Context, opts ListOptions) ([]*model.Job, error) {
	query := `SELECT data FROM contents`
	args := []interface{}{}
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	jobs := []*model.Job{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		job, err := decodeJob(data)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, errors.Wrap(rows.Err(), "failed to iterate jobs")
}

// Count returns the number of jobs, optionally filtered by status.
func (r *Repository) Count(ctx context.Context, status model.ContentStatus) (int, error) {
	query := `SELECT COUNT(*) FROM contents`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count jobs")
	}
	return n, nil
}

// Delete removes one job.
func (r *Repository) Delete(ctx context.Context, jobID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contents WHERE id = ?`, jobID)
	if err != nil {
		return errors.Wrapf(err, "failed to delete job %s", jobID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeJob(data string) (*model.Job, error) {
	var job model.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal job")
	}
	return &job, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
