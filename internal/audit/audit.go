// Package audit records an optional run history of detected drift: which
// entity file changed, its old/new hash, whether it was flagged for review,
// and when — a supplement the original tool doesn't have (it only reports
// via git commits), for reviewers who need to see drift trends over time.
// Writes are best-effort: a store failure is logged and never fails a run.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Entry is one recorded drift event for a single entity file.
type Entry struct {
	ID              int64     `db:"id"`
	FilePath        string    `db:"file_path"`
	Changed         bool      `db:"changed"`
	ReviewRequired  bool      `db:"review_required"`
	PreviousDepHash string    `db:"previous_dep_hash"`
	NewDepHash      string    `db:"new_dep_hash"`
	RecordedAt      time.Time `db:"recorded_at"`
}

// Store persists inspection Entries.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	Close() error
}

// sqlStore is the Postgres-backed Store.
type sqlStore struct {
	db *sqlx.DB
}

// Open connects to the Postgres audit database at dsn using the pgx
// stdlib driver, grounded on the teacher's datastorage repository
// constructors (sqlx.DB wrapping *sql.DB).
func Open(dsn string) (Store, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &sqlStore{db: db}, nil
}

// NewFromDB wraps an already-open *sql.DB, used by tests against go-sqlmock.
func NewFromDB(db *sql.DB) Store {
	return &sqlStore{db: sqlx.NewDb(db, "pgx")}
}

const insertEntry = `
INSERT INTO inspection_audit (file_path, changed, review_required, previous_dep_hash, new_dep_hash, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

func (s *sqlStore) Record(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx, insertEntry,
		entry.FilePath, entry.Changed, entry.ReviewRequired,
		entry.PreviousDepHash, entry.NewDepHash, entry.RecordedAt)
	return err
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// NoopStore discards every entry; used when no audit DSN is configured.
type NoopStore struct{}

func (NoopStore) Record(context.Context, Entry) error { return nil }
func (NoopStore) Close() error                        { return nil }
