// Package sqlstore persists job records in a relational database through
// database/sql. SQLite, PostgreSQL and MySQL are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ncobase/genqueue/queue"
)

// Dialect selects placeholder style and schema.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// DialectFor maps a configured driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "pgx":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	}
	return "", fmt.Errorf("sqlstore: unsupported driver %q", driver)
}

const columns = `id, queue, owner_id, payload, status, progress, result, error_msg, submitted_at, updated_at, started_at, finished_at`

// Store is a queue.Store on a *sql.DB. Timestamps are stored as unix
// nanoseconds so that range queries behave the same on every dialect.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ queue.Store = (*Store)(nil)

// New returns a store on db and creates the jobs table if needed.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: init schema: %w", err)
		}
	}
	return nil
}

func schema(d Dialect) []string {
	switch d {
	case DialectMySQL:
		return []string{`CREATE TABLE IF NOT EXISTS gen_jobs (
    id           VARCHAR(96)  NOT NULL PRIMARY KEY,
    queue        VARCHAR(64)  NOT NULL,
    owner_id     VARCHAR(128) NOT NULL,
    payload      LONGTEXT     NULL,
    status       VARCHAR(16)  NOT NULL,
    progress     INT          NOT NULL DEFAULT 0,
    result       LONGTEXT     NULL,
    error_msg    TEXT         NULL,
    submitted_at BIGINT       NOT NULL,
    updated_at   BIGINT       NOT NULL,
    started_at   BIGINT       NULL,
    finished_at  BIGINT       NULL,
    INDEX idx_gen_jobs_status_finished (status, finished_at)
)`}
	default:
		return []string{`CREATE TABLE IF NOT EXISTS gen_jobs (
    id           VARCHAR(96)  PRIMARY KEY,
    queue        VARCHAR(64)  NOT NULL,
    owner_id     VARCHAR(128) NOT NULL,
    payload      TEXT         NULL,
    status       VARCHAR(16)  NOT NULL,
    progress     INTEGER      NOT NULL DEFAULT 0,
    result       TEXT         NULL,
    error_msg    TEXT         NULL,
    submitted_at BIGINT       NOT NULL,
    updated_at   BIGINT       NOT NULL,
    started_at   BIGINT       NULL,
    finished_at  BIGINT       NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_gen_jobs_status_finished ON gen_jobs (status, finished_at)`,
		}
	}
}

// rebind rewrites ? placeholders for the dialect.
func (s *Store) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, q string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nanos(t time.Time) int64 { return t.UnixNano() }

func nullRaw(b json.RawMessage) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func (s *Store) Create(ctx context.Context, job *queue.Job) error {
	_, err := s.exec(ctx,
		`INSERT INTO gen_jobs (id, queue, owner_id, payload, status, progress, submitted_at, updated_at) VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		job.ID, job.QueueName, job.OwnerID, nullRaw(job.Payload), string(queue.StatusWaiting),
		nanos(job.SubmittedAt), nanos(job.UpdatedAt),
	)
	if err == nil {
		return nil
	}
	if _, lookupErr := s.status(ctx, job.ID); lookupErr == nil {
		return queue.ErrDuplicateJob
	}
	return fmt.Errorf("sqlstore: create job: %w", err)
}

func (s *Store) Get(ctx context.Context, id string) (*queue.Job, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+columns+` FROM gen_jobs WHERE id = ?`), id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get job: %w", err)
	}
	return job, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*queue.Job, error) {
	var (
		j                     queue.Job
		status                string
		payload, result, fail sql.NullString
		submitted, updated    int64
		started, finished     sql.NullInt64
	)
	if err := row.Scan(&j.ID, &j.QueueName, &j.OwnerID, &payload, &status, &j.Progress,
		&result, &fail, &submitted, &updated, &started, &finished); err != nil {
		return nil, err
	}

	j.Status = queue.Status(status)
	if payload.Valid {
		j.Payload = json.RawMessage(payload.String)
	}
	if result.Valid {
		j.Result = json.RawMessage(result.String)
	}
	j.Error = fail.String
	j.SubmittedAt = time.Unix(0, submitted).UTC()
	j.UpdatedAt = time.Unix(0, updated).UTC()
	if started.Valid {
		t := time.Unix(0, started.Int64).UTC()
		j.StartedAt = &t
	}
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		j.FinishedAt = &t
	}
	return &j, nil
}

// status returns the current status of id, or ErrJobNotFound.
func (s *Store) status(ctx context.Context, id string) (queue.Status, error) {
	var st string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT status FROM gen_jobs WHERE id = ?`), id).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return "", queue.ErrJobNotFound
	}
	if err != nil {
		return "", err
	}
	return queue.Status(st), nil
}

// explain turns a guarded update that matched no row into ErrJobNotFound
// or ErrInvalidTransition.
func (s *Store) explain(ctx context.Context, id string) error {
	if _, err := s.status(ctx, id); err != nil {
		return err
	}
	return queue.ErrInvalidTransition
}

func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.exec(ctx, `DELETE FROM gen_jobs WHERE id = ? AND status = ?`, id, string(queue.StatusWaiting))
	if err != nil {
		return fmt.Errorf("sqlstore: delete job: %w", err)
	}
	if n == 0 {
		return s.explain(ctx, id)
	}
	return nil
}

func (s *Store) MarkActive(ctx context.Context, id string, at time.Time) (*queue.Job, error) {
	n, err := s.exec(ctx,
		`UPDATE gen_jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(queue.StatusActive), nanos(at), nanos(at), id, string(queue.StatusWaiting),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: claim job: %w", err)
	}
	if n == 0 {
		return nil, s.explain(ctx, id)
	}
	return s.Get(ctx, id)
}

func (s *Store) SetProgress(ctx context.Context, id string, progress int, at time.Time) error {
	progress = queue.ClampProgress(progress)
	n, err := s.exec(ctx,
		`UPDATE gen_jobs SET progress = ?, updated_at = ? WHERE id = ? AND status = ? AND progress < ?`,
		progress, nanos(at), id, string(queue.StatusActive), progress,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: set progress: %w", err)
	}
	if n > 0 {
		return nil
	}
	st, err := s.status(ctx, id)
	if err != nil {
		return err
	}
	if st != queue.StatusActive {
		return queue.ErrInvalidTransition
	}
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, id string, result json.RawMessage, at time.Time) error {
	n, err := s.exec(ctx,
		`UPDATE gen_jobs SET status = ?, progress = 100, result = ?, finished_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(queue.StatusCompleted), nullRaw(result), nanos(at), nanos(at), id, string(queue.StatusActive),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: complete job: %w", err)
	}
	if n == 0 {
		return s.explain(ctx, id)
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id string, reason string, at time.Time) error {
	n, err := s.exec(ctx,
		`UPDATE gen_jobs SET status = ?, error_msg = ?, finished_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(queue.StatusFailed), reason, nanos(at), nanos(at), id, string(queue.StatusActive),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: fail job: %w", err)
	}
	if n == 0 {
		return s.explain(ctx, id)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (map[string]queue.QueueStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT queue, status, COUNT(*) FROM gen_jobs GROUP BY queue, status`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]queue.QueueStats)
	for rows.Next() {
		var (
			name, status string
			count        int
		)
		if err := rows.Scan(&name, &status, &count); err != nil {
			return nil, fmt.Errorf("sqlstore: stats: %w", err)
		}
		st, ok := out[name]
		if !ok {
			st = queue.QueueStats{}
			out[name] = st
		}
		st[queue.Status(status)] = count
	}
	return out, rows.Err()
}

func (s *Store) PurgeFinished(ctx context.Context, before time.Time) (int, error) {
	n, err := s.exec(ctx,
		`DELETE FROM gen_jobs WHERE status IN (?, ?) AND finished_at < ?`,
		string(queue.StatusCompleted), string(queue.StatusFailed), nanos(before),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: purge: %w", err)
	}
	return int(n), nil
}

// Close is a no-op; the *sql.DB belongs to the data layer.
func (s *Store) Close() error { return nil }
