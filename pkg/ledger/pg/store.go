package pg

import (
	"context"
	"fmt"
	"regexp"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/ValerySidorin/eadpipe/pkg/ledger/entry"
	"github.com/ValerySidorin/eadpipe/pkg/record"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Store struct {
	cfg  Config
	log  log.Logger
	conn *pgx.Conn

	// Both schema qualified, so that search_path does not matter.
	table string
	runs  string
}

func NewStore(ctx context.Context, cfg Config, logger log.Logger) (*Store, error) {
	if !tableName.MatchString(cfg.Table) {
		return nil, errors.Errorf("pg ledger store invalid table name %q", cfg.Table)
	}

	conn, err := pgx.Connect(ctx, cfg.Conn)
	if err != nil {
		return nil, errors.Wrap(err, "pg ledger store init conn")
	}

	table, runs := qualifiedTables(cfg.Table)

	q := fmt.Sprintf(`create table if not exists %s
	(run_id text not null, seq integer not null, repository_id text not null, resource_id text not null,
	stage text not null, status text not null, file_path text not null, detail text not null,
	violations integer not null, recorded_at timestamptz not null,
	primary key (run_id, seq));`, table)
	if _, err := conn.Exec(ctx, q); err != nil {
		_ = conn.Close(ctx)
		return nil, errors.Wrap(err, "pg ledger store init table")
	}

	q = fmt.Sprintf(`create table if not exists %s
	(run_id text primary key, total integer not null, interrupted boolean not null,
	started_at timestamptz not null, finished_at timestamptz not null);`, runs)
	if _, err := conn.Exec(ctx, q); err != nil {
		_ = conn.Close(ctx)
		return nil, errors.Wrap(err, "pg ledger store init runs table")
	}

	return &Store{
		cfg:   cfg,
		log:   log.With(logger, "store", "pg"),
		conn:  conn,
		table: table,
		runs:  runs,
	}, nil
}

// qualifiedTables returns the entries table and the run totals table.
func qualifiedTables(name string) (table, runs string) {
	return "public." + name, "public." + name + "_runs"
}

// InsertEntry stores e. Recording the same run and seq twice keeps the
// latest entry.
func (s *Store) InsertEntry(ctx context.Context, e *entry.Entry) error {
	q := fmt.Sprintf(`insert into %s(run_id, seq, repository_id, resource_id, stage, status, file_path, detail, violations, recorded_at)
	values($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	on conflict (run_id, seq) do update
	set repository_id = excluded.repository_id,
	resource_id = excluded.resource_id,
	stage = excluded.stage,
	status = excluded.status,
	file_path = excluded.file_path,
	detail = excluded.detail,
	violations = excluded.violations,
	recorded_at = excluded.recorded_at;`, s.table)

	_, err := s.conn.Exec(ctx, q,
		e.RunID, e.Seq, e.RepositoryID, e.ResourceID, string(e.Stage), string(e.Status),
		e.FilePath, e.Detail, e.Violations, e.RecordedAt)
	if err != nil {
		return errors.Wrap(err, "pg ledger store insert entry")
	}

	return nil
}

func (s *Store) GetRunEntries(ctx context.Context, runID string) ([]*entry.Entry, error) {
	q := fmt.Sprintf(`select run_id, seq, repository_id, resource_id, stage, status, file_path, detail, violations, recorded_at
	from %s where run_id = $1 order by seq;`, s.table)

	rows, err := s.conn.Query(ctx, q, runID)
	if err != nil {
		return nil, errors.Wrap(err, "pg ledger store query run entries")
	}
	defer rows.Close()

	entries := make([]*entry.Entry, 0)
	for rows.Next() {
		e := entry.Entry{}
		if err := scanEntryFromRows(rows, &e); err != nil {
			return nil, errors.Wrap(err, "pg ledger store scan run entries")
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "pg ledger store read run entries")
	}

	return entries, nil
}

// InsertRun stores the totals of a finished run. A second call for the same
// run replaces them.
func (s *Store) InsertRun(ctx context.Context, r *entry.Run) error {
	q := fmt.Sprintf(`insert into %s(run_id, total, interrupted, started_at, finished_at)
	values($1, $2, $3, $4, $5)
	on conflict (run_id) do update
	set total = excluded.total,
	interrupted = excluded.interrupted,
	started_at = excluded.started_at,
	finished_at = excluded.finished_at;`, s.runs)

	if _, err := s.conn.Exec(ctx, q, r.RunID, r.Total, r.Interrupted, r.StartedAt, r.FinishedAt); err != nil {
		return errors.Wrap(err, "pg ledger store insert run")
	}

	return nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (*entry.Run, bool, error) {
	q := fmt.Sprintf(`select run_id, total, interrupted, started_at, finished_at
	from %s where run_id = $1;`, s.runs)

	r := entry.Run{}
	if err := s.conn.QueryRow(ctx, q, runID).Scan(&r.RunID, &r.Total, &r.Interrupted, &r.StartedAt, &r.FinishedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "pg ledger store query run")
	}

	return &r, true, nil
}

// GetLatestRunID returns the run that was last recorded or finished. Runs
// without a single entry are found through their totals.
func (s *Store) GetLatestRunID(ctx context.Context) (string, bool, error) {
	q := fmt.Sprintf(`select run_id from (
	select run_id, recorded_at as at from %s
	union all
	select run_id, finished_at as at from %s
	) as runs order by at desc limit 1;`, s.table, s.runs)

	var runID string
	if err := s.conn.QueryRow(ctx, q).Scan(&runID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "pg ledger store query latest run")
	}

	return runID, true, nil
}

func (s *Store) Dispose(ctx context.Context) error {
	if err := s.conn.Close(ctx); err != nil {
		return errors.Wrap(err, "pg ledger store close connection")
	}

	_ = level.Debug(s.log).Log("msg", "connection closed")
	return nil
}

func scanEntryFromRows(rows pgx.Rows, e *entry.Entry) error {
	var stage, status string
	if err := rows.Scan(&e.RunID, &e.Seq, &e.RepositoryID, &e.ResourceID, &stage, &status,
		&e.FilePath, &e.Detail, &e.Violations, &e.RecordedAt); err != nil {
		return err
	}
	e.Stage = record.Stage(stage)
	e.Status = record.Status(status)

	return nil
}
