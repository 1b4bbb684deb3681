package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yumyai/afscan/pkg/aggregate"
	"github.com/yumyai/afscan/pkg/alignment"

	_ "modernc.org/sqlite"
)

// Defining possible error
var ErrRunNotFound = errors.New("run does not exist")

// Fixed width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	sample       TEXT NOT NULL,
	streams      TEXT NOT NULL,
	raw_findings INTEGER NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS findings (
	run_id    TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	ord       INTEGER NOT NULL,
	sample    TEXT NOT NULL,
	gene      TEXT NOT NULL,
	position  INTEGER NOT NULL,
	reference TEXT NOT NULL,
	mutation  TEXT NOT NULL,
	fungicide TEXT NOT NULL,
	source    TEXT NOT NULL,
	PRIMARY KEY (run_id, ord)
);
CREATE TABLE IF NOT EXISTS summary (
	run_id        TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	ord           INTEGER NOT NULL,
	gene          TEXT NOT NULL,
	position      INTEGER NOT NULL,
	reference     TEXT NOT NULL,
	mutation      TEXT NOT NULL,
	fungicide     TEXT NOT NULL,
	support_reads INTEGER NOT NULL,
	PRIMARY KEY (run_id, ord)
);
CREATE INDEX IF NOT EXISTS summary_gene ON summary (gene, position);
`

// Run describes one stored scan.
type Run struct {
	ID          string    `json:"run_id"`
	Sample      string    `json:"sample"`
	Streams     []string  `json:"streams"`
	RawFindings int       `json:"raw_findings"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store keeps scan results in a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; one connection also keeps ":memory:"
	// databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema in %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores the run and its results in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, res aggregate.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, sample, streams, raw_findings, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Sample, strings.Join(run.Streams, ","), run.RawFindings, run.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	findingStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO findings (run_id, ord, sample, gene, position, reference, mutation, fungicide, source) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer findingStmt.Close()

	for i, f := range res.Findings {
		if _, err := findingStmt.ExecContext(ctx, run.ID, i, f.Sample, f.Gene, f.Position, f.Reference, f.Mutation, f.Compound, f.Source); err != nil {
			return fmt.Errorf("insert finding: %w", err)
		}
	}

	summaryStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO summary (run_id, ord, gene, position, reference, mutation, fungicide, support_reads) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer summaryStmt.Close()

	for i, e := range res.Summary {
		if _, err := summaryStmt.ExecContext(ctx, run.ID, i, e.Gene, e.Position, e.Reference, e.Mutation, e.Compound, e.SupportReads); err != nil {
			return fmt.Errorf("insert summary: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, sample, streams, raw_findings, created_at FROM runs WHERE run_id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, sample, streams, raw_findings, created_at FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetResult loads the findings and summary of a run in their original order.
func (s *Store) GetResult(ctx context.Context, runID string) (aggregate.Result, error) {
	res := aggregate.Result{Findings: []alignment.Finding{}, Summary: []aggregate.SummaryEntry{}}

	if _, err := s.GetRun(ctx, runID); err != nil {
		return res, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sample, gene, position, reference, mutation, fungicide, source FROM findings WHERE run_id = ? ORDER BY ord`, runID)
	if err != nil {
		return res, err
	}
	defer rows.Close()

	for rows.Next() {
		var f alignment.Finding
		if err := rows.Scan(&f.Sample, &f.Gene, &f.Position, &f.Reference, &f.Mutation, &f.Compound, &f.Source); err != nil {
			return res, err
		}
		res.Findings = append(res.Findings, f)
	}
	if err := rows.Err(); err != nil {
		return res, err
	}

	srows, err := s.db.QueryContext(ctx,
		`SELECT gene, position, reference, mutation, fungicide, support_reads FROM summary WHERE run_id = ? ORDER BY ord`, runID)
	if err != nil {
		return res, err
	}
	defer srows.Close()

	for srows.Next() {
		var e aggregate.SummaryEntry
		if err := srows.Scan(&e.Gene, &e.Position, &e.Reference, &e.Mutation, &e.Compound, &e.SupportReads); err != nil {
			return res, err
		}
		res.Summary = append(res.Summary, e)
	}
	return res, srows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run     Run
		streams string
		created string
	)
	if err := row.Scan(&run.ID, &run.Sample, &streams, &run.RawFindings, &created); err != nil {
		return nil, err
	}
	if streams != "" {
		run.Streams = strings.Split(streams, ",")
	}
	ts, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("run %s has bad timestamp %q: %w", run.ID, created, err)
	}
	run.CreatedAt = ts
	return &run, nil
}
