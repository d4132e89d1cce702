// Package store persists tabulation runs and their result cells in SQL.
package store

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/hhtab/internal/tabulate"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		input      TEXT NOT NULL,
		year       TEXT NOT NULL,
		records    INTEGER NOT NULL,
		excluded   TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS cells (
		run_id       TEXT NOT NULL REFERENCES runs(id),
		seq          INTEGER NOT NULL,
		sheet        TEXT NOT NULL,
		row_label    TEXT NOT NULL,
		column_label TEXT NOT NULL,
		value        DOUBLE PRECISION,
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cells_sheet ON cells(run_id, sheet)`,
}

// Store is a results database.
type Store struct {
	db     *sql.DB
	driver string
}

// Run describes one pipeline invocation.
type Run struct {
	ID        string
	StartedAt time.Time
	Input     string
	Year      string
	Records   int
	Excluded  []string
}

// Cell is one stored result value; Valid is false for undefined cells.
type Cell struct {
	Sheet  string
	Row    string
	Column string
	Value  float64
	Valid  bool
}

// Open connects to the database and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	case "":
		driver = DriverSQLite
	default:
		return nil, fmt.Errorf("unsupported results driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", driver, err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", driver, err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveRun stores the run and every result cell in one transaction. An empty
// run.ID is replaced by a fresh uuid; the id used is returned.
func (s *Store) SaveRun(run Run, results []*tabulate.Result) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(s.rebind(`INSERT INTO runs (id, started_at, input, year, records, excluded) VALUES (?, ?, ?, ?, ?, ?)`),
		run.ID, run.StartedAt.UTC().Format(time.RFC3339), run.Input, run.Year, run.Records, strings.Join(run.Excluded, ",")); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	stmt, err := tx.Prepare(s.rebind(`INSERT INTO cells (run_id, seq, sheet, row_label, column_label, value) VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return "", fmt.Errorf("prepare cells: %w", err)
	}
	defer stmt.Close()

	seq := 0
	for _, res := range results {
		for _, row := range res.Rows {
			for j, v := range row.Values {
				var val sql.NullFloat64
				if !math.IsNaN(v) {
					val = sql.NullFloat64{Float64: v, Valid: true}
				}
				seq++
				if _, err := stmt.Exec(run.ID, seq, res.Sheet, row.Label, res.Labels[j], val); err != nil {
					return "", fmt.Errorf("insert cell %s/%s/%s: %w", res.Sheet, row.Label, res.Labels[j], err)
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return run.ID, nil
}

// Cells returns the stored cells of one sheet of a run in insertion order.
func (s *Store) Cells(runID, sheet string) ([]Cell, error) {
	rows, err := s.db.Query(s.rebind(`SELECT sheet, row_label, column_label, value FROM cells WHERE run_id = ? AND sheet = ? ORDER BY seq`), runID, sheet)
	if err != nil {
		return nil, fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close()

	var out []Cell
	for rows.Next() {
		var c Cell
		var v sql.NullFloat64
		if err := rows.Scan(&c.Sheet, &c.Row, &c.Column, &v); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		c.Value, c.Valid = v.Float64, v.Valid
		out = append(out, c)
	}
	return out, rows.Err()
}

// Runs lists stored runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT id, started_at, input, year, records, excluded FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, excluded string
		if err := rows.Scan(&r.ID, &started, &r.Input, &r.Year, &r.Records, &excluded); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, started); err == nil {
			r.StartedAt = t
		}
		if excluded != "" {
			r.Excluded = strings.Split(excluded, ",")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
