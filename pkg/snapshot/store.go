// Package snapshot keeps a local copy of the remote tables in SQLite or
// Postgres so reports can run without the remote service.
package snapshot

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/mchmarny/benchbase/pkg/airtable"
	_ "modernc.org/sqlite"
)

const (
	// FileName is the default snapshot file in the config dir.
	FileName = "snapshot.db"

	driverSQLite   = "sqlite"
	driverPostgres = "postgres"

	dirMode = 0700
)

var (
	//go:embed sql/*
	f embed.FS

	// ErrNotSaved is returned when reading a table the snapshot never stored.
	ErrNotSaved = errors.New("table not in snapshot")
)

// TableInfo describes one stored table.
type TableInfo struct {
	Table   string    `json:"table" yaml:"table"`
	Rows    int       `json:"rows" yaml:"rows"`
	SavedAt time.Time `json:"saved_at" yaml:"saved_at"`
}

// Store is a snapshot database.
type Store struct {
	db     *sql.DB
	driver string
}

// IsPostgres reports whether dsn names a Postgres database rather than a
// SQLite file.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open opens (and initializes when needed) the snapshot at dsn: a
// postgres:// URL or a SQLite file path.
func Open(ctx context.Context, dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("snapshot dsn not specified")
	}

	driver := driverSQLite
	if IsPostgres(dsn) {
		driver = driverPostgres
	} else if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return nil, fmt.Errorf("creating snapshot dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	if driver == driverSQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: driver}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	b, err := f.ReadFile("sql/ddl.sql")
	if err != nil {
		return fmt.Errorf("reading schema file: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("creating snapshot schema: %w", err)
	}
	slog.Debug("snapshot schema ready", "driver", s.driver)
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// rebind rewrites ? placeholders for the Postgres driver.
func (s *Store) rebind(q string) string {
	if s.driver != driverPostgres {
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

// Save replaces the stored rows of table with rows, keeping their order.
func (s *Store) Save(ctx context.Context, table string, rows []*airtable.Record) error {
	_, err := s.saveAll(ctx, []string{table}, map[string][]*airtable.Record{table: rows})
	return err
}

// saveAll replaces every listed table in one transaction and returns the
// number of rows stored per table. On error nothing is changed.
func (s *Store) saveAll(ctx context.Context, tables []string, rows map[string][]*airtable.Record) (map[string]int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	counts := make(map[string]int, len(tables))
	for _, t := range tables {
		n, err := s.saveTx(ctx, tx, t, rows[t])
		if err != nil {
			return nil, err
		}
		counts[t] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing snapshot: %w", err)
	}

	for _, t := range tables {
		slog.Debug("snapshot saved", "table", t, "rows", counts[t])
	}
	return counts, nil
}

func (s *Store) saveTx(ctx context.Context, tx *sql.Tx, table string, rows []*airtable.Record) (int, error) {
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM record WHERE tbl = ?"), table); err != nil {
		return 0, fmt.Errorf("clearing %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO record (tbl, id, seq, created_at, fields) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, r := range rows {
		if r == nil {
			continue
		}
		b, err := json.Marshal(r.Fields)
		if err != nil {
			return 0, fmt.Errorf("encoding fields of %s record %s: %w", table, r.ID, err)
		}
		created := r.CreatedTime.UTC().Format(time.RFC3339Nano)
		if _, err := stmt.ExecContext(ctx, table, r.ID, n, created, string(b)); err != nil {
			return 0, fmt.Errorf("inserting %s record %s: %w", table, r.ID, err)
		}
		n++
	}

	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM snapshot WHERE tbl = ?"), table); err != nil {
		return 0, fmt.Errorf("clearing %s info: %w", table, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, s.rebind("INSERT INTO snapshot (tbl, row_count, saved_at) VALUES (?, ?, ?)"), table, n, now); err != nil {
		return 0, fmt.Errorf("saving %s info: %w", table, err)
	}
	return n, nil
}

// Records streams the stored rows of table in their saved order. It has the
// same shape as the remote client so either can feed a loader.
func (s *Store) Records(ctx context.Context, table string) iter.Seq2[*airtable.Record, error] {
	return func(yield func(*airtable.Record, error) bool) {
		var n int
		err := s.db.QueryRowContext(ctx, s.rebind("SELECT row_count FROM snapshot WHERE tbl = ?"), table).Scan(&n)
		if errors.Is(err, sql.ErrNoRows) {
			yield(nil, fmt.Errorf("%s: %w", table, ErrNotSaved))
			return
		}
		if err != nil {
			yield(nil, fmt.Errorf("reading %s info: %w", table, err))
			return
		}

		rows, err := s.db.QueryContext(ctx, s.rebind("SELECT id, created_at, fields FROM record WHERE tbl = ? ORDER BY seq"), table)
		if err != nil {
			yield(nil, fmt.Errorf("querying %s: %w", table, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r       airtable.Record
				created string
				fields  string
			)
			if err := rows.Scan(&r.ID, &created, &fields); err != nil {
				yield(nil, fmt.Errorf("scanning %s row: %w", table, err))
				return
			}
			if r.CreatedTime, err = time.Parse(time.RFC3339Nano, created); err != nil {
				yield(nil, fmt.Errorf("parsing %s record %s time: %w", table, r.ID, err))
				return
			}
			if err := json.Unmarshal([]byte(fields), &r.Fields); err != nil {
				yield(nil, fmt.Errorf("decoding %s record %s fields: %w", table, r.ID, err))
				return
			}
			if !yield(&r, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterating %s: %w", table, err))
		}
	}
}

// Tables lists the stored tables by name.
func (s *Store) Tables(ctx context.Context) ([]*TableInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT tbl, row_count, saved_at FROM snapshot ORDER BY tbl")
	if err != nil {
		return nil, fmt.Errorf("listing snapshot tables: %w", err)
	}
	defer rows.Close()

	list := make([]*TableInfo, 0)
	for rows.Next() {
		var (
			ti    TableInfo
			saved string
		)
		if err := rows.Scan(&ti.Table, &ti.Rows, &saved); err != nil {
			return nil, fmt.Errorf("scanning snapshot table: %w", err)
		}
		if ti.SavedAt, err = time.Parse(time.RFC3339Nano, saved); err != nil {
			return nil, fmt.Errorf("parsing saved time of %s: %w", ti.Table, err)
		}
		list = append(list, &ti)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot tables: %w", err)
	}
	return list, nil
}
