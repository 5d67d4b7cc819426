// Package genomedb stores the sequences of FASTA files next to a dataset directory,
// and looks them up by ID.
//
// Each FASTA file <dir>/<name>.fasta gets its own SQLite database at <dir>/genomeDbs/<name>.db.
package genomedb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/nextstrain/auspice/internal/constants"
	"github.com/nextstrain/auspice/internal/fileutils"
	"github.com/ubuntu/decorate"
	_ "modernc.org/sqlite" // database/sql driver
)

// ErrNotFound is returned when a genome database does not exist.
var ErrNotFound = errors.New("genome database not found")

//go:embed migrations/*.sql
var migrations embed.FS

const (
	fastaExt = ".fasta"
	dbExt    = ".db"

	// fetchChunk bounds the number of IDs bound to a single query.
	fetchChunk = 500
)

// PathForFASTA returns the database path of a FASTA file.
func PathForFASTA(fastaPath string) string {
	name := strings.TrimSuffix(filepath.Base(fastaPath), fastaExt)
	return filepath.Join(filepath.Dir(fastaPath), constants.GenomeDBFolder, name+dbExt)
}

// PathForPrefix returns the database path of a dataset request prefix:
// "/flu/h3n2/" maps to <datasetsDir>/genomeDbs/flu_h3n2.db.
func PathForPrefix(datasetsDir, prefix string) (string, error) {
	name := strings.Trim(prefix, "/")
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `\`+"\x00") {
		return "", fmt.Errorf("invalid genome database prefix %q", prefix)
	}
	name = strings.ReplaceAll(name, "/", "_")
	return filepath.Join(datasetsDir, constants.GenomeDBFolder, name+dbExt), nil
}

// Exists reports whether the database at dbPath exists.
func Exists(dbPath string) bool {
	return fileutils.FileExists(dbPath)
}

// Build loads the records of the FASTA file at fastaPath into its database, replacing any existing one.
// It returns the number of records stored.
func Build(ctx context.Context, fastaPath string) (n int, err error) {
	defer decorate.OnError(&err, "could not build genome database for %s", fastaPath)

	f, err := os.Open(fastaPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dbPath := PathForFASTA(fastaPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return 0, err
	}

	// Build next to the destination so that the final rename replaces it atomically.
	tmp, err := os.CreateTemp(filepath.Dir(dbPath), "."+filepath.Base(dbPath)+".*.tmp")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	db, err := sql.Open("sqlite", tmpPath)
	if err != nil {
		return 0, err
	}
	m, err := migrateUp(db)
	if err != nil {
		db.Close()
		return 0, err
	}
	// Closing the migration instance closes db.
	defer func() {
		if sErr, dbErr := m.Close(); sErr != nil || dbErr != nil {
			if err == nil {
				err = errors.Join(sErr, dbErr)
			}
		}
		if err == nil {
			err = os.Rename(tmpPath, dbPath)
		}
		if err == nil {
			slog.Info("Built genome database", "path", dbPath, "records", n)
		}
	}()

	return insert(ctx, db, f.Name(), func(fn func(Record) error) error {
		return ReadFASTA(f, fn)
	})
}

func migrateUp(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("could not load migrations: %v", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("could not create migration driver: %v", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("failed to apply migrations: %v", err)
	}
	return m, nil
}

func insert(ctx context.Context, db *sql.DB, source string, records func(func(Record) error) error) (n int, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO sequences (id, seq, source) VALUES (?, ?, ?)")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	err = records(func(r Record) error {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Seq, source); err != nil {
			return fmt.Errorf("could not store record %q: %v", r.ID, err)
		}
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// Prepare builds the database of every FASTA file in dir.
// A file that fails to build does not stop the others. It returns the paths of the databases built.
func Prepare(ctx context.Context, dir string) (built []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not list FASTA files in %s: %v", dir, err)
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fastaExt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return built, err
		}
		p := filepath.Join(dir, e.Name())
		if _, err := Build(ctx, p); err != nil {
			slog.Warn("Could not build genome database", "fasta", p, "err", err)
			errs = append(errs, err)
			continue
		}
		built = append(built, PathForFASTA(p))
	}
	return built, errors.Join(errs...)
}

// Store reads records from a genome database.
type Store struct {
	db *sql.DB
}

// Open opens the database at dbPath.
func Open(dbPath string) (*Store, error) {
	if !Exists(dbPath) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dbPath)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not open genome database %s: %v", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Fetch returns the records with the given IDs, in request order. Unknown IDs are skipped
// and an ID requested twice is returned once.
func (s *Store) Fetch(ctx context.Context, ids []string) (records []Record, err error) {
	defer decorate.OnError(&err, "could not fetch genome records")

	var unique []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	byID := make(map[string][]Record)
	for start := 0; start < len(unique); start += fetchChunk {
		chunk := unique[start:min(start+fetchChunk, len(unique))]
		if err := s.query(ctx, chunk, byID); err != nil {
			return nil, err
		}
	}

	for _, id := range unique {
		records = append(records, byID[id]...)
	}
	return records, nil
}

func (s *Store) query(ctx context.Context, ids []string, into map[string][]Record) error {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := "SELECT id, seq FROM sequences WHERE id IN (?" + strings.Repeat(", ?", len(ids)-1) + ") ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Seq); err != nil {
			return err
		}
		into[r.ID] = append(into[r.ID], r)
	}
	return rows.Err()
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}
