// Package auditlog keeps a SQLite record of company signing events.
package auditlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/digitorus/pdfmark/geometry"
	"github.com/digitorus/pdfmark/internal/auditlog/migrations"
)

// DefaultLimit is the number of entries List returns for a limit of zero.
const DefaultLimit = 100

// timeLayout is fixed width so that stored times sort as text.
const timeLayout = "2006-01-02 15:04:05.000000000"

// Entry is one signing event.
type Entry struct {
	ID          int64
	Time        time.Time
	StaffName   string
	StaffNumber string
	Company     string
	Page        int
	Rect        geometry.Rect
	FileName    string
	IP          string
	Success     bool
	Error       string
}

// Log is a signing event log stored in a SQLite database.
type Log struct {
	db   *sql.DB
	path string
}

// Open opens the log in dataDir, creating the directory and the database if
// needed.
func Open(dataDir string) (*Log, error) {
	if dataDir == "" {
		return nil, errors.New("audit log data directory is not set")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, "audit.db")
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	l := &Log{db: db, path: path}
	if err := l.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return l, nil
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Path returns the database file path.
func (l *Log) Path() string {
	return l.path
}

func (l *Log) migrate(fsys fs.FS) error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := l.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := l.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// Record stores e and returns its ID. A zero Time is replaced by the
// current time.
func (l *Log) Record(ctx context.Context, e Entry) (int64, error) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO signing_events
			(signed_at, staff_name, staff_number, company, page, x, y, width, height, file_name, client_ip, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UTC().Format(timeLayout), e.StaffName, e.StaffNumber, e.Company, e.Page,
		e.Rect.X, e.Rect.Y, e.Rect.Width, e.Rect.Height,
		e.FileName, e.IP, e.Success, e.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("recording signing event: %w", err)
	}
	return res.LastInsertId()
}

// List returns up to limit entries, newest first.
func (l *Log) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, signed_at, staff_name, staff_number, company, page, x, y, width, height, file_name, client_ip, success, error
		FROM signing_events
		ORDER BY signed_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing signing events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			signedAt string
		)
		if err := rows.Scan(&e.ID, &signedAt, &e.StaffName, &e.StaffNumber, &e.Company, &e.Page,
			&e.Rect.X, &e.Rect.Y, &e.Rect.Width, &e.Rect.Height,
			&e.FileName, &e.IP, &e.Success, &e.Error); err != nil {
			return nil, fmt.Errorf("scanning signing event: %w", err)
		}
		if e.Time, err = time.Parse(timeLayout, signedAt); err != nil {
			return nil, fmt.Errorf("parsing signing time %q: %w", signedAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
