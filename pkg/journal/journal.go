// Package journal keeps a SQLite log of every catalog load and save, with a
// BLAKE3 checksum of each file written.
package journal

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS persist_log (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	at       INTEGER NOT NULL,
	catalog  TEXT NOT NULL,
	op       TEXT NOT NULL,
	format   TEXT NOT NULL,
	path     TEXT NOT NULL,
	status   TEXT NOT NULL,
	message  TEXT NOT NULL DEFAULT '',
	line     INTEGER NOT NULL DEFAULT -1,
	checksum TEXT NOT NULL DEFAULT ''
)`

// Entry is one logged persistence operation.
type Entry struct {
	ID       int64
	At       time.Time
	Catalog  string
	Op       string // load, save, load-section, save-section, convert, snapshot, restore
	Format   string
	Path     string
	Status   string
	Message  string
	Line     int
	Checksum string // hex BLAKE3-256 of the file after a successful save
}

// Journal is a SQLite-backed persistence log.
type Journal struct {
	db      *sql.DB
	mu      sync.Mutex
	path    string
	timeout time.Duration
}

// Open opens (creating if needed) the journal at path, in WAL mode.
func Open(path string, timeoutSec int) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", timeoutSec*1000)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating persist_log: %w", err)
	}
	return &Journal{db: db, path: path, timeout: time.Duration(timeoutSec) * time.Second}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db != nil {
		err := j.db.Close()
		j.db = nil
		return err
	}
	return nil
}

// Backup writes a consistent copy of the journal to dest, which must not
// exist yet.
func (j *Journal) Backup(dest string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return fmt.Errorf("journal closed")
	}
	if _, err := j.db.Exec("VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("journal backup to %s: %w", dest, err)
	}
	return nil
}

// Path returns the filesystem path of the journal.
func (j *Journal) Path() string { return j.path }

// Record appends e. A zero At is stamped with the current time.
func (j *Journal) Record(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return fmt.Errorf("journal closed")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO persist_log (at, catalog, op, format, path, status, message, line, checksum)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.At.UnixNano(), e.Catalog, e.Op, e.Format, e.Path, e.Status, e.Message, e.Line, e.Checksum)
	return err
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, fmt.Errorf("journal closed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, at, catalog, op, format, path, status, message, line, checksum
		 FROM persist_log ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.ID, &at, &e.Catalog, &e.Op, &e.Format, &e.Path, &e.Status, &e.Message, &e.Line, &e.Checksum); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastChecksum returns the checksum of the newest successful save of path,
// or "" if there is none.
func (j *Journal) LastChecksum(path string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return "", fmt.Errorf("journal closed")
	}
	var sum string
	err := j.db.QueryRow(
		`SELECT checksum FROM persist_log WHERE path = ? AND op = 'save' AND status = 'ok'
		 ORDER BY id DESC LIMIT 1`, path).Scan(&sum)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return sum, err
}

// Checksum returns the hex BLAKE3-256 digest of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
