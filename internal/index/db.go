// Package index stores imported archives in sqlite and answers the read
// queries of the command line tools.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA cache_size = -64000;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);

CREATE TABLE IF NOT EXISTS identities (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS contact_groups (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
    id       TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    name     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS contacts_name ON contacts(name);

CREATE TABLE IF NOT EXISTS accounts (
    id       TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    service  TEXT NOT NULL,
    name     TEXT NOT NULL,
    UNIQUE (service, name)
);

CREATE TABLE IF NOT EXISTS conversations (
    id             TEXT PRIMARY KEY,
    started_at     TEXT NOT NULL,
    local_account  TEXT NOT NULL,
    remote_account TEXT NOT NULL,
    is_conference  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS conversations_started ON conversations(started_at);

CREATE TABLE IF NOT EXISTS speakers (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    name            TEXT NOT NULL,
    account_id      TEXT NOT NULL,
    UNIQUE (conversation_id, name)
);

CREATE TABLE IF NOT EXISTS replies (
    conversation_id TEXT NOT NULL,
    seq             INTEGER NOT NULL,
    ts              TEXT NOT NULL,
    speaker_id      TEXT,
    text            TEXT NOT NULL,
    PRIMARY KEY (conversation_id, seq)
);

CREATE VIRTUAL TABLE IF NOT EXISTS replies_fts USING fts5(
    text,
    content=replies,
    content_rowid=rowid,
    tokenize='unicode61'
);

-- triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS replies_ai AFTER INSERT ON replies BEGIN
    INSERT INTO replies_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS replies_ad AFTER DELETE ON replies BEGIN
    INSERT INTO replies_fts(replies_fts, rowid, text) VALUES('delete', old.rowid, old.text);
END;
`

// schemaVersion is bumped whenever the table layout changes.
const schemaVersion = "1"

// timeLayout is how timestamps are stored. Values are always UTC so that
// string order is time order.
const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored time %q: %w", s, err)
	}
	return t, nil
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the archive database at dbPath.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	s := &Store{db: db}
	if err := s.checkSchemaVersion(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) checkSchemaVersion(ctx context.Context) error {
	var ver string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
		return err
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case ver != schemaVersion:
		return fmt.Errorf("database schema version %s, want %s: remove the database and import again", ver, schemaVersion)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Raw() *sql.DB {
	return s.db
}

// Begin starts a transaction that can be used as an archive graph.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{ctx: ctx, tx: tx}, nil
}

// Update runs fn in a transaction, committing when fn returns nil and
// rolling back otherwise.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
