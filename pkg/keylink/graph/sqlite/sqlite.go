package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sciknow/keylink/pkg/keylink/graph"
	"github.com/sciknow/keylink/pkg/keylink/internalerr"
)

// sqliteStore implements the graph.Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// Open opens a SQLite graph database with WAL mode enabled and creates
// the schema if missing.
func Open(ctx context.Context, path string) (graph.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open graph db %s: %w", path, internalerr.ErrFatalIO)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	label TEXT,
	bnf_id TEXT,
	last_run_id TEXT
);

CREATE TABLE IF NOT EXISTS instance_of (
	entity_id TEXT NOT NULL,
	type_id TEXT NOT NULL,
	PRIMARY KEY(entity_id, type_id)
);

CREATE TABLE IF NOT EXISTS subclass_of (
	child_id TEXT NOT NULL,
	parent_id TEXT NOT NULL,
	PRIMARY KEY(child_id, parent_id)
);

CREATE TABLE IF NOT EXISTS doc_keywords (
	doc_id TEXT NOT NULL,
	keyword TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	stage TEXT,
	score REAL,
	run_id TEXT,
	PRIMARY KEY(doc_id, keyword)
);

CREATE INDEX IF NOT EXISTS idx_doc_keywords_entity ON doc_keywords(entity_id);
CREATE INDEX IF NOT EXISTS idx_subclass_parent ON subclass_of(parent_id);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *sqliteStore) UpsertEntity(ctx context.Context, e graph.EntityNode) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO entities (id, label, bnf_id, last_run_id) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	label = excluded.label,
	bnf_id = CASE WHEN excluded.bnf_id != '' THEN excluded.bnf_id ELSE entities.bnf_id END,
	last_run_id = excluded.last_run_id`,
		e.ID, e.Label, e.BNFID, e.RunID)
	return err
}

func (s *sqliteStore) UpsertInstanceOf(ctx context.Context, entityID, typeID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO instance_of (entity_id, type_id) VALUES (?, ?)`,
		entityID, typeID)
	return err
}

func (s *sqliteStore) UpsertSubclassOf(ctx context.Context, childID, parentID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subclass_of (child_id, parent_id) VALUES (?, ?)`,
		childID, parentID)
	return err
}

func (s *sqliteStore) UpsertDocumentKeyword(ctx context.Context, t graph.Triangle) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO doc_keywords (doc_id, keyword, entity_id, stage, score, run_id)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(doc_id, keyword) DO UPDATE SET
	entity_id = excluded.entity_id,
	stage = excluded.stage,
	score = excluded.score,
	run_id = excluded.run_id`,
		t.DocID, t.Keyword, t.EntityID, t.Stage, t.Score, t.RunID)
	return err
}
