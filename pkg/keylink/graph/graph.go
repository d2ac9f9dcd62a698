package graph

import "context"

// Store is the graph-ingestion contract: four idempotent upserts.
// Rerunning a pipeline against the same store is self-healing; a failed
// write is logged by the caller and never retried.
type Store interface {
	Close() error

	UpsertEntity(ctx context.Context, e EntityNode) error
	UpsertInstanceOf(ctx context.Context, entityID, typeID string) error
	UpsertSubclassOf(ctx context.Context, childID, parentID string) error
	UpsertDocumentKeyword(ctx context.Context, t Triangle) error
}

// EntityNode is one knowledge-base entity as stored in the graph.
type EntityNode struct {
	ID    string
	Label string
	BNFID string
	RunID string
}

// Triangle links a document, one of its keywords, and the entity the
// keyword resolved to. (DocID, Keyword) is the natural key; a rerun
// overwrites the resolution rather than duplicating it.
type Triangle struct {
	DocID    string
	Keyword  string
	EntityID string
	Stage    string
	Score    float64
	RunID    string
}
