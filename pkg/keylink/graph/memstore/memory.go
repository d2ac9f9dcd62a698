package memstore

import (
	"context"
	"sync"

	"github.com/sciknow/keylink/pkg/keylink/graph"
)

type edge struct {
	from, to string
}

// Store is an in-memory implementation of graph.Store for tests and dry runs.
type Store struct {
	mu        sync.Mutex
	entities  map[string]graph.EntityNode
	instance  map[edge]struct{}
	subclass  map[edge]struct{}
	triangles map[[2]string]graph.Triangle
}

// New returns an empty in-memory graph store.
func New() *Store {
	return &Store{
		entities:  make(map[string]graph.EntityNode),
		instance:  make(map[edge]struct{}),
		subclass:  make(map[edge]struct{}),
		triangles: make(map[[2]string]graph.Triangle),
	}
}

func (m *Store) Close() error { return nil }

func (m *Store) UpsertEntity(ctx context.Context, e graph.EntityNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entities[e.ID]; ok && e.BNFID == "" {
		e.BNFID = old.BNFID
	}
	m.entities[e.ID] = e
	return nil
}

func (m *Store) UpsertInstanceOf(ctx context.Context, entityID, typeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instance[edge{entityID, typeID}] = struct{}{}
	return nil
}

func (m *Store) UpsertSubclassOf(ctx context.Context, childID, parentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subclass[edge{childID, parentID}] = struct{}{}
	return nil
}

func (m *Store) UpsertDocumentKeyword(ctx context.Context, t graph.Triangle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triangles[[2]string{t.DocID, t.Keyword}] = t
	return nil
}

// Entity returns a stored entity node, for assertions in tests.
func (m *Store) Entity(id string) (graph.EntityNode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	return e, ok
}

// EntityCount reports how many distinct entities were upserted.
func (m *Store) EntityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entities)
}

// HasInstanceOf reports whether the type edge exists.
func (m *Store) HasInstanceOf(entityID, typeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.instance[edge{entityID, typeID}]
	return ok
}

// HasSubclassOf reports whether the parent edge exists.
func (m *Store) HasSubclassOf(childID, parentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subclass[edge{childID, parentID}]
	return ok
}

// Triangle returns the stored resolution for a (document, keyword) pair.
func (m *Store) Triangle(docID, keyword string) (graph.Triangle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.triangles[[2]string{docID, keyword}]
	return t, ok
}

// TriangleCount reports how many (document, keyword) pairs are stored.
func (m *Store) TriangleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.triangles)
}
