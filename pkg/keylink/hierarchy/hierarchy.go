package hierarchy

import (
	"context"
	"sync"

	"github.com/sciknow/keylink/pkg/keylink/wikidata"
)

// EntitySource provides entities by id in batches. Satisfied by the
// wikidata client.
type EntitySource interface {
	GetEntities(ctx context.Context, ids []string) (map[string]wikidata.Entity, error)
}

// Path is one ancestry chain of entity ids, nearest parent first. The
// starting entity itself is not included.
type Path []string

// Walker expands subclass-of ancestry. Parent links are memoized for
// the lifetime of the walker, so repeated expansions of entities that
// share ancestors stay cheap.
type Walker struct {
	src      EntitySource
	maxDepth int
	maxNodes int

	mu        sync.Mutex
	parents   map[string][]string
	ancestors map[string]map[string]struct{}
}

func NewWalker(src EntitySource, maxDepth, maxNodes int) *Walker {
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &Walker{
		src:       src,
		maxDepth:  maxDepth,
		maxNodes:  maxNodes,
		parents:   make(map[string][]string),
		ancestors: make(map[string]map[string]struct{}),
	}
}

type pathState struct {
	nodes []string
	tip   string
	done  bool
}

// Expand walks the subclass-of links upward from id and returns every
// distinct ancestry path, branching where an entity declares several
// superclasses. A path ends at the depth cap, at an entity with no
// superclass, or when the only parents left would revisit the path
// (cycle guard). The node cap truncates the whole expansion rather
// than failing it. An entity with no superclass yields no paths.
func (w *Walker) Expand(ctx context.Context, id string) ([]Path, error) {
	states := []*pathState{{tip: id}}
	fetched := 0

	for depth := 0; depth < w.maxDepth; depth++ {
		var tips []string
		for _, s := range states {
			if !s.done {
				tips = append(tips, s.tip)
			}
		}
		if len(tips) == 0 {
			break
		}
		n, err := w.loadParents(ctx, tips)
		if err != nil {
			return nil, err
		}
		fetched += n
		truncate := w.maxNodes > 0 && fetched > w.maxNodes

		var next []*pathState
		for _, s := range states {
			if s.done {
				next = append(next, s)
				continue
			}
			if truncate {
				s.done = true
				next = append(next, s)
				continue
			}
			branched := false
			for _, p := range w.parentsOf(s.tip) {
				if p == id || contains(s.nodes, p) {
					continue
				}
				ns := &pathState{
					nodes: append(append([]string(nil), s.nodes...), p),
					tip:   p,
				}
				next = append(next, ns)
				branched = true
			}
			if !branched {
				s.done = true
				next = append(next, s)
			}
		}
		states = next
	}

	var out []Path
	for _, s := range states {
		if len(s.nodes) > 0 {
			out = append(out, Path(s.nodes))
		}
	}
	return out, nil
}

// Ancestors returns the flat set of all ancestors reachable from id
// within the depth cap. Results are memoized per id.
func (w *Walker) Ancestors(ctx context.Context, id string) (map[string]struct{}, error) {
	w.mu.Lock()
	if set, ok := w.ancestors[id]; ok {
		w.mu.Unlock()
		return set, nil
	}
	w.mu.Unlock()

	seen := map[string]struct{}{id: {}}
	set := make(map[string]struct{})
	frontier := []string{id}

	for depth := 0; depth < w.maxDepth && len(frontier) > 0; depth++ {
		if _, err := w.loadParents(ctx, frontier); err != nil {
			return nil, err
		}
		var next []string
		for _, tip := range frontier {
			for _, p := range w.parentsOf(tip) {
				if _, ok := seen[p]; ok {
					continue
				}
				seen[p] = struct{}{}
				set[p] = struct{}{}
				next = append(next, p)
			}
		}
		if w.maxNodes > 0 && len(seen) > w.maxNodes {
			break
		}
		frontier = next
	}

	w.mu.Lock()
	w.ancestors[id] = set
	w.mu.Unlock()
	return set, nil
}

// ReachesAnyRoot reports whether any configured root id appears in the
// entity's ancestry.
func (w *Walker) ReachesAnyRoot(ctx context.Context, id string, roots map[string]struct{}) (bool, error) {
	if len(roots) == 0 {
		return false, nil
	}
	if _, ok := roots[id]; ok {
		return true, nil
	}
	anc, err := w.Ancestors(ctx, id)
	if err != nil {
		return false, err
	}
	for r := range roots {
		if _, ok := anc[r]; ok {
			return true, nil
		}
	}
	return false, nil
}

// loadParents fetches parent links for any tips not yet cached and
// returns how many entities were newly loaded.
func (w *Walker) loadParents(ctx context.Context, tips []string) (int, error) {
	w.mu.Lock()
	var missing []string
	for _, t := range tips {
		if _, ok := w.parents[t]; !ok {
			missing = append(missing, t)
		}
	}
	w.mu.Unlock()
	if len(missing) == 0 {
		return 0, nil
	}

	ents, err := w.src.GetEntities(ctx, missing)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range missing {
		if e, ok := ents[id]; ok {
			w.parents[id] = e.SubclassOf
		} else {
			w.parents[id] = nil
		}
	}
	return len(missing), nil
}

func (w *Walker) parentsOf(id string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.parents[id]
}

func contains(nodes []string, id string) bool {
	for _, n := range nodes {
		if n == id {
			return true
		}
	}
	return false
}
