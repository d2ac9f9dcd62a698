package hierarchy

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/sciknow/keylink/pkg/keylink/wikidata"
)

// fakeSource serves subclass-of links from a map and counts batch calls.
type fakeSource struct {
	parents map[string][]string
	calls   int
	err     error
}

func (f *fakeSource) GetEntities(ctx context.Context, ids []string) (map[string]wikidata.Entity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]wikidata.Entity)
	for _, id := range ids {
		if p, ok := f.parents[id]; ok {
			out[id] = wikidata.Entity{ID: id, SubclassOf: p}
		}
	}
	return out, nil
}

func pathsAsStrings(paths []Path) []string {
	var out []string
	for _, p := range paths {
		s := ""
		for i, id := range p {
			if i > 0 {
				s += ">"
			}
			s += id
		}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func TestExpandLinearChain(t *testing.T) {
	src := &fakeSource{parents: map[string][]string{
		"Q1": {"Q2"}, "Q2": {"Q3"}, "Q3": nil,
	}}
	w := NewWalker(src, 5, 300)
	paths, err := w.Expand(context.Background(), "Q1")
	if err != nil {
		t.Fatal(err)
	}
	got := pathsAsStrings(paths)
	if len(got) != 1 || got[0] != "Q2>Q3" {
		t.Errorf("paths = %v", got)
	}
}

func TestExpandBranches(t *testing.T) {
	src := &fakeSource{parents: map[string][]string{
		"Q1": {"Q2", "Q3"}, "Q2": {"Q4"}, "Q3": nil, "Q4": nil,
	}}
	w := NewWalker(src, 5, 300)
	paths, err := w.Expand(context.Background(), "Q1")
	if err != nil {
		t.Fatal(err)
	}
	got := pathsAsStrings(paths)
	want := []string{"Q2>Q4", "Q3"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestExpandNoParents(t *testing.T) {
	src := &fakeSource{parents: map[string][]string{"Q1": nil}}
	w := NewWalker(src, 5, 300)
	paths, err := w.Expand(context.Background(), "Q1")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 0 {
		t.Errorf("paths = %v, want none", paths)
	}
}

func TestExpandDepthCap(t *testing.T) {
	src := &fakeSource{parents: map[string][]string{
		"Q1": {"Q2"}, "Q2": {"Q3"}, "Q3": {"Q4"}, "Q4": {"Q5"}, "Q5": {"Q6"},
	}}
	w := NewWalker(src, 3, 300)
	paths, err := w.Expand(context.Background(), "Q1")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || len(paths[0]) != 3 {
		t.Fatalf("paths = %v", paths)
	}
}

func TestExpandCycleGuard(t *testing.T) {
	src := &fakeSource{parents: map[string][]string{
		"Q1": {"Q2"}, "Q2": {"Q3"}, "Q3": {"Q2"},
	}}
	w := NewWalker(src, 6, 300)
	paths, err := w.Expand(context.Background(), "Q1")
	if err != nil {
		t.Fatal(err)
	}
	got := pathsAsStrings(paths)
	if len(got) != 1 || got[0] != "Q2>Q3" {
		t.Errorf("paths = %v", got)
	}
}

func TestExpandSelfReferenceStops(t *testing.T) {
	src := &fakeSource{parents: map[string][]string{"Q1": {"Q1", "Q2"}, "Q2": nil}}
	w := NewWalker(src, 5, 300)
	paths, err := w.Expand(context.Background(), "Q1")
	if err != nil {
		t.Fatal(err)
	}
	got := pathsAsStrings(paths)
	if len(got) != 1 || got[0] != "Q2" {
		t.Errorf("paths = %v", got)
	}
}

func TestExpandNodeCapTruncates(t *testing.T) {
	src := &fakeSource{parents: map[string][]string{
		"Q1": {"Q2"}, "Q2": {"Q3"}, "Q3": {"Q4"}, "Q4": {"Q5"},
	}}
	w := NewWalker(src, 6, 2)
	paths, err := w.Expand(context.Background(), "Q1")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || len(paths[0]) >= 4 {
		t.Errorf("node cap did not truncate: %v", paths)
	}
}

func TestExpandPropagatesError(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	w := NewWalker(src, 5, 300)
	if _, err := w.Expand(context.Background(), "Q1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAncestorsMemoized(t *testing.T) {
	src := &fakeSource{parents: map[string][]string{
		"Q1": {"Q2"}, "Q2": {"Q3"}, "Q3": nil,
	}}
	w := NewWalker(src, 5, 300)

	set, err := w.Ancestors(context.Background(), "Q1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := set["Q2"]; !ok {
		t.Error("Q2 missing from ancestors")
	}
	if _, ok := set["Q3"]; !ok {
		t.Error("Q3 missing from ancestors")
	}

	before := src.calls
	if _, err := w.Ancestors(context.Background(), "Q1"); err != nil {
		t.Fatal(err)
	}
	if src.calls != before {
		t.Errorf("memoized call still hit the source: %d -> %d", before, src.calls)
	}
}

func TestReachesAnyRoot(t *testing.T) {
	src := &fakeSource{parents: map[string][]string{
		"Q1": {"Q2"}, "Q2": {"Q2329"}, "Q2329": nil,
	}}
	w := NewWalker(src, 5, 300)
	roots := map[string]struct{}{"Q2329": {}}

	ok, err := w.ReachesAnyRoot(context.Background(), "Q1", roots)
	if err != nil || !ok {
		t.Errorf("reach = %v, %v", ok, err)
	}
	ok, err = w.ReachesAnyRoot(context.Background(), "Q2329", roots)
	if err != nil || !ok {
		t.Error("an entity is considered to reach itself as root")
	}
	ok, err = w.ReachesAnyRoot(context.Background(), "Q1", map[string]struct{}{"Q999": {}})
	if err != nil || ok {
		t.Errorf("unexpected reach of unrelated root: %v, %v", ok, err)
	}
	if ok, _ := w.ReachesAnyRoot(context.Background(), "Q1", nil); ok {
		t.Error("empty root set never reaches")
	}
}
