package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sciknow/keylink/pkg/keylink/graph"
)

func openTestStore(t *testing.T) graph.Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertEntityIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := graph.EntityNode{ID: "Q7430", Label: "DNA", BNFID: "11931573d", RunID: "run1"}
	if err := s.UpsertEntity(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Label = "deoxyribonucleic acid"
	e.BNFID = ""
	e.RunID = "run2"
	if err := s.UpsertEntity(ctx, e); err != nil {
		t.Fatal(err)
	}

	st := s.(*sqliteStore)
	var label, bnf, run string
	err := st.db.QueryRowContext(ctx,
		`SELECT label, bnf_id, last_run_id FROM entities WHERE id = ?`, "Q7430").
		Scan(&label, &bnf, &run)
	if err != nil {
		t.Fatal(err)
	}
	if label != "deoxyribonucleic acid" || run != "run2" {
		t.Errorf("label = %q, run = %q", label, run)
	}
	if bnf != "11931573d" {
		t.Errorf("empty BNF id overwrote the stored one: %q", bnf)
	}

	var n int
	if err := st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("entities = %d, want 1", n)
	}
}

func TestEdgeUpsertsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.UpsertInstanceOf(ctx, "Q7430", "Q11173"); err != nil {
			t.Fatal(err)
		}
		if err := s.UpsertSubclassOf(ctx, "Q11173", "Q79529"); err != nil {
			t.Fatal(err)
		}
	}

	st := s.(*sqliteStore)
	var n int
	if err := st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM instance_of`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("instance_of rows = %d, want 1", n)
	}
	if err := st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subclass_of`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("subclass_of rows = %d, want 1", n)
	}
}

func TestTriangleRerunOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tr := graph.Triangle{DocID: "hal-01", Keyword: "dna", EntityID: "Q7430", Stage: "exact_alias", Score: 80, RunID: "run1"}
	if err := s.UpsertDocumentKeyword(ctx, tr); err != nil {
		t.Fatal(err)
	}
	tr.Score = 82
	tr.RunID = "run2"
	if err := s.UpsertDocumentKeyword(ctx, tr); err != nil {
		t.Fatal(err)
	}

	st := s.(*sqliteStore)
	var score float64
	var run string
	err := st.db.QueryRowContext(ctx,
		`SELECT score, run_id FROM doc_keywords WHERE doc_id = ? AND keyword = ?`, "hal-01", "dna").
		Scan(&score, &run)
	if err != nil {
		t.Fatal(err)
	}
	if score != 82 || run != "run2" {
		t.Errorf("score = %v, run = %q", score, run)
	}
}
