package memstore

import (
	"context"
	"testing"

	"github.com/sciknow/keylink/pkg/keylink/graph"
)

func TestUpsertEntityIdempotent(t *testing.T) {
	m := New()
	ctx := context.Background()

	e := graph.EntityNode{ID: "Q7430", Label: "DNA", BNFID: "11931573d", RunID: "run1"}
	if err := m.UpsertEntity(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := m.UpsertEntity(ctx, e); err != nil {
		t.Fatal(err)
	}
	if m.EntityCount() != 1 {
		t.Errorf("count = %d", m.EntityCount())
	}
}

func TestUpsertEntityKeepsExternalID(t *testing.T) {
	m := New()
	ctx := context.Background()

	m.UpsertEntity(ctx, graph.EntityNode{ID: "Q7430", Label: "DNA", BNFID: "11931573d"})
	m.UpsertEntity(ctx, graph.EntityNode{ID: "Q7430", Label: "deoxyribonucleic acid"})

	e, ok := m.Entity("Q7430")
	if !ok {
		t.Fatal("entity missing")
	}
	if e.Label != "deoxyribonucleic acid" {
		t.Errorf("label = %q", e.Label)
	}
	if e.BNFID != "11931573d" {
		t.Errorf("empty BNF id overwrote the stored one: %q", e.BNFID)
	}
}

func TestEdgesIdempotent(t *testing.T) {
	m := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m.UpsertInstanceOf(ctx, "Q7430", "Q11173")
		m.UpsertSubclassOf(ctx, "Q11173", "Q79529")
	}
	if !m.HasInstanceOf("Q7430", "Q11173") {
		t.Error("instance-of edge missing")
	}
	if !m.HasSubclassOf("Q11173", "Q79529") {
		t.Error("subclass-of edge missing")
	}
	if m.HasInstanceOf("Q11173", "Q7430") {
		t.Error("edges must be directed")
	}
}

func TestTriangleRerunOverwrites(t *testing.T) {
	m := New()
	ctx := context.Background()

	m.UpsertDocumentKeyword(ctx, graph.Triangle{
		DocID: "hal-01", Keyword: "dna", EntityID: "Q7430", Stage: "exact_alias", Score: 80, RunID: "run1",
	})
	m.UpsertDocumentKeyword(ctx, graph.Triangle{
		DocID: "hal-01", Keyword: "dna", EntityID: "Q7430", Stage: "exact_alias", Score: 82, RunID: "run2",
	})

	if m.TriangleCount() != 1 {
		t.Fatalf("count = %d, want 1", m.TriangleCount())
	}
	tr, _ := m.Triangle("hal-01", "dna")
	if tr.RunID != "run2" || tr.Score != 82 {
		t.Errorf("rerun did not overwrite: %+v", tr)
	}
}
