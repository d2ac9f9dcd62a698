package hal

import (
	"strings"
	"testing"
)

func TestParseRecords(t *testing.T) {
	input := `[
		{"docid": 123456, "title_s": "Entropy in open systems",
		 "abstract_s": "<p>We study entropy.</p>",
		 "keyword_s": ["entropy", "thermodynamics"]},
		{"halId_s": "hal-00112233", "title_s": ["Array titled"],
		 "keywords_joined": "catalysis; reaction kinetics, surfaces"},
		{"title_s": "no id at all"}
	]`

	recs, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2 (id-less record skipped)", len(recs))
	}

	if recs[0].DocID != "123456" {
		t.Errorf("numeric docid = %q", recs[0].DocID)
	}
	if len(recs[0].Keywords) != 2 {
		t.Errorf("keywords = %v", recs[0].Keywords)
	}

	if recs[1].DocID != "hal-00112233" {
		t.Errorf("halId fallback = %q", recs[1].DocID)
	}
	if recs[1].Title != "Array titled" {
		t.Errorf("array title = %q", recs[1].Title)
	}
	want := []string{"catalysis", "reaction kinetics", "surfaces"}
	if len(recs[1].Keywords) != len(want) {
		t.Fatalf("joined keywords = %v", recs[1].Keywords)
	}
	for i, k := range want {
		if recs[1].Keywords[i] != k {
			t.Errorf("keyword[%d] = %q, want %q", i, recs[1].Keywords[i], k)
		}
	}
}

func TestParseRejectsNonArray(t *testing.T) {
	if _, err := Parse(strings.NewReader(`{"docid": 1}`)); err == nil {
		t.Fatal("expected error for non-array input")
	}
}

func TestParseSkipsMalformedRecord(t *testing.T) {
	input := `[
		{"docid": "ok-1", "keyword_s": ["dna"]},
		{"docid": "bad-1", "keyword_s": "not-an-array-and-not-a-string-field"},
		{"docid": {"nested": true}}
	]`
	recs, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].DocID != "ok-1" {
		t.Errorf("records = %+v", recs)
	}
}

func TestContextStripsMarkup(t *testing.T) {
	r := Record{Title: "Entropy", Abstract: "<p>We study <sub>2</sub> things.</p>"}
	got := r.Context()
	if strings.Contains(got, "<") {
		t.Errorf("markup survived: %q", got)
	}
	if !strings.HasPrefix(got, "Entropy. ") {
		t.Errorf("context = %q", got)
	}
}

func TestExtractDomainLabels(t *testing.T) {
	facets := []string{
		"0/physicsFacetSep_Physics [physics] > Optics",
		"1/chemFacetSep_Chemistry/Physical chemistry",
		"Physics",
	}
	got := ExtractDomainLabels(facets)
	want := []string{"Chemistry", "Optics", "Physical chemistry", "Physics"}
	if len(got) != len(want) {
		t.Fatalf("labels = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("labels[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
