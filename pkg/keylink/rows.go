package keylink

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/sciknow/keylink/pkg/keylink/internalerr"
)

// Row is one line of tabular output: a (document, keyword) resolution
// combined with one of the winner's ancestry paths.
type Row struct {
	DocID          string
	Title          string
	Keyword        string
	EntityLabel    string
	EntityID       string
	BNFID          string
	AncestryPath   string
	Stage          string
	Disambiguation bool
	Similarity     float64
	Score          float64
	TypeIDs        string
	TypeLabels     string
	Domains        string
	DomainHits     string
}

var csvHeader = []string{
	"docid", "title", "keyword",
	"entity_label", "entity_id", "bnf_id",
	"ancestry_path", "match_stage", "is_disambiguation",
	"label_similarity", "match_score",
	"type_ids", "type_labels",
	"hal_domains", "domain_hits",
}

// RowWriter streams rows as CSV, flushing after every row so partial
// output survives an aborted run.
type RowWriter struct {
	w *csv.Writer
}

// NewRowWriter writes the header and returns a writer for the rows.
func NewRowWriter(w io.Writer) (*RowWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", internalerr.ErrFatalIO)
	}
	cw.Flush()
	return &RowWriter{w: cw}, nil
}

func (rw *RowWriter) Write(r Row) error {
	disambig := "no"
	if r.Disambiguation {
		disambig = "yes"
	}
	err := rw.w.Write([]string{
		r.DocID, r.Title, r.Keyword,
		r.EntityLabel, r.EntityID, r.BNFID,
		r.AncestryPath, r.Stage, disambig,
		strconv.FormatFloat(r.Similarity, 'f', 1, 64),
		strconv.FormatFloat(r.Score, 'f', 1, 64),
		r.TypeIDs, r.TypeLabels,
		r.Domains, r.DomainHits,
	})
	if err != nil {
		return fmt.Errorf("write csv row: %w", internalerr.ErrFatalIO)
	}
	rw.w.Flush()
	return rw.w.Error()
}
