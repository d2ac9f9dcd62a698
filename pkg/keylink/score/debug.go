package score

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// DebugSink receives every scored candidate for offline inspection.
type DebugSink interface {
	Record(keyword string, c *Candidate)
}

// CSVSink appends one row per scored candidate to a CSV file. Not safe
// for concurrent use.
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

var debugHeader = []string{
	"keyword", "entity_id", "label", "language", "mode",
	"exact_label", "exact_alias",
	"label_sim", "context_sim", "context_type_sim", "context_subclass_sim",
	"canonicality", "sitelinks", "alias_count",
	"type_bonus", "domain_bonus", "base_score", "score",
}

func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create score sink %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(debugHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write score sink header: %w", err)
	}
	return &CSVSink{f: f, w: w}, nil
}

func (s *CSVSink) Record(keyword string, c *Candidate) {
	s.w.Write([]string{
		keyword, c.ID, c.Label, c.Language, c.Mode,
		strconv.FormatBool(c.ExactLabel), strconv.FormatBool(c.ExactAlias),
		ftoa(c.LabelSimilarity), ftoa(c.ContextSim),
		ftoa(c.ContextTypeSim), ftoa(c.ContextSubSim),
		ftoa(c.Canonicality),
		strconv.Itoa(c.Sitelinks), strconv.Itoa(c.AliasCount),
		ftoa(c.TypeBonus), ftoa(c.DomainBonus),
		ftoa(c.BaseScore), ftoa(c.Score),
	})
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
