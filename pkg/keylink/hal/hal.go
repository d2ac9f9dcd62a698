package hal

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/sciknow/keylink/pkg/keylink/internalerr"
	"github.com/sciknow/keylink/pkg/keylink/textnorm"
)

// Record is one scholarly document as exported by the HAL search API.
type Record struct {
	DocID        string
	Title        string
	Abstract     string
	Keywords     []string
	DomainLabels []string
}

// Context is the text a keyword is disambiguated against: title plus
// abstract, markup stripped.
func (r Record) Context() string {
	title := textnorm.StripHTML(r.Title)
	abstract := textnorm.StripHTML(r.Abstract)
	return strings.Trim(title+". "+abstract, ". ")
}

// flexString tolerates the HAL API's loose typing: a field may arrive
// as a string, a number, or a single-element array.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		if len(list) > 0 {
			*f = flexString(list[0])
		}
		return nil
	}
	return fmt.Errorf("unsupported value %s: %w", string(data), internalerr.ErrMalformedInput)
}

type rawRecord struct {
	DocID          flexString `json:"docid"`
	HalID          flexString `json:"halId_s"`
	Title          flexString `json:"title_s"`
	Abstract       flexString `json:"abstract_s"`
	Keywords       []string   `json:"keyword_s"`
	KeywordsJoined string     `json:"keywords_joined"`
	DomainFacets   []string   `json:"en_domainAllCodeLabel_fs"`
}

var keywordSplitRe = regexp.MustCompile(`[;,]`)

// Load reads a JSON array of HAL records from path. Opening failures
// are fatal; individual malformed records are skipped with a warning.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", path, internalerr.ErrFatalIO)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a JSON array of records, skipping malformed elements.
func Parse(r io.Reader) ([]Record, error) {
	var raws []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("decode records: %w", internalerr.ErrMalformedInput)
	}

	out := make([]Record, 0, len(raws))
	for i, raw := range raws {
		var rr rawRecord
		if err := json.Unmarshal(raw, &rr); err != nil {
			log.Printf("hal: skipping record %d: %v", i, err)
			continue
		}
		rec := Record{
			DocID:        string(rr.DocID),
			Title:        string(rr.Title),
			Abstract:     string(rr.Abstract),
			Keywords:     rr.Keywords,
			DomainLabels: ExtractDomainLabels(rr.DomainFacets),
		}
		if rec.DocID == "" {
			rec.DocID = string(rr.HalID)
		}
		if rec.DocID == "" {
			log.Printf("hal: skipping record %d: no document id", i)
			continue
		}
		if len(rec.Keywords) == 0 && rr.KeywordsJoined != "" {
			for _, k := range keywordSplitRe.Split(rr.KeywordsJoined, -1) {
				if k = strings.TrimSpace(k); k != "" {
					rec.Keywords = append(rec.Keywords, k)
				}
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

var (
	domBracketRe = regexp.MustCompile(`\[[^\]]*\]`)
	domSplitRe   = regexp.MustCompile(`[/>]+`)
	domSpaceRe   = regexp.MustCompile(`\s+`)
)

// ExtractDomainLabels flattens the HAL domain facet values into a
// sorted, deduplicated list of human-readable labels. Facet values look
// like "0/physicsFacetSep_Physics [physics] > Optics"; the prefix up to
// "FacetSep_" and bracketed codes are dropped.
func ExtractDomainLabels(facets []string) []string {
	set := make(map[string]struct{})
	for _, raw := range facets {
		part := raw
		if i := strings.Index(raw, "FacetSep_"); i >= 0 {
			part = raw[i+len("FacetSep_"):]
		}
		for _, seg := range domSplitRe.Split(part, -1) {
			seg = domBracketRe.ReplaceAllString(seg, "")
			seg = domSpaceRe.ReplaceAllString(strings.Trim(seg, " >/|,"), " ")
			if seg != "" {
				set[seg] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
