package resolve

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/sciknow/keylink/pkg/keylink/config"
	"github.com/sciknow/keylink/pkg/keylink/score"
	"github.com/sciknow/keylink/pkg/keylink/textnorm"
	"github.com/sciknow/keylink/pkg/keylink/typefilter"
	"github.com/sciknow/keylink/pkg/keylink/wikidata"
)

// Match stages, in decreasing order of confidence.
const (
	StageExactLabel = "exact_label"
	StageExactAlias = "exact_alias"
	StageContext    = "context"
	StageNone       = "none"
)

// CandidateSource is the slice of the knowledge-base client the
// selector needs. Satisfied by the wikidata client.
type CandidateSource interface {
	Search(ctx context.Context, term, language string) ([]wikidata.RawHit, error)
	SearchLabelOnly(ctx context.Context, term, language string) ([]wikidata.RawHit, error)
	GetEntities(ctx context.Context, ids []string) (map[string]wikidata.Entity, error)
}

// Result is the outcome of resolving one keyword against one document.
// Created once per (document, keyword) and serialized immediately.
type Result struct {
	Keyword     string
	EntityID    string
	EntityLabel string
	BNFID       string
	Stage       string
	Score       float64
	Similarity  float64
	TypeIDs     []string
	SubclassOf  []string
	DomainHits  []string

	// DisambiguationSeen marks that at least one would-be winner was
	// rejected for being a disambiguation page.
	DisambiguationSeen bool

	Candidates int
	Blocked    int
}

// Resolved reports whether the keyword was mapped to an entity.
func (r Result) Resolved() bool { return r.EntityID != "" }

// Selector runs the per-keyword resolution state machine: collect,
// enrich, filter, score, pick. All per-keyword failures degrade to a
// "none" result with a logged reason; Resolve never returns an error.
type Selector struct {
	cfg    config.Config
	src    CandidateSource
	filter *typefilter.Filter
	engine *score.Engine
	anc    typefilter.AncestorChecker
}

func NewSelector(cfg config.Config, src CandidateSource, filter *typefilter.Filter, engine *score.Engine) *Selector {
	return &Selector{cfg: cfg, src: src, filter: filter, engine: engine}
}

// SetAncestorChecker enables the domain-root bonus. Nil disables it.
func (s *Selector) SetAncestorChecker(anc typefilter.AncestorChecker) { s.anc = anc }

// Resolve maps one keyword, in the given document context, to its best
// entity. dom carries the document's merged domain configuration and
// may be empty.
func (s *Selector) Resolve(ctx context.Context, keyword, docContext string, dom typefilter.DomainConfig) Result {
	res := Result{Keyword: keyword, Stage: StageNone}

	norm := textnorm.Normalize(keyword)
	if norm == "" {
		return res
	}

	hits := s.collect(ctx, norm)
	res.Candidates = len(hits)
	if len(hits) == 0 {
		return res
	}

	cands, entities, blocked := s.enrich(ctx, norm, docContext, hits, dom)
	res.Blocked = blocked
	if len(cands) == 0 {
		return res
	}

	winner, stage, sawDisambig := s.pick(norm, cands)
	res.DisambiguationSeen = sawDisambig
	if winner == nil {
		return res
	}

	res.EntityID = winner.ID
	res.EntityLabel = winner.Label
	res.Stage = stage
	res.Score = winner.Score
	res.Similarity = winner.LabelSimilarity
	res.TypeIDs = winner.InstanceOf
	res.SubclassOf = winner.SubclassOf
	res.DomainHits = winner.DomainHits
	if e, ok := entities[winner.ID]; ok {
		res.BNFID = e.BNFID
	}
	return res
}

// collect searches every (term, language) combination and deduplicates
// hits by entity id. The singular form is a secondary term; label-only
// search is the fallback when full-text search finds nothing.
func (s *Selector) collect(ctx context.Context, norm string) []wikidata.RawHit {
	terms := []string{norm}
	if sing := textnorm.Singularize(norm); sing != norm {
		terms = append(terms, sing)
	}

	seen := make(map[string]struct{})
	var out []wikidata.RawHit
	for _, lang := range s.cfg.Languages {
		for _, term := range terms {
			hits, err := s.src.Search(ctx, term, lang)
			if err != nil {
				log.Printf("resolve: search %q (%s): %v", term, lang, err)
				continue
			}
			if len(hits) == 0 {
				hits, err = s.src.SearchLabelOnly(ctx, term, lang)
				if err != nil {
					log.Printf("resolve: label search %q (%s): %v", term, lang, err)
					continue
				}
			}
			for _, h := range hits {
				if _, dup := seen[h.ID]; dup {
					continue
				}
				seen[h.ID] = struct{}{}
				h.Language = lang
				out = append(out, h)
			}
		}
	}
	return out
}

// enrich fetches full details for every hit, drops blocked candidates,
// aggregates type text and scores the survivors.
func (s *Selector) enrich(ctx context.Context, norm, docContext string, hits []wikidata.RawHit, dom typefilter.DomainConfig) ([]*score.Candidate, map[string]wikidata.Entity, int) {
	ids := make([]string, 0, len(hits))
	langByID := make(map[string]string, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
		langByID[h.ID] = h.Language
	}

	entities, err := s.src.GetEntities(ctx, ids)
	if err != nil {
		log.Printf("resolve: fetch candidates for %q: %v", norm, err)
		return nil, nil, 0
	}

	// survivors first, so the type-text batch covers only their types
	type pending struct {
		e     wikidata.Entity
		bonus float64
	}
	var survivors []pending
	blocked := 0
	for _, id := range ids {
		e, ok := entities[id]
		if !ok {
			continue
		}
		cls := s.filter.Classify(e.InstanceOf)
		if cls.Blocked {
			blocked++
			continue
		}
		survivors = append(survivors, pending{e: e, bonus: cls.Bonus})
	}
	if len(survivors) == 0 {
		return nil, entities, blocked
	}

	var survivorEntities []wikidata.Entity
	for _, p := range survivors {
		survivorEntities = append(survivorEntities, p.e)
	}
	typeText := s.typeTexts(ctx, survivorEntities)

	cands := make([]*score.Candidate, 0, len(survivors))
	for _, p := range survivors {
		e := p.e
		c := &score.Candidate{
			ID:           e.ID,
			Label:        s.matchLabel(norm, e),
			Description:  s.description(e),
			Aliases:      e.AliasList(),
			Language:     langByID[e.ID],
			Sitelinks:    e.SitelinkCount,
			AliasCount:   e.AliasCount(),
			HasSubclass:  e.HasSubclass(),
			InstanceOf:   e.InstanceOf,
			SubclassOf:   e.SubclassOf,
			TypeText:     joinCapped(typeText, e.InstanceOf, s.cfg.TypeTextMaxChars),
			SubclassText: joinCapped(typeText, e.SubclassOf, s.cfg.TypeTextMaxChars),
			TypeBonus:    p.bonus,
		}
		if !dom.Empty() {
			c.DomainBonus, c.DomainHits = s.filter.DomainBonus(ctx, e.ID, e.InstanceOf, dom, s.anc)
		}
		s.engine.Score(norm, docContext, c)
		cands = append(cands, c)
	}
	return cands, entities, blocked
}

// matchLabel picks the candidate's display label, preferring a language
// whose label exactly equals the keyword so exactness is detected
// across every configured language.
func (s *Selector) matchLabel(norm string, e wikidata.Entity) string {
	folded := strings.ToLower(norm)
	sing := strings.ToLower(textnorm.Singularize(norm))
	for _, lang := range s.cfg.Languages {
		lbl := strings.ToLower(textnorm.Normalize(e.Labels[lang]))
		if lbl != "" && (lbl == folded || lbl == sing) {
			return e.Labels[lang]
		}
	}
	return e.LabelIn(s.cfg.Languages)
}

func (s *Selector) description(e wikidata.Entity) string {
	for _, lang := range s.cfg.Languages {
		if d := e.Descriptions[lang]; d != "" {
			return d
		}
	}
	return ""
}

// typeTexts batch-fetches every type and superclass entity referenced
// by the survivors and returns their concatenated text by id. A failed
// batch degrades to empty type text rather than dropping candidates.
func (s *Selector) typeTexts(ctx context.Context, survivors []wikidata.Entity) map[string]string {
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range survivors {
		for _, id := range append(append([]string(nil), e.InstanceOf...), e.SubclassOf...) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out
	}
	ents, err := s.src.GetEntities(ctx, ids)
	if err != nil {
		log.Printf("resolve: fetch type details: %v", err)
		return out
	}
	for id, e := range ents {
		out[id] = e.Text()
	}
	return out
}

func joinCapped(text map[string]string, ids []string, maxChars int) string {
	var b strings.Builder
	for _, id := range ids {
		t := text[id]
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		if maxChars > 0 && b.Len()+len(t) > maxChars {
			room := maxChars - b.Len()
			if room > 0 {
				b.WriteString(t[:room])
			}
			break
		}
		b.WriteString(t)
	}
	return b.String()
}

// pick applies the exact-match fast path, then the threshold-gated
// fallback ranking, skipping disambiguation-page candidates in both.
//
// Fast-path tie-break chain, in order: exactness kind (label > alias,
// equal for acronym keywords), context support, total score,
// canonicality, sitelinks, superclass presence, fewer aliases,
// language preference order, id.
func (s *Selector) pick(norm string, cands []*score.Candidate) (*score.Candidate, string, bool) {
	sawDisambig := false

	if s.cfg.EnableExactSafetyNet {
		var exact []*score.Candidate
		for _, c := range cands {
			if c.ExactLabel || c.ExactAlias {
				exact = append(exact, c)
			}
		}
		if len(exact) > 0 {
			acronym := textnorm.IsLikelyAcronym(norm)
			sort.SliceStable(exact, func(i, j int) bool {
				return s.lessExact(exact[i], exact[j], acronym)
			})
			for _, c := range exact {
				if s.filter.IsDisambiguationType(c.InstanceOf) {
					sawDisambig = true
					continue
				}
				stage := StageExactAlias
				if c.ExactLabel {
					stage = StageExactLabel
				}
				return c, stage, sawDisambig
			}
		}
	}

	ranked := append([]*score.Candidate(nil), cands...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return lessFallback(ranked[i], ranked[j])
	})
	for _, c := range ranked {
		if c.LabelSimilarity < s.cfg.MinLabelSimilarity || c.Score < s.cfg.MinTotalScore {
			break
		}
		if s.filter.IsDisambiguationType(c.InstanceOf) {
			sawDisambig = true
			continue
		}
		return c, StageContext, sawDisambig
	}
	return nil, StageNone, sawDisambig
}

func (s *Selector) lessExact(a, b *score.Candidate, acronym bool) bool {
	if !acronym {
		ra, rb := exactRank(a), exactRank(b)
		if ra != rb {
			return ra > rb
		}
	}
	if a.ContextSim != b.ContextSim {
		return a.ContextSim > b.ContextSim
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Canonicality != b.Canonicality {
		return a.Canonicality > b.Canonicality
	}
	if a.Sitelinks != b.Sitelinks {
		return a.Sitelinks > b.Sitelinks
	}
	if a.HasSubclass != b.HasSubclass {
		return a.HasSubclass
	}
	if a.AliasCount != b.AliasCount {
		return a.AliasCount < b.AliasCount
	}
	la, lb := s.langRank(a.Language), s.langRank(b.Language)
	if la != lb {
		return la < lb
	}
	return a.ID < b.ID
}

func lessFallback(a, b *score.Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.LabelSimilarity != b.LabelSimilarity {
		return a.LabelSimilarity > b.LabelSimilarity
	}
	if a.Sitelinks != b.Sitelinks {
		return a.Sitelinks > b.Sitelinks
	}
	if a.HasSubclass != b.HasSubclass {
		return a.HasSubclass
	}
	if a.AliasCount != b.AliasCount {
		return a.AliasCount < b.AliasCount
	}
	return a.ID < b.ID
}

func exactRank(c *score.Candidate) int {
	if c.ExactLabel {
		return 2
	}
	if c.ExactAlias {
		return 1
	}
	return 0
}

func (s *Selector) langRank(lang string) int {
	for i, lg := range s.cfg.Languages {
		if lg == lang {
			return i
		}
	}
	return len(s.cfg.Languages)
}
