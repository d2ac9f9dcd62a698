package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/sciknow/keylink/pkg/keylink/config"
	"github.com/sciknow/keylink/pkg/keylink/score"
	"github.com/sciknow/keylink/pkg/keylink/typefilter"
	"github.com/sciknow/keylink/pkg/keylink/wikidata"
)

// fakeSource serves canned search hits and entities, keyed by
// "term|language".
type fakeSource struct {
	search    map[string][]wikidata.RawHit
	labelOnly map[string][]wikidata.RawHit
	entities  map[string]wikidata.Entity
	searchErr map[string]error
	entErr    error
}

func (f *fakeSource) Search(ctx context.Context, term, language string) ([]wikidata.RawHit, error) {
	key := term + "|" + language
	if err, ok := f.searchErr[key]; ok {
		return nil, err
	}
	return f.search[key], nil
}

func (f *fakeSource) SearchLabelOnly(ctx context.Context, term, language string) ([]wikidata.RawHit, error) {
	return f.labelOnly[term+"|"+language], nil
}

func (f *fakeSource) GetEntities(ctx context.Context, ids []string) (map[string]wikidata.Entity, error) {
	if f.entErr != nil {
		return nil, f.entErr
	}
	out := make(map[string]wikidata.Entity)
	for _, id := range ids {
		if e, ok := f.entities[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

// stubResolver resolves only the labels a test cares about; everything
// else is silently dropped, as in production startup.
type stubResolver struct{}

func (stubResolver) ResolveLabels(ctx context.Context, labels []string, language string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, l := range labels {
		if l == "scholarly article" {
			out["Q13442814"] = struct{}{}
		}
	}
	return out
}

func newSelector(src *fakeSource, mutate func(*config.Config)) *Selector {
	cfg := config.Default()
	cfg.Languages = []string{"en"}
	if mutate != nil {
		mutate(&cfg)
	}
	filter := typefilter.Build(context.Background(), stubResolver{}, cfg)
	return NewSelector(cfg, src, filter, score.NewEngine(cfg))
}

func enLabel(id, label string, aliases []string) wikidata.Entity {
	return wikidata.Entity{
		ID:      id,
		Labels:  map[string]string{"en": label},
		Aliases: map[string][]string{"en": aliases},
	}
}

func TestAcronymKeywordPrefersCanonicalEntity(t *testing.T) {
	dna := enLabel("Q7430", "deoxyribonucleic acid", []string{"DNA"})
	dna.SitelinkCount = 40
	dna.InstanceOf = []string{"Q11173"}
	dna.SubclassOf = []string{"Q11053"}
	band := enLabel("Q1187960", "DNA (band)", []string{"DNA"})
	band.SitelinkCount = 2
	band.InstanceOf = []string{"Q215380"}

	src := &fakeSource{
		search: map[string][]wikidata.RawHit{
			"DNA|en": {{ID: "Q1187960"}, {ID: "Q7430"}},
		},
		entities: map[string]wikidata.Entity{"Q7430": dna, "Q1187960": band},
	}
	s := newSelector(src, nil)

	res := s.Resolve(context.Background(), "DNA", "DNA sequencing methods for bacterial genomes", typefilter.DomainConfig{})
	if res.EntityID != "Q7430" {
		t.Fatalf("winner = %q (%s), want Q7430", res.EntityID, res.Stage)
	}
	if res.Stage != StageExactAlias {
		t.Errorf("stage = %q", res.Stage)
	}
	if res.Candidates != 2 {
		t.Errorf("candidates = %d", res.Candidates)
	}
}

func TestSingularTermRescuesPluralKeyword(t *testing.T) {
	cat := enLabel("Q2", "catalysis", nil)
	cat.Descriptions = map[string]string{"en": "acceleration of a chemical reaction"}
	cat.SitelinkCount = 60
	cat.InstanceOf = []string{"Q1363829"}

	src := &fakeSource{
		search: map[string][]wikidata.RawHit{
			"catalyst|en": {{ID: "Q2"}},
		},
		entities: map[string]wikidata.Entity{"Q2": cat},
	}
	s := newSelector(src, nil)

	res := s.Resolve(context.Background(), "catalysts", "reaction rates and catalysis in chemistry", typefilter.DomainConfig{})
	if res.EntityID != "Q2" {
		t.Fatalf("winner = %q, want Q2", res.EntityID)
	}
	if res.Stage != StageContext {
		t.Errorf("stage = %q, want %q", res.Stage, StageContext)
	}
	if res.Similarity < s.cfg.MinLabelSimilarity {
		t.Errorf("similarity = %v below threshold", res.Similarity)
	}
}

func TestUnknownKeywordResolvesToNone(t *testing.T) {
	s := newSelector(&fakeSource{}, nil)
	res := s.Resolve(context.Background(), "zzxqy gibberish", "some context", typefilter.DomainConfig{})
	if res.EntityID != "" || res.Stage != StageNone {
		t.Errorf("res = %+v", res)
	}
	if res.Candidates != 0 {
		t.Errorf("candidates = %d", res.Candidates)
	}
}

func TestDisambiguationPageNeverWins(t *testing.T) {
	disambig := enLabel("Q226107", "mercury", nil)
	disambig.InstanceOf = []string{"Q4167410"}
	disambig.SitelinkCount = 30

	src := &fakeSource{
		search:   map[string][]wikidata.RawHit{"mercury|en": {{ID: "Q226107"}}},
		entities: map[string]wikidata.Entity{"Q226107": disambig},
	}
	s := newSelector(src, nil)

	res := s.Resolve(context.Background(), "mercury", "", typefilter.DomainConfig{})
	if res.EntityID != "" || res.Stage != StageNone {
		t.Fatalf("disambiguation page won: %+v", res)
	}
	if !res.DisambiguationSeen {
		t.Error("DisambiguationSeen not set")
	}
}

func TestDisambiguationFallsThroughToNextBest(t *testing.T) {
	disambig := enLabel("Q226107", "mercury", nil)
	disambig.InstanceOf = []string{"Q4167410"}
	disambig.SitelinkCount = 90
	planet := enLabel("Q308", "Mercury", []string{"Mercury (planet)"})
	planet.SitelinkCount = 30
	planet.InstanceOf = []string{"Q128207"}

	src := &fakeSource{
		search:   map[string][]wikidata.RawHit{"mercury|en": {{ID: "Q226107"}, {ID: "Q308"}}},
		entities: map[string]wikidata.Entity{"Q226107": disambig, "Q308": planet},
	}
	s := newSelector(src, nil)

	res := s.Resolve(context.Background(), "mercury", "planets of the solar system", typefilter.DomainConfig{})
	if res.EntityID != "Q308" {
		t.Fatalf("winner = %q, want Q308", res.EntityID)
	}
	if !res.DisambiguationSeen {
		t.Error("DisambiguationSeen not set")
	}
}

func TestBlockedTypeNeverWins(t *testing.T) {
	article := enLabel("Q900", "entropy", nil)
	article.InstanceOf = []string{"Q13442814"} // resolved as disallowed
	article.SitelinkCount = 500
	concept := enLabel("Q901", "entropy rate", []string{"entropy"})
	concept.SitelinkCount = 15
	concept.InstanceOf = []string{"Q1948412"}

	src := &fakeSource{
		search:   map[string][]wikidata.RawHit{"entropy|en": {{ID: "Q900"}, {ID: "Q901"}}},
		entities: map[string]wikidata.Entity{"Q900": article, "Q901": concept},
	}
	s := newSelector(src, nil)

	res := s.Resolve(context.Background(), "entropy", "information theory", typefilter.DomainConfig{})
	if res.EntityID != "Q901" {
		t.Fatalf("winner = %q, want Q901", res.EntityID)
	}
	if res.Blocked != 1 {
		t.Errorf("blocked = %d, want 1", res.Blocked)
	}
}

func TestSearchErrorInOneLanguageIsNotFatal(t *testing.T) {
	ent := enLabel("Q5", "entropie", nil)
	ent.Labels["en"] = "entropy"
	ent.SitelinkCount = 100

	src := &fakeSource{
		search:    map[string][]wikidata.RawHit{"entropy|fr": {{ID: "Q5"}}},
		searchErr: map[string]error{"entropy|en": errors.New("upstream 500")},
		entities:  map[string]wikidata.Entity{"Q5": ent},
	}
	s := newSelector(src, func(c *config.Config) { c.Languages = []string{"en", "fr"} })

	res := s.Resolve(context.Background(), "entropy", "", typefilter.DomainConfig{})
	if res.EntityID != "Q5" {
		t.Fatalf("winner = %q, want Q5", res.EntityID)
	}
}

func TestCandidateFetchFailureDegradesToNone(t *testing.T) {
	src := &fakeSource{
		search: map[string][]wikidata.RawHit{"entropy|en": {{ID: "Q5"}}},
		entErr: errors.New("service unavailable"),
	}
	s := newSelector(src, nil)

	res := s.Resolve(context.Background(), "entropy", "", typefilter.DomainConfig{})
	if res.EntityID != "" || res.Stage != StageNone {
		t.Errorf("res = %+v", res)
	}
}

func TestHitsDeduplicatedAcrossLanguages(t *testing.T) {
	ent := enLabel("Q5", "entropy", nil)
	ent.SitelinkCount = 100

	src := &fakeSource{
		search: map[string][]wikidata.RawHit{
			"entropy|en": {{ID: "Q5"}},
			"entropy|fr": {{ID: "Q5"}},
		},
		entities: map[string]wikidata.Entity{"Q5": ent},
	}
	s := newSelector(src, func(c *config.Config) { c.Languages = []string{"en", "fr"} })

	res := s.Resolve(context.Background(), "entropy", "", typefilter.DomainConfig{})
	if res.Candidates != 1 {
		t.Errorf("candidates = %d, want 1 after dedup", res.Candidates)
	}
}

func TestFallbackGatesRejectWeakMatches(t *testing.T) {
	far := enLabel("Q7", "entropy encoding in video compression", nil)
	far.SitelinkCount = 4

	src := &fakeSource{
		search:   map[string][]wikidata.RawHit{"entropy|en": {{ID: "Q7"}}},
		entities: map[string]wikidata.Entity{"Q7": far},
	}
	s := newSelector(src, nil)

	res := s.Resolve(context.Background(), "entropy", "", typefilter.DomainConfig{})
	if res.EntityID != "" {
		t.Errorf("weak match accepted: %+v", res)
	}
}
