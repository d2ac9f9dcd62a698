package score

import (
	"strings"

	"github.com/sciknow/keylink/pkg/keylink/config"
	"github.com/sciknow/keylink/pkg/keylink/textnorm"
)

// Engine computes the weighted total score for candidates. Weights are
// looked up per match mode, so an exact-label hit and a fuzzy hit are
// judged on different tables.
type Engine struct {
	cfg       config.Config
	stopwords map[string]struct{}
	sink      DebugSink
}

func NewEngine(cfg config.Config) *Engine {
	stop := make(map[string]struct{}, len(cfg.Stopwords))
	for _, w := range cfg.Stopwords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &Engine{cfg: cfg, stopwords: stop}
}

// SetDebugSink routes every scored candidate to s. Nil disables.
func (e *Engine) SetDebugSink(s DebugSink) { e.sink = s }

// Score fills the derived signal fields of c and computes its total.
// TypeBonus and DomainBonus must already be set by the caller; they are
// added on top of the weighted base.
func (e *Engine) Score(keyword, docContext string, c *Candidate) {
	kw := fold(keyword)
	kws := fold(textnorm.Singularize(keyword))
	lbl := fold(c.Label)
	c.ExactLabel = kw != "" && (kw == lbl || kws == lbl)
	for _, a := range c.Aliases {
		if kw != "" && kw == fold(a) {
			c.ExactAlias = true
			break
		}
	}
	switch {
	case c.ExactLabel:
		c.Mode = config.ModeLabelExact
	case c.ExactAlias:
		c.Mode = config.ModeAliasExact
	default:
		c.Mode = config.ModeNone
	}

	c.LabelSimilarity = LabelSimilarity(keyword, c.Label, c.Aliases)

	ownText := strings.TrimSpace(c.Label + " " + c.Description + " " + strings.Join(c.Aliases, " "))
	c.ContextSim, _ = ContextSimilarity(docContext, ownText, e.stopwords, e.cfg.MinTokenLen)

	c.ContextTypeSim = TokenSetRatio(docContext, c.TypeText)
	c.ContextSubSim = TokenSetRatio(docContext, c.SubclassText)
	c.Canonicality = Canonicality(c.Sitelinks, c.HasSubclass, c.AliasCount)

	w := e.cfg.WeightsFor(c.Mode)
	total := 0.0
	if c.ExactLabel {
		total += e.cfg.ExactBonusLabel
	}
	if c.ExactAlias {
		total += e.cfg.ExactBonusAlias
	}
	total += w.Context * c.ContextSim
	total += w.Label * c.LabelSimilarity
	total += w.Canonicality * c.Canonicality
	total += w.ContextType * c.ContextTypeSim / 100
	total += w.ContextSubclass * c.ContextSubSim / 100
	total += w.TypeCount * float64(len(c.InstanceOf))
	total += w.SubclassCount * float64(len(c.SubclassOf))
	total += w.AliasInverse * aliasInverse(c.AliasCount)
	total -= w.TokenPenalty * e.tokenPenalty(keyword, c)

	c.BaseScore = total
	c.Score = total + c.TypeBonus + c.DomainBonus

	if e.sink != nil {
		e.sink.Record(keyword, c)
	}
}

// aliasInverse rewards entities with few aliases, which tend to be the
// canonical spelling rather than a catch-all.
func aliasInverse(cnt int) float64 {
	return 1 / (1 + float64(cnt)/2)
}

// tokenPenalty counts how many more tokens the label carries than the
// keyword, capped at 2. Acronym keywords and alias-exact matches are
// exempt: "DNA" legitimately expands to a multi-token label.
func (e *Engine) tokenPenalty(keyword string, c *Candidate) float64 {
	if c.ExactAlias || textnorm.IsLikelyAcronym(keyword) {
		return 0
	}
	extra := len(textnorm.Tokenize(c.Label)) - len(textnorm.Tokenize(keyword))
	if extra <= 0 {
		return 0
	}
	if extra > 2 {
		extra = 2
	}
	return float64(extra)
}
