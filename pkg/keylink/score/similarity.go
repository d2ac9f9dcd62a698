package score

import (
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/sciknow/keylink/pkg/keylink/textnorm"
)

// Ratio is a character-level similarity in [0,100] based on edit
// distance. Two empty strings are identical; one empty side scores 0.
func Ratio(a, b string) float64 {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	max := len([]rune(a))
	if lb := len([]rune(b)); lb > max {
		max = lb
	}
	return 100 * (1 - float64(dist)/float64(max))
}

// LabelSimilarity is the maximum Ratio between the normalized keyword
// and the candidate's label or any single alias, each compared
// independently.
func LabelSimilarity(keyword, label string, aliases []string) float64 {
	kw := fold(keyword)
	best := Ratio(kw, fold(label))
	for _, a := range aliases {
		if s := Ratio(kw, fold(a)); s > best {
			best = s
		}
	}
	return best
}

// TokenSetRatio is a token-order-insensitive similarity in [0,100]:
// both sides are tokenized, and the shared-token core is compared
// against each side's remainder.
func TokenSetRatio(a, b string) float64 {
	ta := textnorm.TokenSet(textnorm.Tokenize(fold(a)))
	tb := textnorm.TokenSet(textnorm.Tokenize(fold(b)))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var inter, onlyA, onlyB []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	core := strings.Join(inter, " ")
	sa := strings.TrimSpace(core + " " + strings.Join(onlyA, " "))
	sb := strings.TrimSpace(core + " " + strings.Join(onlyB, " "))

	return math.Max(Ratio(sa, sb), math.Max(Ratio(core, sa), Ratio(core, sb)))
}

// ContextSimilarity is the directional token-overlap between a document
// context and a candidate's own text, in [0,100]:
//
//	100 × |ctxTokens ∩ candTokens| / max(1, |ctxTokens|)
//
// Tokens shorter than minLen are dropped unless fully uppercase
// (probable acronyms), as are stopwords; if filtering empties a side,
// that side falls back to its unfiltered tokens.
func ContextSimilarity(context, candText string, stopwords map[string]struct{}, minLen int) (float64, int) {
	ctx := textnorm.NormalizeKeepAcronyms(context)
	cand := textnorm.NormalizeKeepAcronyms(candText)
	if ctx == "" || cand == "" {
		return 0, 0
	}

	a := filteredTokenSet(ctx, stopwords, minLen)
	b := filteredTokenSet(cand, stopwords, minLen)
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}

	overlap := 0
	for t := range a {
		if _, ok := b[t]; ok {
			overlap++
		}
	}
	return 100 * float64(overlap) / math.Max(1, float64(len(a))), overlap
}

func filteredTokenSet(s string, stopwords map[string]struct{}, minLen int) map[string]struct{} {
	tokens := textnorm.Tokenize(s)
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		lower := strings.ToLower(t)
		if _, stop := stopwords[lower]; stop {
			continue
		}
		if len(t) < minLen && !isAllUpper(t) {
			continue
		}
		out[lower] = struct{}{}
	}
	if len(out) == 0 {
		return textnorm.TokenSet(tokens)
	}
	return out
}

// Canonicality is a popularity proxy favoring well-connected entities:
// log-scaled sitelink count, a bump for declared structure, and a tiny
// alias term capped at 200.
func Canonicality(sitelinks int, hasSubclass bool, aliasCount int) float64 {
	structure := 0.0
	if hasSubclass {
		structure = 2.0
	}
	capped := aliasCount
	if capped > 200 {
		capped = 200
	}
	return 3.2*math.Log1p(float64(sitelinks)) + structure + 0.01*float64(capped)
}

func fold(s string) string {
	return strings.ToLower(textnorm.Normalize(s))
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}
