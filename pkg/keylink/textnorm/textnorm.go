package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var (
	wsRe    = regexp.MustCompile(`\s+`)
	tokenRe = regexp.MustCompile(`[^\pL\pN_\-]+`)
)

// Normalize collapses whitespace and strips edge punctuation.
// It never fails; empty input yields empty output.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\ufeff", "")
	s = wsRe.ReplaceAllString(strings.TrimSpace(s), " ")
	return strings.Trim(s, ";, ")
}

// NormalizeKeepAcronyms normalizes and lowercases every token except
// alphabetic tokens of length 2-5 that are fully uppercase in the input.
// A 3-letter instrument abbreviation like "TEM" survives as-is.
func NormalizeKeepAcronyms(s string) string {
	s = Normalize(s)
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	for i, f := range fields {
		if isUpperAlpha(f) && len(f) >= 2 && len(f) <= 5 {
			continue
		}
		fields[i] = strings.ToLower(f)
	}
	return strings.Join(fields, " ")
}

// Singularize applies three English suffix rules in priority order:
// "-ies" -> "-y" (length > 3), "-ses" -> drop "es" (length > 3),
// "-s" -> "" (length > 2, not "-ss"). Short words pass through unchanged.
func Singularize(word string) string {
	w := Normalize(word)
	wl := strings.ToLower(w)
	switch {
	case len(w) > 3 && strings.HasSuffix(wl, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(wl, "ses"):
		return w[:len(w)-2]
	case len(w) > 2 && strings.HasSuffix(wl, "s") && !strings.HasSuffix(wl, "ss"):
		return w[:len(w)-1]
	}
	return w
}

// Tokenize splits text on runs of non-word, non-hyphen characters.
// Case is preserved; callers lowercase where they need folded tokens.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, t := range tokenRe.Split(text, -1) {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// TokenSet folds tokens to lowercase and returns them as a set.
func TokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[strings.ToLower(t)] = struct{}{}
	}
	return set
}

// IsLikelyAcronym reports whether the raw keyword looks like an acronym:
// 2-5 alphabetic characters, fully uppercase.
func IsLikelyAcronym(raw string) bool {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 || len(raw) > 5 {
		return false
	}
	return isUpperAlpha(raw)
}

// StripHTML extracts the text content of a fragment, dropping tags.
// HAL abstracts occasionally embed markup such as <p> or <sub>.
func StripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	tok := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.WriteString(tok.Token().Data)
			b.WriteByte(' ')
		}
	}
	return Normalize(b.String())
}

func isUpperAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) || !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
