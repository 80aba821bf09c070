package entity

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Confidence of a surface pattern.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// Candidate is a name span pulled out of a query by one surface pattern.
type Candidate struct {
	Pattern    string     `json:"pattern"`
	Confidence Confidence `json:"confidence"`
	Kind       Kind       `json:"kind"`
	Raw        string     `json:"raw"`
	// Variants are cleaned lookup names, most likely first.
	Variants []string `json:"variants"`
}

type surfacePattern struct {
	name       string
	confidence Confidence
	re         *regexp.Regexp
	// caseSensitive patterns run against the original query, the rest against
	// its lowercase form.
	caseSensitive bool
	// possessive spans may end in a bare possessive "s".
	possessive bool
}

const span = `([a-z]+(?:\s+[a-z]+)?)`

const datePart = `(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec|\d{4}|this month|last month|mtd|ytd)`

// personPatterns are ordered by confidence; the order is part of the contract.
var personPatterns = []surfacePattern{
	{name: "possessive_apostrophe", confidence: ConfidenceHigh, re: regexp.MustCompile(`\b` + span + `['’]s\b`)},
	{name: "possessive_plain", confidence: ConfidenceHigh, possessive: true,
		re: regexp.MustCompile(`\b` + span + `\s+(?:score\s*card|numbers|stats|metrics|performance|kpis?|results|sales|gp|invoices)\b`)},
	{name: "has_sold", confidence: ConfidenceHigh, re: regexp.MustCompile(`\bhas\s+` + span + `\s+sold\b`)},
	{name: "did_sell", confidence: ConfidenceHigh, re: regexp.MustCompile(`\bdid\s+` + span + `\s+sell\b`)},
	{name: "leading_capitalized", confidence: ConfidenceMedium, caseSensitive: true,
		re: regexp.MustCompile(`^\s*([A-Z][a-z]+\s+[A-Z][a-z]+)\b`)},
	{name: "for_period", confidence: ConfidenceMedium, possessive: true,
		re: regexp.MustCompile(`\bfor\s+` + span + `\s+(?:in\s+)?` + datePart + `\b`)},
}

var unitPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{name: "unit_suffix", re: regexp.MustCompile(`\b` + span + `\s+(store|market)\b`)},
	{name: "unit_prefix", re: regexp.MustCompile(`\b(store|market)\s+([a-z0-9]+)\b`)},
}

var unitKeyword = regexp.MustCompile(`(?i)\b(store|market)\b`)

// dateTokens are removed from a span before any possessive handling.
var dateTokens = map[string]bool{
	"mtd": true, "ytd": true, "month": true, "monthly": true, "quarter": true,
	"quarterly": true, "yearly": true, "year": true,
}

var yearToken = regexp.MustCompile(`^\d{4}$`)

// stopwords never form part of a name.
var stopwords = map[string]bool{
	"a": true, "about": true, "all": true, "an": true, "and": true, "are": true,
	"at": true, "can": true, "current": true, "did": true, "do": true, "does": true,
	"for": true, "from": true, "get": true, "give": true, "has": true, "have": true,
	"how": true, "i": true, "in": true, "is": true, "last": true, "many": true,
	"me": true, "much": true, "of": true, "on": true, "our": true, "please": true,
	"pull": true, "see": true, "show": true, "tell": true, "the": true, "their": true,
	"this": true, "to": true, "total": true, "up": true, "was": true, "were": true,
	"what": true, "whats": true, "with": true, "you": true, "advisor": true,
	"store": true, "market": true, "team": true, "top": true, "best": true,
	"sales": true, "scorecard": true, "numbers": true, "stats": true,
}

// misspellings maps common misspellings of first names to the usual spelling.
var misspellings = map[string]string{
	"micheal":    "michael",
	"jonathon":   "jonathan",
	"cristopher": "christopher",
	"jeffery":    "jeffrey",
	"dwyane":     "dwayne",
	"isiah":      "isaiah",
	"antonie":    "antoine",
	"stephon":    "stefan",
}

// ExtractCandidates returns every usable name span in pattern order. Store and
// market spans come first when the query mentions a store or market.
func ExtractCandidates(query string) []Candidate {
	lower := foldName(strings.ToLower(query))
	var out []Candidate

	if unitKeyword.MatchString(query) {
		out = append(out, unitCandidates(lower)...)
	}

	for _, p := range personPatterns {
		text := lower
		if p.caseSensitive {
			text = query
		}
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			variants := cleanName(strings.ToLower(m[1]), p.possessive)
			if len(variants) == 0 {
				continue
			}
			out = append(out, Candidate{
				Pattern:    p.name,
				Confidence: p.confidence,
				Kind:       KindAdvisor,
				Raw:        m[1],
				Variants:   variants,
			})
		}
	}
	return out
}

func unitCandidates(lower string) []Candidate {
	var out []Candidate
	for _, p := range unitPatterns {
		for _, m := range p.re.FindAllStringSubmatch(lower, -1) {
			raw, kind := m[1], Kind(m[2])
			if p.name == "unit_prefix" {
				raw, kind = m[2], Kind(m[1])
			}
			tokens := nameTokens(raw)
			if len(tokens) == 0 {
				continue
			}
			out = append(out, Candidate{
				Pattern:    p.name,
				Confidence: ConfidenceHigh,
				Kind:       kind,
				Raw:        raw,
				Variants:   []string{strings.Join(tokens, " ")},
			})
		}
	}
	return out
}

// cleanName strips date tokens and filler first, and only then interprets a
// trailing "s" as possessive. Doing it the other way round mangles names that
// end in "s".
func cleanName(raw string, possessive bool) []string {
	tokens := nameTokens(raw)
	if len(tokens) == 0 {
		return nil
	}

	base := strings.Join(tokens, " ")
	var variants []string
	add := func(v string) {
		for _, existing := range variants {
			if existing == v {
				return
			}
		}
		variants = append(variants, v)
	}

	last := tokens[len(tokens)-1]
	if possessive && len(last) > 3 && strings.HasSuffix(last, "s") && !strings.HasSuffix(last, "ss") {
		trimmed := append(append([]string{}, tokens[:len(tokens)-1]...), strings.TrimSuffix(last, "s"))
		add(normalizeSpelling(trimmed))
		add(strings.Join(trimmed, " "))
	}
	add(normalizeSpelling(tokens))
	add(base)
	return variants
}

// nameTokens splits a span and drops date tokens and stopwords.
func nameTokens(raw string) []string {
	var tokens []string
	for _, t := range strings.Fields(raw) {
		t = strings.Trim(t, "'’.,!?")
		t = strings.TrimSuffix(strings.TrimSuffix(t, "'s"), "’s")
		if t == "" || dateTokens[t] || yearToken.MatchString(t) {
			continue
		}
		if _, isMonth := monthNames[t]; isMonth {
			continue
		}
		if stopwords[t] || len(t) < 2 {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

func normalizeSpelling(tokens []string) string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		if fixed, ok := misspellings[t]; ok {
			t = fixed
		}
		out[i] = t
	}
	return strings.Join(out, " ")
}

// foldName removes diacritics so "José" and "Jose" compare equal.
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

var requestVerbs = map[string]bool{
	"show": true, "tell": true, "give": true, "send": true, "let": true,
	"help": true, "get": true, "email": true, "remind": true,
}

var subjectVerbs = map[string]bool{
	"sell": true, "sold": true, "do": true, "did": true, "doing": true,
	"have": true, "had": true, "make": true, "made": true, "am": true,
	"close": true, "closed": true, "hit": true, "get": true, "got": true,
	"rank": true, "ranked": true, "earn": true, "earned": true,
}

var wordPattern = regexp.MustCompile(`[a-z']+`)

// IsFirstPerson reports whether the query is about the person asking.
// "me" after a request verb ("show me") does not count.
func IsFirstPerson(query string) bool {
	tokens := wordPattern.FindAllString(strings.ToLower(query), -1)
	for i, t := range tokens {
		switch t {
		case "my", "mine", "myself", "i'm", "i've":
			return true
		case "me":
			if i == 0 || !requestVerbs[tokens[i-1]] {
				return true
			}
		case "i":
			if i+1 < len(tokens) && subjectVerbs[tokens[i+1]] {
				return true
			}
			if i > 0 && (tokens[i-1] == "am" || tokens[i-1] == "did" || tokens[i-1] == "do" || tokens[i-1] == "have" || tokens[i-1] == "how") {
				return true
			}
		}
	}
	return false
}
