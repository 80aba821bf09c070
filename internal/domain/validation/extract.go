package validation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
	"github.com/rotisserie/eris"
)

// Claim is one numeric value the answer attributes to a field.
type Claim struct {
	Field metrics.Field
	Value float64
	// Raw is the literal as written, e.g. "$23,450".
	Raw   string
	Start int
	End   int
}

type parser func(raw string) (float64, error)

// extractor ties a field to one matcher. The matcher must have a "num" group.
type extractor struct {
	field   metrics.Field
	matcher *regexp.Regexp
	parse   parser
	percent bool
}

const (
	money   = `(?P<num>\$?\d+(?:,\d{3})*(?:\.\d+)?)`
	count   = `(?P<num>\d+(?:,\d{3})*)`
	pct     = `(?P<num>\d+(?:\.\d+)?)\s?(?:%|percent\b)`
	bare    = `(?P<num>\d+(?:\.\d+)?)`
	gap     = `(?:[^\d$%\n.;\x01]|\x01+){0,15}?`
	gpLabel = `(?:gp|gross\s+profit)`
)

func valueFirst(num, label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + num + `\s+(?:in\s+|of\s+|worth\s+of\s+)?(?:total\s+)?` + label + `\b`)
}

func labelFirst(label, num string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + label + gap + num)
}

func entry(f metrics.Field, re *regexp.Regexp, p parser) extractor {
	return extractor{field: f, matcher: re, parse: p, percent: metrics.TypeOf(f) == metrics.TypePercentage}
}

// extractors run in this order. Narrow phrases come before the broad ones
// they contain ("gp per invoice" before "gp", "retail tires" before "tires"),
// and a consumed number cannot be claimed again.
var extractors = []extractor{
	entry(metrics.FieldTireAttachRate, labelFirst(`tire\s+attach(?:ment)?\s+rate\b`, pct), parseNumber),
	entry(metrics.FieldAlignmentAttachRate, labelFirst(`alignment\s+attach(?:ment)?\s+rate\b`, pct), parseNumber),
	entry(metrics.FieldBrakeAttachRate, labelFirst(`brake\s+attach(?:ment)?\s+rate\b`, pct), parseNumber),

	entry(metrics.FieldSalesPerInvoice, labelFirst(`sales\s+per\s+(?:invoice|ticket)\b`, money), parseNumber),
	entry(metrics.FieldGPPerInvoice, labelFirst(gpLabel+`\s+per\s+(?:invoice|ticket)\b`, money), parseNumber),

	entry(metrics.FieldGPPercent, labelFirst(gpLabel+`\s*(?:%|percent(?:age)?)`, bare), parseNumber),
	entry(metrics.FieldGPPercent, labelFirst(`(?:`+gpLabel+`|margin)\b`, pct), parseNumber),
	entry(metrics.FieldGPPercent, regexp.MustCompile(`(?i)`+pct+`\s+(?:`+gpLabel+`|margin)\b`), parseNumber),

	entry(metrics.FieldGPSales, labelFirst(gpLabel+`(?:\s+(?:sales|dollars))?\b`, money), parseNumber),
	entry(metrics.FieldGPSales, valueFirst(money, gpLabel), parseNumber),

	entry(metrics.FieldAvgRepairOrder, labelFirst(`(?:average|avg\.?)\s+(?:repair\s+order|ro|ticket)(?:\s+(?:value|amount))?\b`, money), parseNumber),

	entry(metrics.FieldInvoices, valueFirst(count, `(?:invoices?|tickets?|repair\s+orders?|ros)`), parseNumber),
	entry(metrics.FieldInvoices, labelFirst(`(?:invoices?|invoice\s+count|tickets?|repair\s+orders?)\b`, count), parseNumber),

	entry(metrics.FieldOilChanges, valueFirst(count, `oil\s+changes?`), parseNumber),
	entry(metrics.FieldOilChanges, labelFirst(`oil\s+changes?\b`, count), parseNumber),
	entry(metrics.FieldAlignments, valueFirst(count, `alignments?`), parseNumber),
	entry(metrics.FieldAlignments, labelFirst(`alignments?\b`, count), parseNumber),
	entry(metrics.FieldBrakeServices, valueFirst(count, `brake(?:\s+(?:services?|jobs?))?`), parseNumber),
	entry(metrics.FieldBrakeServices, labelFirst(`brake(?:\s+(?:services?|jobs?))?\b`, count), parseNumber),
	entry(metrics.FieldBatteries, valueFirst(count, `batter(?:y|ies)`), parseNumber),
	entry(metrics.FieldBatteries, labelFirst(`batter(?:y|ies)\b`, count), parseNumber),
	entry(metrics.FieldWiperBlades, valueFirst(count, `wiper(?:\s+blades?)?`), parseNumber),
	entry(metrics.FieldWiperBlades, labelFirst(`wiper(?:\s+blades?)?\b`, count), parseNumber),
	entry(metrics.FieldCabinFilters, valueFirst(count, `cabin(?:\s+air)?\s+filters?`), parseNumber),
	entry(metrics.FieldCabinFilters, labelFirst(`cabin(?:\s+air)?\s+filters?\b`, count), parseNumber),
	entry(metrics.FieldEngineFilters, valueFirst(count, `(?:engine|engine\s+air)\s+filters?`), parseNumber),
	entry(metrics.FieldEngineFilters, labelFirst(`(?:engine|engine\s+air)\s+filters?\b`, count), parseNumber),

	entry(metrics.FieldRetailTires, valueFirst(count, `retail\s+tires?`), parseNumber),
	entry(metrics.FieldRetailTires, labelFirst(`retail\s+tires?\b`, count), parseNumber),
	entry(metrics.FieldAllTires, valueFirst(count, `(?:all\s+)?tires?`), parseNumber),
	entry(metrics.FieldAllTires, labelFirst(`(?:all|total)?\s*tires?\b`, count), parseNumber),

	entry(metrics.FieldSales, valueFirst(money, `(?:net\s+)?sales`), parseNumber),
	entry(metrics.FieldSales, labelFirst(`(?:total\s+|net\s+)?sales\b`, money), parseNumber),
	entry(metrics.FieldSales, labelFirst(`revenue\b`, money), parseNumber),
}

var percentAfter = regexp.MustCompile(`(?i)^\s?(?:%|percent\b)`)

// periodLiteral matches a month with its year ("August 2025", "Aug. 2025",
// "8/2025"). The year is a date, never a metric value.
var periodLiteral = regexp.MustCompile(`(?i)\b(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?,?\s+(?:of\s+)?(?:19|20)\d{2}\b|\b(?:0?[1-9]|1[0-2])/(?:19|20)\d{2}\b`)

// maskPeriods blanks every period literal with \x01 bytes. Offsets are kept,
// and a masked run counts as a single character of label-to-number gap.
func maskPeriods(text string) string {
	locs := periodLiteral.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	b := []byte(text)
	for _, l := range locs {
		for i := l[0]; i < l[1]; i++ {
			b[i] = 0x01
		}
	}
	return string(b)
}

// ExtractClaims runs the extractor table over text and returns at most one
// claim per field, in table order.
func ExtractClaims(text string) []Claim {
	var (
		claims   []Claim
		claimed  = make(map[metrics.Field]bool)
		consumed [][2]int
		masked   = maskPeriods(text)
	)

	overlaps := func(s, e int) bool {
		for _, c := range consumed {
			if s < c[1] && c[0] < e {
				return true
			}
		}
		return false
	}

	for _, x := range extractors {
		if claimed[x.field] {
			continue
		}
		numIdx := x.matcher.SubexpIndex("num")
		for _, loc := range x.matcher.FindAllStringSubmatchIndex(masked, -1) {
			s, e := loc[2*numIdx], loc[2*numIdx+1]
			if s < 0 || overlaps(s, e) || !numberBoundary(masked, s, e) {
				continue
			}
			if !x.percent && percentAfter.MatchString(masked[e:]) {
				continue
			}
			raw := text[s:e]
			v, err := x.parse(raw)
			if err != nil {
				continue
			}
			claims = append(claims, Claim{Field: x.field, Value: v, Raw: raw, Start: s, End: e})
			claimed[x.field] = true
			consumed = append(consumed, [2]int{s, e})
			break
		}
	}
	return claims
}

// numberBoundary rejects literals that are a fragment of a longer number.
func numberBoundary(text string, s, e int) bool {
	if s > 0 {
		switch c := text[s-1]; {
		case c >= '0' && c <= '9', c == '.', c == ',':
			return false
		}
	}
	if e < len(text) {
		c := text[e]
		if c >= '0' && c <= '9' {
			return false
		}
		if (c == '.' || c == ',') && e+1 < len(text) && text[e+1] >= '0' && text[e+1] <= '9' {
			return false
		}
	}
	return true
}

func parseNumber(raw string) (float64, error) {
	s := strings.NewReplacer("$", "", ",", "", "%", "").Replace(strings.TrimSpace(raw))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "validation: parse %q", raw)
	}
	return v, nil
}
