package entity

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// monthNames maps every accepted spelling to its month number.
var monthNames = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may":  5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sept": 9, "sep": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

var (
	monthPattern        = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\b\.?`)
	numericMonthPattern = regexp.MustCompile(`\b(0?[1-9]|1[0-2])/((?:19|20)\d{2})\b`)
	yearPattern         = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	relativeMonth       = regexp.MustCompile(`(?i)\b(this|last|previous|prior)\s+month\b`)
)

// ExtractPeriod scans the whole query for a month and a year independently of
// any name match. Parts that are absent default to now's month and year.
func ExtractPeriod(query string, now time.Time) Period {
	p := Period{}

	if m := numericMonthPattern.FindStringSubmatch(query); m != nil {
		p.Month, _ = strconv.Atoi(m[1])
		p.Year, _ = strconv.Atoi(m[2])
		return p
	}

	if m := relativeMonth.FindStringSubmatch(query); m != nil {
		t := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		if !strings.EqualFold(m[1], "this") {
			t = t.AddDate(0, -1, 0)
		}
		return Period{Month: int(t.Month()), Year: t.Year()}
	}

	if m := monthPattern.FindStringSubmatch(query); m != nil {
		p.Month = monthNames[strings.ToLower(m[1])]
	}
	if m := yearPattern.FindStringSubmatch(query); m != nil {
		p.Year, _ = strconv.Atoi(m[1])
	}

	if p.Month == 0 {
		p.Month = int(now.Month())
	}
	if p.Year == 0 {
		p.Year = now.Year()
	}
	return p
}
