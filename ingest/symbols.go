package ingest

import (
	"regexp"
	"sort"
	"strings"
)

// symbolPattern matches candidate ticker symbols: 1-5 uppercase letters
// at word boundaries.
var symbolPattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// commonWords are uppercase English words that match the ticker pattern
// but are almost never symbols in financial text.
var commonWords = map[string]struct{}{
	"THE": {}, "AND": {}, "FOR": {}, "ARE": {}, "BUT": {}, "NOT": {},
	"YOU": {}, "ALL": {}, "CAN": {}, "HER": {}, "WAS": {}, "ONE": {},
	"OUR": {}, "HAD": {}, "BY": {}, "UP": {}, "DO": {}, "NO": {},
	"IF": {}, "TO": {}, "MY": {}, "IS": {}, "AT": {}, "AS": {},
	"WE": {}, "ON": {}, "BE": {}, "OR": {}, "AN": {}, "WILL": {},
	"SO": {}, "IT": {}, "OF": {}, "IN": {}, "HE": {}, "HAS": {},
	"GET": {}, "NEW": {}, "NOW": {}, "OLD": {}, "SEE": {}, "HIM": {},
	"TWO": {}, "HOW": {}, "ITS": {}, "WHO": {}, "OIL": {}, "USE": {},
	"MAN": {}, "DAY": {}, "TOO": {}, "ANY": {}, "MAY": {}, "SAY": {},
	"SHE": {}, "WAY": {}, "OUT": {}, "TOP": {}, "SET": {}, "PUT": {},
	"END": {}, "WHY": {}, "TRY": {}, "GOD": {}, "SIX": {}, "DOG": {},
	"EAT": {}, "AGO": {}, "SIT": {}, "FUN": {}, "BAD": {}, "YES": {},
	"YET": {}, "ARM": {}, "FAR": {}, "OFF": {}, "ILL": {}, "OWN": {},
	"UNDER": {}, "LAST": {},
}

// ExtractSymbols returns the deduplicated, sorted ticker symbols found
// in the text.
func ExtractSymbols(text string) []string {
	seen := make(map[string]struct{})
	for _, candidate := range symbolPattern.FindAllString(text, -1) {
		if _, common := commonWords[candidate]; common {
			continue
		}
		seen[candidate] = struct{}{}
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// htmlTagPattern strips markup from feed descriptions.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes tags and collapses whitespace in feed content.
func StripHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return strings.Join(strings.Fields(s), " ")
}
