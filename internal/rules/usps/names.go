package usps

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Sender-label cleanup patterns. These encode observed template noise;
// changing them changes what survives as a name.
var (
	fromPrefixRx   = regexp.MustCompile(`(?i)^\s*FROM\s*[:：]\s*`)
	learnMoreRx    = regexp.MustCompile(`(?i)\bLearn more about your mail\b`)
	outboundTailRx = regexp.MustCompile(`(?i)\bOutbound\b.*$`)
	itemTailRx     = regexp.MustCompile(`(?i)\b\d+\s+items?\b.*$`)
	digitBlobRx    = regexp.MustCompile(`\d{6,}`)
	trailingFromRx = regexp.MustCompile(`(?i)\bFROM\b$`)
	trailingPuncRx = regexp.MustCompile(`[•–—\-:;,]+$`)
	multiSpaceRx   = regexp.MustCompile(`\s{2,}`)
)

var titleCaser = cases.Title(language.English)

// cleanLabel normalizes an extracted sender label: drops the "FROM:"
// prefix (ASCII or full-width colon), promo tails, tracking-number digit
// blobs, a trailing bare "FROM", and trailing punctuation, then squeezes
// whitespace.
func cleanLabel(name string) string {
	n := fromPrefixRx.ReplaceAllString(name, "")
	n = learnMoreRx.ReplaceAllString(n, "")
	n = outboundTailRx.ReplaceAllString(n, "")
	n = itemTailRx.ReplaceAllString(n, "")
	n = digitBlobRx.ReplaceAllString(n, "")
	n = trailingFromRx.ReplaceAllString(n, "")
	n = strings.TrimSpace(trailingPuncRx.ReplaceAllString(n, ""))
	n = strings.Trim(multiSpaceRx.ReplaceAllString(n, " "), " ,")
	return smartCase(n)
}

// smartCase converts ALL-CAPS labels to Title Case and leaves mixed-case
// labels untouched.
func smartCase(s string) string {
	if s == "" {
		return s
	}
	hasUpper, hasLower := false, false
	for _, r := range s {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	if hasUpper && !hasLower {
		return titleCaser.String(s)
	}
	return s
}

// dedupKeepOrder drops empty strings and duplicates, preserving first
// occurrence order.
func dedupKeepOrder(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, x := range items {
		if x == "" {
			continue
		}
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}
