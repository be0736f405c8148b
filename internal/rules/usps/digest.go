// Package usps parses USPS Informed Delivery notification emails: the
// daily digest (expected mail/package counts, sender names, buckets,
// mailpiece scans) and the same-day delivered notice.
//
// Extraction is regex-driven and best-effort. The patterns
// encode observed vendor template variance across HTML and forwarded
// plaintext renditions; every miss degrades to an empty field, never an
// error.
package usps

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nhle/mailtrack/internal/content"
	"github.com/nhle/mailtrack/internal/mail"
	"github.com/nhle/mailtrack/internal/model"
)

// DashboardURL is the stable Informed Delivery dashboard link, exposed as
// an attribute on every extraction.
const DashboardURL = "https://informeddelivery.usps.com/portal/dashboard"

// Bucket section headers. A section runs from its header match to the
// next header (or end of text).
var sectionRx = map[model.BucketKey]*regexp.Regexp{
	model.BucketExpectedToday:      regexp.MustCompile(`(?i)Expected\s+Today`),
	model.BucketExpected12Days:     regexp.MustCompile(`(?i)Expected\s+1[\-–—]\s*2\s+Days`),
	model.BucketAwaitingFromSender: regexp.MustCompile(`(?i)Awaiting\s+From\s+Sender`),
	model.BucketOutbound:           regexp.MustCompile(`(?i)Outbound`),
}

var (
	tagRx   = regexp.MustCompile(`<[^>]+>`)
	spaceRx = regexp.MustCompile(`\s+`)

	// Counter inside a section, e.g. "2 item(s)".
	countItemsRx = regexp.MustCompile(`(?i)\b(\d+)\s*item(?:s)?\b`)

	// USPS tracking-shaped token: 16+ digits starting with 9.
	trackNumRx = regexp.MustCompile(`\b9\d{15,}\b`)

	// Strict "FROM:": the colon (ASCII or full-width) is required so
	// prose like "From Sender" does not match.
	fromColonRx = regexp.MustCompile(`(?i)\bFROM\s*[:：]\s*([A-Z0-9 .,&/&\-]{2,200})`)

	// Structured spans present in some templates.
	mailFromSpanRx = regexp.MustCompile(`(?i)id=["']campaign-from-span-id["'][^>]*>\s*([^<>\r\n]+)`)
	shipperSpanRx  = regexp.MustCompile(`(?i)id=["']pra-shipper-name-id["'][^>]*>\s*([^<>\r\n]+)`)

	// Header counters in the digest HTML.
	mailBigRx = regexp.MustCompile(`(?i)id="(?:bg-total-mailpieces|total-mailpieces[^"]*)"\s*>\s*(\d+)`)
	pkgBigRx  = regexp.MustCompile(`(?i)id="(?:bg-total-packages|total-packages[^"]*)"\s*>\s*(\d+)`)

	// Textual counter fallbacks for rare/forwarded templates.
	mailExpectedRx = regexp.MustCompile(`(?i)\bMail(?:pieces)?\s+Expected\s+Today\b[^0-9]{0,20}(\d+)`)
	pkgsExpectedRx = regexp.MustCompile(`(?i)\bPackages?\s+Expected\s+Today\b[^0-9]{0,20}(\d+)`)
)

// placeholderSender pads mail_from up to mail_expected when a mailpiece
// has no extractable sender.
const placeholderSender = "Envelope"

// Digest is the complete extraction result for one daily digest email.
// Every field is produced on every call; merging a Digest into state is a
// full overwrite, not an accumulation.
type Digest struct {
	MailExpected int
	PkgsExpected int

	// MailFrom is NOT deduplicated; after padding its length equals
	// MailExpected.
	MailFrom []string

	// PkgsFrom is deduplicated, order-preserving, capped at 10.
	PkgsFrom []string

	// TrackingURLs stays empty: deep tracking links are intentionally
	// suppressed for this notification kind.
	TrackingURLs []string

	DashboardURL string
	Buckets      map[model.BucketKey]model.Bucket
	MailImages   model.ImageSet
}

// ParseDigest extracts a complete digest record from one message,
// independent of any prior state. Inline mailpiece images are written to
// store; a store failure skips that image only.
func ParseDigest(msg *mail.Message, store content.Store) Digest {
	html, text := msg.Bodies()
	flat := stripTags(html)

	mailExpected, pkgsExpected := -1, -1
	if m := mailBigRx.FindStringSubmatch(html); m != nil {
		mailExpected = mustInt(m[1])
	}
	if m := pkgBigRx.FindStringSubmatch(html); m != nil {
		pkgsExpected = mustInt(m[1])
	}

	if mailExpected < 0 {
		if m := firstSubmatch(mailExpectedRx, flat, text); m != "" {
			mailExpected = mustInt(m)
		}
	}
	if pkgsExpected < 0 {
		if m := firstSubmatch(pkgsExpectedRx, flat, text); m != "" {
			pkgsExpected = mustInt(m)
		}
	}

	sections := splitSections(flat)
	buckets := make(map[model.BucketKey]model.Bucket, len(model.BucketKeys))
	for _, key := range model.BucketKeys {
		count, names := bucketCountAndNames(sections[key])
		buckets[key] = model.Bucket{Count: count, From: names}
	}

	mailFrom := extractMailFrom(html, flat, sections)
	pkgsFrom := extractPackagesFrom(html, sections)

	// When "Awaiting From Sender" declares more items than it named,
	// backfill names from the package sender list.
	aw := buckets[model.BucketAwaitingFromSender]
	if aw.Count > len(aw.From) {
		limit := aw.Count
		if limit > 5 {
			limit = 5
		}
		for _, nm := range pkgsFrom {
			if len(aw.From) >= limit {
				break
			}
			if !containsString(aw.From, nm) {
				aw.From = append(aw.From, nm)
			}
		}
		buckets[model.BucketAwaitingFromSender] = aw
	}

	if mailExpected < 0 {
		n := 0
		for _, x := range mailFrom {
			if x != "" {
				n++
			}
		}
		mailExpected = n
	}
	if pkgsExpected < 0 {
		sum := 0
		for _, key := range model.BucketKeys {
			sum += buckets[key].Count
		}
		pkgsExpected = sum
	}

	// Count-parity padding: consumers index mail_from against
	// mail_expected, so pad unknown senders with a placeholder.
	for len(mailFrom) < mailExpected {
		mailFrom = append(mailFrom, placeholderSender)
	}

	return Digest{
		MailExpected: mailExpected,
		PkgsExpected: pkgsExpected,
		MailFrom:     mailFrom,
		PkgsFrom:     dedupKeepOrder(pkgsFrom),
		TrackingURLs: []string{},
		DashboardURL: DashboardURL,
		Buckets:      buckets,
		MailImages:   saveMailImages(msg, html, mailFrom, store),
	}
}

// stripTags flattens HTML to whitespace-normalized text.
func stripTags(s string) string {
	s = tagRx.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRx.ReplaceAllString(s, " "))
}

// splitSections cuts the flattened text into one segment per bucket
// header. Missing sections yield empty segments; a repeated header keeps
// its last segment.
func splitSections(flat string) map[model.BucketKey]string {
	type hit struct {
		pos int
		key model.BucketKey
	}
	var hits []hit
	for key, rx := range sectionRx {
		for _, loc := range rx.FindAllStringIndex(flat, -1) {
			hits = append(hits, hit{pos: loc[0], key: key})
		}
	}
	sortHits := func(a, b hit) bool { return a.pos < b.pos }
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && sortHits(hits[j], hits[j-1]); j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	out := make(map[model.BucketKey]string, len(sectionRx))
	for key := range sectionRx {
		out[key] = ""
	}
	for i, h := range hits {
		end := len(flat)
		if i+1 < len(hits) {
			end = hits[i+1].pos
		}
		out[h.key] = flat[h.pos:end]
	}
	return out
}

// bucketCountAndNames computes (count, sample names) for one section.
//
// Priority: an explicit "N item(s)" counter wins; otherwise strict
// "FROM:" names drive both count and samples; otherwise fall back to
// counting tracking-shaped tokens with no names.
func bucketCountAndNames(seg string) (int, []string) {
	var names []string
	for _, m := range fromColonRx.FindAllStringSubmatch(seg, -1) {
		if nm := cleanLabel(m[1]); nm != "" {
			names = append(names, nm)
		}
	}

	if m := countItemsRx.FindStringSubmatch(seg); m != nil {
		tops := dedupKeepOrder(names)
		if len(tops) > 5 {
			tops = tops[:5]
		}
		return mustInt(m[1]), tops
	}

	if len(names) > 0 {
		uniq := dedupKeepOrder(names)
		tops := uniq
		if len(tops) > 5 {
			tops = tops[:5]
		}
		return len(uniq), tops
	}

	return len(trackNumRx.FindAllString(seg, -1)), nil
}

// Generic brand phrases removed from the letter-sender list. The
// USPS-internal "USPSIS" sender label is deliberately not filtered.
var mailFromBlacklist = map[string]struct{}{
	"USPS":                         {},
	"USPS INFORMED DELIVERY":       {},
	"UNITED STATES POSTAL SERVICE": {},
	"INFORMED DELIVERY":            {},
	"U.S. POSTAL SERVICE":          {},
}

// extractMailFrom collects letter senders: structured campaign spans
// first, otherwise global strict "FROM:" matches minus anything that
// appears inside a package section. The result is NOT deduplicated;
// duplicates preserve count parity with mail_expected.
func extractMailFrom(html, flat string, sections map[model.BucketKey]string) []string {
	var out []string
	for _, m := range mailFromSpanRx.FindAllStringSubmatch(html, -1) {
		if nm := cleanLabel(m[1]); nm != "" {
			out = append(out, nm)
		}
	}

	if len(out) == 0 {
		pkgText := ""
		for _, key := range model.BucketKeys {
			pkgText += " " + sections[key]
		}
		pkgFroms := make(map[string]struct{})
		for _, m := range fromColonRx.FindAllStringSubmatch(pkgText, -1) {
			if nm := cleanLabel(m[1]); nm != "" {
				pkgFroms[nm] = struct{}{}
			}
		}
		for _, m := range fromColonRx.FindAllStringSubmatch(flat, -1) {
			nm := cleanLabel(m[1])
			if nm == "" {
				continue
			}
			if _, pkg := pkgFroms[nm]; !pkg {
				out = append(out, nm)
			}
		}
	}

	clean := out[:0]
	for _, x := range out {
		if _, banned := mailFromBlacklist[strings.ToUpper(x)]; !banned {
			clean = append(clean, x)
		}
	}
	if len(clean) > 10 {
		clean = clean[:10]
	}
	return clean
}

// extractPackagesFrom collects package shipper names: structured shipper
// spans first, otherwise strict "FROM:" matches from each bucket
// section. Deduplicated, capped at 10.
func extractPackagesFrom(html string, sections map[model.BucketKey]string) []string {
	var names []string
	for _, m := range shipperSpanRx.FindAllStringSubmatch(html, -1) {
		if nm := cleanLabel(m[1]); nm != "" {
			names = append(names, nm)
		}
	}
	if len(names) == 0 {
		for _, key := range model.BucketKeys {
			for _, m := range fromColonRx.FindAllStringSubmatch(sections[key], -1) {
				if nm := cleanLabel(m[1]); nm != "" {
					names = append(names, nm)
				}
			}
		}
	}
	out := dedupKeepOrder(names)
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func firstSubmatch(rx *regexp.Regexp, candidates ...string) string {
	for _, s := range candidates {
		if m := rx.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}

func containsString(items []string, s string) bool {
	for _, x := range items {
		if x == s {
			return true
		}
	}
	return false
}

func mustInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
