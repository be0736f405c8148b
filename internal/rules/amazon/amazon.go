// Package amazon parses Amazon shipment notification emails into a flat
// extraction record: event kind, item names, progress-tracker link and
// its IDs, and the delivery estimate.
//
// Amazon emits many small incremental updates per order; each extraction
// captures whatever this one message knows. Field merging and freshness
// are the engine's concern.
package amazon

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/nhle/mailtrack/internal/mail"
)

// Event values, in escalation order over an order's lifetime.
const (
	EventOrdered        = "ordered"
	EventShipped        = "shipped"
	EventOutForDelivery = "out_for_delivery"
	EventDelivered      = "delivered"
)

var (
	// Progress-tracker link.
	trackURLRx = regexp.MustCompile(
		`(?i)https?://www\.amazon\.com/progress-tracker/package[^ \n<>"']+`)

	// ETA like "Arriving September 9", "Delivery estimate Sep 9",
	// "Arrives Today".
	etaRx = regexp.MustCompile(
		`(?i)(?:(Arriving|Delivery estimate|Estimated delivery|Arrives)\s*:?\s*)` +
			`(Today|Tomorrow|[A-Z][a-z]{2,9}\s+\d{1,2}(?:,\s*\d{4})?)`)

	// Item lines in plaintext: "* <name>".
	itemLineRx = regexp.MustCompile(`(?m)^\s*\*\s+(.+)$`)

	// Item titles in HTML product links.
	itemHTMLRx = regexp.MustCompile(
		`(?i)(?:<li[^>]*>\s*)?(?:<a[^>]+href="https?://www\.amazon\.com/(?:dp|gp/product)/[^"]+"[^>]*>)` +
			`([^<]{2,300})</a>`)

	// Generic list-item fallback.
	listItemRx = regexp.MustCompile(`(?i)<li[^>]*>\s*([^<]{2,200})\s*</li>`)

	// Visible headline on the HTML card.
	headlineRx = regexp.MustCompile(
		`(?i)(Your package was delivered!|Out for delivery|Your order has shipped|Shipped|` +
			`Order confirmed|Order placed|Ordered|We've received your order)`)

	// Quantity tail after an item name.
	quantityTailRx = regexp.MustCompile(`\s{2,}Quantity:|  Quantity:`)

	spaceRx = regexp.MustCompile(`\s+`)
)

// Extraction is the flat record parsed from one Amazon message.
type Extraction struct {
	Subject      string
	Headline     string
	Event        string
	Items        []string
	TrackURL     string
	OrderID      string
	ShipmentID   string
	PackageIndex string
	ETA          string
}

// Parse extracts shipment fields from one message. Missing fields stay
// empty; nothing here is an error.
func Parse(msg *mail.Message) Extraction {
	html, text := msg.Bodies()
	subject := strings.TrimSpace(msg.Subject)

	out := Extraction{
		Subject: subject,
		Event:   eventFromSubjectOrHTML(subject, html),
	}

	out.Items = itemsFromText(text)
	if len(out.Items) == 0 {
		out.Items = itemsFromHTML(html)
	}

	if m := trackURLRx.FindString(text); m != "" {
		out.TrackURL = m
	} else if m := trackURLRx.FindString(html); m != "" {
		out.TrackURL = m
	}
	if out.TrackURL != "" {
		out.OrderID, out.ShipmentID, out.PackageIndex = trackParams(out.TrackURL)
	}

	if m := etaRx.FindStringSubmatch(text); m != nil {
		out.ETA = strings.TrimSpace(m[1]) + " " + strings.TrimSpace(m[2])
	} else if m := etaRx.FindStringSubmatch(html); m != nil {
		out.ETA = strings.TrimSpace(m[1]) + " " + strings.TrimSpace(m[2])
	}

	if m := headlineRx.FindStringSubmatch(html); m != nil {
		out.Headline = strings.TrimSpace(m[1])
	}
	if out.Subject == "" {
		out.Subject = out.Headline
	}

	return out
}

// eventFromSubjectOrHTML infers the compact event label. The subject is
// checked first; the HTML headline is only a fallback, and when the two
// disagree the subject wins.
func eventFromSubjectOrHTML(subject, html string) string {
	subj := strings.ToLower(subject)

	switch {
	case strings.HasPrefix(subj, "ordered:"),
		strings.Contains(subj, " order confirmed"),
		strings.Contains(subj, "order confirmation"),
		strings.Contains(subj, "we've received your order"),
		strings.Contains(subj, "your order has been placed"),
		strings.Contains(subj, "order placed"):
		return EventOrdered
	case strings.HasPrefix(subj, "shipped:"),
		strings.Contains(subj, " has shipped"),
		strings.Contains(subj, "your order has shipped"):
		return EventShipped
	case strings.Contains(subj, "out for delivery"):
		return EventOutForDelivery
	case strings.HasPrefix(subj, "delivered:"),
		strings.Contains(subj, " delivered"):
		return EventDelivered
	}

	m := headlineRx.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	t := strings.ToLower(m[1])
	switch {
	case strings.Contains(t, "ordered"),
		strings.Contains(t, "order confirmed"),
		strings.Contains(t, "order placed"):
		return EventOrdered
	case strings.Contains(t, "shipped"),
		strings.Contains(t, "has shipped"):
		return EventShipped
	case strings.Contains(t, "out for delivery"):
		return EventOutForDelivery
	case strings.Contains(t, "delivered"):
		return EventDelivered
	}
	return ""
}

// itemsFromText extracts item titles from plaintext bullets, trimming
// quantity tails.
func itemsFromText(text string) []string {
	var items []string
	for _, m := range itemLineRx.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if parts := quantityTailRx.Split(name, 2); len(parts) > 0 {
			name = strings.TrimSpace(parts[0])
		}
		if name != "" {
			items = append(items, name)
		}
	}
	return normalizeItems(items)
}

// itemsFromHTML extracts item titles from product links, falling back to
// generic list-item contents.
func itemsFromHTML(html string) []string {
	var items []string
	for _, m := range itemHTMLRx.FindAllStringSubmatch(html, -1) {
		items = append(items, strings.TrimSpace(m[1]))
	}
	if len(items) == 0 {
		for _, m := range listItemRx.FindAllStringSubmatch(html, -1) {
			items = append(items, strings.TrimSpace(m[1]))
		}
	}
	return normalizeItems(items)
}

// normalizeItems collapses whitespace (including non-breaking spaces)
// and deduplicates preserving order.
func normalizeItems(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, x := range items {
		x = strings.ReplaceAll(x, " ", " ")
		x = strings.TrimSpace(spaceRx.ReplaceAllString(x, " "))
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

// trackParams pulls orderId/shipmentId/packageIndex out of the tracker
// URL query, defaulting to empty strings.
func trackParams(rawURL string) (orderID, shipmentID, packageIndex string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", ""
	}
	q := u.Query()
	return q.Get("orderId"), q.Get("shipmentId"), q.Get("packageIndex")
}
