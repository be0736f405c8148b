// Package engine classifies incoming messages, merges their extractions
// into accumulated tracking state, and orchestrates one poll pass.
package engine

import "strings"

// Route identifies which merger a message is dispatched to.
type Route int

const (
	RouteNone Route = iota
	RouteAmazon
	RouteUspsDelivered
	RouteUspsDigest
)

func (r Route) String() string {
	switch r {
	case RouteAmazon:
		return "amazon"
	case RouteUspsDelivered:
		return "usps_delivered"
	case RouteUspsDigest:
		return "usps_digest"
	default:
		return "none"
	}
}

// Flags is the pass-scoped routing state. A pass iterates newest message
// first, so each first-wins gate locks onto the most recent qualifying
// message; everything older of the same kind is ignored. Amazon has no
// gate because its merger enforces freshness by timestamp instead.
type Flags struct {
	GotUspsDigest    bool
	GotUspsDelivered bool
}

var uspsFromNeedles = []string{
	"informeddelivery",
	"email.informeddelivery.usps.com",
	"usps informed delivery",
	"uspsinformeddelivery@",
}

var uspsDeliveredSubjects = []string{
	"your mail was delivered",
	"mail delivery notification",
	"mailpiece delivered",
	"mail piece delivered",
}

var uspsDigestSubjects = []string{
	"daily digest",
	"ready to view",
	"informed delivery",
	"coming to you soon",
}

// Classify decides a route from the decoded From and Subject headers.
// Unrecognized messages map to RouteNone and are silently ignored.
func Classify(from, subject string) Route {
	frm := strings.ToLower(from)
	subj := strings.ToLower(subject)

	if strings.Contains(frm, "amazon") || strings.Contains(frm, "shipment-tracking@amazon") {
		return RouteAmazon
	}

	if !isUspsSender(frm) {
		return RouteNone
	}

	for _, needle := range uspsDeliveredSubjects {
		if strings.Contains(subj, needle) {
			return RouteUspsDelivered
		}
	}
	if strings.HasPrefix(subj, "delivered") || strings.HasSuffix(subj, "delivered") {
		return RouteUspsDelivered
	}

	for _, needle := range uspsDigestSubjects {
		if strings.Contains(subj, needle) {
			return RouteUspsDigest
		}
	}

	return RouteNone
}

// isUspsSender matches the many observed USPS sender variants, including
// forwarding aliases.
func isUspsSender(frm string) bool {
	for _, needle := range uspsFromNeedles {
		if strings.Contains(frm, needle) {
			return true
		}
	}
	return strings.Contains(frm, "usps") && strings.Contains(frm, "delivery")
}
