package usps

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Subject date, e.g. "Your Mail Was Delivered Fri, Sep 12".
var deliveredSubjectRx = regexp.MustCompile(
	`(?i)Your Mail Was Delivered\s+\w+,\s+([A-Za-z]{3})\s+(\d{1,2})`)

var monthNames = map[string]string{
	"Jan": "January", "Feb": "February", "Mar": "March", "Apr": "April",
	"May": "May", "Jun": "June", "Jul": "July", "Aug": "August",
	"Sep": "September", "Oct": "October", "Nov": "November", "Dec": "December",
}

// Delivered is the extraction result for a "Your Mail Was Delivered"
// notification. Only the subject line is consulted; the body carries
// nothing extra.
type Delivered struct {
	Subject   string
	Delivered bool
	DateLabel string
	Month     string
	Day       int

	// Year is the current calendar year at parse time. The subject has
	// no year, so this is labeling-only, not the true email year.
	Year int

	DashboardURL string
}

// ParseDelivered parses the decoded subject of a delivered notification.
// A subject without the date pattern still yields Delivered=true with
// empty date fields.
func ParseDelivered(subject string) Delivered {
	out := Delivered{
		Subject:      strings.TrimSpace(subject),
		Delivered:    true,
		DashboardURL: DashboardURL,
	}

	m := deliveredSubjectRx.FindStringSubmatch(subject)
	if m == nil {
		return out
	}

	abbr := capitalize(m[1])
	month, ok := monthNames[abbr]
	if !ok {
		month = abbr
	}
	day, _ := strconv.Atoi(m[2])

	out.Month = month
	out.Day = day
	out.Year = time.Now().Year()
	out.DateLabel = fmt.Sprintf("today, %s %d!", month, day)
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
