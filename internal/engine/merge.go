package engine

import (
	"github.com/nhle/mailtrack/internal/model"
	"github.com/nhle/mailtrack/internal/rules/amazon"
	"github.com/nhle/mailtrack/internal/rules/usps"
)

// MergeDigest folds a digest extraction into prior USPS state. The
// extractor always produces a complete snapshot, so every digest field
// is a full overwrite; only the dashboard URL falls back to the prior
// value when the new one is empty. LastDelivered is untouched.
func MergeDigest(d usps.Digest, subject string, prior model.UspsState) model.UspsState {
	next := prior

	next.Subject = subject
	next.Type = model.UspsTypeDigest

	next.MailExpected = d.MailExpected
	next.PkgsExpected = d.PkgsExpected
	next.MailFrom = d.MailFrom
	next.PkgsFrom = d.PkgsFrom

	if d.DashboardURL != "" {
		next.DashboardURL = d.DashboardURL
	}

	if next.Buckets == nil {
		next.Buckets = make(map[model.BucketKey]model.Bucket, len(model.BucketKeys))
	} else {
		buckets := make(map[model.BucketKey]model.Bucket, len(next.Buckets))
		for k, b := range next.Buckets {
			buckets[k] = b
		}
		next.Buckets = buckets
	}
	for _, key := range model.BucketKeys {
		if b, ok := d.Buckets[key]; ok {
			next.Buckets[key] = model.Bucket{Count: b.Count, From: b.From}
		}
	}

	next.MailImages = d.MailImages
	next.Images = append([]string(nil), d.MailImages.URLs...)

	return next
}

// MergeDelivered folds a delivered extraction into prior USPS state,
// writing only the root subject/type/dashboard and the nested
// last_delivered record. Digest fields are untouched.
func MergeDelivered(d usps.Delivered, subject string, prior model.UspsState) model.UspsState {
	next := prior

	dash := d.DashboardURL
	if dash == "" {
		dash = prior.DashboardURL
	}
	if dash == "" {
		dash = usps.DashboardURL
	}

	next.Subject = subject
	next.Type = model.UspsTypeDelivered
	next.DashboardURL = dash
	next.LastDelivered = &model.DeliveredRecord{
		Subject:      d.Subject,
		Delivered:    d.Delivered,
		DateLabel:    d.DateLabel,
		Month:        d.Month,
		Day:          d.Day,
		Year:         d.Year,
		DashboardURL: dash,
	}

	return next
}

// MergeAmazon folds an Amazon extraction into prior state under the
// freshness rule: a message strictly older than the stored ts is
// discarded entirely. Otherwise each non-empty extracted field
// overwrites the stored one; the changed flag reports whether any value
// actually differed. The ts stamp is independent of content change.
func MergeAmazon(x amazon.Extraction, ts float64, msgSubject string, prior model.AmazonState) (model.AmazonState, bool) {
	if ts < prior.TS {
		return prior, false
	}

	next := prior
	changed := false

	setString := func(dst *string, v string) {
		if v == "" {
			return
		}
		if *dst != v {
			changed = true
		}
		*dst = v
	}

	setString(&next.Subject, x.Subject)
	setString(&next.Event, x.Event)
	setString(&next.TrackURL, x.TrackURL)
	setString(&next.OrderID, x.OrderID)
	setString(&next.ShipmentID, x.ShipmentID)
	setString(&next.PackageIndex, x.PackageIndex)
	setString(&next.ETA, x.ETA)

	if len(x.Items) > 0 {
		if !stringsEqual(next.Items, x.Items) {
			changed = true
		}
		next.Items = append([]string(nil), x.Items...)
	}

	if ts != 0 && ts != next.TS {
		next.TS = ts
	}

	// Safety net: never leave the subject empty when the message had one.
	if next.Subject == "" {
		next.Subject = msgSubject
	}

	return next, changed
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
