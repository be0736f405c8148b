package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nhle/mailtrack/internal/model"
	"github.com/nhle/mailtrack/internal/rules/amazon"
	"github.com/nhle/mailtrack/internal/rules/usps"
)

func TestMergeAmazonDiscardsStaleMessage(t *testing.T) {
	prior := model.AmazonState{
		Subject: "Delivered: Your package was delivered",
		Event:   amazon.EventDelivered,
		TS:      200,
	}
	stale := amazon.Extraction{
		Subject: "Shipped: Your order has shipped",
		Event:   amazon.EventShipped,
	}

	got, changed := MergeAmazon(stale, 100, stale.Subject, prior)

	if changed {
		t.Error("changed = true, want false")
	}
	if diff := cmp.Diff(prior, got); diff != "" {
		t.Errorf("stale merge altered state (-want +got):\n%s", diff)
	}
}

func TestMergeAmazonAccumulates(t *testing.T) {
	ordered := amazon.Extraction{
		Subject: "Ordered: \"USB-C Cable\"",
		Event:   amazon.EventOrdered,
		Items:   []string{"USB-C Cable"},
	}
	shipped := amazon.Extraction{
		Subject:    "Shipped: Your order has shipped",
		Event:      amazon.EventShipped,
		TrackURL:   "https://www.amazon.com/progress-tracker/package?orderId=1",
		OrderID:    "1",
		ShipmentID: "S1",
		ETA:        "Arriving September 9",
	}

	state, changed := MergeAmazon(ordered, 100, ordered.Subject, model.AmazonState{})
	if !changed {
		t.Fatal("first merge reported no change")
	}

	state, changed = MergeAmazon(shipped, 200, shipped.Subject, state)
	if !changed {
		t.Fatal("second merge reported no change")
	}

	want := model.AmazonState{
		Subject:    "Shipped: Your order has shipped",
		Event:      amazon.EventShipped,
		Items:      []string{"USB-C Cable"},
		TrackURL:   "https://www.amazon.com/progress-tracker/package?orderId=1",
		OrderID:    "1",
		ShipmentID: "S1",
		ETA:        "Arriving September 9",
		TS:         200,
	}
	if diff := cmp.Diff(want, state); diff != "" {
		t.Errorf("merged state mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeAmazonIdempotent(t *testing.T) {
	x := amazon.Extraction{
		Subject: "Shipped: Your order has shipped",
		Event:   amazon.EventShipped,
		Items:   []string{"Coffee Filters"},
	}

	state, _ := MergeAmazon(x, 100, x.Subject, model.AmazonState{})
	again, changed := MergeAmazon(x, 100, x.Subject, state)

	if changed {
		t.Error("changed = true on identical re-merge, want false")
	}
	if diff := cmp.Diff(state, again); diff != "" {
		t.Errorf("re-merge altered state (-want +got):\n%s", diff)
	}
}

func TestMergeAmazonStampsTSWithoutContentChange(t *testing.T) {
	x := amazon.Extraction{
		Subject: "Shipped: Your order has shipped",
		Event:   amazon.EventShipped,
	}

	state, _ := MergeAmazon(x, 100, x.Subject, model.AmazonState{})
	state, changed := MergeAmazon(x, 300, x.Subject, state)

	if changed {
		t.Error("changed = true, want false")
	}
	if state.TS != 300 {
		t.Errorf("TS = %v, want 300", state.TS)
	}
}

func TestMergeDigestOverwritesAndKeepsDelivered(t *testing.T) {
	prior := model.UspsState{
		Subject:      "Your Mail Was Delivered Fri, Sep 12",
		Type:         model.UspsTypeDelivered,
		DashboardURL: usps.DashboardURL,
		MailExpected: 5,
		MailFrom:     []string{"Old Sender"},
		LastDelivered: &model.DeliveredRecord{
			Subject:   "Your Mail Was Delivered Fri, Sep 12",
			Delivered: true,
		},
	}
	d := usps.Digest{
		MailExpected: 2,
		PkgsExpected: 1,
		MailFrom:     []string{"Acme Marketing", "Envelope"},
		PkgsFrom:     []string{"Newegg"},
		TrackingURLs: []string{},
		DashboardURL: usps.DashboardURL,
		Buckets: map[model.BucketKey]model.Bucket{
			model.BucketExpectedToday: {Count: 1, From: []string{"Newegg"}},
		},
		MailImages: model.ImageSet{
			Count: 1,
			URLs:  []string{"/local/mailtrack/usps/a.jpg"},
			Files: []string{"/tmp/a.jpg"},
		},
	}

	got := MergeDigest(d, "Your Daily Digest", prior)

	if got.Subject != "Your Daily Digest" || got.Type != model.UspsTypeDigest {
		t.Errorf("root = (%q, %q), want digest subject and type", got.Subject, got.Type)
	}
	if got.MailExpected != 2 || got.PkgsExpected != 1 {
		t.Errorf("counts = (%d, %d), want (2, 1)", got.MailExpected, got.PkgsExpected)
	}
	if diff := cmp.Diff(d.MailFrom, got.MailFrom); diff != "" {
		t.Errorf("MailFrom mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(d.MailImages.URLs, got.Images); diff != "" {
		t.Errorf("Images mismatch (-want +got):\n%s", diff)
	}
	if got.LastDelivered == nil || !got.LastDelivered.Delivered {
		t.Error("LastDelivered lost across digest merge")
	}
}

func TestMergeDeliveredKeepsDigestFields(t *testing.T) {
	prior := model.UspsState{
		Subject:      "Your Daily Digest",
		Type:         model.UspsTypeDigest,
		DashboardURL: usps.DashboardURL,
		MailExpected: 3,
		MailFrom:     []string{"Acme", "Envelope", "Envelope"},
		PkgsFrom:     []string{"Newegg"},
	}
	d := usps.ParseDelivered("Your Mail Was Delivered Fri, Sep 12")

	got := MergeDelivered(d, d.Subject, prior)

	if got.Type != model.UspsTypeDelivered {
		t.Errorf("Type = %q, want %q", got.Type, model.UspsTypeDelivered)
	}
	if got.MailExpected != 3 {
		t.Errorf("MailExpected = %d, want untouched 3", got.MailExpected)
	}
	if diff := cmp.Diff(prior.MailFrom, got.MailFrom); diff != "" {
		t.Errorf("MailFrom mismatch (-want +got):\n%s", diff)
	}
	if got.LastDelivered == nil {
		t.Fatal("LastDelivered = nil")
	}
	if got.LastDelivered.Month != "September" || got.LastDelivered.Day != 12 {
		t.Errorf("LastDelivered date = (%q, %d), want (September, 12)",
			got.LastDelivered.Month, got.LastDelivered.Day)
	}
	if got.LastDelivered.DashboardURL != usps.DashboardURL {
		t.Errorf("LastDelivered.DashboardURL = %q", got.LastDelivered.DashboardURL)
	}
}
