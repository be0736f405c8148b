package usps

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nhle/mailtrack/internal/content"
	"github.com/nhle/mailtrack/internal/mail"
	"github.com/nhle/mailtrack/internal/model"
)

// memStore records Put calls without touching the filesystem.
type memStore struct {
	names []string
	data  map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Put(name string, data []byte) (content.Ref, error) {
	s.names = append(s.names, name)
	s.data[name] = data
	return content.Ref{
		URL:  "/local/mailtrack/usps/" + name,
		Path: filepath.Join("/tmp/images", name),
	}, nil
}

func htmlMessage(html string) *mail.Message {
	return &mail.Message{
		From:    "USPS Informed Delivery <USPSInformeddelivery@email.informeddelivery.usps.com>",
		Subject: "Your Daily Digest",
		Parts: []mail.Part{
			{ContentType: "text/html", Data: []byte(html)},
		},
	}
}

func TestParseDigestSections(t *testing.T) {
	html := strings.Join([]string{
		`<html><body>`,
		`<span id="bg-total-mailpieces">2</span>`,
		`<span id="bg-total-packages">3</span>`,
		`<span id="campaign-from-span-id"> ACME MARKETING </span>`,
		`<span id="campaign-from-span-id">City Utilities</span>`,
		`<div>Expected Today 2 item(s) FROM: UPS STORE</div>`,
		`<div>Expected 1-2 Days FROM: NEWEGG</div>`,
		`<div>Awaiting From Sender 3 item(s)</div>`,
		`<div>Outbound 9400100000000000000000</div>`,
		`</body></html>`,
	}, "\n")

	got := ParseDigest(htmlMessage(html), nil)

	want := Digest{
		MailExpected: 2,
		PkgsExpected: 3,
		MailFrom:     []string{"Acme Marketing", "City Utilities"},
		PkgsFrom:     []string{"Ups Store", "Newegg"},
		TrackingURLs: []string{},
		DashboardURL: DashboardURL,
		Buckets: map[model.BucketKey]model.Bucket{
			model.BucketExpectedToday:      {Count: 2, From: []string{"Ups Store"}},
			model.BucketExpected12Days:     {Count: 1, From: []string{"Newegg"}},
			model.BucketAwaitingFromSender: {Count: 3, From: []string{"Ups Store", "Newegg"}},
			model.BucketOutbound:           {Count: 1},
		},
		MailImages: model.ImageSet{URLs: []string{}, Files: []string{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseDigest mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDigestPadsMailFrom(t *testing.T) {
	html := `<span id="bg-total-mailpieces">3</span> FROM: VALPAK`

	got := ParseDigest(htmlMessage(html), nil)

	if got.MailExpected != 3 {
		t.Fatalf("MailExpected = %d, want 3", got.MailExpected)
	}
	want := []string{"Valpak", "Envelope", "Envelope"}
	if diff := cmp.Diff(want, got.MailFrom); diff != "" {
		t.Errorf("MailFrom mismatch (-want +got):\n%s", diff)
	}
	if len(got.MailFrom) != got.MailExpected {
		t.Errorf("len(MailFrom) = %d, want MailExpected = %d", len(got.MailFrom), got.MailExpected)
	}
}

func TestParseDigestCountFallbacks(t *testing.T) {
	// No big counters anywhere: mail falls back to the number of named
	// senders, packages to the bucket count sum.
	html := `FROM: VALPAK! <div>Expected Today FROM: NEWEGG; FROM: CHEWY</div>`

	got := ParseDigest(htmlMessage(html), nil)

	if got.PkgsExpected != 2 {
		t.Errorf("PkgsExpected = %d, want 2", got.PkgsExpected)
	}
	// Only the non-section FROM survives as a letter sender.
	if diff := cmp.Diff([]string{"Valpak"}, got.MailFrom); diff != "" {
		t.Errorf("MailFrom mismatch (-want +got):\n%s", diff)
	}
	if got.MailExpected != 1 {
		t.Errorf("MailExpected = %d, want 1", got.MailExpected)
	}
}

func TestBucketCountAndNames(t *testing.T) {
	cases := []struct {
		seg       string
		wantCount int
		wantNames []string
	}{
		{"2 item(s)\nFROM: Acme Corp\nFROM: Beta Inc", 2, []string{"Acme Corp", "Beta Inc"}},
		{"FROM: NEWEGG\nFROM: NEWEGG", 1, []string{"Newegg"}},
		{"9400100000000000000000 and 9400100000000000000001", 2, nil},
		{"", 0, nil},
	}
	for _, tc := range cases {
		count, names := bucketCountAndNames(tc.seg)
		if count != tc.wantCount {
			t.Errorf("bucketCountAndNames(%q) count = %d, want %d", tc.seg, count, tc.wantCount)
		}
		if diff := cmp.Diff(tc.wantNames, names); diff != "" {
			t.Errorf("bucketCountAndNames(%q) names mismatch (-want +got):\n%s", tc.seg, diff)
		}
	}
}

func TestParseDigestSavesImages(t *testing.T) {
	html := `<span id="campaign-from-span-id">Acme Co</span>` +
		`<img id="campaign-representative-image-src-id" src="cid:piece1@usps">`

	msg := htmlMessage(html)
	msg.Date = "Tue, 09 Sep 2025 08:00:00 +0000"
	msg.Parts = append(msg.Parts, mail.Part{
		ContentType: "image/jpeg",
		ContentID:   "piece1@usps",
		Data:        []byte("jpegdata"),
	})

	store := newMemStore()
	got := ParseDigest(msg, store)

	wantName := "usps_20250909_080000_01_Acme_Co.jpg"
	if diff := cmp.Diff([]string{wantName}, store.names); diff != "" {
		t.Fatalf("stored names mismatch (-want +got):\n%s", diff)
	}
	want := model.ImageSet{
		Count: 1,
		URLs:  []string{"/local/mailtrack/usps/" + wantName},
		Files: []string{filepath.Join("/tmp/images", wantName)},
	}
	if diff := cmp.Diff(want, got.MailImages); diff != "" {
		t.Errorf("MailImages mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDigestSkipsUnreferencedImages(t *testing.T) {
	msg := htmlMessage(`<p>no inline scans today</p>`)
	msg.Parts = append(msg.Parts, mail.Part{
		ContentType: "image/png",
		ContentID:   "logo@usps",
		Data:        []byte("pngdata"),
	})

	store := newMemStore()
	got := ParseDigest(msg, store)

	if len(store.names) != 0 {
		t.Errorf("stored %v, want no writes", store.names)
	}
	if got.MailImages.Count != 0 {
		t.Errorf("MailImages.Count = %d, want 0", got.MailImages.Count)
	}
}
