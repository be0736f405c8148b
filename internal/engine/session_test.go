package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/mailtrack/internal/mail"
	"github.com/nhle/mailtrack/internal/model"
	"github.com/nhle/mailtrack/internal/rules/amazon"
)

const testUspsFrom = "USPS Informed Delivery <USPSInformeddelivery@email.informeddelivery.usps.com>"

func digestMessage(mailpieces int) *mail.Message {
	html := fmt.Sprintf(`<span id="bg-total-mailpieces">%d</span>`, mailpieces)
	return &mail.Message{
		From:    testUspsFrom,
		Subject: "Your Daily Digest",
		Parts: []mail.Part{
			{ContentType: "text/html", Data: []byte(html)},
		},
	}
}

func amazonMessage(subject string, date time.Time) *mail.Message {
	return &mail.Message{
		From:    "\"Amazon.com\" <shipment-tracking@amazon.com>",
		Subject: subject,
		Date:    date.Format(time.RFC1123Z),
		Parts: []mail.Part{
			{ContentType: "text/plain", Data: []byte("update")},
		},
	}
}

func TestSessionNewestDigestWins(t *testing.T) {
	s := NewSession(nil, zerolog.Nop())

	// Batch is oldest to newest; only the newest digest may land.
	batch := []*mail.Message{
		digestMessage(5),
		digestMessage(2),
	}

	state := s.Run(model.MailState{}, batch)

	if state.Usps.MailExpected != 2 {
		t.Errorf("MailExpected = %d, want 2 from the newest digest", state.Usps.MailExpected)
	}
	if state.Usps.Type != model.UspsTypeDigest {
		t.Errorf("Type = %q, want %q", state.Usps.Type, model.UspsTypeDigest)
	}
}

func TestSessionAmazonFreshness(t *testing.T) {
	s := NewSession(nil, zerolog.Nop())

	shippedAt := time.Date(2025, 9, 8, 10, 0, 0, 0, time.UTC)
	deliveredAt := time.Date(2025, 9, 9, 10, 0, 0, 0, time.UTC)

	batch := []*mail.Message{
		amazonMessage("Shipped: Your order has shipped", shippedAt),
		amazonMessage("Delivered: Your package was delivered", deliveredAt),
	}

	state := s.Run(model.MailState{}, batch)

	if state.Amazon.Event != amazon.EventDelivered {
		t.Errorf("Event = %q, want %q", state.Amazon.Event, amazon.EventDelivered)
	}
	if want := float64(deliveredAt.Unix()); state.Amazon.TS != want {
		t.Errorf("TS = %v, want %v", state.Amazon.TS, want)
	}
}

func TestSessionIgnoresUnroutableMessages(t *testing.T) {
	s := NewSession(nil, zerolog.Nop())

	batch := []*mail.Message{
		{
			From:    "newsletter@example.com",
			Subject: "Your Daily Digest",
			Parts:   []mail.Part{{ContentType: "text/plain", Data: []byte("spam")}},
		},
	}

	state := s.Run(model.MailState{}, batch)

	if state.Usps.Type != "" || state.Amazon.Event != "" {
		t.Errorf("state touched by unroutable message: %+v", state)
	}
}

func TestSessionDoesNotAliasPreviousState(t *testing.T) {
	s := NewSession(nil, zerolog.Nop())

	prev := model.MailState{}
	prev.Usps.MailFrom = []string{"Acme"}
	prev.Usps.Buckets = map[model.BucketKey]model.Bucket{
		model.BucketExpectedToday: {Count: 1, From: []string{"Acme"}},
	}

	state := s.Run(prev, []*mail.Message{digestMessage(1)})

	state.Usps.Buckets[model.BucketExpectedToday] = model.Bucket{Count: 9}
	if prev.Usps.Buckets[model.BucketExpectedToday].Count != 1 {
		t.Error("mutating the new state leaked into the previous snapshot")
	}
}
