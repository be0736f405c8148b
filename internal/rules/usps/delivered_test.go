package usps

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseDelivered(t *testing.T) {
	subject := "Your Mail Was Delivered Fri, Sep 12"

	got := ParseDelivered(subject)

	want := Delivered{
		Subject:      subject,
		Delivered:    true,
		DateLabel:    "today, September 12!",
		Month:        "September",
		Day:          12,
		Year:         time.Now().Year(),
		DashboardURL: DashboardURL,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseDelivered mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDeliveredWithoutDate(t *testing.T) {
	got := ParseDelivered("Mail Delivery Notification")

	if !got.Delivered {
		t.Error("Delivered = false, want true")
	}
	if got.Month != "" || got.Day != 0 || got.DateLabel != "" {
		t.Errorf("date fields = (%q, %d, %q), want empty", got.Month, got.Day, got.DateLabel)
	}
	if got.DashboardURL != DashboardURL {
		t.Errorf("DashboardURL = %q, want %q", got.DashboardURL, DashboardURL)
	}
}
