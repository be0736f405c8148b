package model

// UspsType* are the values of UspsState.Type, naming which notification
// kind last touched the root subject.
const (
	UspsTypeDigest    = "digest"
	UspsTypeDelivered = "delivered"
)

// BucketKey names one of the four digest groupings.
type BucketKey = string

const (
	BucketExpectedToday      BucketKey = "expected_today"
	BucketExpected12Days     BucketKey = "expected_1_2_days"
	BucketAwaitingFromSender BucketKey = "awaiting_from_sender"
	BucketOutbound           BucketKey = "outbound"
)

// BucketKeys lists the digest buckets in their canonical order.
var BucketKeys = []BucketKey{
	BucketExpectedToday,
	BucketExpected12Days,
	BucketAwaitingFromSender,
	BucketOutbound,
}

// Bucket holds the count and up to five sample sender names for one
// digest grouping.
type Bucket struct {
	Count int      `json:"count"`
	From  []string `json:"from"`
}

// ImageSet describes the mailpiece scans extracted from one digest.
type ImageSet struct {
	Count int      `json:"count"`
	URLs  []string `json:"urls"`
	Files []string `json:"files"`
}

// DeliveredRecord is the nested payload of a "Your Mail Was Delivered"
// notification. Year is stamped with the calendar year at parse time;
// the subject line carries no year.
type DeliveredRecord struct {
	Subject      string `json:"subject"`
	Delivered    bool   `json:"delivered"`
	DateLabel    string `json:"date_label"`
	Month        string `json:"month"`
	Day          int    `json:"day"`
	Year         int    `json:"year"`
	DashboardURL string `json:"dashboard_url"`
}

// UspsState accumulates USPS Informed Delivery data. Digest fields and
// LastDelivered are independent sub-trees: a delivered notification never
// touches digest fields and vice versa.
//
// MailFrom is intentionally NOT deduplicated; its length is reconciled
// against MailExpected so UI consumers can index-align the two.
type UspsState struct {
	Subject       string               `json:"subject"`
	Type          string               `json:"type"`
	DashboardURL  string               `json:"dashboard_url"`
	MailExpected  int                  `json:"mail_expected"`
	PkgsExpected  int                  `json:"pkgs_expected"`
	MailFrom      []string             `json:"mail_from"`
	PkgsFrom      []string             `json:"pkgs_from"`
	Buckets       map[BucketKey]Bucket `json:"buckets"`
	MailImages    ImageSet             `json:"mail_images"`
	Images        []string             `json:"images"`
	LastDelivered *DeliveredRecord     `json:"last_delivered,omitempty"`
}

// AmazonState accumulates shipment data across Amazon's incremental
// notification emails. TS is the epoch timestamp of the most recent
// message that contributed data and is monotonically non-decreasing.
type AmazonState struct {
	Subject      string   `json:"subject"`
	Event        string   `json:"event"`
	Items        []string `json:"items"`
	TrackURL     string   `json:"track_url"`
	OrderID      string   `json:"order_id"`
	ShipmentID   string   `json:"shipment_id"`
	PackageIndex string   `json:"package_index"`
	ETA          string   `json:"eta"`
	TS           float64  `json:"ts"`
}

// MailState is the full accumulated tracking state. It is replaced
// wholesale at the end of each poll pass and persisted externally.
type MailState struct {
	Usps   UspsState   `json:"usps"`
	Amazon AmazonState `json:"amazon"`
}

// Clone returns a deep copy so a poll pass can mutate its working state
// without aliasing the previous snapshot.
func (s MailState) Clone() MailState {
	out := s
	out.Usps.MailFrom = copyStrings(s.Usps.MailFrom)
	out.Usps.PkgsFrom = copyStrings(s.Usps.PkgsFrom)
	out.Usps.Images = copyStrings(s.Usps.Images)
	out.Usps.MailImages.URLs = copyStrings(s.Usps.MailImages.URLs)
	out.Usps.MailImages.Files = copyStrings(s.Usps.MailImages.Files)
	if s.Usps.Buckets != nil {
		out.Usps.Buckets = make(map[BucketKey]Bucket, len(s.Usps.Buckets))
		for k, b := range s.Usps.Buckets {
			b.From = copyStrings(b.From)
			out.Usps.Buckets[k] = b
		}
	}
	if s.Usps.LastDelivered != nil {
		ld := *s.Usps.LastDelivered
		out.Usps.LastDelivered = &ld
	}
	out.Amazon.Items = copyStrings(s.Amazon.Items)
	return out
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
