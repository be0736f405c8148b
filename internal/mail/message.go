// Package mail defines the transport-neutral view of one email message
// that the extraction engine consumes: decoded headers plus the flat list
// of decoded MIME parts. It carries no IMAP or network state.
package mail

import (
	"bytes"
	"io"
	netmail "net/mail"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

// Part is one decoded MIME leaf part.
type Part struct {
	ContentType string
	ContentID   string
	Filename    string
	Data        []byte
}

// Message holds the decoded headers and parts of one email message.
// From and Subject are already RFC 2047 decoded; Date is the raw header
// value as received.
type Message struct {
	From    string
	Subject string
	Date    string
	Parts   []Part
}

// Bodies concatenates the message's text bodies across all MIME parts:
// HTML parts joined with a space, plaintext parts joined with newlines.
func (m *Message) Bodies() (html, text string) {
	var htmls, texts []string
	for _, p := range m.Parts {
		switch {
		case strings.HasPrefix(p.ContentType, "text/html"):
			htmls = append(htmls, string(p.Data))
		case strings.HasPrefix(p.ContentType, "text/plain"):
			texts = append(texts, string(p.Data))
		}
	}
	return strings.Join(htmls, " "), strings.Join(texts, "\n")
}

// Timestamp parses the Date header into UTC epoch seconds.
// An absent or unparsable date yields 0.
func (m *Message) Timestamp() float64 {
	if m.Date == "" {
		return 0
	}
	t, err := netmail.ParseDate(m.Date)
	if err != nil {
		return 0
	}
	return float64(t.UTC().Unix())
}

// Parse decodes a raw RFC 5322 message into a Message. It never fails:
// malformed headers fall back to their raw text, and input that cannot be
// parsed as MIME at all becomes a single text/plain part.
func Parse(raw []byte) *Message {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) || entity == nil {
		return &Message{
			Parts: []Part{{ContentType: "text/plain", Data: raw}},
		}
	}

	msg := &Message{
		From:    headerText(entity.Header, "From"),
		Subject: headerText(entity.Header, "Subject"),
		Date:    entity.Header.Get("Date"),
	}

	_ = entity.Walk(func(_ []int, part *message.Entity, walkErr error) error {
		if walkErr != nil || part.MultipartReader() != nil {
			return nil
		}

		ctype, _, _ := part.Header.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			return nil
		}

		ah := gomail.AttachmentHeader{Header: part.Header}
		filename, _ := ah.Filename()

		msg.Parts = append(msg.Parts, Part{
			ContentType: strings.ToLower(ctype),
			ContentID:   strings.Trim(part.Header.Get("Content-Id"), "<>"),
			Filename:    filename,
			Data:        body,
		})
		return nil
	})

	return msg
}

// headerText returns the decoded header value, falling back to the raw
// value when the encoded words are malformed.
func headerText(h message.Header, key string) string {
	text, err := h.Text(key)
	if err != nil {
		return strings.TrimSpace(h.Get(key))
	}
	return strings.TrimSpace(text)
}
