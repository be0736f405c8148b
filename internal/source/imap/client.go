// Package imap fetches the recent message window from an IMAP mailbox
// and hands the engine raw messages plus decoded transport metadata. It
// performs no extraction itself.
package imap

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailtrack/internal/mail"
)

// AuthError indicates that the mailbox rejected our credentials.
type AuthError struct {
	Username string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("imap auth error (%s): %s", e.Username, e.Message)
}

// Client holds the connection settings for the watched mailbox. Each
// fetch dials a fresh connection; no session is kept between polls.
type Client struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	folder   string
}

// NewClient creates a new IMAP client configuration.
func NewClient(host, port, username, password string, useTLS bool, folder string) *Client {
	if folder == "" {
		folder = "INBOX"
	}
	return &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      useTLS,
		folder:   folder,
	}
}

// connect establishes a connection, authenticates, and returns the
// client. The caller is responsible for Logout.
func (c *Client) connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			Username: c.username,
			Message:  fmt.Sprintf("authentication failed: %v", err),
		}
	}

	return client, nil
}

// ValidateConnection verifies credentials by connecting, authenticating,
// and selecting the watched folder.
func (c *Client) ValidateConnection(ctx context.Context) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.folder, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", c.folder, err)
	}

	return nil
}

// FetchBatch retrieves the most recent messages from the watched folder,
// bounded by windowDays and limit, ordered oldest to newest. Each
// message is fetched in full and parsed; a message that cannot be
// collected is skipped, not fatal.
func (c *Client) FetchBatch(ctx context.Context, windowDays, limit int) ([]*mail.Message, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", c.folder, err)
	}

	if windowDays <= 0 {
		windowDays = 7
	}
	criteria := &imap.SearchCriteria{
		Since: time.Now().AddDate(0, 0, -windowDays),
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)

	var messages []*mail.Message
	for {
		item := fetchCmd.Next()
		if item == nil {
			break
		}

		buf, err := item.Collect()
		if err != nil {
			continue
		}

		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			continue
		}

		msg := mail.Parse(raw)
		fillFromEnvelope(msg, buf)
		messages = append(messages, msg)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching messages: %w", err)
	}

	return messages, nil
}

// fillFromEnvelope backfills headers from the server-parsed envelope
// when the raw message's own headers did not decode.
func fillFromEnvelope(msg *mail.Message, buf *imapclient.FetchMessageBuffer) {
	if buf.Envelope == nil {
		return
	}

	if msg.Subject == "" {
		msg.Subject = buf.Envelope.Subject
	}
	if msg.From == "" && len(buf.Envelope.From) > 0 {
		from := buf.Envelope.From[0]
		if from.Name != "" {
			msg.From = from.Name
		} else {
			msg.From = from.Addr()
		}
	}
	if msg.Date == "" && !buf.Envelope.Date.IsZero() {
		msg.Date = buf.Envelope.Date.Format(time.RFC1123Z)
	}
}
