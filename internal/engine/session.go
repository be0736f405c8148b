package engine

import (
	"github.com/rs/zerolog"

	"github.com/nhle/mailtrack/internal/content"
	"github.com/nhle/mailtrack/internal/mail"
	"github.com/nhle/mailtrack/internal/model"
	"github.com/nhle/mailtrack/internal/rules/amazon"
	"github.com/nhle/mailtrack/internal/rules/usps"
)

// Session runs poll passes over fetched message batches. It owns no
// state between passes: each Run seeds from the previous accumulated
// state and returns the next one.
type Session struct {
	store content.Store
	log   zerolog.Logger
}

// NewSession creates a Session. store receives extracted mailpiece
// images and may be nil to disable image extraction.
func NewSession(store content.Store, log zerolog.Logger) *Session {
	return &Session{store: store, log: log}
}

// Run executes one full pass over a batch ordered oldest to newest, as
// delivered by the message source. Messages are applied newest first so
// the per-kind first-wins gates lock onto the most recent digest and
// delivered notifications while every Amazon message is offered to the
// timestamp merge. The returned state always carries both carrier
// subtrees, even when empty.
func (s *Session) Run(prev model.MailState, batch []*mail.Message) model.MailState {
	state := prev.Clone()
	flags := Flags{}

	for i := len(batch) - 1; i >= 0; i-- {
		s.apply(batch[i], &state, &flags)
	}

	return state
}

// apply routes and merges a single message. Unroutable messages are
// ignored without error.
func (s *Session) apply(msg *mail.Message, state *model.MailState, flags *Flags) {
	route := Classify(msg.From, msg.Subject)

	switch route {
	case RouteAmazon:
		x := amazon.Parse(msg)
		next, changed := MergeAmazon(x, msg.Timestamp(), msg.Subject, state.Amazon)
		state.Amazon = next
		s.log.Debug().
			Str("route", route.String()).
			Str("event", x.Event).
			Bool("changed", changed).
			Msg("merged amazon message")

	case RouteUspsDelivered:
		if flags.GotUspsDelivered {
			return
		}
		d := usps.ParseDelivered(msg.Subject)
		state.Usps = MergeDelivered(d, msg.Subject, state.Usps)
		flags.GotUspsDelivered = true
		s.log.Debug().
			Str("route", route.String()).
			Str("date_label", d.DateLabel).
			Msg("merged usps delivered notification")

	case RouteUspsDigest:
		if flags.GotUspsDigest {
			return
		}
		d := usps.ParseDigest(msg, s.store)
		state.Usps = MergeDigest(d, msg.Subject, state.Usps)
		flags.GotUspsDigest = true
		s.log.Debug().
			Str("route", route.String()).
			Int("mail_expected", d.MailExpected).
			Int("pkgs_expected", d.PkgsExpected).
			Int("images", d.MailImages.Count).
			Msg("merged usps digest")
	}
}
