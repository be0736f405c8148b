// Package sync schedules poll passes against the mailbox and owns the
// accumulated state between them. Polls are strictly serialized: the
// engine's first-wins gates and the Amazon freshness merge are
// order-dependent, so at most one pass runs at a time.
package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/mailtrack/internal/engine"
	"github.com/nhle/mailtrack/internal/mail"
	"github.com/nhle/mailtrack/internal/model"
	"github.com/nhle/mailtrack/internal/store"
)

// PollState represents the current state of the poll loop.
type PollState int

const (
	PollIdle PollState = iota
	PollRunning
	PollError
)

func (s PollState) String() string {
	switch s {
	case PollRunning:
		return "running"
	case PollError:
		return "error"
	default:
		return "idle"
	}
}

// Status is a point-in-time view of the poll loop for the state API.
type Status struct {
	State     PollState `json:"state"`
	LastPoll  time.Time `json:"last_poll"`
	LastError string    `json:"last_error,omitempty"`
}

// fetchTimeout is the maximum time allowed for a single mailbox fetch.
const fetchTimeout = 60 * time.Second

// Source supplies one batch of raw messages per poll, ordered oldest to
// newest.
type Source interface {
	FetchBatch(ctx context.Context, windowDays, limit int) ([]*mail.Message, error)
}

// Options configures a Poller.
type Options struct {
	Interval   time.Duration
	WindowDays int
	FetchLimit int
}

// Poller drives the poll loop: fetch a batch, run one engine pass over
// it, persist the new snapshot, and expose the accumulated state.
type Poller struct {
	source   Source
	session  *engine.Session
	store    store.Store
	interval time.Duration
	window   int
	limit    int
	log      zerolog.Logger

	triggerCh chan struct{}

	mu     gosync.Mutex
	state  model.MailState
	status Status
}

// New creates a Poller seeded with empty state.
func New(source Source, session *engine.Session, st store.Store, opts Options, log zerolog.Logger) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = 120 * time.Second
	}
	limit := opts.FetchLimit
	if limit <= 0 {
		limit = 25
	}
	return &Poller{
		source:    source,
		session:   session,
		store:     st,
		interval:  interval,
		window:    opts.WindowDays,
		limit:     limit,
		log:       log,
		triggerCh: make(chan struct{}, 1),
	}
}

// Seed warm-starts the accumulated state from a persisted snapshot.
func (p *Poller) Seed(state model.MailState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state.Clone()
}

// State returns a copy of the current accumulated state.
func (p *Poller) State() model.MailState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone()
}

// Status returns the current poll loop status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Trigger requests an immediate poll without blocking. A trigger that
// arrives while a poll is already pending is coalesced.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Run executes the poll loop until ctx is cancelled. The first poll
// happens immediately.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info().
		Dur("interval", p.interval).
		Int("fetch_limit", p.limit).
		Msg("poller started")

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		case <-p.triggerCh:
			p.poll(ctx)
		}
	}
}

// poll runs one serialized pass: fetch, engine run, persist, publish.
// A fetch failure leaves the accumulated state untouched.
func (p *Poller) poll(ctx context.Context) {
	p.setStatus(PollRunning, nil)

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	batch, err := p.source.FetchBatch(fetchCtx, p.window, p.limit)
	if err != nil {
		p.setStatus(PollError, err)
		p.log.Error().Err(err).Msg("mailbox fetch failed")
		return
	}

	prev := p.State()
	next := p.session.Run(prev, batch)

	if p.store != nil {
		if err := p.store.SaveSnapshot(ctx, next); err != nil {
			// Snapshot loss is recoverable on the next poll; keep going.
			p.log.Warn().Err(err).Msg("saving snapshot failed")
		}
	}

	p.mu.Lock()
	p.state = next
	p.mu.Unlock()
	p.setStatus(PollIdle, nil)

	p.log.Info().
		Int("batch", len(batch)).
		Msg("poll pass complete")
}

func (p *Poller) setStatus(state PollState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	if err != nil {
		p.status.LastError = err.Error()
	} else {
		p.status.LastError = ""
	}
	if state == PollIdle && err == nil {
		p.status.LastPoll = time.Now()
	}
}
