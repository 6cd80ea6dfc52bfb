package cast

import (
	"context"
	"sync"
	"time"

	"github.com/pedalcast/pedalcast/pkg/log"
)

// Poll cadences, trading freshness against load. Waiting screens can afford
// seconds of lag; a live mirror of a moving wizard cannot.
const (
	WaitingInterval = 3 * time.Second
	ViewingInterval = 10 * time.Second
	WizardInterval  = 500 * time.Millisecond
)

// Poller reads one code's snapshot at a fixed interval and hands each result
// to the handler. Store errors and absent records are soft: the loop keeps
// its cadence, never backs off and never stops until cancelled. The handler
// gets ok=false for an absent record or a discriminator mismatch.
type Poller struct {
	store    Store
	code     string
	interval time.Duration
	handler  func(snap Snapshot, ok bool)

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPoller creates a poller; call Run to start it.
func NewPoller(store Store, code string, interval time.Duration, handler func(Snapshot, bool)) *Poller {
	return &Poller{
		store:    store,
		code:     code,
		interval: interval,
		handler:  handler,
		stop:     make(chan struct{}),
	}
}

// Run polls until the context is cancelled or Stop is called. It polls once
// immediately so a viewer does not wait a full interval for first paint.
func (p *Poller) Run(ctx context.Context) {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Stop ends the loop. Idempotent; safe alongside context cancellation.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Poller) poll(ctx context.Context) {
	snap, ok, err := p.store.Get(ctx, p.code)
	if err != nil {
		// Unreachable store is a soft failure: render last known good
		// state and try again next tick.
		log.Warnf("cast %s: poll: %v", p.code, err)
		return
	}
	if ok && !snap.ActiveCast() {
		// An unrelated or stale record under our code is not a session.
		ok = false
		snap = Snapshot{}
	}
	p.handler(snap, ok)
}

// Publisher is the writer side: it periodically upserts the snapshot
// produced by source under the given code. When the snapshot's phase reaches
// ClearPhase the record is cleared and the loop ends, so a late-joining
// viewer never renders a finished ride's telemetry.
type Publisher struct {
	Store      Store
	Code       string
	Interval   time.Duration
	Source     func() Snapshot
	ClearPhase string

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPublisher creates a publisher; call Run to start it.
func NewPublisher(store Store, code string, interval time.Duration, source func() Snapshot) *Publisher {
	return &Publisher{
		Store:    store,
		Code:     code,
		Interval: interval,
		Source:   source,
		stop:     make(chan struct{}),
	}
}

// Run publishes until the context is cancelled, Stop is called, or the clear
// phase is reached. On exit the record is cleared.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	defer func() {
		// Clearing uses a fresh context: the loop's may already be done.
		clearCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Store.Clear(clearCtx, p.Code); err != nil {
			log.Warnf("cast %s: clear: %v", p.Code, err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
		}

		snap := p.Source()
		snap.Mode = ModeCast

		if err := p.Store.Put(ctx, p.Code, snap); err != nil {
			log.Warnf("cast %s: publish: %v", p.Code, err)
			continue
		}

		if p.ClearPhase != "" && snap.Phase == p.ClearPhase {
			return
		}
	}
}

// Stop ends the loop. Idempotent.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}
