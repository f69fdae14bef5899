package sync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Engine supervises the push and pull loops. Start launches both as
// goroutines; Stop cancels them and joins before returning.
type Engine struct {
	pusher       *Pusher
	puller       *Puller
	pushInterval time.Duration
	pullInterval time.Duration
	// onRosterChange fires after any pull that touched the roster or
	// gallery; wired to the index rebuild. May be nil.
	onRosterChange func(ctx context.Context)
	log            zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine wires the sync supervisor.
func NewEngine(pusher *Pusher, puller *Puller, pushInterval, pullInterval time.Duration,
	onRosterChange func(ctx context.Context), log zerolog.Logger) *Engine {
	return &Engine{
		pusher:         pusher,
		puller:         puller,
		pushInterval:   pushInterval,
		pullInterval:   pullInterval,
		onRosterChange: onRosterChange,
		log:            log.With().Str("component", "sync").Logger(),
	}
}

// Start performs one initial pull so the kiosk has a roster before the
// first interval elapses, then launches both loops.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.pullOnce(ctx)

	e.wg.Add(2)
	go e.loop(ctx, e.pushInterval, func() { e.pusher.RunOnce(ctx) })
	go e.loop(ctx, e.pullInterval, func() { e.pullOnce(ctx) })
	e.log.Info().Dur("push_interval", e.pushInterval).Dur("pull_interval", e.pullInterval).
		Msg("sync loops started")
}

// Stop cancels both loops and waits for them to exit. In-flight cycles
// finish their current row first.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.log.Info().Msg("sync loops stopped")
}

func (e *Engine) loop(ctx context.Context, interval time.Duration, tick func()) {
	defer e.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tick()
		}
	}
}

func (e *Engine) pullOnce(ctx context.Context) {
	res := e.puller.RunOnce(ctx)
	if res.RosterChanged && e.onRosterChange != nil {
		e.onRosterChange(ctx)
	}
}
