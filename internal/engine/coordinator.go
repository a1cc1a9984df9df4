package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"notesync/internal/domain"
	"notesync/internal/remote"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Coordinator drives sync cycles for one account on this device. At most one
// cycle is in flight; requests made while a cycle runs collapse into a single
// follow-up cycle.
type Coordinator struct {
	engine *Engine
	remote remote.Service
	cfg    Config
	clock  clockwork.Clock
	logger *zap.Logger

	trigger   chan struct{}
	onlineCh  chan bool
	sessionCh chan domain.Session
	cancelCh  chan struct{}

	mu        sync.Mutex
	state     State
	observers map[int]func(State)
	nextObs   int
}

type cycleResult struct {
	err        error
	reasserted int
}

func newCoordinator(e *Engine, svc remote.Service, cfg Config) *Coordinator {
	def := DefaultConfig()
	if cfg.PushBatch <= 0 {
		cfg.PushBatch = def.PushBatch
	}
	if cfg.PullLimit <= 0 {
		cfg.PullLimit = def.PullLimit
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = def.BackoffMax
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}

	return &Coordinator{
		engine:    e,
		remote:    svc,
		cfg:       cfg,
		clock:     e.clock,
		logger:    e.logger.Named("sync"),
		trigger:   make(chan struct{}, 1),
		onlineCh:  make(chan bool, 8),
		sessionCh: make(chan domain.Session, 1),
		cancelCh:  make(chan struct{}, 1),
		state:     State{Kind: StateOffline},
		observers: make(map[int]func(State)),
	}
}

// RequestSync asks for a cycle. It never blocks.
func (c *Coordinator) RequestSync() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// SetOnline reports a connectivity change. Going offline cancels the cycle
// in flight immediately.
func (c *Coordinator) SetOnline(online bool) {
	c.onlineCh <- online
}

// SetSession installs the account the coordinator syncs for. It also clears
// an Unauthenticated or Forbidden halt.
func (c *Coordinator) SetSession(sess domain.Session) {
	for {
		select {
		case c.sessionCh <- sess:
			return
		default:
		}
		select {
		case <-c.sessionCh:
		default:
		}
	}
}

// Cancel abandons the cycle in flight. Unacknowledged mutations stay queued.
func (c *Coordinator) Cancel() {
	select {
	case c.cancelCh <- struct{}{}:
	default:
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Observe registers fn for state transitions. fn runs on the coordinator
// goroutine and must not block.
func (c *Coordinator) Observe(fn func(State)) (stop func()) {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	observers := make([]func(State), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	if prev == s {
		return
	}
	c.logger.Debug("sync state changed", zap.Stringer("from", prev), zap.Stringer("to", s))
	for _, fn := range observers {
		fn(s)
	}
}

// Run owns the state machine until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	var (
		sess        domain.Session
		online      bool
		pending     bool
		running     bool
		halted      bool
		retries     int
		lastSync    int64
		cycleCancel context.CancelFunc = func() {}
		hintCancel  context.CancelFunc = func() {}
		retryTimer  clockwork.Timer
		retryC      <-chan time.Time
		pollC       <-chan time.Time
	)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.BackoffBase
	bo.MaxInterval = c.cfg.BackoffMax
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2
	bo.MaxElapsedTime = 0
	bo.Clock = c.clock
	bo.Reset()

	if c.cfg.PollInterval > 0 {
		ticker := c.clock.NewTicker(c.cfg.PollInterval)
		defer ticker.Stop()
		pollC = ticker.Chan()
	}

	stopRetry := func() {
		if retryTimer != nil {
			retryTimer.Stop()
		}
		retryTimer, retryC = nil, nil
	}
	restartHints := func() {
		hintCancel()
		hintCancel = func() {}
		if online && sess.Valid() {
			var hctx context.Context
			hctx, hintCancel = context.WithCancel(ctx)
			go c.listenHints(hctx, sess)
		}
	}

	done := make(chan cycleResult, 1)
	defer func() {
		cycleCancel()
		hintCancel()
		stopRetry()
		if running {
			<-done
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case on := <-c.onlineCh:
			if on == online {
				break
			}
			online = on
			stopRetry()
			bo.Reset()
			retries = 0
			if online {
				pending = true
			} else {
				pending = false
				cycleCancel()
				c.setState(State{Kind: StateOffline, LastSync: lastSync})
			}
			restartHints()

		case sess = <-c.sessionCh:
			halted = false
			stopRetry()
			bo.Reset()
			retries = 0
			pending = true
			restartHints()

		case <-c.trigger:
			pending = true

		case <-pollC:
			pending = true

		case <-c.cancelCh:
			if running {
				cycleCancel()
			}

		case <-retryC:
			retryTimer, retryC = nil, nil
			pending = true

		case res := <-done:
			running = false
			cycleCancel()

			switch {
			case !online:
				// Cancelled by going offline; state already reflects it.
			case errors.Is(res.err, context.Canceled):
				c.setState(State{Kind: StateIdle, Retries: retries, LastSync: lastSync})
			case res.err != nil:
				kind := classify(res.err)
				if kind.halts() {
					halted = true
					pending = false
					c.logger.Warn("sync halted: session rejected", zap.Error(res.err), zap.String("kind", string(kind)))
					c.setState(State{Kind: StateError, Error: kind, Retries: retries, LastSync: lastSync})
					break
				}
				if !kind.retryable() {
					// Waiting will not change the answer; the next request tries again.
					pending = false
					c.logger.Warn("sync rejected by server", zap.Error(res.err))
					c.setState(State{Kind: StateError, Error: kind, Retries: retries, LastSync: lastSync})
					break
				}
				retries++
				wait := bo.NextBackOff()
				c.logger.Warn("sync cycle failed",
					zap.Error(res.err),
					zap.String("kind", string(kind)),
					zap.Int("retries", retries),
					zap.Duration("retry_in", wait),
				)
				stopRetry()
				retryTimer = c.clock.NewTimer(wait)
				retryC = retryTimer.Chan()
				c.setState(State{Kind: StateError, Error: kind, Retries: retries, LastSync: lastSync})
			default:
				bo.Reset()
				retries = 0
				lastSync = c.clock.Now().UnixMilli()
				if res.reasserted > 0 {
					pending = true
				}
				if !pending {
					c.setState(State{Kind: StateIdle, LastSync: lastSync})
				}
			}
		}

		if pending && online && sess.Valid() && !running && !halted && retryC == nil {
			pending = false
			running = true

			var cctx context.Context
			cctx, cycleCancel = context.WithCancel(ctx)
			c.setState(State{Kind: StateSyncing, Retries: retries, LastSync: lastSync})

			go func(s domain.Session) {
				res := c.cycle(cctx, s)
				if cctx.Err() != nil && res.err != nil {
					res.err = fmt.Errorf("%w: %v", context.Canceled, res.err)
				}
				done <- res
			}(sess)
		}
	}
}

func (c *Coordinator) listenHints(ctx context.Context, sess domain.Session) {
	hints, err := c.remote.Hints(ctx, sess)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Info("real-time hints unavailable", zap.Error(err))
		}
		return
	}
	for h := range hints {
		if h.DeviceID == sess.DeviceID {
			continue
		}
		c.logger.Debug("change hint received", zap.String("note_id", h.NoteID))
		c.RequestSync()
	}
}
