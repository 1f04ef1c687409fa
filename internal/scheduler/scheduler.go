package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/domain"
)

var ErrClosed = errors.New("scheduler closed")

// Runner executes one reconciliation cycle.
type Runner interface {
	RunCycle(ctx context.Context) error
}

// Scheduler drives the runner from a debounced trigger, a periodic ticker
// and on-demand requests. Cycles never overlap. Stop cancels the timers
// and the context of any cycle in flight, so late results are discarded.
type Scheduler struct {
	log      zerolog.Logger
	runner   Runner
	debounce time.Duration
	interval time.Duration

	mu        sync.Mutex
	base      context.Context
	cancelAll context.CancelFunc
	gen       context.Context
	cancelGen context.CancelFunc
	timer     *time.Timer
	stopTick  chan struct{}
	closed    bool

	cycleMu sync.Mutex
	wg      sync.WaitGroup
}

func New(log zerolog.Logger, runner Runner, debounce, interval time.Duration) *Scheduler {
	base, cancelAll := context.WithCancel(context.Background())
	gen, cancelGen := context.WithCancel(base)

	return &Scheduler{
		log:       log.With().Str("module", "scheduler").Logger(),
		runner:    runner,
		debounce:  debounce,
		interval:  interval,
		base:      base,
		cancelAll: cancelAll,
		gen:       gen,
		cancelGen: cancelGen,
	}
}

// Trigger (re)arms the debounce timer; only the last call inside the window
// runs a cycle.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.timer != nil && s.timer.Stop() {
		s.wg.Done()
	}

	gen := s.gen
	s.wg.Add(1)
	s.timer = time.AfterFunc(s.debounce, func() {
		defer s.wg.Done()
		s.run(gen, "debounce", true)
	})
}

// Start (re)starts the periodic ticker and fires the debounced trigger once.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.stopTick != nil {
		close(s.stopTick)
	}
	stop := make(chan struct{})
	s.stopTick = stop
	gen := s.gen
	s.wg.Add(1)
	go s.loop(gen, stop)
	s.mu.Unlock()

	s.log.Info().Dur("interval", s.interval).Msg("periodic sync started")
	s.Trigger()
}

// Stop cancels the ticker and any pending debounce. It never touches the
// outbox or the cache. Calling it repeatedly is safe.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		if s.timer.Stop() {
			s.wg.Done()
		}
		s.timer = nil
	}

	wasRunning := s.stopTick != nil
	if wasRunning {
		close(s.stopTick)
		s.stopTick = nil
	}

	s.cancelGen()
	s.gen, s.cancelGen = context.WithCancel(s.base)

	if wasRunning {
		s.log.Info().Msg("periodic sync stopped")
	}
}

// Running reports whether the periodic ticker is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopTick != nil
}

// ForceSync runs a cycle right away, after any cycle already in flight.
// The cycle is canceled by ctx or by Stop.
func (s *Scheduler) ForceSync(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	gen := s.gen
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(gen, cancel)
	defer stop()

	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Debug().Str("trigger", "force").Msg("running sync cycle")
	return s.runner.RunCycle(ctx)
}

// Dispatch handles an inbound control message
func (s *Scheduler) Dispatch(ctx context.Context, msg domain.ControlMessage) error {
	switch msg {
	case domain.MsgSyncQueue:
		s.Trigger()
	case domain.MsgForceSync:
		return s.ForceSync(ctx)
	case domain.MsgStartSync:
		s.Start()
	case domain.MsgStopSync:
		s.Stop()
	default:
		return errors.Wrapf(domain.ErrUnknownMessage, "%q", msg)
	}
	return nil
}

// Close stops everything and waits for timers and cycles to finish
func (s *Scheduler) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.stopLocked()
		s.cancelAll()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) loop(gen context.Context, stop chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-gen.Done():
			return
		case <-ticker.C:
			s.run(gen, "periodic", false)
		}
	}
}

// run executes a cycle under the cycle guard. Periodic ticks that find a
// cycle in flight are dropped; the debounce waits its turn.
func (s *Scheduler) run(gen context.Context, trigger string, wait bool) {
	if gen.Err() != nil {
		return
	}

	if wait {
		s.cycleMu.Lock()
	} else if !s.cycleMu.TryLock() {
		s.log.Debug().Str("trigger", trigger).Msg("cycle in flight, skipping tick")
		return
	}
	defer s.cycleMu.Unlock()

	if gen.Err() != nil {
		return
	}

	s.log.Debug().Str("trigger", trigger).Msg("running sync cycle")
	if err := s.runner.RunCycle(gen); err != nil {
		s.log.Error().Err(err).Str("trigger", trigger).Msg("sync cycle failed")
	}
}
