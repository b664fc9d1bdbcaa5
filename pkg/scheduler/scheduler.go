// Package scheduler drives sync rounds: on a fixed interval, on demand after
// local writes, and once more on shutdown.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/aretw0/snfs/pkg/core"
)

const (
	// DefaultInterval is the automatic sync period.
	DefaultInterval = 30 * time.Second
	// MinInterval is the shortest accepted automatic sync period.
	MinInterval = 5 * time.Second
	// DefaultSettle is the delay between a wake-up and the round it starts,
	// letting bursts of writes land in one batch.
	DefaultSettle = 100 * time.Millisecond
)

// Syncer runs a sync round and reports note modification times afterwards.
type Syncer interface {
	Sync(ctx context.Context) error
	ModTimes() map[string]time.Time
}

// Observer receives note modification times after a successful round.
type Observer interface {
	Observe(times map[string]time.Time)
}

// Config holds scheduler settings.
type Config struct {
	Logger   *slog.Logger
	Interval time.Duration
	Settle   time.Duration
	// OnFatal is called once when a round fails with a non-connectivity
	// error. The loop stops afterwards.
	OnFatal func(error)
}

// Phase is the scheduler loop state.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseWaiting  Phase = "waiting"
	PhaseSyncing  Phase = "syncing"
	PhaseStopping Phase = "stopping"
	PhaseStopped  Phase = "stopped"
)

// Scheduler serializes sync rounds. At most one round runs at a time.
type Scheduler struct {
	*worker.BaseWorker
	syncer   Syncer
	observer Observer
	config   Config

	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	round   sync.Mutex

	mu       sync.Mutex
	phase    Phase
	lastSync *time.Time
	lastErr  error
	rounds   int
	offline  int
}

// New creates a scheduler. A nil observer is allowed.
func New(syncer Syncer, observer Observer, config Config) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Interval == 0 {
		config.Interval = DefaultInterval
	}
	if config.Interval < MinInterval {
		config.Logger.Warn("sync interval too short, using minimum",
			"requested", config.Interval, "minimum", MinInterval)
		config.Interval = MinInterval
	}
	if config.Settle <= 0 {
		config.Settle = DefaultSettle
	}
	return &Scheduler{
		BaseWorker: worker.NewBaseWorker("sync-scheduler"),
		syncer:     syncer,
		observer:   observer,
		config:     config,
		trigger:    make(chan struct{}, 1),
		phase:      PhaseIdle,
	}
}

// Interval returns the effective automatic sync period.
func (s *Scheduler) Interval() time.Duration { return s.config.Interval }

// Trigger requests a round soon. Requests made while a round is pending
// coalesce into one.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// SyncNow runs one round synchronously.
func (s *Scheduler) SyncNow(ctx context.Context) error {
	s.round.Lock()
	defer s.round.Unlock()

	s.setPhase(PhaseSyncing)
	err := s.syncer.Sync(ctx)

	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		now := time.Now()
		s.lastSync = &now
		s.rounds++
	} else if errors.Is(err, core.ErrOffline) {
		s.offline++
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if s.observer != nil {
		s.observer.Observe(s.syncer.ModTimes())
	}
	return nil
}

// Start launches the sync loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := s.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("scheduler already started (status: %s)", status)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.SetStatus(worker.StatusRunning)
	return s.StartFunc(runCtx, s.run)
}

// Stop ends the loop and waits for the final round to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.StopRequested = true
	s.cancel()

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.BaseWorker.Stop(ctx)
}

// State exports the worker state.
func (s *Scheduler) State() worker.State {
	return s.ExportState(func(st *worker.State) {
		st.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"phase":             string(s.Phase()),
		}
	})
}

// Phase returns the loop state.
func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Scheduler) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

func (s *Scheduler) run(ctx context.Context) (err error) {
	defer close(s.done)
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("scheduler panic: %v", recovered)
			if s.config.Logger.Enabled(ctx, slog.LevelDebug) {
				s.config.Logger.Error("scheduler panic", "error", err, "stack", string(debug.Stack()))
			} else {
				s.config.Logger.Error("scheduler panic", "error", err)
			}
		}
	}()

	err = s.loop(ctx)
	if err != nil {
		s.setPhase(PhaseStopped)
		return err
	}

	s.setPhase(PhaseStopping)
	s.config.Logger.Info("running final sync")
	// Rounds never inherit cancellation: a started round always completes.
	if ferr := s.SyncNow(context.WithoutCancel(ctx)); ferr != nil {
		s.config.Logger.Error("final sync failed", "error", ferr)
		if !errors.Is(ferr, core.ErrOffline) {
			err = ferr
		}
	}
	s.setPhase(PhaseStopped)
	return err
}

func (s *Scheduler) loop(ctx context.Context) error {
	timer := time.NewTimer(s.config.Interval)
	defer timer.Stop()

	for {
		s.setPhase(PhaseWaiting)
		select {
		case <-ctx.Done():
			return nil
		case <-s.trigger:
			s.config.Logger.Debug("sync triggered by local change")
		case <-timer.C:
			s.config.Logger.Debug("automatic sync")
		}

		select {
		case <-time.After(s.config.Settle):
		case <-ctx.Done():
			return nil
		}

		err := s.SyncNow(context.WithoutCancel(ctx))
		timer.Reset(s.config.Interval)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrOffline):
			s.config.Logger.Warn("sync server unreachable, will retry", "error", err)
		default:
			s.config.Logger.Error("sync failed", "error", err)
			if s.config.OnFatal != nil {
				s.config.OnFatal(err)
			}
			return err
		}
	}
}
