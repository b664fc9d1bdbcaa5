package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/lifecycle"

	adapter "github.com/aretw0/snfs/pkg/adapters/fs"
	"github.com/aretw0/snfs/pkg/adapters/fuse"
	"github.com/aretw0/snfs/pkg/core"
	"github.com/aretw0/snfs/pkg/scheduler"
	"github.com/aretw0/snfs/pkg/store"
)

// Session is one logged-in account projected as a filesystem.
type Session struct {
	logger    *slog.Logger
	store     *store.Store
	adapter   *adapter.Adapter
	scheduler *scheduler.Scheduler

	mountTimeout time.Duration
	allowOther   bool
	fuseDebug    bool

	fatal   chan error
	started bool
}

// Store returns the item store.
func (s *Session) Store() *store.Store { return s.store }

// Adapter returns the filesystem adapter.
func (s *Session) Adapter() *adapter.Adapter { return s.adapter }

// Scheduler returns the sync scheduler.
func (s *Session) Scheduler() *scheduler.Scheduler { return s.scheduler }

func (s *Session) reportFatal(err error) {
	select {
	case s.fatal <- err:
	default:
	}
}

// Start runs the initial sync and starts the scheduler. An unreachable
// server is not an error: the view starts empty and fills in once the
// server answers.
func (s *Session) Start(ctx context.Context) error {
	if err := s.scheduler.SyncNow(ctx); err != nil {
		if !errors.Is(err, core.ErrOffline) {
			return fmt.Errorf("initial sync failed: %w", err)
		}
		s.logger.Warn("sync server unreachable, starting offline", "error", err)
	}
	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Mount serves the filesystem at mountpoint until it is unmounted, ctx is
// cancelled, or a sync round fails fatally.
func (s *Session) Mount(ctx context.Context, mountpoint string) error {
	server, err := fuse.Mount(mountpoint, s.adapter, fuse.Options{
		Logger:     s.logger.With("component", "fuse"),
		Timeout:    s.mountTimeout,
		AllowOther: s.allowOther,
		Debug:      s.fuseDebug,
	})
	if err != nil {
		return err
	}
	s.logger.Info("filesystem mounted", "mountpoint", mountpoint)

	served := make(chan struct{})
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(served)
		server.Wait()
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("fuse server panic", "error", err)
	}))

	var runErr error
	select {
	case <-served:
		s.logger.Info("filesystem unmounted externally", "mountpoint", mountpoint)
		return nil
	case <-ctx.Done():
	case runErr = <-s.fatal:
	}

	if err := server.Unmount(); err != nil {
		s.logger.Error("unmount failed", "mountpoint", mountpoint, "error", err)
		return errors.Join(runErr, err)
	}
	<-served
	s.logger.Info("filesystem unmounted", "mountpoint", mountpoint)
	return runErr
}

// Close stops the scheduler, which runs one final sync round first.
func (s *Session) Close(ctx context.Context) error {
	if !s.started {
		return nil
	}
	s.started = false
	return s.scheduler.Stop(ctx)
}

// Fatal delivers the error of a sync round that stopped the scheduler.
func (s *Session) Fatal() <-chan error { return s.fatal }

// Introspect returns the state of every component, keyed by component type.
func (s *Session) Introspect() map[string]any {
	return map[string]any{
		s.store.ComponentType():     s.store.State(),
		s.adapter.ComponentType():   s.adapter.State(),
		s.scheduler.ComponentType(): s.scheduler.Snapshot(),
	}
}
