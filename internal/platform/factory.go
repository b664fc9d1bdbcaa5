package platform

import (
	"log/slog"
	"os"

	adapter "github.com/aretw0/snfs/pkg/adapters/fs"
	"github.com/aretw0/snfs/pkg/core"
	"github.com/aretw0/snfs/pkg/namespace"
	"github.com/aretw0/snfs/pkg/scheduler"
	"github.com/aretw0/snfs/pkg/store"
)

// New wires a session: the item store over transport, the filesystem
// adapter over the store, and the scheduler that keeps them in sync.
//
//	sess, err := platform.New(client, keys, platform.WithSyncInterval(time.Minute))
func New(transport core.Transport, keys core.Keys, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if !o.ownerSet {
		o.uid, o.gid = uint32(os.Getuid()), uint32(os.Getgid())
	}

	s := &Session{
		logger:       o.logger,
		mountTimeout: o.mountTimeout,
		allowOther:   o.allowOther,
		fuseDebug:    o.fuseDebug,
		fatal:        make(chan error, 1),
	}

	s.store = store.New(transport, keys, store.Config{
		Logger:  o.logger.With("component", "store"),
		Workers: o.workers,
	})

	clock := namespace.NewClock()
	s.scheduler = scheduler.New(s.store, clock, scheduler.Config{
		Logger:   o.logger.With("component", "scheduler"),
		Interval: o.interval,
		Settle:   o.settle,
		OnFatal:  s.reportFatal,
	})

	a, err := adapter.New(s.store, clock, adapter.Config{
		Logger:   o.logger.With("component", "filesystem"),
		Ext:      o.ext,
		Reject:   o.reject,
		OnChange: s.scheduler.Trigger,
		UID:      o.uid,
		GID:      o.gid,
	})
	if err != nil {
		return nil, err
	}
	s.adapter = a

	return s, nil
}
