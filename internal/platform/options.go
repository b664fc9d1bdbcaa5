package platform

import (
	"log/slog"
	"time"
)

// options holds the internal configuration for a session.
type options struct {
	logger       *slog.Logger
	ext          string
	reject       []string
	interval     time.Duration
	settle       time.Duration
	workers      int
	mountTimeout time.Duration
	allowOther   bool
	fuseDebug    bool
	uid, gid     uint32
	ownerSet     bool
}

// Option defines a functional option for configuring a session.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		ext: ".txt",
	}
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithExtension sets the file extension appended to note titles.
// An empty extension is allowed.
func WithExtension(ext string) Option {
	return func(o *options) {
		o.ext = ext
	}
}

// WithRejectPatterns replaces the glob patterns of names that cannot be
// created (editor swap files, hidden files).
func WithRejectPatterns(patterns ...string) Option {
	return func(o *options) {
		o.reject = patterns
	}
}

// WithSyncInterval sets the automatic sync period. Values below the
// minimum are raised to it.
func WithSyncInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// WithSettleDelay sets the pause between a sync trigger and the round.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) {
		o.settle = d
	}
}

// WithCryptoWorkers bounds parallel encryption during a sync round.
func WithCryptoWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMountTimeout sets how long the kernel caches names and attributes.
func WithMountTimeout(d time.Duration) Option {
	return func(o *options) {
		o.mountTimeout = d
	}
}

// WithAllowOther lets other users access the mount.
func WithAllowOther(allow bool) Option {
	return func(o *options) {
		o.allowOther = allow
	}
}

// WithFuseDebug logs every kernel request.
func WithFuseDebug(debug bool) Option {
	return func(o *options) {
		o.fuseDebug = debug
	}
}

// WithOwner sets the uid and gid reported for every file.
// Defaults to the current process.
func WithOwner(uid, gid uint32) Option {
	return func(o *options) {
		o.uid, o.gid = uid, gid
		o.ownerSet = true
	}
}
