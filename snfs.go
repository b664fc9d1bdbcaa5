package snfs

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/snfs/internal/platform"
	"github.com/aretw0/snfs/pkg/api"
	"github.com/aretw0/snfs/pkg/core"
)

// DefaultURL is the public sync server.
const DefaultURL = api.DefaultURL

// --- Types ---

// Session is a public alias for a mounted or mountable account.
type Session = platform.Session

// Credentials is a public alias for the persisted login state.
type Credentials = platform.Credentials

// LoginRequest is a public alias for a sign-in attempt.
type LoginRequest = platform.LoginRequest

// Prompter is a public alias for the secret prompt used during login.
type Prompter = platform.Prompter

// --- Configuration ---

// Option defines a functional option for configuring a session.
type Option = platform.Option

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithExtension sets the file extension appended to note titles.
func WithExtension(ext string) Option {
	return platform.WithExtension(ext)
}

// WithRejectPatterns replaces the glob patterns of names that cannot be created.
func WithRejectPatterns(patterns ...string) Option {
	return platform.WithRejectPatterns(patterns...)
}

// WithSyncInterval sets the automatic sync period.
func WithSyncInterval(d time.Duration) Option {
	return platform.WithSyncInterval(d)
}

// WithSettleDelay sets the pause between a sync trigger and the round.
func WithSettleDelay(d time.Duration) Option {
	return platform.WithSettleDelay(d)
}

// WithCryptoWorkers bounds parallel encryption during a sync round.
func WithCryptoWorkers(n int) Option {
	return platform.WithCryptoWorkers(n)
}

// WithMountTimeout sets how long the kernel caches names and attributes.
func WithMountTimeout(d time.Duration) Option {
	return platform.WithMountTimeout(d)
}

// WithAllowOther lets other users access the mount.
func WithAllowOther(allow bool) Option {
	return platform.WithAllowOther(allow)
}

// WithFuseDebug logs every kernel request.
func WithFuseDebug(debug bool) Option {
	return platform.WithFuseDebug(debug)
}

// WithOwner sets the uid and gid reported for every file.
func WithOwner(uid, gid uint32) Option {
	return platform.WithOwner(uid, gid)
}

// --- Factory ---

// New creates a session syncing through transport with keys.
func New(transport core.Transport, keys core.Keys, opts ...Option) (*Session, error) {
	return platform.New(transport, keys, opts...)
}

// NewClient creates a sync server client for baseURL.
func NewClient(baseURL string, logger *slog.Logger) *api.Client {
	return api.NewClient(baseURL, logger)
}

// Login authenticates client, reusing stored credentials when possible.
func Login(ctx context.Context, client *api.Client, req LoginRequest, prompt Prompter) (*Credentials, error) {
	return platform.Login(ctx, client, req, prompt)
}
