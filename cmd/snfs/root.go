package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/snfs"
	"github.com/aretw0/snfs/internal/platform"
	"github.com/aretw0/snfs/pkg/api"
	"github.com/aretw0/snfs/pkg/core"
)

// closeTimeout bounds the final sync after unmount.
const closeTimeout = 30 * time.Second

var (
	verbosity int
	password  string
	fuseDebug bool

	v         = platform.NewViper()
	settings  platform.Settings
	logCloser io.Closer
)

// rootCmd mounts the account when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "snfs <mountpoint>",
	Short: "Mount Standard Notes as a filesystem",
	Long: `snfs decrypts a Standard Notes account into memory and serves it as a
directory of plain text files. Edits are encrypted and synced back.

Configuration is read from flags, SNFS_* environment variables, and an
optional settings.yaml in the config directory (SN_FS_CONFIG_PATH or the
user config dir).`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, err := platform.ConfigDir()
		if err != nil {
			return err
		}
		if err := platform.ReadSettingsFile(v, dir); err != nil {
			return err
		}
		settings, err = platform.LoadSettings(v, dir)
		if err != nil {
			return err
		}

		var logger *slog.Logger
		logger, logCloser = newLogger(verbosity, settings.LogFile)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return mount(cmd.Context(), args[0])
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fatal("snfs", err)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	pf.String(platform.KeyLogFile, "", "Write logs to a rotated file instead of stderr")
	pf.String(platform.KeyCreds, "", "Credential file (default <config dir>/credentials.yaml)")

	f := rootCmd.Flags()
	f.String(platform.KeyUsername, "", "Account email")
	f.StringVar(&password, "password", "", "Account password (prompted when omitted)")
	f.String(platform.KeySyncURL, snfs.DefaultURL, "Sync server URL")
	f.Int(platform.KeySyncSec, platform.DefaultSyncSec, "Seconds between automatic syncs")
	f.String(platform.KeyExt, ".txt", "Extension appended to note titles (may be empty)")
	f.Bool(platform.KeyNoCreds, false, "Neither read nor store credentials")
	f.Bool(platform.KeyAllowOther, false, "Allow other users to access the mount")
	f.Duration(platform.KeyTimeout, time.Second, "Kernel attribute cache timeout")
	f.BoolVar(&fuseDebug, "fuse-debug", false, "Log every kernel request")

	if err := v.BindPFlags(pf); err != nil {
		panic(err)
	}
	if err := v.BindPFlags(f); err != nil {
		panic(err)
	}
}

// login signs in with stored credentials when possible and persists the
// result unless credential storage is disabled.
func login(ctx context.Context, logger *slog.Logger) (*api.Client, *snfs.Credentials, error) {
	client := snfs.NewClient(settings.SyncURL, logger.With("component", "api"))

	var stored *snfs.Credentials
	if !settings.NoCreds {
		c, err := platform.LoadCredentials(settings.CredsPath)
		switch {
		case err == nil:
			stored = c
		case errors.Is(err, fs.ErrNotExist):
		default:
			logger.Warn("ignoring unreadable credentials", "path", settings.CredsPath, "error", err)
		}
	}

	prompt := newTermPrompter()
	username := settings.Username
	if username == "" && !stored.Usable(client.BaseURL, "") {
		u, err := prompt.Username(ctx)
		if err != nil {
			return nil, nil, err
		}
		username = u
	}

	creds, err := snfs.Login(ctx, client, snfs.LoginRequest{
		Username: username,
		Password: password,
		Stored:   stored,
		Logger:   logger,
	}, prompt)
	if err != nil {
		if stored != nil && !errors.Is(err, core.ErrOffline) {
			if _, derr := platform.DeleteCredentials(settings.CredsPath); derr != nil {
				logger.Warn("cannot clear credentials", "path", settings.CredsPath, "error", derr)
			}
		}
		return nil, nil, fmt.Errorf("login failed: %w", err)
	}

	if !settings.NoCreds {
		if err := platform.SaveCredentials(settings.CredsPath, creds); err != nil {
			logger.Warn("cannot store credentials", "path", settings.CredsPath, "error", err)
		}
	}
	return client, creds, nil
}

func mount(ctx context.Context, mountpoint string) error {
	logger := slog.Default()

	info, err := os.Stat(mountpoint)
	if err != nil {
		return fmt.Errorf("mountpoint: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mountpoint %s is not a directory", mountpoint)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, creds, err := login(ctx, logger)
	if err != nil {
		return err
	}

	sess, err := snfs.New(client, creds.Keys.Keys,
		snfs.WithLogger(logger),
		snfs.WithExtension(settings.Ext),
		snfs.WithSyncInterval(settings.SyncInterval),
		snfs.WithMountTimeout(settings.AttrTimeout),
		snfs.WithAllowOther(settings.AllowOther),
		snfs.WithFuseDebug(fuseDebug),
	)
	if err != nil {
		return err
	}
	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := sess.Close(closeCtx); err != nil {
			logger.Error("final sync failed", "error", err)
		}
	}()

	mountCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !settings.NoCreds {
		if err := platform.WatchCredentials(mountCtx, settings.CredsPath, logger, cancel); err != nil {
			logger.Warn("cannot watch credential file", "error", err)
		}
	}
	go dumpOnSignal(mountCtx, sess, os.Stderr)

	return sess.Mount(mountCtx, mountpoint)
}

// dumpOnSignal writes the component state as JSON on SIGUSR1.
func dumpOnSignal(ctx context.Context, sess *snfs.Session, w io.Writer) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(sess.Introspect()); err != nil {
				slog.Warn("state dump failed", "error", err)
			}
		}
	}
}
