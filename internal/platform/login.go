package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/snfs/pkg/api"
	"github.com/aretw0/snfs/pkg/core"
	"github.com/aretw0/snfs/pkg/crypt"
)

// maxMFAAttempts bounds how often a wrong second factor is re-prompted.
const maxMFAAttempts = 3

// Prompter asks the user for secrets. Implementations read from a terminal.
type Prompter interface {
	Password(ctx context.Context, username string) (string, error)
	MFACode(ctx context.Context, message string) (string, error)
}

// LoginRequest describes one sign-in attempt.
type LoginRequest struct {
	Username string
	// Password may be empty; Prompter is asked when it is needed.
	Password string
	// Stored credentials are reused when they match Username and the
	// client's server.
	Stored *Credentials
	Logger *slog.Logger
}

// Login authenticates client and returns the credentials to persist.
// Stored keys and token are reused when the server still accepts the token.
// Otherwise keys are derived from the password and a fresh token obtained.
func Login(ctx context.Context, client *api.Client, req LoginRequest, prompt Prompter) (*Credentials, error) {
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if req.Stored.Usable(client.BaseURL, req.Username) && req.Password == "" {
		creds := *req.Stored
		if creds.Keys.JWT != "" {
			client.SetToken(creds.Keys.JWT)
			err := client.VerifyToken(ctx)
			if err == nil {
				logger.Debug("reusing stored session", "username", creds.User.Username)
				return &creds, nil
			}
			if errors.Is(err, core.ErrOffline) {
				// Keys are still valid offline; the token is retried on sync.
				logger.Warn("cannot verify stored session, continuing offline", "error", err)
				return &creds, nil
			}
			logger.Info("stored session rejected, signing in again", "error", err)
		}
		if req.Username == "" {
			req.Username = creds.User.Username
		}
	}

	if req.Username == "" {
		return nil, errors.New("username required")
	}
	password := req.Password
	if password == "" {
		p, err := prompt.Password(ctx, req.Username)
		if err != nil {
			return nil, err
		}
		password = p
	}

	mfa := map[string]string{}
	var params *api.AuthParams
	err := withMFA(ctx, prompt, mfa, func() error {
		var err error
		params, err = client.AuthParams(ctx, req.Username, mfa)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch auth params: %w", err)
	}

	keys, err := KeysFromParams(params, password)
	if err != nil {
		return nil, err
	}

	var token string
	err = withMFA(ctx, prompt, mfa, func() error {
		var err error
		token, err = client.SignIn(ctx, req.Username, keys.PW, mfa)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sign in failed: %w", err)
	}
	logger.Info("signed in", "username", req.Username, "version", params.Version)

	return &Credentials{
		User: User{SyncURL: client.BaseURL, Username: req.Username},
		Keys: StoredKeys{Keys: keys, JWT: token},
	}, nil
}

// withMFA runs call, prompting for a second factor whenever the server asks
// for one. Codes accumulate in mfa so later calls carry them too.
func withMFA(ctx context.Context, prompt Prompter, mfa map[string]string, call func() error) error {
	err := call()
	for attempt := 0; attempt < maxMFAAttempts; attempt++ {
		challenge, ok := api.IsMFA(err)
		if !ok {
			return err
		}
		code, perr := prompt.MFACode(ctx, challenge.Message)
		if perr != nil {
			return perr
		}
		mfa[challenge.Key] = code
		err = call()
	}
	return err
}

// KeysFromParams derives the account keys for the protocol version the
// server reports.
func KeysFromParams(p *api.AuthParams, password string) (core.Keys, error) {
	var salt string
	switch p.Version {
	case "001":
		return core.Keys{}, fmt.Errorf("%w: account uses protocol %s", core.ErrUnsupportedProtocolVersion, p.Version)
	case "002":
		if p.Salt == "" {
			return core.Keys{}, fmt.Errorf("%w: missing pw_salt", core.ErrTransport)
		}
		salt = p.Salt
	case crypt.Version:
		if p.Nonce == "" {
			return core.Keys{}, fmt.Errorf("%w: missing pw_nonce", core.ErrTransport)
		}
		salt = crypt.SaltFromNonce(p.Identifier, p.Version, p.Cost, p.Nonce)
	default:
		return core.Keys{}, fmt.Errorf("%w: %q", core.ErrInvalidProtocolVersion, p.Version)
	}
	return crypt.DeriveKeys(password, salt, p.Cost), nil
}
