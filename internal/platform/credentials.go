package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/snfs/pkg/core"
)

const (
	credentialPerm = 0o600
	configDirPerm  = 0o700
)

// User identifies the account a credential file belongs to.
type User struct {
	SyncURL  string `yaml:"sync_url"`
	Username string `yaml:"username"`
}

// StoredKeys are the derived keys plus the session token.
type StoredKeys struct {
	core.Keys `yaml:",inline"`
	JWT       string `yaml:"jwt,omitempty"`
}

// Credentials is the on-disk login state. It never contains the password.
type Credentials struct {
	User User       `yaml:"user"`
	Keys StoredKeys `yaml:"keys"`
}

// Usable reports whether c holds enough to skip the password prompt for
// username at syncURL.
func (c *Credentials) Usable(syncURL, username string) bool {
	if c == nil {
		return false
	}
	if username != "" && c.User.Username != username {
		return false
	}
	if syncURL != "" && c.User.SyncURL != syncURL {
		return false
	}
	return c.User.Username != "" && c.Keys.MK != "" && c.Keys.AK != ""
}

// LoadCredentials reads the credential file at path. A missing file yields
// an error matching fs.ErrNotExist.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Credentials
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse credentials %s: %w", path, err)
	}
	return &c, nil
}

// SaveCredentials writes c to path, owner-readable only.
func SaveCredentials(path string, c *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirPerm); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	return writeFileAtomic(path, data, credentialPerm)
}

// DeleteCredentials removes the credential file. It reports whether a file
// was there to remove.
func DeleteCredentials(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
