package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aretw0/snfs/pkg/api"
)

// Setting keys, shared by flags, environment (SNFS_ prefix) and the
// optional settings file.
const (
	KeySyncURL    = "sync-url"
	KeySyncSec    = "sync-sec"
	KeyExt        = "ext"
	KeyUsername   = "username"
	KeyCreds      = "creds"
	KeyNoCreds    = "no-creds"
	KeyLogFile    = "log-file"
	KeyAllowOther = "allow-other"
	KeyTimeout    = "attr-timeout"
)

const (
	// DefaultSyncSec is the automatic sync period in seconds.
	DefaultSyncSec = 30
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SNFS"
	// ConfigDirEnv overrides the directory holding settings and credentials.
	ConfigDirEnv = "SN_FS_CONFIG_PATH"

	appDir          = "standardnotes-fs"
	settingsName    = "settings"
	credentialsName = "credentials.yaml"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	SyncURL      string
	SyncInterval time.Duration
	Ext          string
	Username     string
	CredsPath    string
	NoCreds      bool
	LogFile      string
	AllowOther   bool
	AttrTimeout  time.Duration
}

// ConfigDir returns the directory holding settings and credentials.
func ConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(base, appDir), nil
}

// NewViper returns a viper instance with defaults and environment binding
// applied. Flags are bound by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeySyncURL, api.DefaultURL)
	v.SetDefault(KeySyncSec, DefaultSyncSec)
	v.SetDefault(KeyExt, ".txt")
	v.SetDefault(KeyAllowOther, false)
	v.SetDefault(KeyTimeout, time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadSettingsFile merges settings.{yaml,toml,json} from dir into v.
// A missing file is not an error.
func ReadSettingsFile(v *viper.Viper, dir string) error {
	v.SetConfigName(settingsName)
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read settings: %w", err)
	}
	return nil
}

// LoadSettings resolves v into Settings. configDir locates the credential
// file unless the creds key overrides it.
func LoadSettings(v *viper.Viper, configDir string) (Settings, error) {
	s := Settings{
		SyncURL:     strings.TrimRight(v.GetString(KeySyncURL), "/"),
		Ext:         v.GetString(KeyExt),
		Username:    v.GetString(KeyUsername),
		CredsPath:   v.GetString(KeyCreds),
		NoCreds:     v.GetBool(KeyNoCreds),
		LogFile:     v.GetString(KeyLogFile),
		AllowOther:  v.GetBool(KeyAllowOther),
		AttrTimeout: v.GetDuration(KeyTimeout),
	}

	sec := v.GetInt(KeySyncSec)
	if sec <= 0 {
		return s, fmt.Errorf("%s must be positive, got %d", KeySyncSec, sec)
	}
	s.SyncInterval = time.Duration(sec) * time.Second

	if s.SyncURL == "" {
		return s, fmt.Errorf("%s must not be empty", KeySyncURL)
	}
	if strings.Contains(s.Ext, "/") {
		return s, fmt.Errorf("%s must not contain a path separator", KeyExt)
	}
	if s.CredsPath == "" {
		s.CredsPath = filepath.Join(configDir, credentialsName)
	}
	return s, nil
}
