// Package config provides the YAML configuration model with full
// load/save behavior, including first-run config creation and 0600
// permissions.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/taigrr/vaultcal/internal/types"
)

// CalendarConfig declares one calendar source. Kind selects which of the
// kind-specific fields apply.
type CalendarConfig struct {
	// ID is the stable identifier other tools refer to this calendar by.
	ID string `yaml:"id" json:"id"`

	// Kind is one of: local-frontmatter, daily-note, shelve, remote-ics,
	// remote-google.
	Kind string `yaml:"kind" json:"kind"`

	// Name is a human-friendly label. Defaults to ID.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Color is a display hint carried through unmodified.
	Color string `yaml:"color,omitempty" json:"color,omitempty"`

	// Dir is the vault directory for local-frontmatter calendars.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	// Folder is the vault directory for daily-note calendars.
	Folder string `yaml:"folder,omitempty" json:"folder,omitempty"`

	// Property and Value define shelve membership:
	// frontmatter[Property] == Value.
	Property string `yaml:"property,omitempty" json:"property,omitempty"`
	Value    string `yaml:"value,omitempty" json:"value,omitempty"`

	// URL is the subscription endpoint for remote-ics calendars.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Credentials and Token are file paths for remote-google calendars.
	Credentials string `yaml:"credentials,omitempty" json:"credentials,omitempty"`
	Token       string `yaml:"token,omitempty" json:"token,omitempty"`

	// CalendarID selects the Google calendar ("primary" by default).
	CalendarID string `yaml:"calendar_id,omitempty" json:"calendar_id,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Vault is the path to the Obsidian vault root. May also be supplied
	// as a CLI argument, which takes precedence.
	Vault string `yaml:"vault,omitempty" json:"vault,omitempty"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for periodic remote feed refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LookBehindDays and LookAheadDays bound the window requested from
	// remote APIs that require one.
	LookBehindDays int `yaml:"look_behind_days" json:"look_behind_days"`
	LookAheadDays  int `yaml:"look_ahead_days" json:"look_ahead_days"`

	// Calendars is the list of calendar sources, in display order.
	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		RefreshCron:    "*/15 * * * *",
		LookBehindDays: 30,
		LookAheadDays:  365,
		Calendars: []CalendarConfig{
			{ID: "events", Kind: string(types.KindFullNote), Dir: "events"},
			{ID: "daily", Kind: string(types.KindDailyNote), Folder: "daily"},
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.LookBehindDays <= 0 {
		c.LookBehindDays = 30
	}
	if c.LookAheadDays <= 0 {
		c.LookAheadDays = 365
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	for i := range c.Calendars {
		if c.Calendars[i].Name == "" {
			c.Calendars[i].Name = c.Calendars[i].ID
		}
	}
}

// Validate checks that every calendar declaration is complete enough to
// construct.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Calendars))
	for _, cal := range c.Calendars {
		if cal.ID == "" {
			return fmt.Errorf("%w: calendar with empty id", types.ErrValidation)
		}
		if seen[cal.ID] {
			return fmt.Errorf("%w: duplicate calendar id %q", types.ErrValidation, cal.ID)
		}
		seen[cal.ID] = true

		switch types.CalendarKind(cal.Kind) {
		case types.KindFullNote:
			if cal.Dir == "" {
				return fmt.Errorf("%w: calendar %q needs a dir", types.ErrValidation, cal.ID)
			}
		case types.KindDailyNote:
			if cal.Folder == "" {
				return fmt.Errorf("%w: calendar %q needs a folder", types.ErrValidation, cal.ID)
			}
		case types.KindShelve:
			if cal.Property == "" || cal.Value == "" {
				return fmt.Errorf("%w: calendar %q needs property and value", types.ErrValidation, cal.ID)
			}
		case types.KindRemoteICS:
			if cal.URL == "" {
				return fmt.Errorf("%w: calendar %q needs a url", types.ErrValidation, cal.ID)
			}
		case types.KindRemoteGoogle:
			if cal.Credentials == "" || cal.Token == "" {
				return fmt.Errorf("%w: calendar %q needs credentials and token paths", types.ErrValidation, cal.ID)
			}
		default:
			return fmt.Errorf("%w: calendar %q has unknown kind %q", types.ErrValidation, cal.ID, cal.Kind)
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (parent
// directory created if needed, 0600 perms) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically,
// via a temp file and rename, with final 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".vaultcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
