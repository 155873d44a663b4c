// Package config resolves gb's configuration from defaults, JSONC files,
// the environment and command-line overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/greenbox/pkg/ring"
	"github.com/calvinalkan/greenbox/pkg/shmregion"
)

// Errors returned by [Load].
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrDirEmpty           = errors.New("dir cannot be empty")
	ErrInvalidLayout      = errors.New("invalid block layout")
	ErrInvalidPoll        = errors.New("poll intervals must be > 0")
)

// FileName is the project config file looked up in the working directory.
const FileName = ".greenbox.json"

// EnvDir overrides the region directory from the environment.
const EnvDir = "GREENBOX_DIR"

// Duration is a [time.Duration] that reads and writes as a Go duration
// string ("5ms") in JSON.
type Duration time.Duration

// MarshalJSON implements [json.Marshaler].
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements [json.Unmarshaler].
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string

	err := json.Unmarshal(data, &s)
	if err != nil {
		return fmt.Errorf("duration must be a string like \"5ms\": %w", err)
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(v)

	return nil
}

// Config holds the resolved configuration.
type Config struct {
	Dir             string   `json:"dir"`
	BlockSize       int      `json:"block_size"`
	BlockCount      int      `json:"block_count"`
	PollInterval    Duration `json:"poll_interval"`
	MaxPollInterval Duration `json:"max_poll_interval"`

	// Archive is the SQLite database used by "gb record" and "gb history".
	// Empty means the commands require --db.
	Archive string `json:"archive,omitempty"`

	// Sources tracks where settings came from (for diagnostics).
	Sources Sources `json:"-"`
}

// Sources tracks which config files and overrides were applied.
type Sources struct {
	Global  string // global config path if loaded
	Project string // project or explicit config path if loaded
	Env     bool   // GREENBOX_DIR was set
}

// fileConfig mirrors Config with pointers so a file can set a field to its
// zero value and have that caught by validation.
type fileConfig struct {
	Dir             *string   `json:"dir"`
	BlockSize       *int      `json:"block_size"`
	BlockCount      *int      `json:"block_count"`
	PollInterval    *Duration `json:"poll_interval"`
	MaxPollInterval *Duration `json:"max_poll_interval"`
	Archive         *string   `json:"archive"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Dir:             shmregion.DefaultDir,
		BlockSize:       256,
		BlockCount:      1024,
		PollInterval:    Duration(time.Millisecond),
		MaxPollInterval: Duration(50 * time.Millisecond),
	}
}

// Overrides are command-line settings. Zero values mean "not set".
type Overrides struct {
	Dir        string
	BlockSize  int
	BlockCount int
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	WorkDir    string            // directory searched for FileName; empty means os.Getwd
	ConfigPath string            // --config value; must exist when set
	Env        map[string]string // environment variables
	Overrides  Overrides
}

// Load resolves configuration with this precedence (highest wins):
//  1. Defaults
//  2. Global config ($XDG_CONFIG_HOME/greenbox/config.json or
//     ~/.config/greenbox/config.json)
//  3. Project config (.greenbox.json in WorkDir), or the explicit
//     ConfigPath instead when set
//  4. GREENBOX_DIR
//  5. Overrides
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDir
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	if globalPath := globalConfigPath(input.Env); globalPath != "" {
		fc, loaded, err := loadFile(globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = merge(cfg, fc)
			cfg.Sources.Global = globalPath
		}
	}

	projectPath := filepath.Join(workDir, FileName)
	mustExist := false

	if input.ConfigPath != "" {
		projectPath = input.ConfigPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}

		mustExist = true
	}

	fc, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = merge(cfg, fc)
		cfg.Sources.Project = projectPath
	}

	if dir, ok := input.Env[EnvDir]; ok && dir != "" {
		cfg.Dir = dir
		cfg.Sources.Env = true
	}

	cfg = applyOverrides(cfg, input.Overrides)

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	if !filepath.IsAbs(cfg.Dir) {
		cfg.Dir = filepath.Join(workDir, cfg.Dir)
	}

	if cfg.Archive != "" && !filepath.IsAbs(cfg.Archive) {
		cfg.Archive = filepath.Join(workDir, cfg.Archive)
	}

	return cfg, nil
}

// Validate checks that cfg describes a usable box.
func (c Config) Validate() error {
	if c.Dir == "" {
		return ErrDirEmpty
	}

	_, err := ring.NewLayout(c.BlockSize, c.BlockCount)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}

	if c.PollInterval <= 0 || c.MaxPollInterval <= 0 {
		return ErrInvalidPoll
	}

	return nil
}

// globalConfigPath returns the global config path, or "" if neither
// XDG_CONFIG_HOME nor HOME is set.
func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "greenbox", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "greenbox", "config.json")
	}

	return ""
}

// loadFile reads and parses path. A missing optional file is not an error.
func loadFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !mustExist {
			if os.IsNotExist(err) {
				return fileConfig{}, false, nil
			}

			return fileConfig{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
		}

		if os.IsNotExist(err) {
			return fileConfig{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}

		return fileConfig{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	fc, err := parse(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return fc, true, nil
}

func parse(data []byte) (fileConfig, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var fc fileConfig

	err = json.Unmarshal(standardized, &fc)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return fc, nil
}

func merge(base Config, overlay fileConfig) Config {
	if overlay.Dir != nil {
		base.Dir = *overlay.Dir
	}

	if overlay.BlockSize != nil {
		base.BlockSize = *overlay.BlockSize
	}

	if overlay.BlockCount != nil {
		base.BlockCount = *overlay.BlockCount
	}

	if overlay.PollInterval != nil {
		base.PollInterval = *overlay.PollInterval
	}

	if overlay.MaxPollInterval != nil {
		base.MaxPollInterval = *overlay.MaxPollInterval
	}

	if overlay.Archive != nil {
		base.Archive = *overlay.Archive
	}

	return base
}

func applyOverrides(cfg Config, o Overrides) Config {
	if o.Dir != "" {
		cfg.Dir = o.Dir
	}

	if o.BlockSize != 0 {
		cfg.BlockSize = o.BlockSize
	}

	if o.BlockCount != 0 {
		cfg.BlockCount = o.BlockCount
	}

	return cfg
}
