package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ibeckermayer/xarchive/internal/browser"
	"github.com/ibeckermayer/xarchive/internal/scraper"
	"github.com/ibeckermayer/xarchive/internal/types"
)

const appName = "xarchive"

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Browser  BrowserConfig  `toml:"browser"`
	Scraping ScrapingConfig `toml:"scraping"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Viewer   ViewerConfig   `toml:"viewer"`
	Schedule ScheduleConfig `toml:"schedule"`
}

type BrowserConfig struct {
	// DebuggerURL of a Chrome started with --remote-debugging-port.
	// Empty launches a local browser instead.
	DebuggerURL string `toml:"debugger_url"`
	Headless    bool   `toml:"headless"`
	// UserDataDir keeps the launched browser's profile, and its login,
	// between runs.
	UserDataDir string `toml:"user_data_dir"`
	UserAgent   string `toml:"user_agent"`
}

type ScrapingConfig struct {
	ArchiveDir               string `toml:"archive_dir"`
	NavigationTimeoutSeconds int    `toml:"navigation_timeout_seconds"`
	StallTimeoutSeconds      int    `toml:"stall_timeout_seconds"`
	MinDelayMS               int    `toml:"min_delay_ms"`
	MaxDelayMS               int    `toml:"max_delay_ms"`
	IdleDelayMS              int    `toml:"idle_delay_ms"`
	ScrollStep               int    `toml:"scroll_step"`
	IdleScrollStep           int    `toml:"idle_scroll_step"`
	ProgressTarget           int    `toml:"progress_target"`
	OperationTimeoutSeconds  int    `toml:"operation_timeout_seconds"`
}

type CatalogConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // empty = catalog.db in the cache dir
}

type ViewerConfig struct {
	PerPage int `toml:"per_page"`
}

type ScheduleConfig struct {
	Timezone          string `toml:"timezone"`
	JobTimeoutMinutes int    `toml:"job_timeout_minutes"`
	Jobs              []Job  `toml:"jobs"`
}

// JobTimeout bounds one scheduled run.
func (s ScheduleConfig) JobTimeout() time.Duration {
	if s.JobTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(s.JobTimeoutMinutes) * time.Minute
}

// Job is one recurring run for the watch command.
type Job struct {
	Name     string `toml:"name"`
	Cron     string `toml:"cron"`
	Target   string `toml:"target"`
	Mode     string `toml:"mode"`
	Keyword  string `toml:"keyword"`
	MaxCount int    `toml:"max_count"`
	Cutoff   string `toml:"cutoff"` // YYYY-MM-DD
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Browser: BrowserConfig{
			DebuggerURL: "http://127.0.0.1:9222",
			Headless:    true,
		},
		Scraping: ScrapingConfig{
			ArchiveDir:               ".",
			NavigationTimeoutSeconds: 10,
			StallTimeoutSeconds:      45,
			MinDelayMS:               2000,
			MaxDelayMS:               4000,
			IdleDelayMS:              2000,
			ScrollStep:               1000,
			IdleScrollStep:           500,
			ProgressTarget:           50,
			OperationTimeoutSeconds:  5,
		},
		Catalog: CatalogConfig{
			Enabled: true,
		},
		Viewer: ViewerConfig{
			PerPage: 10,
		},
		Schedule: ScheduleConfig{
			Timezone:          "Local",
			JobTimeoutMinutes: 30,
			Jobs:              []Job{},
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// Load reads config from the default path. A missing file yields Default().
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads config from path on top of the defaults, so keys absent
// from the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// Timing converts the scraping section to collector timings. Non-positive
// values fall back to the defaults.
func (s ScrapingConfig) Timing() scraper.Timing {
	t := scraper.DefaultTiming()
	setDuration(&t.NavigationTimeout, s.NavigationTimeoutSeconds, time.Second)
	setDuration(&t.StallTimeout, s.StallTimeoutSeconds, time.Second)
	setDuration(&t.MinDelay, s.MinDelayMS, time.Millisecond)
	setDuration(&t.MaxDelay, s.MaxDelayMS, time.Millisecond)
	setDuration(&t.IdleDelay, s.IdleDelayMS, time.Millisecond)
	if s.ScrollStep > 0 {
		t.ScrollStep = s.ScrollStep
	}
	if s.IdleScrollStep > 0 {
		t.IdleScrollStep = s.IdleScrollStep
	}
	if s.ProgressTarget > 0 {
		t.ProgressTarget = s.ProgressTarget
	}
	return t
}

func setDuration(d *time.Duration, n int, unit time.Duration) {
	if n > 0 {
		*d = time.Duration(n) * unit
	}
}

// BrowserSession returns the settings for connecting a browser session.
func (c *Config) BrowserSession() browser.Config {
	return browser.Config{
		DebuggerURL:      c.Browser.DebuggerURL,
		Launch:           c.Launch(c.Browser.Headless),
		OperationTimeout: time.Duration(c.Scraping.OperationTimeoutSeconds) * time.Second,
	}
}

// Launch returns the settings for a locally started browser.
func (c *Config) Launch(headless bool) browser.Launch {
	return browser.Launch{
		Headless:    headless,
		UserDataDir: c.Browser.UserDataDir,
		UserAgent:   c.Browser.UserAgent,
	}
}

// CatalogPath returns the sqlite catalog location.
func (c *Config) CatalogPath() (string, error) {
	if c.Catalog.Path != "" {
		return c.Catalog.Path, nil
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// RunConfig converts a scheduled job into a run configuration. A cutoff
// selects the date stop condition, otherwise max_count applies.
func (j Job) RunConfig() (types.RunConfig, error) {
	run := types.RunConfig{
		Target:  j.Target,
		Mode:    types.Mode(j.Mode),
		Keyword: j.Keyword,
		Stop:    types.MaxCount(j.MaxCount),
	}
	if run.Mode == "" {
		run.Mode = types.ModeProfile
	}
	if j.Cutoff != "" {
		d, err := time.Parse(types.DateLayout, j.Cutoff)
		if err != nil {
			return types.RunConfig{}, fmt.Errorf("job %s: invalid cutoff %q: %w", j.Name, j.Cutoff, err)
		}
		run.Stop = types.DateCutoff(d)
	}
	if err := run.Validate(); err != nil {
		return types.RunConfig{}, fmt.Errorf("job %s: %w", j.Name, err)
	}
	return run, nil
}
