// Package config loads codegraph settings from a TOML file, a .env file and
// CODEGRAPH_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// FileName is looked up in the repository root when no path is given.
const FileName = ".codegraph.toml"

const (
	DefaultTreeCacheSize = 2048
	DefaultCachePath     = ".codegraph/cache.db"
	DefaultWatchDebounce = 300 * time.Millisecond
	DefaultMaxTokens     = 4000
	DefaultDepth         = 2
)

type Config struct {
	Root          string        `toml:"root"`
	Workers       int           `toml:"workers"`
	TreeCacheSize int           `toml:"tree_cache_size"`
	CachePath     string        `toml:"cache_path"`
	Watch         bool          `toml:"watch"`
	WatchDebounce time.Duration `toml:"watch_debounce"`
	LogLevel      string        `toml:"log_level"`

	Scan      ScanConfig      `toml:"scan"`
	Skeleton  SkeletonConfig  `toml:"skeleton"`
	Traversal TraversalConfig `toml:"traversal"`
}

type ScanConfig struct {
	Include          []string `toml:"include"`
	Exclude          []string `toml:"exclude"`
	IgnoreRules      []string `toml:"ignore"`
	RespectGitignore bool     `toml:"respect_gitignore"`
}

type SkeletonConfig struct {
	DefaultMaxTokens int `toml:"default_max_tokens"`
}

type TraversalConfig struct {
	DefaultDepth int `toml:"default_depth"`
}

func Default() *Config {
	return &Config{
		Root:          ".",
		Workers:       runtime.GOMAXPROCS(0),
		TreeCacheSize: DefaultTreeCacheSize,
		CachePath:     DefaultCachePath,
		WatchDebounce: DefaultWatchDebounce,
		LogLevel:      "info",
		Scan:          ScanConfig{RespectGitignore: true},
		Skeleton:      SkeletonConfig{DefaultMaxTokens: DefaultMaxTokens},
		Traversal:     TraversalConfig{DefaultDepth: DefaultDepth},
	}
}

// Load reads path over the defaults, then applies .env and environment
// overrides. An empty path looks for FileName under root; a missing file
// there is not an error, but an explicitly named file must exist.
func Load(path, root string) (*Config, error) {
	cfg := Default()
	if root != "" {
		cfg.Root = root
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.Root, FileName)
	}
	if err := LoadTOML(cfg, path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if root != "" {
		cfg.Root = root
	}

	if err := LoadDotEnv(cfg.Root); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes path into cfg, keeping the values of keys it omits.
func LoadTOML(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("decode %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads dir/.env into the process environment without
// overriding variables that are already set.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides applies CODEGRAPH_* variables. Unparseable values are
// ignored.
func (c *Config) ApplyEnvOverrides() {
	if root := os.Getenv("CODEGRAPH_ROOT"); root != "" {
		c.Root = root
	}
	if cache, ok := os.LookupEnv("CODEGRAPH_CACHE"); ok {
		c.CachePath = strings.TrimSpace(cache)
	}
	if level := os.Getenv("CODEGRAPH_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if workers := os.Getenv("CODEGRAPH_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			c.Workers = n
		}
	}
	if watch := os.Getenv("CODEGRAPH_WATCH"); watch != "" {
		if enabled, err := strconv.ParseBool(watch); err == nil {
			c.Watch = enabled
		}
	}
	if debounce := os.Getenv("CODEGRAPH_WATCH_DEBOUNCE"); debounce != "" {
		if d, err := time.ParseDuration(debounce); err == nil {
			c.WatchDebounce = d
		}
	}
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Root == "" {
		c.Root = "."
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.TreeCacheSize <= 0 {
		c.TreeCacheSize = DefaultTreeCacheSize
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = DefaultWatchDebounce
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Skeleton.DefaultMaxTokens == 0 {
		c.Skeleton.DefaultMaxTokens = DefaultMaxTokens
	}
	if c.Traversal.DefaultDepth == 0 {
		c.Traversal.DefaultDepth = DefaultDepth
	}
}

// ValidationError reports one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid setting.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (c *Config) Validate() error {
	var errs ValidateErrors
	if _, ok := parseLevel(c.LogLevel); !ok {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("invalid level %q, must be one of: debug, info, warn, error", c.LogLevel),
		})
	}
	if c.Skeleton.DefaultMaxTokens < 1 {
		errs = append(errs, ValidationError{
			Field:   "skeleton.default_max_tokens",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Skeleton.DefaultMaxTokens),
		})
	}
	if c.Traversal.DefaultDepth < 1 || c.Traversal.DefaultDepth > 5 {
		errs = append(errs, ValidationError{
			Field:   "traversal.default_depth",
			Message: fmt.Sprintf("must be between 1 and 5, got %d", c.Traversal.DefaultDepth),
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ResolvedCachePath returns the cache location, relative paths being
// anchored at root. It is empty when caching is disabled.
func (c *Config) ResolvedCachePath(root string) string {
	if c.CachePath == "" || filepath.IsAbs(c.CachePath) {
		return c.CachePath
	}
	return filepath.Join(root, c.CachePath)
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
