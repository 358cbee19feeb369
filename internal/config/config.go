// Package config loads the viewer's JSON configuration document.
//
// The document is a flat object of scalar values, created by copying
// config.example.json and editing it. It is read once at startup and never
// written back.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Load failure classes. Callers distinguish them with errors.Is.
var (
	// ErrNotFound means the path does not resolve to a readable file.
	ErrNotFound = errors.New("configuration file not found")
	// ErrMalformed means the content is not a usable flat JSON object.
	ErrMalformed = errors.New("configuration malformed")
	// ErrIncomplete means a required key is absent or empty.
	ErrIncomplete = errors.New("configuration incomplete")
)

// Config holds the viewer configuration.
type Config struct {
	TargetURL          string   // page the display mirrors (required)
	CacheDir           string   // snapshot cache root
	Port               int      // loopback HTTP port
	RefreshIntervalSec int      // seconds between snapshots, floored at 10
	PreloadPaths       []string // extra paths fetched relative to the target
	UserAgent          string   // User-Agent for snapshot fetches
	AuthToken          string   // optional bearer token for snapshot fetches
	DBPath             string   // snapshot run history database

	// Window settings
	Title      string
	Width      int
	Height     int
	Fullscreen bool

	// Extra holds keys the viewer does not interpret itself.
	Extra map[string]any

	// Path is where the document was loaded from.
	Path string
}

// DefaultConfig returns the configuration defaults. Only TargetURL has no
// default; it must come from the document.
func DefaultConfig() *Config {
	cacheDir := "beerview-cache"
	if base, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(base, "beerview")
	}
	return &Config{
		CacheDir:           cacheDir,
		Port:               8337,
		RefreshIntervalSec: 300,
		UserAgent:          "beerview/1.0",
		Title:              "Offline Mirror",
		Width:              800,
		Height:             600,
	}
}

// Load reads and validates the configuration document at path.
//
// The document must be a JSON object; known keys are type-checked, unknown
// keys are collected into Extra. Errors wrap ErrNotFound, ErrMalformed or
// ErrIncomplete.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if doc == nil {
		// "null" parses into a nil map without an error.
		return nil, fmt.Errorf("%w: %s: document is null, expected an object", ErrMalformed, path)
	}

	cfg := DefaultConfig()
	cfg.Path = path

	for key, raw := range doc {
		if err := cfg.setKey(key, raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Resolve derived values after all keys are applied.
	if abs, err := filepath.Abs(cfg.CacheDir); err == nil {
		cfg.CacheDir = abs
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.CacheDir, "beerview.db")
	}
	if cfg.RefreshIntervalSec < 10 {
		cfg.RefreshIntervalSec = 10
	}

	return cfg, nil
}

// setKey applies one document key to the matching field. Unknown keys are
// kept in Extra so operators can carry display-specific values alongside.
func (c *Config) setKey(key string, raw json.RawMessage) error {
	switch key {
	case "target-url":
		return decode(key, raw, &c.TargetURL)
	case "cache-dir":
		return decode(key, raw, &c.CacheDir)
	case "port":
		return decode(key, raw, &c.Port)
	case "refresh-interval-sec":
		return decode(key, raw, &c.RefreshIntervalSec)
	case "preload-paths":
		return decode(key, raw, &c.PreloadPaths)
	case "user-agent":
		return decode(key, raw, &c.UserAgent)
	case "auth-token":
		return decode(key, raw, &c.AuthToken)
	case "database":
		return decode(key, raw, &c.DBPath)
	case "title":
		return decode(key, raw, &c.Title)
	case "width":
		return decode(key, raw, &c.Width)
	case "height":
		return decode(key, raw, &c.Height)
	case "fullscreen":
		return decode(key, raw, &c.Fullscreen)
	default:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("key %q: %v", key, err)
		}
		if c.Extra == nil {
			c.Extra = make(map[string]any)
		}
		c.Extra[key] = v
		return nil
	}
}

func decode[T any](key string, raw json.RawMessage, dst *T) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("key %q: %v", key, err)
	}
	return nil
}

// validate checks required keys and value constraints. Absent required keys
// are ErrIncomplete; present but unusable values are ErrMalformed.
func (c *Config) validate() error {
	if c.TargetURL == "" {
		return fmt.Errorf("%w: %s: \"target-url\" is required", ErrIncomplete, c.Path)
	}
	u, err := url.Parse(c.TargetURL)
	if err != nil || u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%w: %s: \"target-url\" must be an absolute http(s) URL", ErrMalformed, c.Path)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %s: \"port\" must be in 1..65535", ErrMalformed, c.Path)
	}
	if c.Width < 1 || c.Height < 1 {
		return fmt.Errorf("%w: %s: \"width\" and \"height\" must be positive", ErrMalformed, c.Path)
	}
	return nil
}

// ListenAddr returns the loopback address the mirror server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.Port)
}

// RefreshInterval returns the snapshot interval as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSec) * time.Second
}
