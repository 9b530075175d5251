// Package config handles all server configuration.
// CLI flags take precedence; environment variables, then the optional rules
// file, are used as fallback before the built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Built-in defaults.
const (
	DefaultIP          = "0.0.0.0"
	DefaultPort        = 80
	DefaultWebroot     = "webroot"
	DefaultDocument    = "index.html"
	DefaultReadTimeout = 5 * time.Second
)

var (
	defaultForbidden       = []string{"secret.txt"}
	defaultRedirects       = map[string]string{"html1.page": "/html2.page"}
	defaultFailureTriggers = []string{"error500.page"}
)

// ErrTraversal is returned when a name resolves above the webroot.
var ErrTraversal = errors.New("path escapes webroot")

// Config holds the complete server configuration. It is built once at
// startup and never modified afterwards; the routing rules are only
// reachable through read-only accessors.
type Config struct {
	// IP is the address the HTTP server binds to.
	IP string
	// Port is the TCP port the HTTP server listens on.
	Port int
	// ReadTimeout bounds how long a client may take to send its request.
	ReadTimeout time.Duration
	// BandwidthLimit is the total server-wide response cap in bytes per
	// second. 0 means unlimited.
	BandwidthLimit float64
	// StatCache enables the fsnotify-invalidated stat cache.
	StatCache bool
	// StatsDir is where webgate-stats.json is kept. Empty disables
	// persistence; counters are still kept in memory.
	StatsDir string
	// CloseConnections disables HTTP keep-alives so every response ends
	// with Connection: close.
	CloseConnections bool

	webroot         string
	defaultDocument string
	forbidden       map[string]struct{}
	redirects       map[string]string
	triggers        map[string]struct{}
}

// Options is the raw input to New. Zero values fall back to the package
// defaults, except for the rule sets, which are taken literally.
type Options struct {
	IP               string
	Port             int
	Webroot          string
	DefaultDocument  string
	Forbidden        []string
	Redirects        map[string]string
	FailureTriggers  []string
	ReadTimeout      time.Duration
	BandwidthLimit   float64
	StatCache        bool
	StatsDir         string
	CloseConnections bool
}

// New validates opts and returns the immutable Config built from it.
func New(opts Options) (*Config, error) {
	cfg := &Config{
		IP:               opts.IP,
		Port:             opts.Port,
		ReadTimeout:      opts.ReadTimeout,
		BandwidthLimit:   opts.BandwidthLimit,
		StatCache:        opts.StatCache,
		StatsDir:         opts.StatsDir,
		CloseConnections: opts.CloseConnections,
	}
	if cfg.IP == "" {
		cfg.IP = DefaultIP
	}
	if net.ParseIP(cfg.IP) == nil {
		return nil, fmt.Errorf("invalid IP address %q", cfg.IP)
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.ReadTimeout < 0 {
		return nil, fmt.Errorf("invalid read timeout %s", cfg.ReadTimeout)
	}
	if cfg.BandwidthLimit < 0 {
		return nil, fmt.Errorf("invalid bandwidth limit %v", cfg.BandwidthLimit)
	}

	// --- webroot ---
	if opts.Webroot == "" {
		return nil, fmt.Errorf("webroot must not be empty")
	}
	root, err := filepath.Abs(opts.Webroot)
	if err != nil {
		return nil, fmt.Errorf("webroot %q: %w", opts.Webroot, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("webroot %q: %w", opts.Webroot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("webroot %q is not a directory", opts.Webroot)
	}
	cfg.webroot = filepath.Clean(root)

	// --- default document ---
	doc := opts.DefaultDocument
	if doc == "" {
		doc = DefaultDocument
	}
	if cfg.defaultDocument, err = ruleName(doc); err != nil {
		return nil, fmt.Errorf("default document: %w", err)
	}

	// --- rule sets ---
	if cfg.forbidden, err = nameSet(opts.Forbidden); err != nil {
		return nil, fmt.Errorf("forbidden files: %w", err)
	}
	if cfg.triggers, err = nameSet(opts.FailureTriggers); err != nil {
		return nil, fmt.Errorf("failure triggers: %w", err)
	}
	cfg.redirects = make(map[string]string, len(opts.Redirects))
	for from, to := range opts.Redirects {
		name, err := ruleName(from)
		if err != nil {
			return nil, fmt.Errorf("redirects: %w", err)
		}
		if strings.TrimSpace(to) == "" {
			return nil, fmt.Errorf("redirects: empty target for %q", from)
		}
		cfg.redirects[name] = to
	}

	return cfg, nil
}

// CleanName maps a request path or rule entry into the webroot-relative name
// space: leading slashes are dropped and the remainder is cleaned. Names that
// climb above the webroot yield ErrTraversal. The webroot itself is ".".
func CleanName(p string) (string, error) {
	name := path.Clean(strings.TrimLeft(p, "/"))
	if name == ".." || strings.HasPrefix(name, "../") {
		return "", ErrTraversal
	}
	return name, nil
}

// ruleName is CleanName for configured entries, which must name something
// below the webroot.
func ruleName(entry string) (string, error) {
	if strings.TrimSpace(entry) == "" {
		return "", fmt.Errorf("empty name")
	}
	name, err := CleanName(entry)
	if err != nil {
		return "", fmt.Errorf("%q: %w", entry, err)
	}
	if name == "." {
		return "", fmt.Errorf("%q names the webroot itself", entry)
	}
	return name, nil
}

func nameSet(entries []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		name, err := ruleName(e)
		if err != nil {
			return nil, err
		}
		set[name] = struct{}{}
	}
	return set, nil
}

// Webroot returns the absolute, cleaned webroot directory.
func (c *Config) Webroot() string { return c.webroot }

// DefaultDocument returns the name substituted for a request of "/".
func (c *Config) DefaultDocument() string { return c.defaultDocument }

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// IsForbidden reports whether name is in the forbidden set.
func (c *Config) IsForbidden(name string) bool {
	_, ok := c.forbidden[name]
	return ok
}

// RedirectTarget returns the configured Location for name, if any.
func (c *Config) RedirectTarget(name string) (string, bool) {
	to, ok := c.redirects[name]
	return to, ok
}

// IsFailureTrigger reports whether a request for name must fail with a 500.
func (c *Config) IsFailureTrigger(name string) bool {
	_, ok := c.triggers[name]
	return ok
}

// Forbidden returns the forbidden names, sorted.
func (c *Config) Forbidden() []string { return sortedKeys(c.forbidden) }

// FailureTriggers returns the failure-trigger names, sorted.
func (c *Config) FailureTriggers() []string { return sortedKeys(c.triggers) }

// Redirects returns a copy of the redirect table.
func (c *Config) Redirects() map[string]string {
	out := make(map[string]string, len(c.redirects))
	for k, v := range c.redirects {
		out[k] = v
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
