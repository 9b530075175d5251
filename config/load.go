package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
)

// nameList is a custom flag.Value that can be set multiple times.
type nameList []string

func (n *nameList) String() string {
	return strings.Join(*n, ", ")
}

func (n *nameList) Set(value string) error {
	*n = append(*n, value)
	return nil
}

// redirectList collects repeated -redirect from=to flags.
type redirectList map[string]string

func (r redirectList) String() string {
	pairs := make([]string, 0, len(r))
	for from, to := range r {
		pairs = append(pairs, from+"="+to)
	}
	return strings.Join(pairs, ", ")
}

func (r redirectList) Set(value string) error {
	from, to, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return fmt.Errorf("expected from=to, got %q", value)
	}
	r[strings.TrimSpace(from)] = strings.TrimSpace(to)
	return nil
}

// LoadDotEnv loads a .env file from the working directory into the process
// environment. A missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load parses args (normally os.Args[1:]) together with WEBGATE_* environment
// variables and the optional rules file, returning a validated Config.
func Load(args []string) (*Config, error) {
	var (
		forbid    nameList
		fail      nameList
		redirects = redirectList{}
	)
	fs := flag.NewFlagSet("webgate", flag.ContinueOnError)
	ipFlag := fs.String("ip", "", "IP address to bind (env: WEBGATE_IP, default: 0.0.0.0)")
	portFlag := fs.Int("port", 0, "HTTP port to listen on (env: WEBGATE_PORT, default: 80)")
	webrootFlag := fs.String("webroot", "", "Directory to serve (env: WEBGATE_WEBROOT, default: webroot)")
	docFlag := fs.String("default-document", "", "Document served for / (env: WEBGATE_DEFAULT_DOCUMENT, default: index.html)")
	rulesFlag := fs.String("rules", "", "TOML or YAML rules file (env: WEBGATE_RULES)")
	timeoutFlag := fs.String("read-timeout", "", "Request read timeout, e.g. 5s (env: WEBGATE_READ_TIMEOUT, default: 5s)")
	bandwidthFlag := fs.String("bandwidth", "", "Total response bandwidth cap, e.g. 10mbps, 500kbps (env: WEBGATE_BANDWIDTH, default: unlimited)")
	statCacheFlag := fs.String("stat-cache", "", "Cache file metadata, invalidated by filesystem events: true or false (env: WEBGATE_STAT_CACHE, default: false)")
	statsDirFlag := fs.String("stats-dir", "", "Directory in which webgate-stats.json is stored (env: WEBGATE_STATS_DIR, default: not persisted)")
	closeConnsFlag := fs.String("close-connections", "", "Disable keep-alives: true or false (env: WEBGATE_CLOSE_CONNECTIONS, default: false)")
	fs.Var(&forbid, "forbid", "Name answered with 403 (repeatable; env: WEBGATE_FORBIDDEN, comma-separated)")
	fs.Var(redirects, "redirect", "Redirect rule from=to (repeatable; env: WEBGATE_REDIRECTS, comma-separated)")
	fs.Var(&fail, "fail", "Name answered with a simulated 500 (repeatable; env: WEBGATE_FAILURE_TRIGGERS, comma-separated)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := Options{}

	// --- rules file ---
	var rules *Rules
	if p := firstNonEmpty(*rulesFlag, os.Getenv("WEBGATE_RULES")); p != "" {
		r, err := LoadRules(p)
		if err != nil {
			return nil, err
		}
		rules = r
	} else {
		rules = &Rules{}
	}

	// --- ip ---
	opts.IP = firstNonEmpty(*ipFlag, os.Getenv("WEBGATE_IP"), DefaultIP)

	// --- port ---
	opts.Port = *portFlag
	if opts.Port == 0 {
		if v := os.Getenv("WEBGATE_PORT"); v != "" {
			p, err := strconv.Atoi(v)
			if err != nil || p < 1 || p > 65535 {
				return nil, fmt.Errorf("invalid WEBGATE_PORT value %q", v)
			}
			opts.Port = p
		} else {
			opts.Port = DefaultPort
		}
	}

	// --- webroot ---
	opts.Webroot = firstNonEmpty(*webrootFlag, os.Getenv("WEBGATE_WEBROOT"), DefaultWebroot)

	// --- default-document ---
	opts.DefaultDocument = firstNonEmpty(*docFlag, os.Getenv("WEBGATE_DEFAULT_DOCUMENT"), rules.DefaultDocument, DefaultDocument)

	// --- forbidden ---
	switch {
	case len(forbid) > 0:
		opts.Forbidden = forbid
	case os.Getenv("WEBGATE_FORBIDDEN") != "":
		opts.Forbidden = splitList(os.Getenv("WEBGATE_FORBIDDEN"))
	case rules.Forbidden != nil:
		opts.Forbidden = rules.Forbidden
	default:
		opts.Forbidden = defaultForbidden
	}

	// --- redirects ---
	switch {
	case len(redirects) > 0:
		opts.Redirects = redirects
	case os.Getenv("WEBGATE_REDIRECTS") != "":
		env := redirectList{}
		for _, pair := range splitList(os.Getenv("WEBGATE_REDIRECTS")) {
			if err := env.Set(pair); err != nil {
				return nil, fmt.Errorf("invalid WEBGATE_REDIRECTS: %w", err)
			}
		}
		opts.Redirects = env
	case rules.Redirects != nil:
		opts.Redirects = rules.Redirects
	default:
		opts.Redirects = defaultRedirects
	}

	// --- failure triggers ---
	switch {
	case len(fail) > 0:
		opts.FailureTriggers = fail
	case os.Getenv("WEBGATE_FAILURE_TRIGGERS") != "":
		opts.FailureTriggers = splitList(os.Getenv("WEBGATE_FAILURE_TRIGGERS"))
	case rules.FailureTriggers != nil:
		opts.FailureTriggers = rules.FailureTriggers
	default:
		opts.FailureTriggers = defaultFailureTriggers
	}

	// --- read-timeout ---
	if v := firstNonEmpty(*timeoutFlag, os.Getenv("WEBGATE_READ_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid read timeout %q", v)
		}
		opts.ReadTimeout = d
	} else {
		opts.ReadTimeout = DefaultReadTimeout
	}

	// --- bandwidth ---
	if bwRaw := firstNonEmpty(*bandwidthFlag, os.Getenv("WEBGATE_BANDWIDTH")); bwRaw != "" {
		bps, err := parseBandwidth(bwRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid bandwidth %q: %w", bwRaw, err)
		}
		opts.BandwidthLimit = bps
	}

	// --- stats-dir ---
	opts.StatsDir = firstNonEmpty(*statsDirFlag, os.Getenv("WEBGATE_STATS_DIR"))

	opts.StatCache = parseBoolFlag(*statCacheFlag, "WEBGATE_STAT_CACHE", false)
	opts.CloseConnections = parseBoolFlag(*closeConnsFlag, "WEBGATE_CLOSE_CONNECTIONS", false)

	return New(opts)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// splitList splits a comma-separated environment value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseBoolFlag resolves a boolean option from a CLI string flag value, with
// fallback to an environment variable and then a compile-time default.
// An empty or unrecognised string means "not set".
func parseBoolFlag(flagVal, envKey string, defaultVal bool) bool {
	if b, ok := parseBoolString(flagVal); ok {
		return b
	}
	if b, ok := parseBoolString(os.Getenv(envKey)); ok {
		return b
	}
	return defaultVal
}

func parseBoolString(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "on":
		return true, true
	case "0", "f", "false", "no", "off":
		return false, true
	}
	return false, false
}

// parseBandwidth converts a human-readable bandwidth string to bytes per
// second. Accepted units (case-insensitive): bps, kbps, mbps, gbps.
// A bare number is treated as bits per second.
//
// Examples: "10mbps", "500 kbps", "1gbps"
func parseBandwidth(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	i := strings.IndexFunc(s, func(r rune) bool { return r != '.' && !unicode.IsDigit(r) })
	if i == -1 {
		i = len(s)
	}
	if i == 0 {
		return 0, fmt.Errorf("no numeric value found")
	}
	val, err := strconv.ParseFloat(s[:i], 64)
	if err != nil || val < 0 {
		return 0, fmt.Errorf("invalid number %q", s[:i])
	}

	var scale float64
	switch unit := strings.ToLower(strings.TrimSpace(s[i:])); unit {
	case "", "bps":
		scale = 1
	case "kbps":
		scale = 1e3
	case "mbps":
		scale = 1e6
	case "gbps":
		scale = 1e9
	default:
		return 0, fmt.Errorf("unknown unit %q (accepted: bps, kbps, mbps, gbps)", unit)
	}
	return val * scale / 8, nil
}
