package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "/", want: "."},
		{in: "", want: "."},
		{in: "/about.html", want: "about.html"},
		{in: "//css//style.css", want: "css/style.css"},
		{in: "/a/./b/../c.txt", want: "a/c.txt"},
		{in: "secret.txt", want: "secret.txt"},
		{in: "/..", wantErr: true},
		{in: "/../../etc/passwd", wantErr: true},
		{in: "/a/../../b", wantErr: true},
		{in: "/..hidden", want: "..hidden"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanName(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrTraversal) {
					t.Fatalf("CleanName(%q) error = %v, want ErrTraversal", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CleanName(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("CleanName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewNormalizesRules(t *testing.T) {
	dir := t.TempDir()
	cfg, err := New(Options{
		Webroot:         dir,
		DefaultDocument: "/home.html",
		Forbidden:       []string{"/secret.txt", "./private//key.pem"},
		Redirects:       map[string]string{"/old.html": "new.html"},
		FailureTriggers: []string{"boom.page"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if cfg.Webroot() != filepath.Clean(dir) {
		t.Errorf("Webroot = %q, want %q", cfg.Webroot(), dir)
	}
	if cfg.DefaultDocument() != "home.html" {
		t.Errorf("DefaultDocument = %q", cfg.DefaultDocument())
	}
	for _, name := range []string{"secret.txt", "private/key.pem"} {
		if !cfg.IsForbidden(name) {
			t.Errorf("IsForbidden(%q) = false", name)
		}
	}
	if cfg.IsForbidden("other.txt") {
		t.Error("IsForbidden(other.txt) = true")
	}
	if to, ok := cfg.RedirectTarget("old.html"); !ok || to != "new.html" {
		t.Errorf("RedirectTarget(old.html) = %q, %v", to, ok)
	}
	if !cfg.IsFailureTrigger("boom.page") {
		t.Error("IsFailureTrigger(boom.page) = false")
	}
	if cfg.IP != DefaultIP || cfg.Port != DefaultPort || cfg.ReadTimeout != DefaultReadTimeout {
		t.Errorf("defaults not applied: ip=%q port=%d timeout=%s", cfg.IP, cfg.Port, cfg.ReadTimeout)
	}
	if cfg.Addr() != "0.0.0.0:80" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
}

func TestNewRedirectsCopyIsDetached(t *testing.T) {
	cfg, err := New(Options{Webroot: t.TempDir(), Redirects: map[string]string{"a": "/b"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cfg.Redirects()["a"] = "/changed"
	if to, _ := cfg.RedirectTarget("a"); to != "/b" {
		t.Errorf("RedirectTarget(a) = %q after mutating the copy", to)
	}
}

func TestNewRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts Options
	}{
		{"empty webroot", Options{}},
		{"missing webroot", Options{Webroot: filepath.Join(dir, "nope")}},
		{"webroot is a file", Options{Webroot: file}},
		{"bad port", Options{Webroot: dir, Port: 70000}},
		{"bad ip", Options{Webroot: dir, IP: "not-an-ip"}},
		{"traversing forbidden entry", Options{Webroot: dir, Forbidden: []string{"../x"}}},
		{"empty trigger", Options{Webroot: dir, FailureTriggers: []string{" "}}},
		{"root as rule", Options{Webroot: dir, Forbidden: []string{"/"}}},
		{"empty redirect target", Options{Webroot: dir, Redirects: map[string]string{"a": ""}}},
		{"traversing default document", Options{Webroot: dir, DefaultDocument: "../index.html"}},
		{"negative timeout", Options{Webroot: dir, ReadTimeout: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Errorf("New(%+v) succeeded, want error", tt.opts)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load([]string{"-webroot", dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsForbidden("secret.txt") {
		t.Error("default forbidden set missing secret.txt")
	}
	if to, ok := cfg.RedirectTarget("html1.page"); !ok || to != "/html2.page" {
		t.Errorf("default redirect = %q, %v", to, ok)
	}
	if !cfg.IsFailureTrigger("error500.page") {
		t.Error("default failure triggers missing error500.page")
	}
	if cfg.DefaultDocument() != DefaultDocument {
		t.Errorf("DefaultDocument = %q", cfg.DefaultDocument())
	}
	if cfg.StatCache || cfg.CloseConnections || cfg.BandwidthLimit != 0 {
		t.Errorf("unexpected optional settings: %+v", cfg)
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WEBGATE_FORBIDDEN", "env-secret.txt, env-key.pem")
	t.Setenv("WEBGATE_PORT", "9090")
	t.Setenv("WEBGATE_FAILURE_TRIGGERS", "env.page")
	t.Setenv("WEBGATE_REDIRECTS", "a.html=/b.html,c.html=https://example.com/")
	t.Setenv("WEBGATE_STAT_CACHE", "yes")

	cfg, err := Load([]string{"-webroot", dir, "-fail", "flag.page", "-port", "8081", "-close-connections", "on"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Forbidden(); !reflect.DeepEqual(got, []string{"env-key.pem", "env-secret.txt"}) {
		t.Errorf("Forbidden = %v", got)
	}
	if got := cfg.FailureTriggers(); !reflect.DeepEqual(got, []string{"flag.page"}) {
		t.Errorf("FailureTriggers = %v, flag should win over env", got)
	}
	want := map[string]string{"a.html": "/b.html", "c.html": "https://example.com/"}
	if got := cfg.Redirects(); !reflect.DeepEqual(got, want) {
		t.Errorf("Redirects = %v, want %v", got, want)
	}
	if cfg.Port != 8081 {
		t.Errorf("Port = %d, want flag value 8081", cfg.Port)
	}
	if !cfg.StatCache || !cfg.CloseConnections {
		t.Errorf("StatCache=%v CloseConnections=%v, want both true", cfg.StatCache, cfg.CloseConnections)
	}
}

func TestLoadInvalidEnvPort(t *testing.T) {
	t.Setenv("WEBGATE_PORT", "eighty")
	if _, err := Load([]string{"-webroot", t.TempDir()}); err == nil {
		t.Fatal("Load succeeded with an invalid WEBGATE_PORT")
	}
}

func TestLoadBadRedirectFlag(t *testing.T) {
	if _, err := Load([]string{"-webroot", t.TempDir(), "-redirect", "nope"}); err == nil {
		t.Fatal("Load accepted a redirect without '='")
	}
}

func TestLoadRulesFiles(t *testing.T) {
	tests := []struct {
		file    string
		content string
	}{
		{"rules.toml", `
default_document = "start.html"
forbidden = ["vault.txt"]
failure_triggers = ["crash.page"]

[redirects]
"old.html" = "/new.html"
`},
		{"rules.yaml", `
default_document: start.html
forbidden:
  - vault.txt
failure_triggers:
  - crash.page
redirects:
  old.html: /new.html
`},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			dir := t.TempDir()
			rulesPath := filepath.Join(dir, tt.file)
			if err := os.WriteFile(rulesPath, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load([]string{"-webroot", dir, "-rules", rulesPath})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.DefaultDocument() != "start.html" {
				t.Errorf("DefaultDocument = %q", cfg.DefaultDocument())
			}
			if !cfg.IsForbidden("vault.txt") || cfg.IsForbidden("secret.txt") {
				t.Errorf("Forbidden = %v, want only vault.txt", cfg.Forbidden())
			}
			if !cfg.IsFailureTrigger("crash.page") || cfg.IsFailureTrigger("error500.page") {
				t.Errorf("FailureTriggers = %v", cfg.FailureTriggers())
			}
			if to, ok := cfg.RedirectTarget("old.html"); !ok || to != "/new.html" {
				t.Errorf("RedirectTarget(old.html) = %q, %v", to, ok)
			}
		})
	}
}

func TestLoadRulesRejectsUnknown(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"typo.toml": "forbiden = [\"a\"]\n",
		"typo.yml":  "forbiden: [a]\n",
		"rules.ini": "forbidden=a\n",
	} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadRules(p); err == nil {
			t.Errorf("LoadRules(%s) succeeded, want error", name)
		}
	}
}

func TestParseBandwidth(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "10mbps", want: 1_250_000},
		{in: "500 kbps", want: 62_500},
		{in: "1GBPS", want: 125_000_000},
		{in: "131072", want: 16_384},
		{in: "fast", wantErr: true},
		{in: "10xbps", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseBandwidth(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseBandwidth(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parseBandwidth(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
