package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"webgate/config"
)

// testFiles is the webroot used across the handler tests.
var testFiles = map[string]string{
	"index.html":    "<h1>home</h1>",
	"style.css":     "body { color: red; }",
	"data.xyz":      "\x00\x01\x02",
	"secret.txt":    "do not serve",
	"html1.page":    "old page",
	"html2.page":    "new page",
	"error500.page": "never shown",
	"sub/page.html": "<p>nested</p>",
	"sub/LOGO.PNG":  "\x89PNG",
}

// newTestWebroot writes testFiles under a temp dir and returns a Config with
// the standard rule sets.
func newTestWebroot(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	for name, content := range testFiles {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := config.New(config.Options{
		Webroot:         dir,
		DefaultDocument: "index.html",
		Forbidden:       []string{"secret.txt", "ghost.txt"},
		Redirects:       map[string]string{"html1.page": "/html2.page"},
		FailureTriggers: []string{"error500.page"},
	})
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}
	return cfg
}
