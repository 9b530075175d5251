package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Rules is the on-disk form of the routing rules. A nil field means the
// file does not set it; an empty list or map explicitly clears the default.
type Rules struct {
	DefaultDocument string            `toml:"default_document" yaml:"default_document"`
	Forbidden       []string          `toml:"forbidden" yaml:"forbidden"`
	Redirects       map[string]string `toml:"redirects" yaml:"redirects"`
	FailureTriggers []string          `toml:"failure_triggers" yaml:"failure_triggers"`
}

// LoadRules reads a rules file. The format is chosen by extension:
// .toml, or .yaml / .yml. Unknown keys are rejected so that a typo does not
// silently drop a rule.
func LoadRules(p string) (*Rules, error) {
	var r Rules
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".toml":
		md, err := toml.DecodeFile(p, &r)
		if err != nil {
			return nil, fmt.Errorf("rules %q: %w", p, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("rules %q: unknown key %q", p, undecoded[0].String())
		}
	case ".yaml", ".yml":
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("rules %q: %w", p, err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("rules %q: %w", p, err)
		}
	default:
		return nil, fmt.Errorf("rules %q: unsupported format %q (use .toml, .yaml or .yml)", p, ext)
	}
	return &r, nil
}
