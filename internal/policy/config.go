package policy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zboralski/raspguard/policies"
)

// MatchMode selects how a keyword is located in command text.
type MatchMode string

const (
	// MatchSubstring blocks on any occurrence, inside longer tokens too.
	MatchSubstring MatchMode = "substring"

	// MatchWord requires the keyword to be delimited by non-alphanumerics or
	// the ends of the text.
	MatchWord MatchMode = "word"
)

// Config is the keyword policy loaded from YAML.
type Config struct {
	// Version is the policy schema version. Currently "1".
	Version string `yaml:"version"`

	// Keywords is the blacklist. Duplicates are ignored.
	Keywords []string `yaml:"keywords"`

	// CaseSensitive disables case folding. Default: false.
	CaseSensitive bool `yaml:"case_sensitive"`

	// MatchMode defaults to MatchSubstring.
	MatchMode MatchMode `yaml:"match_mode"`
}

// Parse decodes and validates a policy document.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse policy: %w", err)
	}
	if cfg.MatchMode == "" {
		cfg.MatchMode = MatchSubstring
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads a policy file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read policy: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the embedded policy.
func Default() Config {
	cfg, err := Parse(policies.Default)
	if err != nil {
		panic("embedded policy: " + err.Error())
	}
	return cfg
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Version != "" && c.Version != "1" {
		errs = append(errs, fmt.Errorf("unsupported policy version %q", c.Version))
	}
	switch c.MatchMode {
	case MatchSubstring, MatchWord, "":
	default:
		errs = append(errs, fmt.Errorf("unknown match_mode %q", c.MatchMode))
	}
	if len(c.Keywords) == 0 {
		errs = append(errs, errors.New("policy has no keywords"))
	}
	for i, k := range c.Keywords {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, fmt.Errorf("keyword %d is empty", i))
		}
	}
	return errors.Join(errs...)
}
