package agent

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Options are the settings carried in the agent options string, e.g.
//
//	-agentpath:/opt/libraspguard.so=policy=/etc/rasp.yaml,frames=32
type Options struct {
	PolicyPath string // policy YAML; empty means the embedded default
	Name       string // agent name in log lines and the log file name
	LogDir     string // directory for the daily log file
	MaxFrames  int    // stack depth on block; 0 means the maximum
}

// ParseOptions parses a comma-separated key=value list. Malformed or unknown
// entries are reported in the returned error; the Options still hold every
// entry that parsed, so callers log the error and carry on.
func ParseOptions(s string) (Options, error) {
	var opts Options
	var errs []error

	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			errs = append(errs, fmt.Errorf("option %q: missing value", field))
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "policy":
			opts.PolicyPath = value
		case "name":
			opts.Name = value
		case "logdir":
			opts.LogDir = value
		case "frames":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				errs = append(errs, fmt.Errorf("option frames: invalid value %q", value))
				continue
			}
			opts.MaxFrames = n
		default:
			errs = append(errs, fmt.Errorf("option %q: unknown key", key))
		}
	}
	return opts, errors.Join(errs...)
}
