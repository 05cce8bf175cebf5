// Package policies embeds the built-in keyword policy.
package policies

import _ "embed"

// Default is the built-in policy YAML.
//
//go:embed default.yaml
var Default []byte
