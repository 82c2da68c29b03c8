// Package config handles rlmcore policy-file loading and validation: a
// single YAML document describing the Policy a session tree runs under,
// substituted for environment variables the same way gogrid.yaml was.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vmlinuzx/rlmcore/pkg/budget"
	"github.com/vmlinuzx/rlmcore/pkg/policy"
)

// validProfiles is the set of supported Policy profile names.
var validProfiles = map[string]bool{
	"open":       true,
	"restricted": true,
}

// PolicyFile is the top-level rlm.yaml structure: one Policy plus the
// model a session tree defaults to, since model selection is a per-run
// concern the Policy itself intentionally stays silent on.
type PolicyFile struct {
	// Version is the config schema version. Must be "1".
	Version string `yaml:"version"`
	// Model is the default LLM model identifier a session Run uses
	// absent a per-request override.
	Model string `yaml:"model"`
	// Policy holds the governing caps, allow/deny lists, and timeouts.
	Policy PolicyConfig `yaml:"policy"`
}

// PolicyConfig mirrors policy.Policy as a YAML-friendly document.
type PolicyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Profile string `yaml:"profile"`

	AllowedModelPrefixes []string `yaml:"allowed_model_prefixes"`
	AllowModelOverride   bool     `yaml:"allow_model_override"`

	DenylistGlobs   []string `yaml:"denylist_globs"`
	AllowedModules  []string `yaml:"allowed_modules"`
	BlockedBuiltins []string `yaml:"blocked_builtins"`

	Caps        CapsConfig        `yaml:"caps"`
	Inheritance InheritanceConfig `yaml:"inheritance"`

	SandboxTimeout Duration `yaml:"sandbox_timeout"`
	ModelTimeout   Duration `yaml:"model_timeout"`
}

// CapsConfig mirrors budget.Caps as a YAML-friendly document.
type CapsConfig struct {
	MaxTokens             int64   `yaml:"max_tokens"`
	MaxCostUSD            float64 `yaml:"max_cost_usd"`
	MaxTurns              int     `yaml:"max_turns"`
	MaxWall               Duration `yaml:"max_wall"`
	MaxSubcallDepth       int     `yaml:"max_subcall_depth"`
	MaxSubcallsPerSession int     `yaml:"max_subcalls_per_session"`
}

// InheritanceConfig mirrors budget.InheritanceFractions.
type InheritanceConfig struct {
	TokenFraction float64 `yaml:"token_fraction"`
	CostFraction  float64 `yaml:"cost_fraction"`
	WallFraction  float64 `yaml:"wall_fraction"`
}

// Duration wraps time.Duration with YAML string unmarshaling support.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "30s" or "5m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.Duration.String(), nil
}

// Load reads an rlm.yaml file, performs environment variable substitution,
// parses the YAML, and validates the result.
func Load(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	substituted := Substitute(string(data))

	var cfg PolicyFile
	if err := yaml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration is well-formed.
func (c *PolicyFile) Validate() error {
	if c.Version != "1" {
		return fmt.Errorf("config: unsupported version %q (expected \"1\")", c.Version)
	}
	if c.Model == "" {
		return fmt.Errorf("config: model is required")
	}
	if c.Policy.Profile != "" && !validProfiles[c.Policy.Profile] {
		return fmt.Errorf("config: unsupported profile %q (valid: open, restricted)", c.Policy.Profile)
	}
	if c.Policy.Caps.MaxTokens <= 0 {
		return fmt.Errorf("config: caps.max_tokens must be positive")
	}
	return nil
}

// ToPolicy converts the parsed file into a policy.Policy, starting from
// policy.Default. Profile, the list fields, inheritance and timeouts keep
// their defaults unless the file sets them. The caps block is taken from
// the file as written: a cap the file omits is zero, not the default
// (MaxSubcallDepth 0 admits no sub-sessions, MaxTurns 0 sets no turn
// limit). Enabled and AllowModelOverride always come from the file.
func (c *PolicyFile) ToPolicy() policy.Policy {
	p := policy.Default()

	p.Enabled = c.Policy.Enabled
	if c.Policy.Profile != "" {
		p.Profile = policy.Profile(c.Policy.Profile)
	}
	if len(c.Policy.AllowedModelPrefixes) > 0 {
		p.AllowedModelPrefixes = c.Policy.AllowedModelPrefixes
	}
	p.AllowModelOverride = c.Policy.AllowModelOverride
	if len(c.Policy.DenylistGlobs) > 0 {
		p.DenylistGlobs = c.Policy.DenylistGlobs
	}
	if len(c.Policy.AllowedModules) > 0 {
		p.AllowedModules = c.Policy.AllowedModules
	}
	if len(c.Policy.BlockedBuiltins) > 0 {
		p.BlockedBuiltins = c.Policy.BlockedBuiltins
	}

	p.Caps = budget.Caps{
		MaxTokens:             int(c.Policy.Caps.MaxTokens),
		MaxCostUSD:            c.Policy.Caps.MaxCostUSD,
		MaxTurns:              c.Policy.Caps.MaxTurns,
		MaxWallMS:             c.Policy.Caps.MaxWall.Milliseconds(),
		MaxSubcallDepth:       c.Policy.Caps.MaxSubcallDepth,
		MaxSubcallsPerSession: c.Policy.Caps.MaxSubcallsPerSession,
	}

	if c.Policy.Inheritance != (InheritanceConfig{}) {
		p.Inheritance = budget.InheritanceFractions{
			TokenFraction: c.Policy.Inheritance.TokenFraction,
			CostFraction:  c.Policy.Inheritance.CostFraction,
			WallFraction:  c.Policy.Inheritance.WallFraction,
		}
	}
	if c.Policy.SandboxTimeout.Duration > 0 {
		p.SandboxTimeoutMS = c.Policy.SandboxTimeout.Milliseconds()
	}
	if c.Policy.ModelTimeout.Duration > 0 {
		p.ModelTimeoutMS = c.Policy.ModelTimeout.Milliseconds()
	}

	return p
}
