// Package policy resolves the immutable Policy governing a session tree:
// feature flag, profile, model allow-list, path deny-list, module
// allow-list, builtin deny-list, and budget caps with their inheritance
// fractions. A Policy is flattened and frozen before session creation;
// no session ever mutates it.
package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vmlinuzx/rlmcore/pkg/budget"
)

// Profile controls how strictly a session tree is constrained.
type Profile string

const (
	// ProfileOpen applies loose caps and permits model override.
	ProfileOpen Profile = "open"
	// ProfileRestricted enforces the model allow-list with no override.
	ProfileRestricted Profile = "restricted"
)

// Policy is the immutable configuration a session tree is created with.
type Policy struct {
	Enabled bool
	Profile Profile

	AllowedModelPrefixes []string
	AllowModelOverride   bool

	DenylistGlobs  []string
	AllowedModules []string
	BlockedBuiltins []string

	Caps        budget.Caps
	Inheritance budget.InheritanceFractions

	SandboxTimeoutMS int64
	ModelTimeoutMS   int64
}

// Default returns a Policy with the reference defaults from spec.md:
// open profile, generous caps, 0.5 inheritance fractions, 30s sandbox
// timeout, 60s model timeout.
func Default() Policy {
	return Policy{
		Enabled: true,
		Profile: ProfileOpen,
		Caps: budget.Caps{
			MaxTokens:             200_000,
			MaxCostUSD:            5.0,
			MaxTurns:              20,
			MaxWallMS:             300_000,
			MaxSubcallDepth:       3,
			MaxSubcallsPerSession: 5,
		},
		Inheritance:      budget.DefaultInheritance(),
		SandboxTimeoutMS: 30_000,
		ModelTimeoutMS:   60_000,
	}
}

// ErrDisabled is returned by Validate when Enabled is false; the runtime
// must fail the request immediately with this, per spec.md's Disabled
// error kind.
var ErrDisabled = fmt.Errorf("policy: disabled")

// Validate checks the Policy is well-formed and enabled.
func (p Policy) Validate() error {
	if !p.Enabled {
		return ErrDisabled
	}
	if p.Profile != ProfileOpen && p.Profile != ProfileRestricted {
		return fmt.Errorf("policy: unknown profile %q", p.Profile)
	}
	if p.Profile == ProfileRestricted && p.AllowModelOverride {
		return fmt.Errorf("policy: restricted profile cannot allow model override")
	}
	if p.Caps.MaxTokens <= 0 {
		return fmt.Errorf("policy: max_tokens must be positive")
	}
	return nil
}

// ModelAllowed reports whether modelID satisfies the allowed-prefix
// list. An empty allow-list permits any model.
func (p Policy) ModelAllowed(modelID string) bool {
	if len(p.AllowedModelPrefixes) == 0 {
		return true
	}
	for _, prefix := range p.AllowedModelPrefixes {
		if strings.HasPrefix(modelID, prefix) {
			return true
		}
	}
	return false
}

// ModuleAllowed reports whether a sandbox import of module is permitted.
func (p Policy) ModuleAllowed(module string) bool {
	for _, m := range p.AllowedModules {
		if m == module {
			return true
		}
	}
	return false
}

// envLookup is the variable lookup ApplyEnv reads RLM_* values through;
// it reports whether the variable is set, like os.LookupEnv.
type envLookup func(key string) (string, bool)

// ApplyEnv overlays recognised RLM_* environment variables onto a base
// Policy wherever the variable is present, per spec.md §6.
func ApplyEnv(base Policy, lookup envLookup) Policy {
	p := base

	if v, ok := lookup("RLM_ENABLED"); ok {
		p.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v, ok := lookup("RLM_PROFILE"); ok {
		p.Profile = Profile(v)
	}
	if v, ok := lookup("RLM_ALLOWED_MODEL_PREFIXES"); ok && v != "" {
		p.AllowedModelPrefixes = strings.Split(v, ",")
	}
	if v, ok := lookup("RLM_DENYLIST_GLOBS"); ok && v != "" {
		p.DenylistGlobs = strings.Split(v, ",")
	}
	if v, ok := lookup("RLM_MAX_SESSION_BUDGET_USD"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.Caps.MaxCostUSD = f
		}
	}
	if v, ok := lookup("RLM_MAX_SUBCALL_DEPTH"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			p.Caps.MaxSubcallDepth = n
		}
	}
	if v, ok := lookup("RLM_MAX_SUBCALLS_PER_SESSION"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			p.Caps.MaxSubcallsPerSession = n
		}
	}
	if v, ok := lookup("RLM_MAX_TURNS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			p.Caps.MaxTurns = n
		}
	}
	if v, ok := lookup("RLM_MAX_WALL_MS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.Caps.MaxWallMS = n
		}
	}
	if v, ok := lookup("RLM_SANDBOX_TIMEOUT_MS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.SandboxTimeoutMS = n
		}
	}
	if v, ok := lookup("RLM_MODEL_TIMEOUT_MS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.ModelTimeoutMS = n
		}
	}

	return p
}

// FromOSEnv is the envLookup backed by os.LookupEnv, exposed for callers
// that want ApplyEnv(base, policy.FromOSEnv) without importing "os"
// themselves.
func FromOSEnv(key string) (string, bool) {
	return osLookupEnv(key)
}
