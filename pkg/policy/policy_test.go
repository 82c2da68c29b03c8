package policy

import (
	"errors"
	"testing"
)

func TestValidate_DisabledReturnsErrDisabled(t *testing.T) {
	p := Default()
	p.Enabled = false
	if err := p.Validate(); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestModelAllowed_EmptyAllowListPermitsAny(t *testing.T) {
	p := Default()
	if !p.ModelAllowed("whatever-model") {
		t.Fatal("expected empty allow-list to permit any model")
	}
}

func TestModelAllowed_PrefixMatch(t *testing.T) {
	p := Default()
	p.AllowedModelPrefixes = []string{"claude-"}
	if !p.ModelAllowed("claude-sonnet-4-5") {
		t.Fatal("expected prefix match to allow")
	}
	if p.ModelAllowed("gpt-4o") {
		t.Fatal("expected non-matching prefix to deny")
	}
}

func TestApplyEnv_OverridesBaseFields(t *testing.T) {
	base := Default()
	env := map[string]string{
		"RLM_MAX_SUBCALL_DEPTH":      "7",
		"RLM_PROFILE":                "restricted",
		"RLM_ALLOWED_MODEL_PREFIXES": "claude-,gpt-",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	p := ApplyEnv(base, lookup)
	if p.Caps.MaxSubcallDepth != 7 {
		t.Fatalf("expected max subcall depth 7, got %d", p.Caps.MaxSubcallDepth)
	}
	if p.Profile != ProfileRestricted {
		t.Fatalf("expected restricted profile, got %v", p.Profile)
	}
	if len(p.AllowedModelPrefixes) != 2 {
		t.Fatalf("expected 2 allowed prefixes, got %v", p.AllowedModelPrefixes)
	}
}
