package sandbox

import (
	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
)

// safeModule resolves one entry of a Policy's module allow-list to the
// Starlark value it grants. Both modules ship with go.starlark.net
// itself and expose no file, network, subprocess, or environment
// access — an empty allow-list (the default) makes every load() fail
// with a module Violation, and a bare reference to a module that is not
// granted fails as an undefined name.
func safeModule(name string) (starlark.Value, bool) {
	switch name {
	case "json":
		return starlarkjson.Module, true
	case "math":
		return starlarkmath.Module, true
	}
	return nil, false
}
