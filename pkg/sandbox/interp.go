package sandbox

import (
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// reservedGlobals are the predeclared names buildPredeclared injects
// that are never persisted into the next action block's carried
// globals, no matter what the block did with them.
func reservedGlobals(contextBlobs map[string]string, allowedModules, blockedBuiltins []string) map[string]bool {
	reserved := map[string]bool{"nav": true, "sub_session": true}
	for k := range contextBlobs {
		reserved[k] = true
	}
	for _, m := range allowedModules {
		reserved[m] = true
	}
	for _, b := range blockedBuiltins {
		reserved[b] = true
	}
	return reserved
}

// blockedBuiltin shadows a name from Starlark's universe with a builtin
// that always fails, so an action block that calls it gets a
// Violation(builtin) instead of succeeding: predeclared bindings take
// priority over starlark.Universe entries of the same name during name
// resolution.
func blockedBuiltin(name string) starlark.Value {
	return starlark.NewBuiltin(name, func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		return nil, &Violation{Kind: ViolationBuiltin, Detail: name}
	})
}

// buildPredeclared assembles the Starlark global environment for one
// action block: carried module-level bindings from the prior action
// block (so a session's variables persist across turns), the nav
// object, the sub_session builtin, read-only context blobs, whatever
// modules the Policy's allow-list grants, and the Policy's blocked
// builtins shadowed with a Violation-raising stand-in.
func buildPredeclared(proxy ioProxy, contextBlobs map[string]string, allowedModules, blockedBuiltins []string, carried map[string]string) starlark.StringDict {
	env := starlark.StringDict{}
	for k, v := range carried {
		env[k] = starlark.String(v)
	}

	env["nav"] = navObject(proxy)
	env["sub_session"] = starlark.NewBuiltin("sub_session", subSessionBuiltin(proxy))

	for k, v := range contextBlobs {
		env[k] = starlark.String(v)
	}
	for _, m := range allowedModules {
		if mod, ok := safeModule(m); ok {
			env[m] = mod
		}
	}
	for _, b := range blockedBuiltins {
		env[b] = blockedBuiltin(b)
	}
	return env
}

// runAction executes one action block. stdout accumulates everything
// passed to Starlark's print(); once it reaches stdoutCap bytes further
// output is dropped and truncated is set, but execution continues.
func runAction(code string, predeclared starlark.StringDict, stdoutCap int) (stdout string, truncated bool, returnRepr string, globals starlark.StringDict, err error) {
	thread := &starlark.Thread{Name: "action"}
	thread.Load = func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
		if m, ok := predeclared[module].(*starlarkstruct.Module); ok {
			return m.Members, nil
		}
		return nil, &Violation{Kind: ViolationModule, Detail: module}
	}

	var written int
	var buf []byte
	thread.Print = func(_ *starlark.Thread, msg string) {
		if truncated {
			return
		}
		remaining := stdoutCap - written
		if remaining <= 0 {
			truncated = true
			return
		}
		line := msg + "\n"
		if len(line) > remaining {
			buf = append(buf, line[:remaining]...)
			written += remaining
			truncated = true
			return
		}
		buf = append(buf, line...)
		written += len(line)
	}

	globals, err = starlark.ExecFile(thread, "<action>", code, predeclared)
	return string(buf), truncated, reprOf(globals), globals, err
}

// reprOf returns the Starlark repr of the action block's "result"
// global if it assigned one, matching the convention that an action
// block reports its value by binding a module-level variable named
// result rather than via a return statement (Starlark has none at
// module scope).
func reprOf(globals starlark.StringDict) string {
	if v, ok := globals["result"]; ok {
		return v.String()
	}
	return ""
}

// stringGlobals narrows globals to the subset an action block assigned
// itself (excluding injected nav/sub_session/context/module names) whose
// values are plain strings. Only strings persist across turns; this is
// a deliberate scope limit rather than a full value serializer — an
// action block that needs structured state across turns should re-fetch
// it via nav rather than rely on carried globals.
func stringGlobals(globals starlark.StringDict, reserved map[string]bool) map[string]string {
	out := map[string]string{}
	for k, v := range globals {
		if reserved[k] {
			continue
		}
		if s, ok := v.(starlark.String); ok {
			out[k] = string(s)
		}
	}
	return out
}
