// Package sandbox executes one action block at a time in an isolated
// Starlark interpreter, running inside a re-exec'd worker subprocess so
// a crash or runaway loop cannot touch the parent process. The Facade's
// nav calls and sub_session spawns cross the process boundary as
// newline-delimited JSON envelopes over the worker's stdin/stdout.
package sandbox

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/vmlinuzx/rlmcore/pkg/nav"
)

// WorkerArg is the hidden argument that re-execs the binary into worker
// mode. The program's main() must check its first argument against this
// constant before dispatching to its ordinary subcommand switch, and
// call RunWorker(os.Stdin, os.Stdout) when it matches.
const WorkerArg = "__sandbox_worker__"

// SubSessionFunc runs a child session to completion for a sub_session()
// call issued from inside an action block, returning its final answer.
type SubSessionFunc func(ctx context.Context, task string, contextBlobs map[string]string) (string, error)

// Observation is what a session turn sees after one action block runs.
type Observation struct {
	Stdout          string
	StdoutTruncated bool
	ReturnRepr      string
	Error           string
	ErrorKind       string
}

// Sandbox owns one re-exec'd worker subprocess for the lifetime of a
// session. The Starlark interpreter inside the worker persists its
// string-valued module globals across calls to Execute, so a session's
// variables survive from one action block to the next; a fresh
// subprocess is spawned only on first use or after a crash.
type Sandbox struct {
	exePath         string
	facade          *nav.Facade
	subSession      SubSessionFunc
	allowedModules  []string
	blockedBuiltins []string
	stdoutCap       int
	timeout         time.Duration

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader

	globals map[string]string
}

// Option configures a Sandbox at construction time.
type Option func(*Sandbox)

// WithAllowedModules sets the Policy module allow-list granted to every
// action block this Sandbox runs.
func WithAllowedModules(modules []string) Option {
	return func(s *Sandbox) { s.allowedModules = modules }
}

// WithBlockedBuiltins shadows the named universe builtins with one that
// always raises a Violation(builtin) when called.
func WithBlockedBuiltins(names []string) Option {
	return func(s *Sandbox) { s.blockedBuiltins = names }
}

// WithStdoutCap overrides the default 64 KiB stdout cap.
func WithStdoutCap(n int) Option {
	return func(s *Sandbox) { s.stdoutCap = n }
}

// WithTimeout overrides the default 30s wall-clock timeout per action
// block.
func WithTimeout(d time.Duration) Option {
	return func(s *Sandbox) { s.timeout = d }
}

// New creates a Sandbox that re-execs exePath with WorkerArg to run each
// action block. facade serves nav_call requests; subSession (may be nil
// to disable sub_session() for this Sandbox) serves sub_session() calls.
func New(exePath string, facade *nav.Facade, subSession SubSessionFunc, opts ...Option) *Sandbox {
	s := &Sandbox{
		exePath:    exePath,
		facade:     facade,
		subSession: subSession,
		stdoutCap:  64 * 1024,
		timeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sandbox) spawn() error {
	cmd := exec.Command(s.exePath, WorkerArg)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	s.cmd = cmd
	s.stdin = stdin
	s.reader = bufio.NewReader(stdout)
	return nil
}

func (s *Sandbox) killAndReset() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil
	s.stdin = nil
	s.reader = nil
}

// Execute runs one action block to completion, proxying nav and
// sub_session calls back through facade and subSession. A worker crash
// is retried once against a freshly spawned subprocess with the same
// carried globals; a second consecutive crash for the same action block
// is fatal and returned as *Crash.
func (s *Sandbox) Execute(ctx context.Context, code string, contextBlobs map[string]string) (*Observation, error) {
	var lastCrash *Crash
	for attempt := 0; attempt < 2; attempt++ {
		obs, err := s.tryExecute(ctx, code, contextBlobs)
		if err == nil {
			return obs, nil
		}
		if t, ok := err.(*Timeout); ok {
			s.killAndReset()
			return nil, t
		}
		crash, ok := err.(*Crash)
		if !ok {
			return nil, err
		}
		lastCrash = crash
		s.killAndReset()
	}
	return nil, lastCrash
}

func (s *Sandbox) tryExecute(ctx context.Context, code string, contextBlobs map[string]string) (*Observation, error) {
	if s.cmd == nil {
		if err := s.spawn(); err != nil {
			return nil, &Crash{Detail: "spawn failed: " + err.Error()}
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-execCtx.Done():
			if s.cmd != nil && s.cmd.Process != nil {
				_ = s.cmd.Process.Kill()
			}
		case <-watchDone:
		}
	}()

	if err := writeEnvelope(s.stdin, &envelope{Type: envExecute, Execute: &executeBody{
		Code:            code,
		ContextBlobs:    contextBlobs,
		AllowedModules:  s.allowedModules,
		BlockedBuiltins: s.blockedBuiltins,
		Globals:         s.globals,
		StdoutCap:       s.stdoutCap,
		StderrCap:       s.stdoutCap,
	}}); err != nil {
		return nil, &Crash{Detail: "write execute: " + err.Error()}
	}

	for {
		var env envelope
		if err := readEnvelope(s.reader, &env); err != nil {
			if execCtx.Err() != nil {
				return nil, &Timeout{ElapsedMS: s.timeout.Milliseconds()}
			}
			return nil, &Crash{Detail: "read envelope: " + err.Error()}
		}

		switch env.Type {
		case envNavCall:
			resp := s.handleNavCall(ctx, env.NavCall)
			if err := writeEnvelope(s.stdin, &envelope{Type: envNavResult, NavResult: resp}); err != nil {
				return nil, &Crash{Detail: "write nav_result: " + err.Error()}
			}
		case envSubSessionCall:
			resp := s.handleSubSessionCall(ctx, env.SubSessionCall)
			if err := writeEnvelope(s.stdin, &envelope{Type: envSubSessionResult, SubSessionResult: resp}); err != nil {
				return nil, &Crash{Detail: "write subsession_result: " + err.Error()}
			}
		case envResult:
			if env.Result == nil {
				return nil, &Crash{Detail: "result envelope missing body"}
			}
			s.globals = env.Result.Globals
			return &Observation{
				Stdout:          env.Result.Stdout,
				StdoutTruncated: env.Result.StdoutTruncated,
				ReturnRepr:      env.Result.ReturnRepr,
				Error:           env.Result.Error,
				ErrorKind:       env.Result.ErrorKind,
			}, nil
		default:
			return nil, &Crash{Detail: "unexpected envelope type: " + string(env.Type)}
		}
	}
}

// Close terminates the worker subprocess, if one was ever spawned.
func (s *Sandbox) Close() error {
	if s.cmd == nil {
		return nil
	}
	_ = s.stdin.Close()
	err := s.cmd.Wait()
	s.cmd = nil
	return err
}
