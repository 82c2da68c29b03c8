package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"strings"

	"github.com/vmlinuzx/rlmcore/internal/config"
	"github.com/vmlinuzx/rlmcore/pkg/nav"
	"github.com/vmlinuzx/rlmcore/pkg/nav/goindex"
	"github.com/vmlinuzx/rlmcore/pkg/session"
	"github.com/vmlinuzx/rlmcore/pkg/trace"
)

func (a *App) runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "rlm.yaml", "path to rlm.yaml")
	input := fs.String("input", "", "task text (reads stdin if empty)")
	repoPath := fs.String("repo", ".", "path to the repository to navigate")
	model := fs.String("model", "", "override the model from rlm.yaml")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	task := *input
	if task == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			a.errf("Error: reading stdin: %v\n", err)
			return 1
		}
		task = string(data)
	}
	if task == "" {
		a.errf("Error: no task provided (use -input flag or pipe via stdin)\n")
		return 1
	}

	runModel := cfg.Model
	if *model != "" {
		if !cfg.ToPolicy().AllowModelOverride {
			a.errf("Error: rlm.yaml does not permit -model override\n")
			return 1
		}
		runModel = *model
	}

	ctx := context.Background()
	provider, err := a.providerFactory(ctx, providerForModel(runModel))
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	idx, err := goindex.Build(*repoPath)
	if err != nil {
		a.errf("Error: indexing %s: %v\n", *repoPath, err)
		return 1
	}
	snap := nav.NewSnapshot(idx, *repoPath)
	facade := nav.New(snap, nav.WithDenylistGlobs(cfg.Policy.DenylistGlobs))

	tracer := trace.NewInMemory()

	sess, err := session.New(session.Config{
		Policy:   cfg.ToPolicy(),
		Provider: provider,
		Model:    runModel,
		Facade:   facade,
		ExePath:  os.Args[0],
		Tracer:   tracer,
		BaseDir:  ".",
	})
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	result := sess.Run(ctx, task, nil)
	if result.Err != nil {
		a.errf("Error: %v\n", result.Err)
		a.errf("\nSession ID: %s\n", result.Summary.SessionID)
		return 1
	}

	a.outf("%s\n", result.Answer)
	a.errf("\nSession ID: %s\n", result.Summary.SessionID)
	return 0
}

// providerForModel maps a model identifier to the LLM backend it belongs
// to, so -model can be overridden without also requiring a -provider
// flag: the model prefix already says which provider to resolve.
func providerForModel(model string) string {
	switch {
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "openai"
	case strings.HasPrefix(model, "claude-"):
		return "anthropic"
	case strings.HasPrefix(model, "gemini-"):
		return "gemini"
	default:
		return "anthropic"
	}
}
