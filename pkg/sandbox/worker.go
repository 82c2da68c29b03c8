package sandbox

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// pipeProxy is the worker-side ioProxy: every call blocks on one
// synchronous envelope round trip over the pipes the parent set up
// around this subprocess.
type pipeProxy struct {
	reader *bufio.Reader
	writer io.Writer
}

func (p *pipeProxy) navCall(op string, args any) (json.RawMessage, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	if err := writeEnvelope(p.writer, &envelope{Type: envNavCall, NavCall: &navCallBody{Op: op, Args: argsJSON}}); err != nil {
		return nil, err
	}
	var resp envelope
	if err := readEnvelope(p.reader, &resp); err != nil {
		return nil, err
	}
	if resp.Type != envNavResult || resp.NavResult == nil {
		return nil, fmt.Errorf("sandbox: expected nav_result, got %s", resp.Type)
	}
	if resp.NavResult.Error != "" {
		if resp.NavResult.Stale {
			return nil, fmt.Errorf("nav: stale: %s", resp.NavResult.Error)
		}
		return nil, fmt.Errorf("%s", resp.NavResult.Error)
	}
	return resp.NavResult.Value, nil
}

func (p *pipeProxy) subSessionCall(task string, contextBlobs map[string]string) (string, error) {
	if err := writeEnvelope(p.writer, &envelope{Type: envSubSessionCall, SubSessionCall: &subSessionCallBody{Task: task, Context: contextBlobs}}); err != nil {
		return "", err
	}
	var resp envelope
	if err := readEnvelope(p.reader, &resp); err != nil {
		return "", err
	}
	if resp.Type != envSubSessionResult || resp.SubSessionResult == nil {
		return "", fmt.Errorf("sandbox: expected subsession_result, got %s", resp.Type)
	}
	if resp.SubSessionResult.Error != "" {
		return "", fmt.Errorf("%s", resp.SubSessionResult.Error)
	}
	return resp.SubSessionResult.Answer, nil
}

// RunWorker is the subprocess entry point, invoked when the binary is
// re-exec'd with WorkerArg. It serves execute envelopes one at a time
// until its input closes: for each it runs the action block — proxying
// any nav or sub_session calls back over w/r — and writes one result
// envelope.
func RunWorker(r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)

	for {
		var exec envelope
		if err := readEnvelope(reader, &exec); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if err := runOne(reader, w, &exec); err != nil {
			return err
		}
	}
}

// runOne executes the action block carried by one execute envelope and
// writes its result envelope.
func runOne(reader *bufio.Reader, w io.Writer, exec *envelope) error {
	if exec.Type != envExecute || exec.Execute == nil {
		return fmt.Errorf("sandbox: worker expected execute envelope, got %s", exec.Type)
	}
	body := exec.Execute

	proxy := &pipeProxy{reader: reader, writer: w}
	predeclared := buildPredeclared(proxy, body.ContextBlobs, body.AllowedModules, body.BlockedBuiltins, body.Globals)

	stdoutCap := body.StdoutCap
	if stdoutCap <= 0 {
		stdoutCap = 64 * 1024
	}

	stdout, truncated, returnRepr, globals, execErr := runAction(body.Code, predeclared, stdoutCap)

	res := &resultBody{
		Stdout:          stdout,
		StdoutTruncated: truncated,
		ReturnRepr:      returnRepr,
		Globals:         stringGlobals(globals, reservedGlobals(body.ContextBlobs, body.AllowedModules, body.BlockedBuiltins)),
	}
	if execErr != nil {
		res.Error = execErr.Error()
		res.ErrorKind = classifyError(execErr)
	}

	return writeEnvelope(w, &envelope{Type: envResult, Result: res})
}

// classifyError gives the parent enough signal to decide whether a
// failed action block is a policy/navigation condition worth surfacing
// distinctly from a bare Starlark error, without needing to unwrap
// go.starlark.net's internal error types across the process boundary.
func classifyError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "nav: stale"):
		return "nav_stale"
	case strings.Contains(msg, "sandbox: violation"):
		return "violation"
	case strings.Contains(msg, "cancelled"):
		return "cancelled"
	default:
		return "starlark_error"
	}
}
