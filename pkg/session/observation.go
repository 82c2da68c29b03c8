package session

import (
	"fmt"
	"strings"

	"github.com/vmlinuzx/rlmcore/pkg/sandbox"
)

// observationText renders a sandbox Observation into the text a model
// sees as the result of the ACTION it just submitted.
func observationText(obs *sandbox.Observation) string {
	var b strings.Builder
	if obs.Stdout != "" {
		b.WriteString(obs.Stdout)
		if obs.StdoutTruncated {
			b.WriteString("\n[stdout truncated]")
		}
	}
	if obs.ReturnRepr != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("result = " + obs.ReturnRepr)
	}
	if obs.Error != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "error (%s): %s", obs.ErrorKind, obs.Error)
	}
	if b.Len() == 0 {
		return "(no output)"
	}
	return b.String()
}
