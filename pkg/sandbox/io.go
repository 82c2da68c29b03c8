package sandbox

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

func readEnvelope(r *bufio.Reader, dst *envelope) error {
	line, err := r.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return err
	}
	if err := json.Unmarshal(line, dst); err != nil {
		return fmt.Errorf("sandbox: malformed envelope: %w", err)
	}
	return nil
}

func writeEnvelope(w io.Writer, env *envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
