package session

import "strings"

// Delimiters for the action-block protocol models must follow. Exactly
// one of ACTION or FINAL is expected per response; anything else is
// malformed.
const (
	actionStart = "ACTION:"
	actionEnd   = "END_ACTION"
	finalStart  = "FINAL:"
	finalEnd    = "END_FINAL"
)

// responseKind classifies a parsed model response.
type responseKind int

const (
	kindMalformed responseKind = iota
	kindAction
	kindFinal
)

// parsed holds the outcome of extracting a delimited block from a model
// response.
type parsed struct {
	kind        responseKind
	actionCode  string
	finalAnswer string
}

// parseResponse extracts the single ACTION or FINAL block a well-formed
// response must contain. Both present, or neither, or an unterminated
// block, are all malformed.
func parseResponse(text string) parsed {
	aStart := strings.Index(text, actionStart)
	fStart := strings.Index(text, finalStart)

	switch {
	case aStart >= 0 && fStart < 0:
		body, ok := extractBlock(text, aStart+len(actionStart), actionEnd)
		if !ok {
			return parsed{kind: kindMalformed}
		}
		return parsed{kind: kindAction, actionCode: strings.TrimSpace(body)}

	case fStart >= 0 && aStart < 0:
		body, ok := extractBlock(text, fStart+len(finalStart), finalEnd)
		if !ok {
			return parsed{kind: kindMalformed}
		}
		return parsed{kind: kindFinal, finalAnswer: strings.TrimSpace(body)}

	default:
		return parsed{kind: kindMalformed}
	}
}

func extractBlock(text string, from int, endMarker string) (string, bool) {
	rest := text[from:]
	end := strings.Index(rest, endMarker)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// repairHint is re-prompted, once, after a malformed response.
const repairHint = "Your previous response contained neither a single ACTION block nor a single FINAL block. " +
	"Respond with exactly one, using the exact delimiters " + actionStart + " ... " + actionEnd +
	" or " + finalStart + " ... " + finalEnd + "."
