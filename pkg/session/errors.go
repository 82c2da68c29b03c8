package session

import "errors"

// ErrMalformedResponse is returned by Run when a model response lacks a
// recognised ACTION or FINAL block twice in a row — once on the
// original turn, once after the single repair re-prompt.
var ErrMalformedResponse = errors.New("session: malformed response after repair attempt")

// ErrModelDenied is returned when the configured model does not satisfy
// the Policy's model allow-list.
var ErrModelDenied = errors.New("session: model denied by policy")
