// Package rpc carries the remote execution segment of a plan over HTTP: a
// host posts the remote callbacks with their resolved arguments, and the
// peer answers with the values those callbacks produced.
package rpc

import (
	stderrors "errors"
	"net/http"

	apperrors "github.com/goliatone/go-errors"
	stateflow "github.com/goliatone/go-stateflow"
)

// ExecuteRequest is the wire shape of one remote execution round trip.
type ExecuteRequest struct {
	BatchID string                   `json:"batchId,omitempty"`
	Args    []stateflow.ExecutionArg `json:"args"`
	Plan    []stateflow.CallbackID   `json:"plan"`
}

// ExecuteResponse is the peer's answer: produced values, or an error
// envelope. Exactly one of the two is set.
type ExecuteResponse struct {
	Args  []stateflow.ExecutionArg `json:"args,omitempty"`
	Error *Error                   `json:"error,omitempty"`
}

// Error is the transport-friendly error envelope.
type Error struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// errorEnvelope flattens an engine error into the wire shape.
func errorEnvelope(err error) *Error {
	if err == nil {
		return nil
	}
	out := &Error{Message: err.Error()}
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		out.Code = ge.TextCode
		out.Category = string(ge.Category)
	}
	return out
}

// HTTPStatusForError maps engine text codes onto HTTP status codes. Unknown
// errors are internal: the peer accepted a well-formed request it could not
// honor.
func HTTPStatusForError(err error) int {
	switch stateflow.ErrorCode(err) {
	case stateflow.ErrCodeUnknownCallback, stateflow.ErrCodeMissingInput, stateflow.ErrCodeCallbackInvalid:
		return http.StatusBadRequest
	case stateflow.ErrCodeRegistryNotFrozen, stateflow.ErrCodeBodyNotAvailable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
