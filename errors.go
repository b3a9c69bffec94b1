package stateflow

import (
	stderrors "errors"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeRegistryFrozen        = "REGISTRY_FROZEN"
	ErrCodeRegistryNotFrozen     = "REGISTRY_NOT_FROZEN"
	ErrCodeRegistryAlreadyFrozen = "REGISTRY_ALREADY_FROZEN"
	ErrCodeCallbackInvalid       = "CALLBACK_INVALID"
	ErrCodeCallbackCycle         = "CALLBACK_CYCLE"
	ErrCodeUnknownCallback       = "UNKNOWN_CALLBACK"
	ErrCodeBodyNotAvailable      = "BODY_NOT_AVAILABLE"
	ErrCodeMissingInput          = "MISSING_INPUT"
)

// ErrorCode extracts the text code from an engine error, or "" when the error
// did not originate here.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsCycleError reports whether err was produced by cycle detection at freeze
// time.
func IsCycleError(err error) bool {
	return ErrorCode(err) == ErrCodeCallbackCycle
}
