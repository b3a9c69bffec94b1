// Package store holds durable value storage for the scheduling engine: the
// contract the batch runner merges results into, plus in-memory and SQLite
// implementations.
package store

import (
	"context"
	stderrors "errors"

	apperrors "github.com/goliatone/go-errors"
	stateflow "github.com/goliatone/go-stateflow"
)

const (
	ErrCodeValueNotFound        = "VALUE_NOT_FOUND"
	ErrCodeValueVersionConflict = "VALUE_VERSION_CONFLICT"
)

// Store persists one value per identifier with a monotonically increasing
// version per slot. Versions let the runner detect when a concurrent batch
// touched an identifier between plan dispatch and result merge.
type Store interface {
	// ReadValue returns the current value for id.
	ReadValue(ctx context.Context, id stateflow.Identifier) (stateflow.Value, error)
	// Values bulk-reads the given identifiers, preserving their order.
	Values(ctx context.Context, ids []stateflow.Identifier) ([]stateflow.Value, error)
	// UpdateValue writes v unconditionally and bumps its version.
	UpdateValue(ctx context.Context, v stateflow.Value) error
	// Versions returns the current version of each requested identifier.
	// Identifiers never written report version 0.
	Versions(ctx context.Context, ids []stateflow.Identifier) (map[stateflow.Identifier]int64, error)
	// UpdateValueIfFresh writes v only when the stored version still equals
	// expected, returning the new version. A mismatch fails with
	// VALUE_VERSION_CONFLICT and leaves the slot untouched.
	UpdateValueIfFresh(ctx context.Context, v stateflow.Value, expected int64) (int64, error)
}

func notFoundError(id stateflow.Identifier) error {
	return apperrors.New("value not found for identifier", apperrors.CategoryBadInput).
		WithTextCode(ErrCodeValueNotFound).
		WithMetadata(map[string]any{"identifier": string(id)})
}

func versionConflictError(id stateflow.Identifier, expected, current int64) error {
	return apperrors.New("value version conflict", apperrors.CategoryConflict).
		WithTextCode(ErrCodeValueVersionConflict).
		WithMetadata(map[string]any{
			"identifier": string(id),
			"expected":   expected,
			"current":    current,
		})
}

// IsVersionConflict reports whether err is a stale-write rejection.
func IsVersionConflict(err error) bool {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode == ErrCodeValueVersionConflict
	}
	return false
}

// IsNotFound reports whether err means the identifier has no stored value.
func IsNotFound(err error) bool {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode == ErrCodeValueNotFound
	}
	return false
}
