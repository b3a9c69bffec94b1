package stateflow

import (
	"sort"

	"github.com/goliatone/go-errors"
)

// Identifier names one slot of application state. Identifiers are stable for
// the lifetime of the process and are used as map keys throughout the engine.
type Identifier string

// Value carries the payload for exactly one identifier. The identifier is
// embedded so a value can always be projected back to the slot it belongs to,
// which is what lets execution output flow back into state without extra
// bookkeeping.
type Value struct {
	ID   Identifier `json:"id"`
	Data any        `json:"data"`
}

// NewValue pairs an identifier with its payload.
func NewValue(id Identifier, data any) Value {
	return Value{ID: id, Data: data}
}

// Identifier returns the owning identifier for this value.
func (v Value) Identifier() Identifier { return v.ID }

// State is the identifier -> value view a callback body reads its declared
// inputs from during one plan execution.
type State map[Identifier]Value

// Input returns the value for a declared input identifier. Asking for an
// identifier that was never supplied is a programmer error: the callback
// declared an input the caller did not resolve.
func (s State) Input(id Identifier) (Value, error) {
	v, ok := s[id]
	if !ok {
		return Value{}, errors.New("input identifier not present in state", errors.CategoryBadInput).
			WithTextCode(ErrCodeMissingInput).
			WithMetadata(map[string]any{"identifier": string(id)})
	}
	return v, nil
}

// IdentifierSet is an unordered set of identifiers.
type IdentifierSet map[Identifier]struct{}

// NewIdentifierSet builds a set from the given identifiers.
func NewIdentifierSet(ids ...Identifier) IdentifierSet {
	set := make(IdentifierSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Add inserts id into the set.
func (s IdentifierSet) Add(id Identifier) { s[id] = struct{}{} }

// Has reports whether id is in the set.
func (s IdentifierSet) Has(id Identifier) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in lexical order, for deterministic iteration
// and diagnostics.
func (s IdentifierSet) Sorted() []Identifier {
	out := make([]Identifier, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
