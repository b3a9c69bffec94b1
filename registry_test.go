package stateflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAssignsSequentialIDs(t *testing.T) {
	reg := NewRegistry()

	a, err := reg.Register(Callback{Name: "a", Inputs: []Identifier{"x"}, Outputs: []Identifier{"y"}})
	require.NoError(t, err)
	b, err := reg.Register(Callback{Name: "b", Inputs: []Identifier{"y"}})
	require.NoError(t, err)

	assert.Equal(t, CallbackID(0), a)
	assert.Equal(t, CallbackID(1), b)
	assert.Equal(t, 2, reg.Len())

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Callback.Name)
	assert.Equal(t, "b", all[1].Callback.Name)
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register(Callback{})
	require.Error(t, err)
	assert.Equal(t, ErrCodeCallbackInvalid, ErrorCode(err))
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register(Callback{Name: "a"})
	require.NoError(t, err)

	_, err = reg.Register(Callback{Name: "a"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeCallbackInvalid, ErrorCode(err))
}

func TestRegistryRejectsRegistrationAfterFreeze(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register(Callback{Name: "a"})
	require.NoError(t, err)
	require.NoError(t, reg.Freeze())

	_, err = reg.Register(Callback{Name: "b"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeRegistryFrozen, ErrorCode(err))
}

func TestRegistryRejectsDoubleFreeze(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Freeze())

	err := reg.Freeze()
	require.Error(t, err)
	assert.Equal(t, ErrCodeRegistryAlreadyFrozen, ErrorCode(err))
	assert.True(t, reg.Frozen())
}

func TestRegistryGetAndLookup(t *testing.T) {
	reg := NewRegistry()
	id, err := reg.Register(Callback{Name: "convert", Affinity: AffinityRemote})
	require.NoError(t, err)

	cb, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "convert", cb.Name)
	assert.Equal(t, AffinityRemote, cb.Affinity)

	got, ok := reg.Lookup("convert")
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)

	_, err = reg.Get(CallbackID(99))
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnknownCallback, ErrorCode(err))
}

func TestRegistryQueriesRequireFreeze(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register(Callback{Name: "a"})
	require.NoError(t, err)

	_, err = reg.ComputePlan(NewIdentifierSet("x"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeRegistryNotFrozen, ErrorCode(err))

	_, err = reg.Rank(0)
	require.Error(t, err)
	assert.Equal(t, ErrCodeRegistryNotFrozen, ErrorCode(err))

	_, err = reg.ExecutePlan(nil, nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeRegistryNotFrozen, ErrorCode(err))
}
