package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndNew(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("orders::save", func() Flow { return newProbe() }))
	require.NoError(t, r.RegisterNamespaced("billing", "pay", func() Flow { return newProbe() }))

	err := r.Register("orders::save", func() Flow { return newProbe() })
	assert.Equal(t, ErrCodeDuplicateAction, ErrorCode(err))

	assert.Equal(t, []string{"billing::pay", "orders::save"}, r.Names())

	f, err := r.New("billing::pay")
	require.NoError(t, err)
	assert.IsType(t, &probeFlow{}, f)

	a, _ := r.New("orders::save")
	b, _ := r.New("orders::save")
	assert.NotSame(t, a, b)
}

func TestRegistryFailures(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("panics", func() Flow { panic("ctor failed") }))
	require.NoError(t, r.Register("nil", func() Flow { return nil }))

	_, err := r.New("missing")
	assert.True(t, IsUnknownAction(err))

	_, err = r.New("panics")
	assert.Equal(t, ErrCodeInvalidFactory, ErrorCode(err))

	_, err = r.New("nil")
	assert.Equal(t, ErrCodeInvalidFactory, ErrorCode(err))

	assert.Error(t, r.Register("", func() Flow { return newProbe() }))
	assert.Error(t, r.Register("x", nil))
}

func TestGenericRegister(t *testing.T) {
	r := NewRegistry()
	name, err := Register(r, newProbe)
	require.NoError(t, err)
	assert.Equal(t, "flow::probe_flow", name)

	_, ok := r.Lookup(name)
	assert.True(t, ok)

	r.SetNamespacer(func(ns, id string) string { return ns + "/" + id })
	require.NoError(t, r.RegisterNamespaced("ns", "id", func() Flow { return newProbe() }))
	_, ok = r.Lookup("ns/id")
	assert.True(t, ok)
}
