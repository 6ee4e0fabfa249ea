package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealUnseal(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	a, err := New(key)
	require.NoError(t, err)

	sealed, err := a.Seal("hunter2")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "hunter2")

	again, err := a.Seal("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	pt, err := a.Unseal(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pt)
}

func TestUnsealRejects(t *testing.T) {
	key, _ := NewKey()
	a, err := New(key)
	require.NoError(t, err)

	_, err = a.Unseal("plain")
	assert.ErrorIs(t, err, ErrNotSealed)

	_, err = a.Unseal(Prefix + "!!!")
	assert.Error(t, err)

	_, err = a.Unseal(Prefix + "AAAA")
	assert.Error(t, err)

	sealed, _ := a.Seal("x")
	otherKey, _ := NewKey()
	other, _ := New(otherKey)
	_, err = other.Unseal(sealed)
	assert.Error(t, err)
}

func TestNewRequires32ByteKey(t *testing.T) {
	_, err := New([]byte(strings.Repeat("k", 16)))
	assert.Error(t, err)
}
