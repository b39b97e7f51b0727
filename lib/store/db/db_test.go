package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RustLabx/rstoken/lib/store"
)

func TestNew(t *testing.T) {
	s, err := New(SQLITE, ":memory:")
	require.NoError(t, err)

	_, err = s.GetAddresses(nil)
	require.NoError(t, err)
	assert.NoError(t, Close(s))

	_, err = New("oracle", "")
	assert.ErrorIs(t, err, store.ErrUnknownType)

	assert.NoError(t, Close(nil))
}
