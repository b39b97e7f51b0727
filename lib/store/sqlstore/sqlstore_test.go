package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	const q = `SELECT id FROM addresses WHERE net = ? AND addr = ?`

	assert.Equal(t, q, Rebind(Question, q))
	assert.Equal(t, `SELECT id FROM addresses WHERE net = $1 AND addr = $2`, Rebind(Dollar, q))
	assert.Equal(t, `DELETE FROM explorer`, Rebind(Dollar, `DELETE FROM explorer`))
}
