package local

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RustLabx/rstoken/lib/block/types"
	"github.com/RustLabx/rstoken/lib/msg"
)

func TestRequests(t *testing.T) {
	b := New()
	require.NoError(t, b.Setup(nil))

	// sent before anybody listens
	first := msg.WalletReq{Net: "eth", Type: msg.CONTRACT, Obj: "0xa34d", Act: msg.LISTEN}
	require.NoError(t, b.SendRequest("eth", first))

	mut := new(sync.Mutex)
	mut.Lock()

	reqs, _, err := b.GetReqs("eth", mut)
	require.NoError(t, err)

	assert.Equal(t, first, <-reqs)

	second := first
	second.Act = msg.UNLISTEN
	require.NoError(t, b.SendRequest("eth", second))
	mut.Unlock()

	assert.Equal(t, second, <-reqs)
	mut.Unlock()

	require.NoError(t, b.Close())

	_, open := <-reqs
	assert.False(t, open)

	assert.ErrorIs(t, b.SendRequest("eth", first), msg.ErrClosed)
	assert.NoError(t, b.Close())
}

func TestEvents(t *testing.T) {
	b := New()
	defer b.Close()

	mut := new(sync.Mutex)
	mut.Lock()

	eves, _, err := b.GetEvents("eth", mut)
	require.NoError(t, err)

	require.NoError(t, b.SendTrans("eth", []types.Trans{{Hash: "0x01"}, {Hash: "0x02"}}))
	require.NoError(t, b.SendTrans("btc", []types.Trans{{Hash: "0x03"}}))

	assert.Equal(t, "0x01", (<-eves).Hash)
	mut.Unlock()
	assert.Equal(t, "0x02", (<-eves).Hash)
	mut.Unlock()
}

func TestCloseWhileProcessing(t *testing.T) {
	b := New()

	mut := new(sync.Mutex)
	mut.Lock()

	eves, _, err := b.GetEvents("eth", mut)
	require.NoError(t, err)

	require.NoError(t, b.SendTrans("eth", []types.Trans{{Hash: "0x01"}, {Hash: "0x02"}}))
	assert.Equal(t, "0x01", (<-eves).Hash)

	// the consumer stops without acknowledging
	require.NoError(t, b.Close())

	select {
	case _, open := <-eves:
		assert.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("events channel not closed")
	}
}
