package netexplorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RustLabx/rstoken/lib/block/types"
	"github.com/RustLabx/rstoken/lib/store"
	"github.com/RustLabx/rstoken/lib/store/sqlite"
)

func newStore(t *testing.T) store.DB {
	t.Helper()

	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

// TestChain checks the revolving slice Bh and its index Bhi.
func TestChain(t *testing.T) {
	const maxBlocks = 4

	ne, err := New("eth", maxBlocks, 0, nil, newStore(t))
	require.NoError(t, err)

	steps := []struct {
		prev    string
		chained bool
		next    string
	}{
		{"hash0", true, "hash1"},
		{"hash1", true, "hash2"},
		{"hash2", true, "hash3"},
		{"hash3", true, "hash4"},
		{"hash4", true, "hash5"},
		{"hash5", true, "hash6"},
		{"hash6bis", false, "hash6bis"},
		{"hash6", true, "hash7"},
		{"hash7", true, "hash8"},
		{"hash8", true, "hash9"},
	}

	for _, s := range steps {
		require.Equal(t, s.chained, ne.Chained(s.prev), s.prev)

		if s.chained {
			ne.UpdateChain(s.next)
		}
	}

	assert.Equal(t, uint64(9), ne.Block)
	assert.Equal(t, 1, ne.Bhi)
	assert.Equal(t, []string{"hash8", "hash9", "hash6", "hash7"}, ne.Bh)
}

func TestRewind(t *testing.T) {
	ne, err := New("eth", 3, 10, nil, newStore(t))
	require.NoError(t, err)
	assert.False(t, ne.Rewind())

	ne.UpdateChain("h11")
	ne.UpdateChain("h12")
	ne.UpdateChain("h13")
	ne.UpdateChain("h14")

	require.True(t, ne.Rewind())
	assert.Equal(t, uint64(13), ne.Block)
	assert.True(t, ne.Chained("h13"))
	assert.False(t, ne.Chained("h14"))

	require.True(t, ne.Rewind())
	require.True(t, ne.Rewind())
	assert.Equal(t, uint64(11), ne.Block)

	// the ring only kept three hashes
	assert.False(t, ne.Rewind())
	assert.True(t, ne.Chained("any"))
}

func TestAddDel(t *testing.T) {
	ne, err := New("eth", 2, 0, nil, newStore(t))
	require.NoError(t, err)

	steps := []struct {
		add   bool
		obj   string
		value string
		ok    bool
	}{
		{false, "object1", "", false},
		{true, "object1", "value1", false},
		{true, "object2", "value2", false},
		{false, "object3", "", false},
		{false, "object1", "value1", true},
		{true, "object1", "value1", false},
		{true, "object2", "value2-again", false},
		{true, "object4", "value4", false},
		{false, "OBJECT4", "value4", true},
		{false, "object5", "", false},
	}

	for _, s := range steps {
		if s.add {
			ne.Add(s.obj, s.value)

			continue
		}

		v, ok := ne.Del(s.obj)
		assert.Equal(t, s.ok, ok, s.obj)

		if ok {
			assert.Equal(t, s.value, v, s.obj)
		}
	}

	assert.Equal(t, 2, ne.Len())
}

func TestScanTxs(t *testing.T) {
	l := []store.ListenedAddresses{
		{Net: "eth", Addr: []store.Address{
			{Addr: "0xAAA"},
			{Name: Contract, Addr: "0xC0"},
		}},
		{Net: "btc", Addr: []store.Address{{Addr: "0xBBB"}}},
	}

	ne, err := New("eth", 2, 0, l, newStore(t))
	require.NoError(t, err)
	assert.Equal(t, 2, ne.Len())

	txs := []types.Trans{
		{Hash: "0x1", From: "0xaaa", To: "0x01"},
		{Hash: "0x2", From: "0x02", To: "0xAaA"},
		{Hash: "0x3", From: "0x03", To: "0x04", Token: "0xc0"},
		{Hash: "0x4", From: "0xbbb", To: "0x05"},
		{Hash: "0x5", From: "0xc0", To: "0x06"},
	}

	r := ne.ScanTxs(txs)
	require.Len(t, r, 3)
	assert.Equal(t, "0x1", r[0].Hash)
	assert.Equal(t, "0x2", r[1].Hash)
	assert.Equal(t, "0x3", r[2].Hash)
}

func TestStore(t *testing.T) {
	db := newStore(t)

	ne, err := New("eth", 3, 100, nil, db)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), ne.Block)

	ne.UpdateChain("h101")
	ne.UpdateChain("h102")
	require.NoError(t, db.SaveExplorer("eth", ne.ToStore()))

	again, err := New("eth", 3, 500, nil, db)
	require.NoError(t, err)
	assert.Equal(t, uint64(102), again.Block)
	assert.True(t, again.Chained("h102"))
	assert.False(t, again.Chained("h101"))

	// a different ring size drops the saved hashes but keeps the block
	resized, err := New("eth", 5, 500, nil, db)
	require.NoError(t, err)
	assert.Equal(t, uint64(102), resized.Block)
	assert.Len(t, resized.Bh, 5)
	assert.True(t, resized.Chained("anything"))
}

func TestStopWait(t *testing.T) {
	ne, err := New("eth", 1, 0, nil, newStore(t))
	require.NoError(t, err)

	assert.Equal(t, WORK, ne.Status())
	assert.True(t, ne.Wait(time.Millisecond))

	go ne.Stop()

	assert.False(t, ne.Wait(time.Minute))
	assert.Equal(t, STOP, ne.Status())

	ne.Stop()
}
