package stub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RustLabx/rstoken/lib/block/types"
)

func TestStub(t *testing.T) {
	ctx := context.Background()

	for _, c := range []types.ChainID{types.Bitcoin, types.Solana, types.Sui} {
		a := New(c, "http://localhost")
		assert.Equal(t, c, a.ChainID())

		addr := types.NewAddress(c, "1xyz")

		_, err := a.GetBalance(ctx, addr)
		assert.ErrorIs(t, err, types.ErrNotImplemented)
		assert.Contains(t, err.Error(), c.String())

		_, err = a.BuildTx(ctx, types.TxRequest{From: addr, To: addr, Amount: "1"})
		assert.ErrorIs(t, err, types.ErrNotImplemented)

		_, err = a.SignTx(ctx, types.UnsignedTx{Chain: c}, nil)
		assert.ErrorIs(t, err, types.ErrNotImplemented)

		_, err = a.SendTx(ctx, types.SignedTx{Chain: c})
		assert.ErrorIs(t, err, types.ErrNotImplemented)

		_, err = a.WatchTx(ctx, types.TxHash{Chain: c, Value: "abc"})
		assert.ErrorIs(t, err, types.ErrNotImplemented)
	}
}
