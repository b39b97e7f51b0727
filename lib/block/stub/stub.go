// Package stub provides adapters for chains whose network integration is not available yet. Every operation fails
// with types.ErrNotImplemented naming the chain.
package stub

import (
	"context"
	"fmt"

	"github.com/RustLabx/rstoken/lib/block/types"
)

// Adapter satisfies the adapter contract for chain without touching any network.
type Adapter struct {
	chain types.ChainID
	node  string
}

// New returns a stub adapter for chain. node is kept for logging only.
func New(chain types.ChainID, node string) *Adapter {
	return &Adapter{chain: chain, node: node}
}

func (a *Adapter) ChainID() types.ChainID {
	return a.chain
}

// Node returns the endpoint the adapter was configured with.
func (a *Adapter) Node() string {
	return a.node
}

func (a *Adapter) GetBalance(context.Context, types.Address) (types.Balance, error) {
	return types.Balance{}, a.err("get balance")
}

func (a *Adapter) BuildTx(context.Context, types.TxRequest) (types.UnsignedTx, error) {
	return types.UnsignedTx{}, a.err("build tx")
}

func (a *Adapter) SignTx(context.Context, types.UnsignedTx, types.Key) (types.SignedTx, error) {
	return types.SignedTx{}, a.err("sign tx")
}

func (a *Adapter) SendTx(context.Context, types.SignedTx) (types.TxHash, error) {
	return types.TxHash{}, a.err("send tx")
}

func (a *Adapter) WatchTx(context.Context, types.TxHash) (types.TxStatusInfo, error) {
	return types.TxStatusInfo{}, a.err("watch tx")
}

func (a *Adapter) err(op string) error {
	return fmt.Errorf("%w: %s adapter: %s", types.ErrNotImplemented, a.chain, op)
}
