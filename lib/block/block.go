// Package block defines the interfaces required for all blockchain connections and the runtime dispatching
// transaction lifecycle operations to them.
package block

import (
	"context"
	"fmt"
	"math/big"

	"github.com/rs/zerolog/log"

	"github.com/RustLabx/rstoken/lib/block/ethereum"
	"github.com/RustLabx/rstoken/lib/block/stub"
	"github.com/RustLabx/rstoken/lib/block/types"
	"github.com/RustLabx/rstoken/lib/config"
)

// Adapter drives the transaction lifecycle of one chain. Every operation rejects arguments of another chain with
// types.ErrChainMismatch before touching the network.
type Adapter interface {
	ChainID() types.ChainID
	GetBalance(ctx context.Context, addr types.Address) (types.Balance, error)
	BuildTx(ctx context.Context, req types.TxRequest) (types.UnsignedTx, error)
	SignTx(ctx context.Context, tx types.UnsignedTx, key types.Key) (types.SignedTx, error)
	SendTx(ctx context.Context, tx types.SignedTx) (types.TxHash, error)
	WatchTx(ctx context.Context, hash types.TxHash) (types.TxStatusInfo, error)
}

// Normalizer is implemented by adapters that know the canonical form of their addresses.
type Normalizer interface {
	NormalizeAddress(addr types.Address) (types.Address, error)
}

// Chain reads blocks and tokens of a network. It is used to scan blocks and to serve token requests, while
// transactions go through an Adapter.
type Chain interface {
	// member-type methods
	MaxBlocks() int // number of blocks that are controlled for orphans (uncles)
	AvgBlock() int  // average block mining rate in seconds
	// methods
	Close()
	Height(ctx context.Context) (uint64, error)
	Latest(ctx context.Context) (types.Block, error)
	GetBlock(block uint64, full bool, response interface{}) error
	DecodeBlock(b interface{}) (types.Block, error)
	DecodeTxs(t interface{}) ([]types.Trans, error)
	GetToken(token string) (types.Token, error)
	TokenBalance(address, token string) (*big.Int, error)
}

// Init connects to the chains in bc. It returns a runtime with an adapter registered for each of them and the block
// readers of the chains that have one. Entries whose name is not a chain code are ignored.
func Init(ctx context.Context, bc []config.BlockConfig) (*Runtime, map[types.ChainID]Chain, error) {
	rt := NewRuntime()
	chains := make(map[types.ChainID]Chain)

	for _, b := range bc {
		id, err := types.ParseChainID(b.Name)
		if err != nil {
			log.Warn().Str("name", b.Name).Msg("blockchain interface not defined, ignoring")

			continue
		}

		switch id {
		case types.Ethereum:
			client, err := ethereum.DialClient(ctx, b.Node, b.Secret)
			if err != nil {
				End(rt, chains)

				return nil, nil, err
			}

			a, err := ethereum.New(ctx, client, ethereum.WithRateLimit(b.RateLimit))
			if err != nil {
				client.Close()
				End(rt, chains)

				return nil, nil, fmt.Errorf("%s adapter: %w", id, err)
			}

			n, err := ethereum.NewNode(b.Node, b.Secret, b.MaxBlocks, client)
			if err != nil {
				a.Close()
				End(rt, chains)

				return nil, nil, err
			}

			rt.Register(Instrument(a))
			chains[id] = n

			log.Info().Stringer("chain", id).Str("network", a.NetworkID().String()).Msg("adapter loaded")
		default:
			rt.Register(Instrument(stub.New(id, b.Node)))

			log.Info().Stringer("chain", id).Msg("stub adapter loaded")
		}
	}

	return rt, chains, nil
}

// End closes gracefully all the blockchain clients opened.
func End(rt *Runtime, chains map[types.ChainID]Chain) {
	for _, c := range chains {
		c.Close()
	}

	if rt != nil {
		rt.Close()
	}
}
