package block

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/RustLabx/rstoken/lib/block/types"
)

// Runtime dispatches lifecycle operations to the adapter registered for the chain carried by their argument.
// Adapters are registered at startup; the table lock is never held while an adapter runs.
type Runtime struct {
	mu       sync.RWMutex
	adapters map[types.ChainID]Adapter
}

// NewRuntime returns a runtime with no adapters.
func NewRuntime() *Runtime {
	return &Runtime{adapters: make(map[types.ChainID]Adapter)}
}

// Register adds a under its own chain id, replacing any adapter previously registered for it.
func (r *Runtime) Register(a Adapter) {
	r.mu.Lock()
	r.adapters[a.ChainID()] = a
	r.mu.Unlock()
}

// Adapter returns the adapter registered for c or ErrAdapterNotFound.
func (r *Runtime) Adapter(c types.ChainID) (Adapter, error) {
	r.mu.RLock()
	a, ok := r.adapters[c]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrAdapterNotFound, c)
	}

	return a, nil
}

// SupportedChains returns the registered chains in ascending order.
func (r *Runtime) SupportedChains() []types.ChainID {
	r.mu.RLock()
	cs := make([]types.ChainID, 0, len(r.adapters))

	for c := range r.adapters {
		cs = append(cs, c)
	}
	r.mu.RUnlock()

	sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })

	return cs
}

func (r *Runtime) GetBalance(ctx context.Context, addr types.Address) (types.Balance, error) {
	a, err := r.Adapter(addr.Chain)
	if err != nil {
		return types.Balance{}, err
	}

	return a.GetBalance(ctx, addr)
}

// BuildTx dispatches on the chain of the sender.
func (r *Runtime) BuildTx(ctx context.Context, req types.TxRequest) (types.UnsignedTx, error) {
	a, err := r.Adapter(req.From.Chain)
	if err != nil {
		return types.UnsignedTx{}, err
	}

	return a.BuildTx(ctx, req)
}

func (r *Runtime) SignTx(ctx context.Context, tx types.UnsignedTx, key types.Key) (types.SignedTx, error) {
	a, err := r.Adapter(tx.Chain)
	if err != nil {
		return types.SignedTx{}, err
	}

	return a.SignTx(ctx, tx, key)
}

func (r *Runtime) SendTx(ctx context.Context, tx types.SignedTx) (types.TxHash, error) {
	a, err := r.Adapter(tx.Chain)
	if err != nil {
		return types.TxHash{}, err
	}

	return a.SendTx(ctx, tx)
}

func (r *Runtime) WatchTx(ctx context.Context, hash types.TxHash) (types.TxStatusInfo, error) {
	a, err := r.Adapter(hash.Chain)
	if err != nil {
		return types.TxStatusInfo{}, err
	}

	return a.WatchTx(ctx, hash)
}

// SendTransaction builds, signs with key and broadcasts req. The first failing stage ends the pipeline and its error
// is returned as is; nothing is retried.
func (r *Runtime) SendTransaction(ctx context.Context, req types.TxRequest, key types.Key) (types.TxHash, error) {
	utx, err := r.BuildTx(ctx, req)
	if err != nil {
		return types.TxHash{}, err
	}

	stx, err := r.SignTx(ctx, utx, key)
	if err != nil {
		return types.TxHash{}, err
	}

	return r.SendTx(ctx, stx)
}

// NormalizeAddress returns the canonical form of addr when its adapter knows one, addr otherwise.
func (r *Runtime) NormalizeAddress(addr types.Address) (types.Address, error) {
	a, err := r.Adapter(addr.Chain)
	if err != nil {
		return addr, err
	}

	if n, ok := a.(Normalizer); ok {
		return n.NormalizeAddress(addr)
	}

	return addr, nil
}

// Close releases the adapters holding network resources.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.adapters {
		if c, ok := a.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
