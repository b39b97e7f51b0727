package block

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/RustLabx/rstoken/lib/block/types"
)

var (
	adapterCalls = promauto.NewCounterVec( //nolint:gochecknoglobals // registered once
		prometheus.CounterOpts{
			Name: "rstoken_adapter_calls_total",
			Help: "Adapter operations by chain, operation and result",
		},
		[]string{"chain", "op", "result"},
	)

	adapterDuration = promauto.NewHistogramVec( //nolint:gochecknoglobals // registered once
		prometheus.HistogramOpts{
			Name:    "rstoken_adapter_duration_seconds",
			Help:    "Adapter operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "op"},
	)
)

// result labels an adapter error by its class.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrNotImplemented):
		return "not_implemented"
	case errors.Is(err, types.ErrNetwork):
		return "network"
	case errors.Is(err, types.ErrBroadcastFailed):
		return "broadcast_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "invalid"
	}
}

// instrumented records calls and latency of every operation of the adapter it wraps.
type instrumented struct {
	Adapter
	chain string
}

// Instrument wraps every operation of a with prometheus metrics. Errors are returned unchanged.
func Instrument(a Adapter) Adapter {
	return &instrumented{Adapter: a, chain: a.ChainID().String()}
}

func (m *instrumented) observe(op string, start time.Time, err error) {
	adapterDuration.WithLabelValues(m.chain, op).Observe(time.Since(start).Seconds())
	adapterCalls.WithLabelValues(m.chain, op, result(err)).Inc()
}

func (m *instrumented) GetBalance(ctx context.Context, addr types.Address) (types.Balance, error) {
	start := time.Now()
	b, err := m.Adapter.GetBalance(ctx, addr)
	m.observe("get_balance", start, err)

	return b, err
}

func (m *instrumented) BuildTx(ctx context.Context, req types.TxRequest) (types.UnsignedTx, error) {
	start := time.Now()
	tx, err := m.Adapter.BuildTx(ctx, req)
	m.observe("build_tx", start, err)

	return tx, err
}

func (m *instrumented) SignTx(ctx context.Context, tx types.UnsignedTx, key types.Key) (types.SignedTx, error) {
	start := time.Now()
	stx, err := m.Adapter.SignTx(ctx, tx, key)
	m.observe("sign_tx", start, err)

	return stx, err
}

func (m *instrumented) SendTx(ctx context.Context, tx types.SignedTx) (types.TxHash, error) {
	start := time.Now()
	h, err := m.Adapter.SendTx(ctx, tx)
	m.observe("send_tx", start, err)

	return h, err
}

func (m *instrumented) WatchTx(ctx context.Context, hash types.TxHash) (types.TxStatusInfo, error) {
	start := time.Now()
	info, err := m.Adapter.WatchTx(ctx, hash)
	m.observe("watch_tx", start, err)

	return info, err
}

func (m *instrumented) NormalizeAddress(addr types.Address) (types.Address, error) {
	if n, ok := m.Adapter.(Normalizer); ok {
		return n.NormalizeAddress(addr)
	}

	return addr, nil
}

func (m *instrumented) Close() {
	if c, ok := m.Adapter.(interface{ Close() }); ok {
		c.Close()
	}
}
