// Package explorer implements the blockchain explorer microservice. The explorer scans transactions in the networks
// mined blocks and sends events when a monitored address or token contract is involved in a transaction.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	ne "github.com/RustLabx/rstoken/explorer/netexplorer"
	"github.com/RustLabx/rstoken/lib/block"
	"github.com/RustLabx/rstoken/lib/block/types"
	"github.com/RustLabx/rstoken/lib/msg"
	"github.com/RustLabx/rstoken/lib/store"
)

// Explorer implements an explorer service.
type Explorer struct {
	db   store.DB
	bc   map[types.ChainID]block.Chain // map of blockchain readers
	mu   sync.Mutex
	nem  map[types.ChainID]*ne.NetExplorer // map of net explorers
	mb   msg.Broker
	pace time.Duration // pause between blocks
	idle time.Duration // pause when there is nothing to do, 0 uses the chain's block time
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithPace sets the pause between scanned blocks and the pause when waiting for blocks or objects to listen.
func WithPace(pace, idle time.Duration) Option {
	return func(e *Explorer) {
		e.pace, e.idle = pace, idle
	}
}

// New instantiates a new explorer service.
func New(db store.DB, mb msg.Broker, bc map[types.ChainID]block.Chain, opts ...Option) *Explorer {
	e := &Explorer{
		db:   db,
		bc:   bc,
		nem:  make(map[types.ChainID]*ne.NetExplorer),
		mb:   mb,
		pace: time.Second, // limit rate at max. 1 block per second
	}

	for _, o := range opts {
		o(e)
	}

	return e
}

// Explore starts a go routine for each network available. The exploration of each network is controlled by a
// NetExplorer (see package explorer/netexplorer) holding the objects monitored and the status of scanned blocks. A
// network without a saved status starts at its current height, or is not explored when the height can not be read.
// The explorer consumes wallet requests to monitor new
// objects. The returned channel is closed when every network explorer has ended and saved its status.
func (e *Explorer) Explore(ctx context.Context) <-chan struct{} {
	var wg sync.WaitGroup

	for id, c := range e.bc {
		net := id.String()
		l := log.With().Str("net", net).Logger()

		addrs, err := e.db.GetAddresses([]string{net})
		if err != nil {
			l.Error().Err(err).Msg("cannot load listened addresses from db")

			continue
		}

		if len(addrs) == 0 || len(addrs[0].Addr) == 0 {
			l.Info().Msg("no listened addresses to explore in db")
		}

		start, err := c.Height(ctx)
		if err != nil {
			// without the height only a saved status tells where to start
			if _, errDB := e.db.LoadExplorer(net); errDB != nil {
				l.Error().Err(err).AnErr("db", errDB).Msg("cannot read chain height, network not explored")

				continue
			}

			l.Warn().Err(err).Msg("cannot read chain height, resuming from saved status")
		}

		nexp, err := ne.New(net, c.MaxBlocks(), start, addrs, e.db)
		if err != nil {
			l.Error().Err(err).Msg("netexplorer.New failed")

			continue
		}

		e.mu.Lock()
		e.nem[id] = nexp
		e.mu.Unlock()

		// pending requests in the broker queues are processed while the network is explored
		if err = e.ManageWalletRequests(id); err != nil {
			l.Error().Err(err).Msg("cannot consume wallet requests from broker")

			continue
		}

		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := e.ExploreChain(ctx, id); err != nil {
				l.Error().Err(err).Msg("explorer ended")
			}
		}()
	}

	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	return done
}

// Stop sends termination signals to all network explorers.
func (e *Explorer) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, nexp := range e.nem {
		nexp.Stop()
	}
}

// NetExplorer returns the network explorer of id, if exploring.
func (e *Explorer) NetExplorer(id types.ChainID) (*ne.NetExplorer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nexp, ok := e.nem[id]

	return nexp, ok
}

func (e *Explorer) wait(nexp *ne.NetExplorer, c block.Chain) bool {
	d := e.idle
	if d == 0 {
		d = time.Duration(c.AvgBlock()) * time.Second
	}

	return nexp.Wait(d)
}

// ExploreChain scans the blocks of network id until it is stopped or ctx is done. A network without monitored
// objects is not scanned. The status is saved after every block and when returning.
func (e *Explorer) ExploreChain(ctx context.Context, id types.ChainID) (err error) {
	net := id.String()
	c := e.bc[id]

	nexp, ok := e.NetExplorer(id)
	if !ok || c == nil {
		return fmt.Errorf("%w: %s", types.ErrAdapterNotFound, net)
	}

	l := log.With().Str("net", net).Logger()
	l.Info().Uint64("block", nexp.Block).Msg("exploring")

	stop := context.AfterFunc(ctx, nexp.Stop)
	defer stop()

	defer func() {
		if errSave := e.db.SaveExplorer(net, nexp.ToStore()); errSave != nil {
			err = errors.Join(err, errSave)
		}

		l.Info().Uint64("block", nexp.Block).Msg("explorer done")
	}()

	for nexp.Status() == ne.WORK {
		if nexp.Len() == 0 {
			l.Debug().Msg("waiting for something to explore")
			e.wait(nexp, c)

			continue
		}

		if !nexp.Wait(e.pace) {
			return nil
		}

		var (
			b   map[string]interface{}
			blk types.Block
		)

		if err = c.GetBlock(nexp.Block+1, true, &b); err != nil {
			if errors.Is(err, types.ErrNoBlock) {
				// wait for a new block to be mined
				e.wait(nexp, c)

				continue
			}

			nexp.Stop()

			return fmt.Errorf("get block %d: %w", nexp.Block+1, err)
		}

		blk, err = c.DecodeBlock(b)
		if err != nil {
			nexp.Stop()

			return fmt.Errorf("decode block %d: %w", nexp.Block+1, err)
		}

		l.Debug().Uint64("block", nexp.Block+1).Str("hash", blk.Hash).Str("phash", blk.PHash).Msg("parsing block")

		if !nexp.Chained(blk.PHash) {
			if nexp.Rewind() {
				l.Warn().Uint64("block", nexp.Block+1).Msg("block not chained, rescanning previous block")

				continue
			}

			nexp.Stop()

			return fmt.Errorf("%w: block %d beyond %d blocks", types.ErrReorg, nexp.Block+1, c.MaxBlocks())
		}

		if blk.Tx, err = c.DecodeTxs(b); err != nil {
			nexp.Stop()

			return fmt.Errorf("decode transactions of block %d: %w", nexp.Block+1, err)
		}

		nexp.UpdateChain(blk.Hash)

		if r := nexp.ScanTxs(blk.Tx); len(r) > 0 {
			if err = e.mb.SendTrans(net, r); err != nil {
				l.Error().Err(err).Int("events", len(r)).Msg("cannot send events")
			} else {
				l.Info().Int("events", len(r)).Msg("events sent")
			}
		}

		if errSave := e.db.SaveExplorer(net, nexp.ToStore()); errSave != nil {
			nexp.Stop()

			return fmt.Errorf("save netexplorer: %w", errSave)
		}
	}

	return nil
}

// ManageWalletRequests starts a go routine to receive and manage wallet requests for objects (addresses, token
// contracts) to be monitored in network id.
func (e *Explorer) ManageWalletRequests(id types.ChainID) error {
	net := id.String()

	nexp, ok := e.NetExplorer(id)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrAdapterNotFound, net)
	}

	mut := new(sync.Mutex)
	mut.Lock()

	reqCh, errCh, err := e.mb.GetReqs(net, mut)
	if err != nil {
		return fmt.Errorf("explorer: cannot get requests: %w", err)
	}

	go func() {
		l := log.With().Str("net", net).Logger()
		l.Info().Msg("start listening to wallet request channel")

		for {
			select {
			case req, ok := <-reqCh:
				if !ok {
					l.Info().Msg("stop listening to wallet request channel")

					return
				}

				e.handleRequest(nexp, net, req)
				mut.Unlock()
			case err, ok := <-errCh:
				if !ok {
					l.Info().Msg("stop listening to wallet request channel")

					return
				}

				l.Error().Err(err).Msg("wallet request channel")
			}
		}
	}()

	return nil
}

func (e *Explorer) handleRequest(nexp *ne.NetExplorer, net string, req msg.WalletReq) {
	l := log.With().Str("net", net).Str("obj", req.Obj).Logger()

	if err := req.Validate(net); err != nil {
		l.Warn().Err(err).Msg("ignoring wallet request")

		return
	}

	kind := ne.Address

	switch req.Type {
	case msg.CONTRACT:
		kind = ne.Contract
	case msg.TX:
		l.Warn().Msg("listening to transactions is not supported")

		return
	}

	a := store.Address{Name: kind, Addr: req.Obj}

	if req.Act == msg.LISTEN {
		if _, err := e.db.AddAddress(a, net); err != nil {
			l.Error().Err(err).Msg("cannot add object to db")
		}

		nexp.Add(req.Obj, kind)
		l.Info().Str("kind", kind).Int("objects", nexp.Len()).Msg("object listened")

		return
	}

	if _, ok := nexp.Del(req.Obj); !ok {
		l.Warn().Msg("object not found in netexplorer, ignoring")
	}

	if err := e.db.RemoveAddress(a, net); err != nil {
		l.Warn().Err(err).Msg("cannot remove object from db")
	}

	l.Info().Int("objects", nexp.Len()).Msg("object unlistened")
}
