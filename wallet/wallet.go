// Package wallet implements the wallet microservice.
//
// This microservice implements a RESTful API for clients to hold keys and move assets on multiple blockchains. Native
// asset operations go through the chain runtime, block and token queries through the chain readers, and monitoring
// requests are forwarded to the explorer service via the message broker.
package wallet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tarancss/hd"

	"github.com/RustLabx/rstoken/lib/block"
	"github.com/RustLabx/rstoken/lib/block/types"
	"github.com/RustLabx/rstoken/lib/keys"
	"github.com/RustLabx/rstoken/lib/msg"
	"github.com/RustLabx/rstoken/lib/store"
)

const shutdownTimeout = 10 * time.Second

// Wallet contains the data necessary to deliver the service
type Wallet struct {
	rt   *block.Runtime                // adapters dispatching the transaction lifecycle
	bc   map[types.ChainID]block.Chain // blockchain readers
	keys *keys.Keyring                 // key custody
	db   store.DB                      // db connection, optional
	mb   msg.Broker                    // message broker, optional
	hd   *hd.HdWallet                  // HD wallet, optional
	sc   chan struct{}                 // closed to shut down the servers
	once sync.Once
}

// New returns a pointer to a new Wallet service. db, mb and hdw may be nil, the endpoints needing them will reply
// service unavailable.
func New(rt *block.Runtime, bc map[types.ChainID]block.Chain, kr *keys.Keyring, db store.DB, mb msg.Broker,
	hdw *hd.HdWallet,
) *Wallet {
	if kr == nil {
		kr = keys.NewKeyring()
	}

	return &Wallet{
		rt:   rt,
		bc:   bc,
		keys: kr,
		db:   db,
		mb:   mb,
		hd:   hdw,
		sc:   make(chan struct{}),
	}
}

// Stop makes Init shut down the http servers implementing the RESTful API. Connections to the message broker,
// database and blockchains belong to the caller.
func (w *Wallet) Stop() {
	w.once.Do(func() { close(w.sc) })
}

// ManageEvents starts go routines consuming the transaction events sent by the explorer service for each chain with
// a reader. Events of transactions sent by this wallet refresh their stored status.
func (w *Wallet) ManageEvents(ctx context.Context) error {
	if w.mb == nil {
		return ErrNoBroker
	}

	for id := range w.bc {
		net := id.String()

		mut := new(sync.Mutex)
		mut.Lock()

		eveCh, errCh, err := w.mb.GetEvents(net, mut)
		if err != nil {
			return err
		}

		go func() {
			l := log.With().Str("net", net).Logger()
			l.Info().Msg("start listening to explorer event channel")

			for eve := range eveCh {
				l.Info().Str("hash", eve.Hash).Str("from", eve.From).Str("to", eve.To).Str("token", eve.Token).
					Str("value", eve.Value).Msg("event received")

				if err := w.refresh(ctx, id, eve.Hash); err != nil && !errors.Is(err, store.ErrTxNotFound) {
					l.Warn().Err(err).Str("hash", eve.Hash).Msg("cannot refresh transaction")
				}

				mut.Unlock()
			}

			l.Info().Msg("stop listening to explorer event channel")
		}()

		go func() {
			for err := range errCh {
				log.Error().Err(err).Str("net", net).Msg("explorer event channel")
			}
		}()
	}

	return nil
}

// refresh updates the stored status of a transaction sent by the wallet.
func (w *Wallet) refresh(ctx context.Context, id types.ChainID, hash string) error {
	if w.db == nil {
		return ErrNoStore
	}

	rec, err := w.db.GetTx(id.String(), hash)
	if err != nil {
		return err
	}

	info, err := w.rt.WatchTx(ctx, types.TxHash{Chain: id, Value: hash})
	if err != nil {
		return err
	}

	if string(info.Status) == rec.Status {
		return nil
	}

	rec.Status = string(info.Status)

	return w.db.SaveTx(rec)
}
