package wallet

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/tarancss/hd"

	"github.com/RustLabx/rstoken/lib/block"
	"github.com/RustLabx/rstoken/lib/block/types"
	"github.com/RustLabx/rstoken/lib/keys"
	"github.com/RustLabx/rstoken/lib/msg"
	"github.com/RustLabx/rstoken/lib/store"
)

// SendReq is the body of a native asset transfer. Amount is in whole units of the chain asset (ie. ether), GasPrice
// in the smallest unit. Chain defaults to ethereum.
type SendReq struct {
	Chain    string `json:"chain,omitempty"`
	From     string `json:"from"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
	GasLimit uint64 `json:"gas_limit,omitempty"`
	GasPrice string `json:"gas_price,omitempty"`
}

// ImportReq is the body of a key import.
type ImportReq struct {
	PrivateKey string `json:"private_key"`
}

// TxDetails is the status of a transaction on chain together with the record kept when it was sent by this wallet.
type TxDetails struct {
	types.TxStatusInfo
	Record *store.TxRecord `json:"record,omitempty"`
}

// chainOf returns the chain named s, ethereum if empty.
func chainOf(s string) (types.ChainID, error) {
	if s == "" {
		return types.Ethereum, nil
	}

	return types.ParseChainID(s)
}

// reader returns the block reader of the chain queried in r.
func (w *Wallet) reader(r *http.Request) (types.ChainID, block.Chain, error) {
	id, err := chainOf(r.URL.Query().Get("chain"))
	if err != nil {
		return id, nil, err
	}

	c, ok := w.bc[id]
	if !ok {
		return id, nil, fmt.Errorf("%w: no block reader for %s", ErrNoNet, id)
	}

	return id, c, nil
}

// liveHandler replies the service is alive.
func (w *Wallet) liveHandler(rw http.ResponseWriter, r *http.Request) {
	zerolog.Ctx(r.Context()).Debug().Msg("httpreq")
	writeJSON(rw, http.StatusOK, map[string]string{"status": success, "message": "health is working"})
}

// readyHandler replies the chains served and the backing services connected.
func (w *Wallet) readyHandler(rw http.ResponseWriter, r *http.Request) {
	readers := make([]types.ChainID, 0, len(w.bc))

	for _, id := range types.Chains() {
		if _, ok := w.bc[id]; ok {
			readers = append(readers, id)
		}
	}

	reply(rw, r, 0, data{
		"chains":  w.rt.SupportedChains(),
		"readers": readers,
		"store":   w.db != nil,
		"broker":  w.mb != nil,
		"hd":      w.hd != nil,
	}, nil)
}

// networksHandler replies the networks available to the wallet.
func (w *Wallet) networksHandler(rw http.ResponseWriter, r *http.Request) {
	reply(rw, r, 0, data{"networks": w.rt.SupportedChains()}, nil)
}

func (w *Wallet) heightHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		err error
		h   uint64
	)

	defer func() { reply(rw, r, 0, data{"block_height": h}, err) }()

	_, c, err := w.reader(r)
	if err != nil {
		return
	}

	h, err = c.Height(r.Context())
}

func (w *Wallet) latestHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		err error
		b   types.Block
	)

	defer func() { reply(rw, r, 0, data{"latest_block": b}, err) }()

	_, c, err := w.reader(r)
	if err != nil {
		return
	}

	b, err = c.Latest(r.Context())
}

// importHandler takes custody of a private key and replies its address.
func (w *Wallet) importHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		err  error
		req  ImportReq
		addr types.Address
	)

	defer func() { reply(rw, r, 0, data{"address": addr.Value}, err) }()

	if err = decode(r, &req); err != nil {
		return
	}

	addr, err = w.keys.Import(req.PrivateKey)
}

// hdAddrHandler derives the HD wallet key for the wallet, change and id queried, takes custody of it and replies
// its address.
func (w *Wallet) hdAddrHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		err  error
		addr types.Address
	)

	defer func() { reply(rw, r, 0, data{"address": addr.Value}, err) }()

	if w.hd == nil {
		err = ErrNoHD

		return
	}

	q := r.URL.Query()

	wallet, err := strconv.ParseUint(q.Get("wallet"), 0, 32)
	if err != nil {
		err = fmt.Errorf("%w: wallet %q", ErrBadRequest, q.Get("wallet"))

		return
	}

	var change uint8

	switch q.Get("change") {
	case "0", "external":
		change = hd.External
	case "1", "change":
		change = hd.Change
	default:
		err = ErrChange

		return
	}

	id, err := strconv.ParseUint(q.Get("id"), 0, 32)
	if err != nil {
		err = fmt.Errorf("%w: id %q", ErrBadRequest, q.Get("id"))

		return
	}

	_, priv, _, err := w.hd.Address(uint32(wallet), change, uint32(id))
	if err != nil {
		err = fmt.Errorf("%w: hd wallet: %v", types.ErrInvalidKeyMaterial, err) //nolint:errorlint

		return
	}

	key, err := keys.FromBytes(priv)
	if err != nil {
		return
	}

	addr, err = w.keys.Add(key)
}

func (w *Wallet) balanceHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		err error
		bal types.Balance
	)

	defer func() { reply(rw, r, 0, data{"balance": bal}, err) }()

	id, err := chainOf(r.URL.Query().Get("chain"))
	if err != nil {
		return
	}

	bal, err = w.rt.GetBalance(r.Context(), types.NewAddress(id, mux.Vars(r)["address"]))
}

// txHandler replies the status of a transaction, with the record kept if it was sent by this wallet. A changed
// status is saved.
func (w *Wallet) txHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		err error
		tx  TxDetails
	)

	defer func() { reply(rw, r, 0, data{"transaction": tx}, err) }()

	id, err := chainOf(r.URL.Query().Get("chain"))
	if err != nil {
		return
	}

	hash := types.TxHash{Chain: id, Value: mux.Vars(r)["tx_hash"]}

	if tx.TxStatusInfo, err = w.rt.WatchTx(r.Context(), hash); err != nil {
		return
	}

	if w.db == nil {
		return
	}

	// records are saved under the hash returned by the node
	rec, errDB := w.db.GetTx(id.String(), tx.Hash.Value)
	if errDB != nil {
		if !errors.Is(errDB, store.ErrTxNotFound) {
			zerolog.Ctx(r.Context()).Warn().Err(errDB).Msg("cannot read transaction record")
		}

		return
	}

	if s := string(tx.Status); s != rec.Status {
		rec.Status = s
		if errDB = w.db.SaveTx(rec); errDB != nil {
			zerolog.Ctx(r.Context()).Warn().Err(errDB).Msg("cannot update transaction record")
		}
	}

	tx.Record = &rec
}

// sendHandler transfers the native asset of a chain from an address in custody.
func (w *Wallet) sendHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		err  error
		req  SendReq
		hash types.TxHash
	)

	defer func() { reply(rw, r, 0, data{"transaction_hash": hash.Value}, err) }()

	if err = decode(r, &req); err != nil {
		return
	}

	id, err := chainOf(req.Chain)
	if err != nil {
		return
	}

	tr := types.TxRequest{
		From:     types.NewAddress(id, req.From),
		To:       types.NewAddress(id, req.To),
		Amount:   req.Amount,
		GasLimit: req.GasLimit,
		GasPrice: req.GasPrice,
	}

	hash, err = w.send(r, tr, "", req.Amount)
}

// send signs tr with the key held for its sender, broadcasts it and keeps a record. token and amount describe the
// transfer in the record.
func (w *Wallet) send(r *http.Request, tr types.TxRequest, token, amount string) (types.TxHash, error) {
	from, err := w.rt.NormalizeAddress(tr.From)
	if err != nil {
		return types.TxHash{}, err
	}

	key, err := w.keys.Lookup(from)
	if err != nil {
		return types.TxHash{}, err
	}

	tr.From = from

	hash, err := w.rt.SendTransaction(r.Context(), tr, key)
	if err != nil {
		return hash, err
	}

	l := zerolog.Ctx(r.Context())
	l.Info().Str("hash", hash.Value).Str("from", from.Value).Str("to", tr.To.Value).Str("amount", amount).
		Msg("transaction sent")

	if w.db != nil {
		rec := store.TxRecord{
			Net:       hash.Chain.String(),
			Hash:      hash.Value,
			From:      from.Value,
			To:        tr.To.Value,
			Token:     token,
			Amount:    amount,
			Status:    string(types.TxPending),
			CreatedAt: time.Now().UTC(),
		}

		if err = w.db.SaveTx(rec); err != nil {
			l.Warn().Err(err).Str("hash", hash.Value).Msg("cannot record transaction")
		}
	}

	return hash, nil
}

// listen asks the explorer of net to start or stop monitoring obj.
func (w *Wallet) listen(r *http.Request, id types.ChainID, kind int, obj string) (int, error) {
	if w.mb == nil {
		return 0, ErrNoBroker
	}

	wr := msg.WalletReq{Net: id.String(), Type: kind, Obj: strings.ToLower(obj), Act: msg.LISTEN}
	if r.Method == http.MethodDelete {
		wr.Act = msg.UNLISTEN
	}

	if err := w.mb.SendRequest(wr.Net, wr); err != nil {
		return 0, err
	}

	return http.StatusAccepted, nil
}

// listenHandler asks the explorer to start (POST) or stop (DELETE) monitoring the transactions of an address.
func (w *Wallet) listenHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		err    error
		status int
		addr   types.Address
	)

	defer func() { reply(rw, r, status, data{"address": addr.Value}, err) }()

	id, err := chainOf(r.URL.Query().Get("chain"))
	if err != nil {
		return
	}

	if addr, err = w.rt.NormalizeAddress(types.NewAddress(id, mux.Vars(r)["address"])); err != nil {
		return
	}

	status, err = w.listen(r, id, msg.ADDRESS, addr.Value)
}

// listened returns the objects of kind monitored on the chain queried in r.
func (w *Wallet) listened(r *http.Request, kind string) ([]string, error) {
	if w.db == nil {
		return nil, ErrNoStore
	}

	id, err := chainOf(r.URL.Query().Get("chain"))
	if err != nil {
		return nil, err
	}

	l, err := w.db.GetAddresses([]string{id.String()})
	if err != nil {
		return nil, err
	}

	objs := []string{}

	for _, la := range l {
		for _, a := range la.Addr {
			if a.Name == kind || (kind == store.KindAddress && a.Name == "") {
				objs = append(objs, a.Addr)
			}
		}
	}

	return objs, nil
}

// listenedHandler replies the addresses monitored on a chain.
func (w *Wallet) listenedHandler(rw http.ResponseWriter, r *http.Request) {
	addrs, err := w.listened(r, store.KindAddress)
	reply(rw, r, 0, data{"addresses": addrs}, err)
}
