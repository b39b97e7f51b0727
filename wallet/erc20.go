package wallet

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/RustLabx/rstoken/lib/block"
	"github.com/RustLabx/rstoken/lib/block/ethereum"
	"github.com/RustLabx/rstoken/lib/block/types"
	"github.com/RustLabx/rstoken/lib/msg"
	"github.com/RustLabx/rstoken/lib/store"
)

// TokenSendReq is the body of an ERC20 transfer. Amount is in whole tokens.
type TokenSendReq struct {
	SendReq
	Contract string `json:"contract_address"`
}

// tokenReader returns the reader of an ERC20 chain and the canonical contract address.
func (w *Wallet) tokenReader(chain, contract string) (block.Chain, types.Address, error) {
	id, err := chainOf(chain)
	if err != nil {
		return nil, types.Address{}, err
	}

	if id != types.Ethereum {
		return nil, types.Address{}, fmt.Errorf("%w: erc20 tokens on %s", types.ErrNotImplemented, id)
	}

	c, ok := w.bc[id]
	if !ok {
		return nil, types.Address{}, fmt.Errorf("%w: no block reader for %s", ErrNoNet, id)
	}

	addr, err := w.rt.NormalizeAddress(types.NewAddress(id, contract))

	return c, addr, err
}

// tokenBalanceHandler replies the balance of address in tokens of contract_address.
func (w *Wallet) tokenBalanceHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		err error
		bal string
		tok types.Token
	)

	defer func() { reply(rw, r, 0, data{"balance": bal, "symbol": tok.Symbol}, err) }()

	q := r.URL.Query()

	c, contract, err := w.tokenReader(q.Get("chain"), q.Get("contract_address"))
	if err != nil {
		return
	}

	owner, err := w.rt.NormalizeAddress(types.NewAddress(contract.Chain, q.Get("address")))
	if err != nil {
		return
	}

	if tok, err = c.GetToken(contract.Value); err != nil {
		return
	}

	amt, err := c.TokenBalance(owner.Value, contract.Value)
	if err != nil {
		return
	}

	bal = ethereum.FormatUnits(amt, tok.Decimals)
}

// tokenInfoHandler replies name, symbol and decimals of a token.
func (w *Wallet) tokenInfoHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		err error
		tok types.Token
	)

	defer func() { reply(rw, r, 0, data{"info": tok}, err) }()

	c, contract, err := w.tokenReader(r.URL.Query().Get("chain"), mux.Vars(r)["contract"])
	if err != nil {
		return
	}

	tok, err = c.GetToken(contract.Value)
}

// tokenSendHandler transfers tokens from an address in custody. The transfer call is built, signed and sent as any
// other transaction to the contract.
func (w *Wallet) tokenSendHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		err  error
		req  TokenSendReq
		hash types.TxHash
	)

	defer func() { reply(rw, r, 0, data{"transaction_hash": hash.Value}, err) }()

	if err = decode(r, &req); err != nil {
		return
	}

	c, contract, err := w.tokenReader(req.Chain, req.Contract)
	if err != nil {
		return
	}

	to, err := w.rt.NormalizeAddress(types.NewAddress(contract.Chain, req.To))
	if err != nil {
		return
	}

	tok, err := c.GetToken(contract.Value)
	if err != nil {
		return
	}

	amt, err := ethereum.ParseUnits(req.Amount, tok.Decimals)
	if err != nil {
		return
	}

	calldata, err := ethereum.TransferData(to.Value, amt)
	if err != nil {
		return
	}

	tr := types.TxRequest{
		From:     types.NewAddress(contract.Chain, req.From),
		To:       contract,
		Amount:   "0",
		Data:     calldata,
		GasLimit: req.GasLimit,
		GasPrice: req.GasPrice,
	}

	hash, err = w.send(r, tr, contract.Value, req.Amount)
}

// contractListenHandler asks the explorer to start (GET) or stop (DELETE) monitoring the transfers of a token.
func (w *Wallet) contractListenHandler(rw http.ResponseWriter, r *http.Request) {
	var (
		err      error
		status   int
		contract types.Address
	)

	defer func() { reply(rw, r, status, data{"contract": contract.Value}, err) }()

	id, err := chainOf(r.URL.Query().Get("chain"))
	if err != nil {
		return
	}

	if contract, err = w.rt.NormalizeAddress(types.NewAddress(id, mux.Vars(r)["contract"])); err != nil {
		return
	}

	status, err = w.listen(r, id, msg.CONTRACT, contract.Value)
}

// contractsHandler replies the token contracts monitored on a chain.
func (w *Wallet) contractsHandler(rw http.ResponseWriter, r *http.Request) {
	contracts, err := w.listened(r, store.KindContract)
	reply(rw, r, 0, data{"contracts": contracts}, err)
}
