package wallet

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarancss/hd"

	"github.com/RustLabx/rstoken/lib/block"
	"github.com/RustLabx/rstoken/lib/block/ethereum"
	"github.com/RustLabx/rstoken/lib/block/stub"
	"github.com/RustLabx/rstoken/lib/block/types"
	"github.com/RustLabx/rstoken/lib/config"
	"github.com/RustLabx/rstoken/lib/keys"
	"github.com/RustLabx/rstoken/lib/msg"
	"github.com/RustLabx/rstoken/lib/msg/local"
	"github.com/RustLabx/rstoken/lib/store"
	"github.com/RustLabx/rstoken/lib/store/sqlite"
)

const (
	testKey  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testFrom = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testTo   = "0x357dd3856d856197c1a000bbab4abcb97dfc92c4"
	contract = "0xa34de7bd2b4270c0b12d5fd7a0c219a4d68d732f"
	head     = 110
)

// node is an ethereum backend keeping the transactions sent.
type node struct {
	mu    sync.Mutex
	sent  []*ethtypes.Transaction
	mined map[common.Hash]uint64
}

func (n *node) ChainID(context.Context) (*big.Int, error) { return big.NewInt(11155111), nil }

func (n *node) BlockNumber(context.Context) (uint64, error) { return head, nil }

func (n *node) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17)), nil
}

func (n *node) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	return uint64(len(n.sent)), nil
}

func (n *node) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(1e9), nil }

func (n *node) EstimateGas(context.Context, geth.CallMsg) (uint64, error) { return 60000, nil }

func (n *node) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, tx)

	return nil
}

func (n *node) TransactionReceipt(_ context.Context, h common.Hash) (*ethtypes.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if b, ok := n.mined[h]; ok {
		return &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: new(big.Int).SetUint64(b)}, nil
	}

	return nil, geth.NotFound
}

func (n *node) TransactionByHash(_ context.Context, h common.Hash) (*ethtypes.Transaction, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, tx := range n.sent {
		if tx.Hash() == h {
			return tx, true, nil
		}
	}

	return nil, false, geth.NotFound
}

func (n *node) mine(hash string, b uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.mined[common.HexToHash(hash)] = b
}

func (n *node) last() *ethtypes.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.sent[len(n.sent)-1]
}

// reader serves the block and token queries.
type reader struct{}

func (reader) MaxBlocks() int { return 4 }
func (reader) AvgBlock() int  { return 12 }
func (reader) Close()         {}

func (reader) Height(context.Context) (uint64, error) { return head, nil }

func (reader) Latest(context.Context) (types.Block, error) {
	return types.Block{Hash: "0xabc", PHash: "0xabb", Number: "0x6e", TS: "0x1"}, nil
}

func (reader) GetBlock(uint64, bool, interface{}) error { return types.ErrNoBlock }

func (reader) DecodeBlock(interface{}) (types.Block, error) {
	return types.Block{}, types.ErrBlockDecode
}

func (reader) DecodeTxs(interface{}) ([]types.Trans, error) { return nil, types.ErrNoTrx }

func (reader) GetToken(token string) (types.Token, error) {
	if !strings.EqualFold(token, contract) {
		return types.Token{}, fmt.Errorf("%w: not a token", types.ErrNetwork)
	}

	return types.Token{Name: "Test Token", Symbol: "TST", Decimals: 6, Data: token}, nil
}

func (reader) TokenBalance(string, string) (*big.Int, error) { return big.NewInt(1234500), nil }

type env struct {
	w    *Wallet
	srv  *httptest.Server
	node *node
	db   store.DB
	mb   *local.Broker
}

func setup(t *testing.T) *env {
	t.Helper()

	n := &node{mined: make(map[common.Hash]uint64)}

	a, err := ethereum.New(context.Background(), n)
	require.NoError(t, err)

	rt := block.NewRuntime()
	rt.Register(a)
	rt.Register(stub.New(types.Solana, ""))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mb := local.New()
	t.Cleanup(func() { mb.Close() })

	seed, err := hex.DecodeString(config.SeedDefault)
	require.NoError(t, err)

	hdw, err := hd.Init(seed)
	require.NoError(t, err)

	w := New(rt, map[types.ChainID]block.Chain{types.Ethereum: reader{}}, nil, db, mb, hdw)

	srv := httptest.NewServer(w.Router())
	t.Cleanup(srv.Close)

	return &env{w: w, srv: srv, node: n, db: db, mb: mb}
}

// bare returns a wallet on the same chains and keys without store, broker or HD wallet.
func (e *env) bare(t *testing.T) *env {
	t.Helper()

	w := New(e.w.rt, e.w.bc, e.w.keys, nil, nil, nil)

	srv := httptest.NewServer(w.Router())
	t.Cleanup(srv.Close)

	return &env{w: w, srv: srv, node: e.node}
}

// call makes a request and decodes the envelope, data is returned as a generic map.
func (e *env) call(t *testing.T, method, uri string, body interface{}) (int, Response) {
	t.Helper()

	var b bytes.Buffer

	switch v := body.(type) {
	case nil:
	case string:
		b.WriteString(v)
	default:
		require.NoError(t, json.NewEncoder(&b).Encode(v))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, e.srv.URL+uri, &b)
	require.NoError(t, err)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer res.Body.Close()

	assert.NotEmpty(t, res.Header.Get("X-Request-Id"))

	var r Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&r))

	return res.StatusCode, r
}

func field(t *testing.T, r Response, key string) interface{} {
	t.Helper()

	d, ok := r.Data.(map[string]interface{})
	require.True(t, ok, "data %+v", r.Data)

	return d[key]
}

func TestHealth(t *testing.T) {
	e := setup(t)

	res, err := http.Post(e.srv.URL+"/health", "application/json", nil) //nolint:noctx
	require.NoError(t, err)

	var live map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&live))
	res.Body.Close()
	assert.Equal(t, map[string]string{"status": "success", "message": "health is working"}, live)

	status, r := e.call(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{"eth", "sol"}, field(t, r, "chains"))
	assert.Equal(t, []interface{}{"eth"}, field(t, r, "readers"))
	assert.Equal(t, true, field(t, r, "store"))

	status, r = e.call(t, http.MethodGet, "/networks", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{"eth", "sol"}, field(t, r, "networks"))

	status, r = e.call(t, http.MethodPut, "/networks", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, http.StatusMethodNotAllowed, r.Status)

	status, _ = e.call(t, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestBlock(t *testing.T) {
	e := setup(t)

	status, r := e.call(t, http.MethodGet, "/block/height", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, Response{Status: 200, Message: "success", Data: map[string]interface{}{"block_height": float64(head)}}, r)

	status, r = e.call(t, http.MethodGet, "/block/latest?chain=ethereum", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0xabc", field(t, r, "latest_block").(map[string]interface{})["hash"])

	status, r = e.call(t, http.MethodGet, "/block/height?chain=sol", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, http.StatusNotFound, r.Status)
	assert.Nil(t, r.Data)

	status, _ = e.call(t, http.MethodGet, "/block/height?chain=doge", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestBalance(t *testing.T) {
	e := setup(t)

	status, r := e.call(t, http.MethodGet, "/wallet/balance/"+testTo, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]interface{}{"amount": "1.5", "decimals": float64(18), "symbol": "ETH"},
		field(t, r, "balance"))

	status, _ = e.call(t, http.MethodGet, "/wallet/balance/0x1234", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, r = e.call(t, http.MethodGet, "/wallet/balance/abc?chain=sol", nil)
	assert.Equal(t, http.StatusNotImplemented, status)
	assert.Contains(t, r.Message, "sol")

	status, _ = e.call(t, http.MethodGet, "/wallet/balance/abc?chain=btc", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestImportSendWatch(t *testing.T) {
	e := setup(t)

	status, r := e.call(t, http.MethodPost, "/wallet/import", ImportReq{PrivateKey: "0x" + testKey})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, testFrom, field(t, r, "address"))

	status, _ = e.call(t, http.MethodPost, "/wallet/import", ImportReq{PrivateKey: "nope"})
	assert.Equal(t, http.StatusBadRequest, status)

	// lower case sender is found through the canonical address
	status, r = e.call(t, http.MethodPost, "/wallet/send",
		SendReq{From: strings.ToLower(testFrom), To: testTo, Amount: "0.5"})
	require.Equal(t, http.StatusOK, status, r.Message)

	hash, _ := field(t, r, "transaction_hash").(string)
	tx := e.node.last()
	assert.Equal(t, tx.Hash().Hex(), hash)
	assert.Equal(t, "500000000000000000", tx.Value().String())
	assert.Equal(t, common.HexToAddress(testTo), *tx.To())

	rec, err := e.db.GetTx("eth", hash)
	require.NoError(t, err)
	assert.Equal(t, testFrom, rec.From)
	assert.Equal(t, "0.5", rec.Amount)
	assert.Equal(t, "pending", rec.Status)

	status, r = e.call(t, http.MethodGet, "/wallet/transaction/"+hash, nil)
	require.Equal(t, http.StatusOK, status)

	got := field(t, r, "transaction").(map[string]interface{})
	assert.Equal(t, "pending", got["status"])
	assert.Equal(t, "pending", got["record"].(map[string]interface{})["status"])

	e.node.mine(hash, 100)

	// upper case hash reaches the stored record
	status, r = e.call(t, http.MethodGet, "/wallet/transaction/0x"+strings.ToUpper(hash[2:]), nil)
	require.Equal(t, http.StatusOK, status)

	got = field(t, r, "transaction").(map[string]interface{})
	assert.Equal(t, "confirmed", got["status"])
	assert.Equal(t, float64(11), got["confirmations"])
	assert.Equal(t, "confirmed", got["record"].(map[string]interface{})["status"])

	rec, err = e.db.GetTx("eth", hash)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", rec.Status)

	status, r = e.call(t, http.MethodGet, "/wallet/transaction/0x"+strings.Repeat("ab", 32), nil)
	require.Equal(t, http.StatusOK, status)
	got = field(t, r, "transaction").(map[string]interface{})
	assert.Equal(t, "not_found", got["status"])
	assert.Nil(t, got["record"])

	cases := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"unknown sender", SendReq{From: testTo, To: testFrom, Amount: "1"}, http.StatusNotFound},
		{"bad amount", SendReq{From: testFrom, To: testTo, Amount: "-1"}, http.StatusBadRequest},
		{"bad recipient", SendReq{From: testFrom, To: "0x12", Amount: "1"}, http.StatusBadRequest},
		{"bad sender", SendReq{From: "me", To: testTo, Amount: "1"}, http.StatusBadRequest},
		{"bad json", "{", http.StatusBadRequest},
		{"bad chain", SendReq{Chain: "doge", From: testFrom, To: testTo, Amount: "1"}, http.StatusBadRequest},
		{"no adapter", SendReq{Chain: "btc", From: testFrom, To: testTo, Amount: "1"}, http.StatusNotFound},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			status, r := e.call(t, http.MethodPost, "/wallet/send", c.body)
			assert.Equal(t, c.status, status, r.Message)
			assert.Equal(t, c.status, r.Status)
		})
	}

	status, _ = e.call(t, http.MethodGet, "/wallet/transaction/0x01", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHDAddress(t *testing.T) {
	e := setup(t)

	status, r := e.call(t, http.MethodGet, "/wallet/hd?wallet=0&change=external&id=0", nil)
	require.Equal(t, http.StatusOK, status, r.Message)

	addr, _ := field(t, r, "address").(string)
	require.True(t, common.IsHexAddress(addr), addr)

	_, err := e.w.keys.Lookup(types.NewAddress(types.Ethereum, addr))
	require.NoError(t, err)

	status, r = e.call(t, http.MethodGet, "/wallet/hd?wallet=0&change=0&id=0", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, addr, field(t, r, "address"))

	status, r = e.call(t, http.MethodGet, "/wallet/hd?wallet=0&change=change&id=0", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, addr, field(t, r, "address"))

	for _, q := range []string{"wallet=x&change=0&id=0", "wallet=0&change=2&id=0", "wallet=0&change=0"} {
		status, _ = e.call(t, http.MethodGet, "/wallet/hd?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, status, q)
	}

	bare := e.bare(t)
	status, _ = bare.call(t, http.MethodGet, "/wallet/hd?wallet=0&change=0&id=0", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestERC20(t *testing.T) {
	e := setup(t)

	status, r := e.call(t, http.MethodGet, "/erc20/balance?address="+testTo+"&contract_address="+contract, nil)
	require.Equal(t, http.StatusOK, status, r.Message)
	assert.Equal(t, "1.2345", field(t, r, "balance"))
	assert.Equal(t, "TST", field(t, r, "symbol"))

	status, _ = e.call(t, http.MethodGet, "/erc20/balance?address=0x1&contract_address="+contract, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.call(t, http.MethodGet, "/erc20/balance?address="+testTo+"&contract_address="+testTo, nil)
	assert.Equal(t, http.StatusBadGateway, status)

	status, _ = e.call(t, http.MethodGet, "/erc20/balance?chain=sol&address=a&contract_address=b", nil)
	assert.Equal(t, http.StatusNotImplemented, status)

	status, r = e.call(t, http.MethodGet, "/erc20/info/"+contract, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]interface{}{
		"name": "Test Token", "symbol": "TST", "decimals": float64(6), "data": common.HexToAddress(contract).Hex(),
	}, field(t, r, "info"))

	_, err := e.w.keys.Import(testKey)
	require.NoError(t, err)

	send := TokenSendReq{SendReq: SendReq{From: testFrom, To: testTo, Amount: "2.5"}, Contract: contract}

	status, r = e.call(t, http.MethodPost, "/erc20/send", send)
	require.Equal(t, http.StatusOK, status, r.Message)

	tx := e.node.last()
	assert.Equal(t, common.HexToAddress(contract), *tx.To())
	assert.Zero(t, tx.Value().Sign())

	calldata, err := ethereum.TransferData(testTo, big.NewInt(2500000))
	require.NoError(t, err)
	assert.Equal(t, calldata, tx.Data())

	rec, err := e.db.GetTx("eth", field(t, r, "transaction_hash").(string))
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(contract).Hex(), rec.Token)
	assert.Equal(t, "2.5", rec.Amount)

	send.Amount = "0.0000001"
	status, _ = e.call(t, http.MethodPost, "/erc20/send", send)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListen(t *testing.T) {
	e := setup(t)

	mut := new(sync.Mutex)
	mut.Lock()

	reqs, _, err := e.mb.GetReqs("eth", mut)
	require.NoError(t, err)

	next := func() msg.WalletReq {
		select {
		case r := <-reqs:
			mut.Unlock()

			return r
		case <-time.After(5 * time.Second):
			t.Fatal("no wallet request")
		}

		return msg.WalletReq{}
	}

	status, r := e.call(t, http.MethodGet, "/erc20/listen/"+contract, nil)
	require.Equal(t, http.StatusAccepted, status, r.Message)
	assert.Equal(t, http.StatusAccepted, r.Status)
	assert.Equal(t, msg.WalletReq{Net: "eth", Type: msg.CONTRACT, Obj: contract, Act: msg.LISTEN}, next())

	status, _ = e.call(t, http.MethodDelete, "/erc20/listen/"+contract, nil)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, msg.WalletReq{Net: "eth", Type: msg.CONTRACT, Obj: contract, Act: msg.UNLISTEN}, next())

	status, _ = e.call(t, http.MethodPost, "/wallet/listen/"+testFrom, nil)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, msg.WalletReq{Net: "eth", Type: msg.ADDRESS, Obj: strings.ToLower(testFrom), Act: msg.LISTEN},
		next())

	status, _ = e.call(t, http.MethodGet, "/erc20/listen/0x12", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	_, err = e.db.AddAddress(store.Address{Name: store.KindContract, Addr: contract}, "eth")
	require.NoError(t, err)
	_, err = e.db.AddAddress(store.Address{Name: store.KindAddress, Addr: testTo}, "eth")
	require.NoError(t, err)

	status, r = e.call(t, http.MethodGet, "/erc20/listen", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{contract}, field(t, r, "contracts"))

	status, r = e.call(t, http.MethodGet, "/wallet/listen", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{testTo}, field(t, r, "addresses"))

	bare := e.bare(t)
	status, _ = bare.call(t, http.MethodGet, "/erc20/listen/"+contract, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = bare.call(t, http.MethodGet, "/erc20/listen", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestManageEvents(t *testing.T) {
	e := setup(t)

	_, err := e.w.keys.Import(testKey)
	require.NoError(t, err)

	status, r := e.call(t, http.MethodPost, "/wallet/send", SendReq{From: testFrom, To: testTo, Amount: "1"})
	require.Equal(t, http.StatusOK, status, r.Message)

	hash := field(t, r, "transaction_hash").(string)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.w.ManageEvents(ctx))

	e.node.mine(hash, head)
	require.NoError(t, e.mb.SendTrans("eth", []types.Trans{
		{Hash: "0x" + strings.Repeat("cd", 32)},
		{Hash: hash, From: strings.ToLower(testFrom), To: testTo, Value: "0x0de0b6b3a7640000"},
	}))

	require.Eventually(t, func() bool {
		rec, err := e.db.GetTx("eth", hash)

		return err == nil && rec.Status == string(types.TxConfirmed)
	}, 5*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, e.bare(t).w.ManageEvents(ctx), ErrNoBroker)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("%w: sol", types.ErrNotImplemented), http.StatusNotImplemented},
		{types.ErrKeyNotFound, http.StatusNotFound},
		{types.ErrAdapterNotFound, http.StatusNotFound},
		{store.ErrTxNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: nonce: %w", types.ErrNetwork, errors.New("eof")), http.StatusBadGateway},
		{types.ErrBroadcastFailed, http.StatusBadGateway},
		{types.ErrChainMismatch, http.StatusBadRequest},
		{types.ErrInvalidAmount, http.StatusBadRequest},
		{types.ErrSignerMismatch, http.StatusBadRequest},
		{msg.ErrBadRequest, http.StatusBadRequest},
		{ErrNoStore, http.StatusServiceUnavailable},
		{msg.ErrClosed, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		assert.Equal(t, c.status, statusOf(c.err), "%v", c.err)
	}
}

func TestInitStop(t *testing.T) {
	w := New(block.NewRuntime(), nil, keys.NewKeyring(), nil, nil, nil)

	done := make(chan string)

	go func() { done <- w.Init("127.0.0.1", "0", "", "", "") }()

	w.Stop()
	w.Stop()

	select {
	case s := <-done:
		assert.Equal(t, "shutdown http server:<nil>, https server:<nil>", s)
	case <-time.After(5 * time.Second):
		t.Fatal("servers not shut down")
	}
}
