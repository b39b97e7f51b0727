// Package ethereum implements the adapter and the node reader for ethereum networks.
//
// The adapter drives the transaction lifecycle through go-ethereum: legacy EIP-155 transactions are RLP encoded
// when built, the signing hash is handed to the key capability, and the signature is attached again before
// broadcasting. The node reader (see Node) scans raw blocks and reads ERC20 token data through ethcli.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"github.com/RustLabx/rstoken/lib/block/types"
)

// Native asset.
const (
	Decimals uint8 = 18
	Symbol         = "ETH"
)

// TxTypeLegacy tags transactions built by this adapter.
const TxTypeLegacy = "eth_legacy"

// Metadata keys of the unsigned transactions.
const (
	MetaFrom    = "from"
	MetaChainID = "chainId"
	MetaSigHash = "sigHash"
)

// Backend is the subset of an ethereum JSON-RPC client used by the adapter. *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call geth.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *ethtypes.Transaction, isPending bool, err error)
}

// Adapter implements the transaction lifecycle for one ethereum network.
type Adapter struct {
	b       Backend
	chainID *big.Int
	signer  ethtypes.Signer
	lim     *rate.Limiter
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRateLimit limits the calls made to the node to rps per second. Zero or negative means no limit.
func WithRateLimit(rps float64) Option {
	return func(a *Adapter) {
		if rps > 0 {
			a.lim = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// DialClient connects to an ethereum node. secret, if given, is sent as the basic authentication header.
func DialClient(ctx context.Context, node, secret string) (*ethclient.Client, error) {
	var opts []rpc.ClientOption

	if secret != "" {
		opts = append(opts, rpc.WithHTTPAuth(func(h http.Header) error {
			h.Set("Authorization", "Basic "+secret)

			return nil
		}))
	}

	c, err := rpc.DialOptions(ctx, node, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to ethereum node in %s: %w", node, err)
	}

	return ethclient.NewClient(c), nil
}

// New returns an adapter on top of b. The network chain id is read once here.
func New(ctx context.Context, b Backend, opts ...Option) (*Adapter, error) {
	a := &Adapter{b: b}

	for _, o := range opts {
		o(a)
	}

	if err := a.wait(ctx); err != nil {
		return nil, err
	}

	id, err := b.ChainID(ctx)
	if err != nil {
		return nil, netErr("chain id", err)
	}

	a.chainID = id
	a.signer = ethtypes.NewEIP155Signer(id)

	return a, nil
}

func (a *Adapter) ChainID() types.ChainID {
	return types.Ethereum
}

// NetworkID returns the EIP-155 chain id of the network.
func (a *Adapter) NetworkID() *big.Int {
	return new(big.Int).Set(a.chainID)
}

// NormalizeAddress returns the checksummed form of addr.
func (a *Adapter) NormalizeAddress(addr types.Address) (types.Address, error) {
	h, err := hexAddress(addr)
	if err != nil {
		return addr, err
	}

	return types.NewAddress(types.Ethereum, h.Hex()), nil
}

func (a *Adapter) GetBalance(ctx context.Context, addr types.Address) (types.Balance, error) {
	account, err := hexAddress(addr)
	if err != nil {
		return types.Balance{}, err
	}

	if err = a.wait(ctx); err != nil {
		return types.Balance{}, err
	}

	wei, err := a.b.BalanceAt(ctx, account, nil)
	if err != nil {
		return types.Balance{}, netErr("balance", err)
	}

	return types.Balance{Amount: FormatUnits(wei, Decimals), Decimals: Decimals, Symbol: Symbol}, nil
}

// BuildTx encodes req as a legacy transaction. Amount is in ether, GasPrice in wei. The nonce is the sender's
// pending nonce; a missing gas price or limit is asked to the node.
func (a *Adapter) BuildTx(ctx context.Context, req types.TxRequest) (types.UnsignedTx, error) {
	from, err := hexAddress(req.From)
	if err != nil {
		return types.UnsignedTx{}, err
	}

	to, err := hexAddress(req.To)
	if err != nil {
		return types.UnsignedTx{}, err
	}

	value, err := ParseUnits(req.Amount, Decimals)
	if err != nil {
		return types.UnsignedTx{}, err
	}

	var price *big.Int

	if req.GasPrice != "" {
		var ok bool
		if price, ok = new(big.Int).SetString(req.GasPrice, 10); !ok || price.Sign() < 0 {
			return types.UnsignedTx{}, fmt.Errorf("%w: gas price %q", types.ErrInvalidAmount, req.GasPrice)
		}
	}

	if err = a.wait(ctx); err != nil {
		return types.UnsignedTx{}, err
	}

	nonce, err := a.b.PendingNonceAt(ctx, from)
	if err != nil {
		return types.UnsignedTx{}, netErr("nonce", err)
	}

	if price == nil {
		if err = a.wait(ctx); err != nil {
			return types.UnsignedTx{}, err
		}

		if price, err = a.b.SuggestGasPrice(ctx); err != nil {
			return types.UnsignedTx{}, netErr("gas price", err)
		}
	}

	gas := req.GasLimit
	if gas == 0 {
		if err = a.wait(ctx); err != nil {
			return types.UnsignedTx{}, err
		}

		call := geth.CallMsg{From: from, To: &to, GasPrice: price, Value: value, Data: req.Data}
		if gas, err = a.b.EstimateGas(ctx, call); err != nil {
			return types.UnsignedTx{}, netErr("estimate gas", err)
		}
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: price,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     req.Data,
	})

	raw, err := tx.MarshalBinary()
	if err != nil {
		return types.UnsignedTx{}, fmt.Errorf("%w: %v", types.ErrInvalidTx, err) //nolint:errorlint
	}

	return types.UnsignedTx{
		Chain:   types.Ethereum,
		RawData: raw,
		TxType:  TxTypeLegacy,
		Metadata: map[string]string{
			MetaFrom:    from.Hex(),
			MetaChainID: a.chainID.String(),
			MetaSigHash: a.signer.Hash(tx).Hex(),
		},
	}, nil
}

// SignTx hands the EIP-155 signing hash of utx to key. The key must act on ethereum and be the sender.
func (a *Adapter) SignTx(ctx context.Context, utx types.UnsignedTx, key types.Key) (types.SignedTx, error) {
	if err := types.CheckChain(types.Ethereum, utx.Chain); err != nil {
		return types.SignedTx{}, err
	}

	if key == nil || len(key.Chains()) == 0 {
		return types.SignedTx{}, fmt.Errorf("%w: no signing key", types.ErrKeyNotFound)
	}

	if !types.Supports(key, types.Ethereum) {
		return types.SignedTx{}, fmt.Errorf("%w: key cannot sign for %s", types.ErrChainMismatch, types.Ethereum)
	}

	tx, err := decodeTx(utx.RawData)
	if err != nil {
		return types.SignedTx{}, err
	}

	signer, err := key.Address(types.Ethereum)
	if err != nil {
		return types.SignedTx{}, err
	}

	if from := utx.Metadata[MetaFrom]; from != "" && !strings.EqualFold(from, signer.Value) {
		return types.SignedTx{}, fmt.Errorf("%w: sender %s, key %s", types.ErrSignerMismatch, from, signer.Value)
	}

	sig, err := key.Sign(ctx, a.signer.Hash(tx).Bytes())
	if err != nil {
		return types.SignedTx{}, fmt.Errorf("sign %s: %w", types.Ethereum, err)
	}

	return types.SignedTx{Chain: types.Ethereum, RawData: utx.RawData, Signature: sig, TxType: utx.TxType}, nil
}

// SendTx rebuilds the signed transaction and broadcasts it. A payload that can not be rebuilt or a transaction
// rejected by the node is ErrBroadcastFailed; a transport failure is ErrNetwork.
func (a *Adapter) SendTx(ctx context.Context, stx types.SignedTx) (types.TxHash, error) {
	if err := types.CheckChain(types.Ethereum, stx.Chain); err != nil {
		return types.TxHash{}, err
	}

	tx, err := decodeTx(stx.RawData)
	if err != nil {
		return types.TxHash{}, fmt.Errorf("%w: %w", types.ErrBroadcastFailed, err)
	}

	if len(stx.Signature) != crypto.SignatureLength {
		return types.TxHash{}, fmt.Errorf("%w: signature has %d bytes, want %d", types.ErrBroadcastFailed,
			len(stx.Signature), crypto.SignatureLength)
	}

	signed, err := tx.WithSignature(a.signer, stx.Signature)
	if err != nil {
		return types.TxHash{}, fmt.Errorf("%w: %v", types.ErrBroadcastFailed, err) //nolint:errorlint
	}

	if err = a.wait(ctx); err != nil {
		return types.TxHash{}, err
	}

	if err = a.b.SendTransaction(ctx, signed); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return types.TxHash{}, fmt.Errorf("%w: %s", types.ErrBroadcastFailed, rpcErr.Error())
		}

		return types.TxHash{}, netErr("send", err)
	}

	return types.TxHash{Chain: types.Ethereum, Value: signed.Hash().Hex()}, nil
}

// WatchTx reports confirmed (or failed when the receipt status is 0) once a receipt exists, pending when the node
// knows the transaction but has not mined it, not_found otherwise. Confirmations count the receipt block.
func (a *Adapter) WatchTx(ctx context.Context, h types.TxHash) (types.TxStatusInfo, error) {
	if err := types.CheckChain(types.Ethereum, h.Chain); err != nil {
		return types.TxStatusInfo{}, err
	}

	b, err := hexutil.Decode(h.Value)
	if err != nil || len(b) != common.HashLength {
		return types.TxStatusInfo{}, fmt.Errorf("%w: %q", types.ErrInvalidHash, h.Value)
	}

	hash := common.BytesToHash(b)
	info := types.TxStatusInfo{Hash: types.TxHash{Chain: types.Ethereum, Value: hash.Hex()}}

	if err = a.wait(ctx); err != nil {
		return info, err
	}

	rcpt, err := a.b.TransactionReceipt(ctx, hash)

	switch {
	case err == nil:
		if err = a.wait(ctx); err != nil {
			return info, err
		}

		head, errHead := a.b.BlockNumber(ctx)
		if errHead != nil {
			return info, netErr("block number", errHead)
		}

		block := rcpt.BlockNumber.Uint64()
		conf := uint64(1)

		if head > block {
			conf = head - block + 1
		}

		info.BlockNumber, info.Confirmations = &block, &conf
		info.Status = types.TxConfirmed

		if rcpt.Status == ethtypes.ReceiptStatusFailed {
			info.Status = types.TxFailed
			info.Error = "transaction reverted"
		}
	case errors.Is(err, geth.NotFound):
		if err = a.wait(ctx); err != nil {
			return info, err
		}

		if _, _, err = a.b.TransactionByHash(ctx, hash); err != nil {
			if errors.Is(err, geth.NotFound) {
				info.Status = types.TxNotFound

				return info, nil
			}

			return info, netErr("transaction", err)
		}

		info.Status = types.TxPending
	default:
		return info, netErr("receipt", err)
	}

	return info, nil
}

// Close closes the backend if it can be closed.
func (a *Adapter) Close() {
	if c, ok := a.b.(interface{ Close() }); ok {
		c.Close()
	}
}

func (a *Adapter) wait(ctx context.Context) error {
	if a.lim == nil {
		return nil
	}

	if err := a.lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	return nil
}

// hexAddress validates an ethereum address.
func hexAddress(addr types.Address) (common.Address, error) {
	if err := types.CheckChain(types.Ethereum, addr.Chain); err != nil {
		return common.Address{}, err
	}

	if !common.IsHexAddress(addr.Value) {
		return common.Address{}, fmt.Errorf("%w: %q", types.ErrInvalidAddress, addr.Value)
	}

	return common.HexToAddress(addr.Value), nil
}

func decodeTx(raw []byte) (*ethtypes.Transaction, error) {
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidTx, err) //nolint:errorlint
	}

	return tx, nil
}

func netErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrNetwork, op, err)
}
