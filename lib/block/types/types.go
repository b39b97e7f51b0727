// Package types common blockchain types.
//
// Besides the block and transaction shapes returned by node readers, it holds the chain-agnostic value objects
// (addresses, balances, transaction requests and their lifecycle stages) shared by the runtime and every adapter.
package types

import (
	"errors"
	"fmt"
)

// Token is a blockchain asset.
type Token struct {
	Name     string      `json:"name"`
	Symbol   string      `json:"symbol"`
	Decimals uint8       `json:"decimals"`
	Data     interface{} `json:"data,omitempty"` // contains specific chain details
}

// Trans contains a simplified number of transaction fields as found in a scanned block. Token is set when the
// transaction is an ERC20 transfer and holds the contract address.
type Trans struct {
	Block  string `json:"block"`
	Hash   string `json:"hash"`
	From   string `json:"from"`
	To     string `json:"to"`
	Token  string `json:"token,omitempty"`
	Value  string `json:"value"`
	Data   string `json:"data,omitempty"`
	Gas    string `json:"gas"`
	Price  uint64 `json:"price"`
	Fee    uint64 `json:"fee"`
	Status uint8  `json:"status"`
	TS     uint32 `json:"ts"`
}

// Block contains a simplified list of block fields.
type Block struct {
	Hash   string  `json:"hash"`
	PHash  string  `json:"parentHash"`
	Number string  `json:"number"`
	TS     string  `json:"timestamp"`
	Tx     []Trans `json:"transactions"`
}

// Block decoding errors.
var (
	ErrBlockDecode   = errors.New("unable to decode block data into Block type")
	ErrNoBlockNumber = errors.New("block data does not contain a block number")
	ErrNoTS          = errors.New("block data does not contain a timestamp")
	ErrNoHash        = errors.New("block data does not contain a hash")
	ErrNoParentHash  = errors.New("block data does not contain a parenthash")
	ErrNoBlock       = errors.New("block not available yet")
	ErrReorg         = errors.New("chain reorganisation deeper than the kept block hashes")
	ErrNoTrx         = errors.New("transaction not found")
	ErrNoTrxHash     = errors.New("malformed tx data in block, field 'hash' missing")
	ErrNoTrxInput    = errors.New("malformed tx data in block, field 'input' missing")
	ErrNoTrxValue    = errors.New("malformed tx data in block, field 'value' missing")
	ErrNoTrxFrom     = errors.New("malformed tx data in block, field 'from' missing")
	ErrTrxWrongLen   = errors.New("malformed tx data in block, field 'input' has wrong length for ERC20.Transfer")
	ErrNoTrxGasUsed  = errors.New("malformed tx data in block, field 'gas' missing")
	ErrNoTrxGasPrice = errors.New("malformed tx data in block, field 'gasPrice' missing")
)

// Runtime errors. Adapters wrap these with fmt.Errorf so callers can classify them with errors.Is.
var (
	ErrChainMismatch      = errors.New("chain mismatch")
	ErrAdapterNotFound    = errors.New("no adapter registered for chain")
	ErrKeyNotFound        = errors.New("key not found")
	ErrInvalidKeyMaterial = errors.New("invalid key material")
	ErrNotImplemented     = errors.New("not implemented")
	ErrBroadcastFailed    = errors.New("broadcast failed")
	ErrNetwork            = errors.New("network error")
	ErrUnsupportedChain   = errors.New("unsupported chain")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidHash        = errors.New("invalid transaction hash")
	ErrInvalidTx          = errors.New("malformed transaction payload")
	ErrSignerMismatch     = errors.New("key does not match the transaction sender")
)

// CheckChain returns ErrChainMismatch when got is not the chain an operation is bound to.
func CheckChain(want, got ChainID) error {
	if want != got {
		return fmt.Errorf("%w: expected %s, got %s", ErrChainMismatch, want, got)
	}

	return nil
}
