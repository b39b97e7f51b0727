package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/tarancss/ethcli"

	"github.com/RustLabx/rstoken/lib/block/types"
)

// avgBlock is the average time to mine a block in seconds.
const avgBlock = 12

// Transaction status constants of scanned transactions.
const (
	TrxPending uint8 = 0
	TrxFailed  uint8 = 1
	TrxSuccess uint8 = 2
)

// HeadReader returns the current head of the chain. *ethclient.Client satisfies it.
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Node reads blocks and token data from an ethereum node. Blocks are fetched raw (JSON maps) so they can be scanned
// without decoding every transaction type.
type Node struct {
	c    *ethcli.EthCli
	head HeadReader
	mb   int
}

// NewNode returns a reader connected to node, using secret if necessary for authentication. maxBlocks is the
// number of block hashes kept by explorers to detect reorganisations.
func NewNode(node, secret string, maxBlocks int, head HeadReader) (*Node, error) {
	c := ethcli.Init(node, secret)
	if c == nil {
		return nil, fmt.Errorf("cannot connect to ethereum node in %s", node)
	}

	return &Node{c: c, head: head, mb: maxBlocks}, nil
}

// MaxBlocks returns how many blocks will be taken into account for uncle management.
func (n *Node) MaxBlocks() int {
	return n.mb
}

// AvgBlock returns the average time to mine a block in seconds.
func (n *Node) AvgBlock() int {
	return avgBlock
}

// Close ends the connection.
func (n *Node) Close() {
	n.c.End()
}

// Height returns the number of the last mined block.
func (n *Node) Height(ctx context.Context) (uint64, error) {
	h, err := n.head.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: block number: %w", types.ErrNetwork, err)
	}

	return h, nil
}

// Latest returns the last mined block with its transaction hashes.
func (n *Node) Latest(ctx context.Context) (types.Block, error) {
	h, err := n.Height(ctx)
	if err != nil {
		return types.Block{}, err
	}

	var raw map[string]interface{}
	if err = n.GetBlock(h, false, &raw); err != nil {
		return types.Block{}, err
	}

	b, err := n.DecodeBlock(raw)
	if err != nil {
		return b, err
	}

	b.Tx, err = n.DecodeTxs(raw)

	return b, err
}

// GetBlock loads into response (a *map[string]interface{}) the requested block. If full, transactions come with
// all their fields, otherwise only their hashes.
func (n *Node) GetBlock(block uint64, full bool, response interface{}) error {
	m, ok := response.(*map[string]interface{})
	if !ok {
		return types.ErrBlockDecode
	}

	err := n.c.GetBlockByNumber(block, full, m)
	if errors.Is(err, ethcli.ErrNoBlock) {
		return types.ErrNoBlock
	}

	return err
}

// DecodeBlock returns the header values of a block loaded by GetBlock.
func (n *Node) DecodeBlock(t interface{}) (types.Block, error) {
	var b types.Block

	m, ok := t.(map[string]interface{})
	if !ok {
		return b, types.ErrBlockDecode
	}

	fields := []struct {
		key string
		dst *string
		err error
	}{
		{"hash", &b.Hash, types.ErrNoHash},
		{"parentHash", &b.PHash, types.ErrNoParentHash},
		{"number", &b.Number, types.ErrNoBlockNumber},
		{"timestamp", &b.TS, types.ErrNoTS},
	}

	for _, f := range fields {
		if *f.dst, ok = m[f.key].(string); !ok {
			return b, f.err
		}
	}

	return b, nil
}

// DecodeTxs returns the transactions of a block loaded by GetBlock. ERC20 transfers are decoded from their input:
// From/To/Value are those of the token transfer and Token is the contract address.
func (n *Node) DecodeTxs(t interface{}) ([]types.Trans, error) {
	m, ok := t.(map[string]interface{})
	if !ok {
		return nil, types.ErrNoTrx
	}

	list, ok := m["transactions"].([]interface{})
	if !ok {
		return nil, types.ErrNoTrx
	}

	txs := make([]types.Trans, len(list))

	for i, item := range list {
		switch v := item.(type) {
		case string:
			txs[i].Hash = v // only transaction hashes
		case map[string]interface{}:
			if err := decodeTrans(v, &txs[i]); err != nil {
				return nil, err
			}
		default:
			log.Warn().Str("type", fmt.Sprintf("%T", item)).Msg("unknown transaction type in block")
		}
	}

	return txs, nil
}

func decodeTrans(obj map[string]interface{}, tx *types.Trans) error {
	var ok bool

	if tx.Block, ok = obj["blockNumber"].(string); !ok {
		return types.ErrNoBlockNumber
	}

	if tx.Hash, ok = obj["hash"].(string); !ok {
		return types.ErrNoTrxHash
	}

	if tx.To, ok = obj["to"].(string); !ok {
		return nil // contract creation, details are not needed
	}

	input, ok := obj["input"].(string)
	if !ok {
		return types.ErrNoTrxInput
	}

	if len(input) > 10 && isTransfer(input[2:10]) {
		if err := decodeTransfer(input, tx); err != nil {
			return err
		}

		tx.Token, _ = obj["to"].(string)

		if tx.From == "" {
			if tx.From, ok = obj["from"].(string); !ok {
				return types.ErrNoTrxFrom
			}
		}
	} else {
		if tx.Value, ok = obj["value"].(string); !ok {
			return types.ErrNoTrxValue
		}

		if tx.From, ok = obj["from"].(string); !ok {
			return types.ErrNoTrxFrom
		}

		tx.Data = input
	}

	if tx.Gas, ok = obj["gas"].(string); !ok {
		return types.ErrNoTrxGasUsed
	}

	price, ok := obj["gasPrice"].(string)
	if !ok {
		return types.ErrNoTrxGasPrice
	}

	var err error
	if tx.Price, err = strconv.ParseUint(price, 0, 64); err != nil {
		return fmt.Errorf("gasPrice %q: %w", price, err)
	}

	// status comes with the receipt, timestamp with the block
	tx.Status = TrxPending

	return nil
}

// decodeTransfer reads the recipient and amount (and sender for transferFrom) of an ERC20 call input. Arguments
// are 32-byte words, addresses left padded with 24 zeroes.
func decodeTransfer(input string, tx *types.Trans) error {
	word := func(i int) string { return input[10+64*i : 10+64*(i+1)] }

	args := 2
	if m := input[2:10]; m == ERC20transferFrom || m == ERC20transferFrom256 {
		args = 3
	}

	if len(input) < 10+64*args {
		return types.ErrTrxWrongLen
	}

	if args == 3 {
		tx.From = "0x" + word(0)[24:]
	}

	tx.To = "0x" + word(args - 2)[24:]
	tx.Value = trimAmount(word(args - 1))

	return nil
}

// trimAmount drops the left zeroes of a hex word keeping an even number of digits.
func trimAmount(w string) string {
	j := 0
	for j < len(w) && w[j] == '0' {
		j++
	}

	if j == len(w) {
		return "0x00"
	}

	if j%2 == 1 {
		j--
	}

	return "0x" + w[j:]
}

// GetToken returns the name, symbol and decimals of a valid ERC20 token.
func (n *Node) GetToken(token string) (t types.Token, err error) {
	if t.Name, err = n.c.GetTokenName(token); err != nil {
		return t, fmt.Errorf("%w: token name: %w", types.ErrNetwork, err)
	}

	if t.Symbol, err = n.c.GetTokenSymbol(token); err != nil {
		return t, fmt.Errorf("%w: token symbol: %w", types.ErrNetwork, err)
	}

	dec, err := n.c.GetTokenDecimals(token)
	if err != nil {
		return t, fmt.Errorf("%w: token decimals: %w", types.ErrNetwork, err)
	}

	t.Decimals = uint8(dec)
	t.Data = token

	return t, nil
}

// TokenBalance returns the balance of address in token, in the token's smallest unit.
func (n *Node) TokenBalance(address, token string) (*big.Int, error) {
	eth, tok := new(big.Int), new(big.Int)

	if err := n.c.GetBalance(address, token, eth, tok); err != nil {
		return nil, fmt.Errorf("%w: token balance: %w", types.ErrNetwork, err)
	}

	return tok, nil
}
