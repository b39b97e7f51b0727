package types

import "context"

// TxRequest asks for a transfer of Amount (decimal string in whole units) from From to To. A zero GasLimit, an
// empty GasPrice or nil Data mean the chain default applies.
type TxRequest struct {
	From     Address `json:"from"`
	To       Address `json:"to"`
	Amount   string  `json:"amount"`
	Data     []byte  `json:"data,omitempty"`
	GasLimit uint64  `json:"gas_limit,omitempty"`
	GasPrice string  `json:"gas_price,omitempty"`
}

// UnsignedTx is the output of BuildTx. RawData and Metadata are private to the adapter that built it.
type UnsignedTx struct {
	Chain    ChainID           `json:"chain"`
	RawData  []byte            `json:"raw_data"`
	TxType   string            `json:"tx_type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SignedTx is an UnsignedTx together with its signature, ready to be broadcast.
type SignedTx struct {
	Chain     ChainID `json:"chain"`
	RawData   []byte  `json:"raw_data"`
	Signature []byte  `json:"signature"`
	TxType    string  `json:"tx_type"`
}

// TxHash identifies a broadcast transaction.
type TxHash struct {
	Chain ChainID `json:"chain"`
	Value string  `json:"hash"`
}

func (h TxHash) String() string {
	return h.Chain.String() + ":" + h.Value
}

// TxStatus of a broadcast transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
	TxNotFound  TxStatus = "not_found"
)

// TxStatusInfo is the result of watching a transaction. BlockNumber and Confirmations are only set once the
// transaction has been mined.
type TxStatusInfo struct {
	Hash          TxHash   `json:"hash"`
	Status        TxStatus `json:"status"`
	BlockNumber   *uint64  `json:"block_number,omitempty"`
	Confirmations *uint64  `json:"confirmations,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Key is a signing capability bound to one or more chains. It never exposes its secret.
type Key interface {
	// Chains returns the chains the key can produce addresses and signatures for.
	Chains() []ChainID
	// Address returns the address of the key on chain c.
	Address(c ChainID) (Address, error)
	// Sign signs a 32-byte digest.
	Sign(ctx context.Context, digest []byte) ([]byte, error)
}

// Supports reports whether k can act on chain c.
func Supports(k Key, c ChainID) bool {
	for _, kc := range k.Chains() {
		if kc == c {
			return true
		}
	}

	return false
}
