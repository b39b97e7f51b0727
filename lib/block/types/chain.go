package types

import (
	"fmt"
	"strings"
)

// ChainID identifies one of the supported blockchains. The zero value is not a valid chain.
type ChainID uint8

// Supported chains.
const (
	Ethereum ChainID = iota + 1
	Solana
	Bitcoin
	Sui
)

var chainCodes = map[ChainID]string{ //nolint:gochecknoglobals // closed set
	Ethereum: "eth",
	Solana:   "sol",
	Bitcoin:  "btc",
	Sui:      "sui",
}

var chainNames = map[string]ChainID{ //nolint:gochecknoglobals // closed set
	"eth":      Ethereum,
	"ethereum": Ethereum,
	"sol":      Solana,
	"solana":   Solana,
	"btc":      Bitcoin,
	"bitcoin":  Bitcoin,
	"sui":      Sui,
}

// Chains returns every supported chain.
func Chains() []ChainID {
	return []ChainID{Ethereum, Solana, Bitcoin, Sui}
}

// ParseChainID accepts the short code of a chain or its long name, in any case.
func ParseChainID(s string) (ChainID, error) {
	if c, ok := chainNames[strings.ToLower(s)]; ok {
		return c, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnsupportedChain, s)
}

// String returns the short code of the chain.
func (c ChainID) String() string {
	if s, ok := chainCodes[c]; ok {
		return s
	}

	return fmt.Sprintf("chain(%d)", uint8(c))
}

// Valid reports whether c is one of the supported chains.
func (c ChainID) Valid() bool {
	_, ok := chainCodes[c]

	return ok
}

func (c ChainID) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChain, uint8(c))
	}

	return []byte(c.String()), nil
}

func (c *ChainID) UnmarshalText(b []byte) error {
	id, err := ParseChainID(string(b))
	if err != nil {
		return err
	}

	*c = id

	return nil
}

// Address is an account on a given chain. The same string under two chains is two different addresses; the value
// is not validated here, adapters do that.
type Address struct {
	Chain ChainID `json:"chain"`
	Value string  `json:"address"`
}

// NewAddress returns the address value on chain c.
func NewAddress(c ChainID, value string) Address {
	return Address{Chain: c, Value: value}
}

func (a Address) String() string {
	return a.Chain.String() + ":" + a.Value
}

// Balance of an account in the chain's native asset. Amount is a decimal string in whole units.
type Balance struct {
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}
