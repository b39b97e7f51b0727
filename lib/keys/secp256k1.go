// Package keys implements in-memory key custody: signing capabilities held by address.
package keys

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/RustLabx/rstoken/lib/block/types"
)

// BitcoinParams selects the network used to encode bitcoin addresses of secp256k1 keys.
var BitcoinParams = &chaincfg.MainNetParams //nolint:gochecknoglobals // set once at startup

// Secp256k1 is a key on the secp256k1 curve. It can act on ethereum and, through its compressed public key, on
// bitcoin (P2PKH).
type Secp256k1 struct {
	priv *ecdsa.PrivateKey
	eth  string
	btc  string
}

// ParseSecp256k1 reads a hex encoded private key, with or without 0x prefix.
func ParseSecp256k1(material string) (*Secp256k1, error) {
	s := strings.TrimSpace(material)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}

	priv, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyMaterial, err) //nolint:errorlint // hide the parser error chain
	}

	return FromECDSA(priv)
}

// FromBytes wraps a raw 32-byte private key, such as one derived from an HD wallet.
func FromBytes(b []byte) (*Secp256k1, error) {
	priv, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyMaterial, err) //nolint:errorlint // see ParseSecp256k1
	}

	return FromECDSA(priv)
}

// FromECDSA wraps priv.
func FromECDSA(priv *ecdsa.PrivateKey) (*Secp256k1, error) {
	pkh, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(crypto.CompressPubkey(&priv.PublicKey)), BitcoinParams)
	if err != nil {
		return nil, fmt.Errorf("%w: bitcoin address: %v", types.ErrInvalidKeyMaterial, err) //nolint:errorlint
	}

	return &Secp256k1{
		priv: priv,
		eth:  crypto.PubkeyToAddress(priv.PublicKey).Hex(),
		btc:  pkh.EncodeAddress(),
	}, nil
}

// Chains is empty for a nil key.
func (k *Secp256k1) Chains() []types.ChainID {
	if k == nil || k.priv == nil {
		return nil
	}

	return []types.ChainID{types.Ethereum, types.Bitcoin}
}

func (k *Secp256k1) Address(c types.ChainID) (types.Address, error) {
	if k == nil || k.priv == nil {
		return types.Address{}, types.ErrKeyNotFound
	}

	switch c {
	case types.Ethereum:
		return types.NewAddress(c, k.eth), nil
	case types.Bitcoin:
		return types.NewAddress(c, k.btc), nil
	default:
		return types.Address{}, fmt.Errorf("%w: secp256k1 key has no %s address", types.ErrChainMismatch, c)
	}
}

// Sign returns a 65-byte [R || S || V] recoverable signature of digest, V being 0 or 1.
func (k *Secp256k1) Sign(ctx context.Context, digest []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if k == nil || k.priv == nil {
		return nil, types.ErrKeyNotFound
	}

	if len(digest) != crypto.DigestLength {
		return nil, fmt.Errorf("secp256k1: digest must be %d bytes, got %d", crypto.DigestLength, len(digest))
	}

	return crypto.Sign(digest, k.priv)
}
