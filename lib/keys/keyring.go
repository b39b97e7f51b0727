package keys

import (
	"fmt"
	"sort"
	"sync"

	"github.com/RustLabx/rstoken/lib/block/types"
)

// Keyring maps addresses to signing capabilities. A key is stored under every address it can represent, so an
// imported secp256k1 key is found both by its ethereum and its bitcoin address.
type Keyring struct {
	mu   sync.RWMutex
	keys map[types.Address]types.Key
}

// NewKeyring returns an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[types.Address]types.Key)}
}

// Import parses hex key material, stores it and returns its canonical (first chain) address. Importing the same
// material twice overwrites the entry and returns the same address.
func (k *Keyring) Import(material string) (types.Address, error) {
	key, err := ParseSecp256k1(material)
	if err != nil {
		return types.Address{}, err
	}

	return k.Add(key)
}

// Add stores key under all of its addresses and returns the canonical one.
func (k *Keyring) Add(key types.Key) (types.Address, error) {
	chains := key.Chains()
	if len(chains) == 0 {
		return types.Address{}, fmt.Errorf("%w: key supports no chain", types.ErrInvalidKeyMaterial)
	}

	addrs := make([]types.Address, 0, len(chains))

	for _, c := range chains {
		a, err := key.Address(c)
		if err != nil {
			return types.Address{}, fmt.Errorf("keyring: %w", err)
		}

		addrs = append(addrs, a)
	}

	k.mu.Lock()
	for _, a := range addrs {
		k.keys[a] = key
	}
	k.mu.Unlock()

	return addrs[0], nil
}

// Lookup returns the key stored for addr.
func (k *Keyring) Lookup(addr types.Address) (types.Key, error) {
	k.mu.RLock()
	key, ok := k.keys[addr]
	k.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrKeyNotFound, addr)
	}

	return key, nil
}

// Addresses lists every address held, sorted.
func (k *Keyring) Addresses() []types.Address {
	k.mu.RLock()
	addrs := make([]types.Address, 0, len(k.keys))

	for a := range k.keys {
		addrs = append(addrs, a)
	}
	k.mu.RUnlock()

	sort.Slice(addrs, func(i, j int) bool { return addrs[i].String() < addrs[j].String() })

	return addrs
}
