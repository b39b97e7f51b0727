// Package netexplorer keeps the exploring state of one network: the last block scanned, a ring of the latest block
// hashes to check new blocks are chained, and the map of listened objects.
package netexplorer

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RustLabx/rstoken/lib/block/types"
	"github.com/RustLabx/rstoken/lib/store"
)

// Status possible values, control whether a NetExplorer is working or is/has to stop
const (
	WORK int = 0
	STOP int = 1
)

// Values of the monitoring map. Names of listened store addresses carry them too.
const (
	Address  = store.KindAddress
	Contract = store.KindContract
)

// NetExplorer contains the fields and data structures required to manage the exploring of a network.
type NetExplorer struct {
	l      sync.Mutex // l is a mutex to ensure concurrent updating of addresses in the map
	status int
	done   chan struct{}
	Block  uint64                 // last block parsed
	Bh     []string               // contains the last blocks hashes (from Block-1 to Block-maxBlocks)
	Bhi    int                    // index to last block's hash in Bh
	Map    map[string]interface{} // Map of listened objects to their kind
}

// New returns the NetExplorer of net saved in db, or one starting after block start if none was saved. The map holds
// the objects in l.
func New(net string, maxBlocks int, start uint64, l []store.ListenedAddresses, db store.DB) (*NetExplorer, error) {
	if maxBlocks < 1 {
		maxBlocks = 1
	}

	n := &NetExplorer{status: WORK, done: make(chan struct{})}

	s, err := db.LoadExplorer(net)

	switch {
	case errors.Is(err, store.ErrDataNotFound):
		n.Block = start
		n.Bh = make([]string, maxBlocks)
	case err != nil:
		return nil, err
	default:
		n.FromStore(s)

		if len(n.Bh) != maxBlocks {
			// ring size changed, chaining of the next block can not be checked
			n.Bh, n.Bhi = make([]string, maxBlocks), 0
		}
	}

	n.Map = make(map[string]interface{})

	for _, la := range l {
		if la.Net != net {
			continue
		}

		for _, a := range la.Addr {
			kind := Address
			if a.Name == Contract {
				kind = Contract
			}

			n.Map[key(a.Addr)] = kind
		}
	}

	log.Info().Str("net", net).Uint64("block", n.Block).Int("objects", len(n.Map)).Msg("netexplorer loaded")

	return n, nil
}

func key(obj string) string {
	return strings.ToLower(obj)
}

// ScanTxs returns the transactions whose From or To address, or token contract, is being monitored.
func (n *NetExplorer) ScanTxs(txs []types.Trans) []types.Trans {
	r := make([]types.Trans, 0, 4) //nolint:gomnd // more than enough for a block

	n.l.Lock()
	defer n.l.Unlock()

	for _, tx := range txs {
		if n.Map[key(tx.From)] == Address || n.Map[key(tx.To)] == Address ||
			(tx.Token != "" && n.Map[key(tx.Token)] == Contract) {
			r = append(r, tx)
		}
	}

	return r
}

// Chained checks if the supplied hash is the last block's hash
func (n *NetExplorer) Chained(hash string) bool {
	n.l.Lock()
	defer n.l.Unlock()

	return n.Bh[n.Bhi] == hash || n.Bh[n.Bhi] == ""
}

// UpdateChain records hash as the hash of the next block.
func (n *NetExplorer) UpdateChain(hash string) {
	n.l.Lock()
	defer n.l.Unlock()

	n.Block++
	n.Bhi = (n.Bhi + 1) % len(n.Bh)
	n.Bh[n.Bhi] = hash
}

// Rewind forgets the last block so it is scanned again, used when the next block is not chained to it. It returns
// false when there is no hash left in the ring to go back to.
func (n *NetExplorer) Rewind() bool {
	n.l.Lock()
	defer n.l.Unlock()

	if n.Bh[n.Bhi] == "" || n.Block == 0 {
		return false
	}

	n.Bh[n.Bhi] = ""
	n.Bhi = (n.Bhi - 1 + len(n.Bh)) % len(n.Bh)
	n.Block--

	return true
}

// Add adds an object and its value to the monitoring map
func (n *NetExplorer) Add(obj string, value interface{}) {
	n.l.Lock()
	defer n.l.Unlock()

	n.Map[key(obj)] = value
}

// Del deletes a monitored object from the map returning its value and an ok flag.
func (n *NetExplorer) Del(obj string) (value interface{}, ok bool) {
	n.l.Lock()
	defer n.l.Unlock()

	value, ok = n.Map[key(obj)]
	delete(n.Map, key(obj))

	return
}

// Len returns the number of objects monitored.
func (n *NetExplorer) Len() int {
	n.l.Lock()
	defer n.l.Unlock()

	return len(n.Map)
}

// ToStore returns a copy of the state to be saved to store.
func (n *NetExplorer) ToStore() store.NetExplorer {
	n.l.Lock()
	defer n.l.Unlock()

	m := make(map[string]interface{}, len(n.Map))
	for k, v := range n.Map {
		m[k] = v
	}

	return store.NetExplorer{
		Block: n.Block,
		Bh:    append([]string(nil), n.Bh...),
		Bhi:   n.Bhi,
		Map:   m,
	}
}

// FromStore loads the NetExplorer with the values read from store
func (n *NetExplorer) FromStore(s store.NetExplorer) {
	n.l.Lock()
	defer n.l.Unlock()

	n.Block = s.Block
	n.Bh = s.Bh
	n.Bhi = s.Bhi
	n.Map = s.Map
}

// Stop sets status to STOP and wakes up Wait.
func (n *NetExplorer) Stop() {
	n.l.Lock()
	defer n.l.Unlock()

	if n.status != STOP {
		n.status = STOP
		close(n.done)
	}
}

// Status returns the current NetExplorer status
func (n *NetExplorer) Status() int {
	n.l.Lock()
	defer n.l.Unlock()

	return n.status
}

// Wait sleeps for d and reports false if the explorer was stopped meanwhile.
func (n *NetExplorer) Wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-n.done:
		return false
	}
}
