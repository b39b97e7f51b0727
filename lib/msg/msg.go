// Package msg defines the interface for different message brokers.
//
// The wallet publishes WalletReq messages asking the explorer to listen (or stop listening) to objects of a network,
// and the explorer publishes the matching transactions as types.Trans events. Consumers acknowledge a message by
// unlocking the mutex given when they subscribed: the broker locks it again before taking the next message, so a
// message is only acknowledged once it has been fully dealt with.
package msg

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RustLabx/rstoken/lib/block/types"
)

// Types of object for wallet requests.
const (
	EXIT     = -1
	ADDRESS  = 0
	TX       = 1
	CONTRACT = 2 // token contract, all its transfers are listened
)

// Actions to be applied to objects for wallet requests.
const (
	LISTEN   = 0
	UNLISTEN = 1
)

// Errors returned
var (
	ErrBadRequest = errors.New("malformed wallet request")
	ErrClosed     = errors.New("message broker closed")
	ErrUnknown    = errors.New("unknown message broker type")
)

// WalletReq defines the message that wallet service publishes to explorer to ask to explore an object.
type WalletReq struct {
	Net  string `json:"net"`
	Type int    `json:"type"` // type of object
	Obj  string `json:"obj"`
	Act  int    `json:"act"` // action to be applied
}

// Validate checks r is a request for net.
func (r WalletReq) Validate(net string) error {
	switch {
	case r.Net != net:
		return fmt.Errorf("%w: net %q, want %q", ErrBadRequest, r.Net, net)
	case r.Type != ADDRESS && r.Type != TX && r.Type != CONTRACT:
		return fmt.Errorf("%w: type %d", ErrBadRequest, r.Type)
	case r.Obj == "":
		return fmt.Errorf("%w: missing object", ErrBadRequest)
	case r.Act != LISTEN && r.Act != UNLISTEN:
		return fmt.Errorf("%w: action %d", ErrBadRequest, r.Act)
	}

	return nil
}

// Broker is implemented by every message broker.
type Broker interface {
	Setup(interface{}) error
	Close() error

	// methods for wallet service
	SendRequest(net string, r WalletReq) error
	GetEvents(net string, mut *sync.Mutex) (<-chan types.Trans, <-chan error, error)

	// methods for explorer service
	GetReqs(net string, mut *sync.Mutex) (<-chan WalletReq, <-chan error, error)
	SendTrans(net string, t []types.Trans) error
}

// Acquire locks mut, giving up when done is closed first. Brokers use it to wait for a consumer acknowledgement without
// outliving their own shutdown.
func Acquire(done <-chan struct{}, mut *sync.Mutex) bool {
	if mut.TryLock() {
		return true
	}

	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()

	for {
		select {
		case <-done:
			return false
		case <-t.C:
			if mut.TryLock() {
				return true
			}
		}
	}
}
