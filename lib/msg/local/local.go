// Package local implements an in-process message broker, used when the wallet and the explorer run in the same
// process. Messages are buffered per network and lost on exit.
package local

import (
	"sync"

	"github.com/RustLabx/rstoken/lib/block/types"
	"github.com/RustLabx/rstoken/lib/msg"
)

const buffer = 64

// Broker keeps a queue of requests and one of events per network.
type Broker struct {
	mu   sync.Mutex
	reqs map[string]chan msg.WalletReq
	eves map[string]chan types.Trans
	done chan struct{}
	once sync.Once
}

// New returns an empty broker.
func New() *Broker {
	return &Broker{
		reqs: make(map[string]chan msg.WalletReq),
		eves: make(map[string]chan types.Trans),
		done: make(chan struct{}),
	}
}

func queue[T any](mu *sync.Mutex, m map[string]chan T, net string) chan T {
	mu.Lock()
	defer mu.Unlock()

	q, ok := m[net]
	if !ok {
		q = make(chan T, buffer)
		m[net] = q
	}

	return q
}

// Setup does nothing, there is nothing to declare.
func (b *Broker) Setup(interface{}) error {
	return nil
}

// Close stops the consumers. Later sends fail with msg.ErrClosed.
func (b *Broker) Close() error {
	b.once.Do(func() { close(b.done) })

	return nil
}

func send[T any](b *Broker, q chan T, v T) error {
	select {
	case <-b.done:
		return msg.ErrClosed
	default:
	}

	select {
	case q <- v:
		return nil
	case <-b.done:
		return msg.ErrClosed
	}
}

// SendRequest queues a wallet request.
func (b *Broker) SendRequest(net string, r msg.WalletReq) error {
	return send(b, queue(&b.mu, b.reqs, net), r)
}

// SendTrans queues transaction events.
func (b *Broker) SendTrans(net string, txs []types.Trans) error {
	q := queue(&b.mu, b.eves, net)

	for _, t := range txs {
		if err := send(b, q, t); err != nil {
			return err
		}
	}

	return nil
}

// consume moves the messages of q to the returned channel, waiting for mut to be unlocked after each one.
func consume[T any](b *Broker, q chan T, mut *sync.Mutex) (<-chan T, <-chan error) {
	out := make(chan T)
	errs := make(chan error)

	go func() {
		defer close(out)
		defer close(errs)

		for {
			select {
			case <-b.done:
				return
			case v := <-q:
				select {
				case out <- v:
				case <-b.done:
					return
				}

				// wait for the consumer to finish processing
				if !msg.Acquire(b.done, mut) {
					return
				}
			}
		}
	}()

	return out, errs
}

// GetEvents consumes the events of net.
func (b *Broker) GetEvents(net string, mut *sync.Mutex) (<-chan types.Trans, <-chan error, error) {
	eves, errs := consume(b, queue(&b.mu, b.eves, net), mut)

	return eves, errs, nil
}

// GetReqs consumes the wallet requests of net.
func (b *Broker) GetReqs(net string, mut *sync.Mutex) (<-chan msg.WalletReq, <-chan error, error) {
	reqs, errs := consume(b, queue(&b.mu, b.reqs, net), mut)

	return reqs, errs, nil
}
