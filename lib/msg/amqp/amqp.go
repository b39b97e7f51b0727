// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ).
package amqp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"

	"github.com/RustLabx/rstoken/lib/block/types"
	"github.com/RustLabx/rstoken/lib/msg"
)

// Exchanges declared by Setup.
const (
	ExchangeRequests = "wr" // wallet requests
	ExchangeEvents   = "ee" // explorer events
)

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection
	mu   sync.Mutex
	ch   *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (*Amqp, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	log.Info().Str("broker", conn.LocalAddr().String()).Msg("connected to amqp broker")

	return &Amqp{conn: conn}, nil
}

// Setup obtains an amqp channel and declares the message broker exchanges:
//
// - wr ("wallet requests"): the wallet service publishes requests to this exchange
//
// - ee ("explorer events"): the explorer service publishes events to this exchange
func (r *Amqp) Setup(interface{}) error {
	// obtain a one-use channel
	channel, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer channel.Close()

	for _, ex := range []string{ExchangeRequests, ExchangeEvents} {
		if err = channel.ExchangeDeclare(ex, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	return nil
}

// Close terminates gracefully the connection to the AMQP message broker.
func (r *Amqp) Close() error {
	r.mu.Lock()
	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Error().Err(err).Msg("closing amqp channel")
		}

		r.ch = nil
	}
	r.mu.Unlock()

	return r.conn.Close()
}

// channel returns the shared channel, opening it if not present.
func (r *Amqp) channel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch == nil {
		ch, err := r.conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("amqp channel: %w", err)
		}

		r.ch = ch
	}

	return r.ch, nil
}

func (r *Amqp) publish(exchange, key string, header amqp.Table, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ch, err := r.channel()
	if err != nil {
		return err
	}

	return ch.Publish(exchange, key, false, false, amqp.Publishing{
		Headers:     header,
		Body:        body,
		ContentType: "application/json",
	})
}

// SendTrans publishes transaction events to the "ee" exchange.
func (r *Amqp) SendTrans(net string, txs []types.Trans) error {
	for _, t := range txs {
		if err := r.publish(ExchangeEvents, net+".trans."+t.Hash, amqp.Table{"x-trans-name": net + "." + t.Hash},
			t); err != nil {
			log.Error().Err(err).Str("net", net).Str("hash", t.Hash).Msg("sending transaction event to broker")

			return fmt.Errorf("send trans: %w", err)
		}
	}

	return nil
}

// SendRequest publishes a new wallet request to the "wr" exchange.
func (r *Amqp) SendRequest(net string, wr msg.WalletReq) error {
	err := r.publish(ExchangeRequests, net+"."+strconv.Itoa(wr.Type)+"."+wr.Obj,
		amqp.Table{"x-wreq-name": net + "." + wr.Obj}, wr)
	if err != nil {
		log.Error().Err(err).Str("net", net).Msg("sending request to broker")

		return fmt.Errorf("send request: %w", err)
	}

	return nil
}

// consume declares the queue of net bound to exchange and returns its deliveries.
func (r *Amqp) consume(exchange, net, consumer string) (<-chan amqp.Delivery, error) {
	ch, err := r.channel()
	if err != nil {
		return nil, err
	}

	queue := exchange + net

	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	if err = ch.QueueBind(queue, net+".*.*", exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}

	msgs, err := ch.Consume(queue, consumer+"-"+net, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}

	return msgs, nil
}

// deliver decodes every delivery into a T pushed to the returned channel. A delivery is acknowledged once mut, locked
// by the caller, is unlocked; deliveries that can not be decoded are reported and rejected.
func deliver[T any](msgs <-chan amqp.Delivery, mut *sync.Mutex) (<-chan T, <-chan error) {
	out := make(chan T)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		for m := range msgs {
			var v T
			if err := json.Unmarshal(m.Body, &v); err != nil {
				_ = m.Nack(false, false)
				errs <- err

				continue
			}

			out <- v

			mut.Lock() // wait for the consumer to finish processing
			_ = m.Ack(false)
		}
	}()

	return out, errs
}

// GetEvents consumes events from the "ee" exchange pushing them to the returned channel. The consumed message is only
// acknowledged when mut is unlocked.
func (r *Amqp) GetEvents(net string, mut *sync.Mutex) (<-chan types.Trans, <-chan error, error) {
	msgs, err := r.consume(ExchangeEvents, net, "wallet")
	if err != nil {
		return nil, nil, err
	}

	eves, errs := deliver[types.Trans](msgs, mut)

	return eves, errs, nil
}

// GetReqs consumes requests from the "wr" exchange for the specified network pushing them to the returned channel.
// The consumed message is only acknowledged when mut is unlocked.
func (r *Amqp) GetReqs(net string, mut *sync.Mutex) (<-chan msg.WalletReq, <-chan error, error) {
	msgs, err := r.consume(ExchangeRequests, net, "explorer")
	if err != nil {
		return nil, nil, err
	}

	reqs, errs := deliver[msg.WalletReq](msgs, mut)

	return reqs, errs, nil
}
