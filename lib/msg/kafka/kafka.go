// Package kafka implements the message broker interface on Apache Kafka. Requests of a network go to the topic
// "wr.<net>" and explorer events to "ee.<net>"; consumers commit an offset once the message has been processed.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/RustLabx/rstoken/lib/block/types"
	"github.com/RustLabx/rstoken/lib/msg"
)

// Topic prefixes.
const (
	TopicRequests = "wr"
	TopicEvents   = "ee"
)

// Kafka publishes with one writer and consumes with one reader per subscription.
type Kafka struct {
	brokers []string
	w       *kafka.Writer
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	readers []*kafka.Reader
}

// New returns a broker on the comma separated list of kafka brokers in uri (ie. "localhost:9092").
func New(uri string) (*Kafka, error) {
	var brokers []string

	for _, b := range strings.Split(uri, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers in %q", uri)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Kafka{
		brokers: brokers,
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Topic returns the topic of net with prefix.
func Topic(prefix, net string) string {
	return prefix + "." + net
}

// Setup checks a broker can be reached. Topics are created when first written.
func (k *Kafka) Setup(interface{}) error {
	conn, err := kafka.DialContext(k.ctx, "tcp", k.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka dial: %w", err)
	}

	return conn.Close()
}

// Close stops the readers and flushes the writer.
func (k *Kafka) Close() error {
	k.cancel()

	k.mu.Lock()
	defer k.mu.Unlock()

	errs := []error{k.w.Close()}
	for _, r := range k.readers {
		errs = append(errs, r.Close())
	}

	k.readers = nil

	return errors.Join(errs...)
}

// SendTrans publishes transaction events keyed by hash.
func (k *Kafka) SendTrans(net string, txs []types.Trans) error {
	msgs := make([]kafka.Message, 0, len(txs))

	for _, t := range txs {
		v, err := json.Marshal(t)
		if err != nil {
			return err
		}

		msgs = append(msgs, kafka.Message{Topic: Topic(TopicEvents, net), Key: []byte(t.Hash), Value: v})
	}

	if err := k.w.WriteMessages(k.ctx, msgs...); err != nil {
		log.Error().Err(err).Str("net", net).Int("events", len(txs)).Msg("sending transaction events to kafka")

		return fmt.Errorf("send trans: %w", err)
	}

	return nil
}

// SendRequest publishes a wallet request keyed by its object, so requests for an object keep their order.
func (k *Kafka) SendRequest(net string, wr msg.WalletReq) error {
	v, err := json.Marshal(wr)
	if err != nil {
		return err
	}

	m := kafka.Message{
		Topic:   Topic(TopicRequests, net),
		Key:     []byte(wr.Obj),
		Value:   v,
		Headers: []kafka.Header{{Key: "x-wreq-type", Value: []byte(strconv.Itoa(wr.Type))}},
	}

	if err = k.w.WriteMessages(k.ctx, m); err != nil {
		log.Error().Err(err).Str("net", net).Msg("sending request to kafka")

		return fmt.Errorf("send request: %w", err)
	}

	return nil
}

func (k *Kafka) reader(topic, group string) *kafka.Reader {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: k.brokers,
		GroupID: group,
		Topic:   topic,
	})

	k.mu.Lock()
	k.readers = append(k.readers, r)
	k.mu.Unlock()

	return r
}

// deliver fetches messages of r into the returned channel and commits each once mut, locked by the caller, is
// unlocked.
func deliver[T any](ctx context.Context, r *kafka.Reader, mut *sync.Mutex) (<-chan T, <-chan error) {
	out := make(chan T)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
					report(ctx, errs, err)
				}

				return
			}

			var v T
			if err = json.Unmarshal(m.Value, &v); err != nil {
				report(ctx, errs, err)
			} else {
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}

				// wait for the consumer to finish processing
				if !msg.Acquire(ctx.Done(), mut) {
					return
				}
			}

			if err = r.CommitMessages(ctx, m); err != nil {
				log.Error().Err(err).Str("topic", m.Topic).Msg("committing kafka offset")
			}
		}
	}()

	return out, errs
}

// report hands err to the consumer unless the broker is closed first.
func report(ctx context.Context, errs chan<- error, err error) {
	select {
	case errs <- err:
	case <-ctx.Done():
	}
}

// GetEvents consumes the explorer events of net.
func (k *Kafka) GetEvents(net string, mut *sync.Mutex) (<-chan types.Trans, <-chan error, error) {
	eves, errs := deliver[types.Trans](k.ctx, k.reader(Topic(TopicEvents, net), "wallet-"+net), mut)

	return eves, errs, nil
}

// GetReqs consumes the wallet requests of net.
func (k *Kafka) GetReqs(net string, mut *sync.Mutex) (<-chan msg.WalletReq, <-chan error, error) {
	reqs, errs := deliver[msg.WalletReq](k.ctx, k.reader(Topic(TopicRequests, net), "explorer-"+net), mut)

	return reqs, errs, nil
}
