// Package mb opens the message broker named in the configuration.
package mb

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RustLabx/rstoken/lib/msg"
	"github.com/RustLabx/rstoken/lib/msg/amqp"
	"github.com/RustLabx/rstoken/lib/msg/kafka"
	"github.com/RustLabx/rstoken/lib/msg/local"
)

// Broker types.
const (
	AMQP  = "amqp"
	KAFKA = "kafka"
	LOCAL = "local"
)

// Retry is how long to wait for the broker to be ready before trying to connect a second time.
var Retry = 10 * time.Second //nolint:gochecknoglobals // tests shorten it

// New connects to the broker of type mbType in conn and sets it up.
func New(mbType, conn string) (msg.Broker, error) {
	var (
		b   msg.Broker
		err error
	)

	switch mbType {
	case AMQP:
		var a *amqp.Amqp
		if a, err = amqp.New(conn); err != nil {
			log.Warn().Err(err).Dur("retry", Retry).Msg("amqp broker not ready")
			time.Sleep(Retry)

			a, err = amqp.New(conn)
		}

		if err == nil {
			b = a
		}
	case KAFKA:
		var k *kafka.Kafka
		if k, err = kafka.New(conn); err == nil {
			b = k
		}
	case LOCAL:
		b = local.New()
	default:
		return nil, fmt.Errorf("%w: %q", msg.ErrUnknown, mbType)
	}

	if err != nil {
		return nil, err
	}

	if err = b.Setup(nil); err != nil {
		_ = b.Close()

		return nil, err
	}

	return b, nil
}
