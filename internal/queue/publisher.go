package queue

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/config"
)

// Broker names accepted in BROKER.
const (
	BrokerNone     = "none"
	BrokerRabbitMQ = "rabbitmq"
	BrokerKafka    = "kafka"
)

// Publisher sends booking events to a broker.
type Publisher interface {
	Publish(ctx context.Context, ev BookingEvent) error
	Close() error
}

// NewPublisher returns the publisher selected by cfg.Broker.
func NewPublisher(cfg config.Config) (Publisher, error) {
	switch cfg.Broker {
	case "", BrokerNone:
		return NopPublisher{}, nil
	case BrokerRabbitMQ:
		return NewAMQPPublisher(cfg.RabbitURL), nil
	case BrokerKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("BROKER=kafka requires KAFKA_BROKERS")
		}
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("unsupported BROKER %q", cfg.Broker)
	}
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, ev BookingEvent) error {
	logrus.WithFields(logrus.Fields{"type": ev.Type, "booking_id": ev.BookingID}).Debug("broker disabled; event dropped")
	return nil
}

func (NopPublisher) Close() error { return nil }
