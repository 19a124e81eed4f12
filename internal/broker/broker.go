// Package broker opens the events transport selected by configuration.
package broker

import (
	"errors"
	"fmt"

	"budgetbot/internal/amqp"
	"budgetbot/internal/config"
	"budgetbot/internal/events"
	"budgetbot/internal/kafka"
)

const (
	None  = "none"
	AMQP  = "amqp"
	Kafka = "kafka"
)

// ErrDisabled is returned by NewConsumer when no broker is configured.
var ErrDisabled = errors.New("events backend disabled")

// NewPublisher returns nil, nil when events are disabled.
func NewPublisher(cfg *config.Config) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case None, "":
		return nil, nil
	case AMQP:
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("connect to AMQP: %w", err)
		}
		return client, nil
	case Kafka:
		return kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
	}
}

func NewConsumer(cfg *config.Config) (events.Consumer, error) {
	switch cfg.EventsBackend {
	case None, "":
		return nil, ErrDisabled
	case AMQP:
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("connect to AMQP: %w", err)
		}
		return client, nil
	case Kafka:
		return kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
	}
}
