// Package kafka moves journal events over a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"budgetbot/internal/events"
)

var retryDelay = 2 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes events keyed by chat id so one chat keeps its order.
type Publisher struct {
	writer messageWriter
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *Publisher) PublishEntry(ctx context.Context, e *events.EntryRecorded) error {
	data, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(e.ChatID, 10)),
		Value: data,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.EventID)},
		},
	})
	if err != nil {
		return fmt.Errorf("write event %s: %w", e.EventID, err)
	}

	slog.InfoContext(ctx, "Published journal entry",
		"event_id", e.EventID,
		"entry_id", e.EntryID,
		"chat_id", e.ChatID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Consumer reads events as part of a consumer group and commits each
// message once its handler succeeded.
type Consumer struct {
	reader messageReader
}

var _ events.Consumer = (*Consumer)(nil)

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

// ConsumeEntries blocks until ctx is done or the reader fails. A failing
// handler is retried until it succeeds, so the group offset never skips an
// entry.
func (c *Consumer) ConsumeEntries(ctx context.Context, handler events.Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err := c.handle(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler events.Handler) error {
	e, err := events.EntryRecordedFromJSON(msg.Value)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping malformed message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err)
		return nil
	}

	for attempt := 1; ; attempt++ {
		err := handler(ctx, e)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.ErrorContext(ctx, "Failed to handle message, retrying",
			"event_id", e.EventID,
			"attempt", attempt,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
