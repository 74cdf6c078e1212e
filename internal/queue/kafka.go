package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaPublisher writes booking events to a Kafka topic, keyed by booking
// id so every event of one booking lands on the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(strconv.FormatUint(ev.BookingID, 10)),
		Value:   body,
		Time:    ev.OccurredAt,
		Headers: []kafka.Header{{Key: "type", Value: []byte(ev.Type)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// StartKafkaBookingConsumer reads booking events from topic as part of
// groupID and appends each to the booking log at logPath. It returns when
// ctx is cancelled or the reader fails for good.
func StartKafkaBookingConsumer(ctx context.Context, brokers []string, topic, groupID, logPath string) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	log := logrus.WithFields(logrus.Fields{"component": "booking-consumer", "broker": BrokerKafka})
	log.Info("consumer started")
	return consumeKafka(ctx, reader, logPath, log)
}

type kafkaFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

var errReaderClosed = errors.New("kafka reader closed")

// consumeKafka commits a message only once it is in the log, or once it is
// known to be unloggable. A failed write is retried, since committing a
// later offset would skip it.
func consumeKafka(ctx context.Context, r kafkaFetcher, logPath string, log *logrus.Entry) error {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return errReaderClosed
			}
			log.WithError(err).Warn("fetch failed")
			if !sleep(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}

		entry := log.WithFields(logrus.Fields{"partition": msg.Partition, "offset": msg.Offset})
		for {
			err = appendToLog(logPath, msg.Value)
			if err == nil {
				break
			}
			if errors.Is(err, errBadEvent) {
				entry.WithError(err).Error("skipping bad message")
				break
			}
			entry.WithError(err).Warn("append failed, retrying")
			if !sleep(ctx, time.Second) {
				return ctx.Err()
			}
		}
		if err := r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			entry.WithError(err).Warn("commit failed")
		}
	}
}
