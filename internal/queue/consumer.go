package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// StartBookingConsumer connects to RabbitMQ, declares the booking queue and
// appends one line per message to logPath. Lost connections are retried
// with exponential backoff capped at 30s. It returns when ctx is cancelled.
func StartBookingConsumer(ctx context.Context, url, logPath string) error {
	log := logrus.WithFields(logrus.Fields{"component": "booking-consumer", "broker": BrokerRabbitMQ})
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).Warnf("dial failed; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logPath, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logPath string, log *logrus.Entry) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("set QoS failed")
	}
	if err := declareBookingQueue(ch); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(BookingQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := appendToLog(logPath, d.Body); err != nil {
				log.WithError(err).Error("handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func appendToLog(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return handleMessage(body, f)
}

// errBadEvent marks a message that can never be logged, as opposed to a
// failure writing the log.
var errBadEvent = errors.New("bad booking event")

// handleMessage decodes one booking event and writes its log line to w.
func handleMessage(body []byte, w io.Writer) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", errBadEvent, err)
	}
	if ev.Type == "" || ev.BookingID == 0 {
		return fmt.Errorf("%w: incomplete event %q", errBadEvent, body)
	}
	if _, err := io.WriteString(w, formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(ev BookingEvent) string {
	verb := "Booking confirmed"
	if ev.Type == TypeBookingCancelled {
		verb = "Booking cancelled"
	}
	line := fmt.Sprintf("[%s] %s | booking_id=%d | user_id=%d | event_id=%d",
		ev.OccurredAt.UTC().Format(time.RFC3339), verb, ev.BookingID, ev.UserID, ev.EventID)
	if ev.EventTitle != "" {
		line += fmt.Sprintf(" | event=%q", ev.EventTitle)
	}
	return line + fmt.Sprintf(" | quantity=%d | total=%.2f\n", ev.Quantity, ev.TotalAmount)
}
