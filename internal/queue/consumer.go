package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// AuditConsumer listens to every event queue and appends one line per
// event to an audit log file.
type AuditConsumer struct {
	URL     string // AMQP broker URL
	LogPath string // file the audit lines are appended to
}

// Run connects to RabbitMQ, declares the event queues (durable) and
// consumes them until ctx is cancelled.  Connection failures are
// retried with exponential back-off capped at 30s; a message that
// cannot be handled is rejected without requeue so the consumer keeps
// operating.
func (a AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(a.URL)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("audit-consumer: failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = a.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("audit-consumer: consume loop ended; reconnecting")
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

func (a AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("audit-consumer: set QoS failed")
	}

	deliveries := make(chan amqp.Delivery)
	for _, name := range EventTypes {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		go func(msgs <-chan amqp.Delivery) {
			for d := range msgs {
				select {
				case deliveries <- d:
				case <-ctx.Done():
					return
				}
			}
		}(msgs)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr != nil {
				return amqpErr
			}
			return errors.New("connection closed")
		case d := <-deliveries:
			if err := a.handleMessage(d.Body); err != nil {
				log.Error().Err(err).Str("routing_key", d.RoutingKey).Msg("audit-consumer: handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (a AuditConsumer) handleMessage(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(a.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(a.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders an event as a single human-friendly log line.
func FormatLine(ev Event) string {
	at := ev.OccurredAt.UTC().Format(time.RFC3339)
	switch ev.Type {
	case ReservationCreated:
		return fmt.Sprintf("[%s] Reservation created | reservation_id=%d | catway=%d | client=%q | boat=%q | check_in=%s | check_out=%s | actor=%d\n",
			at, ev.ReservationID, ev.CatwayNumber, ev.ClientName, ev.BoatName, ev.CheckIn, ev.CheckOut, ev.ActorID)
	case ReservationDeleted:
		return fmt.Sprintf("[%s] Reservation deleted | reservation_id=%d | catway=%d | actor=%d\n",
			at, ev.ReservationID, ev.CatwayNumber, ev.ActorID)
	case CatwayDeleted:
		return fmt.Sprintf("[%s] Catway deleted | catway=%d | removed_reservations=%d | actor=%d\n",
			at, ev.CatwayNumber, ev.RemovedReservations, ev.ActorID)
	default:
		return fmt.Sprintf("[%s] %s | event_id=%s | catway=%d\n", at, ev.Type, ev.EventID, ev.CatwayNumber)
	}
}
