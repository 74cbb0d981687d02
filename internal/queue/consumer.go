package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultAuditLog is where the consumer appends one line per event.
var DefaultAuditLog = filepath.Join("logs", "ledger.log")

var consumerLog = log.New("ledger-consumer")

// StartLedgerConsumer consumes LedgerQueue and appends every event to
// logPath.  It reconnects with exponential backoff and returns only when
// ctx is cancelled.  Messages that cannot be handled are rejected without
// requeue so a poison message cannot spin the loop.
func StartLedgerConsumer(ctx context.Context, url, logPath string) error {
	if url == "" {
		url = DefaultURL
	}
	if logPath == "" {
		logPath = DefaultAuditLog
	}
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			consumerLog.Warnf("dial failed: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logPath)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		consumerLog.Warnf("consume loop ended: %v; reconnecting", err)
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

func consumeLoop(ctx context.Context, conn *amqp.Connection, logPath string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		consumerLog.Warnf("set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(LedgerQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(LedgerQueue, "", false, false, false, false, nil)
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
			if err := handleMessage(d.Body, logPath); err != nil {
				consumerLog.Errorf("handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(body []byte, logPath string) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line, err := formatLine(ev)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// formatLine renders ev as a single human-readable audit line.
func formatLine(ev Event) (string, error) {
	ts := ev.OccurredAt.UTC().Format(time.RFC3339)
	switch ev.Type {
	case TypeSessionCreated:
		var p SessionCreated
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return "", fmt.Errorf("payload %s: %w", ev.Type, err)
		}
		return fmt.Sprintf("[%s] Session created | id=%s | session_id=%d | date=%s | venue_id=%d | venue=%q | fee_collected=%s | rent=%s\n",
			ts, ev.ID, p.SessionID, p.Date, p.VenueID, p.VenueOwner, p.FeeCollected.StringFixed(2), p.RentAmount.StringFixed(2)), nil
	case TypeBackfillCompleted:
		var p BackfillCompleted
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return "", fmt.Errorf("payload %s: %w", ev.Type, err)
		}
		return fmt.Sprintf("[%s] Rent backfill | id=%s | created=%d | amount=%s | sessions=%d | rent_line_items=%d | verified=%t | dry_run=%t\n",
			ts, ev.ID, p.Created, p.Amount.StringFixed(2), p.Sessions, p.RentLineItems, p.Verified, p.DryRun), nil
	}
	return "", fmt.Errorf("unknown event type %q", ev.Type)
}
