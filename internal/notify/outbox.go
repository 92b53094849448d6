package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/internal/store"
	"github.com/smiledental/booking-engine/pkg/logging"
)

// OutboxDispatcher persists notifications in notification_outbox so an
// external sender can deliver them at least once.
type OutboxDispatcher struct {
	db store.Querier
}

func NewOutboxDispatcher(db store.Querier) *OutboxDispatcher {
	if db == nil {
		panic("notify: querier required")
	}
	return &OutboxDispatcher{db: db}
}

func (d *OutboxDispatcher) Dispatch(ctx context.Context, n Notification) error {
	_, err := d.Insert(ctx, n)
	return err
}

func (d *OutboxDispatcher) Insert(ctx context.Context, n Notification) (uuid.UUID, error) {
	data, err := json.Marshal(n.Payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("notify: marshal payload: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO notification_outbox (id, kind, recipient_id, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := d.db.Exec(ctx, query, id, n.Kind, n.RecipientID, data); err != nil {
		return uuid.Nil, fmt.Errorf("notify: insert outbox: %w", err)
	}
	return id, nil
}

func (d *OutboxDispatcher) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, kind, recipient_id, payload, created_at
		FROM notification_outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := d.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.Kind, &entry.RecipientID, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (d *OutboxDispatcher) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE notification_outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := d.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("notify: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// Sender delivers one outbox entry to a patient-facing channel.
type Sender interface {
	Send(ctx context.Context, entry OutboxEntry) error
}

// LogSender stands in for a real channel and only logs the entry.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger.Component("notify")}
}

func (s *LogSender) Send(_ context.Context, entry OutboxEntry) error {
	s.logger.Info().
		Str("outbox_id", entry.ID.String()).
		Str("kind", entry.Kind).
		Str("recipient_id", entry.RecipientID.String()).
		RawJSON("payload", entry.Payload).
		Msg("notification sent")
	return nil
}

// Relay polls the outbox and hands pending entries to a Sender.
type Relay struct {
	outbox    *OutboxDispatcher
	sender    Sender
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
}

func NewRelay(outbox *OutboxDispatcher, sender Sender, logger *logging.Logger) *Relay {
	if logger == nil {
		logger = logging.Default()
	}
	return &Relay{
		outbox:    outbox,
		sender:    sender,
		logger:    logger.Component("notify-relay"),
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (r *Relay) WithBatchSize(size int32) *Relay {
	if size > 0 {
		r.batchSize = size
	}
	return r
}

func (r *Relay) WithInterval(interval time.Duration) *Relay {
	if interval > 0 {
		r.interval = interval
	}
	return r
}

func (r *Relay) Start(ctx context.Context) {
	if r.outbox == nil || r.sender == nil {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Drain(ctx)
		}
	}
}

// Drain sends one batch and returns how many entries were marked delivered.
func (r *Relay) Drain(ctx context.Context) int {
	entries, err := r.outbox.FetchPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Error().Err(err).Msg("outbox fetch failed")
		return 0
	}

	delivered := 0
	for _, entry := range entries {
		if err := r.sender.Send(ctx, entry); err != nil {
			r.logger.Error().Err(err).Str("outbox_id", entry.ID.String()).Str("kind", entry.Kind).Msg("outbox delivery failed")
			continue
		}
		ok, err := r.outbox.MarkDelivered(ctx, entry.ID)
		if err != nil {
			r.logger.Error().Err(err).Str("outbox_id", entry.ID.String()).Msg("failed to mark outbox delivered")
			continue
		}
		if ok {
			delivered++
		}
	}
	return delivered
}
