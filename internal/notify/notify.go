package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/pkg/logging"
)

const KindWaitlistSlotOpened = "waitlist.slot_opened"

// Notification is a message for a patient. Delivery channels (SMS, email,
// push) live outside this service.
type Notification struct {
	Kind        string
	RecipientID uuid.UUID
	Payload     map[string]any
}

// Dispatcher hands a notification off for delivery. Implementations must
// not block on the delivery itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// LogDispatcher only records notifications in the log. Used with the memory
// backend and in local development.
type LogDispatcher struct {
	logger *logging.Logger
}

func NewLogDispatcher(logger *logging.Logger) *LogDispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogDispatcher{logger: logger.Component("notify")}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n Notification) error {
	payload, _ := json.Marshal(n.Payload)
	d.logger.Info().
		Str("kind", n.Kind).
		Str("recipient_id", n.RecipientID.String()).
		RawJSON("payload", payload).
		Msg("notification dispatched")
	return nil
}

// OutboxEntry is a stored notification waiting for an external sender.
type OutboxEntry struct {
	ID          uuid.UUID
	Kind        string
	RecipientID uuid.UUID
	Payload     json.RawMessage
	CreatedAt   time.Time
}
