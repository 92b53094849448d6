package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smiledental/booking-engine/pkg/logging"
)

var outboxCols = []string{"id", "kind", "recipient_id", "payload", "created_at"}

func TestOutboxDispatcherFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	outbox := NewOutboxDispatcher(mock)
	recipient := uuid.New()

	mock.ExpectExec("INSERT INTO notification_outbox").
		WithArgs(pgxmock.AnyArg(), KindWaitlistSlotOpened, recipient, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	err = outbox.Dispatch(context.Background(), Notification{
		Kind:        KindWaitlistSlotOpened,
		RecipientID: recipient,
		Payload:     map[string]any{"start": "10:00"},
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	id := uuid.New()
	mock.ExpectQuery("FROM notification_outbox").
		WithArgs(int32(10)).
		WillReturnRows(pgxmock.NewRows(outboxCols).
			AddRow(id, KindWaitlistSlotOpened, recipient, []byte(`{"start":"10:00"}`), now))

	entries, err := outbox.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.JSONEq(t, `{"start":"10:00"}`, string(entries[0].Payload))

	mock.ExpectExec("UPDATE notification_outbox").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := outbox.MarkDelivered(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

type failingSender struct{ calls int }

func (s *failingSender) Send(context.Context, OutboxEntry) error {
	s.calls++
	return errors.New("smtp down")
}

func TestRelayDrainSkipsFailedDeliveries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("FROM notification_outbox").
		WithArgs(int32(5)).
		WillReturnRows(pgxmock.NewRows(outboxCols).
			AddRow(uuid.New(), KindWaitlistSlotOpened, uuid.New(), []byte(`{}`), now).
			AddRow(uuid.New(), KindWaitlistSlotOpened, uuid.New(), []byte(`{}`), now))

	sender := &failingSender{}
	relay := NewRelay(NewOutboxDispatcher(mock), sender, logging.Nop()).WithBatchSize(5)

	assert.Equal(t, 0, relay.Drain(context.Background()))
	assert.Equal(t, 2, sender.calls)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayDrainMarksDelivered(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM notification_outbox").
		WithArgs(int32(25)).
		WillReturnRows(pgxmock.NewRows(outboxCols).
			AddRow(id, KindWaitlistSlotOpened, uuid.New(), []byte(`{"date":"2030-01-07"}`), time.Now().UTC()))
	mock.ExpectExec("UPDATE notification_outbox").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	relay := NewRelay(NewOutboxDispatcher(mock), NewLogSender(logging.Nop()), logging.Nop())
	assert.Equal(t, 1, relay.Drain(context.Background()))

	require.NoError(t, mock.ExpectationsWereMet())
}
