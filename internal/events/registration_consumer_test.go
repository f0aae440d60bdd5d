package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCanceller struct {
	calls []struct{ UserID, ProgramID uuid.UUID }
	err   error
}

func (f *fakeCanceller) CancelPendingForRegistration(ctx context.Context, userID, programID uuid.UUID) error {
	f.calls = append(f.calls, struct{ UserID, ProgramID uuid.UUID }{userID, programID})
	return f.err
}

func registrationMessage(t *testing.T, eventType string, data any) kafkago.Message {
	t.Helper()
	ce, err := NewCloudEvent("registration-service", eventType, data)
	require.NoError(t, err)
	raw, err := json.Marshal(ce)
	require.NoError(t, err)
	return kafkago.Message{Topic: TopicRegistrationEvents, Value: raw}
}

func TestHandleMessage_RegistrationCancelled(t *testing.T) {
	canceller := &fakeCanceller{}
	c := &RegistrationEventConsumer{canceller: canceller, logger: zap.NewNop()}

	userID := uuid.New()
	programID := uuid.New()
	msg := registrationMessage(t, RegistrationCancelled, RegistrationCancelledEvent{
		UserID:     userID,
		ProgramID:  programID,
		OccurredAt: time.Now().UTC(),
	})

	require.NoError(t, c.handleMessage(context.Background(), msg))
	require.Len(t, canceller.calls, 1)
	assert.Equal(t, userID, canceller.calls[0].UserID)
	assert.Equal(t, programID, canceller.calls[0].ProgramID)
}

func TestHandleMessage_IgnoresOtherEventTypes(t *testing.T) {
	canceller := &fakeCanceller{}
	c := &RegistrationEventConsumer{canceller: canceller, logger: zap.NewNop()}

	msg := registrationMessage(t, "registration.created", map[string]string{"user_id": uuid.NewString()})
	require.NoError(t, c.handleMessage(context.Background(), msg))
	assert.Empty(t, canceller.calls)
}

func TestHandleMessage_MalformedEnvelopeCommitted(t *testing.T) {
	canceller := &fakeCanceller{}
	c := &RegistrationEventConsumer{canceller: canceller, logger: zap.NewNop()}

	// Returning nil commits the offset; a poison message must not wedge the
	// consumer group.
	err := c.handleMessage(context.Background(), kafkago.Message{Value: []byte("garbage")})
	assert.NoError(t, err)
	assert.Empty(t, canceller.calls)
}

func TestHandleMessage_CancellerErrorPropagates(t *testing.T) {
	canceller := &fakeCanceller{err: assert.AnError}
	c := &RegistrationEventConsumer{canceller: canceller, logger: zap.NewNop()}

	msg := registrationMessage(t, RegistrationCancelled, RegistrationCancelledEvent{
		UserID:    uuid.New(),
		ProgramID: uuid.New(),
	})

	// A transient failure leaves the offset uncommitted for redelivery.
	assert.Error(t, c.handleMessage(context.Background(), msg))
}
