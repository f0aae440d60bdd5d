package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudEventRoundTrip(t *testing.T) {
	payload := PurchaseCompletedEvent{
		PurchaseID:      uuid.New(),
		UserID:          uuid.New(),
		ProgramID:       uuid.New(),
		OrderNumber:     "ENR-20260831-000123",
		FinalPriceCents: 8500,
		IsClassRep:      true,
		OccurredAt:      time.Now().UTC().Truncate(time.Second),
	}

	ce, err := NewCloudEvent(Source, PurchaseCompleted, payload)
	require.NoError(t, err)
	assert.Equal(t, "1.0", ce.SpecVersion)
	assert.Equal(t, Source, ce.Source)
	assert.Equal(t, PurchaseCompleted, ce.Type)
	assert.Equal(t, "application/json", ce.DataContentType)
	assert.NotEmpty(t, ce.ID)

	var decoded PurchaseCompletedEvent
	require.NoError(t, ce.ParseData(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestParseCloudEvent(t *testing.T) {
	t.Run("valid envelope", func(t *testing.T) {
		raw := []byte(`{
			"specversion": "1.0",
			"id": "abc",
			"source": "registration-service",
			"type": "registration.cancelled",
			"datacontenttype": "application/json",
			"data": {"user_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8"}
		}`)

		ce, err := ParseCloudEvent(raw)
		require.NoError(t, err)
		assert.Equal(t, "registration.cancelled", ce.Type)
		assert.Equal(t, "registration-service", ce.Source)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := ParseCloudEvent([]byte("not json"))
		assert.Error(t, err)
	})
}
