// Package events carries the service's Kafka integration: the CloudEvent
// envelope, producer/consumer wrappers, event payloads, and the consumers
// and notifiers built on them.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CloudEvent is the envelope every message on our topics is wrapped in,
// following the CloudEvents 1.0 attribute names.
type CloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
}

// NewCloudEvent wraps data in a CloudEvent envelope.
func NewCloudEvent(source, eventType string, data any) (CloudEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return CloudEvent{}, fmt.Errorf("marshal event data: %w", err)
	}
	return CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.NewString(),
		Source:          source,
		Type:            eventType,
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            raw,
	}, nil
}

// ParseCloudEvent decodes a CloudEvent envelope from raw bytes.
func ParseCloudEvent(raw []byte) (CloudEvent, error) {
	var ce CloudEvent
	if err := json.Unmarshal(raw, &ce); err != nil {
		return CloudEvent{}, fmt.Errorf("parse cloud event: %w", err)
	}
	return ce, nil
}

// ParseData decodes the event payload into v.
func (ce CloudEvent) ParseData(v any) error {
	if err := json.Unmarshal(ce.Data, v); err != nil {
		return fmt.Errorf("parse %s data: %w", ce.Type, err)
	}
	return nil
}
