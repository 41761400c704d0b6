package events

import (
	"context"
	"encoding/json"
	"time"

	"apotekpos/backend/internal/xid"
)

const (
	EventSaleCommitted = "sale.committed"
	EventStockAdjusted = "stock.adjusted"
)

// Publisher delivers an encoded event. Delivery is best effort: a failure is
// reported to the caller but never undoes the state change it describes.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}

type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Encode wraps data in an Envelope with a fresh event id.
func Encode(eventType string, occurredAt time.Time, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		EventID:    xid.New("evt"),
		EventType:  eventType,
		OccurredAt: occurredAt.UTC(),
		Data:       raw,
	})
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ string, _ []byte, _ string) error {
	return nil
}
