package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
)

const (
	CartCheckedOutEventName           = "CartCheckedOut"
	CartCheckedOutEventVersion        = 1
	CartCheckedOutEnvelopedSchemaPath = "contracts/events/cart/CartCheckedOut.v1.enveloped.schema.json"
	StorefrontProducer                = "storefront"
)

type EventEnvelope struct {
	EventName     string                `json:"eventName"`
	EventVersion  int                   `json:"eventVersion"`
	EventID       string                `json:"eventId"`
	CorrelationID string                `json:"correlationId,omitempty"`
	CausationID   string                `json:"causationId,omitempty"`
	Producer      string                `json:"producer"`
	PartitionKey  string                `json:"partitionKey"`
	Sequence      int64                 `json:"sequence"`
	OccurredAt    time.Time             `json:"occurredAt"`
	Schema        string                `json:"schema"`
	Payload       CartCheckedOutPayload `json:"payload"`
}

// Amounts are JSON numbers carrying the exact decimal value.
type CartCheckedOutPayload struct {
	CartID      string               `json:"cartId"`
	UserID      string               `json:"userId"`
	Items       []CartCheckedOutItem `json:"items"`
	TotalAmount json.Number          `json:"totalAmount"`
	Timestamp   time.Time            `json:"timestamp"`
}

type CartCheckedOutItem struct {
	ProductID string      `json:"productId"`
	Quantity  int         `json:"quantity"`
	Price     json.Number `json:"price"`
}

type EnvelopeOptions struct {
	Sequence      int64
	Producer      string
	SchemaPath    string
	CorrelationID string
	CausationID   string
	EventID       string
	OccurredAt    time.Time
}

// BuildCartCheckedOutEvent builds the hand-off event for a session's cart.
// The session id is both the cart id and the partition key.
func BuildCartCheckedOutEvent(sessionID, userID string, snap cart.Snapshot, opts EnvelopeOptions) EventEnvelope {
	eventID := opts.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	occurredAt := opts.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	schemaPath := opts.SchemaPath
	if schemaPath == "" {
		schemaPath = CartCheckedOutEnvelopedSchemaPath
	}

	producer := opts.Producer
	if producer == "" {
		producer = StorefrontProducer
	}

	payload := CartCheckedOutPayload{
		CartID:      sessionID,
		UserID:      userID,
		Items:       make([]CartCheckedOutItem, 0, len(snap.Lines)),
		TotalAmount: json.Number(snap.Subtotal.String()),
		Timestamp:   occurredAt,
	}
	for _, l := range snap.Lines {
		payload.Items = append(payload.Items, CartCheckedOutItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     json.Number(l.UnitPrice.String()),
		})
	}

	return EventEnvelope{
		EventName:     CartCheckedOutEventName,
		EventVersion:  CartCheckedOutEventVersion,
		EventID:       eventID,
		CorrelationID: opts.CorrelationID,
		CausationID:   opts.CausationID,
		Producer:      producer,
		PartitionKey:  sessionID,
		Sequence:      opts.Sequence,
		OccurredAt:    occurredAt,
		Schema:        schemaPath,
		Payload:       payload,
	}
}
