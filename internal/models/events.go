package models

import (
	"encoding/json"
	"time"
)

// Event types
const (
	EventTypeOrderFinalized   = "ORDER_FINALIZED"
	EventTypeSubmissionFailed = "ORDER_SUBMISSION_FAILED"
	EventTypeOrderSubmitted   = "ORDER_SUBMITTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderFinalizedEvent published when an order is materialized locally
type OrderFinalizedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	TotalAmount int64           `json:"total_amount"`
	BonusAmount int64           `json:"bonus_amount"`
	ServiceType string          `json:"service_type"`
	Lines       []OrderLineData `json:"lines"`
}

// SubmissionFailedEvent published when the POS order-creation call fails
// after local persistence; consumed by the reconciliation worker.
type SubmissionFailedEvent struct {
	BaseEvent
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	Reason     string          `json:"reason"`
	Attempt    int             `json:"attempt"`
	Request    json.RawMessage `json:"request"`
}

// OrderSubmittedEvent published when the POS accepts the order
type OrderSubmittedEvent struct {
	BaseEvent
	OrderID    string `json:"order_id"`
	ExternalID string `json:"external_id"`
}

// OrderLineData represents line data in events
type OrderLineData struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}
