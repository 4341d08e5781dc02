package events

import (
	"encoding/json"
	"time"
)

const (
	// StreamTransfersCompleted carries one event per committed transfer.
	// Delivery to consumers is at-least-once; consumers must be idempotent.
	StreamTransfersCompleted = "transfers.completed"

	TypeTransferCompleted = "transfer.completed"
)

type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// TransferCompleted is emitted once per committed transfer saga.
type TransferCompleted struct {
	RequestID string `json:"request_id"`
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
}
