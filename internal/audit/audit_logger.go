package audit

import (
	"encoding/json"
	"log"
	"time"
)

type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	RequestID string    `json:"request_id"`
	AccountID string    `json:"account_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Details   any       `json:"details"`
}

type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogTransfer(requestID, originAccount string, destinationNumber int64, amount int64, status string) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "TRANSFER",
		RequestID: requestID,
		AccountID: originAccount,
		Amount:    amount,
		Status:    status,
		Details: map[string]int64{
			"destination_number": destinationNumber,
		},
	}
	a.log(event)
}

func (a *AuditLogger) LogMovement(requestID, accountID, movementType string, amount int64) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "MOVEMENT",
		RequestID: requestID,
		AccountID: accountID,
		Amount:    amount,
		Status:    "SUCCESS",
		Details:   map[string]string{"movement_type": movementType},
	}
	a.log(event)
}

func (a *AuditLogger) LogError(requestID, accountID string, err error) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "ERROR",
		RequestID: requestID,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	}
	a.log(event)
}

// LogCompensationFailure records a debit that could not be reversed after a
// failed credit leg. This is a real uncompensated debit and must never be
// silently swallowed; callers also queue it for manual reconciliation.
func (a *AuditLogger) LogCompensationFailure(requestID, accountID string, amount int64, creditErr, rollbackErr error) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "COMPENSATION_FAILURE",
		RequestID: requestID,
		AccountID: accountID,
		Amount:    amount,
		Status:    "UNRECONCILED",
		Details: map[string]string{
			"credit_error":   creditErr.Error(),
			"rollback_error": rollbackErr.Error(),
		},
	}
	a.log(event)
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
