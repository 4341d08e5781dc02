package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bankmore/backend/internal/audit"
	"github.com/bankmore/backend/internal/events"
	"github.com/bankmore/backend/internal/models"
)

const (
	transferLockPrefix  = "transfer_lock:"
	transferLockTimeout = 10 * time.Second

	// reconciliationQueue collects uncompensated debits for manual review.
	reconciliationQueue = "reconciliation_queue"
)

// EventPublisher publishes the completion fact of a committed saga.
type EventPublisher interface {
	PublishTransferCompleted(ctx context.Context, evt events.TransferCompleted) error
}

// TransferService orchestrates the two-leg transfer saga against the Account
// Service. It has no shared transaction with the ledger; its only consistency
// tools are idempotent sub-keys and a compensating credit.
type TransferService struct {
	db        *sql.DB
	redis     *redis.Client
	accounts  AccountMover
	publisher EventPublisher
	audit     *audit.AuditLogger
	validator *ValidationHelper
}

// TransferRequest represents a transfer payload
// @Description Transfer request structure
type TransferRequest struct {
	RequestID                string `json:"requestId" validate:"required"` // Idempotency key
	DestinationAccountNumber int64  `json:"destinationAccountNumber" validate:"required"`
	Amount                   int64  `json:"amount"` // Amount in cents, > 0
}

func NewTransferService(db *sql.DB, redisClient *redis.Client, accounts AccountMover, publisher EventPublisher) *TransferService {
	return &TransferService{
		db:        db,
		redis:     redisClient,
		accounts:  accounts,
		publisher: publisher,
		audit:     audit.NewAuditLogger(),
		validator: NewValidationHelper(),
	}
}

// Transfer runs the debit/credit saga
// @Summary Transfer between accounts
// @Description Debit the caller, credit the destination, compensating on failure; idempotent per requestId
// @Tags transfers
// @Accept json
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /transfers [post]
func (s *TransferService) Transfer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("accountID").(string)
	if !ok || accountID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	var req TransferRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "INVALID_REQUEST", "Validation failed", http.StatusBadRequest, err)
		return
	}

	// Reject a concurrent duplicate while the first delivery is still
	// executing; the durable idempotency record remains the commit point.
	acquired, err := s.redis.SetNX(r.Context(), transferLockPrefix+req.RequestID, "processing", transferLockTimeout).Result()
	if err != nil {
		log.Printf("[TRANSFER] Lock acquisition failed for %s: %v", req.RequestID, err)
		SendErrorResponse(w, "INTERNAL_ERROR", "Failed to process transfer", http.StatusInternalServerError, nil)
		return
	}
	if !acquired {
		log.Printf("[TRANSFER] Concurrent duplicate detected for %s", req.RequestID)
		SendErrorResponse(w, "CONFLICT", "A transfer with this request id is currently being processed", http.StatusConflict, nil)
		return
	}
	defer func() {
		if err := s.redis.Del(context.Background(), transferLockPrefix+req.RequestID).Err(); err != nil {
			log.Printf("[TRANSFER] Failed to release lock for %s: %v", req.RequestID, err)
		}
	}()

	if err := s.Execute(r.Context(), accountID, token, &req); err != nil {
		if apiErr, ok := err.(*models.APIError); ok {
			SendAPIError(w, apiErr)
			return
		}
		log.Printf("[TRANSFER] Transfer %s failed: %v", req.RequestID, err)
		SendErrorResponse(w, "UPSTREAM_ERROR", "Failed to process transfer", http.StatusBadGateway, nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Execute runs the saga to a terminal state. Sub-operations are keyed off the
// request id so a retried saga reapplies each leg at most once. A replayed
// request id returns the prior success without re-executing.
func (s *TransferService) Execute(ctx context.Context, accountID, token string, req *TransferRequest) error {
	committed, err := s.keyExists(req.RequestID)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if committed {
		log.Printf("[TRANSFER] Duplicate request %s, returning prior success", req.RequestID)
		return nil
	}

	if req.Amount <= 0 {
		return models.NewAPIError(models.ErrInvalidValue, "Amount must be positive")
	}

	// Debit leg. Nothing is committed yet, so failure here ends the saga
	// with no compensation.
	debit := MovementRequest{
		RequestID: req.RequestID + ":DEBIT",
		Amount:    req.Amount,
		Type:      models.MovementDebit,
	}
	if err := s.accounts.ApplyMovement(ctx, token, debit); err != nil {
		s.audit.LogError(req.RequestID, accountID, err)
		return err
	}

	// Credit leg. Any failure, including timeouts, triggers compensation:
	// a timed-out credit may or may not have landed, and the rollback key
	// makes the reversal safe either way.
	credit := MovementRequest{
		RequestID:     req.RequestID + ":CREDIT",
		Amount:        req.Amount,
		Type:          models.MovementCredit,
		AccountNumber: &req.DestinationAccountNumber,
	}
	if creditErr := s.accounts.ApplyMovement(ctx, token, credit); creditErr != nil {
		s.compensate(ctx, accountID, token, req, creditErr)
		s.audit.LogError(req.RequestID, accountID, creditErr)
		return creditErr
	}

	if err := s.commit(accountID, req); err != nil {
		return err
	}

	evt := events.TransferCompleted{
		RequestID: req.RequestID,
		AccountID: accountID,
		Amount:    req.Amount,
	}
	if err := s.publisher.PublishTransferCompleted(ctx, evt); err != nil {
		// The transfer is already committed; the event is at-least-once,
		// not exactly-once, so a lost publish is logged and not rolled back.
		log.Printf("[TRANSFER] Failed to publish completion event for %s: %v", req.RequestID, err)
	}

	s.audit.LogTransfer(req.RequestID, accountID, req.DestinationAccountNumber, req.Amount, "COMMITTED")
	return nil
}

// compensate reverses the committed debit with a self-credit. If the reversal
// itself fails the caller still sees the original credit failure, but the
// uncompensated debit is escalated for manual reconciliation.
func (s *TransferService) compensate(ctx context.Context, accountID, token string, req *TransferRequest, creditErr error) {
	rollback := MovementRequest{
		RequestID: req.RequestID + ":ROLLBACK",
		Amount:    req.Amount,
		Type:      models.MovementCredit,
	}
	rollbackErr := s.accounts.ApplyMovement(ctx, token, rollback)
	if rollbackErr == nil {
		log.Printf("[TRANSFER] Compensated debit for %s after credit failure", req.RequestID)
		return
	}

	s.audit.LogCompensationFailure(req.RequestID, accountID, req.Amount, creditErr, rollbackErr)
	s.queueForReconciliation(accountID, req, creditErr, rollbackErr)
}

func (s *TransferService) queueForReconciliation(accountID string, req *TransferRequest, creditErr, rollbackErr error) {
	entry, err := json.Marshal(map[string]any{
		"request_id":     req.RequestID,
		"account_id":     accountID,
		"amount":         req.Amount,
		"credit_error":   creditErr.Error(),
		"rollback_error": rollbackErr.Error(),
		"timestamp":      time.Now().UTC(),
	})
	if err != nil {
		return
	}

	if err := s.redis.RPush(context.Background(), reconciliationQueue, string(entry)).Err(); err != nil {
		log.Printf("[TRANSFER] Failed to queue %s for reconciliation: %v", req.RequestID, err)
	}
}

// commit writes the transfer fact and the idempotency record together so a
// retry of the same request id cannot re-execute the saga.
func (s *TransferService) commit(accountID string, req *TransferRequest) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO transfers (id, origin_account_id, destination_number, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), accountID, req.DestinationAccountNumber, req.Amount, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert transfer record: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO idempotency (key, created_at) VALUES ($1, $2)`,
		req.RequestID, time.Now())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			log.Printf("[TRANSFER] Lost idempotency race for %s, treating as committed", req.RequestID)
			return nil
		}
		return fmt.Errorf("failed to record idempotency key: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}

	return nil
}

func (s *TransferService) keyExists(key string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM idempotency WHERE key = $1)`, key).Scan(&exists)
	return exists, err
}
