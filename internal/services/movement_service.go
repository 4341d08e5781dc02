package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bankmore/backend/internal/audit"
	"github.com/bankmore/backend/internal/models"
)

// MovementService owns the append-only movement ledger. Balances are never
// stored; they are derived by summation over committed movements.
type MovementService struct {
	db        *sql.DB
	audit     *audit.AuditLogger
	validator *ValidationHelper
}

// MovementRequest represents a movement application payload
// @Description Movement request structure
type MovementRequest struct {
	RequestID     string `json:"requestId" validate:"required"` // Idempotency key
	Amount        int64  `json:"amount"`                        // Amount in cents, > 0
	Type          string `json:"type"`                          // CREDIT or DEBIT
	AccountNumber *int64 `json:"accountNumber,omitempty"`       // Optional third-party target
}

// BalanceResponse is the balance read result
type BalanceResponse struct {
	AccountNumber int64     `json:"accountNumber"`
	AccountHolder string    `json:"accountHolder"`
	Timestamp     time.Time `json:"timestamp"`
	Balance       int64     `json:"balance"`
}

func NewMovementService(db *sql.DB) *MovementService {
	return &MovementService{
		db:        db,
		audit:     audit.NewAuditLogger(),
		validator: NewValidationHelper(),
	}
}

// Movement applies a ledger movement to the caller's account
// @Summary Apply movement
// @Description Apply a credit or debit movement, idempotent per requestId
// @Tags movements
// @Accept json
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Router /accounts/movement [post]
func (s *MovementService) Movement(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("accountID").(string)
	if !ok || accountID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req MovementRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "INVALID_REQUEST", "Validation failed", http.StatusBadRequest, err)
		return
	}

	if err := s.Apply(accountID, &req); err != nil {
		if apiErr, ok := err.(*models.APIError); ok {
			log.Printf("[MOVEMENT] Rejected request %s for account %s: %s", req.RequestID, accountID, apiErr.Code)
			SendAPIError(w, apiErr)
			return
		}
		log.Printf("[MOVEMENT] Failed to apply request %s: %v", req.RequestID, err)
		s.audit.LogError(req.RequestID, accountID, err)
		SendErrorResponse(w, "INTERNAL_ERROR", "Failed to apply movement", http.StatusInternalServerError, nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Apply validates and applies one movement. Client-level rejections come back
// as *models.APIError; anything else is an internal failure. A replayed
// requestId is a no-op success regardless of delivery count.
func (s *MovementService) Apply(callerAccountID string, req *MovementRequest) error {
	applied, err := s.keyExists(req.RequestID)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if applied {
		log.Printf("[MOVEMENT] Duplicate request %s, returning prior success", req.RequestID)
		return nil
	}

	if req.Amount <= 0 {
		return models.NewAPIError(models.ErrInvalidValue, "Amount must be positive")
	}
	if req.Type != models.MovementCredit && req.Type != models.MovementDebit {
		return models.NewAPIError(models.ErrInvalidType, "Invalid movement type")
	}

	caller, err := s.accountByID(callerAccountID)
	if err != nil {
		return err
	}

	// Movements land on the caller's own account unless a third-party target
	// is named; only credits may be routed to a third party.
	target := caller
	if req.AccountNumber != nil {
		if req.Type != models.MovementCredit {
			return models.NewAPIError(models.ErrInvalidType, "Only credits may target a third-party account")
		}
		target, err = s.accountByNumber(*req.AccountNumber)
		if err != nil {
			return err
		}
	}

	return s.appendMovement(target.ID, req)
}

// appendMovement writes the movement and the idempotency record in one
// transaction. The idempotency primary key is the commit point: a concurrent
// duplicate loses the insert race, rolls back and is treated as already
// applied, so a given key lands at most once.
func (s *MovementService) appendMovement(accountID string, req *MovementRequest) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO movements (id, account_id, movement_type, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), accountID, req.Type, req.Amount, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert movement: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO idempotency (key, created_at) VALUES ($1, $2)`,
		req.RequestID, time.Now())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			log.Printf("[MOVEMENT] Lost idempotency race for %s, treating as applied", req.RequestID)
			return nil
		}
		return fmt.Errorf("failed to record idempotency key: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit movement: %w", err)
	}

	s.audit.LogMovement(req.RequestID, accountID, req.Type, req.Amount)
	return nil
}

// Balance returns the derived balance of the caller's account
// @Summary Get balance
// @Description Sum of credits minus debits over the movement ledger
// @Tags movements
// @Produce json
// @Success 200 {object} BalanceResponse
// @Failure 400 {object} ErrorResponse
// @Router /accounts/balance [get]
func (s *MovementService) Balance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("accountID").(string)
	if !ok || accountID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	account, err := s.accountByID(accountID)
	if err != nil {
		if apiErr, ok := err.(*models.APIError); ok {
			SendAPIError(w, apiErr)
			return
		}
		log.Printf("[MOVEMENT] Balance lookup failed for %s: %v", accountID, err)
		SendErrorResponse(w, "INTERNAL_ERROR", "Failed to read balance", http.StatusInternalServerError, nil)
		return
	}

	balance, err := s.balanceOf(accountID)
	if err != nil {
		log.Printf("[MOVEMENT] Balance computation failed for %s: %v", accountID, err)
		SendErrorResponse(w, "INTERNAL_ERROR", "Failed to read balance", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BalanceResponse{
		AccountNumber: account.Number,
		AccountHolder: account.Holder,
		Timestamp:     time.Now().UTC(),
		Balance:       balance,
	})
}

// balanceOf computes signed sum over all movements in a single aggregate so
// the read sees a consistent snapshot without blocking writers.
func (s *MovementService) balanceOf(accountID string) (int64, error) {
	var balance int64
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(CASE WHEN movement_type = 'CREDIT' THEN amount ELSE -amount END), 0)
		FROM movements WHERE account_id = $1`,
		accountID).Scan(&balance)
	return balance, err
}

func (s *MovementService) keyExists(key string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM idempotency WHERE key = $1)`, key).Scan(&exists)
	return exists, err
}

func (s *MovementService) accountByID(id string) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRow(`
		SELECT id, number, holder, active FROM accounts WHERE id = $1`,
		id).Scan(&account.ID, &account.Number, &account.Holder, &account.Active)
	if err == sql.ErrNoRows {
		return nil, models.NewAPIError(models.ErrInvalidAccount, "Invalid account")
	}
	if err != nil {
		return nil, fmt.Errorf("account lookup failed: %w", err)
	}
	if !account.Active {
		return nil, models.NewAPIError(models.ErrInactiveAccount, "Inactive account")
	}
	return &account, nil
}

func (s *MovementService) accountByNumber(number int64) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRow(`
		SELECT id, number, holder, active FROM accounts WHERE number = $1`,
		number).Scan(&account.ID, &account.Number, &account.Holder, &account.Active)
	if err == sql.ErrNoRows {
		return nil, models.NewAPIError(models.ErrInvalidAccount, "Invalid destination account")
	}
	if err != nil {
		return nil, fmt.Errorf("account lookup failed: %w", err)
	}
	if !account.Active {
		return nil, models.NewAPIError(models.ErrInactiveAccount, "Inactive destination account")
	}
	return &account, nil
}
