package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/viper"

	"github.com/bankmore/backend/internal/events"
	"github.com/bankmore/backend/internal/models"
)

// FeeService charges a flat fee for each completed transfer. The fee key is
// derived from the transfer's request id, so however many times the event is
// delivered the account is debited at most once.
type FeeService struct {
	accounts  AccountMover
	feeAmount int64
}

func NewFeeService(accounts AccountMover) *FeeService {
	viper.SetDefault("fees.amount", 200)
	return &FeeService{
		accounts:  accounts,
		feeAmount: viper.GetInt64("fees.amount"),
	}
}

// HandleTransferCompleted is the stream handler for transfer-completed events.
func (s *FeeService) HandleTransferCompleted(ctx context.Context, event events.Event) error {
	if event.Type != events.TypeTransferCompleted {
		log.Printf("[FEE] Ignoring event of type %s", event.Type)
		return nil
	}

	var evt events.TransferCompleted
	if err := json.Unmarshal(event.Data, &evt); err != nil {
		return fmt.Errorf("failed to decode transfer event: %w", err)
	}

	return s.Charge(ctx, evt)
}

// Charge debits the configured fee from the transfer's origin account.
func (s *FeeService) Charge(ctx context.Context, evt events.TransferCompleted) error {
	token, err := GenerateJWT(evt.AccountID)
	if err != nil {
		return fmt.Errorf("failed to mint service token: %w", err)
	}

	req := MovementRequest{
		RequestID: FeeRequestID(evt.RequestID),
		Amount:    s.feeAmount,
		Type:      models.MovementDebit,
	}
	if err := s.accounts.ApplyMovement(ctx, token, req); err != nil {
		return fmt.Errorf("fee charge failed for %s: %w", evt.RequestID, err)
	}

	log.Printf("[FEE] Charged %d to account %s for transfer %s", s.feeAmount, evt.AccountID, evt.RequestID)
	return nil
}

// FeeRequestID derives the idempotency key guarding the fee movement.
func FeeRequestID(transferRequestID string) string {
	return transferRequestID + ":FEE"
}
