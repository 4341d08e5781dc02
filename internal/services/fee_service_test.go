package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bankmore/backend/internal/config"
	"github.com/bankmore/backend/internal/events"
	"github.com/bankmore/backend/internal/models"
)

func TestFeeService_Charge(t *testing.T) {
	config.SetDefaults()
	viper.Set("fees.amount", 250)
	defer viper.Set("fees.amount", 200)

	t.Run("fee debit keyed off the transfer request id", func(t *testing.T) {
		mover := new(MockAccountMover)
		service := NewFeeService(mover)

		mover.On("ApplyMovement", mock.Anything, mock.AnythingOfType("string"), MovementRequest{
			RequestID: "t1:FEE",
			Amount:    250,
			Type:      models.MovementDebit,
		}).Return(nil)

		err := service.Charge(context.Background(), events.TransferCompleted{
			RequestID: "t1",
			AccountID: "acct1",
			Amount:    5000,
		})
		assert.NoError(t, err)
		mover.AssertExpectations(t)
	})

	t.Run("upstream rejection surfaces", func(t *testing.T) {
		mover := new(MockAccountMover)
		service := NewFeeService(mover)

		mover.On("ApplyMovement", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(models.NewAPIError(models.ErrInactiveAccount, "Inactive account"))

		err := service.Charge(context.Background(), events.TransferCompleted{
			RequestID: "t2",
			AccountID: "acct1",
			Amount:    5000,
		})
		assert.Error(t, err)
	})
}

func TestFeeService_HandleTransferCompleted(t *testing.T) {
	config.SetDefaults()

	t.Run("transfer completed event triggers a charge", func(t *testing.T) {
		mover := new(MockAccountMover)
		service := NewFeeService(mover)

		mover.On("ApplyMovement", mock.Anything, mock.AnythingOfType("string"), MovementRequest{
			RequestID: "t3:FEE",
			Amount:    viper.GetInt64("fees.amount"),
			Type:      models.MovementDebit,
		}).Return(nil)

		data, _ := json.Marshal(events.TransferCompleted{
			RequestID: "t3",
			AccountID: "acct1",
			Amount:    1200,
		})
		err := service.HandleTransferCompleted(context.Background(), events.Event{
			Type: events.TypeTransferCompleted,
			Data: data,
		})
		assert.NoError(t, err)
		mover.AssertExpectations(t)
	})

	t.Run("unrelated event types ignored", func(t *testing.T) {
		mover := new(MockAccountMover)
		service := NewFeeService(mover)

		err := service.HandleTransferCompleted(context.Background(), events.Event{
			Type: "account.created",
			Data: json.RawMessage(`{}`),
		})
		assert.NoError(t, err)
		mover.AssertNotCalled(t, "ApplyMovement", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed payload reported", func(t *testing.T) {
		mover := new(MockAccountMover)
		service := NewFeeService(mover)

		err := service.HandleTransferCompleted(context.Background(), events.Event{
			Type: events.TypeTransferCompleted,
			Data: json.RawMessage(`not-json`),
		})
		assert.Error(t, err)
		mover.AssertNotCalled(t, "ApplyMovement", mock.Anything, mock.Anything, mock.Anything)
	})
}
