package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bankmore/backend/internal/events"
)

type MockAccountMover struct {
	mock.Mock
}

func (m *MockAccountMover) ApplyMovement(ctx context.Context, token string, req MovementRequest) error {
	args := m.Called(ctx, token, req)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishTransferCompleted(ctx context.Context, evt events.TransferCompleted) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}
