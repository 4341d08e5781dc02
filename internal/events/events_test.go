package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func TestSubscriber_ProcessMessage(t *testing.T) {
	t.Run("decodes envelope and invokes handler", func(t *testing.T) {
		var got Event
		s := NewSubscriber(nil, SubscriberConfig{
			Group:    "fee-worker",
			Consumer: "test",
			Stream:   StreamTransfersCompleted,
			Handler: func(ctx context.Context, event Event) error {
				got = event
				return nil
			},
		})

		data, _ := json.Marshal(TransferCompleted{RequestID: "t1", AccountID: "acct1", Amount: 500})
		envelope, _ := json.Marshal(Event{
			Type:      TypeTransferCompleted,
			Timestamp: time.Now().UTC(),
			Data:      data,
		})

		err := s.processMessage(context.Background(), redis.XMessage{
			ID:     "1-0",
			Values: map[string]any{"event": string(envelope)},
		})
		assert.NoError(t, err)
		assert.Equal(t, TypeTransferCompleted, got.Type)

		var evt TransferCompleted
		assert.NoError(t, json.Unmarshal(got.Data, &evt))
		assert.Equal(t, "t1", evt.RequestID)
	})

	t.Run("rejects message without event field", func(t *testing.T) {
		s := NewSubscriber(nil, SubscriberConfig{
			Handler: func(ctx context.Context, event Event) error { return nil },
		})

		err := s.processMessage(context.Background(), redis.XMessage{
			ID:     "1-1",
			Values: map[string]any{"payload": "{}"},
		})
		assert.Error(t, err)
	})

	t.Run("rejects malformed envelope", func(t *testing.T) {
		s := NewSubscriber(nil, SubscriberConfig{
			Handler: func(ctx context.Context, event Event) error { return nil },
		})

		err := s.processMessage(context.Background(), redis.XMessage{
			ID:     "1-2",
			Values: map[string]any{"event": "not-json"},
		})
		assert.Error(t, err)
	})
}
