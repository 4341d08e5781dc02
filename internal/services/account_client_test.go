package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bankmore/backend/internal/models"
)

func TestAccountClient_ApplyMovement(t *testing.T) {
	t.Run("successful movement", func(t *testing.T) {
		var gotAuth string
		var gotReq MovementRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/accounts/movement", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := NewAccountClient(server.URL)
		err := client.ApplyMovement(context.Background(), "token", MovementRequest{
			RequestID: "t1:DEBIT",
			Amount:    500,
			Type:      models.MovementDebit,
		})

		assert.NoError(t, err)
		assert.Equal(t, "Bearer token", gotAuth)
		assert.Equal(t, "t1:DEBIT", gotReq.RequestID)
	})

	t.Run("upstream error code surfaces as APIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(ErrorResponse{
				Code:    models.ErrInactiveAccount,
				Message: "Inactive account",
			})
		}))
		defer server.Close()

		client := NewAccountClient(server.URL)
		err := client.ApplyMovement(context.Background(), "token", MovementRequest{
			RequestID: "t2:CREDIT",
			Amount:    500,
			Type:      models.MovementCredit,
		})

		apiErr, ok := err.(*models.APIError)
		assert.True(t, ok)
		assert.Equal(t, models.ErrInactiveAccount, apiErr.Code)
	})

	t.Run("unstructured failure reported as plain error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewAccountClient(server.URL)
		err := client.ApplyMovement(context.Background(), "token", MovementRequest{
			RequestID: "t3:DEBIT",
			Amount:    500,
			Type:      models.MovementDebit,
		})

		assert.Error(t, err)
		_, ok := err.(*models.APIError)
		assert.False(t, ok)
	})
}
