package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bankmore/backend/internal/models"
)

// AccountMover is the slice of the Account Service the saga depends on.
type AccountMover interface {
	ApplyMovement(ctx context.Context, token string, req MovementRequest) error
}

// AccountClient calls the Account Service over HTTP. Movement rejections come
// back as *models.APIError so upstream codes surface verbatim to callers.
type AccountClient struct {
	baseURL string
	client  *http.Client
}

func NewAccountClient(baseURL string) *AccountClient {
	return &AccountClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *AccountClient) ApplyMovement(ctx context.Context, token string, req MovementRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal movement request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/accounts/movement", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build movement request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("movement call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Code == "" {
		return fmt.Errorf("movement call returned status %d", resp.StatusCode)
	}
	return models.NewAPIError(errResp.Code, errResp.Message)
}
