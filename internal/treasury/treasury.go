// Package treasury talks to the fund custodian that actually holds donated
// value. The ledger is the system of record for who is owed what; the
// custodian moves the money. Every instruction carries the ledger transaction
// ID so the custodian can deduplicate retries.
package treasury

import (
	"bytes"
	"context"
	"fmt"

	"github.com/givechain/charity-ledger/internal/adapter"
)

// Treasury defines the interface for moving value in and out of the custody pool
type Treasury interface {
	// Collect pulls amount from the donor into the custody pool
	Collect(ctx context.Context, txID, donor string, amount int64) error
	// Payout sends amount from the custody pool to the destination wallet
	Payout(ctx context.Context, txID, destination string, amount int64) error
}

type collectRequest struct {
	TxID   string `json:"tx_id"`
	Source string `json:"source"`
	Amount int64  `json:"amount"`
}

type payoutRequest struct {
	TxID        string `json:"tx_id"`
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
}

type httpTreasury struct {
	baseURL    string
	apiKey     string
	httpClient adapter.HTTPClient
	json       adapter.JSON
}

// NewHTTPTreasury creates a treasury backed by the custodian's HTTP API
func NewHTTPTreasury(baseURL, apiKey string, httpClient adapter.HTTPClient, json adapter.JSON) Treasury {
	return &httpTreasury{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		json:       json,
	}
}

func (t *httpTreasury) Collect(ctx context.Context, txID, donor string, amount int64) error {
	req := collectRequest{TxID: txID, Source: donor, Amount: amount}
	if err := t.post(ctx, "/v1/transfers/collect", req); err != nil {
		return fmt.Errorf("failed to collect funds: %w", err)
	}
	return nil
}

func (t *httpTreasury) Payout(ctx context.Context, txID, destination string, amount int64) error {
	req := payoutRequest{TxID: txID, Destination: destination, Amount: amount}
	if err := t.post(ctx, "/v1/transfers/payout", req); err != nil {
		return fmt.Errorf("failed to pay out funds: %w", err)
	}
	return nil
}

func (t *httpTreasury) post(ctx context.Context, path string, req interface{}) error {
	body, err := t.json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	headers := map[string]string{"Authorization": "Bearer " + t.apiKey}
	_, err = t.httpClient.Post(ctx, t.baseURL+path, "application/json", headers, bytes.NewReader(body))
	return err
}

type noopTreasury struct{}

// NewNoopTreasury creates a treasury that accepts every instruction without
// moving value, for local development and tests.
func NewNoopTreasury() Treasury {
	return &noopTreasury{}
}

func (t *noopTreasury) Collect(_ context.Context, _, _ string, _ int64) error {
	return nil
}

func (t *noopTreasury) Payout(_ context.Context, _, _ string, _ int64) error {
	return nil
}
