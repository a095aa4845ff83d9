package treasury

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givechain/charity-ledger/internal/adapter"
)

type capturedRequest struct {
	url         string
	contentType string
	headers     map[string]string
	body        []byte
}

// fakeHTTPClient records POST requests and returns a canned error
type fakeHTTPClient struct {
	requests []capturedRequest
	err      error
}

func (f *fakeHTTPClient) Get(_ context.Context, _ string, _ map[string]string, _ interface{}) error {
	return errors.New("not implemented")
}

func (f *fakeHTTPClient) Post(_ context.Context, url string, contentType string, headers map[string]string, body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.requests = append(f.requests, capturedRequest{
		url:         url,
		contentType: contentType,
		headers:     headers,
		body:        data,
	})
	return nil, f.err
}

func TestCollect(t *testing.T) {
	client := &fakeHTTPClient{}
	treasury := NewHTTPTreasury("https://custodian.example.com", "secret", client, adapter.NewJSON())

	err := treasury.Collect(context.Background(), "01JTX", "0xdonor", 1000)
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, "https://custodian.example.com/v1/transfers/collect", req.url)
	assert.Equal(t, "application/json", req.contentType)
	assert.Equal(t, "Bearer secret", req.headers["Authorization"])
	assert.JSONEq(t, `{"tx_id":"01JTX","source":"0xdonor","amount":1000}`, string(req.body))
}

func TestPayout(t *testing.T) {
	client := &fakeHTTPClient{}
	treasury := NewHTTPTreasury("https://custodian.example.com", "secret", client, adapter.NewJSON())

	err := treasury.Payout(context.Background(), "01JTY", "0xwallet", 975)
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, "https://custodian.example.com/v1/transfers/payout", req.url)
	assert.JSONEq(t, `{"tx_id":"01JTY","destination":"0xwallet","amount":975}`, string(req.body))
}

func TestCustodianFailure(t *testing.T) {
	client := &fakeHTTPClient{err: errors.New("custodian unavailable")}
	treasury := NewHTTPTreasury("https://custodian.example.com", "secret", client, adapter.NewJSON())

	err := treasury.Collect(context.Background(), "01JTZ", "0xdonor", 500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to collect funds")
}
