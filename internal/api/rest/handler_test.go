package rest

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givechain/charity-ledger/internal/adapter"
	"github.com/givechain/charity-ledger/internal/api/middleware"
	"github.com/givechain/charity-ledger/internal/domain"
	"github.com/givechain/charity-ledger/internal/ledger"
	"github.com/givechain/charity-ledger/internal/store"
	"github.com/givechain/charity-ledger/internal/treasury"
)

const (
	ownerAddr   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	charityAddr = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	donorAddr   = "0xcccccccccccccccccccccccccccccccccccccccc"
)

type testAPI struct {
	router     *gin.Engine
	ledger     ledger.Ledger
	privateKey *rsa.PrivateKey
}

func newTestAPI(t *testing.T) *testAPI {
	gin.SetMode(gin.TestMode)

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	l, err := ledger.New(context.Background(), store.NewMemoryStore(), treasury.NewNoopTreasury(),
		nil, adapter.NewClock(), domain.Address(ownerAddr), 250)
	require.NoError(t, err)

	router := gin.New()
	SetupRoutes(router, NewHandler(l), middleware.AuthConfig{
		JWTPublicKey: string(pubPEM),
	})

	return &testAPI{router: router, ledger: l, privateKey: privateKey}
}

// token signs a JWT whose subject is the given wallet address
func (a *testAPI) token(t *testing.T, subject string) string {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.privateKey)
	require.NoError(t, err)
	return signed
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func (a *testAPI) registerCharity(t *testing.T) CharityResponse {
	w := a.do(t, http.MethodPost, "/api/v1/charities", a.token(t, ownerAddr), RegisterCharityRequest{
		Name:        "Clean Water Initiative",
		Description: "Wells",
		Wallet:      charityAddr,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	return decode[CharityResponse](t, w)
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterCharityEndpoint(t *testing.T) {
	api := newTestAPI(t)

	t.Run("requires authentication", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/charities", "", RegisterCharityRequest{
			Name:        "No Token",
			Description: "Wells",
			Wallet:      charityAddr,
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects invalid tokens", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/charities", "not-a-jwt", RegisterCharityRequest{
			Name:        "Bad Token",
			Description: "Wells",
			Wallet:      charityAddr,
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("owner registers a charity", func(t *testing.T) {
		charity := api.registerCharity(t)
		assert.Equal(t, uint64(1), charity.ID)
		assert.True(t, charity.IsActive)
		assert.Zero(t, charity.TotalReceived)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/charities", api.token(t, donorAddr), RegisterCharityRequest{
			Name:        "Imposter",
			Description: "Fake wells",
			Wallet:      charityAddr,
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/charities", api.token(t, ownerAddr), gin.H{
			"description": "no name or wallet",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing description fails validation", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/charities", api.token(t, ownerAddr), gin.H{
			"name":   "No Description",
			"wallet": charityAddr,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCharityEndpoints(t *testing.T) {
	api := newTestAPI(t)
	charity := api.registerCharity(t)

	t.Run("get by ID", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/charities/1", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		got := decode[CharityResponse](t, w)
		assert.Equal(t, charity.ID, got.ID)
		assert.Equal(t, charity.Name, got.Name)
	})

	t.Run("unknown ID is 404", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/charities/42", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed ID is 400", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/charities/abc", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list includes the charity", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/charities", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		list := decode[ListResponse[CharityResponse]](t, w)
		assert.Equal(t, uint64(1), list.Total)
		require.Len(t, list.Items, 1)
	})

	t.Run("owner deactivates the charity", func(t *testing.T) {
		active := false
		w := api.do(t, http.MethodPatch, "/api/v1/charities/1/status", api.token(t, ownerAddr),
			SetCharityStatusRequest{Active: &active})
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = api.do(t, http.MethodGet, "/api/v1/charities/1", "", nil)
		got := decode[CharityResponse](t, w)
		assert.False(t, got.IsActive)
	})
}

func TestDonationEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.registerCharity(t)

	charityID := uint64(1)

	t.Run("donation to a charity", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/donations", api.token(t, donorAddr), DonateRequest{
			CharityID: &charityID,
			Amount:    1000,
		})
		require.Equal(t, http.StatusCreated, w.Code)

		donation := decode[DonationResponse](t, w)
		assert.NotEmpty(t, donation.TxID)
		assert.Equal(t, int64(1000), donation.Amount)

		w = api.do(t, http.MethodGet, "/api/v1/charities/1", "", nil)
		got := decode[CharityResponse](t, w)
		assert.Equal(t, int64(1000), got.TotalReceived)
		assert.Equal(t, int64(1000), got.AvailableBalance)
	})

	t.Run("both targets set fails validation", func(t *testing.T) {
		campaignID := uint64(1)
		w := api.do(t, http.MethodPost, "/api/v1/donations", api.token(t, donorAddr), DonateRequest{
			CharityID:  &charityID,
			CampaignID: &campaignID,
			Amount:     1000,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown charity is 404", func(t *testing.T) {
		unknown := uint64(42)
		w := api.do(t, http.MethodPost, "/api/v1/donations", api.token(t, donorAddr), DonateRequest{
			CharityID: &unknown,
			Amount:    1000,
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("donation history is recorded", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/charities/1/donations", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		list := decode[ListResponse[DonationResponse]](t, w)
		assert.Equal(t, uint64(1), list.Total)
	})
}

func TestCampaignEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.registerCharity(t)

	t.Run("charity wallet creates a campaign", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/campaigns", api.token(t, charityAddr), CreateCampaignRequest{
			CharityID:    1,
			Title:        "Winter Relief",
			GoalAmount:   10_000,
			DurationDays: 30,
		})
		require.Equal(t, http.StatusCreated, w.Code)

		campaign := decode[CampaignResponse](t, w)
		assert.Equal(t, uint64(1), campaign.ID)
		assert.False(t, campaign.Expired)
		assert.Zero(t, campaign.ProgressPercent)
	})

	t.Run("other wallets are forbidden", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/campaigns", api.token(t, donorAddr), CreateCampaignRequest{
			CharityID:    1,
			Title:        "Not Yours",
			GoalAmount:   10_000,
			DurationDays: 30,
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("campaign donation updates progress", func(t *testing.T) {
		campaignID := uint64(1)
		w := api.do(t, http.MethodPost, "/api/v1/donations", api.token(t, donorAddr), DonateRequest{
			CampaignID: &campaignID,
			Amount:     2500,
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w = api.do(t, http.MethodGet, "/api/v1/campaigns/1", "", nil)
		campaign := decode[CampaignResponse](t, w)
		assert.Equal(t, int64(2500), campaign.RaisedAmount)
		assert.Equal(t, uint8(25), campaign.ProgressPercent)
	})
}

func TestWithdrawalEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.registerCharity(t)

	charityID := uint64(1)
	w := api.do(t, http.MethodPost, "/api/v1/donations", api.token(t, donorAddr), DonateRequest{
		CharityID: &charityID,
		Amount:    5000,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("withdrawal deducts the fee from the payout", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/charities/1/withdrawals", api.token(t, charityAddr),
			WithdrawRequest{Amount: 5000})
		require.Equal(t, http.StatusCreated, w.Code)

		withdrawal := decode[WithdrawalResponse](t, w)
		assert.Equal(t, int64(5000), withdrawal.Amount)
		assert.Equal(t, int64(125), withdrawal.Fee)
		assert.Equal(t, int64(4875), withdrawal.NetAmount)
	})

	t.Run("overdraw is unprocessable", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/charities/1/withdrawals", api.token(t, charityAddr),
			WithdrawRequest{Amount: 1})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("withdrawal history includes the fee breakdown", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/charities/1/withdrawals", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		list := decode[ListResponse[WithdrawalResponse]](t, w)
		require.Len(t, list.Items, 1)
		assert.Equal(t, "charity", list.Items[0].Kind)
		assert.Equal(t, int64(125), list.Items[0].Fee)
	})
}

func TestPlatformEndpoints(t *testing.T) {
	api := newTestAPI(t)

	t.Run("platform state is public", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/platform", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		state := decode[PlatformResponse](t, w)
		assert.Equal(t, uint32(250), state.FeeBasisPoints)
	})

	t.Run("owner updates the fee", func(t *testing.T) {
		fee := uint32(500)
		w := api.do(t, http.MethodPatch, "/api/v1/platform/fee", api.token(t, ownerAddr),
			UpdateFeeRequest{FeeBasisPoints: &fee})
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("fee above the cap fails validation", func(t *testing.T) {
		fee := uint32(1001)
		w := api.do(t, http.MethodPatch, "/api/v1/platform/fee", api.token(t, ownerAddr),
			UpdateFeeRequest{FeeBasisPoints: &fee})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("emergency withdrawal is owner only", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/platform/emergency-withdrawal", api.token(t, donorAddr), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = api.do(t, http.MethodPost, "/api/v1/platform/emergency-withdrawal", api.token(t, ownerAddr), nil)
		require.Equal(t, http.StatusCreated, w.Code)

		withdrawal := decode[WithdrawalResponse](t, w)
		assert.Equal(t, "emergency", withdrawal.Kind)
	})
}

func TestDonorEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.registerCharity(t)

	charityID := uint64(1)
	w := api.do(t, http.MethodPost, "/api/v1/donations", api.token(t, donorAddr), DonateRequest{
		CharityID: &charityID,
		Amount:    1000,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("donor history", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/donors/"+donorAddr+"/charities", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		history := decode[DonorHistoryResponse](t, w)
		assert.Equal(t, []uint64{1}, history.CharityIDs)
	})

	t.Run("invalid donor address is 400", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/donors/nonsense/charities", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("leaderboard", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/donors/top", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Donors []LeaderboardEntry `json:"donors"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Donors, 1)
		assert.Equal(t, int64(1000), resp.Donors[0].TotalAmount)
	})

	t.Run("statistics", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/statistics", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		stats := decode[StatisticsResponse](t, w)
		assert.Equal(t, int64(1000), stats.TotalDonations)
		assert.Equal(t, uint64(1), stats.DonorCount)
	})
}
