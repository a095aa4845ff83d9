package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/givechain/charity-ledger/internal/api/middleware"
	"github.com/givechain/charity-ledger/internal/domain"
	"github.com/givechain/charity-ledger/internal/ledger"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// RegisterCharity registers a new charity (owner only)
	// POST /api/v1/charities
	RegisterCharity(c *gin.Context)

	// GetCharity retrieves a single charity
	// GET /api/v1/charities/:id
	GetCharity(c *gin.Context)

	// ListCharities retrieves charities
	// GET /api/v1/charities?limit=<limit>&offset=<offset>
	ListCharities(c *gin.Context)

	// SetCharityStatus activates or deactivates a charity (owner only)
	// PATCH /api/v1/charities/:id/status
	SetCharityStatus(c *gin.Context)

	// GetCharityDonations retrieves a charity's donation history
	// GET /api/v1/charities/:id/donations?limit=<limit>&offset=<offset>
	GetCharityDonations(c *gin.Context)

	// GetCharityWithdrawals retrieves a charity's withdrawal history
	// GET /api/v1/charities/:id/withdrawals?limit=<limit>&offset=<offset>
	GetCharityWithdrawals(c *gin.Context)

	// Withdraw pays out charity funds minus the platform fee (charity wallet only)
	// POST /api/v1/charities/:id/withdrawals
	Withdraw(c *gin.Context)

	// CreateCampaign opens a campaign under a charity (charity wallet only)
	// POST /api/v1/campaigns
	CreateCampaign(c *gin.Context)

	// GetCampaign retrieves a single campaign
	// GET /api/v1/campaigns/:id
	GetCampaign(c *gin.Context)

	// ListCampaigns retrieves campaigns
	// GET /api/v1/campaigns?limit=<limit>&offset=<offset>
	ListCampaigns(c *gin.Context)

	// Donate credits a donation to a charity or a campaign
	// POST /api/v1/donations
	Donate(c *gin.Context)

	// GetDonorHistory retrieves the charities a donor has given to
	// GET /api/v1/donors/:address/charities
	GetDonorHistory(c *gin.Context)

	// GetTopDonors retrieves the donor leaderboard
	// GET /api/v1/donors/top?limit=<limit>
	GetTopDonors(c *gin.Context)

	// GetPlatform retrieves the platform state
	// GET /api/v1/platform
	GetPlatform(c *gin.Context)

	// UpdateFee changes the platform fee (owner only)
	// PATCH /api/v1/platform/fee
	UpdateFee(c *gin.Context)

	// EmergencyWithdraw drains the custody pool to the owner (owner only)
	// POST /api/v1/platform/emergency-withdrawal
	EmergencyWithdraw(c *gin.Context)

	// GetStatistics retrieves platform-wide aggregates
	// GET /api/v1/statistics
	GetStatistics(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	ledger ledger.Ledger
}

// NewHandler creates a new REST API handler
func NewHandler(l ledger.Ledger) Handler {
	return &handler{ledger: l}
}

// caller extracts the authenticated wallet identity, failing the request when
// the credentials carry no wallet subject
func caller(c *gin.Context) (domain.Address, bool) {
	addr, ok := middleware.CallerAddress(c)
	if !ok {
		respondForbidden(c, "A wallet identity is required for this operation")
		return "", false
	}
	return addr, true
}

func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func parsePagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *handler) RegisterCharity(c *gin.Context) {
	addr, ok := caller(c)
	if !ok {
		return
	}

	var req RegisterCharityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	charity, err := h.ledger.RegisterCharity(c.Request.Context(), addr, req.Name, req.Description, domain.Address(req.Wallet))
	if err != nil {
		respondLedgerError(c, err, "Failed to register charity")
		return
	}

	c.JSON(http.StatusCreated, toCharityResponse(charity))
}

func (h *handler) GetCharity(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	charity, err := h.ledger.GetCharity(c.Request.Context(), id)
	if err != nil {
		respondLedgerError(c, err, "Failed to get charity")
		return
	}

	c.JSON(http.StatusOK, toCharityResponse(charity))
}

func (h *handler) ListCharities(c *gin.Context) {
	limit, offset := parsePagination(c)

	charities, total, err := h.ledger.ListCharities(c.Request.Context(), limit, offset)
	if err != nil {
		respondLedgerError(c, err, "Failed to list charities")
		return
	}

	items := make([]CharityResponse, 0, len(charities))
	for _, charity := range charities {
		items = append(items, toCharityResponse(charity))
	}

	c.JSON(http.StatusOK, ListResponse[CharityResponse]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *handler) SetCharityStatus(c *gin.Context) {
	addr, ok := caller(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req SetCharityStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	if err := h.ledger.SetCharityStatus(c.Request.Context(), addr, id, *req.Active); err != nil {
		respondLedgerError(c, err, "Failed to update charity status")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) GetCharityDonations(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	limit, offset := parsePagination(c)

	donations, total, err := h.ledger.GetCharityDonations(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondLedgerError(c, err, "Failed to get donations")
		return
	}

	items := make([]DonationResponse, 0, len(donations))
	for _, donation := range donations {
		items = append(items, toDonationResponse(donation))
	}

	c.JSON(http.StatusOK, ListResponse[DonationResponse]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *handler) GetCharityWithdrawals(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	limit, offset := parsePagination(c)

	withdrawals, total, err := h.ledger.GetCharityWithdrawals(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondLedgerError(c, err, "Failed to get withdrawals")
		return
	}

	items := make([]WithdrawalResponse, 0, len(withdrawals))
	for _, withdrawal := range withdrawals {
		items = append(items, toWithdrawalResponse(withdrawal))
	}

	c.JSON(http.StatusOK, ListResponse[WithdrawalResponse]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *handler) Withdraw(c *gin.Context) {
	addr, ok := caller(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	withdrawal, err := h.ledger.Withdraw(c.Request.Context(), addr, id, req.Amount)
	if err != nil {
		respondLedgerError(c, err, "Failed to withdraw")
		return
	}

	c.JSON(http.StatusCreated, toWithdrawalResponse(withdrawal))
}

func (h *handler) CreateCampaign(c *gin.Context) {
	addr, ok := caller(c)
	if !ok {
		return
	}

	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	campaign, err := h.ledger.CreateCampaign(c.Request.Context(), addr,
		req.CharityID, req.Title, req.Description, req.GoalAmount, req.DurationDays)
	if err != nil {
		respondLedgerError(c, err, "Failed to create campaign")
		return
	}

	c.JSON(http.StatusCreated, toCampaignResponse(campaign, h.ledger.CampaignExpired(campaign)))
}

func (h *handler) GetCampaign(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	campaign, err := h.ledger.GetCampaign(c.Request.Context(), id)
	if err != nil {
		respondLedgerError(c, err, "Failed to get campaign")
		return
	}

	c.JSON(http.StatusOK, toCampaignResponse(campaign, h.ledger.CampaignExpired(campaign)))
}

func (h *handler) ListCampaigns(c *gin.Context) {
	limit, offset := parsePagination(c)

	campaigns, total, err := h.ledger.ListCampaigns(c.Request.Context(), limit, offset)
	if err != nil {
		respondLedgerError(c, err, "Failed to list campaigns")
		return
	}

	items := make([]CampaignResponse, 0, len(campaigns))
	for _, campaign := range campaigns {
		items = append(items, toCampaignResponse(campaign, h.ledger.CampaignExpired(campaign)))
	}

	c.JSON(http.StatusOK, ListResponse[CampaignResponse]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *handler) Donate(c *gin.Context) {
	addr, ok := caller(c)
	if !ok {
		return
	}

	var req DonateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	if (req.CharityID == nil) == (req.CampaignID == nil) {
		respondValidationError(c, "exactly one of charity_id and campaign_id must be set")
		return
	}

	var donation *DonationResponse
	if req.CharityID != nil {
		d, err := h.ledger.Donate(c.Request.Context(), addr, *req.CharityID, req.Amount)
		if err != nil {
			respondLedgerError(c, err, "Failed to donate")
			return
		}
		resp := toDonationResponse(d)
		donation = &resp
	} else {
		d, err := h.ledger.DonateToCampaign(c.Request.Context(), addr, *req.CampaignID, req.Amount)
		if err != nil {
			respondLedgerError(c, err, "Failed to donate")
			return
		}
		resp := toDonationResponse(d)
		donation = &resp
	}

	c.JSON(http.StatusCreated, donation)
}

func (h *handler) GetDonorHistory(c *gin.Context) {
	addr := domain.Address(c.Param("address"))
	if !addr.Valid() {
		respondBadRequest(c, "Invalid donor address")
		return
	}

	ids, err := h.ledger.GetDonorHistory(c.Request.Context(), addr)
	if err != nil {
		respondLedgerError(c, err, "Failed to get donor history")
		return
	}

	if ids == nil {
		ids = []uint64{}
	}
	c.JSON(http.StatusOK, DonorHistoryResponse{
		Donor:      domain.NewAddress(addr.String()).String(),
		CharityIDs: ids,
	})
}

func (h *handler) GetTopDonors(c *gin.Context) {
	limit, _ := parsePagination(c)

	rows, err := h.ledger.GetTopDonors(c.Request.Context(), limit)
	if err != nil {
		respondLedgerError(c, err, "Failed to get top donors")
		return
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, LeaderboardEntry{
			Donor:         row.Donor,
			TotalAmount:   row.TotalAmount,
			DonationCount: row.DonationCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{"donors": entries})
}

func (h *handler) GetPlatform(c *gin.Context) {
	state, err := h.ledger.GetPlatformState(c.Request.Context())
	if err != nil {
		respondLedgerError(c, err, "Failed to get platform state")
		return
	}

	c.JSON(http.StatusOK, PlatformResponse{
		Owner:          state.Owner,
		FeeBasisPoints: state.FeeBasisPoints,
		TotalDonations: state.TotalDonations,
		CustodyBalance: state.CustodyBalance,
	})
}

func (h *handler) UpdateFee(c *gin.Context) {
	addr, ok := caller(c)
	if !ok {
		return
	}

	var req UpdateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	if err := h.ledger.UpdatePlatformFee(c.Request.Context(), addr, *req.FeeBasisPoints); err != nil {
		respondLedgerError(c, err, "Failed to update platform fee")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) EmergencyWithdraw(c *gin.Context) {
	addr, ok := caller(c)
	if !ok {
		return
	}

	withdrawal, err := h.ledger.EmergencyWithdraw(c.Request.Context(), addr)
	if err != nil {
		respondLedgerError(c, err, "Failed to execute emergency withdrawal")
		return
	}

	c.JSON(http.StatusCreated, toWithdrawalResponse(withdrawal))
}

func (h *handler) GetStatistics(c *gin.Context) {
	stats, err := h.ledger.GetStatistics(c.Request.Context())
	if err != nil {
		respondLedgerError(c, err, "Failed to get statistics")
		return
	}

	c.JSON(http.StatusOK, toStatisticsResponse(stats))
}

func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
