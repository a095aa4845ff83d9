package rest

import (
	"time"

	"github.com/givechain/charity-ledger/internal/domain"
	"github.com/givechain/charity-ledger/internal/store"
	"github.com/givechain/charity-ledger/internal/store/schema"
)

// =============================================================================
// Requests
// =============================================================================

// RegisterCharityRequest registers a new charity. Owner only.
type RegisterCharityRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
	Wallet      string `json:"wallet" binding:"required"`
}

// SetCharityStatusRequest activates or deactivates a charity. Owner only.
type SetCharityStatusRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// UpdateFeeRequest changes the platform fee. Owner only.
type UpdateFeeRequest struct {
	FeeBasisPoints *uint32 `json:"fee_basis_points" binding:"required"`
}

// CreateCampaignRequest opens a campaign under a charity. Charity wallet only.
type CreateCampaignRequest struct {
	CharityID    uint64 `json:"charity_id" binding:"required"`
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description"`
	GoalAmount   int64  `json:"goal_amount" binding:"required"`
	DurationDays uint32 `json:"duration_days" binding:"required"`
}

// DonateRequest credits a donation. Exactly one of CharityID and CampaignID
// must be set.
type DonateRequest struct {
	CharityID  *uint64 `json:"charity_id"`
	CampaignID *uint64 `json:"campaign_id"`
	Amount     int64   `json:"amount" binding:"required"`
}

// WithdrawRequest pays out charity funds. Charity wallet only.
type WithdrawRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// =============================================================================
// Responses
// =============================================================================

// CharityResponse is the API representation of a charity
type CharityResponse struct {
	ID               uint64    `json:"id"`
	Wallet           string    `json:"wallet"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	IsActive         bool      `json:"is_active"`
	TotalReceived    int64     `json:"total_received"`
	TotalWithdrawn   int64     `json:"total_withdrawn"`
	AvailableBalance int64     `json:"available_balance"`
	CreatedAt        time.Time `json:"created_at"`
}

// CampaignResponse is the API representation of a campaign. Expired is
// computed against the current time, independent of IsActive.
type CampaignResponse struct {
	ID              uint64    `json:"id"`
	CharityID       uint64    `json:"charity_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	GoalAmount      int64     `json:"goal_amount"`
	RaisedAmount    int64     `json:"raised_amount"`
	ProgressPercent uint8     `json:"progress_percent"`
	Deadline        time.Time `json:"deadline"`
	IsActive        bool      `json:"is_active"`
	Expired         bool      `json:"expired"`
	CreatedAt       time.Time `json:"created_at"`
}

// DonationResponse is the API representation of a donation record
type DonationResponse struct {
	TxID       string    `json:"tx_id"`
	CharityID  uint64    `json:"charity_id"`
	CampaignID *uint64   `json:"campaign_id,omitempty"`
	Donor      string    `json:"donor"`
	Amount     int64     `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// WithdrawalResponse is the API representation of a withdrawal record
type WithdrawalResponse struct {
	TxID        string    `json:"tx_id"`
	Kind        string    `json:"kind"`
	CharityID   *uint64   `json:"charity_id,omitempty"`
	Amount      int64     `json:"amount"`
	Fee         int64     `json:"fee"`
	NetAmount   int64     `json:"net_amount"`
	Destination string    `json:"destination"`
	Timestamp   time.Time `json:"timestamp"`
}

// PlatformResponse is the API representation of the platform state
type PlatformResponse struct {
	Owner          string `json:"owner"`
	FeeBasisPoints uint32 `json:"fee_basis_points"`
	TotalDonations int64  `json:"total_donations"`
	CustodyBalance int64  `json:"custody_balance"`
}

// StatisticsResponse aggregates platform-wide dashboard figures
type StatisticsResponse struct {
	TotalDonations  int64  `json:"total_donations"`
	CharityCount    uint64 `json:"charity_count"`
	CampaignCount   uint64 `json:"campaign_count"`
	DonorCount      uint64 `json:"donor_count"`
	DonationCount   uint64 `json:"donation_count"`
	AverageDonation int64  `json:"average_donation"`
	PlatformFees    int64  `json:"platform_fees"`
}

// LeaderboardEntry is one donor row of the leaderboard
type LeaderboardEntry struct {
	Donor         string `json:"donor"`
	TotalAmount   int64  `json:"total_amount"`
	DonationCount uint64 `json:"donation_count"`
}

// DonorHistoryResponse lists the charities a donor has given to
type DonorHistoryResponse struct {
	Donor      string   `json:"donor"`
	CharityIDs []uint64 `json:"charity_ids"`
}

// ListResponse wraps a paginated collection
type ListResponse[T any] struct {
	Items  []T    `json:"items"`
	Total  uint64 `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// =============================================================================
// Mappers
// =============================================================================

func toCharityResponse(charity *schema.Charity) CharityResponse {
	return CharityResponse{
		ID:               charity.ID,
		Wallet:           charity.Wallet,
		Name:             charity.Name,
		Description:      charity.Description,
		IsActive:         charity.IsActive,
		TotalReceived:    charity.TotalReceived,
		TotalWithdrawn:   charity.TotalWithdrawn,
		AvailableBalance: charity.AvailableBalance(),
		CreatedAt:        charity.CreatedAt,
	}
}

func toCampaignResponse(campaign *schema.Campaign, expired bool) CampaignResponse {
	return CampaignResponse{
		ID:              campaign.ID,
		CharityID:       campaign.CharityID,
		Title:           campaign.Title,
		Description:     campaign.Description,
		GoalAmount:      campaign.GoalAmount,
		RaisedAmount:    campaign.RaisedAmount,
		ProgressPercent: domain.CampaignProgress(campaign.RaisedAmount, campaign.GoalAmount),
		Deadline:        campaign.Deadline,
		IsActive:        campaign.IsActive,
		Expired:         expired,
		CreatedAt:       campaign.CreatedAt,
	}
}

func toDonationResponse(donation *schema.Donation) DonationResponse {
	return DonationResponse{
		TxID:       donation.TxID,
		CharityID:  donation.CharityID,
		CampaignID: donation.CampaignID,
		Donor:      donation.Donor,
		Amount:     donation.Amount,
		Timestamp:  donation.Timestamp,
	}
}

func toWithdrawalResponse(withdrawal *schema.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		TxID:        withdrawal.TxID,
		Kind:        string(withdrawal.Kind),
		CharityID:   withdrawal.CharityID,
		Amount:      withdrawal.Amount,
		Fee:         withdrawal.Fee,
		NetAmount:   withdrawal.NetAmount,
		Destination: withdrawal.Destination,
		Timestamp:   withdrawal.Timestamp,
	}
}

func toStatisticsResponse(stats *store.PlatformStatistics) StatisticsResponse {
	return StatisticsResponse{
		TotalDonations:  stats.TotalDonations,
		CharityCount:    stats.CharityCount,
		CampaignCount:   stats.CampaignCount,
		DonorCount:      stats.DonorCount,
		DonationCount:   stats.DonationCount,
		AverageDonation: stats.AverageDonation,
		PlatformFees:    stats.PlatformFees,
	}
}
