package store

import (
	"context"

	"github.com/givechain/charity-ledger/internal/store/schema"
)

// TransferFunc moves value in the external custody pool. It is executed inside
// the store's mutation transaction so that bookkeeping commits only if the
// funds move, and vice versa.
type TransferFunc func(ctx context.Context) error

// DonorTotal is a leaderboard row aggregating one donor's giving.
type DonorTotal struct {
	Donor         string `gorm:"column:donor"`
	TotalAmount   int64  `gorm:"column:total_amount"`
	DonationCount uint64 `gorm:"column:donation_count"`
}

// PlatformStatistics aggregates platform-wide figures for dashboards.
type PlatformStatistics struct {
	TotalDonations  int64
	CharityCount    uint64
	CampaignCount   uint64
	DonorCount      uint64
	DonationCount   uint64
	AverageDonation int64
	PlatformFees    int64
}

// Store defines the interface for ledger persistence. Every mutating method is
// atomic: it either commits all of its bookkeeping (and the transfer hook, if
// any) or none of it. Implementations must make the balance and entity-state
// checks race-free against concurrent mutations of the same rows.
type Store interface {
	// InitPlatformState creates the singleton platform row if it does not exist
	InitPlatformState(ctx context.Context, owner string, feeBasisPoints uint32) error
	// GetPlatformState retrieves the singleton platform row
	GetPlatformState(ctx context.Context) (*schema.PlatformState, error)
	// SetPlatformFee updates the platform fee in basis points
	SetPlatformFee(ctx context.Context, feeBasisPoints uint32) error

	// CreateCharity inserts a charity and assigns its sequential ID
	CreateCharity(ctx context.Context, charity *schema.Charity) error
	// GetCharity retrieves a charity by ID, returning nil when absent
	GetCharity(ctx context.Context, id uint64) (*schema.Charity, error)
	// SetCharityActive flips a charity's active flag; domain.ErrNotFound when absent
	SetCharityActive(ctx context.Context, id uint64, active bool) error
	// ListCharities retrieves charities ordered by ID with the total count
	ListCharities(ctx context.Context, limit, offset int) ([]*schema.Charity, uint64, error)
	// CountCharities returns the number of registered charities
	CountCharities(ctx context.Context) (uint64, error)

	// CreateCampaign inserts a campaign and assigns its sequential ID
	CreateCampaign(ctx context.Context, campaign *schema.Campaign) error
	// GetCampaign retrieves a campaign by ID, returning nil when absent
	GetCampaign(ctx context.Context, id uint64) (*schema.Campaign, error)
	// ListCampaigns retrieves campaigns ordered by ID with the total count
	ListCampaigns(ctx context.Context, limit, offset int) ([]*schema.Campaign, uint64, error)
	// CountCampaigns returns the number of created campaigns
	CountCampaigns(ctx context.Context) (uint64, error)

	// RecordDonation appends a donation and updates the charity, campaign, and
	// platform aggregates in one transaction. It re-verifies entity state under
	// the transaction: domain.ErrNotFound, domain.ErrInactiveEntity, and
	// domain.ErrExpired (campaign deadline vs the donation timestamp).
	RecordDonation(ctx context.Context, donation *schema.Donation, transfer TransferFunc) error

	// RecordWithdrawal appends a charity withdrawal and debits its balance in
	// one transaction. The balance check runs under a row lock so concurrent
	// withdrawals can never both pass against a stale balance; returns
	// domain.ErrInsufficientBalance when the gross amount exceeds the
	// available balance.
	RecordWithdrawal(ctx context.Context, withdrawal *schema.Withdrawal, transfer TransferFunc) error

	// RecordEmergencyWithdrawal drains the entire custody balance, bypassing
	// per-charity accounting. The drained amount is determined under the
	// transaction and written back to the withdrawal row before the transfer
	// hook runs.
	RecordEmergencyWithdrawal(ctx context.Context, withdrawal *schema.Withdrawal, transfer func(ctx context.Context, amount int64) error) error

	// GetCharityDonations retrieves a charity's donations ordered by ID
	GetCharityDonations(ctx context.Context, charityID uint64, limit, offset int) ([]*schema.Donation, uint64, error)
	// GetCharityWithdrawals retrieves a charity's withdrawals ordered by ID
	GetCharityWithdrawals(ctx context.Context, charityID uint64, limit, offset int) ([]*schema.Withdrawal, uint64, error)
	// GetDonorCharityIDs returns the distinct charity IDs a donor has given to,
	// in first-donation order
	GetDonorCharityIDs(ctx context.Context, donor string) ([]uint64, error)
	// GetTopDonors returns the highest-giving donors by total amount
	GetTopDonors(ctx context.Context, limit int) ([]DonorTotal, error)
	// GetPlatformStatistics aggregates platform-wide dashboard figures
	GetPlatformStatistics(ctx context.Context) (*PlatformStatistics, error)

	// SumDonationsByCharity recomputes a charity's received total from records
	SumDonationsByCharity(ctx context.Context, charityID uint64) (int64, error)
	// SumDonationsByCampaign recomputes a campaign's raised total from records
	SumDonationsByCampaign(ctx context.Context, campaignID uint64) (int64, error)
	// SumWithdrawalsByCharity recomputes a charity's gross withdrawn total from records
	SumWithdrawalsByCharity(ctx context.Context, charityID uint64) (int64, error)
	// SumAllDonations recomputes the global donation total from records
	SumAllDonations(ctx context.Context) (int64, error)
	// SumAllWithdrawals recomputes the global gross withdrawal total,
	// emergency withdrawals included
	SumAllWithdrawals(ctx context.Context) (int64, error)
}
