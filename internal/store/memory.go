package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/givechain/charity-ledger/internal/domain"
	"github.com/givechain/charity-ledger/internal/store/schema"
)

type memoryStore struct {
	mu sync.Mutex

	state       *schema.PlatformState
	charities   map[uint64]*schema.Charity
	campaigns   map[uint64]*schema.Campaign
	donations   []*schema.Donation
	withdrawals []*schema.Withdrawal

	nextCharityID    uint64
	nextCampaignID   uint64
	nextDonationID   uint64
	nextWithdrawalID uint64
}

// NewMemoryStore creates an in-memory store for tests and local development.
// It honors the same atomicity and error contracts as the PostgreSQL store.
func NewMemoryStore() Store {
	return &memoryStore{
		charities:        map[uint64]*schema.Charity{},
		campaigns:        map[uint64]*schema.Campaign{},
		nextCharityID:    1,
		nextCampaignID:   1,
		nextDonationID:   1,
		nextWithdrawalID: 1,
	}
}

func (s *memoryStore) InitPlatformState(_ context.Context, owner string, feeBasisPoints uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil {
		return nil
	}
	s.state = &schema.PlatformState{
		ID:             schema.PlatformStateID,
		Owner:          owner,
		FeeBasisPoints: feeBasisPoints,
		UpdatedAt:      time.Now(),
	}
	return nil
}

func (s *memoryStore) GetPlatformState(_ context.Context) (*schema.PlatformState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return nil, nil
	}
	state := *s.state
	return &state, nil
}

func (s *memoryStore) SetPlatformFee(_ context.Context, feeBasisPoints uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return domain.ErrNotFound
	}
	s.state.FeeBasisPoints = feeBasisPoints
	s.state.UpdatedAt = time.Now()
	return nil
}

func (s *memoryStore) CreateCharity(_ context.Context, charity *schema.Charity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	charity.ID = s.nextCharityID
	s.nextCharityID++
	if charity.CreatedAt.IsZero() {
		charity.CreatedAt = time.Now()
	}

	stored := *charity
	s.charities[stored.ID] = &stored
	return nil
}

func (s *memoryStore) GetCharity(_ context.Context, id uint64) (*schema.Charity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	charity, ok := s.charities[id]
	if !ok {
		return nil, nil
	}
	c := *charity
	return &c, nil
}

func (s *memoryStore) SetCharityActive(_ context.Context, id uint64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	charity, ok := s.charities[id]
	if !ok {
		return domain.ErrNotFound
	}
	charity.IsActive = active
	return nil
}

func (s *memoryStore) ListCharities(_ context.Context, limit, offset int) ([]*schema.Charity, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*schema.Charity, 0, len(s.charities))
	for _, charity := range s.charities {
		c := *charity
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	return paginate(all, limit, offset), uint64(len(all)), nil
}

func (s *memoryStore) CountCharities(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.charities)), nil
}

func (s *memoryStore) CreateCampaign(_ context.Context, campaign *schema.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign.ID = s.nextCampaignID
	s.nextCampaignID++
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now()
	}

	stored := *campaign
	s.campaigns[stored.ID] = &stored
	return nil
}

func (s *memoryStore) GetCampaign(_ context.Context, id uint64) (*schema.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign, ok := s.campaigns[id]
	if !ok {
		return nil, nil
	}
	c := *campaign
	return &c, nil
}

func (s *memoryStore) ListCampaigns(_ context.Context, limit, offset int) ([]*schema.Campaign, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*schema.Campaign, 0, len(s.campaigns))
	for _, campaign := range s.campaigns {
		c := *campaign
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	return paginate(all, limit, offset), uint64(len(all)), nil
}

func (s *memoryStore) CountCampaigns(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.campaigns)), nil
}

func (s *memoryStore) RecordDonation(ctx context.Context, donation *schema.Donation, transfer TransferFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return domain.ErrNotFound
	}

	charity, ok := s.charities[donation.CharityID]
	if !ok {
		return domain.ErrNotFound
	}
	if !charity.IsActive {
		return domain.ErrInactiveEntity
	}

	var campaign *schema.Campaign
	if donation.CampaignID != nil {
		campaign, ok = s.campaigns[*donation.CampaignID]
		if !ok {
			return domain.ErrNotFound
		}
		if !campaign.IsActive {
			return domain.ErrInactiveEntity
		}
		if campaign.Expired(donation.Timestamp) {
			return domain.ErrExpired
		}
	}

	// The transfer runs before any state is touched so a failure leaves the
	// ledger unchanged, matching the transactional store's rollback
	if transfer != nil {
		if err := transfer(ctx); err != nil {
			return err
		}
	}

	donation.ID = s.nextDonationID
	s.nextDonationID++
	stored := *donation
	s.donations = append(s.donations, &stored)

	charity.TotalReceived += donation.Amount
	if campaign != nil {
		campaign.RaisedAmount += donation.Amount
	}
	s.state.TotalDonations += donation.Amount
	s.state.CustodyBalance += donation.Amount
	s.state.UpdatedAt = time.Now()

	return nil
}

func (s *memoryStore) RecordWithdrawal(ctx context.Context, withdrawal *schema.Withdrawal, transfer TransferFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if withdrawal.CharityID == nil {
		return domain.ErrInvalidArgument
	}
	if s.state == nil {
		return domain.ErrNotFound
	}

	charity, ok := s.charities[*withdrawal.CharityID]
	if !ok {
		return domain.ErrNotFound
	}
	if withdrawal.Amount > charity.AvailableBalance() {
		return domain.ErrInsufficientBalance
	}

	if transfer != nil {
		if err := transfer(ctx); err != nil {
			return err
		}
	}

	withdrawal.ID = s.nextWithdrawalID
	s.nextWithdrawalID++
	stored := *withdrawal
	s.withdrawals = append(s.withdrawals, &stored)

	charity.TotalWithdrawn += withdrawal.Amount
	s.state.CustodyBalance -= withdrawal.Amount
	s.state.UpdatedAt = time.Now()

	return nil
}

func (s *memoryStore) RecordEmergencyWithdrawal(ctx context.Context, withdrawal *schema.Withdrawal, transfer func(ctx context.Context, amount int64) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return domain.ErrNotFound
	}

	withdrawal.Amount = s.state.CustodyBalance
	withdrawal.Fee = 0
	withdrawal.NetAmount = s.state.CustodyBalance

	if transfer != nil {
		if err := transfer(ctx, withdrawal.Amount); err != nil {
			return err
		}
	}

	withdrawal.ID = s.nextWithdrawalID
	s.nextWithdrawalID++
	stored := *withdrawal
	s.withdrawals = append(s.withdrawals, &stored)

	s.state.CustodyBalance = 0
	s.state.UpdatedAt = time.Now()

	return nil
}

func (s *memoryStore) GetCharityDonations(_ context.Context, charityID uint64, limit, offset int) ([]*schema.Donation, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*schema.Donation
	for _, donation := range s.donations {
		if donation.CharityID == charityID {
			d := *donation
			matched = append(matched, &d)
		}
	}

	return paginate(matched, limit, offset), uint64(len(matched)), nil
}

func (s *memoryStore) GetCharityWithdrawals(_ context.Context, charityID uint64, limit, offset int) ([]*schema.Withdrawal, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*schema.Withdrawal
	for _, withdrawal := range s.withdrawals {
		if withdrawal.CharityID != nil && *withdrawal.CharityID == charityID {
			w := *withdrawal
			matched = append(matched, &w)
		}
	}

	return paginate(matched, limit, offset), uint64(len(matched)), nil
}

func (s *memoryStore) GetDonorCharityIDs(_ context.Context, donor string) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[uint64]bool{}
	var ids []uint64
	for _, donation := range s.donations {
		if donation.Donor != donor || seen[donation.CharityID] {
			continue
		}
		seen[donation.CharityID] = true
		ids = append(ids, donation.CharityID)
	}
	return ids, nil
}

func (s *memoryStore) GetTopDonors(_ context.Context, limit int) ([]DonorTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := map[string]*DonorTotal{}
	var order []string
	for _, donation := range s.donations {
		row, ok := totals[donation.Donor]
		if !ok {
			row = &DonorTotal{Donor: donation.Donor}
			totals[donation.Donor] = row
			order = append(order, donation.Donor)
		}
		row.TotalAmount += donation.Amount
		row.DonationCount++
	}

	rows := make([]DonorTotal, 0, len(order))
	for _, donor := range order {
		rows = append(rows, *totals[donor])
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalAmount > rows[j].TotalAmount })

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *memoryStore) GetPlatformStatistics(_ context.Context) (*PlatformStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return nil, domain.ErrNotFound
	}

	stats := PlatformStatistics{
		TotalDonations: s.state.TotalDonations,
		CharityCount:   uint64(len(s.charities)),
		CampaignCount:  uint64(len(s.campaigns)),
		DonationCount:  uint64(len(s.donations)),
	}

	donors := map[string]bool{}
	for _, donation := range s.donations {
		donors[donation.Donor] = true
	}
	stats.DonorCount = uint64(len(donors))

	if stats.DonationCount > 0 {
		stats.AverageDonation = stats.TotalDonations / int64(stats.DonationCount)
	}
	for _, withdrawal := range s.withdrawals {
		stats.PlatformFees += withdrawal.Fee
	}

	return &stats, nil
}

func (s *memoryStore) SumDonationsByCharity(_ context.Context, charityID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, donation := range s.donations {
		if donation.CharityID == charityID {
			sum += donation.Amount
		}
	}
	return sum, nil
}

func (s *memoryStore) SumDonationsByCampaign(_ context.Context, campaignID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, donation := range s.donations {
		if donation.CampaignID != nil && *donation.CampaignID == campaignID {
			sum += donation.Amount
		}
	}
	return sum, nil
}

func (s *memoryStore) SumWithdrawalsByCharity(_ context.Context, charityID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, withdrawal := range s.withdrawals {
		if withdrawal.CharityID != nil && *withdrawal.CharityID == charityID {
			sum += withdrawal.Amount
		}
	}
	return sum, nil
}

func (s *memoryStore) SumAllDonations(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, donation := range s.donations {
		sum += donation.Amount
	}
	return sum, nil
}

func (s *memoryStore) SumAllWithdrawals(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, withdrawal := range s.withdrawals {
		sum += withdrawal.Amount
	}
	return sum, nil
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
