package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/givechain/charity-ledger/internal/domain"
	"github.com/givechain/charity-ledger/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.PlatformState{},
		&schema.Charity{},
		&schema.Campaign{},
		&schema.Donation{},
		&schema.Withdrawal{},
	)
}

// ConfigureConnectionPool applies pool settings to the underlying sql.DB,
// falling back to defaults for zero values (database/sql treats
// MaxOpenConns=0 as unlimited and MaxIdleConns=0 as no idle connections).
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// InitPlatformState creates the singleton platform row if it does not exist
func (s *pgStore) InitPlatformState(ctx context.Context, owner string, feeBasisPoints uint32) error {
	state := schema.PlatformState{
		ID:             schema.PlatformStateID,
		Owner:          owner,
		FeeBasisPoints: feeBasisPoints,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&state).Error
	if err != nil {
		return fmt.Errorf("failed to initialize platform state: %w", err)
	}

	return nil
}

// GetPlatformState retrieves the singleton platform row
func (s *pgStore) GetPlatformState(ctx context.Context) (*schema.PlatformState, error) {
	var state schema.PlatformState
	err := s.db.WithContext(ctx).Where("id = ?", schema.PlatformStateID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get platform state: %w", err)
	}
	return &state, nil
}

// SetPlatformFee updates the platform fee in basis points
func (s *pgStore) SetPlatformFee(ctx context.Context, feeBasisPoints uint32) error {
	result := s.db.WithContext(ctx).
		Model(&schema.PlatformState{}).
		Where("id = ?", schema.PlatformStateID).
		Update("fee_basis_points", feeBasisPoints)
	if result.Error != nil {
		return fmt.Errorf("failed to set platform fee: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateCharity inserts a charity and assigns its sequential ID
func (s *pgStore) CreateCharity(ctx context.Context, charity *schema.Charity) error {
	if err := s.db.WithContext(ctx).Create(charity).Error; err != nil {
		return fmt.Errorf("failed to create charity: %w", err)
	}
	return nil
}

// GetCharity retrieves a charity by ID, returning nil when absent
func (s *pgStore) GetCharity(ctx context.Context, id uint64) (*schema.Charity, error) {
	var charity schema.Charity
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&charity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get charity: %w", err)
	}
	return &charity, nil
}

// SetCharityActive flips a charity's active flag
func (s *pgStore) SetCharityActive(ctx context.Context, id uint64, active bool) error {
	result := s.db.WithContext(ctx).
		Model(&schema.Charity{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to set charity status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListCharities retrieves charities ordered by ID with the total count
func (s *pgStore) ListCharities(ctx context.Context, limit, offset int) ([]*schema.Charity, uint64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&schema.Charity{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count charities: %w", err)
	}

	var charities []*schema.Charity
	err := s.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&charities).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list charities: %w", err)
	}

	return charities, uint64(total), nil
}

// CountCharities returns the number of registered charities
func (s *pgStore) CountCharities(ctx context.Context) (uint64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&schema.Charity{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count charities: %w", err)
	}
	return uint64(count), nil
}

// CreateCampaign inserts a campaign and assigns its sequential ID
func (s *pgStore) CreateCampaign(ctx context.Context, campaign *schema.Campaign) error {
	if err := s.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetCampaign retrieves a campaign by ID, returning nil when absent
func (s *pgStore) GetCampaign(ctx context.Context, id uint64) (*schema.Campaign, error) {
	var campaign schema.Campaign
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &campaign, nil
}

// ListCampaigns retrieves campaigns ordered by ID with the total count
func (s *pgStore) ListCampaigns(ctx context.Context, limit, offset int) ([]*schema.Campaign, uint64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&schema.Campaign{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	var campaigns []*schema.Campaign
	err := s.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&campaigns).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}

	return campaigns, uint64(total), nil
}

// CountCampaigns returns the number of created campaigns
func (s *pgStore) CountCampaigns(ctx context.Context) (uint64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&schema.Campaign{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count campaigns: %w", err)
	}
	return uint64(count), nil
}

// RecordDonation appends a donation and updates the charity, campaign, and
// platform aggregates in one transaction
func (s *pgStore) RecordDonation(ctx context.Context, donation *schema.Donation, transfer TransferFunc) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the charity row so the active check and the totals update are
		// race-free against a concurrent deactivation or withdrawal
		var charity schema.Charity
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", donation.CharityID).
			First(&charity).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to lock charity: %w", err)
		}
		if !charity.IsActive {
			return domain.ErrInactiveEntity
		}

		if donation.CampaignID != nil {
			var campaign schema.Campaign
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", *donation.CampaignID).
				First(&campaign).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrNotFound
				}
				return fmt.Errorf("failed to lock campaign: %w", err)
			}
			if !campaign.IsActive {
				return domain.ErrInactiveEntity
			}
			if campaign.Expired(donation.Timestamp) {
				return domain.ErrExpired
			}

			err = tx.Model(&schema.Campaign{}).
				Where("id = ?", campaign.ID).
				Update("raised_amount", gorm.Expr("raised_amount + ?", donation.Amount)).Error
			if err != nil {
				return fmt.Errorf("failed to update campaign raised amount: %w", err)
			}
		}

		if err := tx.Create(donation).Error; err != nil {
			return fmt.Errorf("failed to create donation record: %w", err)
		}

		err = tx.Model(&schema.Charity{}).
			Where("id = ?", charity.ID).
			Update("total_received", gorm.Expr("total_received + ?", donation.Amount)).Error
		if err != nil {
			return fmt.Errorf("failed to update charity total received: %w", err)
		}

		err = tx.Model(&schema.PlatformState{}).
			Where("id = ?", schema.PlatformStateID).
			Updates(map[string]interface{}{
				"total_donations": gorm.Expr("total_donations + ?", donation.Amount),
				"custody_balance": gorm.Expr("custody_balance + ?", donation.Amount),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update platform aggregates: %w", err)
		}

		// Move the funds last; a failed transfer rolls back all bookkeeping
		if transfer != nil {
			if err := transfer(ctx); err != nil {
				return fmt.Errorf("transfer failed: %w", err)
			}
		}

		return nil
	})
}

// RecordWithdrawal appends a charity withdrawal and debits its balance in one
// transaction
func (s *pgStore) RecordWithdrawal(ctx context.Context, withdrawal *schema.Withdrawal, transfer TransferFunc) error {
	if withdrawal.CharityID == nil {
		return domain.ErrInvalidArgument
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The balance check must run under a row lock so two concurrent
		// withdrawals cannot both pass against a stale balance
		var charity schema.Charity
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", *withdrawal.CharityID).
			First(&charity).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to lock charity: %w", err)
		}

		if withdrawal.Amount > charity.AvailableBalance() {
			return domain.ErrInsufficientBalance
		}

		if err := tx.Create(withdrawal).Error; err != nil {
			return fmt.Errorf("failed to create withdrawal record: %w", err)
		}

		err = tx.Model(&schema.Charity{}).
			Where("id = ?", charity.ID).
			Update("total_withdrawn", gorm.Expr("total_withdrawn + ?", withdrawal.Amount)).Error
		if err != nil {
			return fmt.Errorf("failed to update charity total withdrawn: %w", err)
		}

		err = tx.Model(&schema.PlatformState{}).
			Where("id = ?", schema.PlatformStateID).
			Update("custody_balance", gorm.Expr("custody_balance - ?", withdrawal.Amount)).Error
		if err != nil {
			return fmt.Errorf("failed to update custody balance: %w", err)
		}

		if transfer != nil {
			if err := transfer(ctx); err != nil {
				return fmt.Errorf("transfer failed: %w", err)
			}
		}

		return nil
	})
}

// RecordEmergencyWithdrawal drains the entire custody balance, bypassing
// per-charity accounting
func (s *pgStore) RecordEmergencyWithdrawal(ctx context.Context, withdrawal *schema.Withdrawal, transfer func(ctx context.Context, amount int64) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var state schema.PlatformState
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", schema.PlatformStateID).
			First(&state).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to lock platform state: %w", err)
		}

		withdrawal.Amount = state.CustodyBalance
		withdrawal.Fee = 0
		withdrawal.NetAmount = state.CustodyBalance

		if err := tx.Create(withdrawal).Error; err != nil {
			return fmt.Errorf("failed to create emergency withdrawal record: %w", err)
		}

		err = tx.Model(&schema.PlatformState{}).
			Where("id = ?", schema.PlatformStateID).
			Update("custody_balance", 0).Error
		if err != nil {
			return fmt.Errorf("failed to zero custody balance: %w", err)
		}

		if transfer != nil {
			if err := transfer(ctx, withdrawal.Amount); err != nil {
				return fmt.Errorf("transfer failed: %w", err)
			}
		}

		return nil
	})
}

// GetCharityDonations retrieves a charity's donations ordered by ID
func (s *pgStore) GetCharityDonations(ctx context.Context, charityID uint64, limit, offset int) ([]*schema.Donation, uint64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&schema.Donation{}).
		Where("charity_id = ?", charityID).
		Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count donations: %w", err)
	}

	var donations []*schema.Donation
	err = s.db.WithContext(ctx).
		Where("charity_id = ?", charityID).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&donations).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get donations: %w", err)
	}

	return donations, uint64(total), nil
}

// GetCharityWithdrawals retrieves a charity's withdrawals ordered by ID
func (s *pgStore) GetCharityWithdrawals(ctx context.Context, charityID uint64, limit, offset int) ([]*schema.Withdrawal, uint64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&schema.Withdrawal{}).
		Where("charity_id = ?", charityID).
		Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}

	var withdrawals []*schema.Withdrawal
	err = s.db.WithContext(ctx).
		Where("charity_id = ?", charityID).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&withdrawals).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get withdrawals: %w", err)
	}

	return withdrawals, uint64(total), nil
}

// GetDonorCharityIDs returns the distinct charity IDs a donor has given to
func (s *pgStore) GetDonorCharityIDs(ctx context.Context, donor string) ([]uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).
		Model(&schema.Donation{}).
		Where("donor = ?", donor).
		Group("charity_id").
		Order("MIN(id) ASC").
		Pluck("charity_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get donor history: %w", err)
	}
	return ids, nil
}

// GetTopDonors returns the highest-giving donors by total amount
func (s *pgStore) GetTopDonors(ctx context.Context, limit int) ([]DonorTotal, error) {
	var rows []DonorTotal
	err := s.db.WithContext(ctx).
		Model(&schema.Donation{}).
		Select("donor, SUM(amount) AS total_amount, COUNT(*) AS donation_count").
		Group("donor").
		Order("total_amount DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get top donors: %w", err)
	}
	return rows, nil
}

// GetPlatformStatistics aggregates platform-wide dashboard figures
func (s *pgStore) GetPlatformStatistics(ctx context.Context) (*PlatformStatistics, error) {
	state, err := s.GetPlatformState(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ErrNotFound
	}

	stats := PlatformStatistics{TotalDonations: state.TotalDonations}

	if stats.CharityCount, err = s.CountCharities(ctx); err != nil {
		return nil, err
	}
	if stats.CampaignCount, err = s.CountCampaigns(ctx); err != nil {
		return nil, err
	}

	var donationCount int64
	if err := s.db.WithContext(ctx).Model(&schema.Donation{}).Count(&donationCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count donations: %w", err)
	}
	stats.DonationCount = uint64(donationCount)
	if donationCount > 0 {
		stats.AverageDonation = state.TotalDonations / donationCount
	}

	var donorCount int64
	err = s.db.WithContext(ctx).
		Model(&schema.Donation{}).
		Distinct("donor").
		Count(&donorCount).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count donors: %w", err)
	}
	stats.DonorCount = uint64(donorCount)

	var fees *int64
	err = s.db.WithContext(ctx).
		Model(&schema.Withdrawal{}).
		Select("SUM(fee)").
		Scan(&fees).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum platform fees: %w", err)
	}
	if fees != nil {
		stats.PlatformFees = *fees
	}

	return &stats, nil
}

// SumDonationsByCharity recomputes a charity's received total from records
func (s *pgStore) SumDonationsByCharity(ctx context.Context, charityID uint64) (int64, error) {
	return s.sumAmount(ctx, s.db.Model(&schema.Donation{}).Where("charity_id = ?", charityID))
}

// SumDonationsByCampaign recomputes a campaign's raised total from records
func (s *pgStore) SumDonationsByCampaign(ctx context.Context, campaignID uint64) (int64, error) {
	return s.sumAmount(ctx, s.db.Model(&schema.Donation{}).Where("campaign_id = ?", campaignID))
}

// SumWithdrawalsByCharity recomputes a charity's gross withdrawn total from records
func (s *pgStore) SumWithdrawalsByCharity(ctx context.Context, charityID uint64) (int64, error) {
	return s.sumAmount(ctx, s.db.Model(&schema.Withdrawal{}).Where("charity_id = ?", charityID))
}

// SumAllDonations recomputes the global donation total from records
func (s *pgStore) SumAllDonations(ctx context.Context) (int64, error) {
	return s.sumAmount(ctx, s.db.Model(&schema.Donation{}))
}

// SumAllWithdrawals recomputes the global gross withdrawal total,
// emergency withdrawals included
func (s *pgStore) SumAllWithdrawals(ctx context.Context) (int64, error) {
	return s.sumAmount(ctx, s.db.Model(&schema.Withdrawal{}))
}

func (s *pgStore) sumAmount(ctx context.Context, query *gorm.DB) (int64, error) {
	var sum *int64
	if err := query.WithContext(ctx).Select("SUM(amount)").Scan(&sum).Error; err != nil {
		return 0, fmt.Errorf("failed to sum amounts: %w", err)
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}
