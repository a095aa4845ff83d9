package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givechain/charity-ledger/internal/domain"
	"github.com/givechain/charity-ledger/internal/store/schema"
)

const (
	testOwner         = "0x1234567890123456789012345678901234567890"
	testCharityWallet = "0x1111111111111111111111111111111111111111"
	testDonor         = "0x2222222222222222222222222222222222222222"
	testDonor2        = "0x3333333333333333333333333333333333333333"
	testFeeBps        = 250
)

// =============================================================================
// Test Data Builders
// =============================================================================

func buildTestCharity(wallet string) *schema.Charity {
	return &schema.Charity{
		Wallet:      wallet,
		Name:        "Clean Water Initiative",
		Description: "Wells and filtration systems",
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
}

func buildTestCampaign(charityID uint64, deadline time.Time) *schema.Campaign {
	return &schema.Campaign{
		CharityID:   charityID,
		Title:       "Winter Relief",
		Description: "Emergency winter supplies",
		GoalAmount:  100_000,
		Deadline:    deadline,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
}

func buildTestDonation(charityID uint64, campaignID *uint64, donor string, amount int64) *schema.Donation {
	return &schema.Donation{
		TxID:       ulid.Make().String(),
		CharityID:  charityID,
		CampaignID: campaignID,
		Donor:      donor,
		Amount:     amount,
		Timestamp:  time.Now().UTC(),
	}
}

func buildTestWithdrawal(charityID uint64, amount, fee int64, destination string) *schema.Withdrawal {
	return &schema.Withdrawal{
		TxID:        ulid.Make().String(),
		Kind:        schema.WithdrawalKindCharity,
		CharityID:   &charityID,
		Amount:      amount,
		Fee:         fee,
		NetAmount:   amount - fee,
		Destination: destination,
		Timestamp:   time.Now().UTC(),
	}
}

// seedPlatform initializes the platform row and registers one active charity
func seedPlatform(t *testing.T, store Store) *schema.Charity {
	ctx := context.Background()
	require.NoError(t, store.InitPlatformState(ctx, testOwner, testFeeBps))

	charity := buildTestCharity(testCharityWallet)
	require.NoError(t, store.CreateCharity(ctx, charity))
	return charity
}

// =============================================================================
// Test: Platform state
// =============================================================================

func testPlatformState(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get returns nil before initialization", func(t *testing.T) {
		state, err := store.GetPlatformState(ctx)
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("set fee fails before initialization", func(t *testing.T) {
		err := store.SetPlatformFee(ctx, 100)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("initialization is idempotent", func(t *testing.T) {
		require.NoError(t, store.InitPlatformState(ctx, testOwner, testFeeBps))

		// A second init must not overwrite the existing row
		require.NoError(t, store.InitPlatformState(ctx, testDonor, 999))

		state, err := store.GetPlatformState(ctx)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, testOwner, state.Owner)
		assert.Equal(t, uint32(testFeeBps), state.FeeBasisPoints)
		assert.Zero(t, state.TotalDonations)
		assert.Zero(t, state.CustodyBalance)
	})

	t.Run("set fee updates the singleton row", func(t *testing.T) {
		require.NoError(t, store.SetPlatformFee(ctx, 500))

		state, err := store.GetPlatformState(ctx)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, uint32(500), state.FeeBasisPoints)
	})
}

// =============================================================================
// Test: Charities
// =============================================================================

func testCharities(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get returns nil for unknown ID", func(t *testing.T) {
		charity, err := store.GetCharity(ctx, 42)
		require.NoError(t, err)
		assert.Nil(t, charity)
	})

	t.Run("IDs are assigned sequentially from 1", func(t *testing.T) {
		first := buildTestCharity(testCharityWallet)
		require.NoError(t, store.CreateCharity(ctx, first))
		assert.Equal(t, uint64(1), first.ID)

		second := buildTestCharity(testDonor)
		require.NoError(t, store.CreateCharity(ctx, second))
		assert.Equal(t, uint64(2), second.ID)

		got, err := store.GetCharity(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.Wallet, got.Wallet)
		assert.Equal(t, first.Name, got.Name)
		assert.True(t, got.IsActive)
	})

	t.Run("set active toggles the flag", func(t *testing.T) {
		require.NoError(t, store.SetCharityActive(ctx, 1, false))

		got, err := store.GetCharity(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.False(t, got.IsActive)

		require.NoError(t, store.SetCharityActive(ctx, 1, true))

		got, err = store.GetCharity(ctx, 1)
		require.NoError(t, err)
		assert.True(t, got.IsActive)
	})

	t.Run("set active fails for unknown ID", func(t *testing.T) {
		err := store.SetCharityActive(ctx, 42, false)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list paginates in ID order", func(t *testing.T) {
		charities, total, err := store.ListCharities(ctx, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), total)
		require.Len(t, charities, 1)
		assert.Equal(t, uint64(2), charities[0].ID)

		count, err := store.CountCharities(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), count)
	})
}

// =============================================================================
// Test: Campaigns
// =============================================================================

func testCampaigns(t *testing.T, store Store) {
	ctx := context.Background()
	charity := seedPlatform(t, store)

	t.Run("get returns nil for unknown ID", func(t *testing.T) {
		campaign, err := store.GetCampaign(ctx, 42)
		require.NoError(t, err)
		assert.Nil(t, campaign)
	})

	t.Run("IDs are assigned sequentially from 1", func(t *testing.T) {
		deadline := time.Now().UTC().Add(30 * 24 * time.Hour)

		first := buildTestCampaign(charity.ID, deadline)
		require.NoError(t, store.CreateCampaign(ctx, first))
		assert.Equal(t, uint64(1), first.ID)

		second := buildTestCampaign(charity.ID, deadline)
		second.Title = "Spring Relief"
		require.NoError(t, store.CreateCampaign(ctx, second))
		assert.Equal(t, uint64(2), second.ID)

		got, err := store.GetCampaign(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, charity.ID, got.CharityID)
		assert.Equal(t, "Winter Relief", got.Title)
		assert.Zero(t, got.RaisedAmount)
	})

	t.Run("list paginates in ID order", func(t *testing.T) {
		campaigns, total, err := store.ListCampaigns(ctx, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), total)
		require.Len(t, campaigns, 2)
		assert.Equal(t, uint64(1), campaigns[0].ID)
		assert.Equal(t, uint64(2), campaigns[1].ID)

		count, err := store.CountCampaigns(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), count)
	})
}

// =============================================================================
// Test: RecordDonation
// =============================================================================

func testRecordDonation(t *testing.T, store Store) {
	ctx := context.Background()
	charity := seedPlatform(t, store)

	t.Run("direct donation updates charity and platform aggregates", func(t *testing.T) {
		transferred := false
		donation := buildTestDonation(charity.ID, nil, testDonor, 1000)
		err := store.RecordDonation(ctx, donation, func(ctx context.Context) error {
			transferred = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, transferred)

		got, err := store.GetCharity(ctx, charity.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), got.TotalReceived)

		state, err := store.GetPlatformState(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), state.TotalDonations)
		assert.Equal(t, int64(1000), state.CustodyBalance)
	})

	t.Run("campaign donation also updates the raised amount", func(t *testing.T) {
		campaign := buildTestCampaign(charity.ID, time.Now().UTC().Add(24*time.Hour))
		require.NoError(t, store.CreateCampaign(ctx, campaign))

		donation := buildTestDonation(charity.ID, &campaign.ID, testDonor, 500)
		require.NoError(t, store.RecordDonation(ctx, donation, nil))

		gotCampaign, err := store.GetCampaign(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(500), gotCampaign.RaisedAmount)

		gotCharity, err := store.GetCharity(ctx, charity.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), gotCharity.TotalReceived)
	})

	t.Run("unknown charity is rejected", func(t *testing.T) {
		donation := buildTestDonation(42, nil, testDonor, 100)
		err := store.RecordDonation(ctx, donation, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("inactive charity is rejected", func(t *testing.T) {
		require.NoError(t, store.SetCharityActive(ctx, charity.ID, false))
		defer func() {
			require.NoError(t, store.SetCharityActive(ctx, charity.ID, true))
		}()

		donation := buildTestDonation(charity.ID, nil, testDonor, 100)
		err := store.RecordDonation(ctx, donation, nil)
		assert.ErrorIs(t, err, domain.ErrInactiveEntity)
	})

	t.Run("donation past the campaign deadline is rejected", func(t *testing.T) {
		campaign := buildTestCampaign(charity.ID, time.Now().UTC().Add(time.Hour))
		require.NoError(t, store.CreateCampaign(ctx, campaign))

		donation := buildTestDonation(charity.ID, &campaign.ID, testDonor, 100)
		donation.Timestamp = campaign.Deadline
		err := store.RecordDonation(ctx, donation, nil)
		assert.ErrorIs(t, err, domain.ErrExpired)

		// Nothing may change on rejection
		gotCampaign, err := store.GetCampaign(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Zero(t, gotCampaign.RaisedAmount)

		state, err := store.GetPlatformState(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), state.TotalDonations)
	})

	t.Run("failed transfer leaves the ledger unchanged", func(t *testing.T) {
		donation := buildTestDonation(charity.ID, nil, testDonor, 9999)
		err := store.RecordDonation(ctx, donation, func(ctx context.Context) error {
			return errors.New("custodian unavailable")
		})
		require.Error(t, err)

		got, err := store.GetCharity(ctx, charity.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), got.TotalReceived)

		state, err := store.GetPlatformState(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), state.CustodyBalance)
	})
}

// =============================================================================
// Test: RecordWithdrawal
// =============================================================================

func testRecordWithdrawal(t *testing.T, store Store) {
	ctx := context.Background()
	charity := seedPlatform(t, store)

	donation := buildTestDonation(charity.ID, nil, testDonor, 5000)
	require.NoError(t, store.RecordDonation(ctx, donation, nil))

	t.Run("withdrawal debits the gross amount", func(t *testing.T) {
		withdrawal := buildTestWithdrawal(charity.ID, 5000, 125, testCharityWallet)
		require.NoError(t, store.RecordWithdrawal(ctx, withdrawal, nil))

		got, err := store.GetCharity(ctx, charity.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), got.TotalWithdrawn)
		assert.Zero(t, got.AvailableBalance())

		state, err := store.GetPlatformState(ctx)
		require.NoError(t, err)
		assert.Zero(t, state.CustodyBalance)
	})

	t.Run("second withdrawal against a drained balance fails", func(t *testing.T) {
		withdrawal := buildTestWithdrawal(charity.ID, 1, 0, testCharityWallet)
		err := store.RecordWithdrawal(ctx, withdrawal, nil)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	})

	t.Run("unknown charity is rejected", func(t *testing.T) {
		withdrawal := buildTestWithdrawal(42, 100, 0, testCharityWallet)
		err := store.RecordWithdrawal(ctx, withdrawal, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("missing charity ID is rejected", func(t *testing.T) {
		withdrawal := buildTestWithdrawal(charity.ID, 100, 0, testCharityWallet)
		withdrawal.CharityID = nil
		err := store.RecordWithdrawal(ctx, withdrawal, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("failed transfer leaves the ledger unchanged", func(t *testing.T) {
		topUp := buildTestDonation(charity.ID, nil, testDonor, 1000)
		require.NoError(t, store.RecordDonation(ctx, topUp, nil))

		withdrawal := buildTestWithdrawal(charity.ID, 1000, 25, testCharityWallet)
		err := store.RecordWithdrawal(ctx, withdrawal, func(ctx context.Context) error {
			return errors.New("custodian unavailable")
		})
		require.Error(t, err)

		got, err := store.GetCharity(ctx, charity.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), got.AvailableBalance())

		state, err := store.GetPlatformState(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), state.CustodyBalance)
	})
}

// =============================================================================
// Test: RecordEmergencyWithdrawal
// =============================================================================

func testRecordEmergencyWithdrawal(t *testing.T, store Store) {
	ctx := context.Background()
	charity := seedPlatform(t, store)

	donation := buildTestDonation(charity.ID, nil, testDonor, 7500)
	require.NoError(t, store.RecordDonation(ctx, donation, nil))

	t.Run("drains the full custody balance", func(t *testing.T) {
		var transferredAmount int64
		withdrawal := &schema.Withdrawal{
			TxID:        ulid.Make().String(),
			Kind:        schema.WithdrawalKindEmergency,
			Destination: testOwner,
			Timestamp:   time.Now().UTC(),
		}
		err := store.RecordEmergencyWithdrawal(ctx, withdrawal, func(ctx context.Context, amount int64) error {
			transferredAmount = amount
			return nil
		})
		require.NoError(t, err)

		assert.Equal(t, int64(7500), withdrawal.Amount)
		assert.Equal(t, int64(7500), withdrawal.NetAmount)
		assert.Zero(t, withdrawal.Fee)
		assert.Equal(t, int64(7500), transferredAmount)

		state, err := store.GetPlatformState(ctx)
		require.NoError(t, err)
		assert.Zero(t, state.CustodyBalance)

		// Per-charity accounting is untouched by the drain
		got, err := store.GetCharity(ctx, charity.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(7500), got.TotalReceived)
		assert.Zero(t, got.TotalWithdrawn)
	})
}

// =============================================================================
// Test: History and aggregate queries
// =============================================================================

func testHistoryQueries(t *testing.T, store Store) {
	ctx := context.Background()
	charity := seedPlatform(t, store)

	other := buildTestCharity(testDonor2)
	other.Name = "Food Bank Network"
	require.NoError(t, store.CreateCharity(ctx, other))

	require.NoError(t, store.RecordDonation(ctx, buildTestDonation(charity.ID, nil, testDonor, 1000), nil))
	require.NoError(t, store.RecordDonation(ctx, buildTestDonation(other.ID, nil, testDonor, 3000), nil))
	require.NoError(t, store.RecordDonation(ctx, buildTestDonation(charity.ID, nil, testDonor2, 500), nil))
	require.NoError(t, store.RecordDonation(ctx, buildTestDonation(charity.ID, nil, testDonor, 200), nil))

	require.NoError(t, store.RecordWithdrawal(ctx, buildTestWithdrawal(charity.ID, 1000, 25, testCharityWallet), nil))

	t.Run("charity donations are ordered and paginated", func(t *testing.T) {
		donations, total, err := store.GetCharityDonations(ctx, charity.ID, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), total)
		require.Len(t, donations, 2)
		assert.Equal(t, int64(1000), donations[0].Amount)
		assert.Equal(t, int64(500), donations[1].Amount)
	})

	t.Run("charity withdrawals include fee breakdown", func(t *testing.T) {
		withdrawals, total, err := store.GetCharityWithdrawals(ctx, charity.ID, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), total)
		require.Len(t, withdrawals, 1)
		assert.Equal(t, int64(1000), withdrawals[0].Amount)
		assert.Equal(t, int64(25), withdrawals[0].Fee)
		assert.Equal(t, int64(975), withdrawals[0].NetAmount)
	})

	t.Run("donor history lists charities in first-donation order", func(t *testing.T) {
		ids, err := store.GetDonorCharityIDs(ctx, testDonor)
		require.NoError(t, err)
		assert.Equal(t, []uint64{charity.ID, other.ID}, ids)

		ids, err = store.GetDonorCharityIDs(ctx, "0x4444444444444444444444444444444444444444")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("top donors rank by total given", func(t *testing.T) {
		rows, err := store.GetTopDonors(ctx, 10)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, testDonor, rows[0].Donor)
		assert.Equal(t, int64(4200), rows[0].TotalAmount)
		assert.Equal(t, uint64(3), rows[0].DonationCount)
		assert.Equal(t, testDonor2, rows[1].Donor)
		assert.Equal(t, int64(500), rows[1].TotalAmount)
	})

	t.Run("platform statistics aggregate the ledger", func(t *testing.T) {
		stats, err := store.GetPlatformStatistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4700), stats.TotalDonations)
		assert.Equal(t, uint64(2), stats.CharityCount)
		assert.Equal(t, uint64(2), stats.DonorCount)
		assert.Equal(t, uint64(4), stats.DonationCount)
		assert.Equal(t, int64(1175), stats.AverageDonation)
		assert.Equal(t, int64(25), stats.PlatformFees)
	})

	t.Run("sums recompute totals from records", func(t *testing.T) {
		sum, err := store.SumDonationsByCharity(ctx, charity.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1700), sum)

		sum, err = store.SumWithdrawalsByCharity(ctx, charity.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), sum)

		sum, err = store.SumAllDonations(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4700), sum)

		sum, err = store.SumAllWithdrawals(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), sum)

		sum, err = store.SumDonationsByCharity(ctx, 42)
		require.NoError(t, err)
		assert.Zero(t, sum)
	})
}

func testSumDonationsByCampaign(t *testing.T, store Store) {
	ctx := context.Background()
	charity := seedPlatform(t, store)

	campaign := buildTestCampaign(charity.ID, time.Now().UTC().Add(24*time.Hour))
	require.NoError(t, store.CreateCampaign(ctx, campaign))

	require.NoError(t, store.RecordDonation(ctx, buildTestDonation(charity.ID, &campaign.ID, testDonor, 800), nil))
	require.NoError(t, store.RecordDonation(ctx, buildTestDonation(charity.ID, nil, testDonor, 300), nil))

	sum, err := store.SumDonationsByCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(800), sum)
}

// =============================================================================
// Test Runner
// =============================================================================

// RunStoreTests runs the shared store test functions against an implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"PlatformState", testPlatformState},
		{"Charities", testCharities},
		{"Campaigns", testCampaigns},
		{"RecordDonation", testRecordDonation},
		{"RecordWithdrawal", testRecordWithdrawal},
		{"RecordEmergencyWithdrawal", testRecordEmergencyWithdrawal},
		{"HistoryQueries", testHistoryQueries},
		{"SumDonationsByCampaign", testSumDonationsByCampaign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}

// TestMemoryStore runs all store tests against the in-memory implementation
func TestMemoryStore(t *testing.T) {
	RunStoreTests(t,
		func(t *testing.T) Store { return NewMemoryStore() },
		func(t *testing.T) {},
	)
}
