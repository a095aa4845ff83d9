package reconciler_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givechain/charity-ledger/internal/adapter"
	"github.com/givechain/charity-ledger/internal/reconciler"
	"github.com/givechain/charity-ledger/internal/store"
	"github.com/givechain/charity-ledger/internal/store/schema"
)

const (
	testOwner   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testCharity = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	testDonor   = "0xcccccccccccccccccccccccccccccccccccccccc"
)

func noTransfer(_ context.Context) error { return nil }

// seedLedger populates a store with one charity, one campaign, two donations,
// and one withdrawal through the normal record paths, so every aggregate
// agrees with its records.
func seedLedger(t *testing.T, st store.Store) *schema.Charity {
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.InitPlatformState(ctx, testOwner, 250))

	charity := &schema.Charity{
		Wallet:   testCharity,
		Name:     "Food Bank Network",
		IsActive: true,
	}
	require.NoError(t, st.CreateCharity(ctx, charity))

	campaign := &schema.Campaign{
		CharityID:  charity.ID,
		Title:      "School Meals",
		GoalAmount: 10_000,
		Deadline:   now.Add(30 * 24 * time.Hour),
		IsActive:   true,
	}
	require.NoError(t, st.CreateCampaign(ctx, campaign))

	require.NoError(t, st.RecordDonation(ctx, &schema.Donation{
		TxID:      ulid.Make().String(),
		CharityID: charity.ID,
		Donor:     testDonor,
		Amount:    3000,
		Timestamp: now,
	}, noTransfer))

	require.NoError(t, st.RecordDonation(ctx, &schema.Donation{
		TxID:       ulid.Make().String(),
		CharityID:  charity.ID,
		CampaignID: &campaign.ID,
		Donor:      testDonor,
		Amount:     2000,
		Timestamp:  now,
	}, noTransfer))

	require.NoError(t, st.RecordWithdrawal(ctx, &schema.Withdrawal{
		TxID:        ulid.Make().String(),
		Kind:        schema.WithdrawalKindCharity,
		CharityID:   &charity.ID,
		Amount:      1000,
		Fee:         25,
		NetAmount:   975,
		Destination: testCharity,
		Timestamp:   now,
	}, noTransfer))

	return charity
}

func TestRunCycleConsistentLedger(t *testing.T) {
	st := store.NewMemoryStore()
	seedLedger(t, st)

	r := reconciler.New(reconciler.Config{Interval: time.Minute}, st, adapter.NewClock())

	report, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.CharitiesChecked)
	assert.Equal(t, 1, report.CampaignsChecked)
	assert.Empty(t, report.Drifts)
}

// driftStore returns a corrupted recomputation for one charity so the
// reconciler has something to find.
type driftStore struct {
	store.Store
}

func (s *driftStore) SumDonationsByCharity(ctx context.Context, charityID uint64) (int64, error) {
	sum, err := s.Store.SumDonationsByCharity(ctx, charityID)
	return sum + 100, err
}

func TestRunCycleReportsDrift(t *testing.T) {
	st := store.NewMemoryStore()
	charity := seedLedger(t, st)

	r := reconciler.New(reconciler.Config{Interval: time.Minute}, &driftStore{st}, adapter.NewClock())

	report, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Drifts, 1)
	drift := report.Drifts[0]
	assert.Equal(t, "charity_total_received", drift.Check)
	assert.Equal(t, charity.ID, drift.EntityID)
	assert.Equal(t, int64(5000), drift.Stored)
	assert.Equal(t, int64(5100), drift.Computed)
}

func TestRunCycleChecksCustodyBalance(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seedLedger(t, st)

	// Drain custody through the emergency path, then verify the books still
	// balance against the withdrawal record it leaves behind.
	require.NoError(t, st.RecordEmergencyWithdrawal(ctx, &schema.Withdrawal{
		TxID:        ulid.Make().String(),
		Kind:        schema.WithdrawalKindEmergency,
		Destination: testOwner,
		Timestamp:   time.Now().UTC(),
	}, func(_ context.Context, _ int64) error { return nil }))

	r := reconciler.New(reconciler.Config{Interval: time.Minute}, st, adapter.NewClock())

	report, err := r.RunCycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Drifts)
}

func TestStartExitsOnDrift(t *testing.T) {
	st := store.NewMemoryStore()
	seedLedger(t, st)

	r := reconciler.New(reconciler.Config{
		Interval:    time.Minute,
		ExitOnDrift: true,
	}, &driftStore{st}, adapter.NewClock())

	errCh := make(chan error, 1)
	go func() { errCh <- r.Start(context.Background()) }()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, reconciler.ErrDriftDetected)
	case <-time.After(5 * time.Second):
		t.Fatal("reconciler did not exit on drift")
	}
}

func TestStopInterruptsLoop(t *testing.T) {
	st := store.NewMemoryStore()
	seedLedger(t, st)

	r := reconciler.New(reconciler.Config{Interval: time.Hour}, st, adapter.NewClock())

	errCh := make(chan error, 1)
	go func() { errCh <- r.Start(context.Background()) }()

	// Give the loop a moment to enter its first sleep
	time.Sleep(50 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(stopCtx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}
