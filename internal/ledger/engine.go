// Package ledger implements the charity accounting engine: charity and
// campaign registration, donation intake, fee-deducted withdrawals, and the
// owner's emergency drain. The engine is the only writer of ledger state;
// every mutation is serialized and committed atomically together with the
// custodian transfer it implies.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/givechain/charity-ledger/internal/adapter"
	"github.com/givechain/charity-ledger/internal/domain"
	"github.com/givechain/charity-ledger/internal/logger"
	"github.com/givechain/charity-ledger/internal/messaging"
	"github.com/givechain/charity-ledger/internal/metrics"
	"github.com/givechain/charity-ledger/internal/store"
	"github.com/givechain/charity-ledger/internal/store/schema"
	"github.com/givechain/charity-ledger/internal/treasury"
)

// publishTimeout bounds the post-commit event publish so a slow broker cannot
// hold up the caller.
const publishTimeout = 5 * time.Second

// Ledger defines the accounting engine operations. Mutations take the caller
// identity explicitly and enforce authorization against the platform owner or
// the charity's wallet.
type Ledger interface {
	// RegisterCharity registers a new charity. Owner only.
	RegisterCharity(ctx context.Context, caller domain.Address, name, description string, wallet domain.Address) (*schema.Charity, error)
	// SetCharityStatus activates or deactivates a charity. Owner only.
	SetCharityStatus(ctx context.Context, caller domain.Address, charityID uint64, active bool) error
	// UpdatePlatformFee changes the withdrawal fee in basis points. Owner only.
	UpdatePlatformFee(ctx context.Context, caller domain.Address, feeBasisPoints uint32) error
	// CreateCampaign opens a time-bounded campaign under a charity. Charity wallet only.
	CreateCampaign(ctx context.Context, caller domain.Address, charityID uint64, title, description string, goal domain.Amount, durationDays uint32) (*schema.Campaign, error)
	// Donate credits a direct donation to a charity
	Donate(ctx context.Context, donor domain.Address, charityID uint64, amount domain.Amount) (*schema.Donation, error)
	// DonateToCampaign credits a donation to a campaign and its owning charity
	DonateToCampaign(ctx context.Context, donor domain.Address, campaignID uint64, amount domain.Amount) (*schema.Donation, error)
	// Withdraw pays out a charity's funds minus the platform fee. Charity wallet only.
	Withdraw(ctx context.Context, caller domain.Address, charityID uint64, amount domain.Amount) (*schema.Withdrawal, error)
	// EmergencyWithdraw drains the entire custody pool to the owner. Owner only.
	EmergencyWithdraw(ctx context.Context, caller domain.Address) (*schema.Withdrawal, error)

	// GetCharity retrieves a charity by ID
	GetCharity(ctx context.Context, charityID uint64) (*schema.Charity, error)
	// ListCharities retrieves charities with the total count
	ListCharities(ctx context.Context, limit, offset int) ([]*schema.Charity, uint64, error)
	// GetCampaign retrieves a campaign by ID
	GetCampaign(ctx context.Context, campaignID uint64) (*schema.Campaign, error)
	// ListCampaigns retrieves campaigns with the total count
	ListCampaigns(ctx context.Context, limit, offset int) ([]*schema.Campaign, uint64, error)
	// CampaignExpired reports whether a campaign is past its deadline now
	CampaignExpired(campaign *schema.Campaign) bool
	// GetCharityDonations retrieves a charity's donation history
	GetCharityDonations(ctx context.Context, charityID uint64, limit, offset int) ([]*schema.Donation, uint64, error)
	// GetCharityWithdrawals retrieves a charity's withdrawal history
	GetCharityWithdrawals(ctx context.Context, charityID uint64, limit, offset int) ([]*schema.Withdrawal, uint64, error)
	// GetDonorHistory retrieves the charities a donor has given to
	GetDonorHistory(ctx context.Context, donor domain.Address) ([]uint64, error)
	// GetTopDonors retrieves the donor leaderboard
	GetTopDonors(ctx context.Context, limit int) ([]store.DonorTotal, error)
	// GetPlatformState retrieves the owner, fee, and custody figures
	GetPlatformState(ctx context.Context) (*schema.PlatformState, error)
	// GetStatistics retrieves platform-wide aggregates
	GetStatistics(ctx context.Context) (*store.PlatformStatistics, error)
}

type engine struct {
	store     store.Store
	treasury  treasury.Treasury
	publisher messaging.Publisher
	clock     adapter.Clock

	// writeLock serializes all mutations so their read-check-write sequences
	// never interleave
	writeLock chan struct{}
}

// New creates the accounting engine and initializes the platform state row
// with the owner identity and the starting fee.
func New(ctx context.Context, s store.Store, t treasury.Treasury, p messaging.Publisher, clock adapter.Clock, owner domain.Address, feeBasisPoints uint32) (Ledger, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("%w: invalid owner address", domain.ErrInvalidArgument)
	}
	if feeBasisPoints > domain.MaxFeeBasisPoints {
		return nil, fmt.Errorf("%w: fee exceeds %d basis points", domain.ErrInvalidArgument, domain.MaxFeeBasisPoints)
	}

	if err := s.InitPlatformState(ctx, domain.NewAddress(owner.String()).String(), feeBasisPoints); err != nil {
		return nil, fmt.Errorf("failed to initialize platform state: %w", err)
	}

	e := &engine{
		store:     s,
		treasury:  t,
		publisher: p,
		clock:     clock,
		writeLock: make(chan struct{}, 1),
	}
	e.writeLock <- struct{}{}
	return e, nil
}

// acquireWrite takes the single writer slot, honoring context cancellation
func (e *engine) acquireWrite(ctx context.Context) error {
	select {
	case <-e.writeLock:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *engine) releaseWrite() {
	e.writeLock <- struct{}{}
}

// requireOwner resolves the platform state and checks the caller against the
// owner identity
func (e *engine) requireOwner(ctx context.Context, caller domain.Address) (*schema.PlatformState, error) {
	state, err := e.store.GetPlatformState(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ErrNotFound
	}
	if !caller.Equal(domain.Address(state.Owner)) {
		return nil, domain.ErrUnauthorized
	}
	return state, nil
}

func (e *engine) RegisterCharity(ctx context.Context, caller domain.Address, name, description string, wallet domain.Address) (charity *schema.Charity, err error) {
	defer e.record("register_charity", &err)()

	if name == "" {
		return nil, fmt.Errorf("%w: charity name is required", domain.ErrInvalidArgument)
	}
	if description == "" {
		return nil, fmt.Errorf("%w: charity description is required", domain.ErrInvalidArgument)
	}
	if !wallet.Valid() {
		return nil, fmt.Errorf("%w: invalid charity wallet", domain.ErrInvalidArgument)
	}

	if err := e.acquireWrite(ctx); err != nil {
		return nil, err
	}
	defer e.releaseWrite()

	if _, err = e.requireOwner(ctx, caller); err != nil {
		return nil, err
	}

	now := e.clock.Now().UTC()
	charity = &schema.Charity{
		Wallet:      domain.NewAddress(wallet.String()).String(),
		Name:        name,
		Description: description,
		IsActive:    true,
		CreatedAt:   now,
	}
	if err = e.store.CreateCharity(ctx, charity); err != nil {
		return nil, err
	}

	e.publish(ctx, &domain.LedgerEvent{
		TxID:      ulid.Make().String(),
		Type:      domain.EventTypeCharityRegistered,
		CharityID: charity.ID,
		Caller:    caller,
		Wallet:    domain.Address(charity.Wallet),
		Name:      charity.Name,
		Timestamp: now,
	})

	return charity, nil
}

func (e *engine) SetCharityStatus(ctx context.Context, caller domain.Address, charityID uint64, active bool) (err error) {
	defer e.record("set_charity_status", &err)()

	if err := e.acquireWrite(ctx); err != nil {
		return err
	}
	defer e.releaseWrite()

	if _, err = e.requireOwner(ctx, caller); err != nil {
		return err
	}

	if err = e.store.SetCharityActive(ctx, charityID, active); err != nil {
		return err
	}

	e.publish(ctx, &domain.LedgerEvent{
		TxID:      ulid.Make().String(),
		Type:      domain.EventTypeCharityStatusChanged,
		CharityID: charityID,
		Caller:    caller,
		Active:    &active,
		Timestamp: e.clock.Now().UTC(),
	})

	return nil
}

func (e *engine) UpdatePlatformFee(ctx context.Context, caller domain.Address, feeBasisPoints uint32) (err error) {
	defer e.record("update_platform_fee", &err)()

	if feeBasisPoints > domain.MaxFeeBasisPoints {
		return fmt.Errorf("%w: fee exceeds %d basis points", domain.ErrInvalidArgument, domain.MaxFeeBasisPoints)
	}

	if err := e.acquireWrite(ctx); err != nil {
		return err
	}
	defer e.releaseWrite()

	if _, err = e.requireOwner(ctx, caller); err != nil {
		return err
	}

	if err = e.store.SetPlatformFee(ctx, feeBasisPoints); err != nil {
		return err
	}

	e.publish(ctx, &domain.LedgerEvent{
		TxID:      ulid.Make().String(),
		Type:      domain.EventTypePlatformFeeUpdated,
		Caller:    caller,
		FeeBps:    feeBasisPoints,
		Timestamp: e.clock.Now().UTC(),
	})

	return nil
}

func (e *engine) CreateCampaign(ctx context.Context, caller domain.Address, charityID uint64, title, description string, goal domain.Amount, durationDays uint32) (campaign *schema.Campaign, err error) {
	defer e.record("create_campaign", &err)()

	if title == "" {
		return nil, fmt.Errorf("%w: campaign title is required", domain.ErrInvalidArgument)
	}
	if goal <= 0 {
		return nil, fmt.Errorf("%w: campaign goal must be positive", domain.ErrInvalidArgument)
	}
	if durationDays == 0 {
		return nil, fmt.Errorf("%w: campaign duration must be at least one day", domain.ErrInvalidArgument)
	}

	if err := e.acquireWrite(ctx); err != nil {
		return nil, err
	}
	defer e.releaseWrite()

	charity, err := e.store.GetCharity(ctx, charityID)
	if err != nil {
		return nil, err
	}
	if charity == nil {
		return nil, domain.ErrNotFound
	}
	if !caller.Equal(domain.Address(charity.Wallet)) {
		return nil, domain.ErrUnauthorized
	}
	if !charity.IsActive {
		return nil, domain.ErrInactiveEntity
	}

	now := e.clock.Now().UTC()
	campaign = &schema.Campaign{
		CharityID:   charityID,
		Title:       title,
		Description: description,
		GoalAmount:  goal,
		Deadline:    now.Add(time.Duration(durationDays) * 24 * time.Hour),
		IsActive:    true,
		CreatedAt:   now,
	}
	if err = e.store.CreateCampaign(ctx, campaign); err != nil {
		return nil, err
	}

	e.publish(ctx, &domain.LedgerEvent{
		TxID:       ulid.Make().String(),
		Type:       domain.EventTypeCampaignCreated,
		CharityID:  charityID,
		CampaignID: campaign.ID,
		Caller:     caller,
		Name:       campaign.Title,
		Amount:     campaign.GoalAmount,
		Timestamp:  now,
	})

	return campaign, nil
}

func (e *engine) Donate(ctx context.Context, donor domain.Address, charityID uint64, amount domain.Amount) (*schema.Donation, error) {
	return e.donate(ctx, donor, charityID, nil, amount)
}

func (e *engine) DonateToCampaign(ctx context.Context, donor domain.Address, campaignID uint64, amount domain.Amount) (*schema.Donation, error) {
	campaign, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, domain.ErrNotFound
	}
	return e.donate(ctx, donor, campaign.CharityID, &campaignID, amount)
}

func (e *engine) donate(ctx context.Context, donor domain.Address, charityID uint64, campaignID *uint64, amount domain.Amount) (donation *schema.Donation, err error) {
	defer e.record("donate", &err)()

	if amount <= 0 {
		return nil, fmt.Errorf("%w: donation amount must be positive", domain.ErrInvalidArgument)
	}
	if !donor.Valid() {
		return nil, fmt.Errorf("%w: invalid donor address", domain.ErrInvalidArgument)
	}

	if err := e.acquireWrite(ctx); err != nil {
		return nil, err
	}
	defer e.releaseWrite()

	txID := ulid.Make().String()
	donation = &schema.Donation{
		TxID:       txID,
		CharityID:  charityID,
		CampaignID: campaignID,
		Donor:      domain.NewAddress(donor.String()).String(),
		Amount:     amount,
		Timestamp:  e.clock.Now().UTC(),
	}

	// The store re-verifies charity and campaign state inside the
	// transaction; the collect runs inside it too so funds and bookkeeping
	// commit or fail together
	err = e.store.RecordDonation(ctx, donation, func(ctx context.Context) error {
		return e.treasury.Collect(ctx, txID, donation.Donor, amount)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordDonationAmount(amount)

	event := &domain.LedgerEvent{
		TxID:      txID,
		Type:      domain.EventTypeDonationReceived,
		CharityID: charityID,
		Caller:    domain.Address(donation.Donor),
		Amount:    amount,
		Timestamp: donation.Timestamp,
	}
	if campaignID != nil {
		event.CampaignID = *campaignID
	}
	e.publish(ctx, event)

	return donation, nil
}

func (e *engine) Withdraw(ctx context.Context, caller domain.Address, charityID uint64, amount domain.Amount) (withdrawal *schema.Withdrawal, err error) {
	defer e.record("withdraw", &err)()

	if amount <= 0 {
		return nil, fmt.Errorf("%w: withdrawal amount must be positive", domain.ErrInvalidArgument)
	}

	if err := e.acquireWrite(ctx); err != nil {
		return nil, err
	}
	defer e.releaseWrite()

	state, err := e.store.GetPlatformState(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ErrNotFound
	}

	charity, err := e.store.GetCharity(ctx, charityID)
	if err != nil {
		return nil, err
	}
	if charity == nil {
		return nil, domain.ErrNotFound
	}
	if !caller.Equal(domain.Address(charity.Wallet)) {
		return nil, domain.ErrUnauthorized
	}

	fee, net := domain.WithdrawalFee(amount, state.FeeBasisPoints)
	txID := ulid.Make().String()
	withdrawal = &schema.Withdrawal{
		TxID:        txID,
		Kind:        schema.WithdrawalKindCharity,
		CharityID:   &charityID,
		Amount:      amount,
		Fee:         fee,
		NetAmount:   net,
		Destination: charity.Wallet,
		Timestamp:   e.clock.Now().UTC(),
	}

	owner := state.Owner
	err = e.store.RecordWithdrawal(ctx, withdrawal, func(ctx context.Context) error {
		if err := e.treasury.Payout(ctx, txID, charity.Wallet, net); err != nil {
			return err
		}
		if fee > 0 {
			// The fee leaves custody in the same mutation, routed to the owner
			return e.treasury.Payout(ctx, txID+"-fee", owner, fee)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, &domain.LedgerEvent{
		TxID:      txID,
		Type:      domain.EventTypeFundsWithdrawn,
		CharityID: charityID,
		Caller:    caller,
		Amount:    amount,
		Fee:       fee,
		NetAmount: net,
		Timestamp: withdrawal.Timestamp,
	})

	return withdrawal, nil
}

func (e *engine) EmergencyWithdraw(ctx context.Context, caller domain.Address) (withdrawal *schema.Withdrawal, err error) {
	defer e.record("emergency_withdraw", &err)()

	if err := e.acquireWrite(ctx); err != nil {
		return nil, err
	}
	defer e.releaseWrite()

	state, err := e.requireOwner(ctx, caller)
	if err != nil {
		return nil, err
	}

	txID := ulid.Make().String()
	withdrawal = &schema.Withdrawal{
		TxID:        txID,
		Kind:        schema.WithdrawalKindEmergency,
		Destination: state.Owner,
		Timestamp:   e.clock.Now().UTC(),
	}

	err = e.store.RecordEmergencyWithdrawal(ctx, withdrawal, func(ctx context.Context, amount int64) error {
		if amount == 0 {
			return nil
		}
		return e.treasury.Payout(ctx, txID, state.Owner, amount)
	})
	if err != nil {
		return nil, err
	}

	logger.WarnCtx(ctx, "emergency withdrawal executed",
		zap.String("tx_id", txID),
		zap.String("caller", caller.String()),
		zap.Int64("amount", withdrawal.Amount))

	e.publish(ctx, &domain.LedgerEvent{
		TxID:      txID,
		Type:      domain.EventTypeEmergencyWithdrawal,
		Caller:    caller,
		Amount:    withdrawal.Amount,
		Timestamp: withdrawal.Timestamp,
	})

	return withdrawal, nil
}

func (e *engine) GetCharity(ctx context.Context, charityID uint64) (*schema.Charity, error) {
	charity, err := e.store.GetCharity(ctx, charityID)
	if err != nil {
		return nil, err
	}
	if charity == nil {
		return nil, domain.ErrNotFound
	}
	return charity, nil
}

func (e *engine) ListCharities(ctx context.Context, limit, offset int) ([]*schema.Charity, uint64, error) {
	return e.store.ListCharities(ctx, normalizeLimit(limit), max(offset, 0))
}

func (e *engine) GetCampaign(ctx context.Context, campaignID uint64) (*schema.Campaign, error) {
	campaign, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, domain.ErrNotFound
	}
	return campaign, nil
}

func (e *engine) ListCampaigns(ctx context.Context, limit, offset int) ([]*schema.Campaign, uint64, error) {
	return e.store.ListCampaigns(ctx, normalizeLimit(limit), max(offset, 0))
}

func (e *engine) CampaignExpired(campaign *schema.Campaign) bool {
	return campaign.Expired(e.clock.Now().UTC())
}

func (e *engine) GetCharityDonations(ctx context.Context, charityID uint64, limit, offset int) ([]*schema.Donation, uint64, error) {
	if _, err := e.GetCharity(ctx, charityID); err != nil {
		return nil, 0, err
	}
	return e.store.GetCharityDonations(ctx, charityID, normalizeLimit(limit), max(offset, 0))
}

func (e *engine) GetCharityWithdrawals(ctx context.Context, charityID uint64, limit, offset int) ([]*schema.Withdrawal, uint64, error) {
	if _, err := e.GetCharity(ctx, charityID); err != nil {
		return nil, 0, err
	}
	return e.store.GetCharityWithdrawals(ctx, charityID, normalizeLimit(limit), max(offset, 0))
}

func (e *engine) GetDonorHistory(ctx context.Context, donor domain.Address) ([]uint64, error) {
	return e.store.GetDonorCharityIDs(ctx, domain.NewAddress(donor.String()).String())
}

func (e *engine) GetTopDonors(ctx context.Context, limit int) ([]store.DonorTotal, error) {
	return e.store.GetTopDonors(ctx, normalizeLimit(limit))
}

func (e *engine) GetPlatformState(ctx context.Context) (*schema.PlatformState, error) {
	state, err := e.store.GetPlatformState(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ErrNotFound
	}
	return state, nil
}

func (e *engine) GetStatistics(ctx context.Context) (*store.PlatformStatistics, error) {
	return e.store.GetPlatformStatistics(ctx)
}

// publish emits a committed event, best effort. A publish failure is logged
// and counted but never fails the mutation that already committed.
func (e *engine) publish(ctx context.Context, event *domain.LedgerEvent) {
	if e.publisher == nil {
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := e.publisher.PublishEvent(publishCtx, event); err != nil {
		metrics.RecordEventPublishFailure(string(event.Type))
		logger.WarnCtx(ctx, "failed to publish ledger event",
			zap.Error(err),
			zap.String("tx_id", event.TxID),
			zap.String("type", string(event.Type)))
	}
}

// record returns a closure that observes the operation's duration and outcome
func (e *engine) record(operation string, errp *error) func() {
	start := e.clock.Now()
	return func() {
		status := "success"
		if *errp != nil {
			status = "failure"
		}
		metrics.RecordOperationDuration(operation, status, e.clock.Since(start).Seconds())
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}
