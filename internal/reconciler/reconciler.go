package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/givechain/charity-ledger/internal/adapter"
	"github.com/givechain/charity-ledger/internal/domain"
	"github.com/givechain/charity-ledger/internal/logger"
	"github.com/givechain/charity-ledger/internal/metrics"
	"github.com/givechain/charity-ledger/internal/store"
)

const listBatchSize = 200

// Reconciler is a long-running background task that recomputes the ledger
// aggregates from the underlying records and reports any drift
type Reconciler interface {
	// Start begins the reconciler's main loop
	// This is a blocking call that runs until the context is canceled
	Start(ctx context.Context) error

	// Stop gracefully stops the reconciler
	Stop(ctx context.Context) error

	// RunCycle recomputes every aggregate once and returns what it found.
	// Useful for one-shot audits outside the periodic loop.
	RunCycle(ctx context.Context) (*Report, error)

	// Name returns the reconciler's name for logging and identification
	Name() string
}

// Config holds configuration for the ledger reconciler
type Config struct {
	Interval    time.Duration // Time to sleep between reconciliation cycles
	ExitOnDrift bool          // Stop the loop on the first drift found
}

// Report summarizes a single reconciliation cycle
type Report struct {
	CharitiesChecked int
	CampaignsChecked int
	Drifts           []Drift
}

// Drift is one aggregate that disagrees with the records backing it
type Drift struct {
	Check    string
	EntityID uint64
	Stored   int64
	Computed int64
}

// ErrDriftDetected is returned by Start when ExitOnDrift is set and a cycle
// found at least one inconsistent aggregate.
var ErrDriftDetected = errors.New("ledger drift detected")

type ledgerReconciler struct {
	config    Config
	store     store.Store
	clock     adapter.Clock
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// New creates a new ledger reconciler
func New(cfg Config, st store.Store, clock adapter.Clock) Reconciler {
	return &ledgerReconciler{
		config:    cfg,
		store:     st,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the reconciler's name
func (r *ledgerReconciler) Name() string {
	return "ledger-reconciler"
}

// Start begins the reconciler's main loop
func (r *ledgerReconciler) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return fmt.Errorf("reconciler already running")
	}
	defer func() {
		r.running.Store(false)
		close(r.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting ledger reconciler",
		zap.Duration("interval", r.config.Interval),
		zap.Bool("exit_on_drift", r.config.ExitOnDrift),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Ledger reconciler stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-r.stopChan:
			logger.InfoCtx(ctx, "Ledger reconciler stop requested")
			return nil
		default:
			report, err := r.RunCycle(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				logger.ErrorCtx(ctx, err)
			} else if len(report.Drifts) > 0 && r.config.ExitOnDrift {
				return ErrDriftDetected
			}

			if !r.sleep(ctx, r.config.Interval) {
				return nil
			}
		}
	}
}

// Stop gracefully stops the reconciler with timeout support
func (r *ledgerReconciler) Stop(ctx context.Context) error {
	if !r.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping ledger reconciler")
	close(r.stopChan)

	select {
	case <-r.stoppedCh:
		logger.InfoCtx(ctx, "Ledger reconciler stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Ledger reconciler stop interrupted by context timeout")
		return ctx.Err()
	}
}

// RunCycle recomputes every aggregate once and returns what it found
func (r *ledgerReconciler) RunCycle(ctx context.Context) (*Report, error) {
	startTime := r.clock.Now()
	report := &Report{}

	if err := r.checkCharities(ctx, report); err != nil {
		return nil, err
	}
	if err := r.checkCampaigns(ctx, report); err != nil {
		return nil, err
	}
	if err := r.checkPlatform(ctx, report); err != nil {
		return nil, err
	}

	for _, drift := range report.Drifts {
		metrics.RecordReconciliationDrift(drift.Check)
		logger.WarnCtx(ctx, "Ledger aggregate disagrees with its records",
			zap.String("check", drift.Check),
			zap.Uint64("entity_id", drift.EntityID),
			zap.Int64("stored", drift.Stored),
			zap.Int64("computed", drift.Computed),
		)
	}

	logger.InfoCtx(ctx, "Reconciliation cycle completed",
		zap.Duration("duration", r.clock.Since(startTime)),
		zap.Int("charities_checked", report.CharitiesChecked),
		zap.Int("campaigns_checked", report.CampaignsChecked),
		zap.Int("drifts", len(report.Drifts)),
	)

	return report, nil
}

func (r *ledgerReconciler) checkCharities(ctx context.Context, report *Report) error {
	for offset := 0; ; offset += listBatchSize {
		charities, _, err := r.store.ListCharities(ctx, listBatchSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list charities: %w", err)
		}
		if len(charities) == 0 {
			return nil
		}

		for _, charity := range charities {
			received, err := r.store.SumDonationsByCharity(ctx, charity.ID)
			if err != nil {
				return fmt.Errorf("failed to sum donations for charity %d: %w", charity.ID, err)
			}
			if received != charity.TotalReceived {
				report.Drifts = append(report.Drifts, Drift{
					Check:    "charity_total_received",
					EntityID: charity.ID,
					Stored:   charity.TotalReceived,
					Computed: received,
				})
			}

			withdrawn, err := r.store.SumWithdrawalsByCharity(ctx, charity.ID)
			if err != nil {
				return fmt.Errorf("failed to sum withdrawals for charity %d: %w", charity.ID, err)
			}
			if withdrawn != charity.TotalWithdrawn {
				report.Drifts = append(report.Drifts, Drift{
					Check:    "charity_total_withdrawn",
					EntityID: charity.ID,
					Stored:   charity.TotalWithdrawn,
					Computed: withdrawn,
				})
			}

			if charity.TotalWithdrawn > charity.TotalReceived {
				report.Drifts = append(report.Drifts, Drift{
					Check:    "charity_overdrawn",
					EntityID: charity.ID,
					Stored:   charity.TotalWithdrawn,
					Computed: charity.TotalReceived,
				})
			}

			report.CharitiesChecked++
		}

		if len(charities) < listBatchSize {
			return nil
		}
	}
}

func (r *ledgerReconciler) checkCampaigns(ctx context.Context, report *Report) error {
	for offset := 0; ; offset += listBatchSize {
		campaigns, _, err := r.store.ListCampaigns(ctx, listBatchSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list campaigns: %w", err)
		}
		if len(campaigns) == 0 {
			return nil
		}

		for _, campaign := range campaigns {
			raised, err := r.store.SumDonationsByCampaign(ctx, campaign.ID)
			if err != nil {
				return fmt.Errorf("failed to sum donations for campaign %d: %w", campaign.ID, err)
			}
			if raised != campaign.RaisedAmount {
				report.Drifts = append(report.Drifts, Drift{
					Check:    "campaign_raised_amount",
					EntityID: campaign.ID,
					Stored:   campaign.RaisedAmount,
					Computed: raised,
				})
			}

			report.CampaignsChecked++
		}

		if len(campaigns) < listBatchSize {
			return nil
		}
	}
}

func (r *ledgerReconciler) checkPlatform(ctx context.Context, report *Report) error {
	state, err := r.store.GetPlatformState(ctx)
	if err != nil {
		return fmt.Errorf("failed to get platform state: %w", err)
	}
	if state == nil {
		return nil
	}

	if state.FeeBasisPoints > domain.MaxFeeBasisPoints {
		report.Drifts = append(report.Drifts, Drift{
			Check:    "platform_fee_bounds",
			EntityID: state.ID,
			Stored:   int64(state.FeeBasisPoints),
			Computed: domain.MaxFeeBasisPoints,
		})
	}

	donated, err := r.store.SumAllDonations(ctx)
	if err != nil {
		return fmt.Errorf("failed to sum donations: %w", err)
	}
	if donated != state.TotalDonations {
		report.Drifts = append(report.Drifts, Drift{
			Check:    "platform_total_donations",
			EntityID: state.ID,
			Stored:   state.TotalDonations,
			Computed: donated,
		})
	}

	withdrawn, err := r.store.SumAllWithdrawals(ctx)
	if err != nil {
		return fmt.Errorf("failed to sum withdrawals: %w", err)
	}
	if custody := donated - withdrawn; custody != state.CustodyBalance {
		report.Drifts = append(report.Drifts, Drift{
			Check:    "platform_custody_balance",
			EntityID: state.ID,
			Stored:   state.CustodyBalance,
			Computed: custody,
		})
	}

	return nil
}

// sleep sleeps for the given duration but can be interrupted by context
// cancellation or a stop request. Returns false when interrupted.
func (r *ledgerReconciler) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-r.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-r.stopChan:
		return false
	}
}
