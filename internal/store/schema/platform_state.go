package schema

import (
	"time"
)

// PlatformStateID is the primary key of the singleton platform_state row.
const PlatformStateID uint64 = 1

// PlatformState represents the platform_state table - a singleton row holding
// the owner identity, the fee, and the global aggregates.
type PlatformState struct {
	ID uint64 `gorm:"column:id;primaryKey"`
	// Owner is the single privileged identity, set at initialization
	Owner string `gorm:"column:owner;not null;type:text"`
	// FeeBasisPoints is the platform fee in basis points, always within [0, 1000]
	FeeBasisPoints uint32 `gorm:"column:fee_basis_points;not null"`
	// TotalDonations is the running sum of all donation amounts
	TotalDonations int64 `gorm:"column:total_donations;not null;default:0"`
	// CustodyBalance is the undistributed value held by the deployment's fund
	// pool: donations add to it, withdrawals (gross) and the emergency drain
	// subtract from it. Bookkeeping must never promise more than this.
	CustodyBalance int64     `gorm:"column:custody_balance;not null;default:0"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null;default:now()"`
}

// TableName specifies the table name for the PlatformState model
func (PlatformState) TableName() string {
	return "platform_state"
}
