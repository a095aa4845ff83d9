package schema

import (
	"time"
)

// WithdrawalKind distinguishes normal charity withdrawals from the owner-only
// emergency drain, which bypasses per-charity accounting and is recorded as a
// distinct audited row.
type WithdrawalKind string

const (
	// WithdrawalKindCharity is a fee-deducted withdrawal by a charity's wallet
	WithdrawalKindCharity WithdrawalKind = "charity"
	// WithdrawalKindEmergency is the owner's break-glass drain of the custody pool
	WithdrawalKindEmergency WithdrawalKind = "emergency"
)

// Withdrawal represents the withdrawals table - an append-only record of value
// leaving custody.
type Withdrawal struct {
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TxID is the ULID assigned at commit time
	TxID string         `gorm:"column:tx_id;not null;uniqueIndex;type:text"`
	Kind WithdrawalKind `gorm:"column:kind;not null;type:text"`
	// CharityID is nil for emergency withdrawals
	CharityID *uint64 `gorm:"column:charity_id;index"`
	// Amount is the gross figure debited from the charity's balance
	Amount int64 `gorm:"column:amount;not null"`
	// Fee is the platform's cut, floor(amount * feeBps / 10000)
	Fee int64 `gorm:"column:fee;not null"`
	// NetAmount is what reached the destination wallet
	NetAmount int64 `gorm:"column:net_amount;not null"`
	// Destination is the receiving wallet address
	Destination string    `gorm:"column:destination;not null;type:text"`
	Timestamp   time.Time `gorm:"column:timestamp;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;default:now()"`
}

// TableName specifies the table name for the Withdrawal model
func (Withdrawal) TableName() string {
	return "withdrawals"
}
