package schema

import (
	"time"
)

// Donation represents the donations table - an append-only record, one row per
// donation call. Rows are immutable once recorded.
type Donation struct {
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TxID is the ULID assigned at commit time, the key downstream history
	// services use to deduplicate and reconstruct state
	TxID string `gorm:"column:tx_id;not null;uniqueIndex;type:text"`
	// CharityID is the receiving charity (the campaign's owner for campaign donations)
	CharityID uint64 `gorm:"column:charity_id;not null;index"`
	// CampaignID is nil for direct-to-charity donations
	CampaignID *uint64 `gorm:"column:campaign_id;index"`
	// Donor is the donating wallet address
	Donor string `gorm:"column:donor;not null;type:text;index"`
	// Amount is the donated value in base units
	Amount int64 `gorm:"column:amount;not null"`
	// Timestamp is the ledger time of the donation
	Timestamp time.Time `gorm:"column:timestamp;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
}

// TableName specifies the table name for the Donation model
func (Donation) TableName() string {
	return "donations"
}
