package schema

import (
	"time"
)

// Charity represents the charities table - a registered beneficiary with a
// receiving wallet and cumulative accounting totals. Charities are never
// deleted; deactivation is the only soft delete.
type Charity struct {
	// ID is assigned sequentially starting at 1 and never reused
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Wallet is the identity authorized to create campaigns and withdraw funds
	Wallet string `gorm:"column:wallet;not null;type:text;index"`
	// Name is set at registration and immutable thereafter
	Name string `gorm:"column:name;not null;type:text"`
	// Description is set at registration and immutable thereafter
	Description string `gorm:"column:description;not null;type:text"`
	// IsActive gates new donations and campaign creation; toggled only by the owner
	IsActive bool `gorm:"column:is_active;not null;default:true"`
	// TotalReceived is the cumulative amount ever donated directly or via campaigns
	TotalReceived int64 `gorm:"column:total_received;not null;default:0"`
	// TotalWithdrawn is the cumulative gross amount debited from the balance
	TotalWithdrawn int64 `gorm:"column:total_withdrawn;not null;default:0"`
	// CreatedAt is the registration timestamp
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`

	// Associations
	Campaigns   []Campaign   `gorm:"foreignKey:CharityID;constraint:OnDelete:RESTRICT"`
	Donations   []Donation   `gorm:"foreignKey:CharityID;constraint:OnDelete:RESTRICT"`
	Withdrawals []Withdrawal `gorm:"foreignKey:CharityID;constraint:OnDelete:RESTRICT"`
}

// AvailableBalance is the maximum the charity may currently withdraw.
func (c *Charity) AvailableBalance() int64 {
	return c.TotalReceived - c.TotalWithdrawn
}

// TableName specifies the table name for the Charity model
func (Charity) TableName() string {
	return "charities"
}
