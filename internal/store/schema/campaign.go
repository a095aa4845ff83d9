package schema

import (
	"time"
)

// Campaign represents the campaigns table - a time-bounded fundraising effort
// owned by a charity. The stored IsActive flag is never flipped automatically;
// expiry is a read-time check against Deadline.
type Campaign struct {
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// CharityID references the owning charity
	CharityID uint64 `gorm:"column:charity_id;not null;index"`
	// Title is immutable free text
	Title string `gorm:"column:title;not null;type:text"`
	// Description is immutable free text
	Description string `gorm:"column:description;not null;type:text"`
	// GoalAmount is informational; donations may exceed it
	GoalAmount int64 `gorm:"column:goal_amount;not null"`
	// RaisedAmount is the cumulative donations received through this campaign
	RaisedAmount int64 `gorm:"column:raised_amount;not null;default:0"`
	// Deadline is creation time plus the requested duration; donations past it are rejected
	Deadline  time.Time `gorm:"column:deadline;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
}

// Expired reports whether the campaign can no longer accept donations because
// its deadline has passed, independent of the stored IsActive flag.
func (c *Campaign) Expired(now time.Time) bool {
	return !now.Before(c.Deadline)
}

// TableName specifies the table name for the Campaign model
func (Campaign) TableName() string {
	return "campaigns"
}
