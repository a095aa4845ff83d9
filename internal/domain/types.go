package domain

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Amount is a monetary value in the smallest currency unit.
// All fee arithmetic is integer basis-point arithmetic, truncating toward zero.
type Amount = int64

// FeeDivisor converts basis points to a fraction (10000 = 100%).
const FeeDivisor = 10000

// MaxFeeBasisPoints caps the platform fee at 10%.
const MaxFeeBasisPoints = 1000

// Address is a wallet identity in Ethereum hex form, normalized to EIP-55 checksum.
type Address string

// ZeroAddress is the all-zero address, never a valid wallet identity.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// NewAddress normalizes a hex address to its checksum form.
// The caller should validate with Valid() first; malformed input yields an invalid Address.
func NewAddress(s string) Address {
	if !common.IsHexAddress(s) {
		return Address(s)
	}
	return Address(common.HexToAddress(s).String())
}

// Valid reports whether the address is a well-formed, non-zero identity.
func (a Address) Valid() bool {
	if !common.IsHexAddress(string(a)) {
		return false
	}
	return NewAddress(string(a)) != ZeroAddress
}

// Equal compares two addresses ignoring checksum casing.
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}

func (a Address) String() string {
	return string(a)
}

// EventType identifies a ledger event published to downstream consumers.
type EventType string

const (
	EventTypeCharityRegistered    EventType = "charity_registered"
	EventTypeCharityStatusChanged EventType = "charity_status_changed"
	EventTypePlatformFeeUpdated   EventType = "platform_fee_updated"
	EventTypeDonationReceived     EventType = "donation_received"
	EventTypeCampaignCreated      EventType = "campaign_created"
	EventTypeFundsWithdrawn       EventType = "funds_withdrawn"
	EventTypeEmergencyWithdrawal  EventType = "emergency_withdrawal"
)

// LedgerEvent is the normalized notification emitted after a committed mutation.
// Events are best-effort: the ledger's own state is authoritative even if no
// listener is attached. The TxID is a ULID assigned at commit time so an
// off-chain history service can key its records and deduplicate retries.
type LedgerEvent struct {
	TxID       string    `json:"tx_id"`
	Type       EventType `json:"type"`
	CharityID  uint64    `json:"charity_id,omitempty"`
	CampaignID uint64    `json:"campaign_id,omitempty"`
	Caller     Address   `json:"caller,omitempty"`
	Wallet     Address   `json:"wallet,omitempty"`
	Name       string    `json:"name,omitempty"`
	Active     *bool     `json:"active,omitempty"`
	Amount     Amount    `json:"amount,omitempty"`
	Fee        Amount    `json:"fee,omitempty"`
	NetAmount  Amount    `json:"net_amount,omitempty"`
	FeeBps     uint32    `json:"fee_bps,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// CampaignProgress is the funding progress of a campaign in whole percent,
// clamped to 100 (over-funding is allowed but progress caps out).
func CampaignProgress(raised, goal Amount) uint8 {
	if goal <= 0 {
		return 0
	}
	pct := raised * 100 / goal
	if pct > 100 {
		return 100
	}
	return uint8(pct)
}

// WithdrawalFee splits a gross withdrawal amount into fee and net payout.
// fee = floor(amount * feeBps / 10000); the gross amount is what the charity's
// balance is debited, the net is what reaches its wallet. The quotient and
// remainder are multiplied separately so the intermediate product stays within
// int64 for the full Amount range.
func WithdrawalFee(amount Amount, feeBps uint32) (fee, net Amount) {
	fee = amount/FeeDivisor*int64(feeBps) + amount%FeeDivisor*int64(feeBps)/FeeDivisor
	return fee, amount - fee
}
