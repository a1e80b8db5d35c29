package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User holds the spendable in-app balance and reputation the prediction
// engine settles against. Profile data lives with the social app; only the
// fields the engine needs are mirrored here.
type User struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Username   string          `gorm:"size:255;uniqueIndex;not null" json:"username"`
	Balance    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"balance"`
	Reputation int64           `gorm:"not null;default:0" json:"reputation"`
	IsAdmin    bool            `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

type LedgerEntryType string

const (
	LedgerEntryStakeDebit       LedgerEntryType = "STAKE_DEBIT"
	LedgerEntrySettlementCredit LedgerEntryType = "SETTLEMENT_CREDIT"
	LedgerEntryRefundCredit     LedgerEntryType = "REFUND_CREDIT"
)

// LedgerEntry is the audit trail for every balance movement. Entries are
// written inside the same transaction as the balance change itself.
type LedgerEntry struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	PollID      *uuid.UUID      `gorm:"type:uuid;index" json:"poll_id,omitempty"`
	Type        LedgerEntryType `gorm:"size:50;not null;index" json:"type"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Description string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
