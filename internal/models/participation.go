package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ParticipationMode string

const (
	ParticipationModeStake ParticipationMode = "STAKE"
	ParticipationModeVote  ParticipationMode = "VOTE"
)

// ValidMode reports whether s is a known participation mode.
func ValidMode(s string) bool {
	return ParticipationMode(s) == ParticipationModeStake || ParticipationMode(s) == ParticipationModeVote
}

// Participation records one user's single entry on a poll. Rows are
// immutable once written; the unique (poll_id, user_id) index enforces the
// one-entry-per-user rule even under concurrent calls.
type Participation struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	PollID      uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_participations_poll_user" json:"poll_id"`
	UserID      uint              `gorm:"not null;uniqueIndex:idx_participations_poll_user" json:"user_id"`
	Mode        ParticipationMode `gorm:"size:10;not null" json:"mode"`
	Option      PollOption        `gorm:"size:1;not null" json:"option"`
	StakeAmount decimal.Decimal   `gorm:"type:decimal(15,2);not null;default:0" json:"stake_amount"`
	CreatedAt   time.Time         `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Participation) TableName() string {
	return "participations"
}

// PollReport records one user's report against a poll. The unique
// (poll_id, user_id) index makes repeat reports an explicit duplicate.
type PollReport struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PollID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_poll_reports_poll_user" json:"poll_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_poll_reports_poll_user" json:"user_id"`
	Reason    *string   `gorm:"size:500" json:"reason,omitempty"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (PollReport) TableName() string {
	return "poll_reports"
}
