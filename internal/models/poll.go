package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PollStatus string

const (
	PollStatusPending           PollStatus = "PENDING"
	PollStatusOpen              PollStatus = "OPEN"
	PollStatusLocked            PollStatus = "LOCKED"
	PollStatusUnderReview       PollStatus = "UNDER_REVIEW"
	PollStatusPendingResolution PollStatus = "PENDING_RESOLUTION"
	PollStatusResolved          PollStatus = "RESOLVED"
	PollStatusRejected          PollStatus = "REJECTED"
	PollStatusCancelled         PollStatus = "CANCELLED"
	PollStatusInvalid           PollStatus = "INVALID"
)

type PollOption string

const (
	PollOptionA PollOption = "A"
	PollOptionB PollOption = "B"
)

// ValidOption reports whether s is one of the two poll outcomes.
func ValidOption(s string) bool {
	return PollOption(s) == PollOptionA || PollOption(s) == PollOptionB
}

// PredictionPoll is a binary-outcome prediction a squad captain opens for
// staking or voting. Pools hold the pari-mutuel totals per outcome and must
// always equal the sum of recorded stake participations.
type PredictionPoll struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SquadID          string          `gorm:"size:64;not null;index" json:"squad_id"`
	Title            string          `gorm:"size:500;not null" json:"title"`
	OptionALabel     string          `gorm:"size:255;not null" json:"option_a_label"`
	OptionBLabel     string          `gorm:"size:255;not null" json:"option_b_label"`
	CoverImageURL    *string         `gorm:"size:500" json:"cover_image_url,omitempty"`
	DeadlineAt       time.Time       `gorm:"not null;index" json:"deadline_at"`
	Status           PollStatus      `gorm:"size:50;not null;default:PENDING;index" json:"status"`
	CreatedBy        uint            `gorm:"not null;index" json:"created_by"`
	SubmittedAt      time.Time       `json:"submitted_at"`
	ModeratedBy      *uint           `json:"moderated_by,omitempty"`
	ModeratedAt      *time.Time      `json:"moderated_at,omitempty"`
	RejectionReason  *string         `gorm:"size:500" json:"rejection_reason,omitempty"`
	PoolA            decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"pool_a"`
	PoolB            decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"pool_b"`
	ParticipantCount int             `gorm:"not null;default:0" json:"participant_count"`
	ResolvedOption   *PollOption     `gorm:"size:1" json:"resolved_option,omitempty"`
	ProofURL         *string         `gorm:"size:500" json:"proof_url,omitempty"`
	ResolvedBy       *uint           `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
	ReportCount      int             `gorm:"not null;default:0" json:"report_count"`
	IsHidden         bool            `gorm:"not null;default:false" json:"is_hidden"`
	StakeEnabled     bool            `gorm:"not null;default:true" json:"stake_enabled"`
	VoteEnabled      bool            `gorm:"not null;default:true" json:"vote_enabled"`
	CreatedAt        time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PredictionPoll) TableName() string {
	return "prediction_polls"
}

// TotalPool returns pool_a + pool_b.
func (p *PredictionPoll) TotalPool() decimal.Decimal {
	return p.PoolA.Add(p.PoolB)
}

// IsTerminal reports whether the poll reached a final state.
func (p *PredictionPoll) IsTerminal() bool {
	switch p.Status {
	case PollStatusResolved, PollStatusCancelled, PollStatusInvalid:
		return true
	}
	return false
}

// CreatePollRequest is the payload for opening a new prediction.
type CreatePollRequest struct {
	Title         string    `json:"title" binding:"required"`
	OptionALabel  string    `json:"option_a_label" binding:"required"`
	OptionBLabel  string    `json:"option_b_label" binding:"required"`
	CoverImageURL *string   `json:"cover_image_url"`
	DeadlineAt    time.Time `json:"deadline_at" binding:"required"`
	StakeEnabled  *bool     `json:"stake_enabled"`
	VoteEnabled   *bool     `json:"vote_enabled"`
}

// ParticipateRequest is the payload for staking or voting on a poll.
type ParticipateRequest struct {
	Mode   string          `json:"mode" binding:"required"`
	Option string          `json:"option" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// ModeratePollRequest carries a moderation command plus its action-specific
// extras. The action string is validated against the closed command set
// before any mutation happens.
type ModeratePollRequest struct {
	Action   string `json:"action" binding:"required"`
	Reason   string `json:"reason"`
	Option   string `json:"option"`
	ProofURL string `json:"proof_url"`
}

// ReportPollRequest is the payload for flagging a poll.
type ReportPollRequest struct {
	Reason string `json:"reason"`
}

// AdminUpdatePollRequest carries the editable poll fields. Nil fields are
// left untouched.
type AdminUpdatePollRequest struct {
	Title         *string    `json:"title"`
	OptionALabel  *string    `json:"option_a_label"`
	OptionBLabel  *string    `json:"option_b_label"`
	CoverImageURL *string    `json:"cover_image_url"`
	DeadlineAt    *time.Time `json:"deadline_at"`
	StakeEnabled  *bool      `json:"stake_enabled"`
	VoteEnabled   *bool      `json:"vote_enabled"`
}

// PollFilter narrows ListPolls results.
type PollFilter struct {
	SquadID       string
	Status        PollStatus
	IncludeHidden bool
	Limit         int
	Offset        int
}
