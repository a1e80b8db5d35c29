package models

import "time"

type BlockingReason string

const (
	BlockingNeedProgress BlockingReason = "need_progress"
	BlockingNeedSquad    BlockingReason = "need_squad"
	BlockingNeedCaptain  BlockingReason = "need_captain"
	BlockingMonthLimit   BlockingReason = "month_limit"
	BlockingCooldown     BlockingReason = "cooldown"
)

// EligibilitySnapshot is the computed answer to "may this user open a poll
// right now". It is never persisted; clients render it, the server
// recomputes it on every create call.
type EligibilitySnapshot struct {
	RequiredCompletedCount int             `json:"required_completed_count"`
	CompletedCount         int             `json:"completed_count"`
	HasSquad               bool            `json:"has_squad"`
	SquadID                string          `json:"squad_id,omitempty"`
	IsSquadCaptain         bool            `json:"is_squad_captain"`
	IsAdmin                bool            `json:"is_admin"`
	MonthlyLimit           int             `json:"monthly_limit"`
	UsedThisMonth          int             `json:"used_this_month"`
	RemainingThisMonth     int             `json:"remaining_this_month"`
	CooldownHoursLeft      float64         `json:"cooldown_hours_left"`
	NextAvailableAt        *time.Time      `json:"next_available_at,omitempty"`
	BlockingReasonCode     *BlockingReason `json:"blocking_reason_code"`
}

// Eligible reports whether no check blocked the user.
func (s *EligibilitySnapshot) Eligible() bool {
	return s.BlockingReasonCode == nil
}

// SquadMonthlyQuota describes how many polls a squad may still open this
// UTC month.
type SquadMonthlyQuota struct {
	SquadID            string    `json:"squad_id"`
	MonthlyLimit       int       `json:"monthly_limit"`
	UsedThisMonth      int       `json:"used_this_month"`
	RemainingThisMonth int       `json:"remaining_this_month"`
	ResetsAt           time.Time `json:"resets_at"`
}
