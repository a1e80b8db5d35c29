package services

import (
	"squad-predictions/internal/models"

	"github.com/shopspring/decimal"
)

// Pari-mutuel settlement constants.
var (
	// FeeTotal is the platform cut taken from the distributable pool.
	FeeTotal = decimal.NewFromFloat(0.07)
	// RefundRate is the slice of every stake returned to its owner no
	// matter the outcome.
	RefundRate = decimal.NewFromFloat(0.15)
	// StakeCap is the maximum single stake.
	StakeCap = decimal.NewFromInt(500)
)

// ReputationReward is granted to each vote that picked the resolved option.
const ReputationReward int64 = 12

// Settlement is one user's outcome of a resolution or cancellation.
type Settlement struct {
	UserID          uint            `json:"user_id"`
	BalanceDelta    decimal.Decimal `json:"balance_delta"`
	ReputationDelta int64           `json:"reputation_delta"`
}

// CalculateResolution turns a poll's participations into settlement deltas
// for the given winning option. Pure function; callers apply the batch
// atomically with the status flip.
//
// Each staker always receives stake*RefundRate back. Winners additionally
// split the effective pool (total net of the refund reserve, net of the
// platform fee) pro rata to their stakes. When nobody staked the winning
// side every staker is on the losing side and receives only the refund; the
// remainder stays with the platform.
func CalculateResolution(
	poolA, poolB decimal.Decimal,
	winning models.PollOption,
	parts []models.Participation,
) []Settlement {
	total := poolA.Add(poolB)
	winningPool := poolA
	if winning == models.PollOptionB {
		winningPool = poolB
	}

	one := decimal.NewFromInt(1)
	effectivePool := total.Mul(one.Sub(RefundRate))
	distributable := effectivePool.Mul(one.Sub(FeeTotal))

	settlements := make([]Settlement, 0, len(parts))
	for _, part := range parts {
		switch part.Mode {
		case models.ParticipationModeStake:
			refund := part.StakeAmount.Mul(RefundRate)
			settlement := refund
			if part.Option == winning && winningPool.IsPositive() {
				share := part.StakeAmount.Mul(distributable).Div(winningPool)
				settlement = refund.Add(share)
			}
			settlements = append(settlements, Settlement{
				UserID:       part.UserID,
				BalanceDelta: settlement,
			})
		case models.ParticipationModeVote:
			var reward int64
			if part.Option == winning {
				reward = ReputationReward
			}
			settlements = append(settlements, Settlement{
				UserID:          part.UserID,
				ReputationDelta: reward,
			})
		}
	}

	return settlements
}

// CalculateCancellation unwinds every participation: stakers get 100% of
// their stake back, no fee, no reputation change.
func CalculateCancellation(parts []models.Participation) []Settlement {
	settlements := make([]Settlement, 0, len(parts))
	for _, part := range parts {
		if part.Mode != models.ParticipationModeStake {
			continue
		}
		settlements = append(settlements, Settlement{
			UserID:       part.UserID,
			BalanceDelta: part.StakeAmount,
		})
	}
	return settlements
}
