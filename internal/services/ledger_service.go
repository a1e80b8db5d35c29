package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"squad-predictions/internal/apperrors"
	"squad-predictions/internal/clients"
	"squad-predictions/internal/models"
	"squad-predictions/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService records stake and vote participations. A stake debits the
// wallet, grows the chosen pool, and persists the participation row as one
// transaction; a crash or race can never leave a charged-but-unrecorded
// stake behind.
type LedgerService struct {
	db       *gorm.DB
	repo     *repository.Repository
	wallet   *WalletService
	progress clients.ProgressTracker
}

func NewLedgerService(
	db *gorm.DB,
	repo *repository.Repository,
	wallet *WalletService,
	progress clients.ProgressTracker,
) *LedgerService {
	return &LedgerService{
		db:       db,
		repo:     repo,
		wallet:   wallet,
		progress: progress,
	}
}

// Participate records one user's stake or vote on an open poll.
func (s *LedgerService) Participate(
	ctx context.Context,
	pollID uuid.UUID,
	userID uint,
	mode string,
	option string,
	amount decimal.Decimal,
) (*models.Participation, error) {
	if !models.ValidMode(mode) {
		return nil, apperrors.Newf(apperrors.CodeInvalidRequest, "unknown participation mode %q", mode)
	}
	if !models.ValidOption(option) {
		return nil, apperrors.Newf(apperrors.CodeInvalidRequest, "unknown option %q", option)
	}
	participationMode := models.ParticipationMode(mode)

	poll, err := s.repo.GetPollByID(ctx, pollID)
	if err != nil {
		return nil, err
	}

	if poll.Status != models.PollStatusOpen {
		return nil, apperrors.Newf(apperrors.CodePollNotOpen,
			"poll is not open for participation, current status: %s", poll.Status)
	}

	switch participationMode {
	case models.ParticipationModeStake:
		if !poll.StakeEnabled {
			return nil, apperrors.New(apperrors.CodeModeDisabled, "staking is disabled on this poll")
		}
		if !amount.IsPositive() || amount.GreaterThan(StakeCap) {
			return nil, apperrors.Newf(apperrors.CodeStakeOutOfBounds,
				"stake must be between 0 and %s, got %s", StakeCap.String(), amount.String())
		}
		warm, err := s.progress.WarmAccount(ctx, userID)
		if err != nil {
			// Collaborator failure denies the stake, never allows it
			log.Printf("ledger: warm account check failed for user %d: %v", userID, err)
			return nil, apperrors.New(apperrors.CodeColdAccount, "account engagement could not be verified")
		}
		if !warm {
			return nil, apperrors.New(apperrors.CodeColdAccount,
				"complete at least one quiz or test before staking")
		}
	case models.ParticipationModeVote:
		if !poll.VoteEnabled {
			return nil, apperrors.New(apperrors.CodeModeDisabled, "voting is disabled on this poll")
		}
		// Votes carry no money; the reputation reward is applied at
		// resolution time
		amount = decimal.Zero
	}

	part := &models.Participation{
		PollID:      pollID,
		UserID:      userID,
		Mode:        participationMode,
		Option:      models.PollOption(option),
		StakeAmount: amount,
		CreatedAt:   time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if err := txRepo.RecordParticipation(ctx, part); err != nil {
			return err
		}

		if participationMode == models.ParticipationModeStake {
			description := fmt.Sprintf("stake on poll %s option %s", pollID, option)
			if err := s.wallet.Debit(tx, userID, &pollID, amount, models.LedgerEntryStakeDebit, description); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return part, nil
}

// GetPollParticipations lists the recorded entries for a poll
func (s *LedgerService) GetPollParticipations(ctx context.Context, pollID uuid.UUID) ([]models.Participation, error) {
	return s.repo.GetParticipations(ctx, pollID)
}
