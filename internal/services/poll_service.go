package services

import (
	"context"
	"log"
	"strings"
	"time"

	"squad-predictions/internal/apperrors"
	"squad-predictions/internal/clients"
	"squad-predictions/internal/config"
	"squad-predictions/internal/models"
	"squad-predictions/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PollService owns the poll lifecycle outside moderation: creation (behind
// a fresh server-side eligibility check), listing, admin edits, and
// deletion.
type PollService struct {
	db          *gorm.DB
	repo        *repository.Repository
	eligibility *EligibilityService
	moderation  *ModerationService
	squads      clients.SquadDirectory
	cfg         config.MarketConfig
}

func NewPollService(
	db *gorm.DB,
	repo *repository.Repository,
	eligibility *EligibilityService,
	moderation *ModerationService,
	squads clients.SquadDirectory,
	cfg config.MarketConfig,
) *PollService {
	return &PollService{
		db:          db,
		repo:        repo,
		eligibility: eligibility,
		moderation:  moderation,
		squads:      squads,
		cfg:         cfg,
	}
}

// CreatePoll opens a new prediction for the user's squad. Eligibility is
// re-evaluated here on every call; a client-asserted eligible flag is never
// trusted.
func (s *PollService) CreatePoll(
	ctx context.Context,
	user *models.User,
	req *models.CreatePollRequest,
) (*models.PredictionPoll, error) {
	if strings.TrimSpace(req.Title) == "" ||
		strings.TrimSpace(req.OptionALabel) == "" ||
		strings.TrimSpace(req.OptionBLabel) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "title and both option labels are required")
	}
	if !req.DeadlineAt.After(time.Now()) {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "deadline must be in the future")
	}

	stakeEnabled := true
	if req.StakeEnabled != nil {
		stakeEnabled = *req.StakeEnabled
	}
	voteEnabled := true
	if req.VoteEnabled != nil {
		voteEnabled = *req.VoteEnabled
	}
	if !stakeEnabled && !voteEnabled {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "at least one of stake or vote mode must be enabled")
	}

	snapshot := s.eligibility.Evaluate(ctx, user)
	if !snapshot.Eligible() {
		reason := string(*snapshot.BlockingReasonCode)
		return nil, apperrors.NotEligible(reason, "user may not create a poll: "+reason)
	}

	squadID := snapshot.SquadID
	if squadID == "" {
		// Admin bypass skips the squad gate; attach the squad when the
		// admin has one
		if membership, err := s.squads.SquadOf(ctx, user.ID); err == nil && membership != nil {
			squadID = membership.SquadID
		}
	}

	status := models.PollStatusOpen
	if s.cfg.ModerationRequired && !user.IsAdmin {
		status = models.PollStatusPending
	}

	now := time.Now()
	poll := &models.PredictionPoll{
		ID:            uuid.New(),
		SquadID:       squadID,
		Title:         strings.TrimSpace(req.Title),
		OptionALabel:  strings.TrimSpace(req.OptionALabel),
		OptionBLabel:  strings.TrimSpace(req.OptionBLabel),
		CoverImageURL: req.CoverImageURL,
		DeadlineAt:    req.DeadlineAt,
		Status:        status,
		CreatedBy:     user.ID,
		SubmittedAt:   now,
		PoolA:         decimal.Zero,
		PoolB:         decimal.Zero,
		StakeEnabled:  stakeEnabled,
		VoteEnabled:   voteEnabled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreatePoll(ctx, poll); err != nil {
		return nil, err
	}

	log.Printf("Poll %s created by user %d for squad %s, status %s", poll.ID, user.ID, squadID, status)
	return poll, nil
}

// GetPoll retrieves a single poll
func (s *PollService) GetPoll(ctx context.Context, pollID uuid.UUID) (*models.PredictionPoll, error) {
	return s.repo.GetPollByID(ctx, pollID)
}

// ListPolls retrieves polls matching the filter
func (s *PollService) ListPolls(ctx context.Context, filter models.PollFilter) ([]*models.PredictionPoll, int64, error) {
	return s.repo.ListPolls(ctx, filter)
}

// AdminUpdatePoll applies the editable fields. Edits are blocked once a
// poll is resolved or cancelled; the guard rides in the UPDATE so a
// concurrent resolve cannot slip an edit through.
func (s *PollService) AdminUpdatePoll(
	ctx context.Context,
	pollID uuid.UUID,
	req *models.AdminUpdatePollRequest,
) (*models.PredictionPoll, map[string]interface{}, error) {
	updates := map[string]interface{}{}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, nil, apperrors.New(apperrors.CodeInvalidRequest, "title cannot be empty")
		}
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.OptionALabel != nil {
		updates["option_a_label"] = *req.OptionALabel
	}
	if req.OptionBLabel != nil {
		updates["option_b_label"] = *req.OptionBLabel
	}
	if req.CoverImageURL != nil {
		updates["cover_image_url"] = *req.CoverImageURL
	}
	if req.DeadlineAt != nil {
		updates["deadline_at"] = *req.DeadlineAt
	}
	if req.StakeEnabled != nil {
		updates["stake_enabled"] = *req.StakeEnabled
	}
	if req.VoteEnabled != nil {
		updates["vote_enabled"] = *req.VoteEnabled
	}
	if len(updates) == 0 {
		return nil, nil, apperrors.New(apperrors.CodeInvalidRequest, "no editable fields provided")
	}

	result := s.db.WithContext(ctx).
		Model(&models.PredictionPoll{}).
		Where("id = ? AND status NOT IN ?", pollID,
			[]models.PollStatus{models.PollStatusResolved, models.PollStatusCancelled}).
		Updates(updates)
	if result.Error != nil {
		return nil, nil, result.Error
	}
	if result.RowsAffected == 0 {
		poll, err := s.repo.GetPollByID(ctx, pollID)
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, apperrors.Newf(apperrors.CodeEditLocked,
			"poll in status %s can no longer be edited", poll.Status)
	}

	poll, err := s.repo.GetPollByID(ctx, pollID)
	if err != nil {
		return nil, nil, err
	}
	return poll, updates, nil
}

// AdminDeletePoll removes a poll. A poll nobody joined is hard-deleted; one
// with participations is soft-cancelled (stakes refunded) and hidden
// instead, so the ledger history stays intact. The empty check is part of
// the DELETE itself, so a stake racing the delete either commits to a poll
// that then gets cancelled and refunded, or fails against a poll that is
// already gone; it can never be charged and orphaned.
func (s *PollService) AdminDeletePoll(ctx context.Context, adminID uint, pollID uuid.UUID) (string, error) {
	deleted, err := s.repo.DeletePoll(ctx, pollID)
	if err != nil {
		return "", err
	}
	if deleted {
		log.Printf("Poll %s hard-deleted by admin %d", pollID, adminID)
		return "deleted", nil
	}

	// Either participants exist or the poll is gone; the read tells which
	poll, err := s.repo.GetPollByID(ctx, pollID)
	if err != nil {
		return "", err
	}

	if poll.Status == models.PollStatusResolved {
		return "", apperrors.New(apperrors.CodeStateConflict, "resolved polls with participants cannot be deleted")
	}

	if poll.Status != models.PollStatusCancelled {
		if _, err := s.moderation.cancel(ctx, adminID, pollID); err != nil {
			return "", err
		}
	}

	if err := s.db.WithContext(ctx).
		Model(&models.PredictionPoll{}).
		Where("id = ?", pollID).
		Update("is_hidden", true).Error; err != nil {
		return "", err
	}

	log.Printf("Poll %s soft-cancelled and hidden by admin %d (%d participants)", pollID, adminID, poll.ParticipantCount)
	return "cancelled", nil
}
