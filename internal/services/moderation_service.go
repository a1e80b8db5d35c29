package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"squad-predictions/internal/apperrors"
	"squad-predictions/internal/models"
	"squad-predictions/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ModerationAction is the closed set of commands an admin can run against a
// poll. Requests are parsed into this union and validated before any
// mutation; the dispatch switch below is exhaustive over it.
type ModerationAction string

const (
	ActionApprove              ModerationAction = "approve"
	ActionReject               ModerationAction = "reject"
	ActionCloseStakes          ModerationAction = "close_stakes"
	ActionSetUnderReview       ModerationAction = "set_under_review"
	ActionSetPendingResolution ModerationAction = "set_pending_resolution"
	ActionResolve              ModerationAction = "resolve"
	ActionCancel               ModerationAction = "cancel"
	ActionToggleHidden         ModerationAction = "toggle_hidden"
)

// ParseModerationAction validates the raw action string at the boundary.
func ParseModerationAction(raw string) (ModerationAction, error) {
	action := ModerationAction(strings.ToLower(strings.TrimSpace(raw)))
	switch action {
	case ActionApprove, ActionReject, ActionCloseStakes, ActionSetUnderReview,
		ActionSetPendingResolution, ActionResolve, ActionCancel, ActionToggleHidden:
		return action, nil
	}
	return "", apperrors.Newf(apperrors.CodeInvalidRequest, "unknown moderation action %q", raw)
}

// ModerationResult reports the outcome of a moderation command.
type ModerationResult struct {
	NextStatus    models.PollStatus      `json:"next_status"`
	UpdatedFields map[string]interface{} `json:"updated_fields"`
}

// ReportResult reports the outcome of a poll report.
type ReportResult struct {
	ReportCount  int  `json:"report_count"`
	Transitioned bool `json:"transitioned"`
}

// ModerationService walks polls through their review states and settles
// them on resolve/cancel. Every transition is a compare-and-swap on the
// current status; settlement batches apply in the same transaction as the
// status flip.
type ModerationService struct {
	db              *gorm.DB
	repo            *repository.Repository
	wallet          *WalletService
	reportThreshold int
}

func NewModerationService(
	db *gorm.DB,
	repo *repository.Repository,
	wallet *WalletService,
	reportThreshold int,
) *ModerationService {
	return &ModerationService{
		db:              db,
		repo:            repo,
		wallet:          wallet,
		reportThreshold: reportThreshold,
	}
}

// Moderate executes one moderation command against a poll.
func (s *ModerationService) Moderate(
	ctx context.Context,
	moderatorID uint,
	pollID uuid.UUID,
	req *models.ModeratePollRequest,
) (*ModerationResult, error) {
	action, err := ParseModerationAction(req.Action)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	switch action {
	case ActionApprove:
		poll, err := s.repo.TransitionStatus(ctx, pollID,
			[]models.PollStatus{models.PollStatusPending, models.PollStatusRejected},
			models.PollStatusOpen,
			map[string]interface{}{
				"rejection_reason": nil,
				"moderated_by":     moderatorID,
				"moderated_at":     now,
			})
		if err != nil {
			return nil, err
		}
		log.Printf("Poll %s approved by moderator %d", pollID, moderatorID)
		return &ModerationResult{
			NextStatus:    poll.Status,
			UpdatedFields: map[string]interface{}{"rejection_reason": nil},
		}, nil

	case ActionReject:
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			return nil, apperrors.New(apperrors.CodeInvalidReason, "rejection reason is required")
		}
		poll, err := s.repo.TransitionStatus(ctx, pollID,
			[]models.PollStatus{models.PollStatusPending},
			models.PollStatusRejected,
			map[string]interface{}{
				"rejection_reason": reason,
				"moderated_by":     moderatorID,
				"moderated_at":     now,
			})
		if err != nil {
			return nil, err
		}
		log.Printf("Poll %s rejected by moderator %d: %s", pollID, moderatorID, reason)
		return &ModerationResult{
			NextStatus:    poll.Status,
			UpdatedFields: map[string]interface{}{"rejection_reason": reason},
		}, nil

	case ActionCloseStakes:
		poll, err := s.repo.TransitionStatus(ctx, pollID,
			[]models.PollStatus{models.PollStatusOpen},
			models.PollStatusLocked, nil)
		if err != nil {
			return nil, err
		}
		return &ModerationResult{NextStatus: poll.Status, UpdatedFields: map[string]interface{}{}}, nil

	case ActionSetUnderReview:
		poll, err := s.repo.TransitionStatus(ctx, pollID,
			[]models.PollStatus{models.PollStatusOpen, models.PollStatusLocked, models.PollStatusPendingResolution},
			models.PollStatusUnderReview, nil)
		if err != nil {
			return nil, err
		}
		return &ModerationResult{NextStatus: poll.Status, UpdatedFields: map[string]interface{}{}}, nil

	case ActionSetPendingResolution:
		poll, err := s.repo.TransitionStatus(ctx, pollID,
			[]models.PollStatus{models.PollStatusLocked, models.PollStatusUnderReview},
			models.PollStatusPendingResolution, nil)
		if err != nil {
			return nil, err
		}
		return &ModerationResult{NextStatus: poll.Status, UpdatedFields: map[string]interface{}{}}, nil

	case ActionResolve:
		return s.resolve(ctx, moderatorID, pollID, req.Option, req.ProofURL)

	case ActionCancel:
		return s.cancel(ctx, moderatorID, pollID)

	case ActionToggleHidden:
		return s.toggleHidden(ctx, pollID)
	}

	// Unreachable: ParseModerationAction rejects anything else
	return nil, apperrors.Newf(apperrors.CodeInvalidRequest, "unknown moderation action %q", req.Action)
}

// resolve settles a poll on the given outcome. The status flip is the
// claim: the guarded UPDATE admits exactly one resolver, and every payout
// credit commits or rolls back with it.
func (s *ModerationService) resolve(
	ctx context.Context,
	moderatorID uint,
	pollID uuid.UUID,
	rawOption string,
	proofURL string,
) (*ModerationResult, error) {
	if !models.ValidOption(rawOption) {
		return nil, apperrors.Newf(apperrors.CodeInvalidRequest, "resolved option must be A or B, got %q", rawOption)
	}
	if err := validateProofURL(proofURL); err != nil {
		return nil, err
	}
	option := models.PollOption(rawOption)

	var result *ModerationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		now := time.Now()

		poll, err := txRepo.TransitionStatus(ctx, pollID,
			[]models.PollStatus{models.PollStatusLocked, models.PollStatusPendingResolution, models.PollStatusUnderReview},
			models.PollStatusResolved,
			map[string]interface{}{
				"resolved_option": option,
				"proof_url":       proofURL,
				"resolved_by":     moderatorID,
				"resolved_at":     now,
			})
		if err != nil {
			return err
		}

		parts, err := txRepo.GetParticipations(ctx, pollID)
		if err != nil {
			return err
		}

		settlements := CalculateResolution(poll.PoolA, poll.PoolB, option, parts)
		for _, settlement := range settlements {
			if settlement.BalanceDelta.IsPositive() {
				description := fmt.Sprintf("settlement for poll %s resolved %s", pollID, option)
				if err := s.wallet.Credit(tx, settlement.UserID, &pollID, settlement.BalanceDelta,
					models.LedgerEntrySettlementCredit, description); err != nil {
					return err
				}
			}
			if settlement.ReputationDelta != 0 {
				if err := s.wallet.AddReputation(tx, settlement.UserID, settlement.ReputationDelta); err != nil {
					return err
				}
			}
		}

		result = &ModerationResult{
			NextStatus: poll.Status,
			UpdatedFields: map[string]interface{}{
				"resolved_option": option,
				"proof_url":       proofURL,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Poll %s resolved as %s by moderator %d", pollID, rawOption, moderatorID)
	return result, nil
}

// cancel unwinds a poll: every staker gets their full stake back, fee-free,
// in the same transaction as the status flip.
func (s *ModerationService) cancel(ctx context.Context, moderatorID uint, pollID uuid.UUID) (*ModerationResult, error) {
	var result *ModerationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		poll, err := txRepo.TransitionStatus(ctx, pollID,
			[]models.PollStatus{
				models.PollStatusPending, models.PollStatusOpen, models.PollStatusLocked,
				models.PollStatusPendingResolution, models.PollStatusUnderReview,
			},
			models.PollStatusCancelled,
			map[string]interface{}{
				"moderated_by": moderatorID,
				"moderated_at": time.Now(),
			})
		if err != nil {
			return err
		}

		parts, err := txRepo.GetParticipations(ctx, pollID)
		if err != nil {
			return err
		}

		for _, settlement := range CalculateCancellation(parts) {
			description := fmt.Sprintf("refund for cancelled poll %s", pollID)
			if err := s.wallet.Credit(tx, settlement.UserID, &pollID, settlement.BalanceDelta,
				models.LedgerEntryRefundCredit, description); err != nil {
				return err
			}
		}

		result = &ModerationResult{NextStatus: poll.Status, UpdatedFields: map[string]interface{}{}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Poll %s cancelled by moderator %d, stakes refunded", pollID, moderatorID)
	return result, nil
}

// toggleHidden flips visibility without touching status.
func (s *ModerationService) toggleHidden(ctx context.Context, pollID uuid.UUID) (*ModerationResult, error) {
	result := s.db.WithContext(ctx).
		Model(&models.PredictionPoll{}).
		Where("id = ?", pollID).
		Update("is_hidden", gorm.Expr("NOT is_hidden"))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.New(apperrors.CodePollNotFound, "poll not found")
	}

	poll, err := s.repo.GetPollByID(ctx, pollID)
	if err != nil {
		return nil, err
	}

	return &ModerationResult{
		NextStatus:    poll.Status,
		UpdatedFields: map[string]interface{}{"is_hidden": poll.IsHidden},
	}, nil
}

// Report records one user's report against a poll. Counting continues past
// the threshold, but the under-review transition fires only for the call
// that first crosses it while the poll is still in a reportable state.
func (s *ModerationService) Report(
	ctx context.Context,
	pollID uuid.UUID,
	userID uint,
	reason string,
) (*ReportResult, error) {
	poll, err := s.repo.GetPollByID(ctx, pollID)
	if err != nil {
		return nil, err
	}

	switch poll.Status {
	case models.PollStatusOpen, models.PollStatusLocked, models.PollStatusPendingResolution, models.PollStatusUnderReview:
	default:
		return nil, apperrors.Newf(apperrors.CodeStateConflict,
			"poll cannot be reported in status %s", poll.Status)
	}

	report := &models.PollReport{
		PollID:    pollID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		report.Reason = &trimmed
	}

	// Row insert, counter bump, and the threshold escalation commit or roll
	// back together; a report can never exist uncounted
	var result ReportResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if err := txRepo.CreateReport(ctx, report); err != nil {
			return err
		}

		count, err := txRepo.IncrementReportCount(ctx, pollID)
		if err != nil {
			return err
		}
		result.ReportCount = count

		if count >= s.reportThreshold {
			_, err := txRepo.TransitionStatus(ctx, pollID,
				[]models.PollStatus{models.PollStatusOpen, models.PollStatusLocked, models.PollStatusPendingResolution},
				models.PollStatusUnderReview, nil)
			switch {
			case err == nil:
				result.Transitioned = true
				log.Printf("Poll %s moved to under review after %d reports", pollID, count)
			case apperrors.IsCode(err, apperrors.CodeStateConflict):
				// Already under review or past it; keep counting
			default:
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func validateProofURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return apperrors.Newf(apperrors.CodeInvalidProofURL, "proof url is not parseable: %v", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return apperrors.New(apperrors.CodeInvalidProofURL, "proof url must be an absolute http(s) URL")
	}
	return nil
}
