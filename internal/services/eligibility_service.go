package services

import (
	"context"
	"log"
	"time"

	"squad-predictions/internal/clients"
	"squad-predictions/internal/config"
	"squad-predictions/internal/models"
	"squad-predictions/internal/repository"
)

// EligibilityService decides whether a user may open a new poll. Evaluate
// is read-only and cheap; the checks run in a fixed order so the caller is
// always told the first requirement to fix. Any collaborator failure yields
// a conservative not-eligible snapshot, never a permissive one.
type EligibilityService struct {
	repo     *repository.Repository
	progress clients.ProgressTracker
	squads   clients.SquadDirectory
	cfg      config.MarketConfig
}

func NewEligibilityService(
	repo *repository.Repository,
	progress clients.ProgressTracker,
	squads clients.SquadDirectory,
	cfg config.MarketConfig,
) *EligibilityService {
	return &EligibilityService{
		repo:     repo,
		progress: progress,
		squads:   squads,
		cfg:      cfg,
	}
}

// Evaluate computes the eligibility snapshot for a user. Check order:
// need_progress, need_squad, need_captain, month_limit, cooldown.
func (s *EligibilityService) Evaluate(ctx context.Context, user *models.User) *models.EligibilitySnapshot {
	snapshot := &models.EligibilitySnapshot{
		RequiredCompletedCount: s.cfg.RequiredCompletedCount,
		MonthlyLimit:           s.cfg.MonthlyPollLimit,
		IsAdmin:                user.IsAdmin,
	}

	// Admins bypass every gate
	if user.IsAdmin {
		snapshot.RemainingThisMonth = s.cfg.MonthlyPollLimit
		return snapshot
	}

	completed, err := s.progress.CompletedCount(ctx, user.ID)
	if err != nil {
		log.Printf("eligibility: progress tracker lookup failed for user %d: %v", user.ID, err)
		return s.failClosed(user)
	}
	snapshot.CompletedCount = completed
	if completed < s.cfg.RequiredCompletedCount {
		return block(snapshot, models.BlockingNeedProgress)
	}

	membership, err := s.squads.SquadOf(ctx, user.ID)
	if err != nil {
		log.Printf("eligibility: squad directory lookup failed for user %d: %v", user.ID, err)
		return s.failClosed(user)
	}
	if membership == nil {
		return block(snapshot, models.BlockingNeedSquad)
	}
	snapshot.HasSquad = true
	snapshot.SquadID = membership.SquadID
	snapshot.IsSquadCaptain = membership.IsCaptain
	if !membership.IsCaptain {
		return block(snapshot, models.BlockingNeedCaptain)
	}

	used, err := s.usedThisMonth(ctx, membership.SquadID)
	if err != nil {
		log.Printf("eligibility: quota lookup failed for squad %s: %v", membership.SquadID, err)
		return s.failClosed(user)
	}
	snapshot.UsedThisMonth = used
	snapshot.RemainingThisMonth = s.cfg.MonthlyPollLimit - used
	if snapshot.RemainingThisMonth < 0 {
		snapshot.RemainingThisMonth = 0
	}
	if snapshot.RemainingThisMonth <= 0 {
		return block(snapshot, models.BlockingMonthLimit)
	}

	hoursLeft, nextAt, err := s.cooldownLeft(ctx, membership.SquadID)
	if err != nil {
		log.Printf("eligibility: cooldown lookup failed for squad %s: %v", membership.SquadID, err)
		return s.failClosed(user)
	}
	snapshot.CooldownHoursLeft = hoursLeft
	snapshot.NextAvailableAt = nextAt
	if hoursLeft > 0 {
		return block(snapshot, models.BlockingCooldown)
	}

	return snapshot
}

// GetSquadQuota returns the squad's remaining monthly allowance
func (s *EligibilityService) GetSquadQuota(ctx context.Context, squadID string) (*models.SquadMonthlyQuota, error) {
	used, err := s.usedThisMonth(ctx, squadID)
	if err != nil {
		return nil, err
	}

	remaining := s.cfg.MonthlyPollLimit - used
	if remaining < 0 {
		remaining = 0
	}

	return &models.SquadMonthlyQuota{
		SquadID:            squadID,
		MonthlyLimit:       s.cfg.MonthlyPollLimit,
		UsedThisMonth:      used,
		RemainingThisMonth: remaining,
		ResetsAt:           nextMonthStart(time.Now().UTC()),
	}, nil
}

func (s *EligibilityService) usedThisMonth(ctx context.Context, squadID string) (int, error) {
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	count, err := s.repo.CountSquadPollsSince(ctx, squadID, monthStart)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *EligibilityService) cooldownLeft(ctx context.Context, squadID string) (float64, *time.Time, error) {
	latest, err := s.repo.GetLatestSquadPoll(ctx, squadID)
	if err != nil {
		return 0, nil, err
	}
	if latest == nil {
		return 0, nil, nil
	}

	nextAt := latest.SubmittedAt.Add(time.Duration(s.cfg.CooldownHours) * time.Hour)
	left := time.Until(nextAt).Hours()
	if left <= 0 {
		return 0, nil, nil
	}
	return left, &nextAt, nil
}

// failClosed is the snapshot returned when backing data is unreachable: not
// eligible, first gate reported.
func (s *EligibilityService) failClosed(user *models.User) *models.EligibilitySnapshot {
	reason := models.BlockingNeedProgress
	return &models.EligibilitySnapshot{
		RequiredCompletedCount: s.cfg.RequiredCompletedCount,
		MonthlyLimit:           s.cfg.MonthlyPollLimit,
		IsAdmin:                user.IsAdmin,
		BlockingReasonCode:     &reason,
	}
}

func block(snapshot *models.EligibilitySnapshot, reason models.BlockingReason) *models.EligibilitySnapshot {
	snapshot.BlockingReasonCode = &reason
	return snapshot
}

func nextMonthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
