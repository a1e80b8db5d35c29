package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"squad-predictions/internal/apperrors"
	"squad-predictions/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction handle, so
// status transitions compose into larger atomic units.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// CreatePoll persists a new poll
func (r *Repository) CreatePoll(ctx context.Context, poll *models.PredictionPoll) error {
	return r.db.WithContext(ctx).Create(poll).Error
}

// GetPollByID retrieves a poll by ID
func (r *Repository) GetPollByID(ctx context.Context, pollID uuid.UUID) (*models.PredictionPoll, error) {
	var poll models.PredictionPoll
	err := r.db.WithContext(ctx).Where("id = ?", pollID).First(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodePollNotFound, "poll not found")
	}
	if err != nil {
		return nil, err
	}
	return &poll, nil
}

// ListPolls retrieves polls matching the filter with total count
func (r *Repository) ListPolls(ctx context.Context, filter models.PollFilter) ([]*models.PredictionPoll, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PredictionPoll{})

	if filter.SquadID != "" {
		query = query.Where("squad_id = ?", filter.SquadID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if !filter.IncludeHidden {
		query = query.Where("is_hidden = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var polls []*models.PredictionPoll
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&polls).Error
	if err != nil {
		return nil, 0, err
	}

	return polls, total, nil
}

// DeletePoll hard-deletes a poll row iff nobody has joined it. The
// participant guard rides in the DELETE, so a participation landing
// concurrently makes the delete a no-op instead of orphaning the entry.
// Returns whether the row was removed; callers seeing false must take the
// cancel path instead.
func (r *Repository) DeletePoll(ctx context.Context, pollID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND participant_count = 0", pollID).
		Delete(&models.PredictionPoll{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TransitionStatus moves a poll to a new status iff its current status is in
// the allowed source set. The guard and the write are one UPDATE, so two
// concurrent moderation calls yield exactly one winner; the loser gets a
// state conflict.
func (r *Repository) TransitionStatus(
	ctx context.Context,
	pollID uuid.UUID,
	from []models.PollStatus,
	to models.PollStatus,
	updates map[string]interface{},
) (*models.PredictionPoll, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to

	result := r.db.WithContext(ctx).
		Model(&models.PredictionPoll{}).
		Where("id = ? AND status IN ?", pollID, from).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		// Distinguish a missing poll from a lost race
		var poll models.PredictionPoll
		err := r.db.WithContext(ctx).Where("id = ?", pollID).First(&poll).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodePollNotFound, "poll not found")
		}
		if err != nil {
			return nil, err
		}
		if to == models.PollStatusResolved && poll.Status == models.PollStatusResolved {
			return nil, apperrors.New(apperrors.CodeAlreadyResolved, "poll has already been resolved")
		}
		return nil, apperrors.Newf(apperrors.CodeStateConflict,
			"cannot transition poll from %s to %s", poll.Status, to)
	}

	return r.GetPollByID(ctx, pollID)
}

// RecordParticipation inserts the participation row and applies the pool and
// participant counters in one guarded UPDATE. The status guard makes the
// increment a no-op (and the whole call a conflict) if the poll left OPEN
// between validation and write.
func (r *Repository) RecordParticipation(ctx context.Context, part *models.Participation) error {
	if err := r.db.WithContext(ctx).Create(part).Error; err != nil {
		if IsUniqueViolation(err) {
			return apperrors.New(apperrors.CodeAlreadyParticipating, "user already participated in this poll")
		}
		return err
	}

	poolColumn := "pool_a"
	if part.Option == models.PollOptionB {
		poolColumn = "pool_b"
	}

	result := r.db.WithContext(ctx).
		Model(&models.PredictionPoll{}).
		Where("id = ? AND status = ?", part.PollID, models.PollStatusOpen).
		Updates(map[string]interface{}{
			poolColumn:          gorm.Expr(poolColumn+" + ?", part.StakeAmount),
			"participant_count": gorm.Expr("participant_count + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodePollNotOpen, "poll is not open for participation")
	}

	return nil
}

// GetParticipations retrieves all participations for a poll
func (r *Repository) GetParticipations(ctx context.Context, pollID uuid.UUID) ([]models.Participation, error) {
	var parts []models.Participation
	err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("created_at ASC").
		Find(&parts).Error
	if err != nil {
		return nil, err
	}
	return parts, nil
}

// GetParticipation retrieves a single user's participation on a poll, or nil
func (r *Repository) GetParticipation(ctx context.Context, pollID uuid.UUID, userID uint) (*models.Participation, error) {
	var part models.Participation
	err := r.db.WithContext(ctx).
		Where("poll_id = ? AND user_id = ?", pollID, userID).
		First(&part).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// CountParticipations counts participation rows for a poll
func (r *Repository) CountParticipations(ctx context.Context, pollID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Participation{}).
		Where("poll_id = ?", pollID).
		Count(&count).Error
	return count, err
}

// CreateReport inserts a report row; a repeat report by the same user is an
// explicit duplicate error
func (r *Repository) CreateReport(ctx context.Context, report *models.PollReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		if IsUniqueViolation(err) {
			return apperrors.New(apperrors.CodeAlreadyReported, "user already reported this poll")
		}
		return err
	}
	return nil
}

// IncrementReportCount bumps the poll's report counter and returns the new
// value
func (r *Repository) IncrementReportCount(ctx context.Context, pollID uuid.UUID) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PredictionPoll{}).
		Where("id = ?", pollID).
		Update("report_count", gorm.Expr("report_count + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, apperrors.New(apperrors.CodePollNotFound, "poll not found")
	}

	poll, err := r.GetPollByID(ctx, pollID)
	if err != nil {
		return 0, err
	}
	return poll.ReportCount, nil
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeUserNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CountSquadPollsSince counts polls a squad opened since the given instant
func (r *Repository) CountSquadPollsSince(ctx context.Context, squadID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PredictionPoll{}).
		Where("squad_id = ? AND submitted_at >= ?", squadID, since).
		Count(&count).Error
	return count, err
}

// GetLatestSquadPoll returns the squad's most recently submitted poll, or nil
func (r *Repository) GetLatestSquadPoll(ctx context.Context, squadID string) (*models.PredictionPoll, error) {
	var poll models.PredictionPoll
	err := r.db.WithContext(ctx).
		Where("squad_id = ?", squadID).
		Order("submitted_at DESC").
		First(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &poll, nil
}

// LockExpiredPolls moves every open poll past its deadline to LOCKED. The
// status guard makes repeated sweeps harmless.
func (r *Repository) LockExpiredPolls(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PredictionPoll{}).
		Where("status = ? AND deadline_at < ?", models.PollStatusOpen, now).
		Update("status", models.PollStatusLocked)
	return result.RowsAffected, result.Error
}

// IsUniqueViolation reports whether err is a unique-constraint violation
// from postgres or sqlite.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// sqlite driver used in tests reports constraint failures by message
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
