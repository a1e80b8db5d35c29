package handlers

import (
	"net/http"
	"strconv"

	"squad-predictions/internal/auth"
	"squad-predictions/internal/models"
	"squad-predictions/internal/repository"
	"squad-predictions/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PollHandler struct {
	repo        *repository.Repository
	polls       *services.PollService
	ledger      *services.LedgerService
	moderation  *services.ModerationService
	eligibility *services.EligibilityService
}

func NewPollHandler(
	repo *repository.Repository,
	polls *services.PollService,
	ledger *services.LedgerService,
	moderation *services.ModerationService,
	eligibility *services.EligibilityService,
) *PollHandler {
	return &PollHandler{
		repo:        repo,
		polls:       polls,
		ledger:      ledger,
		moderation:  moderation,
		eligibility: eligibility,
	}
}

// GetEligibility returns the caller's poll-creation eligibility snapshot
// GET /api/eligibility
func (h *PollHandler) GetEligibility(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	snapshot := h.eligibility.Evaluate(c.Request.Context(), user)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    snapshot,
	})
}

// GetSquadQuota returns a squad's remaining monthly poll allowance
// GET /api/squads/:squadId/quota
func (h *PollHandler) GetSquadQuota(c *gin.Context) {
	squadID := c.Param("squadId")
	if squadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error_code": "invalid_request", "message": "squad id required"})
		return
	}

	quota, err := h.eligibility.GetSquadQuota(c.Request.Context(), squadID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    quota,
	})
}

// ListPolls returns polls matching the query filters
// GET /api/polls
func (h *PollHandler) ListPolls(c *gin.Context) {
	filter := models.PollFilter{
		SquadID: c.Query("squad_id"),
		Status:  models.PollStatus(c.Query("status")),
	}

	if l, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && l > 0 {
		filter.Limit = l
	}
	if o, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && o >= 0 {
		filter.Offset = o
	}

	polls, total, err := h.polls.ListPolls(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    polls,
		"total":   total,
	})
}

// GetPoll returns a single poll
// GET /api/polls/:id
func (h *PollHandler) GetPoll(c *gin.Context) {
	pollID, ok := parsePollID(c)
	if !ok {
		return
	}

	poll, err := h.polls.GetPoll(c.Request.Context(), pollID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    poll,
	})
}

// CreatePoll opens a new prediction for the caller's squad
// POST /api/polls
func (h *PollHandler) CreatePoll(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req models.CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error_code": "invalid_request", "message": err.Error()})
		return
	}

	poll, err := h.polls.CreatePoll(c.Request.Context(), user, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"poll_id":     poll.ID,
		"next_status": poll.Status,
	})
}

// Participate stakes on or votes for one outcome of an open poll
// POST /api/polls/:id/participate
func (h *PollHandler) Participate(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	pollID, ok := parsePollID(c)
	if !ok {
		return
	}

	var req models.ParticipateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error_code": "invalid_request", "message": err.Error()})
		return
	}

	part, err := h.ledger.Participate(c.Request.Context(), pollID, userID, req.Mode, req.Option, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    part,
	})
}

// Report flags a poll for moderator attention
// POST /api/polls/:id/report
func (h *PollHandler) Report(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	pollID, ok := parsePollID(c)
	if !ok {
		return
	}

	var req models.ReportPollRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error_code": "invalid_request", "message": err.Error()})
		return
	}

	result, err := h.moderation.Report(c.Request.Context(), pollID, userID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"report_count": result.ReportCount,
		"transitioned": result.Transitioned,
	})
}

func (h *PollHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}

	user, err := h.repo.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return user, true
}

func parsePollID(c *gin.Context) (uuid.UUID, bool) {
	pollID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error_code": "invalid_request", "message": "invalid poll id"})
		return uuid.Nil, false
	}
	return pollID, true
}
