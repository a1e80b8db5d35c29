package handlers

import (
	"net/http"

	"squad-predictions/internal/auth"
	"squad-predictions/internal/models"
	"squad-predictions/internal/repository"
	"squad-predictions/internal/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	repo       *repository.Repository
	polls      *services.PollService
	moderation *services.ModerationService
}

func NewAdminHandler(
	repo *repository.Repository,
	polls *services.PollService,
	moderation *services.ModerationService,
) *AdminHandler {
	return &AdminHandler{
		repo:       repo,
		polls:      polls,
		moderation: moderation,
	}
}

// AdminMiddleware rejects callers who are not admins
func (h *AdminHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := auth.GetUserID(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		user, err := h.repo.GetUserByID(c.Request.Context(), userID)
		if err != nil || !user.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"success":    false,
				"error_code": "not_admin",
				"message":    "admin access required",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// ModeratePoll runs one moderation command against a poll
// POST /api/admin/polls/:id/moderate
func (h *AdminHandler) ModeratePoll(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	pollID, ok := parsePollID(c)
	if !ok {
		return
	}

	var req models.ModeratePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error_code": "invalid_request", "message": err.Error()})
		return
	}

	result, err := h.moderation.Moderate(c.Request.Context(), userID, pollID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"next_status":    result.NextStatus,
		"updated_fields": result.UpdatedFields,
	})
}

// UpdatePoll edits a poll's editable fields
// PATCH /api/admin/polls/:id
func (h *AdminHandler) UpdatePoll(c *gin.Context) {
	pollID, ok := parsePollID(c)
	if !ok {
		return
	}

	var req models.AdminUpdatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error_code": "invalid_request", "message": err.Error()})
		return
	}

	poll, updated, err := h.polls.AdminUpdatePoll(c.Request.Context(), pollID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"data":           poll,
		"updated_fields": updated,
	})
}

// DeletePoll removes a poll, hard-deleting when nobody joined and
// soft-cancelling otherwise
// DELETE /api/admin/polls/:id
func (h *AdminHandler) DeletePoll(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	pollID, ok := parsePollID(c)
	if !ok {
		return
	}

	operation, err := h.polls.AdminDeletePoll(c.Request.Context(), userID, pollID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"operation": operation,
	})
}
