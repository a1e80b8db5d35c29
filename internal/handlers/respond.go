package handlers

import (
	"log"
	"net/http"

	"squad-predictions/internal/apperrors"

	"github.com/gin-gonic/gin"
)

// respondError renders a business error as a structured payload with a
// stable error_code, or a bare 500 for infrastructure failures. Callers
// branch on error_code, not on transport status alone.
func respondError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsError(err)
	if !ok {
		log.Printf("internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":    false,
			"error_code": "internal_error",
			"message":    "internal server error",
		})
		return
	}

	payload := gin.H{
		"success":    false,
		"error_code": appErr.Code,
		"message":    appErr.Message,
	}
	if appErr.Reason != "" {
		payload["reason"] = appErr.Reason
	}

	c.JSON(statusForCode(appErr.Code), payload)
}

func statusForCode(code apperrors.Code) int {
	switch code {
	case apperrors.CodePollNotFound, apperrors.CodeUserNotFound:
		return http.StatusNotFound
	case apperrors.CodeStateConflict, apperrors.CodeAlreadyResolved,
		apperrors.CodeAlreadyParticipating, apperrors.CodeAlreadyReported,
		apperrors.CodeEditLocked:
		return http.StatusConflict
	case apperrors.CodeNotEligible, apperrors.CodeColdAccount, apperrors.CodeNotAdmin:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}
