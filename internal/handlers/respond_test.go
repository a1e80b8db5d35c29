package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"squad-predictions/internal/apperrors"

	"github.com/gin-gonic/gin"
)

func performError(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()

	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/polls", nil)

	respondError(c, err)
	return recorder
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		code apperrors.Code
		want int
	}{
		{apperrors.CodePollNotFound, http.StatusNotFound},
		{apperrors.CodeUserNotFound, http.StatusNotFound},
		{apperrors.CodeStateConflict, http.StatusConflict},
		{apperrors.CodeAlreadyResolved, http.StatusConflict},
		{apperrors.CodeAlreadyParticipating, http.StatusConflict},
		{apperrors.CodeAlreadyReported, http.StatusConflict},
		{apperrors.CodeEditLocked, http.StatusConflict},
		{apperrors.CodeNotEligible, http.StatusForbidden},
		{apperrors.CodeColdAccount, http.StatusForbidden},
		{apperrors.CodeNotAdmin, http.StatusForbidden},
		{apperrors.CodeInvalidRequest, http.StatusBadRequest},
		{apperrors.CodeStakeOutOfBounds, http.StatusBadRequest},
		{apperrors.CodeInsufficientBalance, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			recorder := performError(t, apperrors.New(tc.code, "test"))
			if recorder.Code != tc.want {
				t.Errorf("expected status %d for %s, got %d", tc.want, tc.code, recorder.Code)
			}

			var body map[string]interface{}
			if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json body: %v", err)
			}
			if body["error_code"] != string(tc.code) {
				t.Errorf("expected error_code %s, got %v", tc.code, body["error_code"])
			}
			if body["success"] != false {
				t.Errorf("expected success false, got %v", body["success"])
			}
		})
	}
}

func TestRespondErrorCarriesEligibilityReason(t *testing.T) {
	recorder := performError(t, apperrors.NotEligible("need_captain", "user may not create a poll"))

	var body map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if body["reason"] != "need_captain" {
		t.Errorf("expected reason need_captain, got %v", body["reason"])
	}
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	recorder := performError(t, errors.New("pq: connection refused"))

	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", recorder.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if body["error_code"] != "internal_error" {
		t.Errorf("expected internal_error, got %v", body["error_code"])
	}
	if body["message"] == "pq: connection refused" {
		t.Error("driver errors must not leak to clients")
	}
}
