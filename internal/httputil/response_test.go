package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pollpick/internal/model"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"unauthenticated", model.ErrUnauthenticated, http.StatusUnauthorized, ErrCodeUnauthorized, "there is no user making the request"},
		{"invalid argument", model.ErrCannotFollowSelf, http.StatusBadRequest, ErrCodeBadRequest, "you cannot follow yourself"},
		{"permission", model.ErrUnverifiedAccount, http.StatusForbidden, ErrCodeForbidden, "verify your email or link Facebook before posting"},
		{"not found", model.ErrPollNotFound, http.StatusNotFound, ErrCodeNotFound, "poll not found"},
		{"duplicate", model.ErrAlreadyVoted, http.StatusConflict, ErrCodeConflict, "you already voted on this poll"},
		{"storage off", model.ErrStorageUnavailable, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "photo storage is not configured"},
		{"persistence", model.Persistence("vote poll", errors.New("pq: deadlock")), http.StatusInternalServerError, ErrCodeInternal, "Something went wrong"},
		{"wrapped domain", fmt.Errorf("outer: %w", model.ErrNotFollowing), http.StatusNotFound, ErrCodeNotFound, "you are not following this user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/functions/x", nil)

			WriteServiceError(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			detail := decodeError(t, rec)
			if detail.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", detail.Code, tt.wantCode)
			}
			if tt.wantMsg != "" && detail.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", detail.Message, tt.wantMsg)
			}
		})
	}
}

func TestWriteServiceError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)

	WriteServiceError(rec, req, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Error("internal error detail leaked to client")
	}
}

func TestWriteResult(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteResult(rec, true)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"result":true}` {
		t.Errorf("body = %s", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}

// =============================================================================
// DECODE + VALIDATE
// =============================================================================

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"pollId": 3, "vote": 0}`, ""},
		{"missing vote", `{"pollId": 3}`, "vote is required"},
		{"vote out of range", `{"pollId": 3, "vote": 5}`, "vote must be at most 2"},
		{"missing poll", `{"vote": 1}`, "pollId is required"},
		{"empty body", ``, "pollId is required"},
		{"malformed", `{"pollId":`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/functions/votePoll", strings.NewReader(tt.body))

			var dst model.VotePollRequest
			err := DecodeAndValidate(rec, req, &dst)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.Vote == nil || *dst.Vote != 0 {
					t.Errorf("vote = %v, want 0", dst.Vote)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Installation(t *testing.T) {
	req := model.RegisterInstallationRequest{
		InstallationID: "i",
		DeviceToken:    "t",
		DeviceType:     "windows",
	}
	err := Validate(&req)
	if err == nil || !strings.HasPrefix(err.Error(), "deviceType must be one of") {
		t.Errorf("error = %v", err)
	}
}
