package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chepyr/go-task-manager/internal/session"
)

func TestAuthMiddleware(t *testing.T) {
	users := setupMockUser("alice", "secret")
	h := newTestHandler(t, users, NewMockTaskRepository())

	var seen string
	next := func(w http.ResponseWriter, r *http.Request) {
		seen = currentUser(r).Username
		w.WriteHeader(http.StatusOK)
	}

	sessionCookie := func(userID int64) *http.Cookie {
		rr := httptest.NewRecorder()
		if err := h.Sessions.Establish(context.Background(), rr, userID); err != nil {
			t.Fatalf("Establish: %v", err)
		}
		return rr.Result().Cookies()[0]
	}
	endedCookie := func(userID int64) *http.Cookie {
		cookie := sessionCookie(userID)
		req := httptest.NewRequest(http.MethodGet, "/logout", nil)
		req.AddCookie(cookie)
		if err := h.Sessions.Clear(context.Background(), httptest.NewRecorder(), req); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		return cookie
	}

	tests := []struct {
		name           string
		cookie         *http.Cookie
		expectedStatus int
		expectedUser   string
	}{
		{
			name:           "No session",
			expectedStatus: http.StatusSeeOther,
		},
		{
			name:           "Tampered session",
			cookie:         &http.Cookie{Name: session.CookieName, Value: "not-a-token"},
			expectedStatus: http.StatusSeeOther,
		},
		{
			name:           "Session for deleted user",
			cookie:         sessionCookie(42),
			expectedStatus: http.StatusSeeOther,
		},
		{
			name:           "Session ended by logout",
			cookie:         endedCookie(users.users["alice"].ID),
			expectedStatus: http.StatusSeeOther,
		},
		{
			name:           "Valid session",
			cookie:         sessionCookie(users.users["alice"].ID),
			expectedStatus: http.StatusOK,
			expectedUser:   "alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rr := httptest.NewRecorder()

			h.AuthMiddleware(next)(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if tt.expectedStatus == http.StatusSeeOther {
				if loc := rr.Header().Get("Location"); loc != "/login" {
					t.Errorf("Expected redirect to /login, got %q", loc)
				}
			}
			if seen != tt.expectedUser {
				t.Errorf("Expected current user %q, got %q", tt.expectedUser, seen)
			}
		})
	}
}

func TestAuthMiddleware_StoreFailure(t *testing.T) {
	users := setupMockUser("alice", "secret")
	h := newTestHandler(t, users, NewMockTaskRepository())

	rr := httptest.NewRecorder()
	if err := h.Sessions.Establish(context.Background(), rr, users.users["alice"].ID); err != nil {
		t.Fatalf("Establish: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rr.Result().Cookies()[0])

	users.getErr = errors.New("connection reset")
	rr = httptest.NewRecorder()
	h.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler must not run")
	})(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}
