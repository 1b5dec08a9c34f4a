package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/chepyr/go-task-manager/internal/db"
)

// dummyHash keeps the response time for unknown usernames close to that of a
// wrong password.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

const invalidCredentials = "Invalid username and/or password"

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	h.render(w, r, http.StatusOK, "login", pageData{Title: "Log In"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r, h.TrustedProxies)
	if h.RateLimiter != nil && !h.RateLimiter.Allow(ip) {
		h.log(r).Warn("rate limit exceeded", zap.String("ip", ip))
		h.authFailure(w, r, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" {
		h.authFailure(w, r, "Must provide username", http.StatusForbidden)
		return
	}
	if password == "" {
		h.authFailure(w, r, "Must provide password", http.StatusForbidden)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	user, err := h.UserRepo.GetByUsername(ctx, username)
	if errors.Is(err, db.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		h.log(r).Info("login for unknown user", zap.String("username", username))
		h.authFailure(w, r, invalidCredentials, http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.serverError(w, r, "retrieving user", err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		h.log(r).Info("invalid password", zap.String("username", username))
		h.authFailure(w, r, invalidCredentials, http.StatusUnauthorized)
		return
	}

	if err := h.Sessions.Establish(ctx, w, user.ID); err != nil {
		h.serverError(w, r, "creating session", err)
		return
	}
	h.log(r).Info("user logged in", zap.String("username", username))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.Sessions.Clear(ctx, w, r); err != nil {
		h.serverError(w, r, "ending session", err)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
