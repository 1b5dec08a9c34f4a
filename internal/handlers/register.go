package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/models"
)

func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	h.render(w, r, http.StatusOK, "register", pageData{Title: "Register"})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r, h.TrustedProxies)
	if h.RateLimiter != nil && !h.RateLimiter.Allow(ip) {
		h.log(r).Warn("rate limit exceeded", zap.String("ip", ip))
		h.authFailure(w, r, "Too many register attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	confirmation := r.PostFormValue("confirmation")

	switch {
	case username == "":
		h.authFailure(w, r, "Must provide username", http.StatusBadRequest)
		return
	case password == "":
		h.authFailure(w, r, "Must provide password", http.StatusBadRequest)
		return
	case confirmation == "":
		h.authFailure(w, r, "Please confirm password", http.StatusBadRequest)
		return
	case password != confirmation:
		h.authFailure(w, r, "Passwords do not match", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	_, err := h.UserRepo.GetByUsername(ctx, username)
	if err == nil {
		h.authFailure(w, r, "Username already exists", http.StatusBadRequest)
		return
	}
	if !errors.Is(err, db.ErrUserNotFound) {
		h.serverError(w, r, "checking username", err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.serverError(w, r, "hashing password", err)
		return
	}

	err = h.UserRepo.Create(ctx, &models.User{Username: username, PasswordHash: string(hash)})
	if errors.Is(err, db.ErrUsernameExists) {
		// lost the race against a concurrent registration
		h.authFailure(w, r, "Username already exists", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.serverError(w, r, "saving user", err)
		return
	}

	user, err := h.UserRepo.GetByUsername(ctx, username)
	if err != nil {
		h.serverError(w, r, "reloading registered user", err)
		return
	}
	if err := h.Sessions.Establish(ctx, w, user.ID); err != nil {
		h.serverError(w, r, "creating session", err)
		return
	}

	h.log(r).Info("user registered", zap.String("username", username), zap.Int64("user_id", user.ID))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// authFailure forgets any session before rejecting a login or registration.
func (h *Handler) authFailure(w http.ResponseWriter, r *http.Request, message string, code int) {
	h.endSession(w, r)
	h.apology(w, r, message, code)
}
