package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/models"
	"github.com/chepyr/go-task-manager/internal/session"
)

type contextKey string

const userContextKey contextKey = "current_user"

/*
Resolve the session cookie to a user and put it into the request context.
Requests without a valid session are redirected to the login page.
*/
func (h *Handler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := h.authenticate(w, r)
		if !ok {
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	}
}

// authenticate writes the redirect or error response itself when it reports false.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	userID, err := h.Sessions.UserID(ctx, r)
	if errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrInvalidSession) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return nil, false
	}
	if err != nil {
		h.serverError(w, r, "loading session", err)
		return nil, false
	}

	user, err := h.UserRepo.GetByID(ctx, userID)
	if errors.Is(err, db.ErrUserNotFound) {
		h.endSession(w, r)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return nil, false
	}
	if err != nil {
		h.serverError(w, r, "loading session user", err)
		return nil, false
	}
	return user, true
}

// endSession forgets the caller's session. A store failure is logged; the
// cookie is expired regardless.
func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.Sessions.Clear(ctx, w, r); err != nil {
		h.log(r).Error("ending session", zap.Error(err))
	}
}

// currentUser returns the user stored by AuthMiddleware.
func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey).(*models.User)
	return user
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.log(r).Error(msg, zap.Error(err))
	h.apology(w, r, "Something went wrong, please try again", http.StatusInternalServerError)
}
