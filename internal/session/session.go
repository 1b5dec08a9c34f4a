// Package session ties a browser to a user through a signed cookie whose
// token id names a server-side session row, and carries one-time flash
// notices between requests.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/models"
)

const (
	CookieName      = "task_session"
	FlashCookieName = "task_flash"
	issuer          = "task-manager"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
)

type Manager struct {
	store  db.SessionRepositoryInterface
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewManager(store db.SessionRepositoryInterface, secret string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// Establish records a new session for userID and sets its token as a
// browser-session cookie. Expired session rows are swept on the way.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, userID int64) error {
	now := m.now()
	if err := m.store.DeleteExpired(ctx, now); err != nil {
		return err
	}

	record := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	claims := jwt.RegisteredClaims{
		ID:        record.ID,
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("signing session token: %w", err)
	}
	if err := m.store.Create(ctx, record); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// UserID returns the user id of the session attached to r. The token must
// verify and its session row must still exist; ErrNoSession and
// ErrInvalidSession mean the caller is not logged in, any other error is a
// store failure.
func (m *Manager) UserID(ctx context.Context, r *http.Request) (int64, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return 0, ErrNoSession
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidSession)
	}

	record, err := m.store.GetByID(ctx, claims.ID)
	if errors.Is(err, db.ErrSessionNotFound) {
		return 0, fmt.Errorf("%w: session ended", ErrInvalidSession)
	}
	if err != nil {
		return 0, err
	}
	if record.UserID != userID || !m.now().Before(record.ExpiresAt) {
		return 0, fmt.Errorf("%w: session expired", ErrInvalidSession)
	}
	return userID, nil
}

// Clear ends the session attached to r, if any, and expires the cookie. The
// cookie is expired even when the store cannot be reached. Pending flashes
// are left for the next rendered page.
func (m *Manager) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
	})

	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	// an expired token still names the row to delete
	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(cookie.Value, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || claims.ID == "" {
		return nil
	}
	return m.store.Delete(ctx, claims.ID)
}

func (m *Manager) keyFunc(*jwt.Token) (any, error) {
	return m.secret, nil
}

// AddFlash queues messages for the next page rendered for this browser.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, messages ...string) {
	if len(messages) == 0 {
		return
	}
	pending := readFlashes(r)
	pending = append(pending, messages...)

	payload, err := json.Marshal(pending)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Flashes returns the pending messages and clears them.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []string {
	messages := readFlashes(r)
	if _, err := r.Cookie(FlashCookieName); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     FlashCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.secure,
		})
	}
	return messages
}

func readFlashes(r *http.Request) []string {
	cookie, err := r.Cookie(FlashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var messages []string
	if err := json.Unmarshal(payload, &messages); err != nil {
		return nil
	}
	return messages
}
