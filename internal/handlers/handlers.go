package handlers

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/session"
)

const defaultRequestTimeout = 5 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	UserRepo       db.UserRepositoryInterface
	TaskRepo       db.TaskRepositoryInterface
	Sessions       *session.Manager
	RateLimiter    *RateLimiter
	TrustedProxies []netip.Prefix
	Pages          *Pages
	DB             Pinger
	Logger         *zap.Logger
	RequestTimeout time.Duration
}

// Routes registers every route on a new mux and wraps it with request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// public
	mux.HandleFunc("GET /register", h.RegisterPage)
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("GET /logout", h.Logout)
	mux.HandleFunc("GET /healthz", h.Health)

	// login required
	mux.HandleFunc("GET /{$}", h.AuthMiddleware(h.Index))
	mux.HandleFunc("POST /{$}", h.AuthMiddleware(h.UpdateStatus))
	mux.HandleFunc("GET /add_new_task", h.AuthMiddleware(h.AddTaskPage))
	mux.HandleFunc("POST /add_new_task", h.AuthMiddleware(h.AddTask))
	mux.HandleFunc("GET /remove_task", h.AuthMiddleware(h.RemoveTaskPage))
	mux.HandleFunc("POST /remove_task", h.AuthMiddleware(h.RemoveTask))
	mux.HandleFunc("GET /pending_task", h.AuthMiddleware(h.PendingTasks))
	mux.HandleFunc("GET /completed_task", h.AuthMiddleware(h.CompletedTasks))
	mux.HandleFunc("GET /about", h.AuthMiddleware(h.About))

	return h.RequestLogger(mux)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			h.log(r).Error("health check failed", zap.Error(err))
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(r.Context(), timeout)
}
