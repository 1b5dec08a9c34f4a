package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/models"
	"github.com/chepyr/go-task-manager/internal/session"
)

var testSecret = strings.Repeat("a", 32)

type MockUserRepository struct {
	users     map[string]*models.User
	nextID    int64
	createErr error
	getErr    error
	mutex     sync.Mutex
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*models.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.users[user.Username]; exists {
		return db.ErrUsernameExists
	}
	m.nextID++
	m.users[user.Username] = &models.User{ID: m.nextID, Username: user.Username, PasswordHash: user.PasswordHash}
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, db.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	user, exists := m.users[username]
	if !exists {
		return nil, db.ErrUserNotFound
	}
	return user, nil
}

func (m *MockUserRepository) count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.users)
}

func setupMockUser(username, password string) *MockUserRepository {
	repo := NewMockUserRepository()
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	repo.nextID++
	repo.users[username] = &models.User{ID: repo.nextID, Username: username, PasswordHash: string(hash)}
	return repo
}

type MockTaskRepository struct {
	tasks  map[int64]*models.Task
	nextID int64
	err    error
	mutex  sync.Mutex
}

func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{tasks: make(map[int64]*models.Task)}
}

func (m *MockTaskRepository) Create(ctx context.Context, task *models.Task) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.err != nil {
		return m.err
	}
	m.nextID++
	stored := *task
	stored.ID = m.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.tasks[stored.ID] = &stored
	return nil
}

func (m *MockTaskRepository) UpdateStatus(ctx context.Context, id int64, username string, status models.TaskStatus) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.err != nil {
		return m.err
	}
	task, ok := m.tasks[id]
	if !ok || task.Username != username {
		return db.ErrTaskNotFound
	}
	task.Status = status
	return nil
}

func (m *MockTaskRepository) Delete(ctx context.Context, id int64, username string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.err != nil {
		return m.err
	}
	task, ok := m.tasks[id]
	if !ok || task.Username != username {
		return db.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *MockTaskRepository) filter(keep func(*models.Task) bool) ([]*models.Task, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	var out []*models.Task
	for _, t := range m.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockTaskRepository) ListActive(ctx context.Context, username string) ([]*models.Task, error) {
	tasks, err := m.filter(func(t *models.Task) bool {
		return t.Username == username && t.Status != models.TaskStatusCompleted
	})
	// newest first
	for i, j := 0, len(tasks)-1; i < j; i, j = i+1, j-1 {
		tasks[i], tasks[j] = tasks[j], tasks[i]
	}
	return tasks, err
}

func (m *MockTaskRepository) ListByStatus(ctx context.Context, username string, status models.TaskStatus) ([]*models.Task, error) {
	return m.filter(func(t *models.Task) bool { return t.Username == username && t.Status == status })
}

func (m *MockTaskRepository) ListByUsername(ctx context.Context, username string) ([]*models.Task, error) {
	return m.filter(func(t *models.Task) bool { return t.Username == username })
}

func (m *MockTaskRepository) CountByStatus(ctx context.Context, username string) (models.StatusCounts, error) {
	var counts models.StatusCounts
	tasks, err := m.ListByUsername(ctx, username)
	if err != nil {
		return counts, err
	}
	for _, t := range tasks {
		switch t.Status {
		case models.TaskStatusPending:
			counts.Pending++
		case models.TaskStatusInProgress:
			counts.InProgress++
		case models.TaskStatusCompleted:
			counts.Completed++
		}
	}
	return counts, nil
}

type MockSessionRepository struct {
	sessions  map[string]models.Session
	deleteErr error
	mutex     sync.Mutex
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{sessions: make(map[string]models.Session)}
}

func (m *MockSessionRepository) Create(ctx context.Context, s *models.Session) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, db.ErrSessionNotFound
	}
	return &s, nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for id, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *MockSessionRepository) count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.sessions)
}

func newTestHandler(t *testing.T, users db.UserRepositoryInterface, tasks db.TaskRepositoryInterface) *Handler {
	t.Helper()
	return newTestHandlerWithSessions(t, users, tasks, NewMockSessionRepository())
}

func newTestHandlerWithSessions(t *testing.T, users db.UserRepositoryInterface, tasks db.TaskRepositoryInterface, sessions db.SessionRepositoryInterface) *Handler {
	t.Helper()
	pages, err := LoadPages()
	if err != nil {
		t.Fatalf("LoadPages: %v", err)
	}
	return &Handler{
		UserRepo: users,
		TaskRepo: tasks,
		Sessions: session.NewManager(sessions, testSecret, time.Hour, false),
		Pages:    pages,
		Logger:   zap.NewNop(),
	}
}

// withUser mimics AuthMiddleware for handlers called directly.
func withUser(r *http.Request, user *models.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userContextKey, user))
}
