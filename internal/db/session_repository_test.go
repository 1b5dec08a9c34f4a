package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chepyr/go-task-manager/internal/models"
)

func createSessionUser(t *testing.T, repo *UserRepository) int64 {
	t.Helper()
	ctx := context.Background()
	if err := repo.Create(ctx, &models.User{Username: "alice", PasswordHash: "hash"}); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	user, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("loading user: %v", err)
	}
	return user.ID
}

func TestSessionRepository_CreateGetDelete(t *testing.T) {
	dbx := setupTestDB(t)
	repo := NewSessionRepository(dbx)
	ctx := context.Background()
	userID := createSessionUser(t, NewUserRepository(dbx))

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	session := &models.Session{ID: "sess-1", UserID: userID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.UserID != userID || !got.ExpiresAt.Equal(now.Add(time.Hour)) || !got.CreatedAt.Equal(now) {
		t.Errorf("GetByID mismatch: %#v", got)
	}

	if err := repo.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, "sess-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, "sess-1"); err != nil {
		t.Errorf("deleting a missing session should succeed, got %v", err)
	}
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	dbx := setupTestDB(t)
	repo := NewSessionRepository(dbx)
	ctx := context.Background()
	userID := createSessionUser(t, NewUserRepository(dbx))

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	sessions := []*models.Session{
		{ID: "old", UserID: userID, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
		{ID: "edge", UserID: userID, CreatedAt: now.Add(-time.Hour), ExpiresAt: now},
		{ID: "live", UserID: userID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	}
	for _, s := range sessions {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create %s: %v", s.ID, err)
		}
	}

	if err := repo.DeleteExpired(ctx, now); err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}

	for _, id := range []string{"old", "edge"} {
		if _, err := repo.GetByID(ctx, id); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("session %s: expected ErrSessionNotFound, got %v", id, err)
		}
	}
	if _, err := repo.GetByID(ctx, "live"); err != nil {
		t.Errorf("live session removed: %v", err)
	}
}
