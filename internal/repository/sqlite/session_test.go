package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/matrimony-portal/internal/apperror"
	"github.com/sakif/matrimony-portal/internal/model"
)

// newTestDB returns a fresh in-memory database that is closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestSession(t *testing.T, db *DB, ttl time.Duration) *model.StoredSession {
	t.Helper()
	s := &model.StoredSession{ExpiresAt: time.Now().Add(ttl)}
	if err := db.Create(context.Background(), s); err != nil {
		t.Fatalf("failed to create test session: %v", err)
	}
	return s
}

// =========================================================================
// CREATE / GET
// =========================================================================

func TestCreate_AssignsID(t *testing.T) {
	db := newTestDB(t)
	s := createTestSession(t, db, time.Hour)

	if s.ID == "" {
		t.Fatal("Create() did not set ID")
	}
	if s.CreatedAt.IsZero() {
		t.Error("Create() did not set CreatedAt")
	}
}

func TestCreate_RequiresExpiry(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(context.Background(), &model.StoredSession{}); err == nil {
		t.Fatal("Create() with zero expiry should fail")
	}
}

func TestGet_RoundTripsCredentials(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := &model.StoredSession{
		UserID: "u1",
		Credentials: model.Credentials{
			Cookies: []model.Cookie{{Name: "token", Value: "abc"}},
			Token:   "bearer",
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := db.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", got.UserID)
	}
	if got.Credentials.Token != "bearer" {
		t.Errorf("Token = %q, want bearer", got.Credentials.Token)
	}
	if len(got.Credentials.Cookies) != 1 || got.Credentials.Cookies[0].Value != "abc" {
		t.Errorf("Cookies = %+v", got.Credentials.Cookies)
	}
	if got.ExpiresAt.Unix() != s.ExpiresAt.Unix() {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, s.ExpiresAt)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Get(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestGet_ExpiredIsNotFound(t *testing.T) {
	db := newTestDB(t)
	s := createTestSession(t, db, -time.Minute)

	_, err := db.Get(context.Background(), s.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// UPDATE / DELETE
// =========================================================================

func TestUpdateCredentials(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createTestSession(t, db, time.Hour)

	creds := model.Credentials{Token: "new"}
	if err := db.UpdateCredentials(ctx, s.ID, "u7", creds, time.Now().Add(2*time.Hour)); err != nil {
		t.Fatalf("UpdateCredentials() error = %v", err)
	}

	got, err := db.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u7" || got.Credentials.Token != "new" {
		t.Errorf("got %+v", got)
	}

	// Signing out clears both.
	if err := db.UpdateCredentials(ctx, s.ID, "", model.Credentials{}, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("UpdateCredentials() error = %v", err)
	}
	got, _ = db.Get(ctx, s.ID)
	if got.UserID != "" || !got.Credentials.Empty() {
		t.Errorf("after clear got %+v", got)
	}
}

func TestUpdateCredentials_Missing(t *testing.T) {
	db := newTestDB(t)
	err := db.UpdateCredentials(context.Background(), "nope", "", model.Credentials{}, time.Now().Add(time.Hour))
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("UpdateCredentials() error = %v, want ErrNotFound", err)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createTestSession(t, db, time.Hour)

	if err := db.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := db.Delete(ctx, s.ID); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, err := db.Get(ctx, s.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Get() after Delete error = %v", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createTestSession(t, db, -time.Hour)
	createTestSession(t, db, -time.Minute)
	live := createTestSession(t, db, time.Hour)

	n, err := db.DeleteExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteExpired() = %d, want 2", n)
	}
	if _, err := db.Get(ctx, live.ID); err != nil {
		t.Errorf("live session gone: %v", err)
	}
}
