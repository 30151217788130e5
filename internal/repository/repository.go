package repository

import (
	"context"
	"time"

	"github.com/sakif/matrimony-portal/internal/model"
)

// SessionRepository stores the server-side half of browser sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *model.StoredSession) error
	Get(ctx context.Context, id string) (*model.StoredSession, error)
	// UpdateCredentials replaces the stored upstream credentials and user.
	// Empty credentials with an empty userID mean "signed out".
	UpdateCredentials(ctx context.Context, id, userID string, creds model.Credentials, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
