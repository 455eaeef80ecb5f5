// Package user provides helpers for user registration and lifecycle updates.
package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inyogeshwar/YTMusicLabBot/internal/domain"
	"github.com/inyogeshwar/YTMusicLabBot/internal/logging"
)

type userStore interface {
	UpsertUser(ctx context.Context, user domain.User) (domain.User, error)
}

// Registrar ensures users are present in the database and keeps their
// last-active timestamp updated on every interaction.
type Registrar struct {
	store  userStore
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided store.
func NewRegistrar(store userStore, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		store:  store,
		logger: logger,
	}
}

// EnsureUser upserts the user record and reports whether it was created on
// this call. Registration runs for every update before role resolution, so
// it must never fail for a merely incomplete profile.
func (r *Registrar) EnsureUser(ctx context.Context, u domain.User) (bool, error) {
	if r == nil || r.store == nil {
		return false, errors.New("user registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if u.UserID == 0 {
		return false, errors.New("user id is required")
	}

	stored, err := r.store.UpsertUser(ctx, u)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}

	created := stored.FirstSeen.Equal(stored.LastActive)
	if created {
		r.logger.WithFields(logging.Fields{
			"event":   "user_registered",
			"user_id": u.UserID,
		}).Info("registered new user")
		return true, nil
	}

	r.logger.WithFields(logging.Fields{
		"event":   "user_seen",
		"user_id": u.UserID,
	}).Debug("updated user last active")

	return false, nil
}
