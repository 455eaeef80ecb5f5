// Package admin provides startup helpers for seeding the admin roster from
// configuration.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inyogeshwar/YTMusicLabBot/internal/domain"
	"github.com/inyogeshwar/YTMusicLabBot/internal/logging"
)

type adminStore interface {
	EnsureAdmin(ctx context.Context, userID int64, tier domain.Tier) error
	ListAdmins(ctx context.Context) ([]domain.AdminRole, error)
}

// Registrar bootstraps the configured admin roster.
type Registrar struct {
	store  adminStore
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided store.
func NewRegistrar(store adminStore, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		store:  store,
		logger: logger,
	}
}

// EnsureRoster upserts the primary admin and seeds the configured secondary
// admins. Secondaries added at runtime through /addadmin are left alone.
func (r *Registrar) EnsureRoster(ctx context.Context, primaryID int64, secondaryIDs []int64) error {
	if r == nil || r.store == nil {
		return errors.New("admin registrar is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if primaryID == 0 {
		return errors.New("primary admin id is required")
	}

	if err := r.store.EnsureAdmin(ctx, primaryID, domain.TierPrimary); err != nil {
		return fmt.Errorf("ensure primary admin: %w", err)
	}

	seeded := 0
	for _, id := range secondaryIDs {
		if id == 0 || id == primaryID {
			continue
		}
		if err := r.store.EnsureAdmin(ctx, id, domain.TierSecondary); err != nil {
			return fmt.Errorf("ensure secondary admin %d: %w", id, err)
		}
		seeded++
	}

	roster, err := r.store.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event":       "admin_bootstrap",
		"primary_id":  primaryID,
		"seeded":      seeded,
		"roster_size": len(roster),
	}).Info("ensured admin roster")

	return nil
}
