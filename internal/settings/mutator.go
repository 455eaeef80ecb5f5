// Package settings serializes all admin-initiated configuration changes:
// the forced channel, the promo banner, and the admin roster.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inyogeshwar/YTMusicLabBot/internal/domain"
)

// Store is the persistence surface the mutator drives.
type Store interface {
	SetForcedChannel(ctx context.Context, channelRef string) error
	ClearForcedChannel(ctx context.Context) error
	SetPromo(ctx context.Context, fileID, caption string) error
	ClearPromo(ctx context.Context) error
	AddAdmin(ctx context.Context, userID int64) error
	RemoveAdmin(ctx context.Context, userID int64) error
}

// Mutator applies configuration changes one at a time. A single mutex
// guards all mutations so concurrent admin commands cannot interleave
// partial writes.
type Mutator struct {
	mu     sync.Mutex
	store  Store
	logger *logrus.Entry
}

// NewMutator wires a mutator to the store.
func NewMutator(store Store, logger *logrus.Entry) (*Mutator, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	return &Mutator{store: store, logger: logger}, nil
}

// SetForcedChannel normalizes and stores the forced channel reference.
// Setting the already current channel succeeds and is a no-op observable
// only in the log.
func (m *Mutator) SetForcedChannel(ctx context.Context, channelRef string) (string, error) {
	normalized, err := normalizeChannelRef(channelRef)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetForcedChannel(ctx, normalized); err != nil {
		return "", err
	}

	m.logger.WithField("channel", normalized).Info("forced channel updated")

	return normalized, nil
}

// ClearForcedChannel disables channel gating.
func (m *Mutator) ClearForcedChannel(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.ClearForcedChannel(ctx); err != nil {
		return err
	}

	m.logger.Info("forced channel cleared")

	return nil
}

// SetPromo replaces the promo banner. Both the image and the caption are
// required.
func (m *Mutator) SetPromo(ctx context.Context, fileID, caption string) error {
	if strings.TrimSpace(fileID) == "" || strings.TrimSpace(caption) == "" {
		return fmt.Errorf("%w: promo image and caption are required", domain.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetPromo(ctx, fileID, caption); err != nil {
		return err
	}

	m.logger.Info("promo banner updated")

	return nil
}

// ClearPromo removes the promo banner.
func (m *Mutator) ClearPromo(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.ClearPromo(ctx); err != nil {
		return err
	}

	m.logger.Info("promo banner cleared")

	return nil
}

// AddAdmin grants the secondary tier to userID.
func (m *Mutator) AddAdmin(ctx context.Context, userID int64) error {
	if userID == 0 {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.AddAdmin(ctx, userID); err != nil {
		return err
	}

	m.logger.WithField("user_id", userID).Info("secondary admin added")

	return nil
}

// RemoveAdmin revokes the secondary tier from userID.
func (m *Mutator) RemoveAdmin(ctx context.Context, userID int64) error {
	if userID == 0 {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.RemoveAdmin(ctx, userID); err != nil {
		return err
	}

	m.logger.WithField("user_id", userID).Info("secondary admin removed")

	return nil
}

// normalizeChannelRef trims the reference and ensures the leading "@" for
// bare channel usernames. Full t.me links are stored as given.
func normalizeChannelRef(channelRef string) (string, error) {
	trimmed := strings.TrimSpace(channelRef)
	if trimmed == "" {
		return "", fmt.Errorf("%w: channel reference is required", domain.ErrValidation)
	}

	if strings.HasPrefix(trimmed, "@") || strings.Contains(trimmed, "t.me/") {
		return trimmed, nil
	}

	return "@" + trimmed, nil
}
