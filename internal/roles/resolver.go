// Package roles resolves a user's admin tier from the persisted roster.
package roles

import (
	"github.com/inyogeshwar/YTMusicLabBot/internal/domain"
)

// Resolver maps user ids to admin tiers. The primary admin identity is
// fixed at construction time and outranks whatever the roster says.
type Resolver struct {
	primaryID int64
}

// NewResolver returns a resolver bound to the given primary admin id.
func NewResolver(primaryID int64) Resolver {
	return Resolver{primaryID: primaryID}
}

// Resolve returns the tier of userID given the current roster. Resolution
// is pure; it performs no I/O and never mutates the roster.
func (r Resolver) Resolve(userID int64, roster []domain.AdminRole) domain.Tier {
	if userID == 0 {
		return domain.TierNone
	}
	if userID == r.primaryID {
		return domain.TierPrimary
	}

	for _, role := range roster {
		if role.UserID != userID {
			continue
		}
		if role.Tier == domain.TierSecondary {
			return domain.TierSecondary
		}
		// A primary roster row for a non-primary id is stale state;
		// the configured identity wins.
		return domain.TierNone
	}

	return domain.TierNone
}

// IsAdmin reports whether userID holds any admin tier.
func (r Resolver) IsAdmin(userID int64, roster []domain.AdminRole) bool {
	return r.Resolve(userID, roster).IsAdmin()
}

// IsPrimary reports whether userID is the primary admin.
func (r Resolver) IsPrimary(userID int64) bool {
	return userID != 0 && userID == r.primaryID
}
