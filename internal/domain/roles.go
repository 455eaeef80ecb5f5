// Package domain defines shared domain constants, entities, and errors.
package domain

// Tier is the privilege level resolved for an actor on each request.
type Tier string

const (
	// TierPrimary is the single, statically configured, non-removable
	// highest-privilege actor.
	TierPrimary Tier = "primary"
	// TierSecondary is an actor granted admin privileges by the primary
	// admin, revocable at any time.
	TierSecondary Tier = "secondary"
	// TierNone is a standard user with no elevated privileges.
	TierNone Tier = "none"
)

// IsAdmin reports whether the tier carries admin privileges.
func (t Tier) IsAdmin() bool {
	return t == TierPrimary || t == TierSecondary
}
