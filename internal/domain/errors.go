package domain

import "errors"

// Error taxonomy. All of these are recovered at the dispatcher boundary
// and converted to a user-visible reply; none propagate past a single
// event's handling.
var (
	// ErrUnauthorized is returned when an admin-only action is invoked by
	// a non-admin. No state is mutated.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyAdmin is returned by AddAdmin when the id is already in
	// the roster.
	ErrAlreadyAdmin = errors.New("user is already an admin")

	// ErrNotAnAdmin is returned by RemoveAdmin when the id is absent.
	ErrNotAnAdmin = errors.New("user is not an admin")

	// ErrPrimaryImmutable is returned when a roster mutation targets the
	// fixed primary admin identity.
	ErrPrimaryImmutable = errors.New("primary admin cannot be modified")

	// ErrMediaUnavailable is returned when the downloader cannot fetch
	// the requested media.
	ErrMediaUnavailable = errors.New("media unavailable")

	// ErrMediaTooLarge is returned when a fetched file exceeds the upload
	// size limit.
	ErrMediaTooLarge = errors.New("media exceeds size limit")

	// ErrLyricsNotFound is returned when the lyrics provider has no match.
	ErrLyricsNotFound = errors.New("lyrics not found")

	// ErrValidation is returned for malformed command arguments.
	ErrValidation = errors.New("invalid arguments")
)
