package types

import "errors"

var (
	// ErrIndexFrozen is returned by Append once the generation phase has
	// handed the index over to the benchmark phase.
	ErrIndexFrozen = errors.New("sample index is frozen")

	// ErrUnknownOrgIDScheme is returned for an organization ID scheme
	// other than objectid, ulid or uuid.
	ErrUnknownOrgIDScheme = errors.New("unknown organization id scheme")
)
