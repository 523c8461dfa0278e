package identity

import "errors"

var (
	// ErrNoActiveSession means no candidate carried an identity and no
	// default session was created. Informational; resolution continues.
	ErrNoActiveSession = errors.New("no active session")

	// ErrIdentityUnresolved means every tier of the chain came up empty.
	ErrIdentityUnresolved = errors.New("identity unresolved")

	// ErrUnauthorized is returned by RequireAuthContext for anonymous callers.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAccountInactive means a tier found the user but the account is disabled.
	ErrAccountInactive = errors.New("account inactive")

	// ErrGrantSourceUnavailable wraps a failed grant source read. It is
	// logged and never returned from Aggregate.
	ErrGrantSourceUnavailable = errors.New("grant source unavailable")

	// ErrMissingUserID means aggregation was asked for an identity without a user id.
	ErrMissingUserID = errors.New("identity has no user id")
)
