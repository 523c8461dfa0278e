package identity

// RequestCredentials carries the non-session credentials found on a request.
// Values are secrets: never log them.
type RequestCredentials struct {
	// PersistentToken is the long-lived "remember me" token.
	PersistentToken string
	// Authorization is the raw Authorization header value.
	Authorization string
	// APIToken is a bare token from the alternate API token header.
	APIToken string
}

// RequestInput is everything the engine needs from a request.
type RequestInput struct {
	RequestID   string
	Candidates  []SessionCandidate
	Credentials RequestCredentials
}

// Credential is the value a tier extracted and will resolve. Exactly one
// variant is used per resolution.
type Credential interface {
	Kind() ResolvedVia
}

// SessionSnapshotCredential is a structured user record cached in the session.
type SessionSnapshotCredential struct {
	Snapshot map[string]any
}

// SessionUserIDCredential is a bare user id stored in the session.
type SessionUserIDCredential struct {
	UserID int64
}

// PersistentTokenCredential is a long-lived login token.
type PersistentTokenCredential struct {
	Raw string
}

// BearerTokenCredential is an opaque API token.
type BearerTokenCredential struct {
	Token string
}

func (SessionSnapshotCredential) Kind() ResolvedVia { return ViaSnapshot }
func (SessionUserIDCredential) Kind() ResolvedVia   { return ViaSessionLookup }
func (PersistentTokenCredential) Kind() ResolvedVia { return ViaPersistentToken }
func (BearerTokenCredential) Kind() ResolvedVia     { return ViaBearerToken }
