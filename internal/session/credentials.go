package session

// User is the denormalized profile returned at login. It is cached alongside
// the tokens rather than re-derived from the access token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Credentials is the persisted session record: the token pair plus the cached
// user profile. It is always written as a whole; partial updates must
// read-merge-write so sibling fields are never lost.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
	Timestamp    string `json:"timestamp"` // RFC3339 instant of last write, informational
}
