package session

import (
	"time"

	"github.com/atelier-commerce/atelier/internal/token"
)

// State classifies the stored session at a point in time.
type State int

const (
	// StateAbsent means no credentials are stored (or they failed to parse)
	StateAbsent State = iota
	// StateMalformed means an access token is present but cannot be decoded
	StateMalformed
	// StateExpired means the token decoded but its exp claim has passed
	StateExpired
	// StateValid means the token decoded and has not expired
	StateValid
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateMalformed:
		return "malformed"
	case StateExpired:
		return "expired"
	case StateValid:
		return "valid"
	default:
		return "unknown"
	}
}

// Evaluate classifies stored credentials and, for a valid session, returns
// the decoded claims. It is the single authority on "is this session usable";
// both the session manager and the route guard consume it so their decisions
// cannot drift.
//
// Evaluate never touches the store: callers load first and apply side effects
// (clearing expired sessions) themselves.
func Evaluate(creds *Credentials, now time.Time) (*token.Claims, State) {
	if creds == nil || creds.AccessToken == "" {
		return nil, StateAbsent
	}

	claims, err := token.Decode(creds.AccessToken)
	if err != nil {
		return nil, StateMalformed
	}

	if claims.Expired(now) {
		return nil, StateExpired
	}

	return claims, StateValid
}
