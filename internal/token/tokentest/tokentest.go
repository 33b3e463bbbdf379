// Package tokentest forges unsigned access tokens for tests. The decoder
// never verifies signatures, so a structurally valid token with an arbitrary
// signature segment is indistinguishable from a real one.
package tokentest

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Make builds a three-segment token with the given expiry and roles. A zero
// expiry omits the exp claim entirely.
func Make(exp time.Time, roles ...string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

	claims := map[string]any{
		"sub": "user-1",
		"realm_access": map[string]any{
			"roles": roles,
		},
	}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		panic(err) // static input, cannot fail
	}

	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".c2lnbmF0dXJl"
}
