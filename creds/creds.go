// Package creds owns the credential material for one running client: a
// bearer token pair under the token strategy, or a cached CSRF token under
// the cookie-session strategy. A deployment uses exactly one strategy,
// chosen at construction and fixed for the process lifetime.
package creds

import "github.com/pkg/errors"

// Strategy selects how requests are authenticated.
type Strategy string

const (
	// StrategyToken attaches an Authorization: Bearer header from a stored
	// access/refresh token pair.
	StrategyToken Strategy = "token"

	// StrategyCookie relies on browser-managed session cookies plus a CSRF
	// token header on unsafe requests.
	StrategyCookie Strategy = "cookie"
)

// ParseStrategy converts a configuration string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyToken, StrategyCookie:
		return Strategy(s), nil
	}
	return "", errors.Errorf("[ParseStrategy] unknown credential strategy %q", s)
}

// Storage keys for the persisted token pair. The names are part of the
// deployed contract: the web host stores the same keys.
const (
	AccessTokenKey  = "access"
	RefreshTokenKey = "refresh"
)
