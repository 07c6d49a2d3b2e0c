package config

type Auth struct{}

var _ AuthConfig = Auth{}

// GetStrategy returns the credential strategy for this deployment, "token"
// or "cookie". The choice is fixed per deployment; the two strategies
// invalidate different parts of the credential store and must never be
// switched at run time.
func (Auth) GetStrategy() string {
	return GetEnv("AUTH_STRATEGY", "token")
}

// GetCSRFCookieName returns the cookie used as a fallback source for the
// CSRF token when the issuing endpoint omits it from the JSON body.
func (Auth) GetCSRFCookieName() string {
	return GetEnv("CSRF_COOKIE_NAME", "csrftoken")
}
