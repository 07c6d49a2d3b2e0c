package config

import "os"

const (
	appNameVar = "APP_NAME"
	baseURLVar = "BASE_URL"
	localeVar  = "LOCALE"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Session Client")
}

// GetBaseURL returns the backend origin all request paths are resolved
// against (e.g. "https://api.example.com").
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8000")
}

// GetLocale returns the initial UI locale sent as Accept-Language.
func (EnvVars) GetLocale() string {
	return GetEnv(localeVar, "en")
}

// GetRequestTimeout returns the bound on any single network call, as a
// time.Duration string.
func (EnvVars) GetRequestTimeout() string {
	return GetEnv("REQUEST_TIMEOUT", "15s")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
