package config

type Config interface {
	EnvConfig
	AuthConfig
}

type EnvConfig interface {
	GetAppName() string
	GetBaseURL() string
	GetLocale() string
	GetRequestTimeout() string
}

type AuthConfig interface {
	GetStrategy() string
	GetCSRFCookieName() string
}

type mainConfig struct {
	EnvVars
	Auth
}

func New() Config {
	return mainConfig{}
}
