package config

type Config interface {
	EnvConfig
	APIConfig
	StoreConfig
	EventsConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	API
	Store
	Events
}

func New() Config {
	return mainConfig{}
}
