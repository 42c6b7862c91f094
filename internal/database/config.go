package database

// Config holds the artifact database configuration. Both artifacts are libSQL
// databases: local "file:" URLs or remote libsql:// / https:// URLs.
type Config struct {
	GraphURL       string `koanf:"graph_url" validate:"required"`
	ModelURL       string `koanf:"model_url" validate:"required"`
	AuthToken      string `koanf:"auth_token"`
	MaxOpenConns   int    `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns   int    `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxIdleSec int    `koanf:"conn_max_idle_sec" validate:"gte=0"`
	ConnMaxLifeSec int    `koanf:"conn_max_life_sec" validate:"gte=0"`
}

// NewConfig returns the default local-file configuration.
func NewConfig() *Config {
	return &Config{
		GraphURL: "file:./graph.db",
		ModelURL: "file:./model.db",
	}
}
