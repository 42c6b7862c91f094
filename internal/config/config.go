// Package config loads FriendLink configuration in layers: built-in defaults,
// then an optional YAML file, then environment variables. The result is
// validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/ZanzyTHEbar/friendlink-go/internal/database"
	"github.com/ZanzyTHEbar/friendlink-go/internal/embedding"
	"github.com/ZanzyTHEbar/friendlink-go/internal/logging"
	"github.com/ZanzyTHEbar/friendlink-go/internal/metrics"
	"github.com/ZanzyTHEbar/friendlink-go/internal/recommend"
	"github.com/ZanzyTHEbar/friendlink-go/internal/walk"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"friendlink.yaml",
	"friendlink.yml",
}

const (
	// ConfigPathEnvVar overrides the config file path.
	ConfigPathEnvVar = "FRIENDLINK_CONFIG"
	// EnvPrefix is stripped from environment variables; "__" separates levels,
	// e.g. FRIENDLINK_WALK__NUM_WALKS -> walk.num_walks.
	EnvPrefix = "FRIENDLINK_"
)

// ServerConfig selects the MCP transport.
type ServerConfig struct {
	Transport string `koanf:"transport" validate:"oneof=stdio sse"`
	Addr      string `koanf:"addr" validate:"required_if=Transport sse"`
	Endpoint  string `koanf:"endpoint" validate:"required_if=Transport sse"`
}

// Config is the complete application configuration.
type Config struct {
	Database  database.Config   `koanf:"database"`
	Walk      walk.Config       `koanf:"walk"`
	Embedding embedding.Config  `koanf:"embedding"`
	Recommend recommend.Options `koanf:"recommend"`
	Server    ServerConfig      `koanf:"server"`
	Log       logging.Config    `koanf:"log"`
	Metrics   metrics.Config    `koanf:"metrics"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Database:  *database.NewConfig(),
		Walk:      walk.DefaultConfig(),
		Embedding: embedding.DefaultConfig(),
		Recommend: recommend.DefaultOptions(),
		Server: ServerConfig{
			Transport: "stdio",
			Addr:      ":8080",
			Endpoint:  "/sse",
		},
		Log: logging.Config{
			Level:       "info",
			Format:      "console",
			ServiceName: "friendlink",
			MaxSize:     100,
			MaxBackups:  3,
			MaxAge:      28,
		},
		Metrics: metrics.Config{Addr: ":9090"},
	}
}

// Load builds the configuration. path, when non-empty, must name an existing
// YAML file; otherwise FRIENDLINK_CONFIG and DefaultConfigPaths are tried.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional unless explicitly given)
	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, apptype.Configurationf("failed to load config file %s: %v", configPath, err)
		}
	}

	// Layer 3: environment variables
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, apptype.Configurationf("failed to unmarshal configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", apptype.Configurationf("config file %s: %v", explicit, err)
		}
		return explicit, nil
	}
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// envAliases maps unprefixed variables kept for compatibility with existing
// libSQL and metrics deployments.
var envAliases = map[string]string{
	"LIBSQL_URL":         "database.model_url",
	"LIBSQL_GRAPH_URL":   "database.graph_url",
	"LIBSQL_AUTH_TOKEN":  "database.auth_token",
	"METRICS_PROMETHEUS": "metrics.prometheus",
	"METRICS_ADDR":       "metrics.addr",
}

// envTransformFunc maps environment variable names to koanf paths. Unmapped
// variables return "" and are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envAliases[key]; ok {
		return mapped
	}
	if !strings.HasPrefix(key, EnvPrefix) || key == ConfigPathEnvVar {
		return ""
	}
	path := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(path, "__", ".")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct constraints and reports every violation, wrapped
// in ErrConfiguration.
func (c *Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apptype.Configurationf("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	return apptype.Configurationf("invalid configuration: %s", strings.Join(msgs, "; "))
}
