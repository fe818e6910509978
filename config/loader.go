package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable the loader reads
const EnvPrefix = "RWROUTER_"

// envPaths maps environment variables (without EnvPrefix) to config paths
var envPaths = map[string]string{
	"DSN":                      "dsn",
	"LOG_LEVEL":                "log.level",
	"LOG_JSON":                 "log.json",
	"POOL_MAX_CONNECTIONS":     "pool.max_connections",
	"POOL_MIN_CONNECTIONS":     "pool.min_connections",
	"POOL_ACQUIRE_TIMEOUT":     "pool.acquire_timeout",
	"POOL_CONNECT_TIMEOUT":     "pool.connect_timeout",
	"POOL_PING_TIMEOUT":        "pool.ping_timeout",
	"POOL_MAX_CONN_LIFETIME":   "pool.max_conn_lifetime",
	"POOL_MAX_CONN_IDLE_TIME":  "pool.max_conn_idle_time",
	"POOL_HEALTH_CHECK_PERIOD": "pool.health_check_period",
}

// Load builds a Config from the defaults, the YAML file at path (skipped when path is empty) and the environment
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(yamlFile(path), nil); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// transformEnv maps a known environment variable to its config path; unknown variables are dropped
func transformEnv(key, value string) (string, any) {
	path, ok := envPaths[strings.TrimPrefix(key, EnvPrefix)]
	if !ok {
		return "", nil
	}
	return path, value
}

// yamlFile is a koanf.Provider reading a YAML document from disk
type yamlFile string

func (f yamlFile) ReadBytes() ([]byte, error) {
	return os.ReadFile(string(f))
}

func (f yamlFile) Read() (map[string]any, error) {
	b, err := f.ReadBytes()
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
