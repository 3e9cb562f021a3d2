package client

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Session backends accepted by SCHOLARIS_SESSION_STORE.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config configures the command-line client.
type Config struct {
	APIURL       string        `envconfig:"SCHOLARIS_API_URL" default:"http://localhost:8080"`
	SessionStore string        `envconfig:"SCHOLARIS_SESSION_STORE" default:"file"`
	SessionFile  string        `envconfig:"SCHOLARIS_SESSION_FILE"`
	RedisAddr    string        `envconfig:"SCHOLARIS_SESSION_REDIS" default:"127.0.0.1:6379"`
	RedisKey     string        `envconfig:"SCHOLARIS_SESSION_KEY" default:"scholaris:auth"`
	SessionTTL   time.Duration `envconfig:"SCHOLARIS_SESSION_TTL" default:"24h"`
	Timeout      time.Duration `envconfig:"SCHOLARIS_HTTP_TIMEOUT" default:"15s"`
	// QueueRedisAddr enables the jobs subcommands when set.
	QueueRedisAddr string `envconfig:"SCHOLARIS_QUEUE_REDIS"`
}

// LoadConfig reads client configuration from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	switch cfg.SessionStore {
	case StoreFile, StoreRedis, StoreMemory:
	default:
		return nil, fmt.Errorf("client: unknown session store %q", cfg.SessionStore)
	}
	if cfg.SessionStore == StoreFile && cfg.SessionFile == "" {
		path, err := DefaultSessionPath()
		if err != nil {
			return nil, err
		}
		cfg.SessionFile = path
	}
	return &cfg, nil
}
