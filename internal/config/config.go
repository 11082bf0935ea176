package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	// IdleTimeout unregisters connections that sent nothing for this long.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	Secret      string        `mapstructure:"secret"`

	SendBuffer         int    `mapstructure:"send_buffer"`
	SlowConsumerPolicy string `mapstructure:"slow_consumer_policy"`

	Log        LogConfig    `mapstructure:"log"`
	Rooms      RoomsConfig  `mapstructure:"rooms"`
	Battle     BattleConfig `mapstructure:"battle"`
	Signal     SignalConfig `mapstructure:"signal"`
	Moderators []string     `mapstructure:"moderators"`
	ICE        ICEConfig    `mapstructure:"ice"`

	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RoomsConfig struct {
	MaxCapacity int            `mapstructure:"max_capacity"`
	Capacity    map[string]int `mapstructure:"capacity"`
}

type BattleConfig struct {
	VotingWindow  time.Duration `mapstructure:"voting_window"`
	RoundDuration time.Duration `mapstructure:"round_duration"`
	MaxRounds     int           `mapstructure:"max_rounds"`
}

type SignalConfig struct {
	// RateLimit is the number of relayed signals allowed per connection per second.
	RateLimit int `mapstructure:"rate_limit"`
}

type ICEConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	ResultTTL time.Duration `mapstructure:"result_ttl"`
}

type QueueConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("idle_timeout", "2m")
	v.SetDefault("secret", "")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("slow_consumer_policy", "drop_oldest")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("rooms.max_capacity", 500)
	v.SetDefault("rooms.capacity", map[string]int{
		"cypher":       12,
		"remix":        8,
		"beat-session": 6,
		"jam":          10,
		"workshop":     50,
		"battle":       100,
	})

	v.SetDefault("battle.voting_window", "30s")
	v.SetDefault("battle.round_duration", "60s")
	v.SetDefault("battle.max_rounds", 3)

	v.SetDefault("signal.rate_limit", 50)
	v.SetDefault("moderators", []string{})
	v.SetDefault("ice.urls", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.result_ttl", "24h")
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.concurrency", 4)
}

func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("CYPHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	if c.Battle.VotingWindow <= 0 {
		return fmt.Errorf("battle.voting_window must be positive")
	}
	if c.Signal.RateLimit <= 0 {
		return fmt.Errorf("signal.rate_limit must be positive")
	}
	if c.Mode == "release" && c.Secret == "" {
		return fmt.Errorf("secret must be set in release mode")
	}
	switch c.SlowConsumerPolicy {
	case "drop_oldest", "disconnect":
	default:
		return fmt.Errorf("unknown slow_consumer_policy %q", c.SlowConsumerPolicy)
	}
	return nil
}
