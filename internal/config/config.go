package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/billlzzz18/bl1nk-realtime/pkg/config"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Redis     RedisConfig
	Auth      AuthConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host       string
	Port       int
	CORSOrigin string `mapstructure:"cors_origin"`
	InstanceID string `mapstructure:"instance_id"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

// RedisConfig configures the optional cross-instance event bridge. The
// bridge only relays fan-out events between relay instances; presence and
// room state stay in-memory per instance.
type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	Channel  string
}

// AuthConfig configures optional identity-token verification. With an
// empty secret, identities announced on user:join are trusted as-is.
type AuthConfig struct {
	Secret string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.cors_origin", "http://localhost:3000")
	v.SetDefault("websocket.ping_interval", "25s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "relay:events")
	v.SetDefault("auth.secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.BindEnv("server.port", "WS_PORT")
	v.BindEnv("server.cors_origin", "CORS_ORIGIN")
	v.BindEnv("server.instance_id", "INSTANCE_ID")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.channel", "REDIS_CHANNEL")
	v.BindEnv("auth.secret", "AUTH_SECRET")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 25*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
