package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	MinIO    MinIOConfig
	AI       AIConfig
	Chat     ChatConfig
	Presence PresenceConfig
}

var (
	ConfigInstance *Config
	once           sync.Once
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

type JWTConfig struct {
	Secret         string
	ExpirationTime time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type AIConfig struct {
	BaseURL      string
	Model        string
	PollInterval time.Duration
}

type ChatConfig struct {
	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration
}

type PresenceConfig struct {
	SweepInterval time.Duration
	OnlineWindow  time.Duration
}

func LoadConfig() (*Config, error) {
	once.Do(func() {
		// .env is optional, real env vars win either way.
		_ = godotenv.Load()

		viper.SetDefault("PORTAL_PORT", "8080")
		viper.SetDefault("PORTAL_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("PORTAL_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("PORTAL_IDLE_TIMEOUT", 60*time.Second)
		viper.SetDefault("PORTAL_JWT_SECRET", "secret")
		viper.SetDefault("PORTAL_JWT_EXPIRE", "24h")
		viper.SetDefault("POSTGRES_USER", "postgres")
		viper.SetDefault("POSTGRES_PASSWORD", "password")
		viper.SetDefault("POSTGRES_HOST", "localhost")
		viper.SetDefault("POSTGRES_PORT", "5432")
		viper.SetDefault("POSTGRES_DB", "portal")
		viper.SetDefault("POSTGRES_SSLMODE", "disable")
		viper.SetDefault("REDIS_ADDR", "localhost:6379")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("REDIS_MAX_RETRIES", 3)
		viper.SetDefault("REDIS_POOL_SIZE", 100)
		viper.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
		viper.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
		viper.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
		viper.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
		viper.SetDefault("MINIO_ENDPOINT", "localhost:9000")
		viper.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
		viper.SetDefault("MINIO_SECRET_KEY", "minioadmin")
		viper.SetDefault("MINIO_BUCKET", "portal-files")
		viper.SetDefault("MINIO_USE_SSL", false)
		viper.SetDefault("AI_BASE_URL", "http://localhost:11434")
		viper.SetDefault("AI_MODEL", "llama3.2")
		viper.SetDefault("AI_QUEUE_POLL_INTERVAL", 500*time.Millisecond)
		viper.SetDefault("CHAT_HANDSHAKE_TIMEOUT", 10*time.Second)
		viper.SetDefault("CHAT_HEARTBEAT_INTERVAL", 30*time.Second)
		viper.SetDefault("PRESENCE_SWEEP_INTERVAL", 10*time.Second)
		viper.SetDefault("PRESENCE_ONLINE_WINDOW", 60*time.Second)
		viper.AutomaticEnv()

		ConfigInstance = &Config{
			Server: ServerConfig{
				Host:         viper.GetString("PORTAL_HOST"),
				Port:         viper.GetString("PORTAL_PORT"),
				ReadTimeout:  viper.GetDuration("PORTAL_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("PORTAL_WRITE_TIMEOUT"),
				IdleTimeout:  viper.GetDuration("PORTAL_IDLE_TIMEOUT"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("POSTGRES_HOST"),
				Port:     viper.GetString("POSTGRES_PORT"),
				User:     viper.GetString("POSTGRES_USER"),
				Password: viper.GetString("POSTGRES_PASSWORD"),
				DBName:   viper.GetString("POSTGRES_DB"),
				SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
			},
			Redis: RedisConfig{
				Addr:         viper.GetString("REDIS_ADDR"),
				Password:     viper.GetString("REDIS_PASSWORD"),
				DB:           viper.GetInt("REDIS_DB"),
				MaxRetries:   viper.GetInt("REDIS_MAX_RETRIES"),
				DialTimeout:  viper.GetDuration("REDIS_DIAL_TIMEOUT"),
				ReadTimeout:  viper.GetDuration("REDIS_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("REDIS_WRITE_TIMEOUT"),
				PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
				MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
			},
			JWT: JWTConfig{
				Secret:         viper.GetString("PORTAL_JWT_SECRET"),
				ExpirationTime: viper.GetDuration("PORTAL_JWT_EXPIRE"),
			},
			MinIO: MinIOConfig{
				Endpoint:  viper.GetString("MINIO_ENDPOINT"),
				AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
				SecretKey: viper.GetString("MINIO_SECRET_KEY"),
				Bucket:    viper.GetString("MINIO_BUCKET"),
				UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			},
			AI: AIConfig{
				BaseURL:      viper.GetString("AI_BASE_URL"),
				Model:        viper.GetString("AI_MODEL"),
				PollInterval: viper.GetDuration("AI_QUEUE_POLL_INTERVAL"),
			},
			Chat: ChatConfig{
				HandshakeTimeout:  viper.GetDuration("CHAT_HANDSHAKE_TIMEOUT"),
				HeartbeatInterval: viper.GetDuration("CHAT_HEARTBEAT_INTERVAL"),
			},
			Presence: PresenceConfig{
				SweepInterval: viper.GetDuration("PRESENCE_SWEEP_INTERVAL"),
				OnlineWindow:  viper.GetDuration("PRESENCE_ONLINE_WINDOW"),
			},
		}
	})

	return ConfigInstance, nil
}
