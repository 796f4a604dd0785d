package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Storage StorageConfig
	Kafka   KafkaConfig
	Socket  SocketConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Address           string
	Password          string
	DB                int
	RegistryPrefix    string        `mapstructure:"registry_prefix"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type StorageConfig struct {
	Driver          string // "s3" or "local"
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	PublicURL       string `mapstructure:"public_url"`
	LocalPath       string `mapstructure:"local_path"`
}

type KafkaConfig struct {
	Brokers string
	Topic   string
}

type SocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, rely on defaults and env vars.
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8085)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "social_media")
	v.SetDefault("mongo.connect_timeout", "10s")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.registry_prefix", "messaging:connections")
	v.SetDefault("redis.heartbeat_interval", "10s")
	v.SetDefault("redis.key_ttl", "30s")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "social-media")
	v.SetDefault("storage.local_path", "./data/uploads")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "message-events")
	v.SetDefault("socket.ping_interval", "30s")
	v.SetDefault("socket.pong_wait", "60s")
	v.SetDefault("socket.write_wait", "10s")
	v.SetDefault("socket.max_message_size", 4096)
	v.SetDefault("log.level", "info")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("mongo.uri", "MONGO_URI")
	v.BindEnv("mongo.database", "MONGO_DATABASE")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	v.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	v.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Mongo.ConnectTimeout = parseDuration(v, "mongo.connect_timeout", 10*time.Second)
	cfg.Redis.HeartbeatInterval = parseDuration(v, "redis.heartbeat_interval", 10*time.Second)
	cfg.Redis.KeyTTL = parseDuration(v, "redis.key_ttl", 30*time.Second)
	cfg.Socket.PingInterval = parseDuration(v, "socket.ping_interval", 30*time.Second)
	cfg.Socket.PongWait = parseDuration(v, "socket.pong_wait", 60*time.Second)
	cfg.Socket.WriteWait = parseDuration(v, "socket.write_wait", 10*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
