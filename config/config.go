// Ininicializing common application configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	App       AppConfig       `mapstructure:"app"`
	Replicate ReplicateConfig `mapstructure:"replicate"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Poll      PollConfig      `mapstructure:"poll"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Rabbit    RabbitConfig    `mapstructure:"rabbit"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
}

type ServerConfig struct {
	AppVersion   string        `mapstructure:"app_version"`
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Idle_timeout time.Duration `mapstructure:"idle_timeout"`
	Env          string        `mapstructure:"environment"`
	Mode         string        `mapstructure:"mode"`
}

type AppConfig struct {
	Name        string        `mapstructure:"name"`
	Version     string        `mapstructure:"version"`
	BaseURL     string        `mapstructure:"base_url"`
	WebhookHost string        `mapstructure:"webhook_host"`
	VercelURL   string        `mapstructure:"vercel_url"`
	NgrokHost   string        `mapstructure:"ngrok_host"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	Templates   string        `mapstructure:"templates"`
}

type ReplicateConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIToken string        `mapstructure:"api_token"`
	Version  string        `mapstructure:"version"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type UploadConfig struct {
	// "uploadio" or "local"
	Backend   string        `mapstructure:"backend"`
	BaseURL   string        `mapstructure:"base_url"`
	AccountID string        `mapstructure:"account_id"`
	APIKey    string        `mapstructure:"api_key"`
	LocalDir  string        `mapstructure:"local_dir"`
	MaxBytes  int64         `mapstructure:"max_bytes"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// Настройки пула соединений
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type RabbitConfig struct {
	URL          string        `mapstructure:"url"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	QueueName    string        `mapstructure:"queue_name"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

func LoadConfig() (*viper.Viper, error) {

	viperInstance := viper.New()

	viperInstance.AddConfigPath("./config")
	viperInstance.SetConfigName("config")
	viperInstance.SetConfigType("yaml")

	setDefaults(viperInstance)
	bindEnv(viperInstance)

	err := viperInstance.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {

	var c Config

	err := v.Unmarshal(&c)
	if err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &c, nil
}

// WebhookHost resolves the public host Replicate calls back to:
// VERCEL_URL wins, then NGROK_HOST, then app.webhook_host.
func (c *Config) WebhookHost() string {
	if c.App.VercelURL != "" {
		return "https://" + c.App.VercelURL
	}
	if c.App.NgrokHost != "" {
		return strings.TrimRight(c.App.NgrokHost, "/")
	}
	return strings.TrimRight(c.App.WebhookHost, "/")
}

// UserAgent is sent with every outbound API call.
func (c *Config) UserAgent() string {
	return c.App.Name + "/" + c.App.Version
}

func (c *Config) GetServerAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.app_version", "1.0.0")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("app.name", "scribble-diffusion")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.webhook_host", "http://localhost:8080")
	v.SetDefault("app.cache_ttl", 24*time.Hour)
	v.SetDefault("app.templates", "internal/web/templates/*.html")

	v.SetDefault("replicate.base_url", "https://api.replicate.com/v1")
	v.SetDefault("replicate.version", "d55b9f2dcfb156089686b8f767776d5b61b007187a4e1e611881818098100fbb")
	v.SetDefault("replicate.timeout", 30*time.Second)

	v.SetDefault("upload.backend", "uploadio")
	v.SetDefault("upload.base_url", "https://api.upload.io/v2")
	v.SetDefault("upload.account_id", "FW25b4F")
	v.SetDefault("upload.api_key", "public_FW25b4FAzSgqxpyPhtmMePN3hSFg")
	v.SetDefault("upload.local_dir", "./storage")
	v.SetDefault("upload.max_bytes", 10<<20)
	v.SetDefault("upload.timeout", 30*time.Second)

	v.SetDefault("poll.interval", 500*time.Millisecond)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "scribble")
	v.SetDefault("database.dbname", "scribble")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.pool_timeout", 4*time.Second)

	v.SetDefault("kafka.topic", "prediction-events")
	v.SetDefault("kafka.group_id", "scribble-archiver")

	v.SetDefault("rabbit.port", 5672)
	v.SetDefault("rabbit.queue_name", "prediction_reconcile")
	v.SetDefault("rabbit.initial_delay", 2*time.Second)
	v.SetDefault("rabbit.max_delay", time.Minute)
	v.SetDefault("rabbit.max_attempts", 30)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("replicate.api_token", "REPLICATE_API_TOKEN")
	_ = v.BindEnv("app.vercel_url", "VERCEL_URL")
	_ = v.BindEnv("app.ngrok_host", "NGROK_HOST")
	_ = v.BindEnv("upload.account_id", "UPLOAD_IO_ACCOUNT_ID")
	_ = v.BindEnv("upload.api_key", "UPLOAD_IO_PUBLIC_API_KEY")
	_ = v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
