package config

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Queue    QueueConfig
	Tasks    TasksConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, production
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	AllowOrigins []string
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the PostgreSQL connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
	QRSecret      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	QRTokenTTL    time.Duration
	KioskKeys     []string
}

type QueueConfig struct {
	Store              string // postgres | memory
	MaxAttempts        int
	RetryInterval      time.Duration
	OperationTimeout   time.Duration
	AvgServiceMinutes  int
	DefaultActiveStaff int
	PresenceTTL        time.Duration
}

type TasksConfig struct {
	SweepSpec    string // cron spec with seconds
	CloseDaySpec string // empty disables the daily close
}

// Load reads .env (unless ENV_CHEK is set) and environment variables.
func Load() (*Config, error) {
	if os.Getenv("ENV_CHEK") == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(err, "config: failed to read .env")
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Environment: v.GetString("APP_ENV"),
		},
		Server: ServerConfig{
			Port:         v.GetInt("SERVER_PORT"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
			AllowOrigins: splitList(v.GetString("CORS_ALLOW_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Auth: AuthConfig{
			AccessSecret:  v.GetString("JWT_ACCESS_SECRET"),
			RefreshSecret: v.GetString("JWT_REFRESH_SECRET"),
			QRSecret:      v.GetString("QR_TOKEN_SECRET"),
			AccessTTL:     v.GetDuration("JWT_ACCESS_TTL"),
			RefreshTTL:    v.GetDuration("JWT_REFRESH_TTL"),
			QRTokenTTL:    v.GetDuration("QR_TOKEN_TTL"),
			KioskKeys:     splitList(v.GetString("KIOSK_API_KEYS")),
		},
		Queue: QueueConfig{
			Store:              strings.ToLower(v.GetString("QUEUE_STORE")),
			MaxAttempts:        v.GetInt("QUEUE_MAX_ATTEMPTS"),
			RetryInterval:      v.GetDuration("QUEUE_RETRY_INTERVAL"),
			OperationTimeout:   v.GetDuration("QUEUE_OPERATION_TIMEOUT"),
			AvgServiceMinutes:  v.GetInt("QUEUE_AVG_SERVICE_MINUTES"),
			DefaultActiveStaff: v.GetInt("QUEUE_DEFAULT_ACTIVE_STAFF"),
			PresenceTTL:        v.GetDuration("STAFF_PRESENCE_TTL"),
		},
		Tasks: TasksConfig{
			SweepSpec:    v.GetString("SWEEP_CRON"),
			CloseDaySpec: v.GetString("CLOSE_DAY_CRON"),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "waitline")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "10s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h")
	v.SetDefault("QR_TOKEN_TTL", "24h")
	v.SetDefault("QUEUE_STORE", "postgres")
	v.SetDefault("QUEUE_MAX_ATTEMPTS", 3)
	v.SetDefault("QUEUE_RETRY_INTERVAL", "20ms")
	v.SetDefault("QUEUE_OPERATION_TIMEOUT", "5s")
	v.SetDefault("QUEUE_AVG_SERVICE_MINUTES", 30)
	v.SetDefault("QUEUE_DEFAULT_ACTIVE_STAFF", 1)
	v.SetDefault("STAFF_PRESENCE_TTL", "2m")
	v.SetDefault("SWEEP_CRON", "0 * * * * *")
	v.SetDefault("CLOSE_DAY_CRON", "")
}

// Validate checks the settings required to serve HTTP traffic.
func (c *Config) Validate() error {
	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.Auth.QRSecret == "" {
		return errors.New("config: QR_TOKEN_SECRET is required")
	}
	switch c.Queue.Store {
	case "postgres", "memory":
	default:
		return errors.Errorf("config: unknown QUEUE_STORE %q", c.Queue.Store)
	}
	if c.Queue.MaxAttempts < 1 {
		return errors.New("config: QUEUE_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
