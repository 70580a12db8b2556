package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMongo    = "mongo"
	StoreBackendMemory   = "memory"

	StorageBackendMinio  = "minio"
	StorageBackendGCS    = "gcs"
	StorageBackendMemory = "memory"

	MQBackendRabbitMQ = "rabbitmq"
	MQBackendPubSub   = "pubsub"
	MQBackendMemory   = "memory"
)

type Config struct {
	Env        string          `yaml:"env"`
	ServerPort int             `yaml:"server_port"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool            `yaml:"trust_proxy"`
	Store      StoreConfig     `yaml:"store"`
	Database   DatabaseConfig  `yaml:"database"`
	Mongo      MongoConfig     `yaml:"mongo"`
	Auth       AuthConfig      `yaml:"auth"`
	AI         AIConfig        `yaml:"ai"`
	Redis      RedisConfig     `yaml:"redis"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	Storage    StorageConfig   `yaml:"storage"`
	MQ         MQConfig        `yaml:"mq"`
	Log        LogConfig       `yaml:"log"`
}

type StoreConfig struct {
	// Backend selects the persistence layer: postgres, mongo or memory.
	Backend        string        `yaml:"backend"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MigrationsPath string `yaml:"migrations_path"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	CookieName   string        `yaml:"cookie_name"`
	CookieSecure bool          `yaml:"cookie_secure"`
}

type AIConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type RedisConfig struct {
	// URL enables server-side session revocation when set.
	URL string `yaml:"url"`
}

type RateLimitConfig struct {
	LoginPerMinute int `yaml:"login_per_minute"`
	LoginBurst     int `yaml:"login_burst"`
	AIPerMinute    int `yaml:"ai_per_minute"`
	AIBurst        int `yaml:"ai_burst"`
}

type StorageConfig struct {
	// Backend is minio, gcs, memory, or empty to disable note exports.
	Backend string      `yaml:"backend"`
	Minio   MinioConfig `yaml:"minio"`
	GCS     GCSConfig   `yaml:"gcs"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

type MQConfig struct {
	// Backend is rabbitmq, pubsub, memory, or empty to disable note events.
	// The memory broker only reaches subscribers in the same process, so the
	// server runs the tagger itself when it is selected.
	Backend       string         `yaml:"backend"`
	EventsChannel string         `yaml:"events_channel"`
	RabbitMQ      RabbitMQConfig `yaml:"rabbitmq"`
	PubSub        PubSubConfig   `yaml:"pubsub"`
}

type RabbitMQConfig struct {
	URL             string `yaml:"url"`
	PrefetchCount   int    `yaml:"prefetch_count"`
	QueueDurable    bool   `yaml:"queue_durable"`
	QueueAutoDelete bool   `yaml:"queue_auto_delete"`
}

type PubSubConfig struct {
	ProjectID          string `yaml:"project_id"`
	CredentialsFile    string `yaml:"credentials_file"`
	SubscriptionSuffix string `yaml:"subscription_suffix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the configuration used when neither a file nor the
// environment provides a value.
func Defaults() Config {
	return Config{
		Env:        "prod",
		ServerPort: 8080,
		Store: StoreConfig{
			Backend:        StoreBackendPostgres,
			ConnectTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MigrationsPath: "internal/db/migrations",
		},
		Mongo: MongoConfig{
			Database: "notekeep",
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			CookieName: "notekeep_session",
		},
		AI: AIConfig{
			Model:   "gemini-2.5-flash",
			Timeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: 10,
			LoginBurst:     5,
			AIPerMinute:    20,
			AIBurst:        5,
		},
		MQ: MQConfig{
			EventsChannel: "notes.events",
			RabbitMQ: RabbitMQConfig{
				PrefetchCount: 10,
				QueueDurable:  true,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads configuration from the environment only.
func LoadConfig() Config {
	cfg, _ := Load("")
	return cfg
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
func Load(path string) (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	cfg := Defaults()
	if path == "" {
		path = os.Getenv("NOTEKEEP_CONFIG")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Defaults(), err
		}
	}

	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.ServerPort = getEnvInt("SERVER_PORT", cfg.ServerPort)
	cfg.TrustProxy = getEnvBool("TRUST_PROXY", cfg.TrustProxy)

	cfg.Store.Backend = strings.ToLower(getEnv("STORE_BACKEND", cfg.Store.Backend))
	cfg.Store.ConnectTimeout = getEnvDuration("STORE_CONNECT_TIMEOUT", cfg.Store.ConnectTimeout)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MigrationsPath = getEnv("MIGRATIONS_PATH", cfg.Database.MigrationsPath)
	cfg.Mongo.URI = getEnv("MONGODB_URI", cfg.Mongo.URI)
	cfg.Mongo.Database = getEnv("MONGODB_DATABASE", cfg.Mongo.Database)

	cfg.Auth.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", cfg.Auth.JWTSecret))
	cfg.Auth.TokenTTL = getEnvDuration("TOKEN_TTL", cfg.Auth.TokenTTL)
	cfg.Auth.CookieName = getEnv("SESSION_COOKIE_NAME", cfg.Auth.CookieName)
	cfg.Auth.CookieSecure = getEnvBool("SESSION_COOKIE_SECURE", cfg.Auth.CookieSecure)

	cfg.AI.APIKey = strings.TrimSpace(getEnv("GEMINI_API_KEY", cfg.AI.APIKey))
	cfg.AI.Model = getEnv("GEMINI_MODEL", cfg.AI.Model)
	cfg.AI.Timeout = getEnvDuration("AI_TIMEOUT", cfg.AI.Timeout)

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)

	cfg.RateLimit.LoginPerMinute = getEnvInt("RATE_LIMIT_LOGIN_PER_MINUTE", cfg.RateLimit.LoginPerMinute)
	cfg.RateLimit.LoginBurst = getEnvInt("RATE_LIMIT_LOGIN_BURST", cfg.RateLimit.LoginBurst)
	cfg.RateLimit.AIPerMinute = getEnvInt("RATE_LIMIT_AI_PER_MINUTE", cfg.RateLimit.AIPerMinute)
	cfg.RateLimit.AIBurst = getEnvInt("RATE_LIMIT_AI_BURST", cfg.RateLimit.AIBurst)

	cfg.Storage.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", cfg.Storage.Backend))
	cfg.Storage.Minio.Endpoint = getEnv("MINIO_ENDPOINT", cfg.Storage.Minio.Endpoint)
	cfg.Storage.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", cfg.Storage.Minio.AccessKey)
	cfg.Storage.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", cfg.Storage.Minio.SecretKey)
	cfg.Storage.Minio.Bucket = getEnv("MINIO_BUCKET", cfg.Storage.Minio.Bucket)
	cfg.Storage.Minio.UseSSL = getEnvBool("MINIO_USE_SSL", cfg.Storage.Minio.UseSSL)
	cfg.Storage.GCS.Bucket = getEnv("GCS_BUCKET", cfg.Storage.GCS.Bucket)
	cfg.Storage.GCS.ProjectID = getEnv("GCS_PROJECT_ID", cfg.Storage.GCS.ProjectID)
	cfg.Storage.GCS.CredentialsFile = getEnv("GCS_CREDENTIALS_FILE", cfg.Storage.GCS.CredentialsFile)

	cfg.MQ.Backend = strings.ToLower(getEnv("MQ_BACKEND", cfg.MQ.Backend))
	cfg.MQ.EventsChannel = getEnv("MQ_EVENTS_CHANNEL", cfg.MQ.EventsChannel)
	cfg.MQ.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.MQ.RabbitMQ.URL)
	cfg.MQ.RabbitMQ.PrefetchCount = getEnvInt("RABBITMQ_PREFETCH", cfg.MQ.RabbitMQ.PrefetchCount)
	cfg.MQ.PubSub.ProjectID = getEnv("PUBSUB_PROJECT_ID", cfg.MQ.PubSub.ProjectID)
	cfg.MQ.PubSub.CredentialsFile = getEnv("PUBSUB_CREDENTIALS_FILE", cfg.MQ.PubSub.CredentialsFile)
	cfg.MQ.PubSub.SubscriptionSuffix = getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", cfg.MQ.PubSub.SubscriptionSuffix)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	return cfg, nil
}

// Validate reports every setting the API server cannot start without.
func (c Config) Validate() error {
	errs := c.storeErrors()
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	errs = append(errs, c.aiErrors()...)
	errs = append(errs, c.storageErrors()...)
	errs = append(errs, c.mqErrors()...)
	return errors.Join(errs...)
}

// ValidateWorker reports every setting the tagging worker cannot start
// without. The worker never touches tokens or exports.
func (c Config) ValidateWorker() error {
	errs := c.storeErrors()
	errs = append(errs, c.aiErrors()...)
	switch c.MQ.Backend {
	case "":
		errs = append(errs, errors.New("MQ_BACKEND is required"))
	case MQBackendMemory:
		errs = append(errs, errors.New("the memory broker is served by the API server, not a separate worker"))
	default:
		errs = append(errs, c.mqErrors()...)
	}
	if strings.TrimSpace(c.MQ.EventsChannel) == "" {
		errs = append(errs, errors.New("MQ_EVENTS_CHANNEL is required"))
	}
	return errors.Join(errs...)
}

func (c Config) storeErrors() []error {
	var errs []error
	switch c.Store.Backend {
	case StoreBackendPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required"))
		}
	case StoreBackendMongo:
		if strings.TrimSpace(c.Mongo.URI) == "" {
			errs = append(errs, errors.New("MONGODB_URI is required"))
		}
		if strings.TrimSpace(c.Mongo.Database) == "" {
			errs = append(errs, errors.New("MONGODB_DATABASE is required"))
		}
	case StoreBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	return errs
}

func (c Config) aiErrors() []error {
	if c.AI.APIKey == "" {
		return []error{errors.New("GEMINI_API_KEY is required")}
	}
	return nil
}

func (c Config) storageErrors() []error {
	switch c.Storage.Backend {
	case "", StorageBackendMinio, StorageBackendGCS, StorageBackendMemory:
		return nil
	default:
		return []error{fmt.Errorf("unknown storage backend %q", c.Storage.Backend)}
	}
}

func (c Config) mqErrors() []error {
	switch c.MQ.Backend {
	case "", MQBackendRabbitMQ, MQBackendPubSub, MQBackendMemory:
		return nil
	default:
		return []error{fmt.Errorf("unknown mq backend %q", c.MQ.Backend)}
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.Atoi(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}
