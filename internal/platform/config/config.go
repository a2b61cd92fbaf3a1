package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	// Primary store: "mongo" or "memory"
	DBType string

	// MongoDB settings (when DBType = "mongo")
	MongoURI string
	MongoDB  string

	// Notification and viewed-product store: "mongo" or "dynamodb"
	NotificationStore string

	// AWS settings (DynamoDB and S3)
	AWSRegion          string
	DynamoDBEndpoint   string // Optional: for local development
	AWSAccessKeyID     string // Optional: for local development
	AWSSecretAccessKey string // Optional: for local development

	// Media uploads
	S3Bucket        string
	S3Endpoint      string
	S3PublicBaseURL string

	// Redis (cache, token revocation, OTP throttle). Empty disables it.
	RedisURL      string
	RedisPoolSize int
	CacheTTL      time.Duration

	// Search
	ElasticsearchURL      string
	ElasticsearchUsername string
	ElasticsearchPassword string
	ElasticsearchIndex    string

	// Event bus. Empty brokers means the in-process bus.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	// Auth
	JWTSecret        string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration

	// Mail
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	// Business settings
	OrderAutoConfirmAfter time.Duration
	ShippingFee           int64
	ReviewRewardPoints    int64

	// Timeouts
	HTTPReadTimeoutSec     int
	HTTPWriteTimeoutSec    int
	HTTPIdleTimeoutSec     int
	HTTPRequestTimeoutSec  int
	MongoConnectTimeoutSec int
	MongoOpTimeoutMs       int

	// Worker settings
	WorkerIntervalSec int

	// Security settings
	InternalAPIKey   string   // shared key for service-to-service routes
	AllowedOrigins   []string // CORS allowed origins
	RateLimitRPM     int      // global requests per minute per IP
	AuthRateLimitRPM int      // login/OTP requests per minute per IP
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	cfg := &Config{}

	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "dev")
	cfg.DBType = getEnv("DB_TYPE", "mongo")

	// MongoDB settings (check both MONGODB_URI and MONGO_URI for compatibility)
	cfg.MongoURI = getEnv("MONGODB_URI", getEnv("MONGO_URI", ""))
	cfg.MongoDB = getEnv("MONGO_DB", "uteshop")

	cfg.NotificationStore = getEnv("NOTIFICATION_STORE", "mongo")

	cfg.AWSRegion = getEnv("AWS_REGION", "ap-southeast-1")
	cfg.DynamoDBEndpoint = getEnv("DYNAMODB_ENDPOINT", "") // Empty means use AWS
	cfg.AWSAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AWSSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")

	cfg.S3Bucket = getEnv("S3_BUCKET", "")
	cfg.S3Endpoint = getEnv("S3_ENDPOINT", "")
	cfg.S3PublicBaseURL = getEnv("S3_PUBLIC_BASE_URL", "")

	cfg.RedisURL = getEnv("REDIS_URL", "")
	cfg.RedisPoolSize = getEnvAsInt("REDIS_POOL_SIZE", 10)
	cfg.CacheTTL = time.Duration(getEnvAsInt("CACHE_TTL_SEC", 60)) * time.Second

	cfg.ElasticsearchURL = getEnv("ELASTICSEARCH_URL", "")
	cfg.ElasticsearchUsername = getEnv("ELASTICSEARCH_USERNAME", "")
	cfg.ElasticsearchPassword = getEnv("ELASTICSEARCH_PASSWORD", "")
	cfg.ElasticsearchIndex = getEnv("ELASTICSEARCH_INDEX", "products")

	cfg.KafkaBrokers = getEnvAsSlice("KAFKA_BROKERS", nil)
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", "uteshop.events")
	cfg.KafkaGroup = getEnv("KAFKA_GROUP", "uteshop-api")

	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.JWTRefreshSecret = getEnv("JWT_REFRESH_SECRET", "")
	cfg.JWTAccessTTL = getEnvAsDuration("JWT_ACCESS_TTL", 24*time.Hour)
	cfg.JWTRefreshTTL = getEnvAsDuration("JWT_REFRESH_TTL", 7*24*time.Hour)

	cfg.SMTPHost = getEnv("SMTP_HOST", "")
	cfg.SMTPPort = getEnvAsInt("SMTP_PORT", 587)
	cfg.SMTPUsername = getEnv("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnv("SMTP_PASSWORD", "")
	cfg.MailFrom = getEnv("MAIL_FROM", "UTEShop <no-reply@uteshop.local>")

	cfg.OrderAutoConfirmAfter = time.Duration(getEnvAsInt("ORDER_AUTO_CONFIRM_AFTER_SEC", 60)) * time.Second
	cfg.ShippingFee = int64(getEnvAsInt("SHIPPING_FEE", 30000))
	cfg.ReviewRewardPoints = int64(getEnvAsInt("REVIEW_REWARD_POINTS", 100))

	cfg.HTTPReadTimeoutSec = getEnvAsInt("HTTP_READ_TIMEOUT_SEC", 10)
	cfg.HTTPWriteTimeoutSec = getEnvAsInt("HTTP_WRITE_TIMEOUT_SEC", 15)
	cfg.HTTPIdleTimeoutSec = getEnvAsInt("HTTP_IDLE_TIMEOUT_SEC", 120)
	cfg.HTTPRequestTimeoutSec = getEnvAsInt("HTTP_REQUEST_TIMEOUT_SEC", 30)
	cfg.MongoConnectTimeoutSec = getEnvAsInt("MONGO_CONNECT_TIMEOUT_SEC", 5)
	cfg.MongoOpTimeoutMs = getEnvAsInt("MONGO_OP_TIMEOUT_MS", 2000)
	cfg.WorkerIntervalSec = getEnvAsInt("WORKER_INTERVAL_SEC", 15)

	cfg.InternalAPIKey = getEnv("INTERNAL_API_KEY", "")
	cfg.AllowedOrigins = getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"})
	cfg.RateLimitRPM = getEnvAsInt("RATE_LIMIT_RPM", 300)
	cfg.AuthRateLimitRPM = getEnvAsInt("AUTH_RATE_LIMIT_RPM", 20)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Development defaults only
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-access-secret"
	}
	if cfg.JWTRefreshSecret == "" {
		cfg.JWTRefreshSecret = "dev-refresh-secret"
	}
	if cfg.InternalAPIKey == "" {
		cfg.InternalAPIKey = "dev-internal-key"
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	switch cfg.DBType {
	case "mongo":
		if cfg.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when DB_TYPE=mongo")
		}
	case "memory":
	default:
		return fmt.Errorf("DB_TYPE must be mongo or memory, got %q", cfg.DBType)
	}

	if cfg.NotificationStore != "mongo" && cfg.NotificationStore != "dynamodb" {
		return fmt.Errorf("NOTIFICATION_STORE must be mongo or dynamodb, got %q", cfg.NotificationStore)
	}
	if cfg.NotificationStore == "mongo" && cfg.DBType == "memory" {
		cfg.NotificationStore = "memory"
	}

	if cfg.IsProd() {
		if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
			return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET are required in production environment")
		}
		if cfg.JWTSecret == cfg.JWTRefreshSecret {
			return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
		}
		if cfg.InternalAPIKey == "" {
			return fmt.Errorf("INTERNAL_API_KEY is required in production environment")
		}
	}
	return nil
}

// IsProd reports whether the service runs with production settings.
func (cfg *Config) IsProd() bool {
	return cfg.Env == "prod" || cfg.Env == "production"
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if val, err := strconv.Atoi(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(key)
	if val, err := time.ParseDuration(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	// Split by comma and trim whitespace
	var result []string
	for _, s := range strings.Split(valStr, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	if len(result) == 0 {
		return defaultVal
	}
	return result
}
