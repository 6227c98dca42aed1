package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ServerAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBLogSQL   bool

	// Redis配置
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	SourceCacheTTL time.Duration // 解析结果缓存时间

	// MinIO配置
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioBucket        string
	MinioUseSSL        bool
	MinioRegion        string
	MinioPublicBaseURL string // 对外访问前缀，为空时使用 endpoint 拼接

	JWTSecret   string
	JWTTokenTTL time.Duration

	// 初始管理员账号，migrate 时创建
	AdminUsername string
	AdminEmail    string
	AdminPassword string

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// 播放器配置
	ProbeTimeout      time.Duration // 单个候选地址的探测超时
	MaxPlayerSessions int
	PlayerSessionTTL  time.Duration
	MaxPlayAttempts   int           // 一次播放最多尝试的候选地址数

	// 投稿去重
	DedupCapacity          int
	DedupFalsePositiveRate float64
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("15s", "2h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // 密码不提供默认值
		DBName:     getEnv("DB_NAME", "blog_music"),
		DBLogSQL:   getEnvBool("DB_LOG_SQL", false),

		RedisHost:      getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		SourceCacheTTL: getEnvDuration("SOURCE_CACHE_TTL", 6*time.Hour),

		MinioEndpoint:      getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:     getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:        getEnv("MINIO_BUCKET", "blog-music"),
		MinioUseSSL:        getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:        getEnv("MINIO_REGION", "us-east-1"),
		MinioPublicBaseURL: getEnv("MINIO_PUBLIC_BASE_URL", ""),

		JWTSecret:   getEnv("JWT_SECRET", "change-me"),
		JWTTokenTTL: getEnvDuration("JWT_TOKEN_TTL", 7*24*time.Hour),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@localhost"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),

		ProbeTimeout:      getEnvDuration("PLAYER_PROBE_TIMEOUT", 15*time.Second),
		MaxPlayerSessions: getEnvInt("PLAYER_MAX_SESSIONS", 1000),
		PlayerSessionTTL:  getEnvDuration("PLAYER_SESSION_TTL", 2*time.Hour),
		MaxPlayAttempts:   getEnvInt("PLAYER_MAX_ATTEMPTS", 8),

		DedupCapacity:          getEnvInt("DEDUP_CAPACITY", 10000),
		DedupFalsePositiveRate: getEnvFloat("DEDUP_FP_RATE", 0.001),
	}
}
