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

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr string
	Port       string
	GinMode    string
	AppEnv     string
	ClientURL  string
	SiteURL    string

	Store  StoreConfig
	Media  MediaConfig
	CMS    CMSConfig
	Ingest IngestConfig
	Mail   MailConfig
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Driver       string // "sqlite" or "mongodb"
	DatabasePath string
	MongoURI     string
	MongoDB      string
	QueryTimeout time.Duration
}

// MediaConfig configures where uploaded featured images end up.
type MediaConfig struct {
	Driver        string // "local" or "s3"
	UploadDir     string
	UploadURLPath string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3PublicURL   string
	S3Prefix      string
	AccessKeyID   string
	SecretKey     string
}

// CMSConfig holds the Contentful management credentials used by ingestion.
type CMSConfig struct {
	SpaceID       string
	Environment   string
	ManagementKey string
	ContentType   string
	AuthorEntryID string
	Locale        string
	BaseURL       string
}

// IngestConfig controls the scheduled news ingestion job.
type IngestConfig struct {
	Enabled    bool
	Schedule   string
	NewsAPIKey string
	NewsAPIURL string
	Query      string
	Language   string
	PageSize   int
	Timeout    time.Duration
	RetryCount int
}

// MailConfig holds SMTP settings for contact form emails.
type MailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
	Timeout    time.Duration
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 当前目录存在 .env 时会先加载它，已存在的环境变量优先。
func Load() AppConfig {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[CONFIG] failed to load .env: %v", err)
	}

	port := getEnv("PORT", "5000")

	listenAddr := getEnv("LISTEN_ADDR", "")
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	mongoURI := getEnv("MONGODB_URI", "")
	if mongoURI == "" {
		mongoURI = getEnv("MONGO_URI", "")
	}

	return AppConfig{
		ListenAddr: listenAddr,
		Port:       port,
		GinMode:    getEnv("GIN_MODE", "release"),
		AppEnv:     strings.ToLower(getEnv("APP_ENV", "production")),
		ClientURL:  getEnv("CLIENT_URL", ""),
		SiteURL:    getEnv("SITE_URL", "https://the-conclave-academy.netlify.app/blog"),
		Store: StoreConfig{
			Driver:       strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			DatabasePath: getEnv("DATABASE_PATH", "travelblog.db"),
			MongoURI:     mongoURI,
			MongoDB:      getEnv("MONGODB_DATABASE", "travel_blog"),
			QueryTimeout: getEnvDuration("STORE_QUERY_TIMEOUT", 10*time.Second),
		},
		Media: MediaConfig{
			Driver:        strings.ToLower(getEnv("MEDIA_DRIVER", "local")),
			UploadDir:     getEnv("UPLOAD_DIR", "web/static/uploads"),
			UploadURLPath: getEnv("UPLOAD_URL_PATH", "/static/uploads"),
			S3Bucket:      getEnv("S3_BUCKET", ""),
			S3Region:      getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:    getEnv("S3_ENDPOINT", ""),
			S3PublicURL:   getEnv("S3_PUBLIC_URL", ""),
			S3Prefix:      getEnv("S3_PREFIX", "blog-featured-images"),
			AccessKeyID:   getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		CMS: CMSConfig{
			SpaceID:       getEnv("CONTENTFUL_SPACE_ID", ""),
			Environment:   getEnv("CONTENTFUL_ENVIRONMENT", "master"),
			ManagementKey: getEnv("CMA_ACCESS_TOKEN", ""),
			ContentType:   getEnv("CONTENTFUL_CONTENT_TYPE", "theConclaveBlog"),
			AuthorEntryID: getEnv("CONTENTFUL_AUTHOR_ID", "4WOacPkmp1DHGgDf1ToJGw"),
			Locale:        getEnv("CONTENTFUL_LOCALE", "en-US"),
			BaseURL:       getEnv("CONTENTFUL_API_URL", "https://api.contentful.com"),
		},
		Ingest: IngestConfig{
			Enabled:    getEnvBool("INGEST_ENABLED", true),
			Schedule:   getEnv("INGEST_SCHEDULE", "0 */6 * * *"),
			NewsAPIKey: getEnv("NEWS_API_KEY", ""),
			NewsAPIURL: getEnv("NEWS_API_URL", "https://newsapi.org/v2/everything"),
			Query:      getEnv("INGEST_QUERY", "travel AND tourism destination tips"),
			Language:   getEnv("INGEST_LANGUAGE", "en"),
			PageSize:   getEnvInt("INGEST_PAGE_SIZE", 5),
			Timeout:    getEnvDuration("INGEST_TIMEOUT", 30*time.Second),
			RetryCount: getEnvInt("INGEST_RETRY_COUNT", 3),
		},
		Mail: MailConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvInt("SMTP_PORT", 587),
			Username:   getEnv("SMTP_USERNAME", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			From:       getEnv("MAIL_FROM", ""),
			AdminEmail: getEnv("ADMIN_EMAIL", ""),
			Timeout:    getEnvDuration("MAIL_TIMEOUT", 20*time.Second),
		},
	}
}

// IsDevelopment reports whether internal error details may be exposed to clients.
func (c AppConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[CONFIG] invalid integer for %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("[CONFIG] invalid boolean for %s=%q, using %t", key, raw, fallback)
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("[CONFIG] invalid duration for %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return value
}
