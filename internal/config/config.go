package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting. Values come from the environment with
// local-development fallbacks, optionally seeded from a .env file.
type Config struct {
	Port      string
	BaseURL   string
	JWTSecret string

	MongoURI string
	MongoDB  string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	LinkTTL       time.Duration
	SweepInterval time.Duration
	MaxUploadSize int
}

// Load reads configuration from the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := Config{
		Port:           getenv("PORT", "8080"),
		BaseURL:        getenv("BASE_URL", "http://localhost:8080"),
		JWTSecret:      getenv("JWT_SECRET", "change-me"),
		MongoURI:       getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:        getenv("MONGO_DB", "droplink"),
		MinioEndpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    getenv("MINIO_BUCKET", "droplink-files"),
		MinioUseSSL:    getenv("MINIO_USE_SSL", "false") == "true",
		LinkTTL:        getduration("LINK_TTL", 24*time.Hour),
		SweepInterval:  getduration("SWEEP_INTERVAL", 10*time.Minute),
		MaxUploadSize:  getint("MAX_UPLOAD_SIZE", 100*1024*1024),
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}
