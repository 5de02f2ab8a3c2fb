package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	GeocodeBase string
	GeocodeRPS  int

	BlobPath     string
	MediaBaseURL string

	JWTSecret     string
	AdminEmail    string
	AdminPassHash string

	Workers        int
	MaxUploadBytes int64
	CacheTTL       time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		MetricsAddr:    env("METRICS_ADDR", ":9100"),
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/truckee?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:      env("REDIS_ADDR", "localhost:6379"),
		RedisPass:      env("REDIS_PASSWORD", ""),
		RedisDB:        atoi("REDIS_DB", 0),
		GeocodeBase:    env("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocodeRPS:     atoi("GEOCODE_RPS", 1),
		BlobPath:       env("BLOB_PATH", "/data/blobs"),
		MediaBaseURL:   env("MEDIA_BASE_URL", "/media"),
		JWTSecret:      env("JWT_SECRET", ""),
		AdminEmail:     env("ADMIN_EMAIL", ""),
		AdminPassHash:  env("ADMIN_PASSWORD_HASH", ""),
		Workers:        atoi("IMPORT_WORKERS", 8),
		MaxUploadBytes: int64(atoi("MAX_UPLOAD_BYTES", 50<<20)),
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty; admin endpoints will reject all tokens")
	}
	if c.AdminPassHash == "" {
		log.Warn().Msg("ADMIN_PASSWORD_HASH is empty; moderation login disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
