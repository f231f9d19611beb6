package config

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sessionkit/identity-service/pkg/helpers"
)

// Config holds application configuration loaded from environment variables.
// Session, cookie, CORS and Redis values are mandatory: serving requests with a
// partial cookie security policy is worse than not starting at all.
type Config struct {
	AppName string
	Env     string // development, staging, production
	Port    string
	GinMode string

	// Database
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBMaxConns    int32
	DBMinConns    int32
	DBMaxConnLife time.Duration

	// Redis (session store)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Cookies: transport-level signing secret applied to all outgoing cookies,
	// independent of the session cookie's own signature.
	CookiesSecret string

	// Session
	SessionSecret   string
	SessionName     string
	SessionDomain   string
	SessionMaxAge   time.Duration
	SessionHTTPOnly bool
	SessionSecure   bool
	SessionPrefix   string // namespaces session keys in the shared Redis

	// CORS
	AllowedOrigin string

	// Google Cloud Storage (avatars)
	GCSBucket              string
	GCSCredentialsJSONPath string // optional; if empty, Application Default Credentials are used

	// Elasticsearch
	ElasticsearchAddrs string // comma-separated
	ElasticsearchUser  string
	ElasticsearchPass  string
	ESUsersIndex       string

	// Migrations
	MigrationsDir string

	// HTTP access log toggle (Gin logger)
	HTTPLogEnabled bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid boolean for %s: %v, using default %v", key, err, def)
			return def
		}
		return b
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid int for %s: %v, using default %d", key, err, def)
			return def
		}
		return i
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using default %v", key, err, def)
			return def
		}
		return d
	}
	return def
}

// required tracks missing mandatory environment variables so Load can report
// all of them at once instead of failing one key at a time.
type required struct {
	missing []string
}

func (r *required) env(key string) string {
	v := os.Getenv(key)
	if v == "" {
		r.missing = append(r.missing, key)
	}
	return v
}

func (r *required) boolenv(key string) bool {
	v := r.env(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.missing = append(r.missing, key+" (not a boolean)")
		return false
	}
	return b
}

func (r *required) durenv(key string) time.Duration {
	v := r.env(key)
	if v == "" {
		return 0
	}
	d, err := helpers.ParseHumanDuration(v)
	if err != nil {
		r.missing = append(r.missing, key+" (not a duration)")
		return 0
	}
	return d
}

func (r *required) err() error {
	if len(r.missing) == 0 {
		return nil
	}
	sort.Strings(r.missing)
	return fmt.Errorf("missing required configuration: %s", strings.Join(r.missing, ", "))
}

// Load loads configuration from environment variables. It returns an error
// naming every missing mandatory key; the caller must treat that as fatal.
func Load() (*Config, error) {
	req := &required{}

	cfg := &Config{
		AppName: getenv("APP_NAME", "identity-service"),
		Env:     getenv("APP_ENV", "development"),
		Port:    req.env("APPLICATION_PORT"),
		GinMode: getenv("GIN_MODE", "release"),

		DBHost:        getenv("DB_HOST", "localhost"),
		DBPort:        getenv("DB_PORT", "5432"),
		DBUser:        getenv("DB_USER", "postgres"),
		DBPassword:    getenv("DB_PASSWORD", "postgres"),
		DBName:        getenv("DB_NAME", "identitydb"),
		DBSSLMode:     getenv("DB_SSLMODE", "disable"),
		DBMaxConns:    int32(getint("DB_MAX_CONNS", 10)),
		DBMinConns:    int32(getint("DB_MIN_CONNS", 2)),
		DBMaxConnLife: getdur("DB_MAX_CONN_LIFETIME", time.Hour),

		RedisHost:     req.env("REDIS_HOST"),
		RedisPort:     req.env("REDIS_PORT"),
		RedisPassword: req.env("REDIS_PASSWORD"),
		RedisDB:       getint("REDIS_DB", 0),

		CookiesSecret: req.env("COOKIES_SECRET"),

		SessionSecret:   req.env("SESSION_SECRET"),
		SessionName:     req.env("SESSION_NAME"),
		SessionDomain:   req.env("SESSION_DOMAIN"),
		SessionMaxAge:   req.durenv("SESSION_MAX_AGE"),
		SessionHTTPOnly: req.boolenv("SESSION_HTTP_ONLY"),
		SessionSecure:   req.boolenv("SESSION_SECURE"),
		SessionPrefix:   req.env("SESSION_FOLDER"),

		AllowedOrigin: req.env("ALLOWED_ORIGIN"),

		GCSBucket:              getenv("GCS_BUCKET", ""),
		GCSCredentialsJSONPath: getenv("GCS_CREDENTIALS_JSON", ""),

		ElasticsearchAddrs: getenv("ELASTICSEARCH_ADDRS", "http://localhost:9200"),
		ElasticsearchUser:  getenv("ELASTICSEARCH_USERNAME", ""),
		ElasticsearchPass:  getenv("ELASTICSEARCH_PASSWORD", ""),
		ESUsersIndex:       getenv("ES_USERS_INDEX", "users"),

		MigrationsDir: getenv("MIGRATIONS_DIR", "db/migrations"),

		HTTPLogEnabled: getbool("HTTP_LOG_ENABLED", false),
	}

	if err := req.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PostgresDSN returns a DSN compatible with pgx
func (c *Config) PostgresDSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

// RedisAddr returns the host:port address of the session store.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// SessionSameSite is fixed to Lax: the session cookie is withheld on cross-site
// subrequests but still sent on top-level navigation.
func (c *Config) SessionSameSite() http.SameSite {
	return http.SameSiteLaxMode
}

// ESAddrs returns Elasticsearch addresses as a slice
func (c *Config) ESAddrs() []string {
	parts := strings.Split(c.ElasticsearchAddrs, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
