package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr string

	DBDriver string // sqlite | postgres | mysql
	DBDSN    string

	RosterBackend string // sql | redis | memory
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret            string
	JWTIssuer            string
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration

	AdminEmail    string
	AdminPassword string
	AdminEmails   []string // extra accounts allowed on the admin login

	MailDriver        string // emailjs | smtp | log
	EmailJSURL        string
	EmailJSServiceID  string
	EmailJSTemplateID string
	EmailJSPublicKey  string
	SMTPHost          string
	SMTPPort          string
	SMTPUser          string
	SMTPPassword      string
	SMTPFrom          string

	GatewayTimeout  time.Duration
	DispatchTimeout time.Duration

	DisplayTZ    string
	LogLevel     string
	CookieSecure bool
}

// Load reads .env (if present) and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr: getenv("ADDR", ":8080"),

		DBDriver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBDSN:    getenv("DB_DSN", "educlass.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"),

		RosterBackend: strings.ToLower(getenv("ROSTER_BACKEND", "sql")),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		JWTSecret:            getenv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:            getenv("JWT_ISSUER", "educlass-portal"),
		SessionTTL:           getenvDuration("SESSION_TTL", 7*24*time.Hour),
		SessionSweepInterval: getenvDuration("SESSION_SWEEP_INTERVAL", time.Minute),

		AdminEmail:    getenv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword: getenv("ADMIN_PASSWORD", "admin123"),
		AdminEmails:   getenvList("ADMIN_EMAILS"),

		MailDriver:        strings.ToLower(getenv("MAIL_DRIVER", "log")),
		EmailJSURL:        getenv("EMAILJS_URL", "https://api.emailjs.com/api/v1.0/email/send"),
		EmailJSServiceID:  getenv("EMAILJS_SERVICE_ID", ""),
		EmailJSTemplateID: getenv("EMAILJS_TEMPLATE_ID", ""),
		EmailJSPublicKey:  getenv("EMAILJS_PUBLIC_KEY", ""),
		SMTPHost:          getenv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:          getenv("SMTP_PORT", "587"),
		SMTPUser:          getenv("SMTP_USER", ""),
		SMTPPassword:      getenv("SMTP_PASSWORD", ""),
		SMTPFrom:          getenv("SMTP_FROM", ""),

		GatewayTimeout:  getenvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		DispatchTimeout: getenvDuration("DISPATCH_TIMEOUT", 10*time.Second),

		DisplayTZ:    getenv("DISPLAY_TZ", "UTC"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		CookieSecure: getenv("COOKIE_SECURE", "") == "1",
	}
}

// Location resolves DisplayTZ, falling back to UTC when tzdata is missing.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
