package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration required by the service.
type Config struct {
	ListenAddr string

	StoreBackend string // file, sqlite or postgres
	DataFile     string
	SQLitePath   string
	DBURL        string

	SessionsFile   string
	SessionTTL     time.Duration
	RequireSession bool
	CookieSecure   bool

	AuditLogFile string
	SkillsDir    string

	RateLimitPerMinute int
	RateLimitBackend   string // memory or redis
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	TrustedProxies     []string

	TranscribeCommand string
	TranscribeModel   string
	TranscribeTimeout time.Duration
	TranscribeRPS     float64
	TranscribeBurst   int
	MaxAudioBytes     int64

	WebhookAudioDir      string
	WebhookAudioPatterns []string
	WebhookFetchTimeout  time.Duration
	// WebhookFetchAllowPrivate lets audio_url reach loopback and private networks.
	WebhookFetchAllowPrivate bool
}

// DefaultAudioPatterns limits webhook audio_path to common audio containers.
const DefaultAudioPatterns = "**/*.{ogg,oga,mp3,wav,m4a,opus,webm}"

// Load reads configuration from environment variables. Unset variables take
// their defaults; malformed values are reported together.
func Load() (Config, error) {
	var errs []error
	e := env{errs: &errs}

	cfg := Config{
		ListenAddr: e.str("LISTEN_ADDR", "127.0.0.1:8000"),

		StoreBackend: strings.ToLower(e.str("STORE_BACKEND", "file")),
		DataFile:     e.str("DATA_FILE", "empleaidos.json"),
		SQLitePath:   e.str("SQLITE_PATH", "empleaidos.db"),
		DBURL:        e.str("DB_URL", ""),

		SessionsFile:   e.str("SESSIONS_FILE", "sessions.json"),
		SessionTTL:     e.duration("SESSION_TTL", time.Hour),
		RequireSession: e.boolean("REQUIRE_SESSION", false),
		CookieSecure:   e.boolean("COOKIE_SECURE", false),

		AuditLogFile: e.str("AUDIT_LOG_FILE", "audit.log"),
		SkillsDir:    e.str("SKILLS_DIR", defaultSkillsDir()),

		RateLimitPerMinute: e.integer("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitBackend:   strings.ToLower(e.str("RATE_LIMIT_BACKEND", "memory")),
		RedisAddr:          e.str("REDIS_ADDR", ""),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            e.integer("REDIS_DB", 0),
		TrustedProxies:     e.list("TRUSTED_PROXIES", ""),

		TranscribeCommand: e.str("TRANSCRIBE_COMMAND", "whisper"),
		TranscribeModel:   e.str("TRANSCRIBE_MODEL", "base"),
		TranscribeTimeout: e.duration("TRANSCRIBE_TIMEOUT", 5*time.Minute),
		TranscribeRPS:     e.float("TRANSCRIBE_RPS", 0.5),
		TranscribeBurst:   e.integer("TRANSCRIBE_BURST", 2),
		MaxAudioBytes:     int64(e.integer("MAX_AUDIO_BYTES", 25<<20)),

		WebhookAudioDir:      e.str("WEBHOOK_AUDIO_DIR", "audio-inbox"),
		WebhookAudioPatterns: e.list("WEBHOOK_AUDIO_PATTERNS", DefaultAudioPatterns),
		WebhookFetchTimeout:  e.duration("WEBHOOK_FETCH_TIMEOUT", 30*time.Second),

		WebhookFetchAllowPrivate: e.boolean("WEBHOOK_FETCH_ALLOW_PRIVATE", false),
	}

	switch cfg.StoreBackend {
	case "file", "sqlite":
	case "postgres":
		if cfg.DBURL == "" {
			errs = append(errs, errors.New("DB_URL required when STORE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be file, sqlite or postgres, got %q", cfg.StoreBackend))
	}

	switch cfg.RateLimitBackend {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR required when RATE_LIMIT_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", cfg.RateLimitBackend))
	}

	if cfg.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if cfg.RateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}
	if cfg.MaxAudioBytes <= 0 {
		errs = append(errs, errors.New("MAX_AUDIO_BYTES must be positive"))
	}
	if cfg.TranscribeBurst < 1 {
		errs = append(errs, errors.New("TRANSCRIBE_BURST must be at least 1"))
	}
	if len(cfg.WebhookAudioPatterns) == 0 {
		errs = append(errs, errors.New("WEBHOOK_AUDIO_PATTERNS must not be empty"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// defaultSkillsDir is where OpenClaw looks for locally authored skills.
func defaultSkillsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, "Dev", "openclaw-skills", "openclaw-skills", "skills", "nadalpiantini")
}

// env reads typed variables and collects parse errors instead of stopping at the first.
type env struct {
	errs *[]error
}

func (e env) str(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func (e env) integer(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s must be an integer, got %q", k, v))
		return def
	}
	return i
}

func (e env) float(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s must be a number, got %q", k, v))
		return def
	}
	return f
}

func (e env) boolean(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s must be a boolean, got %q", k, v))
		return def
	}
	return b
}

func (e env) duration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s must be a duration like 30s or 1h, got %q", k, v))
		return def
	}
	return d
}

// list splits a comma-separated value, dropping empty items.
func (e env) list(k, def string) []string {
	raw := e.str(k, def)
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
