package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/example/exam-timeline/internal/timeline"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "TIMELINE"

// Config captures the settings shared by the server and the editor.
type Config struct {
	HTTPPort    int
	SQLiteDSN   string
	OperatorKey string
	// CacheTTL is how long allocation listings are reused. Zero disables the cache.
	CacheTTL     time.Duration
	CacheEntries int
	// RateLimit is the sustained number of writes per second. Zero disables limiting.
	RateLimit   float64
	RateBurst   int
	APIBaseURL  string
	LogLevel    string
	LogFormat   string
	MoveStep    int
	ResizeStep  int
	MinDuration int
}

// SnapPolicy returns the editor grid described by the step settings.
func (c Config) SnapPolicy() timeline.SnapPolicy {
	return timeline.SnapPolicy{
		MoveStepMinutes:    c.MoveStep,
		ResizeStepMinutes:  c.ResizeStep,
		MinDurationMinutes: c.MinDuration,
	}
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTPPort)
}

func defaults() map[string]any {
	return map[string]any{
		"http_port":     8080,
		"sqlite_dsn":    "data/timeline.db",
		"operator_key":  "",
		"cache_ttl":     "30s",
		"cache_entries": 128,
		"rate_limit":    "5",
		"rate_burst":    10,
		"api_base_url":  "http://localhost:8080",
		"log_level":     "info",
		"log_format":    "json",
		"move_step":     5,
		"resize_step":   15,
		"min_duration":  15,
	}
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile reads the configuration from path, when non-empty, with
// environment variables taking precedence. Missing and invalid keys are
// reported together with localized messages.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				return Config{}, fmt.Errorf("設定ファイルが見つかりません: %s", path)
			}
			return Config{}, fmt.Errorf("設定ファイルを読み込めません: %s: %w", path, err)
		}
	}

	return decode(v)
}

type parser struct {
	v       *viper.Viper
	missing []string
	invalid []string
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

func (p *parser) str(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) required(key string) string {
	value := p.str(key)
	if value == "" {
		p.missing = append(p.missing, envName(key))
	}
	return value
}

func (p *parser) intIn(key string, lo, hi int) int {
	n, err := strconv.Atoi(p.str(key))
	if err != nil || n < lo || n > hi {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return n
}

func (p *parser) duration(key string) time.Duration {
	d, err := time.ParseDuration(p.str(key))
	if err != nil || d < 0 {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return d
}

func (p *parser) nonNegativeFloat(key string) float64 {
	f, err := strconv.ParseFloat(p.str(key), 64)
	if err != nil || f < 0 {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return f
}

func (p *parser) oneOf(key string, allowed ...string) string {
	value := strings.ToLower(p.str(key))
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	p.invalid = append(p.invalid, envName(key))
	return ""
}

func decode(v *viper.Viper) (Config, error) {
	p := &parser{v: v}

	cfg := Config{
		HTTPPort:     p.intIn("http_port", 1, 65535),
		SQLiteDSN:    p.required("sqlite_dsn"),
		OperatorKey:  p.str("operator_key"),
		CacheTTL:     p.duration("cache_ttl"),
		CacheEntries: p.intIn("cache_entries", 1, 1<<16),
		RateLimit:    p.nonNegativeFloat("rate_limit"),
		RateBurst:    p.intIn("rate_burst", 1, 1<<16),
		APIBaseURL:   p.required("api_base_url"),
		LogLevel:     p.oneOf("log_level", "debug", "info", "warn", "error"),
		LogFormat:    p.oneOf("log_format", "json", "text"),
		MoveStep:     p.intIn("move_step", 1, 60),
		ResizeStep:   p.intIn("resize_step", 1, 60),
		MinDuration:  p.intIn("min_duration", 1, 24*60),
	}

	if cfg.APIBaseURL != "" {
		if u, err := url.Parse(cfg.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			p.invalid = append(p.invalid, envName("api_base_url"))
		}
	}

	if len(p.missing) > 0 {
		return Config{}, fmt.Errorf("必須の設定値がありません: %s", strings.Join(p.missing, ", "))
	}
	if len(p.invalid) > 0 {
		return Config{}, fmt.Errorf("設定値が不正です: %s", strings.Join(p.invalid, ", "))
	}
	return cfg, nil
}
