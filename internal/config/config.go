package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SecurityConfig carries the authentication policy: token lifetimes, the
// sliding session window and the brute-force lockout thresholds.
type SecurityConfig struct {
	JWTAccessSecret    string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	SessionTTL         time.Duration
	LockoutMaxAttempts int
	LockoutWindow      time.Duration
}

// HoursConfig bounds the contextual permission checks. Business hours gate
// financial mutations; service hours gate time-restricted roles entirely.
// Values are hours of day in the practice's local time.
type HoursConfig struct {
	BusinessOpen  int
	BusinessClose int
	ServiceOpen   int
	ServiceClose  int
}

type AuditConfig struct {
	Enabled       bool
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	Region        string
	BufferSize    int
	FlushInterval time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	TLS              TLSConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Hours            HoursConfig
	Audit            AuditConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("GLOWSPA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("security.accessttl", "15m")
	v.SetDefault("security.refreshttl", "168h") // 7 days
	v.SetDefault("security.sessionttl", "24h")
	v.SetDefault("security.lockoutmaxattempts", 5)
	v.SetDefault("security.lockoutwindow", "15m")

	v.SetDefault("hours.businessopen", 8)
	v.SetDefault("hours.businessclose", 18)
	v.SetDefault("hours.serviceopen", 6)
	v.SetDefault("hours.serviceclose", 22)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.bucket", "glowspa-audit")
	v.SetDefault("audit.usessl", false)
	v.SetDefault("audit.region", "us-east-1")
	v.SetDefault("audit.buffersize", 1024)
	v.SetDefault("audit.flushinterval", "5m")
}
