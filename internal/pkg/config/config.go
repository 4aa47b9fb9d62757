package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Mapbox     MapboxConfig     `mapstructure:"mapbox"`
	Directions DirectionsConfig `mapstructure:"directions"`
	Google     GoogleConfig     `mapstructure:"google"`
	Planner    PlannerConfig    `mapstructure:"planner"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr      string `mapstructure:"addr"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type MapboxConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
	Profile string `mapstructure:"profile"`
}

// DirectionsConfig selects the routing backend: "mapbox" or "osrm".
type DirectionsConfig struct {
	Provider   string        `mapstructure:"provider"`
	OSRMURL    string        `mapstructure:"osrm_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type GoogleConfig struct {
	APIKey       string `mapstructure:"api_key"`
	GeocodingURL string `mapstructure:"geocoding_url"`
	GeminiURL    string `mapstructure:"gemini_url"`
	GeminiModel  string `mapstructure:"gemini_model"`
}

type PlannerConfig struct {
	FallbackLat    float64       `mapstructure:"fallback_lat"`
	FallbackLng    float64       `mapstructure:"fallback_lng"`
	WatchMaxAge    time.Duration `mapstructure:"watch_max_age"`
	WatchTimeout   time.Duration `mapstructure:"watch_timeout"`
	HighAccuracy   bool          `mapstructure:"high_accuracy"`
	FocusZoom      float64       `mapstructure:"focus_zoom"`
	SearchZoom     float64       `mapstructure:"search_zoom"`
	FocusDuration  time.Duration `mapstructure:"focus_duration"`
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
	SearchBar      bool          `mapstructure:"search_bar"`
	Autocomplete   bool          `mapstructure:"autocomplete"`
	RoutePanel     bool          `mapstructure:"route_panel"`
}

type CacheConfig struct {
	GeocodeTTL int `mapstructure:"geocode_ttl"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Load reads configuration from .env, file and environment variables.
func Load(service string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TRIPPLANNER_DATABASE_HOST → database.host
	v.SetEnvPrefix("TRIPPLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.allow_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "planner")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "tripplanner")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.key_prefix", "tripplanner")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("mapbox.token", "")
	v.SetDefault("mapbox.base_url", "https://api.mapbox.com")
	v.SetDefault("mapbox.profile", "driving")
	v.SetDefault("directions.provider", "mapbox")
	v.SetDefault("directions.osrm_url", "https://router.project-osrm.org")
	v.SetDefault("directions.timeout", 10*time.Second)
	v.SetDefault("directions.max_retries", 2)
	v.SetDefault("google.api_key", "")
	v.SetDefault("google.geocoding_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("google.gemini_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("google.gemini_model", "gemini-1.5-flash")
	v.SetDefault("planner.fallback_lat", 40.7128)
	v.SetDefault("planner.fallback_lng", -74.0060)
	v.SetDefault("planner.watch_max_age", 10*time.Second)
	v.SetDefault("planner.watch_timeout", 5*time.Second)
	v.SetDefault("planner.high_accuracy", true)
	v.SetDefault("planner.focus_zoom", 14)
	v.SetDefault("planner.search_zoom", 12)
	v.SetDefault("planner.focus_duration", 1500*time.Millisecond)
	v.SetDefault("planner.session_idle_ttl", 30*time.Minute)
	v.SetDefault("planner.search_bar", true)
	v.SetDefault("planner.autocomplete", true)
	v.SetDefault("planner.route_panel", true)
	v.SetDefault("cache.geocode_ttl", 3600)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "user-sync")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	switch c.Directions.Provider {
	case "mapbox", "osrm":
	default:
		errs = append(errs, fmt.Sprintf("directions.provider must be mapbox or osrm, got %q", c.Directions.Provider))
	}
	if c.Directions.Timeout <= 0 {
		errs = append(errs, "directions.timeout must be positive")
	}
	if c.Planner.FallbackLat < -90 || c.Planner.FallbackLat > 90 {
		errs = append(errs, "planner.fallback_lat must be within [-90, 90]")
	}
	if c.Planner.FallbackLng < -180 || c.Planner.FallbackLng > 180 {
		errs = append(errs, "planner.fallback_lng must be within [-180, 180]")
	}
	if c.Planner.WatchMaxAge < 0 || c.Planner.WatchTimeout <= 0 {
		errs = append(errs, "planner.watch_max_age must be >= 0 and planner.watch_timeout positive")
	}
	if c.Planner.FocusDuration <= 0 {
		errs = append(errs, "planner.focus_duration must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, "auth.token_ttl must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
