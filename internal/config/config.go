package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode is the runtime mode selected through NODE_ENV.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeTest        Mode = "test"
	ModeProduction  Mode = "production"
)

const (
	defaultLogLevel       = "info"
	defaultAPIHost        = "0.0.0.0"
	defaultAPIPort        = "3000"
	defaultDBHost         = "localhost"
	defaultDBPort         = "27017"
	defaultDBName         = "fastifymini-mongo"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultStaticDir      = "public"
	defaultCORSOrigin     = "http://localhost:3000"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > Environment variables > YAML config > Defaults.
//
// A Config is produced once by Parse or Load and handed around by value; nothing
// mutates it after validation.
type Config struct {
	Mode     Mode   `env:"NODE_ENV" validate:"required,oneof=development test production"`
	LogLevel string `env:"LOG_LEVEL" validate:"required,oneof=trace debug info warn error fatal silent"`

	APIHost string `env:"API_HOST" validate:"required"`
	APIPort string `env:"API_PORT" validate:"required,tcpport"`

	DBHost     string `env:"DB_HOST" validate:"required"`
	DBPort     string `env:"DB_PORT" validate:"required,tcpport"`
	DBName     string `env:"DB_NAME" validate:"required"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`

	DBConnectTimeout    time.Duration `env:"DB_CONNECT_TIMEOUT" validate:"gt=0"`
	DBOperationTimeout  time.Duration `env:"DB_OPERATION_TIMEOUT" validate:"gt=0"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" validate:"gt=0"`
	ReadHeaderTimeout   time.Duration `env:"READ_HEADER_TIMEOUT" validate:"gt=0"`
	WriteTimeout        time.Duration `env:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout         time.Duration `env:"IDLE_TIMEOUT" validate:"gt=0"`

	EnableRequestLogging bool     `env:"ENABLE_REQUEST_LOGGING"`
	RateLimitRPS         float64  `env:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst       int      `env:"RATE_LIMIT_BURST" validate:"gte=0"`
	CORSOrigins          []string `env:"CORS_ORIGINS"`
	StaticDir            string   `env:"STATIC_DIR" validate:"required"`
}

// ListenAddr returns the host:port pair the HTTP listener binds to.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.APIHost, c.APIPort)
}

// StoreURI returns the MongoDB connection string without credentials.
func (c Config) StoreURI() string {
	return "mongodb://" + net.JoinHostPort(c.DBHost, c.DBPort)
}

// HasStoreCredentials reports whether a store username was supplied.
func (c Config) HasStoreCredentials() bool {
	return c.DBUser != ""
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return c.Mode == ModeProduction
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Mode                 string        `yaml:"mode"`
	LogLevel             string        `yaml:"log_level"`
	API                  yamlAPI       `yaml:"api"`
	DB                   yamlDB        `yaml:"db"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	CORSOrigins          []string      `yaml:"cors_origins"`
	StaticDir            string        `yaml:"static_dir"`
}

type yamlAPI struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type yamlDB struct {
	Host             string `yaml:"host"`
	Port             string `yaml:"port"`
	Name             string `yaml:"name"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	ConnectTimeout   string `yaml:"connect_timeout"`
	OperationTimeout string `yaml:"operation_timeout"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile string
	Host       *string
	Port       *string
	LogLevel   *string
}

// Load resolves configuration for the running process from multiple sources with
// precedence: CLI flags > Environment variables > YAML config > Defaults.
func Load(overrides *CLIOverrides) (Config, error) {
	values := make(map[string]string)

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		merge(values, yamlCfg.values())
	}

	merge(values, environ(os.Environ()))

	if overrides != nil {
		merge(values, overrides.values())
	}

	return Parse(values)
}

// Parse validates a raw environment mapping and returns the typed configuration.
// Missing or blank keys fall back to their defaults; NODE_ENV has none and must
// match a mode exactly. LOG_LEVEL is case-insensitive.
// On failure the returned error is a *ValidationError listing every offending key.
func Parse(env map[string]string) (Config, error) {
	cfg := defaultConfig()
	var problems FieldErrors

	setString := func(key string, dst *string) {
		if v, ok := lookup(env, key); ok {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		v, ok := lookup(env, key)
		if !ok {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			problems = append(problems, FieldError{Field: key, Reason: "must be a duration such as 5s or 250ms"})
			return
		}
		*dst = d
	}

	// NODE_ENV is matched verbatim.
	if v, ok := env["NODE_ENV"]; ok && strings.TrimSpace(v) != "" {
		cfg.Mode = Mode(v)
	}
	if v, ok := lookup(env, "LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	setString("API_HOST", &cfg.APIHost)
	setString("API_PORT", &cfg.APIPort)
	setString("DB_HOST", &cfg.DBHost)
	setString("DB_PORT", &cfg.DBPort)
	setString("DB_NAME", &cfg.DBName)
	setString("DB_USER", &cfg.DBUser)
	setString("DB_PASSWORD", &cfg.DBPassword)
	setString("STATIC_DIR", &cfg.StaticDir)

	setDuration("DB_CONNECT_TIMEOUT", &cfg.DBConnectTimeout)
	setDuration("DB_OPERATION_TIMEOUT", &cfg.DBOperationTimeout)
	setDuration("SHUTDOWN_GRACE_PERIOD", &cfg.ShutdownGracePeriod)
	setDuration("READ_HEADER_TIMEOUT", &cfg.ReadHeaderTimeout)
	setDuration("WRITE_TIMEOUT", &cfg.WriteTimeout)
	setDuration("IDLE_TIMEOUT", &cfg.IdleTimeout)

	if v, ok := lookup(env, "ENABLE_REQUEST_LOGGING"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			problems = append(problems, FieldError{Field: "ENABLE_REQUEST_LOGGING", Reason: "must be a boolean"})
		} else {
			cfg.EnableRequestLogging = enabled
		}
	}

	if v, ok := lookup(env, "RATE_LIMIT_RPS"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			problems = append(problems, FieldError{Field: "RATE_LIMIT_RPS", Reason: "must be a number"})
		} else {
			cfg.RateLimitRPS = rps
		}
	}

	if v, ok := lookup(env, "RATE_LIMIT_BURST"); ok {
		burst, err := strconv.Atoi(v)
		if err != nil {
			problems = append(problems, FieldError{Field: "RATE_LIMIT_BURST", Reason: "must be an integer"})
		} else {
			cfg.RateLimitBurst = burst
		}
	}

	if v, ok := lookup(env, "CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}

	problems = append(problems, validateConfig(cfg)...)
	if len(problems) > 0 {
		return Config{}, &ValidationError{Fields: problems}
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values. Mode is intentionally left
// empty so that a missing NODE_ENV fails validation.
func defaultConfig() Config {
	return Config{
		LogLevel:             defaultLogLevel,
		APIHost:              defaultAPIHost,
		APIPort:              defaultAPIPort,
		DBHost:               defaultDBHost,
		DBPort:               defaultDBPort,
		DBName:               defaultDBName,
		DBConnectTimeout:     10 * time.Second,
		DBOperationTimeout:   5 * time.Second,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		CORSOrigins:          []string{defaultCORSOrigin},
		StaticDir:            defaultStaticDir,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// values flattens the YAML document into the environment key space so that it goes
// through the same parsing and validation as real environment variables.
func (y *yamlConfig) values() map[string]string {
	out := map[string]string{
		"NODE_ENV":              y.Mode,
		"LOG_LEVEL":             y.LogLevel,
		"API_HOST":              y.API.Host,
		"API_PORT":              y.API.Port,
		"DB_HOST":               y.DB.Host,
		"DB_PORT":               y.DB.Port,
		"DB_NAME":               y.DB.Name,
		"DB_USER":               y.DB.User,
		"DB_PASSWORD":           y.DB.Password,
		"DB_CONNECT_TIMEOUT":    y.DB.ConnectTimeout,
		"DB_OPERATION_TIMEOUT":  y.DB.OperationTimeout,
		"SHUTDOWN_GRACE_PERIOD": y.ShutdownGracePeriod,
		"READ_HEADER_TIMEOUT":   y.ReadHeaderTimeout,
		"WRITE_TIMEOUT":         y.WriteTimeout,
		"IDLE_TIMEOUT":          y.IdleTimeout,
		"STATIC_DIR":            y.StaticDir,
		"CORS_ORIGINS":          strings.Join(y.CORSOrigins, ","),
	}

	if y.EnableRequestLogging != nil {
		out["ENABLE_REQUEST_LOGGING"] = strconv.FormatBool(*y.EnableRequestLogging)
	}
	if y.RateLimit.RPS != nil {
		out["RATE_LIMIT_RPS"] = strconv.FormatFloat(*y.RateLimit.RPS, 'f', -1, 64)
	}
	if y.RateLimit.Burst != nil {
		out["RATE_LIMIT_BURST"] = strconv.Itoa(*y.RateLimit.Burst)
	}

	return out
}

func (o *CLIOverrides) values() map[string]string {
	out := make(map[string]string)
	if o.Host != nil {
		out["API_HOST"] = *o.Host
	}
	if o.Port != nil {
		out["API_PORT"] = *o.Port
	}
	if o.LogLevel != nil {
		out["LOG_LEVEL"] = *o.LogLevel
	}
	return out
}

// merge copies every non-blank value of src into dst.
func merge(dst, src map[string]string) {
	for k, v := range src {
		if strings.TrimSpace(v) == "" {
			continue
		}
		dst[k] = v
	}
}

func environ(pairs []string) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}

func lookup(env map[string]string, key string) (string, bool) {
	v, ok := env[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
