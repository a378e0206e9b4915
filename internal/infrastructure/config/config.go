// Package config loads service configuration from defaults, an optional YAML
// file, a .env file and EVENTHUB_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "EVENTHUB"

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	HTTP   HTTPConfig   `mapstructure:"http"`
	Hub    HubConfig    `mapstructure:"hub"`
	Limits LimitsConfig `mapstructure:"limits"`
	Log    LogConfig    `mapstructure:"log"`
}

type AppConfig struct {
	Name string `mapstructure:"name" validate:"required"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"gte=0"` // 0 keeps streams open
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"     validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
}

type HubConfig struct {
	BufferSize        int           `mapstructure:"buffer_size"        validate:"min=1,max=4096"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"gt=0"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"      validate:"gt=0"`
	StallTimeout      time.Duration `mapstructure:"stall_timeout"      validate:"gte=0"`
}

type LimitsConfig struct {
	MaxConnections int     `mapstructure:"max_connections" validate:"gte=0"` // 0 disables the cap
	ConnectRate    float64 `mapstructure:"connect_rate"    validate:"gte=0"` // per IP per second, 0 disables
	ConnectBurst   int     `mapstructure:"connect_burst"   validate:"gte=0"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"       validate:"oneof=debug info warn warning error fatal"`
	Format     string `mapstructure:"format"      validate:"oneof=console text json"`
	Output     string `mapstructure:"output"      validate:"oneof=stdout stderr file discard"`
	FilePath   string `mapstructure:"file_path"   validate:"required_if=Output file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "event-hub")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", time.Duration(0))
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 5*time.Second)
	v.SetDefault("http.allowed_origin", "*")

	v.SetDefault("hub.buffer_size", 64)
	v.SetDefault("hub.heartbeat_interval", 15*time.Second)
	v.SetDefault("hub.write_timeout", 10*time.Second)
	v.SetDefault("hub.stall_timeout", 45*time.Second)

	v.SetDefault("limits.max_connections", 1000)
	v.SetDefault("limits.connect_rate", 5.0)
	v.SetDefault("limits.connect_burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)
}

type options struct {
	configFile string
	envFile    string
}

type Option func(*options)

// WithConfigFile reads YAML from path. Without it EVENTHUB_CONFIG is used,
// then ./config.yml and ./config/config.yml if present.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configFile = path }
}

// WithEnvFile loads variables from path before reading the environment.
// Without it ./.env is loaded if present.
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

func Load(opts ...Option) (*Config, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if err := loadEnvFile(o.envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if path := resolveConfigFile(o.configFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
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

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func loadEnvFile(path string) error {
	if path == "" {
		if !exists(".env") {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
		return env
	}
	for _, path := range []string{"./config.yml", "./config/config.yml"} {
		if exists(path) {
			return path
		}
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
