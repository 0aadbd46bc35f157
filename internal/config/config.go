// Package config loads settings for the pageflow command.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PAGEFLOW"

// Config is the complete command configuration.
type Config struct {
	Log      Log      `mapstructure:"log"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	DB       DB       `mapstructure:"db"`
	Redis    Redis    `mapstructure:"redis"`
	Metrics  Metrics  `mapstructure:"metrics"`
	Schedule Schedule `mapstructure:"schedule"`
}

// Log selects the zap logger built by the command.
type Log struct {
	Level  string `mapstructure:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" default:"console" validate:"oneof=console json"`
}

// Pipeline sizes the page pipeline. Zero sizes are derived from the CPU count.
type Pipeline struct {
	MaxPages    int  `mapstructure:"max_pages" validate:"gte=0"`
	MaxThreads  int  `mapstructure:"max_threads" validate:"gte=0"`
	PageSize    int  `mapstructure:"page_size" default:"128" validate:"gte=1"`
	FIFO        bool `mapstructure:"fifo"`
	StopOnError bool `mapstructure:"stop_on_error"`
}

// DB configures the duckdb database used by the apply command. An empty
// path opens an in-memory database.
type DB struct {
	Path string `mapstructure:"path"`
	Rows int    `mapstructure:"rows" default:"100000" validate:"gte=1"`

	// SlowDelay and SyncDelay are the per-row costs of the slow and sync
	// checks. Zero skips the sleep.
	SlowDelay time.Duration `mapstructure:"slow_delay" default:"100us" validate:"gte=0"`
	SyncDelay time.Duration `mapstructure:"sync_delay" default:"10us" validate:"gte=0"`
}

// Redis configures the redis-scan command.
type Redis struct {
	Addr        string        `mapstructure:"addr" default:"localhost:6379" validate:"required,hostname_port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db" validate:"gte=0"`
	Match       string        `mapstructure:"match" default:"*"`
	Count       int64         `mapstructure:"count" default:"128" validate:"gte=1"`
	PingTimeout time.Duration `mapstructure:"ping_timeout" default:"30s" validate:"gt=0"`

	// ScanRate caps SCAN calls per second. Zero leaves them unpaced.
	ScanRate  float64 `mapstructure:"scan_rate" validate:"gte=0"`
	ScanBurst int     `mapstructure:"scan_burst" default:"1" validate:"gte=1"`
}

// Metrics configures the Prometheus endpoint. An empty address disables it.
// Port 0 listens on an ephemeral port.
type Metrics struct {
	Addr string `mapstructure:"addr" validate:"omitempty,listen_addr"`
	Path string `mapstructure:"path" default:"/metrics" validate:"startswith=/"`
}

// Schedule holds an optional cron expression. When set, the command runs
// on that schedule instead of once.
type Schedule struct {
	Cron string `mapstructure:"cron"`
}

// Options controls where Load reads from.
type Options struct {
	// ConfigFile is an optional YAML file.
	ConfigFile string

	// EnvFile is loaded into the process environment before variables are
	// read. When empty, ./.env is loaded if it exists.
	EnvFile string

	// Flags maps configuration keys such as "pipeline.max_pages" to
	// command line flags. Flags that were set override every other source.
	Flags map[string]*pflag.Flag
}

// Load resolves configuration in increasing order of precedence: struct
// defaults, the YAML file, PAGEFLOW_* environment variables (including
// those from the env file) and flags. The result is validated.
func Load(opts Options) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range flatten(cfg) {
		v.SetDefault(key, value)
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag.Name, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// flatten lists every leaf of cfg under its dotted mapstructure key.
// Viper only resolves environment variables for keys it already knows.
func flatten(cfg *Config) map[string]interface{} {
	out := make(map[string]interface{})
	walk(reflect.ValueOf(cfg).Elem(), "", out)
	return out
}

func walk(v reflect.Value, prefix string, out map[string]interface{}) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" {
			key = strings.ToLower(field.Name)
		}
		if prefix != "" {
			key = prefix + "." + key
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Duration(0)) {
			walk(v.Field(i), key, out)
			continue
		}
		out[key] = v.Field(i).Interface()
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(field.Name)
		}
		return name
	})
	if err := v.RegisterValidation("listen_addr", isListenAddr); err != nil {
		panic(err)
	}
	return v
}

// isListenAddr accepts host:port where host may be empty and port may be 0.
func isListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	n, err := strconv.ParseUint(port, 10, 16)
	return err == nil && (n > 0 || port == "0")
}

// Validate checks cfg against its validate tags. The first violation is
// returned as a ValidationError naming the dotted key.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}

	first := verrs[0]
	key := first.Namespace()
	if i := strings.Index(key, "."); i >= 0 {
		key = key[i+1:]
	}

	reason := "failed " + first.Tag()
	if first.Param() != "" {
		reason += "=" + first.Param()
	}
	return pferrors.NewValidationError("config", key, first.Value(), reason).
		WithHint(fmt.Sprintf("set %s or %s_%s", key, EnvPrefix, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))))
}
