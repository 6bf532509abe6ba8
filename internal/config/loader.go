// Package config loads the bolao configuration with viper. Defaults are
// registered in code, a YAML file is discovered under the XDG config dir,
// a .env file is honored through godotenv, and BOLAO_* variables win over
// both. The decoded struct is validated before it is published.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AppName names the XDG config and data directories.
	AppName = "bolao"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BOLAO"
)

var (
	appConfig *Config
	configMu  sync.RWMutex

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile is an explicit YAML file. It must exist when set.
	ConfigFile string
	// EnvFile defaults to ".env" in the working directory.
	EnvFile string
	// Overrides are applied last, in order.
	Overrides []map[string]any
}

// envAliases maps short environment names onto config keys in addition to the
// automatic BOLAO_SECTION_KEY form.
var envAliases = map[string][]string{
	"server.host":        {"HOST"},
	"server.port":        {"PORT"},
	"server.admin_token": {"ADMIN_TOKEN"},
	"logging.level":      {"LOG_LEVEL"},
	"logging.profile":    {"LOG_PROFILE"},
	"store.driver":       {"DB_DRIVER"},
	"store.path":         {"DB_PATH"},
	"store.url":          {"DB_URL", "DATABASE_URL"},
	"store.auth_token":   {"DB_AUTH_TOKEN"},
	"upstream.api_key":   {"API_KEY", "SPORTS_API_KEY"},
	"upstream.base_url":  {"API_BASE_URL"},
	"metrics.enabled":    {"METRICS_ENABLED"},
	"metrics.port":       {"METRICS_PORT"},
	"health.enabled":     {"HEALTH_ENABLED"},
	"sync.user_id":       {"USER_ID"},
	"sync.log_snapshots": {"LOG_SNAPSHOTS"},
}

// Load loads configuration from the default locations. It is safe to call
// repeatedly, for example on SIGHUP.
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	return LoadWithOptions(ctx, LoadOptions{Overrides: runtimeOverrides})
}

// LoadWithOptions loads configuration from explicit sources.
func LoadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvAliases(v); err != nil {
		return nil, err
	}

	for _, overrides := range opts.Overrides {
		for key, value := range flatten("", overrides) {
			v.Set(key, value)
		}
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Store.Driver == "libsql" && strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate checks struct constraints and reports every failing field.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("invalid config: %w", err)
		}
		problems := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SetDefaults registers every known key so environment overrides resolve.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.admin_token", "")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")
	v.SetDefault("store.max_open_conns", 0)

	// Upstream defaults
	v.SetDefault("upstream.base_url", "https://api.football-data.io/v1")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.timeout", "15s")
	v.SetDefault("upstream.user_agent", "bolao-sync/1.0")

	// Sync defaults
	v.SetDefault("sync.default_interval", "5m")
	v.SetDefault("sync.live_interval", "2m")
	v.SetDefault("sync.retry_delay", "30s")
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.max_per_hour", 25)
	v.SetDefault("sync.min_interval", "5m")
	v.SetDefault("sync.log_snapshots", false)
	v.SetDefault("sync.user_id", "local")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "SIMPLE")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)
}

// EnvNames lists every environment variable alias, sorted.
func EnvNames() []string {
	names := make([]string, 0, len(envAliases))
	for _, aliases := range envAliases {
		for _, alias := range aliases {
			names = append(names, EnvPrefix+"_"+alias)
		}
	}
	sort.Strings(names)
	return names
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

func loadEnvFile(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	if dir := gfconfig.GetAppConfigDir(AppName); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func bindEnvAliases(v *viper.Viper) error {
	for key, aliases := range envAliases {
		names := make([]string, 0, len(aliases)+1)
		names = append(names, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
		for _, alias := range aliases {
			names = append(names, EnvPrefix+"_"+alias)
		}
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

func flatten(prefix string, values map[string]any) map[string]any {
	out := make(map[string]any)
	for key, value := range values {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flatten(full, nested) {
				out[k] = v
			}
			continue
		}
		out[full] = value
	}
	return out
}

// ConfigFileUsed reports which file a fresh load would read, or "".
func ConfigFileUsed(explicit string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	for _, candidate := range []string{DefaultConfigPath(), filepath.Join("config", "config.yaml")} {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
