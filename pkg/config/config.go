package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Transition modes
const (
	ModeFinishBy = "finish_by"
	ModeStartAt  = "start_at"
	ModeCenter   = "center"
	ModeGeo      = "geo"
	ModeStatic   = "static"
)

// Backend names
const (
	BackendMQTT = "mqtt"
	BackendLog  = "log"
)

// Value limits shared with the backends
const (
	MinTemperature = 1000
	MaxTemperature = 20000
	MinGamma       = 10.0
	MaxGamma       = 200.0
)

// Config holds the configuration for the duskd daemon.
// A Config is treated as an immutable snapshot once loaded; reloads build a new one.
type Config struct {
	// Schedule
	Mode                  string  `yaml:"mode"`
	Sunset                string  `yaml:"sunset"`
	Sunrise               string  `yaml:"sunrise"`
	TransitionDurationMin int     `yaml:"transition_duration"`
	UpdateIntervalSec     int     `yaml:"update_interval"`
	Latitude              float64 `yaml:"latitude"`
	Longitude             float64 `yaml:"longitude"`

	// Display values
	DayTemp     int     `yaml:"day_temp"`
	NightTemp   int     `yaml:"night_temp"`
	StaticTemp  int     `yaml:"static_temp"`
	DayGamma    float64 `yaml:"day_gamma"`
	NightGamma  float64 `yaml:"night_gamma"`
	StaticGamma float64 `yaml:"static_gamma"`

	// Animation
	Smoothing           bool    `yaml:"smoothing"`
	StartupDurationSec  float64 `yaml:"startup_duration"`
	ShutdownDurationSec float64 `yaml:"shutdown_duration"`
	AdaptiveIntervalMs  int     `yaml:"adaptive_interval"`
	InstantShutdown     bool    `yaml:"instant_shutdown"`

	// Easing curve control points; endpoints are fixed at (0,0) and (1,1)
	BezierP1X float64 `yaml:"bezier_p1x"`
	BezierP1Y float64 `yaml:"bezier_p1y"`
	BezierP2X float64 `yaml:"bezier_p2x"`
	BezierP2Y float64 `yaml:"bezier_p2y"`

	// Backend
	Backend            string `yaml:"backend"`
	BackendMaxFailures int    `yaml:"backend_max_failures"`

	// MQTT configuration
	MQTTBroker      string `yaml:"mqtt_broker"`
	MQTTPort        int    `yaml:"mqtt_port"`
	MQTTUser        string `yaml:"mqtt_user"`
	MQTTPassword    string `yaml:"mqtt_password"`
	MQTTClientID    string `yaml:"mqtt_client_id"`
	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix"`
	MQTTControl     bool   `yaml:"mqtt_control"`

	// Redis configuration (last applied state)
	RedisEnabled  bool   `yaml:"redis_enabled"`
	RedisHost     string `yaml:"redis_host"`
	RedisPort     int    `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Postgres configuration (period history)
	PostgresEnabled  bool   `yaml:"postgres_enabled"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     int    `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresDB       string `yaml:"postgres_db"`
	PostgresSSLMode  string `yaml:"postgres_sslmode"`

	// Service configuration
	ServiceName string `yaml:"service_name"`
	HealthPort  int    `yaml:"health_port"`
	LogLevel    string `yaml:"log_level"`

	// ConfigFile is where the YAML layer was read from. Not part of the file itself.
	ConfigFile string `yaml:"-"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Mode:                  ModeFinishBy,
		Sunset:                "19:00:00",
		Sunrise:               "06:00:00",
		TransitionDurationMin: 45,
		UpdateIntervalSec:     60,
		DayTemp:               6500,
		NightTemp:             3300,
		StaticTemp:            6500,
		DayGamma:              100,
		NightGamma:            90,
		StaticGamma:           100,
		Smoothing:             true,
		StartupDurationSec:    0.5,
		ShutdownDurationSec:   0.5,
		AdaptiveIntervalMs:    1,
		BezierP1X:             0.33,
		BezierP1Y:             0.07,
		BezierP2X:             0.33,
		BezierP2Y:             1.0,
		Backend:               BackendLog,
		BackendMaxFailures:    10,
		MQTTBroker:            "localhost",
		MQTTPort:              1883,
		MQTTTopicPrefix:       "duskd",
		MQTTControl:           true,
		RedisHost:             "localhost",
		RedisPort:             6379,
		PostgresHost:          "localhost",
		PostgresPort:          5432,
		PostgresUser:          "duskd",
		PostgresDB:            "duskd",
		PostgresSSLMode:       "disable",
		ServiceName:           "duskd",
		HealthPort:            0,
		LogLevel:              "info",
	}
}

// DefaultConfigFile returns the default YAML location under the user config directory
func DefaultConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "duskd.yaml"
	}
	return filepath.Join(dir, "duskd", "duskd.yaml")
}

// LoadFromFile overlays values from a YAML file. A missing file is not an error.
func (c *Config) LoadFromFile(path string) error {
	c.ConfigFile = path
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return &ConfigError{Field: "file", Message: fmt.Sprintf("failed to parse %s: %v", path, err)}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables with DUSKD_ prefix.
// Values from envFile fill in variables the process environment leaves unset.
// The file is re-read on every call so a reload picks up edits to it.
func (c *Config) LoadFromEnv(envFile string) {
	c.loadEnv(dotEnv(envFile))
}

func (c *Config) loadEnv(env envLookup) {
	// Schedule
	envString(env, "DUSKD_MODE", &c.Mode)
	envString(env, "DUSKD_SUNSET", &c.Sunset)
	envString(env, "DUSKD_SUNRISE", &c.Sunrise)
	envInt(env, "DUSKD_TRANSITION_DURATION", &c.TransitionDurationMin)
	envInt(env, "DUSKD_UPDATE_INTERVAL", &c.UpdateIntervalSec)
	envFloat(env, "DUSKD_LATITUDE", &c.Latitude)
	envFloat(env, "DUSKD_LONGITUDE", &c.Longitude)

	// Display values
	envInt(env, "DUSKD_DAY_TEMP", &c.DayTemp)
	envInt(env, "DUSKD_NIGHT_TEMP", &c.NightTemp)
	envInt(env, "DUSKD_STATIC_TEMP", &c.StaticTemp)
	envFloat(env, "DUSKD_DAY_GAMMA", &c.DayGamma)
	envFloat(env, "DUSKD_NIGHT_GAMMA", &c.NightGamma)
	envFloat(env, "DUSKD_STATIC_GAMMA", &c.StaticGamma)

	// Animation
	envBool(env, "DUSKD_SMOOTHING", &c.Smoothing)
	envFloat(env, "DUSKD_STARTUP_DURATION", &c.StartupDurationSec)
	envFloat(env, "DUSKD_SHUTDOWN_DURATION", &c.ShutdownDurationSec)
	envInt(env, "DUSKD_ADAPTIVE_INTERVAL", &c.AdaptiveIntervalMs)
	envBool(env, "DUSKD_INSTANT_SHUTDOWN", &c.InstantShutdown)

	// Backend
	envString(env, "DUSKD_BACKEND", &c.Backend)
	envInt(env, "DUSKD_BACKEND_MAX_FAILURES", &c.BackendMaxFailures)

	// MQTT configuration
	envString(env, "DUSKD_MQTT_BROKER", &c.MQTTBroker)
	envInt(env, "DUSKD_MQTT_PORT", &c.MQTTPort)
	envString(env, "DUSKD_MQTT_USER", &c.MQTTUser)
	envString(env, "DUSKD_MQTT_PASSWORD", &c.MQTTPassword)
	envString(env, "DUSKD_MQTT_CLIENT_ID", &c.MQTTClientID)
	envString(env, "DUSKD_MQTT_TOPIC_PREFIX", &c.MQTTTopicPrefix)
	envBool(env, "DUSKD_MQTT_CONTROL", &c.MQTTControl)

	// Redis configuration
	envBool(env, "DUSKD_REDIS_ENABLED", &c.RedisEnabled)
	envString(env, "DUSKD_REDIS_HOST", &c.RedisHost)
	envInt(env, "DUSKD_REDIS_PORT", &c.RedisPort)
	envString(env, "DUSKD_REDIS_PASSWORD", &c.RedisPassword)
	envInt(env, "DUSKD_REDIS_DB", &c.RedisDB)

	// Postgres configuration
	envBool(env, "DUSKD_POSTGRES_ENABLED", &c.PostgresEnabled)
	envString(env, "DUSKD_POSTGRES_HOST", &c.PostgresHost)
	envInt(env, "DUSKD_POSTGRES_PORT", &c.PostgresPort)
	envString(env, "DUSKD_POSTGRES_USER", &c.PostgresUser)
	envString(env, "DUSKD_POSTGRES_PASSWORD", &c.PostgresPassword)
	envString(env, "DUSKD_POSTGRES_DB", &c.PostgresDB)
	envString(env, "DUSKD_POSTGRES_SSLMODE", &c.PostgresSSLMode)

	// Service configuration
	envString(env, "DUSKD_SERVICE_NAME", &c.ServiceName)
	envInt(env, "DUSKD_HEALTH_PORT", &c.HealthPort)
	envString(env, "DUSKD_LOG_LEVEL", &c.LogLevel)
}

// LoadFromFlags parses command-line flags and overrides config values.
// Unlike the process-wide pflag set, each call uses a fresh FlagSet so reloads can re-apply argv.
func (c *Config) LoadFromFlags(args []string) error {
	fs := c.flagSet()
	if err := fs.Parse(args); err != nil {
		return err
	}
	if debug, _ := fs.GetBool("debug"); debug {
		c.LogLevel = "debug"
	}
	return nil
}

func (c *Config) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("duskd", pflag.ContinueOnError)

	fs.StringVarP(&c.ConfigFile, "config", "c", c.ConfigFile, "Path to the YAML configuration file")
	fs.BoolP("debug", "d", false, "Shorthand for --log-level=debug")

	// Schedule flags
	fs.StringVar(&c.Mode, "mode", c.Mode, "Transition mode (finish_by, start_at, center, geo, static)")
	fs.StringVar(&c.Sunset, "sunset", c.Sunset, "Sunset time of day (HH:MM[:SS])")
	fs.StringVar(&c.Sunrise, "sunrise", c.Sunrise, "Sunrise time of day (HH:MM[:SS])")
	fs.IntVar(&c.TransitionDurationMin, "transition-duration", c.TransitionDurationMin, "Transition duration in minutes")
	fs.IntVar(&c.UpdateIntervalSec, "update-interval", c.UpdateIntervalSec, "Update interval during transitions in seconds")
	fs.Float64Var(&c.Latitude, "latitude", c.Latitude, "Geographic latitude for geo mode")
	fs.Float64Var(&c.Longitude, "longitude", c.Longitude, "Geographic longitude for geo mode")

	// Display value flags
	fs.IntVar(&c.DayTemp, "day-temp", c.DayTemp, "Day color temperature (K)")
	fs.IntVar(&c.NightTemp, "night-temp", c.NightTemp, "Night color temperature (K)")
	fs.IntVar(&c.StaticTemp, "static-temp", c.StaticTemp, "Static mode color temperature (K)")
	fs.Float64Var(&c.DayGamma, "day-gamma", c.DayGamma, "Day gamma (percent)")
	fs.Float64Var(&c.NightGamma, "night-gamma", c.NightGamma, "Night gamma (percent)")
	fs.Float64Var(&c.StaticGamma, "static-gamma", c.StaticGamma, "Static mode gamma (percent)")

	// Animation flags
	fs.BoolVar(&c.Smoothing, "smoothing", c.Smoothing, "Animate startup, reload and shutdown changes")
	fs.Float64Var(&c.StartupDurationSec, "startup-duration", c.StartupDurationSec, "Startup and reload animation duration in seconds")
	fs.Float64Var(&c.ShutdownDurationSec, "shutdown-duration", c.ShutdownDurationSec, "Shutdown animation duration in seconds")
	fs.IntVar(&c.AdaptiveIntervalMs, "adaptive-interval", c.AdaptiveIntervalMs, "Minimum animation tick interval in milliseconds")
	fs.BoolVar(&c.InstantShutdown, "instant-shutdown", c.InstantShutdown, "Reset the display without animation on shutdown")

	// Backend flags
	fs.StringVar(&c.Backend, "backend", c.Backend, "Display backend (mqtt, log)")
	fs.IntVar(&c.BackendMaxFailures, "backend-max-failures", c.BackendMaxFailures, "Consecutive apply failures before the backend is considered unreachable")

	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")
	fs.StringVar(&c.MQTTTopicPrefix, "mqtt-topic-prefix", c.MQTTTopicPrefix, "MQTT topic prefix")
	fs.BoolVar(&c.MQTTControl, "mqtt-control", c.MQTTControl, "Accept reload and test-mode messages over MQTT")

	// Redis flags
	fs.BoolVar(&c.RedisEnabled, "redis", c.RedisEnabled, "Persist last applied values in Redis")
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	fs.BoolVar(&c.PostgresEnabled, "postgres", c.PostgresEnabled, "Record period history in Postgres")
	fs.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	fs.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	fs.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres user")
	fs.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	fs.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database")
	fs.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres sslmode")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health and metrics HTTP port (0 disables)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	return fs
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeFinishBy, ModeStartAt, ModeCenter, ModeGeo, ModeStatic:
	default:
		return newConfigError("mode", "invalid mode %q (must be finish_by, start_at, center, geo, or static)", c.Mode)
	}

	if err := checkTemperature("day_temp", c.DayTemp); err != nil {
		return err
	}
	if err := checkTemperature("night_temp", c.NightTemp); err != nil {
		return err
	}
	if err := checkTemperature("static_temp", c.StaticTemp); err != nil {
		return err
	}
	if err := checkGamma("day_gamma", c.DayGamma); err != nil {
		return err
	}
	if err := checkGamma("night_gamma", c.NightGamma); err != nil {
		return err
	}
	if err := checkGamma("static_gamma", c.StaticGamma); err != nil {
		return err
	}

	if c.TransitionDurationMin < 5 || c.TransitionDurationMin > 120 {
		return newConfigError("transition_duration", "must be between 5 and 120 minutes, got %d", c.TransitionDurationMin)
	}
	if c.UpdateIntervalSec < 10 || c.UpdateIntervalSec > 300 {
		return newConfigError("update_interval", "must be between 10 and 300 seconds, got %d", c.UpdateIntervalSec)
	}
	if c.UpdateInterval() >= c.TransitionDuration() {
		return newConfigError("update_interval", "must be shorter than the transition duration")
	}

	if c.Mode != ModeGeo && c.Mode != ModeStatic {
		if _, err := ParseTimeOfDay(c.Sunset); err != nil {
			return newConfigError("sunset", "%v", err)
		}
		if _, err := ParseTimeOfDay(c.Sunrise); err != nil {
			return newConfigError("sunrise", "%v", err)
		}
	}

	if c.Mode == ModeGeo {
		if c.Latitude < -90 || c.Latitude > 90 {
			return newConfigError("latitude", "must be between -90 and 90, got %f", c.Latitude)
		}
		if c.Longitude < -180 || c.Longitude > 180 {
			return newConfigError("longitude", "must be between -180 and 180, got %f", c.Longitude)
		}
		if c.Latitude == 0 && c.Longitude == 0 {
			return newConfigError("latitude", "geo mode requires coordinates")
		}
	}

	if c.StartupDurationSec < 0.1 || c.StartupDurationSec > 60 {
		return newConfigError("startup_duration", "must be between 0.1 and 60 seconds, got %g", c.StartupDurationSec)
	}
	if c.ShutdownDurationSec < 0.1 || c.ShutdownDurationSec > 60 {
		return newConfigError("shutdown_duration", "must be between 0.1 and 60 seconds, got %g", c.ShutdownDurationSec)
	}
	if c.AdaptiveIntervalMs < 1 || c.AdaptiveIntervalMs > 100 {
		return newConfigError("adaptive_interval", "must be between 1 and 100 ms, got %d", c.AdaptiveIntervalMs)
	}

	for field, v := range map[string]float64{
		"bezier_p1x": c.BezierP1X,
		"bezier_p1y": c.BezierP1Y,
		"bezier_p2x": c.BezierP2X,
		"bezier_p2y": c.BezierP2Y,
	} {
		if v < 0 || v > 1 {
			return newConfigError(field, "must be between 0 and 1, got %g", v)
		}
	}

	switch c.Backend {
	case BackendMQTT:
		if c.MQTTBroker == "" {
			return newConfigError("mqtt_broker", "MQTT broker is required for the mqtt backend")
		}
	case BackendLog:
	default:
		return newConfigError("backend", "invalid backend %q (must be mqtt or log)", c.Backend)
	}
	if c.BackendMaxFailures < 1 {
		return newConfigError("backend_max_failures", "must be at least 1")
	}

	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return newConfigError("mqtt_port", "must be between 1 and 65535")
	}
	if c.RedisEnabled && (c.RedisPort <= 0 || c.RedisPort > 65535) {
		return newConfigError("redis_port", "must be between 1 and 65535")
	}
	if c.PostgresEnabled && (c.PostgresPort <= 0 || c.PostgresPort > 65535) {
		return newConfigError("postgres_port", "must be between 1 and 65535")
	}
	if c.HealthPort < 0 || c.HealthPort > 65535 {
		return newConfigError("health_port", "must be between 0 and 65535")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return newConfigError("log_level", "invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

func checkTemperature(field string, v int) error {
	if v < MinTemperature || v > MaxTemperature {
		return newConfigError(field, "must be between %d and %d K, got %d", MinTemperature, MaxTemperature, v)
	}
	return nil
}

func checkGamma(field string, v float64) error {
	if v < MinGamma || v > MaxGamma {
		return newConfigError(field, "must be between %g and %g percent, got %g", MinGamma, MaxGamma, v)
	}
	return nil
}

// Debug reports whether debug logging was requested
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

// TransitionDuration returns the configured transition window length
func (c *Config) TransitionDuration() time.Duration {
	return time.Duration(c.TransitionDurationMin) * time.Minute
}

// UpdateInterval returns the tick interval used while transitioning
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalSec) * time.Second
}

// StartupDuration returns the startup and reload animation length
func (c *Config) StartupDuration() time.Duration {
	return time.Duration(c.StartupDurationSec * float64(time.Second))
}

// ShutdownDuration returns the shutdown animation length
func (c *Config) ShutdownDuration() time.Duration {
	return time.Duration(c.ShutdownDurationSec * float64(time.Second))
}

// AdaptiveFloor returns the minimum animation tick interval
func (c *Config) AdaptiveFloor() time.Duration {
	return time.Duration(c.AdaptiveIntervalMs) * time.Millisecond
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns a lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS" into a duration since midnight
func ParseTimeOfDay(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM or HH:MM:SS)", s)
	}

	limits := []int{23, 59, 59}
	var fields [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		fields[i] = v
	}

	return time.Duration(fields[0])*time.Hour +
		time.Duration(fields[1])*time.Minute +
		time.Duration(fields[2])*time.Second, nil
}

// envLookup resolves a variable, returning "" when it is unset
type envLookup func(key string) string

// dotEnv layers the process environment over the contents of path.
// A missing or unreadable file contributes nothing.
func dotEnv(path string) envLookup {
	file, _ := godotenv.Read(path)
	return func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return file[key]
	}
}

func envString(env envLookup, key string, dst *string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

func envInt(env envLookup, key string, dst *int) {
	if v := env(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(env envLookup, key string, dst *float64) {
	if v := env(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(env envLookup, key string, dst *bool) {
	if v := env(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
