package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-occupancy/internal/facility"
)

// Config is the root configuration structure for Gray Logic Occupancy.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	History    HistoryConfig    `yaml:"history"`
	Logging    LoggingConfig    `yaml:"logging"`
	Automation AutomationConfig `yaml:"automation"`
	Simulator  SimulatorConfig  `yaml:"simulator"`
	Catalog    CatalogConfig    `yaml:"catalog"`

	// envErrs collects unparseable environment overrides for Validate.
	envErrs []string
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host         string           `yaml:"host"`
	Port         int              `yaml:"port"`
	Timeouts     APITimeoutConfig `yaml:"timeouts"`
	CORS         CORSConfig       `yaml:"cors"`
	MaxBodyBytes int64            `yaml:"max_body_bytes"`

	// PanelDir serves the dashboard from disk instead of the embedded copy.
	PanelDir string `yaml:"panel_dir"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
	SendBuffer     int `yaml:"send_buffer"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// HistoryConfig contains the automation history log settings.
type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	WALMode       bool   `yaml:"wal_mode"`
	BusyTimeout   int    `yaml:"busy_timeout"`
	RetentionDays int    `yaml:"retention_days"`
	BufferSize    int    `yaml:"buffer_size"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AutomationConfig holds the initial automation settings and engine tuning.
type AutomationConfig struct {
	InactivityMinutes int    `yaml:"inactivity_minutes"`
	AutoShutdownTime  string `yaml:"auto_shutdown_time"`
	Sensitivity       string `yaml:"sensitivity"`
	WeekendMode       string `yaml:"weekend_mode"`

	// ShutdownCheckInterval is how often the daily shutdown time is compared
	// with the wall clock (seconds).
	ShutdownCheckInterval int `yaml:"shutdown_check_interval"`

	// DeferredPolicy is "independent" or "supersede".
	DeferredPolicy string `yaml:"deferred_policy"`
}

// SimulatorConfig controls the built-in occupancy sensor simulator.
type SimulatorConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval between simulation rounds (seconds).
	Interval int `yaml:"interval"`

	// Probability that a room flips occupancy in one round, 0 to 1.
	Probability float64 `yaml:"probability"`

	// Seed for the random source. 0 seeds from the clock.
	Seed int64 `yaml:"seed"`
}

// CatalogConfig lists the rooms and appliances. An empty list uses the
// built-in demo catalog.
type CatalogConfig struct {
	Rooms []RoomConfig `yaml:"rooms"`
}

// RoomConfig describes one room.
type RoomConfig struct {
	ID         int               `yaml:"id"`
	Name       string            `yaml:"name"`
	Appliances []ApplianceConfig `yaml:"appliances"`
}

// ApplianceConfig describes one appliance. State defaults to "off".
type ApplianceConfig struct {
	ID       int    `yaml:"id"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	State    string `yaml:"state"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults); skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_HISTORY_PATH, GRAYLOGIC_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic Occupancy",
			Timezone: "UTC",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			MaxBodyBytes: 1 << 20,
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     64,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-occupancy",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "graylogic",
			Bucket:        "occupancy",
			BatchSize:     100,
			FlushInterval: 10,
		},
		History: HistoryConfig{
			Enabled:       true,
			Path:          "./data/occupancy.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
			BufferSize:    256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Automation: AutomationConfig{
			InactivityMinutes:     15,
			AutoShutdownTime:      "22:00",
			Sensitivity:           string(facility.SensitivityMedium),
			WeekendMode:           string(facility.WeekendModeDisabled),
			ShutdownCheckInterval: 60,
			DeferredPolicy:        "independent",
		},
		Simulator: SimulatorConfig{
			Enabled:     true,
			Interval:    10,
			Probability: 0.1,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Site
	envString("GRAYLOGIC_SITE_TIMEZONE", &cfg.Site.Timezone)

	// API
	envString("GRAYLOGIC_API_HOST", &cfg.API.Host)
	cfg.envInt("GRAYLOGIC_API_PORT", &cfg.API.Port)
	envString("GRAYLOGIC_API_PANEL_DIR", &cfg.API.PanelDir)

	// MQTT
	cfg.envBool("GRAYLOGIC_MQTT_ENABLED", &cfg.MQTT.Enabled)
	envString("GRAYLOGIC_MQTT_HOST", &cfg.MQTT.Broker.Host)
	cfg.envInt("GRAYLOGIC_MQTT_PORT", &cfg.MQTT.Broker.Port)
	envString("GRAYLOGIC_MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	envString("GRAYLOGIC_MQTT_PASSWORD", &cfg.MQTT.Auth.Password)

	// InfluxDB
	cfg.envBool("GRAYLOGIC_INFLUXDB_ENABLED", &cfg.InfluxDB.Enabled)
	envString("GRAYLOGIC_INFLUXDB_URL", &cfg.InfluxDB.URL)
	envString("GRAYLOGIC_INFLUXDB_TOKEN", &cfg.InfluxDB.Token)

	// History
	cfg.envBool("GRAYLOGIC_HISTORY_ENABLED", &cfg.History.Enabled)
	envString("GRAYLOGIC_HISTORY_PATH", &cfg.History.Path)

	// Logging
	envString("GRAYLOGIC_LOG_LEVEL", &cfg.Logging.Level)
	envString("GRAYLOGIC_LOG_FORMAT", &cfg.Logging.Format)

	// Automation and simulator
	envString("GRAYLOGIC_AUTOMATION_DEFERRED_POLICY", &cfg.Automation.DeferredPolicy)
	cfg.envBool("GRAYLOGIC_SIMULATOR_ENABLED", &cfg.Simulator.Enabled)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.envErrs = append(c.envErrs, fmt.Sprintf("%s: %q is not an integer", key, v))
		return
	}
	*dst = n
}

func (c *Config) envBool(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.envErrs = append(c.envErrs, fmt.Sprintf("%s: %q is not a boolean", key, v))
		return
	}
	*dst = b
}

// Validate checks the configuration for errors.
//
// All problems are collected and reported together.
func (c *Config) Validate() error {
	errs := append([]string(nil), c.envErrs...)

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a known timezone", c.Site.Timezone))
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	if _, err := c.Settings(); err != nil {
		errs = append(errs, fmt.Sprintf("automation: %v", err))
	}
	if c.Automation.ShutdownCheckInterval <= 0 {
		errs = append(errs, "automation.shutdown_check_interval must be positive")
	}
	switch c.Automation.DeferredPolicy {
	case "independent", "supersede":
	default:
		errs = append(errs, fmt.Sprintf("automation.deferred_policy %q must be independent or supersede", c.Automation.DeferredPolicy))
	}

	if c.Simulator.Enabled && c.Simulator.Interval <= 0 {
		errs = append(errs, "simulator.interval must be positive")
	}
	if c.Simulator.Probability < 0 || c.Simulator.Probability > 1 {
		errs = append(errs, "simulator.probability must be between 0 and 1")
	}

	if len(c.Catalog.Rooms) > 0 {
		if err := facility.ValidateCatalog(c.Rooms()); err != nil {
			errs = append(errs, fmt.Sprintf("catalog: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Settings converts the automation section into engine settings.
func (c *Config) Settings() (facility.Settings, error) {
	shutdown, err := facility.ParseClockTime(c.Automation.AutoShutdownTime)
	if err != nil {
		return facility.Settings{}, err
	}
	s := facility.Settings{
		InactivityMinutes: c.Automation.InactivityMinutes,
		AutoShutdownTime:  shutdown,
		Sensitivity:       facility.Sensitivity(c.Automation.Sensitivity),
		WeekendMode:       facility.WeekendMode(c.Automation.WeekendMode),
	}
	if err := s.Validate(); err != nil {
		return facility.Settings{}, err
	}
	return s, nil
}

// Rooms converts the catalog section into facility rooms, falling back to
// the built-in catalog when none is configured.
func (c *Config) Rooms() []facility.Room {
	if len(c.Catalog.Rooms) == 0 {
		return facility.DefaultCatalog()
	}

	rooms := make([]facility.Room, 0, len(c.Catalog.Rooms))
	for _, rc := range c.Catalog.Rooms {
		room := facility.Room{ID: rc.ID, Name: rc.Name, Appliances: make([]facility.Appliance, 0, len(rc.Appliances))}
		for _, ac := range rc.Appliances {
			state := facility.PowerState(ac.State)
			if state == "" {
				state = facility.StateOff
			}
			room.Appliances = append(room.Appliances, facility.Appliance{
				ID:       ac.ID,
				Name:     ac.Name,
				Category: facility.Category(ac.Category),
				State:    state,
			})
		}
		rooms = append(rooms, room)
	}
	return rooms
}

// Location returns the site timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading site timezone %q: %w", c.Site.Timezone, err)
	}
	return loc, nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetShutdownCheckInterval returns the daily shutdown check cadence.
func (c *Config) GetShutdownCheckInterval() time.Duration {
	return time.Duration(c.Automation.ShutdownCheckInterval) * time.Second
}

// GetSimulatorInterval returns the time between simulator rounds.
func (c *Config) GetSimulatorInterval() time.Duration {
	return time.Duration(c.Simulator.Interval) * time.Second
}

// GetHistoryRetention returns how long history events are kept.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}
