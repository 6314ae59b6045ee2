// Package config loads the YAML settings shared by door-controller and
// attendance-export.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFilename is used when --config is not given.
	DefaultConfigFilename = "door-controller.yaml"

	// DefaultAllowListFile is the allow-list path used by the original deployment.
	DefaultAllowListFile = "authorized_cards.json"

	// DefaultExportEndpoint is the attendance collector.
	DefaultExportEndpoint = "http://spring.mirae.network:8082/api/attendances"

	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config holds all settings for both binaries.
type Config struct {
	AllowListFile string   `yaml:"allowlist_file"`
	LogLevel      string   `yaml:"log_level"`
	Database      Database `yaml:"database"`
	Hardware      Hardware `yaml:"hardware"`
	Timing        Timing   `yaml:"timing"`
	Report        Report   `yaml:"report"`
	Export        Export   `yaml:"export"`
	MQTT          MQTT     `yaml:"mqtt"`
	HTTP          HTTP     `yaml:"http"`
}

// Database selects the store driver.
type Database struct {
	// Driver is "sqlite" or "mysql".
	Driver string `yaml:"driver"`
	// Path is the SQLite database file.
	Path string `yaml:"path"`
	// DSN is the go-sql-driver/mysql data source name.
	DSN string `yaml:"dsn"`
	// Timezone names the location calendar days are computed in. Empty = local.
	Timezone string `yaml:"timezone"`
}

// Hardware holds device paths and BCM pin numbers. The buzzer sits on BCM 17
// and the latch servo on BCM 18 unless configured otherwise.
type Hardware struct {
	GPIOChip   string `yaml:"gpio_chip"`
	BuzzerPin  int    `yaml:"buzzer_pin"`
	ServoPin   int    `yaml:"servo_pin"`
	NFCDevice  string `yaml:"nfc_device"`
	I2CBus     string `yaml:"i2c_bus"`
	LCDAddress int    `yaml:"lcd_address"`
	SensorPath string `yaml:"sensor_path"`
}

// Timing holds every fixed delay of the controller. DenyBeep follows Beep
// unless set.
type Timing struct {
	CardPollTimeout time.Duration `yaml:"card_poll_timeout"`
	Beep            time.Duration `yaml:"beep"`
	DenyBeep        time.Duration `yaml:"deny_beep"`
	DenyDisplay     time.Duration `yaml:"deny_display"`
	Settle          time.Duration `yaml:"settle"`
	CloseDelay      time.Duration `yaml:"close_delay"`
	SensorInterval  time.Duration `yaml:"sensor_interval"`
	SchedulerTick   time.Duration `yaml:"scheduler_tick"`
}

// Report configures the daily first/last report.
type Report struct {
	DailyAt string `yaml:"daily_at"`
}

// Export configures the attendance exporter.
type Export struct {
	Endpoint   string        `yaml:"endpoint"`
	Attempts   int           `yaml:"attempts"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout"`
	// DailyAt, when set, runs the exporter inside door-controller as well.
	DailyAt string `yaml:"daily_at"`
}

// MQTT configures telemetry publishing. Empty Broker disables it.
type MQTT struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	BufferSize  int    `yaml:"buffer_size"`

	// Heartbeat is the period of HEARTBEAT system events.
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTP configures the status server. Empty Addr disables it.
type HTTP struct {
	Addr string `yaml:"addr"`
	MDNS bool   `yaml:"mdns"`
}

var (
	errConfigIsNotSet   = errors.New("configuration is not set")
	errUnknownDriver    = errors.New("database driver must be sqlite or mysql")
	errMySQLDSNRequired = errors.New("database dsn is required for mysql")
	errBadAttempts      = errors.New("export attempts must be at least 1")
)

// Default returns the settings of the original installation.
func Default() *Config {
	return &Config{
		AllowListFile: DefaultAllowListFile,
		LogLevel:      "info",
		Database: Database{
			Driver: DriverSQLite,
			Path:   "./data/door-controller.db",
		},
		Hardware: Hardware{
			GPIOChip:   "gpiochip0",
			BuzzerPin:  17,
			ServoPin:   18,
			NFCDevice:  "pn532_i2c:/dev/i2c-1",
			I2CBus:     "/dev/i2c-1",
			LCDAddress: 0x27,
			SensorPath: "/sys/bus/iio/devices/iio:device0",
		},
		Timing: Timing{
			CardPollTimeout: 500 * time.Millisecond,
			Beep:            100 * time.Millisecond,
			DenyDisplay:     2 * time.Second,
			Settle:          2 * time.Second,
			CloseDelay:      5 * time.Second,
			SensorInterval:  10 * time.Second,
			SchedulerTick:   time.Second,
		},
		Report: Report{DailyAt: "00:00"},
		Export: Export{
			Endpoint:   DefaultExportEndpoint,
			Attempts:   3,
			RetryDelay: 2 * time.Second,
			Timeout:    10 * time.Second,
		},
		MQTT: MQTT{
			ClientID:    "door-controller",
			TopicPrefix: "door/controller",
			BufferSize:  100,
			Heartbeat:   15 * time.Minute,
		},
		HTTP: HTTP{Addr: ":80"},
	}
}

// Load reads configuration from path on top of Default and validates it. A
// missing file is not an error: the validated defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err := yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and fills zero values with defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	def := Default()

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	switch cfg.Database.Driver {
	case "":
		cfg.Database.Driver = DriverSQLite
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("%w: %q", errUnknownDriver, cfg.Database.Driver)
	}
	if cfg.Database.Driver == DriverSQLite && cfg.Database.Path == "" {
		cfg.Database.Path = def.Database.Path
	}
	if cfg.Database.Driver == DriverMySQL && cfg.Database.DSN == "" {
		return errMySQLDSNRequired
	}
	if cfg.Database.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Database.Timezone); err != nil {
			return fmt.Errorf("invalid database timezone: %w", err)
		}
	}

	if cfg.AllowListFile == "" {
		cfg.AllowListFile = def.AllowListFile
	}

	fillDuration(&cfg.Timing.CardPollTimeout, def.Timing.CardPollTimeout)
	fillDuration(&cfg.Timing.Beep, def.Timing.Beep)
	fillDuration(&cfg.Timing.DenyBeep, cfg.Timing.Beep)
	fillDuration(&cfg.Timing.DenyDisplay, def.Timing.DenyDisplay)
	fillDuration(&cfg.Timing.Settle, def.Timing.Settle)
	fillDuration(&cfg.Timing.CloseDelay, def.Timing.CloseDelay)
	fillDuration(&cfg.Timing.SensorInterval, def.Timing.SensorInterval)
	fillDuration(&cfg.Timing.SchedulerTick, def.Timing.SchedulerTick)

	if cfg.Report.DailyAt != "" {
		if _, err := time.Parse("15:04", cfg.Report.DailyAt); err != nil {
			return fmt.Errorf("invalid report.daily_at: %w", err)
		}
	}

	if cfg.Export.Endpoint == "" {
		cfg.Export.Endpoint = def.Export.Endpoint
	}
	if _, err := url.ParseRequestURI(cfg.Export.Endpoint); err != nil {
		return fmt.Errorf("invalid export endpoint: %w", err)
	}
	if cfg.Export.Attempts == 0 {
		cfg.Export.Attempts = def.Export.Attempts
	}
	if cfg.Export.Attempts < 1 {
		return errBadAttempts
	}
	fillDuration(&cfg.Export.RetryDelay, def.Export.RetryDelay)
	fillDuration(&cfg.Export.Timeout, def.Export.Timeout)
	if cfg.Export.DailyAt != "" {
		if _, err := time.Parse("15:04", cfg.Export.DailyAt); err != nil {
			return fmt.Errorf("invalid export.daily_at: %w", err)
		}
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = def.MQTT.ClientID
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = def.MQTT.TopicPrefix
	}
	if cfg.MQTT.BufferSize <= 0 {
		cfg.MQTT.BufferSize = def.MQTT.BufferSize
	}
	fillDuration(&cfg.MQTT.Heartbeat, def.MQTT.Heartbeat)

	return nil
}

// Location returns the time zone calendar days are computed in.
func (d Database) Location() *time.Location {
	if d.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func fillDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}
