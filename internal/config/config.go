// Package config loads the daemon and CLI settings: built-in defaults, then
// an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/arduino/go-paths-helper"
	"github.com/goccy/go-yaml"

	"github.com/qhal-nas/qhal/internal/lcd"
	"github.com/qhal-nas/qhal/internal/pidfile"
	"github.com/qhal-nas/qhal/internal/sio"
)

// DefaultFile is read when no file is given explicitly. It may be absent.
const DefaultFile = "/etc/qhal/config.yaml"

// Hardware backends.
const (
	BackendPort     = "port"
	BackendGPIOChip = "gpiochip"
)

// Config holds every setting.
type Config struct {
	Socket            string        `yaml:"socket"`
	PIDFile           string        `yaml:"pid_file"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// BinDir holds the vendor HAL binary and is also where `qhal` itself
	// is expected.
	BinDir string `yaml:"bin_dir"`

	Log      Log                 `yaml:"log"`
	Hardware Hardware            `yaml:"hardware"`
	Sensors  Sensors             `yaml:"sensors"`
	LCD      LCD                 `yaml:"lcd"`
	MQTT     MQTT                `yaml:"mqtt"`
	Buttons  map[string][]string `yaml:"buttons"`
}

// Log configures the daemon log.
type Log struct {
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Hardware selects how lines are reached.
type Hardware struct {
	Backend  string         `yaml:"backend"`
	DevPort  string         `yaml:"dev_port"`
	Chip     string         `yaml:"chip"`
	Offsets  map[string]int `yaml:"offsets"`
	LockFile string         `yaml:"lock_file"`
}

// Sensors configures the lm-sensors tool.
type Sensors struct {
	Binary string `yaml:"binary"`
}

// LCD configures the front panel serial link.
type LCD struct {
	TTY  string `yaml:"tty"`
	Baud int    `yaml:"baud"`
}

// MQTT configures the optional event publisher. An empty broker disables it.
type MQTT struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Socket:            "/tmp/qhal_daemon.sock",
		PIDFile:           pidfile.DefaultPath,
		PollInterval:      100 * time.Millisecond,
		HeartbeatInterval: 15 * time.Minute,
		BinDir:            "/usr/local/bin",
		Log: Log{
			Dir:   "/var/log/qhal",
			Level: "debug",
		},
		Hardware: Hardware{
			Backend:  BackendPort,
			DevPort:  sio.DefaultDevPort,
			LockFile: "/run/lock/qhal-sio.lock",
		},
		Sensors: Sensors{Binary: "sensors"},
		LCD:     LCD{TTY: lcd.DefaultTTY, Baud: lcd.DefaultBaud},
		MQTT:    MQTT{TopicPrefix: "qhal", ClientID: "qhal"},
	}
}

// Load returns the defaults overlaid with the YAML file at file and then
// with the environment. When explicit is false a missing file is not an
// error.
func Load(file string, explicit bool, getenv func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if p := paths.New(file); p != nil {
		data, err := p.ReadFile()
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing %s: %w", file, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return Config{}, fmt.Errorf("reading %s: %w", file, err)
		}
	}

	if getenv == nil {
		getenv = os.LookupEnv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) (string, bool)) error {
	str := map[string]*string{
		"QHAL_SOCKET":      &c.Socket,
		"QHAL_PID_FILE":    &c.PIDFile,
		"QHAL_LOG_DIR":     &c.Log.Dir,
		"HOME_BIN":         &c.BinDir,
		"LOG_LEVEL":        &c.Log.Level,
		"QHAL_MQTT_BROKER": &c.MQTT.Broker,
		"QHAL_BACKEND":     &c.Hardware.Backend,
	}
	for key, dst := range str {
		if v, ok := getenv(key); ok {
			*dst = v
		}
	}

	if v, ok := getenv("LOG_CONSOLE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOG_CONSOLE: %w", err)
		}
		c.Log.Console = n != 0
	}
	return nil
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	if c.Socket == "" {
		return errors.New("socket path is empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	switch c.Hardware.Backend {
	case BackendPort:
	case BackendGPIOChip:
		if c.Hardware.Chip == "" {
			return errors.New("gpiochip backend needs hardware.chip")
		}
	default:
		return fmt.Errorf("unknown hardware backend %q", c.Hardware.Backend)
	}
	return nil
}
