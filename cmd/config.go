// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/Thermoquad/gecostat/pkg/bridge"
	"github.com/Thermoquad/gecostat/pkg/geco"
	"github.com/Thermoquad/gecostat/pkg/link"
	"github.com/Thermoquad/gecostat/pkg/poller"
	"github.com/Thermoquad/gecostat/pkg/session"
)

// EnvPrefix prefixes every environment override, e.g. GECO_MQTT_HOST
const EnvPrefix = "GECO"

// Config is the complete gecostat configuration
type Config struct {
	Link      LinkConfig    `mapstructure:"link" yaml:"link" json:"link"`
	Mode      string        `mapstructure:"mode" yaml:"mode" json:"mode"`
	Addresses AddressConfig `mapstructure:"addresses" yaml:"addresses" json:"addresses"`

	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout" yaml:"response_timeout" json:"response_timeout"`
	OperationPause  time.Duration `mapstructure:"operation_pause" yaml:"operation_pause" json:"operation_pause"`
	RequestGap      time.Duration `mapstructure:"request_gap" yaml:"request_gap" json:"request_gap"`
	CacheMaxAge     time.Duration `mapstructure:"cache_max_age" yaml:"cache_max_age" json:"cache_max_age"`
	RawRegisters    bool          `mapstructure:"raw_registers" yaml:"raw_registers" json:"raw_registers"`

	MQTT    MQTTConfig    `mapstructure:"mqtt" yaml:"mqtt" json:"mqtt"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`
}

// LinkConfig selects the bus transport
type LinkConfig struct {
	URL         string        `mapstructure:"url" yaml:"url" json:"url"`
	Baud        int           `mapstructure:"baud" yaml:"baud" json:"baud"`
	Username    string        `mapstructure:"username" yaml:"username" json:"username"`
	NoSSLVerify bool          `mapstructure:"no_ssl_verify" yaml:"no_ssl_verify" json:"no_ssl_verify"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout" json:"dial_timeout"`
}

// AddressConfig holds the hard and soft addresses of both ends
type AddressConfig struct {
	ControllerHard int `mapstructure:"controller_hard" yaml:"controller_hard" json:"controller_hard"`
	ControllerSoft int `mapstructure:"controller_soft" yaml:"controller_soft" json:"controller_soft"`
	DeviceHard     int `mapstructure:"device_hard" yaml:"device_hard" json:"device_hard"`
	DeviceSoft     int `mapstructure:"device_soft" yaml:"device_soft" json:"device_soft"`
}

// MQTTConfig configures the broker connection
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Host        string `mapstructure:"host" yaml:"host" json:"host"`
	Port        int    `mapstructure:"port" yaml:"port" json:"port"`
	User        string `mapstructure:"user" yaml:"user" json:"user"`
	Password    string `mapstructure:"password" yaml:"-" json:"-"`
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix" json:"topic_prefix"`
	ClientID    string `mapstructure:"client_id" yaml:"client_id" json:"client_id"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen" json:"listen"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Link: LinkConfig{
			Baud:        link.DefaultBaud,
			DialTimeout: link.DefaultDialTimeout,
		},
		Mode: poller.ModeActive.String(),
		Addresses: AddressConfig{
			ControllerHard: geco.DefaultControllerHard,
			ControllerSoft: geco.DefaultControllerSoft,
			DeviceHard:     geco.DefaultDeviceHard,
			DeviceSoft:     geco.DefaultDeviceSoft,
		},
		PollInterval:    poller.DefaultPollInterval,
		ResponseTimeout: session.DefaultResponseTimeout,
		OperationPause:  poller.DefaultOperationPause,
		RequestGap:      poller.DefaultRequestGap,
		CacheMaxAge:     session.DefaultMaxCacheAge,
		MQTT: MQTTConfig{
			Host:        "localhost",
			Port:        1883,
			TopicPrefix: "hewalex",
		},
		Metrics: MetricsConfig{
			Listen: ":9110",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// setDefaults registers every key with viper so env overrides reach Unmarshal
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("link.url", d.Link.URL)
	v.SetDefault("link.baud", d.Link.Baud)
	v.SetDefault("link.username", d.Link.Username)
	v.SetDefault("link.no_ssl_verify", d.Link.NoSSLVerify)
	v.SetDefault("link.dial_timeout", d.Link.DialTimeout)
	v.SetDefault("mode", d.Mode)
	v.SetDefault("addresses.controller_hard", d.Addresses.ControllerHard)
	v.SetDefault("addresses.controller_soft", d.Addresses.ControllerSoft)
	v.SetDefault("addresses.device_hard", d.Addresses.DeviceHard)
	v.SetDefault("addresses.device_soft", d.Addresses.DeviceSoft)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("response_timeout", d.ResponseTimeout)
	v.SetDefault("operation_pause", d.OperationPause)
	v.SetDefault("request_gap", d.RequestGap)
	v.SetDefault("cache_max_age", d.CacheMaxAge)
	v.SetDefault("raw_registers", d.RawRegisters)
	v.SetDefault("mqtt.enabled", d.MQTT.Enabled)
	v.SetDefault("mqtt.host", d.MQTT.Host)
	v.SetDefault("mqtt.port", d.MQTT.Port)
	v.SetDefault("mqtt.user", d.MQTT.User)
	v.SetDefault("mqtt.password", d.MQTT.Password)
	v.SetDefault("mqtt.topic_prefix", d.MQTT.TopicPrefix)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// newViper returns a viper instance with defaults and GECO_ env overrides
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads the config file (if any) into v and returns the validated
// result. Without an explicit file the usual locations are searched and a
// missing file is not an error.
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("gecostat")
		v.AddConfigPath("/etc/gecostat/")
		v.AddConfigPath("$HOME/.config/gecostat")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem with the configuration at once
func (c *Config) Validate() error {
	var errs []error

	if _, err := poller.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.Link.URL == "" {
		errs = append(errs, errors.New("link.url is required (use --url or --port)"))
	} else if _, err := link.Scheme(c.Link.URL); err != nil {
		errs = append(errs, fmt.Errorf("link.url: %w", err))
	}
	if c.Link.Baud <= 0 {
		errs = append(errs, fmt.Errorf("link.baud must be positive, got %d", c.Link.Baud))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.ResponseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("response_timeout must be positive, got %s", c.ResponseTimeout))
	}
	if c.OperationPause < 0 {
		errs = append(errs, fmt.Errorf("operation_pause must not be negative, got %s", c.OperationPause))
	}
	if c.RequestGap < 0 {
		errs = append(errs, fmt.Errorf("request_gap must not be negative, got %s", c.RequestGap))
	}

	for name, addr := range map[string]int{
		"addresses.controller_hard": c.Addresses.ControllerHard,
		"addresses.controller_soft": c.Addresses.ControllerSoft,
		"addresses.device_hard":     c.Addresses.DeviceHard,
		"addresses.device_soft":     c.Addresses.DeviceSoft,
	} {
		if addr < 0 || addr > 0xFF {
			errs = append(errs, fmt.Errorf("%s must be 0-255, got %d", name, addr))
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Host == "" {
			errs = append(errs, errors.New("mqtt.host is required when mqtt is enabled"))
		}
		if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
			errs = append(errs, fmt.Errorf("mqtt.port must be 1-65535, got %d", c.MQTT.Port))
		}
		if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
			errs = append(errs, fmt.Errorf("mqtt.topic_prefix %q is not a valid topic", c.MQTT.TopicPrefix))
		}
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, errors.New("metrics.listen is required when metrics are enabled"))
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Addressing returns the frame addressing for requests from the controller
func (c *Config) Addressing() geco.Addressing {
	return geco.Addressing{
		DstHard: uint8(c.Addresses.DeviceHard),
		SrcHard: uint8(c.Addresses.ControllerHard),
		DstSoft: uint8(c.Addresses.DeviceSoft),
		SrcSoft: uint8(c.Addresses.ControllerSoft),
	}
}

// LinkOptions builds transport options. The password is never part of the
// config file.
func (c *Config) LinkOptions(password string) link.Options {
	return link.Options{
		URL:         c.Link.URL,
		Baud:        c.Link.Baud,
		Username:    c.Link.Username,
		Password:    password,
		NoSSLVerify: c.Link.NoSSLVerify,
		DialTimeout: c.Link.DialTimeout,
	}
}

// SessionConfig returns the session settings
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		Addressing:      c.Addressing(),
		ResponseTimeout: c.ResponseTimeout,
		MaxCacheAge:     c.CacheMaxAge,
	}
}

// PollerConfig returns the poller settings. A configured zero pause or gap
// means no pause.
func (c *Config) PollerConfig() (poller.Config, error) {
	mode, err := poller.ParseMode(c.Mode)
	if err != nil {
		return poller.Config{}, err
	}
	return poller.Config{
		Mode:           mode,
		PollInterval:   c.PollInterval,
		OperationPause: zeroAsNone(c.OperationPause),
		RequestGap:     zeroAsNone(c.RequestGap),
		RawRegisters:   c.RawRegisters,
	}, nil
}

// BrokerConfig returns the MQTT broker settings
func (c *Config) BrokerConfig() bridge.MQTTConfig {
	return bridge.MQTTConfig{
		Host:        c.MQTT.Host,
		Port:        c.MQTT.Port,
		User:        c.MQTT.User,
		Password:    c.MQTT.Password,
		TopicPrefix: c.MQTT.TopicPrefix,
		ClientID:    c.MQTT.ClientID,
	}
}

// zeroAsNone maps a configured 0 to the poller's "no pause" value
func zeroAsNone(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}
