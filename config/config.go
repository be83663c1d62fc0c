// Package config loads the switch inventory of the daemon from a YAML file,
// a .env overlay and SWITCHCTL_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/nanoncore/nano-switchctrl/model"
	"github.com/nanoncore/nano-switchctrl/types"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "SWITCHCTL"

// Defaults are applied to every switch entry that leaves the field unset
type Defaults struct {
	Username      string              `mapstructure:"username"`
	Password      string              `mapstructure:"password"`
	Transport     types.TransportKind `mapstructure:"transport"`
	SNMPCommunity string              `mapstructure:"snmp_community"`
}

// Config is the daemon configuration
type Config struct {
	LogLevel    string `mapstructure:"log_level"`
	Development bool   `mapstructure:"development"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	Defaults Defaults             `mapstructure:"defaults"`
	Switches []types.SwitchConfig `mapstructure:"switches"`
}

// Switch returns the entry named name
func (c *Config) Switch(name string) (*types.SwitchConfig, bool) {
	for i := range c.Switches {
		if c.Switches[i].Name == name {
			return &c.Switches[i], true
		}
	}
	return nil, false
}

// envKeys are the scalar settings that can be overridden from the environment
var envKeys = []string{
	"log_level",
	"development",
	"metrics_addr",
	"defaults.username",
	"defaults.password",
	"defaults.transport",
	"defaults.snmp_community",
}

// Load reads the configuration file at path. Each envFile is loaded into the
// process environment first when it exists; variables already set win.
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", ":9100")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		portHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finish applies defaults and validates every switch entry
func (c *Config) finish() error {
	seen := make(map[string]bool, len(c.Switches))
	for i := range c.Switches {
		sw := &c.Switches[i]
		if sw.Name == "" {
			return fmt.Errorf("switch #%d has no name", i+1)
		}
		if seen[sw.Name] {
			return fmt.Errorf("switch %q is defined twice", sw.Name)
		}
		seen[sw.Name] = true

		if sw.Vendor == "" {
			return fmt.Errorf("switch %q has no vendor", sw.Name)
		}
		if sw.Address == "" && sw.Vendor != types.VendorMock {
			return fmt.Errorf("switch %q has no address", sw.Name)
		}

		if sw.Username == "" {
			sw.Username = c.Defaults.Username
		}
		if sw.Password == "" {
			sw.Password = c.Defaults.Password
		}
		if sw.Transport == "" {
			sw.Transport = c.Defaults.Transport
		}
		if sw.SNMPCommunity == "" {
			sw.SNMPCommunity = c.Defaults.SNMPCommunity
		}
		sw.ApplyDefaults()

		if sw.MinVLAN <= types.VLANDefault || sw.MinVLAN > sw.MaxVLAN || sw.MaxVLAN > types.VLANMax {
			return fmt.Errorf("switch %q: VLAN range %d-%d is invalid", sw.Name, sw.MinVLAN, sw.MaxVLAN)
		}
	}
	return nil
}

// portHook decodes "module/slot/port" strings into unified ports
func portHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(model.Port(0)) {
		return data, nil
	}
	return model.ParsePort(data.(string))
}
