// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Timeouts are the engine's watchdog and scheduler limits, in seconds
// unless the name says otherwise.
type Timeouts struct {
	Connect       int `yaml:"connect" toml:"connect" json:"connect" env:"GATEWAY_CONNECT_TIMEOUT" validate:"gte=1"`
	Register      int `yaml:"register" toml:"register" json:"register" env:"GATEWAY_REGISTER_TIMEOUT" validate:"gte=1"`
	Activity      int `yaml:"activity" toml:"activity" json:"activity" env:"GATEWAY_ACTIVITY_TIMEOUT" validate:"gte=1"`
	PingInterval  int `yaml:"ping_interval" toml:"ping_interval" json:"ping_interval" env:"GATEWAY_PING_INTERVAL" validate:"gte=1"`
	PingTimeout   int `yaml:"ping_timeout" toml:"ping_timeout" json:"ping_timeout" env:"GATEWAY_PING_TIMEOUT" validate:"gte=1"`
	RotateInhibit int `yaml:"rotate_inhibit" toml:"rotate_inhibit" json:"rotate_inhibit" env:"GATEWAY_ROTATE_INHIBIT" validate:"gte=0"`
	SettleMillis  int `yaml:"settle_ms" toml:"settle_ms" json:"settle_ms" env:"GATEWAY_SETTLE_MS" validate:"gte=0"`
}

// Settle is the pause between transport connect and the registration burst.
func (t Timeouts) Settle() time.Duration {
	return time.Duration(t.SettleMillis) * time.Millisecond
}

// Proxy is the SOCKS5 proxy used by servers that have the proxy flag.
type Proxy struct {
	Host     string `yaml:"host" toml:"host" json:"host" env:"GATEWAY_SOCKS5_HOST"`
	Port     int    `yaml:"port" toml:"port" json:"port" env:"GATEWAY_SOCKS5_PORT" validate:"gte=0,lte=65535"`
	Username string `yaml:"username" toml:"username" json:"username" env:"GATEWAY_SOCKS5_USERNAME"`
	Password string `yaml:"password" toml:"password" json:"password" env:"GATEWAY_SOCKS5_PASSWORD"`
}

// Enabled reports whether a proxy host is configured.
func (p Proxy) Enabled() bool {
	return p.Host != ""
}

// Settings holds the gateway process configuration.
type Settings struct {
	Listen     string   `yaml:"listen" toml:"listen" json:"listen" env:"GATEWAY_LISTEN" validate:"required"`
	ServerList string   `yaml:"server_list" toml:"server_list" json:"server_list" env:"GATEWAY_SERVER_LIST" validate:"required"`
	CacheLines int      `yaml:"cache_lines" toml:"cache_lines" json:"cache_lines" env:"GATEWAY_CACHE_LINES" validate:"gte=10"`
	CacheDB    string   `yaml:"cache_db" toml:"cache_db" json:"cache_db" env:"GATEWAY_CACHE_DB"`
	Verbose    bool     `yaml:"verbose" toml:"verbose" json:"verbose" env:"GATEWAY_VERBOSE"`
	Version    string   `yaml:"version" toml:"version" json:"version" env:"GATEWAY_VERSION"`
	Proxy      Proxy    `yaml:"socks5" toml:"socks5" json:"socks5"`
	Timeouts   Timeouts `yaml:"timeouts" toml:"timeouts" json:"timeouts"`

	// Source is the file the settings were read from, if any.
	Source string `yaml:"-" toml:"-" json:"-"`
}

// DefaultTimeouts returns the standard watchdog limits.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect:       10,
		Register:      50,
		Activity:      300,
		PingInterval:  60,
		PingTimeout:   30,
		RotateInhibit: 90,
		SettleMillis:  500,
	}
}

// DefaultSettings returns settings usable without any file or environment.
func DefaultSettings() Settings {
	return Settings{
		Listen:     "127.0.0.1:3003",
		ServerList: "servers.yaml",
		CacheLines: 100,
		Version:    "ircgateway 1.0",
		Timeouts:   DefaultTimeouts(),
	}
}

// LoadSettings loads the defaults, then the optional file at source,
// then a .env file in the working directory, then environment overrides.
func LoadSettings(source string) (*Settings, error) {
	cfg := DefaultSettings()
	if source != "" {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
		if err := unmarshalByExt(source, data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
		cfg.Source = source
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	applyEnvOverrides(&cfg)
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New()

// unmarshalByExt picks a decoder from the file extension; YAML is the default.
func unmarshalByExt(source string, data []byte, v interface{}) error {
	switch {
	case strings.HasSuffix(source, ".toml"):
		return toml.Unmarshal(data, v)
	case strings.HasSuffix(source, ".json"):
		return json.Unmarshal(data, v)
	default:
		return yaml.Unmarshal(data, v)
	}
}

func applyEnvOverrides(cfg *Settings) {
	applyEnvOverridesRecursive(reflect.ValueOf(cfg).Elem())
}

func applyEnvOverridesRecursive(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)
		if field.PkgPath != "" {
			continue
		}
		if envTag := field.Tag.Get("env"); envTag != "" {
			if envValue, exists := os.LookupEnv(envTag); exists {
				setFieldFromEnv(fieldValue, envValue)
			}
		} else if field.Type.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(fieldValue)
		}
	}
}

func setFieldFromEnv(field reflect.Value, envValue string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v, err := strconv.ParseInt(strings.TrimSpace(envValue), 10, 64); err == nil {
			field.SetInt(v)
		}
	case reflect.Bool:
		switch strings.ToLower(strings.TrimSpace(envValue)) {
		case "1", "true", "yes", "y", "on":
			field.SetBool(true)
		default:
			field.SetBool(false)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			values := strings.Split(envValue, ",")
			slice := reflect.MakeSlice(field.Type(), len(values), len(values))
			for i, v := range values {
				slice.Index(i).SetString(strings.TrimSpace(v))
			}
			field.Set(slice)
		}
	}
}
