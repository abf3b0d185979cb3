// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"fmt"
	"os"

	"github.com/lrstanley/girc"
)

// ServerListVersion is the only server list document version this build reads.
const ServerListVersion = 2

// ServerDefinition is one IRC server record. It is never modified while a
// connection uses it; reloads replace the whole list.
type ServerDefinition struct {
	Disabled        bool     `yaml:"disabled" toml:"disabled" json:"disabled"`
	Group           int      `yaml:"group" toml:"group" json:"group" validate:"gte=0"`
	Name            string   `yaml:"name" toml:"name" json:"name" validate:"required"`
	URL             string   `yaml:"url" toml:"url" json:"url,omitempty"`
	Host            string   `yaml:"host" toml:"host" json:"host" validate:"required_without=URL"`
	Port            int      `yaml:"port" toml:"port" json:"port" validate:"gte=0,lte=65535"`
	TLS             bool     `yaml:"tls" toml:"tls" json:"tls"`
	Verify          bool     `yaml:"verify" toml:"verify" json:"verify"`
	Proxy           bool     `yaml:"proxy" toml:"proxy" json:"proxy"`
	Reconnect       bool     `yaml:"reconnect" toml:"reconnect" json:"reconnect"`
	Logging         bool     `yaml:"logging" toml:"logging" json:"logging"`
	Password        string   `yaml:"password" toml:"password" json:"password"`
	SaslUsername    string   `yaml:"saslUsername" toml:"saslUsername" json:"saslUsername"`
	SaslPassword    string   `yaml:"saslPassword" toml:"saslPassword" json:"saslPassword"`
	IdentifyNick    string   `yaml:"identifyNick" toml:"identifyNick" json:"identifyNick"`
	IdentifyCommand string   `yaml:"identifyCommand" toml:"identifyCommand" json:"identifyCommand"`
	Nick            string   `yaml:"nick" toml:"nick" json:"nick" validate:"required"`
	AltNick         string   `yaml:"altNick" toml:"altNick" json:"altNick"`
	RecoverNick     bool     `yaml:"recoverNick" toml:"recoverNick" json:"recoverNick"`
	User            string   `yaml:"user" toml:"user" json:"user"`
	Real            string   `yaml:"real" toml:"real" json:"real"`
	Modes           string   `yaml:"modes" toml:"modes" json:"modes"`
	Channels        []string `yaml:"channelList" toml:"channelList" json:"channelList"`
}

// SaslEnabled reports whether both SASL credentials are present.
func (server ServerDefinition) SaslEnabled() bool {
	return server.SaslUsername != "" && server.SaslPassword != ""
}

// Rotates reports whether the server may take part in group rotation.
func (server ServerDefinition) Rotates() bool {
	return !server.Disabled && server.Reconnect && server.Group > 0
}

// ServerList is the persisted server list document.
type ServerList struct {
	ConfigVersion int                `yaml:"configVersion" toml:"configVersion" json:"configVersion"`
	Servers       []ServerDefinition `yaml:"serverArray" toml:"serverArray" json:"serverArray"`

	Source string `yaml:"-" toml:"-" json:"-"`
}

// LoadServerList reads and checks the server list at source. The format is
// picked from the file extension, YAML by default.
func LoadServerList(source string) (*ServerList, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read server list: %w", err)
	}
	list, err := ParseServerList(source, data)
	if err != nil {
		return nil, err
	}
	list.Source = source
	return list, nil
}

// ParseServerList decodes a server list; name only selects the decoder.
// A configVersion other than ServerListVersion is an error, never upgraded.
func ParseServerList(name string, data []byte) (*ServerList, error) {
	list := &ServerList{}
	if err := unmarshalByExt(name, data, list); err != nil {
		return nil, fmt.Errorf("failed to parse server list: %w", err)
	}
	if list.ConfigVersion != ServerListVersion {
		return nil, fmt.Errorf("server list configVersion %d, expected %d",
			list.ConfigVersion, ServerListVersion)
	}
	if err := list.applyDefaults(); err != nil {
		return nil, err
	}
	if err := list.Validate(); err != nil {
		return nil, err
	}
	return list, nil
}

// applyDefaults fills optional fields that older documents leave out.
func (list *ServerList) applyDefaults() error {
	for i := range list.Servers {
		server := &list.Servers[i]
		if server.URL != "" {
			addr, err := ParseAddress(server.URL)
			if err != nil {
				return fmt.Errorf("server %d (%s): %w", i, server.Name, err)
			}
			server.Host = addr.Host
			server.Port = addr.Port
			server.TLS = addr.TLS
			if addr.Join != "" {
				server.Channels = append(server.Channels, addr.Join)
			}
		}
		if server.Port == 0 {
			server.Port = DefaultPort
			if server.TLS {
				server.Port = DefaultTLSPort
			}
		}
		if server.User == "" {
			server.User = server.Nick
		}
		if server.Real == "" {
			server.Real = server.Nick
		}
	}
	return nil
}

// Validate checks every record.
func (list *ServerList) Validate() error {
	for i, server := range list.Servers {
		if err := validate.Struct(server); err != nil {
			return fmt.Errorf("server %d (%s): %w", i, server.Name, err)
		}
		if !girc.IsValidNick(server.Nick) {
			return fmt.Errorf("server %d (%s): invalid nick %q", i, server.Name, server.Nick)
		}
		if server.AltNick != "" && !girc.IsValidNick(server.AltNick) {
			return fmt.Errorf("server %d (%s): invalid altNick %q", i, server.Name, server.AltNick)
		}
	}
	return nil
}

// Len returns the number of records.
func (list *ServerList) Len() int {
	if list == nil {
		return 0
	}
	return len(list.Servers)
}

// GroupMembers counts the rotation-eligible servers in group.
func (list *ServerList) GroupMembers(group int) int {
	n := 0
	for _, server := range list.Servers {
		if server.Rotates() && server.Group == group {
			n++
		}
	}
	return n
}

// NextInGroup returns the index of the next rotation-eligible server after
// index in the same group, wrapping around, or -1.
func (list *ServerList) NextInGroup(index int) int {
	if index < 0 || index >= len(list.Servers) {
		return -1
	}
	group := list.Servers[index].Group
	for step := 1; step < len(list.Servers); step++ {
		i := (index + step) % len(list.Servers)
		if list.Servers[i].Rotates() && list.Servers[i].Group == group {
			return i
		}
	}
	return -1
}
