// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPort    = 6667
	DefaultTLSPort = 6697
)

// Address is a server address taken apart by ParseAddress.
type Address struct {
	Host string
	Port int
	TLS  bool
	Join string // channel named in the URL path, if any.
}

// ParseAddress accepts the short forms used in server list records:
//
//	host = default port
//	host:port = use these.
//	host:+port = use TLS on port.
//	host:+ = use default TLS port.
//	irc://host[:port][/channel]
//	ircs://host[:port][/channel]
func ParseAddress(s string) (Address, error) {
	// https://tools.ietf.org/html/draft-butcher-irc-url-04
	var addr Address
	var scheme, port, path string
	if strings.IndexByte(s, '/') == -1 {
		ilcolon := strings.LastIndexByte(s, ':')
		if strings.LastIndexByte(s, ']') < ilcolon {
			addr.Host = s[:ilcolon]
			port = s[ilcolon+1:]
		} else {
			addr.Host = s
		}
	} else {
		u, err := url.Parse(s)
		if err != nil {
			return addr, err
		}
		scheme = u.Scheme
		addr.Host = u.Hostname()
		port = u.Port()
		path = u.Path
	}
	if addr.Host == "" {
		return addr, errors.New("hostname expected")
	}
	switch scheme {
	case "irc", "":
		if strings.HasPrefix(port, "+") {
			addr.TLS = true
			port = port[1:]
		}
	case "ircs":
		addr.TLS = true
	default:
		return addr, errors.New("unexpected protocol " + scheme)
	}
	switch {
	case port == "" && addr.TLS:
		addr.Port = DefaultTLSPort
	case port == "":
		addr.Port = DefaultPort
	default:
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return addr, errors.New("invalid port " + port)
		}
		addr.Port = n
		// https://tools.ietf.org/html/rfc7194
		if !addr.TLS && scheme == "" {
			addr.TLS = n == DefaultTLSPort
		}
	}
	join := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(join, ','); i != -1 {
		if strings.Contains(join[i:], "isnick") || strings.Contains(join[i:], "isuser") {
			join = ""
		} else {
			join = join[:i]
		}
	}
	if join != "" {
		switch join[0] {
		case '#', '&', '+':
		default:
			join = "#" + join
		}
	}
	addr.Join = join
	return addr, nil
}
