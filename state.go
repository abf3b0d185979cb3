// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"github.com/stdchat/ircgateway/cache"
)

// ChannelState is one channel as reported to the browser.
type ChannelState struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"csName"`
	Topic       string   `json:"topic"`
	Names       []string `json:"names"`
	Joined      bool     `json:"joined"`
	Kicked      bool     `json:"kicked"`
}

type StateTimes struct {
	ProgramRun int64 `json:"programRun"`
	IRCConnect int64 `json:"ircConnect"`
}

type StateCounts struct {
	IRCConnect      int `json:"ircConnect"`
	IRCConnectError int `json:"ircConnectError"`
	IRCStateCalls   int `json:"ircStateCalls"`
}

// StateSnapshot is the JSON state document polled by the browser.
type StateSnapshot struct {
	ConnectOn     bool   `json:"ircConnectOn"`
	Connecting    bool   `json:"ircConnecting"`
	Connected     bool   `json:"ircConnected"`
	Registered    bool   `json:"ircRegistered"`
	Phase         string `json:"phase"`
	IsAway        bool   `json:"ircIsAway"`
	AutoReconnect bool   `json:"ircAutoReconnect"`
	Reconnecting  bool   `json:"ircReconnectActive"`
	LastPing      int64  `json:"lastPing"` // milliseconds

	ServerName          string `json:"ircServerName"`
	ServerHost          string `json:"ircServerHost"`
	ServerPort          int    `json:"ircServerPort"`
	TLSEnabled          bool   `json:"ircTLSEnabled"`
	TLSVerify           bool   `json:"ircTLSVerify"`
	ProxyEnabled        bool   `json:"ircProxy"`
	ServerIndex         int    `json:"ircServerIndex"`
	ServerGroup         int    `json:"ircServerGroup"`
	ServerRotateInhibit bool   `json:"ircServerRotateInhibit"`
	ServerCount         int    `json:"ircServerCount"`
	Secure              bool   `json:"ircSecure"`
	NetworkID           string `json:"networkId"`
	ConnID              string `json:"connId"`

	NickName           string `json:"nickName"`
	PrimaryNick        string `json:"primaryNick"`
	RealName           string `json:"realName"`
	UserMode           string `json:"userMode"`
	UserHost           string `json:"userHost"`
	ConnectHost        string `json:"connectHost"`
	NickRecoveryActive bool   `json:"nickRecoveryActive"`

	Channels      []string          `json:"channels"`
	ChannelStates []ChannelState    `json:"channelStates"`
	Support       map[string]string `json:"isupport"`

	Times          StateTimes  `json:"times"`
	Count          StateCounts `json:"count"`
	WebsocketCount int         `json:"websocketCount"`
	Cache          cache.Info  `json:"cache"`
	ProgVersion    string      `json:"progVersion"`
}

func (client *Client) snapshot() StateSnapshot {
	client.stateCalls++
	server := client.server
	if client.phase == PhaseIdle && client.serverIndex >= 0 && client.serverIndex < client.servers.Len() {
		server = client.servers.Servers[client.serverIndex]
	}
	snap := StateSnapshot{
		ConnectOn:     client.connectOn,
		Connecting:    client.phase == PhaseConnecting || client.phase == PhaseRegistering,
		Connected:     client.conn != nil,
		Registered:    client.phase == PhaseRegistered,
		Phase:         client.phase.String(),
		IsAway:        client.away,
		AutoReconnect: server.Reconnect,
		Reconnecting:  client.reconnect.active(),
		LastPing:      client.lastPing.Milliseconds(),

		ServerName:          server.Name,
		ServerHost:          server.Host,
		ServerPort:          server.Port,
		TLSEnabled:          server.TLS,
		TLSVerify:           server.Verify,
		ProxyEnabled:        server.Proxy && client.proxy.Enabled(),
		ServerIndex:         client.serverIndex,
		ServerGroup:         server.Group,
		ServerRotateInhibit: client.rotateInhibit.active(),
		ServerCount:         client.servers.Len(),
		Secure:              client.secure,
		NetworkID:           client.netID,
		ConnID:              client.connID,

		NickName:           client.nick,
		PrimaryNick:        client.primaryNick,
		RealName:           client.realName,
		UserMode:           client.userModes,
		UserHost:           client.userHost,
		ConnectHost:        client.connectHost,
		NickRecoveryActive: client.recovery.active,

		Channels:      []string{},
		ChannelStates: []ChannelState{},
		Support:       client.support.clone(),

		Times: StateTimes{
			ProgramRun: client.startTime.Unix(),
		},
		Count: StateCounts{
			IRCConnect:      client.connectCount,
			IRCConnectError: client.errorCount,
			IRCStateCalls:   client.stateCalls,
		},
		WebsocketCount: client.browser.ConnectionCount(),
		Cache:          client.cache.Info(),
		ProgVersion:    client.version,
	}
	if !client.connectTime.IsZero() {
		snap.Times.IRCConnect = client.connectTime.Unix()
	}
	if snap.NickName == "" {
		snap.NickName = server.Nick
	}
	for _, channel := range client.channels {
		snap.Channels = append(snap.Channels, channel.name)
		snap.ChannelStates = append(snap.ChannelStates, ChannelState{
			Name:        channel.name,
			DisplayName: channel.displayName,
			Topic:       channel.topic,
			Names:       channel.names(),
			Joined:      channel.joined,
			Kicked:      channel.kicked,
		})
	}
	return snap
}
