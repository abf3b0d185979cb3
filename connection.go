// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"
	"golang.org/x/net/publicsuffix"

	"github.com/stdchat/ircgateway/config"
)

const (
	rejoinLimit    = 5 // channels remembered for rejoin
	rotateDebounce = 5 // seconds between rotations
)

// Server assigned fallback nicknames, not worth keeping across a reconnect.
var guestNick = regexp.MustCompile(`^Guest\d+$`)

// serverAt returns a copy of the server record. The index must be valid.
func (client *Client) serverAt(index int) config.ServerDefinition {
	if index < 0 || index >= client.servers.Len() {
		panic(fmt.Sprintf("irc: server index %d out of range", index))
	}
	return client.servers.Servers[index]
}

func networkID(host string) string {
	id, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil || id == "" {
		return strings.ToLower(host)
	}
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// requestConnect begins a user connect epoch.
func (client *Client) requestConnect(req ConnectRequest) error {
	if client.phase != PhaseIdle {
		return ErrBusy
	}
	if client.serverIndex < 0 || client.serverIndex >= client.servers.Len() {
		return ErrNoServer
	}
	server := client.serverAt(client.serverIndex)
	if server.Disabled {
		return fmt.Errorf("%w: %s", ErrServerDisabled, server.Name)
	}
	nick := firstNonEmpty(req.Nick, server.Nick)
	if !girc.IsValidNick(nick) {
		return fmt.Errorf("%w: %q", ErrNick, nick)
	}
	client.primaryNick = nick
	client.realName = firstNonEmpty(req.RealName, server.Real, nick)
	client.userMode = firstNonEmpty(req.UserMode, server.Modes)
	client.connectOn = true
	client.connectCount = 0
	client.rejoin = ""
	client.reconnect.cancel()
	client.rotateInhibit.arm(client.timeouts.RotateInhibit)
	client.connect()
	return nil
}

// connect starts one connection attempt on the selected server.
func (client *Client) connect() {
	server := client.serverAt(client.serverIndex)
	client.resetSession()
	client.gen++
	gen := client.gen
	client.server = server
	client.phase = PhaseConnecting
	client.connID = uuid.NewString()
	client.netID = networkID(server.Host)
	client.nick = client.primaryNick
	client.altTried = false
	if server.User == "" {
		client.server.User = client.primaryNick
	}
	client.sasl.reset(server.SaslUsername, server.SaslPassword)
	client.connectWatch.arm(client.timeouts.Connect)
	client.changed = true

	transport := client.transport(server, client.proxy)
	ctx := client.ctx
	socks := client.proxy
	log.Printf("INFO connecting to %s (%s:%d)", server.Name, server.Host, server.Port)
	client.spawn(func() {
		conn, err := transport.Dial(ctx, server, socks)
		secure := transport.Secure()
		client.post(func() { client.onDialed(gen, conn, secure, err) })
	})
}

// resetSession clears everything derived from a previous connection.
func (client *Client) resetSession() {
	client.channels = nil
	client.away = false
	client.userHost = ""
	client.connectHost = ""
	client.userModes = ""
	client.support = defaultSupport.clone()
	client.framer = Framer{}
	client.writeErr = nil
	client.lastPing = 0
}

func (client *Client) onDialed(gen int, conn net.Conn, secure bool, err error) {
	if gen != client.gen || client.phase != PhaseConnecting {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		client.errorCount++
		metricConnectErrors.Inc()
		client.warn(fmt.Sprintf("Unable to connect to %s: %v", client.server.Name, err))
		client.disconnect("connect failed")
		return
	}
	client.conn = conn
	client.secure = secure
	client.connectWatch.cancel()
	if secure {
		client.notice("Securely connected to " + client.server.Name)
	} else {
		client.notice("Connected to " + client.server.Name)
	}
	go client.readLoop(conn, gen)
	client.later(client.timeouts.Settle(), client.register)
	client.changed = true
}

func (client *Client) readLoop(conn net.Conn, gen int) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			client.post(func() {
				if client.gen == gen {
					client.receive(data)
				}
			})
		}
		if err != nil {
			cause := "connection closed"
			if !errors.Is(err, io.EOF) {
				cause = "socket error: " + err.Error()
			}
			client.post(func() {
				if client.gen == gen {
					client.disconnect(cause)
				}
			})
			return
		}
	}
}

// register sends the registration burst.
func (client *Client) register() {
	if client.phase != PhaseConnecting {
		return
	}
	client.phase = PhaseRegistering
	client.sasl.start(client)
	if client.server.Password != "" {
		client.write("PASS", client.server.Password)
	}
	client.write("NICK", client.nick)
	client.writeLine(fmt.Sprintf("USER %s 0 * :%s", client.server.User, client.realName))
	client.registerWatch.start()
	client.changed = true
}

func (client *Client) receive(data []byte) {
	client.activity.reset()
	lines, dropped := client.framer.Feed(data)
	for _, ferr := range dropped {
		log.Printf("WARN dropped line from server: %v", ferr)
		metricDropped.WithLabelValues(ferr.Reason).Inc()
	}
	gen := client.gen
	for _, line := range lines {
		if client.gen != gen {
			return
		}
		client.handleLine(line)
	}
}

// registrationFailed ends the epoch; retrying would fail the same way.
func (client *Client) registrationFailed(reason string) {
	client.errorCount++
	metricConnectErrors.Inc()
	client.warn(reason)
	client.connectOn = false
	client.reconnect.cancel()
	client.disconnect("registration failed")
}

// disconnect tears the connection down. Every teardown path ends here.
func (client *Client) disconnect(cause string) {
	if client.phase == PhaseIdle {
		return
	}
	client.phase = PhaseDisconnecting
	if client.conn != nil {
		client.conn.Close()
		client.conn = nil
	}
	client.gen++
	client.writeErr = nil
	client.notice("Disconnected from " + client.server.Name + ": " + cause)

	if client.connectOn && client.rejoin == "" {
		client.rejoin = strings.Join(client.joinedChannels(rejoinLimit), ",")
	}
	if client.nick != client.primaryNick &&
		(client.cm().Equal(client.nick, client.server.AltNick) || guestNick.MatchString(client.nick)) {
		client.nick = client.primaryNick
	}
	for _, channel := range client.channels {
		channel.joined = false
		channel.clear()
	}
	client.away = false
	client.userHost = ""
	client.connectHost = ""
	client.userModes = ""
	client.connectWatch.cancel()
	client.registerWatch.stop()
	client.activity.stop()
	client.pingInterval.stop()
	client.pingAwait.stop()
	client.recovery.cancel()
	client.sasl.reset("", "")
	client.framer = Framer{}
	client.secure = false
	client.phase = PhaseIdle
	client.changed = true

	if client.server.Reconnect && client.connectOn && client.connectCount > 0 {
		if !client.reconnect.active() {
			client.reconnect.arm(client.timeouts.Connect)
		}
		client.maybeRotate()
	}
}

// maybeRotate moves to the next server of the group when allowed.
func (client *Client) maybeRotate() {
	if client.rotateDebounce.active() || client.rotateInhibit.active() {
		return
	}
	if client.serverIndex < 0 || client.serverIndex >= client.servers.Len() {
		return
	}
	current := client.servers.Servers[client.serverIndex]
	if !current.Rotates() || client.servers.GroupMembers(current.Group) < 2 {
		return
	}
	next := client.servers.NextInGroup(client.serverIndex)
	if next < 0 || next == client.serverIndex {
		return
	}
	client.serverIndex = next
	client.rotateDebounce.arm(rotateDebounce)
	client.rotateInhibit.arm(client.timeouts.RotateInhibit)
	metricRotations.Inc()
	client.notice("Rotating to server " + client.servers.Servers[next].Name)
}

func (client *Client) requestDisconnect() error {
	client.connectOn = false
	client.reconnect.cancel()
	if client.phase == PhaseIdle {
		client.rejoin = ""
		client.changed = true
		return nil
	}
	if client.phase == PhaseRegistered {
		client.write("QUIT", client.version)
	}
	client.disconnect("disconnect requested")
	client.rejoin = ""
	return nil
}

// shutdown is the last event before Run returns.
func (client *Client) shutdown() {
	client.connectOn = false
	client.reconnect.cancel()
	if client.phase == PhaseRegistered {
		client.write("QUIT", client.version)
	}
	client.disconnect("shutting down")
}

// quitting follows a user QUIT: the server should close the socket, or
// the fallback does.
func (client *Client) quitting() {
	client.phase = PhaseDisconnecting
	client.changed = true
	client.later(quitWait, func() { client.disconnect("quit") })
}

// tick advances every watchdog and scheduler by one second.
func (client *Client) tick() {
	if client.connectWatch.tick() && client.phase == PhaseConnecting {
		client.errorCount++
		metricConnectErrors.Inc()
		client.warn("Timeout connecting to " + client.server.Name)
		client.disconnect("connect timeout")
	}
	switch client.phase {
	case PhaseRegistering:
		if client.registerWatch.tick() > client.timeouts.Register {
			client.errorCount++
			metricConnectErrors.Inc()
			client.warn("Timeout registering with " + client.server.Name)
			client.disconnect("registration timeout")
		}
	case PhaseRegistered:
		client.tickLiveness()
	}
	if client.recovery.tick() {
		client.recoverNick()
	}
	client.rotateDebounce.tick()
	client.rotateInhibit.tick()
	client.tickReconnect()
}

func (client *Client) tickLiveness() {
	if client.activity.tick() > client.timeouts.Activity {
		client.warn("No data received from server")
		client.disconnect("activity timeout")
		return
	}
	if client.pingAwait.running {
		if client.pingAwait.tick() > client.timeouts.PingTimeout {
			client.warn("Server did not answer PING")
			client.disconnect("ping timeout")
		}
		return
	}
	if client.pingInterval.tick() >= client.timeouts.PingInterval {
		client.sendPing()
	}
}

func (client *Client) sendPing() {
	target := firstNonEmpty(client.connectHost, client.server.Host)
	client.pingInterval.stop()
	client.pingAwait.start()
	client.pingSent = client.now()
	client.write("PING", target)
}

func (client *Client) gotPong() {
	if !client.pingAwait.running {
		return
	}
	client.pingAwait.stop()
	client.pingInterval.start()
	client.lastPing = client.now().Sub(client.pingSent)
	metricPingRTT.Set(client.lastPing.Seconds())
	client.changed = true
}

func (client *Client) tickReconnect() {
	if !client.reconnect.active() {
		return
	}
	client.reconnect.tick()
	if client.phase != PhaseIdle {
		return
	}
	if !client.connectOn {
		client.reconnect.cancel()
		return
	}
	if client.reconnect.exceeded() {
		client.reconnect.cancel()
		client.connectOn = false
		client.warn("Auto-reconnect exceeded, giving up")
		client.changed = true
		return
	}
	if client.reconnect.due() {
		if client.serverIndex < 0 || client.serverIndex >= client.servers.Len() {
			client.reconnect.cancel()
			return
		}
		metricReconnects.Inc()
		client.notice("Reconnecting to " + client.servers.Servers[client.serverIndex].Name)
		client.connect()
	}
}

func (client *Client) useServer(index int) {
	if index != client.serverIndex {
		client.channels = nil
	}
	client.serverIndex = index
	client.rejoin = ""
	client.reconnect.cancel()
	client.changed = true
}

func (client *Client) selectServer(index int) error {
	if client.phase != PhaseIdle {
		return ErrBusy
	}
	if index < 0 || index >= client.servers.Len() {
		return ErrNoServer
	}
	client.useServer(index)
	return nil
}

func (client *Client) cycleServer(dir int) error {
	if client.phase != PhaseIdle {
		return ErrBusy
	}
	n := client.servers.Len()
	if n == 0 {
		return ErrNoServer
	}
	if dir >= 0 {
		dir = 1
	} else {
		dir = -1
	}
	start := client.serverIndex
	if start < 0 {
		start = 0
	}
	for step := 1; step <= n; step++ {
		i := ((start+dir*step)%n + n) % n
		if !client.servers.Servers[i].Disabled {
			client.useServer(i)
			return nil
		}
	}
	return ErrNoServer
}

func (client *Client) pruneChannel(name string) error {
	channel := client.getChannel(name)
	if channel == nil {
		return fmt.Errorf("%w: %s", ErrNoChannel, name)
	}
	if channel.joined {
		return fmt.Errorf("%w: %s", ErrChannelJoined, name)
	}
	client.removeChannel(channel)
	client.changed = true
	return nil
}
