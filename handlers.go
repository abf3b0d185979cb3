// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"fmt"
	"log"
	"strings"
)

// handleLine processes one complete line from the server.
func (client *Client) handleLine(line string) {
	if client.Verbose {
		log.Printf("<- %s", line)
	}
	metricLines.WithLabelValues("in").Inc()
	msg := ParseMessage(line)
	if msg.Command == "" {
		log.Printf("WARN unable to parse line from server: %q", line)
		return
	}
	// Keepalive traffic is answered here and never shown.
	switch msg.Command {
	case "PING":
		client.writeLine("PONG :" + msg.Trailing())
		return
	case "PONG":
		client.gotPong()
		return
	}
	client.deliver(line)
	client.ircEvent(msg)
}

func (client *Client) ircEvent(msg *Message) {
	switch msg.Command {
	case RPL_WELCOME:
		if client.phase == PhaseRegistering {
			client.welcome(msg)
		}

	case RPL_ISUPPORT:
		if len(msg.Params) > 1 {
			client.support.apply(msg.Params[1:])
			client.changed = true
		}

	case RPL_UMODEIS:
		client.userModes = applyUserModes("", msg.Param(1))
		client.changed = true

	case RPL_UNAWAY, RPL_NOWAWAY:
		client.away = msg.Command == RPL_NOWAWAY
		client.changed = true

	case "CAP":
		client.sasl.handleCap(client, msg)

	case "AUTHENTICATE":
		client.sasl.handleAuthenticate(client, msg)

	case RPL_LOGGEDIN, RPL_LOGGEDOUT, ERR_NICKLOCKED, RPL_SASLSUCCESS, ERR_SASLFAIL,
		ERR_SASLTOOLONG, ERR_SASLABORTED, ERR_SASLALREADY, RPL_SASLMECHS:
		client.sasl.handleNumeric(client, msg)

	case ERR_ERRONEUSNICKNAME, ERR_NICKNAMEINUSE, ERR_UNAVAILRESOURCE:
		client.nickRejected(msg)

	case ERR_NOTREGISTERED:
		if client.phase == PhaseRegistering {
			client.registrationFailed("Server rejected registration: " + msg.Trailing())
		}

	case "JOIN":
		name := msg.Param(0)
		if name == "" {
			return
		}
		channel := client.ensureChannel(name)
		if client.isMe(msg.Nick) {
			channel.clear()
			channel.joined = true
			channel.kicked = false
			channel.displayName = name
			if _, userHost, ok := strings.Cut(msg.Prefix, "!"); ok && client.userHost == "" {
				client.userHost = userHost
			}
		} else if channel.joined {
			channel.addMember(client.cm(), Member{Nick: msg.Nick})
		}
		client.changed = true

	case "PART":
		if channel := client.getChannel(msg.Param(0)); channel != nil {
			if client.isMe(msg.Nick) {
				channel.leave(false)
			} else {
				channel.removeMember(client.cm(), msg.Nick)
			}
			client.changed = true
		}

	case "KICK":
		if channel := client.getChannel(msg.Param(0)); channel != nil {
			if client.isMe(msg.Param(1)) {
				channel.leave(true)
				client.notice(fmt.Sprintf("Kicked from %s by %s: %s", channel.displayName, msg.Nick, msg.Param(2)))
			} else {
				channel.removeMember(client.cm(), msg.Param(1))
			}
			client.changed = true
		}

	case "QUIT":
		if client.isMe(msg.Nick) {
			return // the socket close follows
		}
		if client.recovery.active && client.cm().Equal(msg.Nick, client.primaryNick) {
			client.recoverNick()
		}
		for _, channel := range client.channels {
			channel.removeMember(client.cm(), msg.Nick)
		}
		client.changed = true

	case "NICK":
		oldNick, newNick := msg.Nick, msg.Param(0)
		if newNick == "" {
			return
		}
		if client.isMe(oldNick) {
			client.nick = newNick
			if _, userHost, ok := strings.Cut(msg.Prefix, "!"); ok && client.userHost == "" {
				client.userHost = userHost
			}
			client.selfNickChanged()
		}
		for _, channel := range client.channels {
			channel.renameMember(client.cm(), oldNick, newNick)
		}
		client.changed = true

	case "MODE":
		target := msg.Param(0)
		if client.support.isChannel(target) {
			client.channelModes(msg)
		} else if client.isMe(target) {
			client.userModes = applyUserModes(client.userModes, msg.Param(1))
			client.changed = true
		}

	case "TOPIC":
		if channel := client.getChannel(msg.Param(0)); channel != nil {
			channel.topic = msg.Param(1)
			client.changed = true
		}

	case RPL_TOPIC:
		if channel := client.getChannel(msg.Param(1)); channel != nil {
			channel.topic = msg.Param(2)
			client.changed = true
		}

	case RPL_NOTOPIC:
		if channel := client.getChannel(msg.Param(1)); channel != nil {
			channel.topic = ""
			client.changed = true
		}

	case RPL_NAMREPLY:
		// :server 353 me = #chan :@op +voice user
		if len(msg.Params) < 4 {
			return
		}
		name := msg.Params[2]
		channel := client.ensureChannel(name)
		channel.displayName = name
		for _, entry := range strings.Fields(msg.Params[3]) {
			prefixes, nick := client.support.splitNickPrefixes(entry)
			nick, _, _ = strings.Cut(nick, "!")
			if nick != "" {
				channel.addMember(client.cm(), Member{Prefixes: prefixes, Nick: nick})
			}
		}
		client.changed = true

	case "PRIVMSG":
		if ctcp, args, ok := parseCTCP(msg.Param(1)); ok && ctcp != "ACTION" {
			client.ctcpReply(msg.Nick, ctcp, args)
		}

	case "ERROR":
		log.Printf("INFO server closing link: %s", msg.Trailing())
	}
}

// welcome completes registration on 001.
func (client *Client) welcome(msg *Message) {
	nick := msg.Param(0)
	userHost := ""
	// Welcome to the Internet Relay Network nick!user@host
	if words := strings.Fields(msg.Trailing()); len(words) > 0 {
		if n, uh, ok := strings.Cut(words[len(words)-1], "!"); ok {
			nick, userHost = n, uh
		}
	}
	if !client.cm().Equal(nick, client.nick) {
		client.registrationFailed(fmt.Sprintf("Welcome for nickname %s, expected %s", nick, client.nick))
		return
	}
	server := client.server
	client.nick = nick
	client.userHost = userHost
	client.registerWatch.stop()
	client.phase = PhaseRegistered
	client.connectHost = msg.Prefix
	client.connectTime = client.now()
	prior := client.connectCount
	client.connectCount++
	metricConnects.Inc()
	client.reconnect.cancel()
	client.activity.start()
	client.pingInterval.start()
	client.pingAwait.stop()
	client.sasl.welcome(client)
	client.notice("Registered with " + server.Name + " as " + nick)

	if mode := client.userMode; mode != "" {
		client.later(modeDelay, func() { client.write("MODE", client.nick, mode) })
	}
	client.identify()
	if prior > 0 {
		if rejoin := client.rejoin; rejoin != "" {
			client.rejoin = ""
			client.later(joinDelay, func() { client.write("JOIN", rejoin) })
		}
	} else if len(server.Channels) > 0 {
		list := strings.Join(server.Channels, ",")
		client.later(joinDelay, func() { client.write("JOIN", list) })
	}
	if server.RecoverNick && server.AltNick != "" && client.cm().Equal(nick, server.AltNick) {
		client.recovery.start()
		client.notice("Using alternate nickname " + nick + ", will try to recover " + client.primaryNick)
	}
	client.changed = true
}

// identify schedules the configured services login for the live nickname.
func (client *Client) identify() {
	server := client.server
	if server.IdentifyCommand == "" {
		return
	}
	if server.IdentifyNick != "" && !client.cm().Equal(client.nick, server.IdentifyNick) {
		return
	}
	command := server.IdentifyCommand
	client.later(identifyDelay, func() { client.writeLine(command) })
}

// nickRejected handles 432, 433 and 437.
func (client *Client) nickRejected(msg *Message) {
	switch client.phase {
	case PhaseRegistering:
		alt := client.server.AltNick
		if alt != "" && !client.altTried && !client.cm().Equal(client.nick, alt) {
			client.altTried = true
			client.notice(fmt.Sprintf("Nickname %s unavailable, trying %s", client.nick, alt))
			client.nick = alt
			client.write("NICK", alt)
			client.changed = true
			return
		}
		client.registrationFailed(fmt.Sprintf("Nickname %s unavailable: %s", client.nick, msg.Trailing()))

	case PhaseRegistered:
		if msg.Command == ERR_ERRONEUSNICKNAME || !client.recovery.active {
			return
		}
		if !client.recovery.rejected() {
			log.Printf("INFO nickname recovery stopped after an unrelated nickname change")
			client.changed = true
		}
	}
}

// recoverNick asks for the primary nickname again, or gives up.
func (client *Client) recoverNick() {
	if !client.recovery.attempt() {
		client.notice("Giving up recovering nickname " + client.primaryNick)
		client.changed = true
		return
	}
	client.write("NICK", client.primaryNick)
}

func (client *Client) selfNickChanged() {
	if client.cm().Equal(client.nick, client.primaryNick) {
		if client.recovery.active {
			client.recovery.cancel()
			client.notice("Recovered nickname " + client.nick)
			client.identify()
		}
		return
	}
	if client.recovery.active && !client.cm().Equal(client.nick, client.server.AltNick) {
		client.recovery.cancel()
	}
}

// channelModes applies rank changes such as "MODE #chan +ov-v a b c".
func (client *Client) channelModes(msg *Message) {
	channel := client.getChannel(msg.Param(0))
	if channel == nil || !channel.joined {
		return
	}
	_, allPrefixes := client.support.prefix()
	cm := client.cm()
	plus := true
	modes := msg.Param(1)
	imodeparam := 2
	for i := 0; i < len(modes); i++ {
		mode := modes[i]
		switch mode {
		case '+':
			plus = true
			continue
		case '-':
			plus = false
			continue
		}
		if !client.support.chanModeType(mode).HasArg(plus) {
			continue
		}
		if imodeparam >= len(msg.Params) {
			break
		}
		arg := msg.Params[imodeparam]
		imodeparam++
		prefix := client.support.nickPrefix(mode)
		if prefix == 0 {
			continue
		}
		if j := channel.indexOf(cm, arg); j != -1 {
			member := &channel.members[j]
			if plus {
				member.Prefixes = insertPrefix(member.Prefixes, prefix, allPrefixes)
			} else {
				member.Prefixes = removePrefix(member.Prefixes, prefix)
			}
		}
	}
	client.changed = true
}

// applyUserModes applies a change like "+iw-x" to the current mode letters.
func applyUserModes(current, change string) string {
	plus := true
	for i := 0; i < len(change); i++ {
		switch ch := change[i]; ch {
		case '+':
			plus = true
		case '-':
			plus = false
		default:
			has := strings.IndexByte(current, ch) != -1
			if plus && !has {
				current += string(ch)
			} else if !plus && has {
				current = strings.ReplaceAll(current, string(ch), "")
			}
		}
	}
	return current
}
