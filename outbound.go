// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"fmt"
	"strings"
)

type outboundAction int

const (
	outboundSend outboundAction = iota
	outboundEcho                // also show it locally, the server will not
	outboundQuit
)

func rejected(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// sendMessage validates, interprets and sends a line typed by the user.
func (client *Client) sendMessage(text string) error {
	text = strings.TrimRight(text, "\r\n")
	if client.conn == nil || (client.phase != PhaseRegistering && client.phase != PhaseRegistered) {
		return ErrNotConnected
	}
	if err := checkLine(text); err != nil {
		return err
	}
	msg := ParseMessage(text)
	if msg.Command == "" || msg.Prefix != "" {
		return rejected("not an IRC command")
	}
	action, err := client.interpret(msg)
	if err != nil {
		return err
	}
	if err := client.writeLine(text); err != nil {
		return err
	}
	switch action {
	case outboundEcho:
		client.deliver(":" + client.nick + "!*@* " + strings.ToUpper(msg.Command) + " " + msg.Params[0] + " :" + msg.Params[1])
	case outboundQuit:
		client.quitting()
	}
	return nil
}

// interpret applies the client side effects of an outbound command, or
// rejects it.
func (client *Client) interpret(msg *Message) (outboundAction, error) {
	switch strings.ToUpper(msg.Command) {
	case "JOIN":
		target := msg.Param(0)
		if len(target) < 2 {
			return 0, rejected("JOIN needs a channel name")
		}
		names := strings.Split(target, ",")
		for _, name := range names {
			if channel := client.getChannel(name); channel != nil && channel.joined {
				return 0, rejected("already in channel %s", name)
			}
		}
		// Fresh NAMES will follow the join.
		for _, name := range names {
			if channel := client.getChannel(name); channel != nil {
				channel.members = nil
			}
		}

	case "NAMES":
		if channel := client.getChannel(msg.Param(0)); channel != nil {
			channel.members = nil
		}

	case "PRIVMSG", "NOTICE":
		if len(msg.Params) < 2 || msg.Params[0] == "" {
			return 0, rejected("%s needs a target and text", msg.Command)
		}
		target := msg.Params[0]
		if client.support.isChannel(target) {
			channel := client.getChannel(target)
			if channel == nil || !channel.joined {
				return 0, rejected("not in channel %s", target)
			}
			return outboundEcho, nil
		}
		if strings.IndexByte(target, ',') != -1 || client.support.isNickPrefix(target[0]) {
			return 0, rejected("invalid target %s", target)
		}
		return outboundEcho, nil

	case "QUIT":
		client.connectOn = false
		client.reconnect.cancel()
		client.rejoin = ""
		return outboundQuit, nil
	}
	return outboundSend, nil
}
