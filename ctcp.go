// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"log"
	"strings"
	"time"
)

// Returns ctcp, args, ok
func parseCTCP(m string) (string, string, bool) {
	if len(m) > 0 && m[0] == 1 {
		m = m[1:]
		if len(m) > 0 && m[len(m)-1] == 1 {
			m = m[:len(m)-1]
		}
		ctcp, cargs, _ := strings.Cut(m, " ")
		return strings.ToUpper(ctcp), cargs, true
	}
	return "", "", false
}

// ctcpReply answers the queries every client is expected to answer.
// Replies are rate limited so a flood of queries cannot get us killed.
func (client *Client) ctcpReply(dest, ctcp, args string) {
	if dest == "" {
		return
	}
	var reply string
	switch ctcp {
	case "VERSION":
		reply = client.version
	case "PING":
		reply = args
	case "TIME":
		reply = client.now().Format(time.RFC1123Z)
	case "CLIENTINFO":
		reply = "ACTION CLIENTINFO PING TIME VERSION"
	default:
		return
	}
	if !client.ctcpLim.Allow() {
		log.Printf("INFO not answering CTCP %s from %s: rate limited", ctcp, dest)
		return
	}
	body := ctcp
	if reply != "" {
		body += " " + reply
	}
	client.write("NOTICE", dest, "\x01"+body+"\x01")
}
