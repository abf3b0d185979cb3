// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"strings"

	"github.com/go-irc/irc"
)

// Message is one parsed IRC protocol line.
// Nick and Host are only set when Prefix has the nick!user@host form.
type Message struct {
	Prefix  string
	Nick    string
	Host    string
	Command string
	Params  []string
}

// Param returns parameter n or an empty string.
func (msg *Message) Param(n int) string {
	if n < len(msg.Params) {
		return msg.Params[n]
	}
	return ""
}

// Trailing returns the last parameter.
func (msg *Message) Trailing() string {
	if len(msg.Params) == 0 {
		return ""
	}
	return msg.Params[len(msg.Params)-1]
}

// String encodes the message back into a protocol line.
func (msg *Message) String() string {
	m := irc.Message{Command: msg.Command, Params: msg.Params}
	if msg.Prefix != "" {
		m.Prefix = irc.ParsePrefix(msg.Prefix)
	}
	return m.String()
}

// ParseMessage parses a delimiter-stripped line. It never fails;
// a line with no command yields an empty Command.
func ParseMessage(line string) *Message {
	msg := &Message{}
	if len(line) > 0 && line[0] == ':' {
		isp := strings.IndexByte(line, ' ')
		if isp == -1 {
			msg.Prefix = line[1:]
			msg.Nick, msg.Host = splitPrefix(msg.Prefix)
			return msg
		}
		msg.Prefix = line[1:isp]
		msg.Nick, msg.Host = splitPrefix(msg.Prefix)
		line = line[isp+1:]
	}
	tokens := tokenize(line)
	if len(tokens) > 0 {
		msg.Command = tokens[0]
	}
	if len(tokens) > 1 {
		msg.Params = tokens[1:]
	}
	return msg
}

func splitPrefix(prefix string) (nick, host string) {
	ibang := strings.IndexByte(prefix, '!')
	iat := strings.IndexByte(prefix, '@')
	if ibang > 0 && iat > ibang {
		return prefix[:ibang], prefix[iat+1:]
	}
	return "", ""
}

type scanState int

const (
	scanTokenStart scanState = iota
	scanInToken
	scanInTrailing
)

// tokenize splits the command and parameters. The first token can never be
// trailing; a zero-length token ends the scan.
func tokenize(s string) []string {
	var tokens []string
	state := scanTokenStart
	start := 0
	for i := 0; i <= len(s); i++ {
		switch state {
		case scanTokenStart:
			if i == len(s) || s[i] == ' ' {
				return tokens
			}
			if s[i] == ':' && len(tokens) > 0 {
				state = scanInTrailing
				start = i + 1
			} else {
				state = scanInToken
				start = i
			}
		case scanInToken:
			if i == len(s) || s[i] == ' ' {
				tokens = append(tokens, s[start:i])
				state = scanTokenStart
			}
		case scanInTrailing:
			if i == len(s) {
				tokens = append(tokens, s[start:])
			}
		}
	}
	return tokens
}

// buildLine composes an outbound line.
func buildLine(command string, params ...string) string {
	m := irc.Message{Command: command, Params: params}
	return m.String()
}
