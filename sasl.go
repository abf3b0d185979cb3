// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"encoding/base64"
	"strings"

	"github.com/emersion/go-sasl"
)

type saslState int

const (
	saslDisabled             saslState = 0
	saslAwaitingLS           saslState = 10
	saslAwaitingREQAck       saslState = 20
	saslAwaitingPlusContinue saslState = 30
	saslCredentialsSent      saslState = 40
	saslLoggedIn             saslState = 50
	saslComplete             saslState = 60
	saslRegistered           saslState = 100
	saslError                saslState = 999
)

// Longest AUTHENTICATE argument; longer payloads are split.
const saslChunk = 400

// saslSink is where the negotiator sends lines and user notices.
type saslSink interface {
	write(command string, params ...string) error
	notice(text string)
	warn(text string)
}

// saslNegotiator drives CAP LS/REQ and SASL PLAIN ahead of registration.
type saslNegotiator struct {
	state      saslState
	username   string
	password   string
	caps       []string
	capEndSent bool
}

// reset prepares for a new connection.
func (neg *saslNegotiator) reset(username, password string) {
	*neg = saslNegotiator{username: username, password: password}
}

func (neg *saslNegotiator) enabled() bool {
	return neg.username != "" && neg.password != ""
}

// start opens negotiation if credentials are configured.
func (neg *saslNegotiator) start(sink saslSink) {
	if !neg.enabled() {
		neg.state = saslDisabled
		return
	}
	sink.write("CAP", "LS", "302")
	neg.state = saslAwaitingLS
}

// capEnd sends CAP END at most once per connection.
func (neg *saslNegotiator) capEnd(sink saslSink) {
	if neg.capEndSent {
		return
	}
	neg.capEndSent = true
	sink.write("CAP", "END")
}

func (neg *saslNegotiator) fail(sink saslSink, text string, end bool) {
	if end {
		neg.capEnd(sink)
	}
	sink.warn(text)
	neg.state = saslError
}

// handleCap handles CAP LS, ACK and NAK.
func (neg *saslNegotiator) handleCap(sink saslSink, msg *Message) {
	if neg.state == saslDisabled {
		return
	}
	switch strings.ToUpper(msg.Param(1)) {
	case "LS":
		if neg.state != saslAwaitingLS {
			return
		}
		if len(msg.Params) >= 4 && msg.Param(2) == "*" {
			neg.caps = append(neg.caps, strings.Fields(msg.Param(3))...)
			return
		}
		neg.caps = append(neg.caps, strings.Fields(msg.Trailing())...)
		if !neg.offersPlain() {
			neg.fail(sink, "SASL PLAIN not offered by server, continuing without SASL", true)
			return
		}
		sink.write("CAP", "REQ", "sasl")
		neg.state = saslAwaitingREQAck

	case "ACK":
		if neg.state != saslAwaitingREQAck {
			return
		}
		for _, capName := range strings.Fields(msg.Trailing()) {
			if capName == "sasl" {
				sink.write("AUTHENTICATE", "PLAIN")
				neg.state = saslAwaitingPlusContinue
				return
			}
		}
		neg.fail(sink, "Server did not acknowledge CAP sasl", true)

	case "NAK":
		if neg.state == saslAwaitingREQAck {
			neg.fail(sink, "Server refused CAP sasl", true)
		}
	}
}

// offersPlain looks for sasl=...PLAIN... among the advertised caps.
func (neg *saslNegotiator) offersPlain() bool {
	for _, capName := range neg.caps {
		if !strings.HasPrefix(capName, "sasl") {
			continue
		}
		_, mechs, ok := strings.Cut(capName, "=")
		if !ok {
			continue
		}
		for _, mech := range strings.Split(mechs, ",") {
			if strings.EqualFold(mech, "PLAIN") {
				return true
			}
		}
	}
	return false
}

// handleAuthenticate answers the server's AUTHENTICATE + with credentials.
func (neg *saslNegotiator) handleAuthenticate(sink saslSink, msg *Message) {
	if neg.state != saslAwaitingPlusContinue {
		return
	}
	if msg.Param(0) != "+" {
		neg.fail(sink, "Unexpected AUTHENTICATE from server", true)
		return
	}
	_, ir, err := sasl.NewPlainClient(neg.username, neg.username, neg.password).Start()
	if err != nil {
		neg.fail(sink, "SASL PLAIN: "+err.Error(), true)
		return
	}
	payload := base64.StdEncoding.EncodeToString(ir)
	for len(payload) >= saslChunk {
		sink.write("AUTHENTICATE", payload[:saslChunk])
		payload = payload[saslChunk:]
	}
	if payload == "" {
		payload = "+"
	}
	sink.write("AUTHENTICATE", payload)
	neg.state = saslCredentialsSent
}

// handleNumeric handles the 900-908 SASL numerics.
func (neg *saslNegotiator) handleNumeric(sink saslSink, msg *Message) {
	if neg.state == saslDisabled {
		return
	}
	switch msg.Command {
	case RPL_LOGGEDIN:
		if neg.state == saslCredentialsSent {
			neg.state = saslLoggedIn
			sink.notice("SASL logged in: " + msg.Trailing())
		}
	case RPL_SASLSUCCESS:
		if neg.state == saslComplete {
			return
		}
		if neg.state == saslLoggedIn {
			neg.capEnd(sink)
			neg.state = saslComplete
			return
		}
		neg.fail(sink, "SASL success out of sequence", true)
	case RPL_LOGGEDOUT:
		neg.fail(sink, "SASL logged out: "+msg.Trailing(), false)
	case ERR_SASLABORTED:
		neg.fail(sink, "SASL aborted: "+msg.Trailing(), true)
	case ERR_NICKLOCKED, ERR_SASLFAIL, ERR_SASLTOOLONG, ERR_SASLALREADY, RPL_SASLMECHS:
		neg.fail(sink, "SASL authentication failed ("+msg.Command+"): "+msg.Trailing(), true)
	}
}

// welcome is called on 001.
func (neg *saslNegotiator) welcome(sink saslSink) {
	switch neg.state {
	case saslDisabled:
	case saslAwaitingLS:
		sink.warn("Server did not answer CAP LS")
	case saslComplete:
		neg.state = saslRegistered
		sink.notice("SASL authentication successful")
	default:
		sink.warn("SASL authentication failed, connected without SASL")
	}
}
