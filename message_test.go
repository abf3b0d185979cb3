package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMessage(t *testing.T) {
	for _, x := range []struct {
		line   string
		expect Message
	}{
		{":nick!user@host PRIVMSG #chan :hello world", Message{
			Prefix: "nick!user@host", Nick: "nick", Host: "host",
			Command: "PRIVMSG", Params: []string{"#chan", "hello world"},
		}},
		{"PING :server.example", Message{
			Command: "PING", Params: []string{"server.example"},
		}},
		{":irc.example.net 001 me :Welcome to IRC me!u@h", Message{
			Prefix: "irc.example.net", Command: "001", Params: []string{"me", "Welcome to IRC me!u@h"},
		}},
		{":odd@host!x NOTICE me hi", Message{
			Prefix: "odd@host!x", Command: "NOTICE", Params: []string{"me", "hi"},
		}},
		{":!user@host NOTICE me hi", Message{
			Prefix: "!user@host", Command: "NOTICE", Params: []string{"me", "hi"},
		}},
		{"CAP * LS * :sasl=PLAIN,EXTERNAL multi-prefix", Message{
			Command: "CAP", Params: []string{"*", "LS", "*", "sasl=PLAIN,EXTERNAL multi-prefix"},
		}},
		{"PRIVMSG #c :", Message{Command: "PRIVMSG", Params: []string{"#c", ""}}},
		{"PRIVMSG #c ::-)", Message{Command: "PRIVMSG", Params: []string{"#c", ":-)"}}},
		{"MODE #c +o  nick", Message{Command: "MODE", Params: []string{"#c", "+o"}}},
		{"QUIT ", Message{Command: "QUIT"}},
		{"QUIT", Message{Command: "QUIT"}},
		{":only.prefix", Message{Prefix: "only.prefix"}},
		{" leading space", Message{}},
		{"", Message{}},
	} {
		got := ParseMessage(x.line)
		assert.Equal(t, x.expect, *got, x.line)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	for _, line := range []string{
		":nick!user@host PRIVMSG #chan :hello world",
		"PING :server.example",
		"PING server.example",
		":irc.example.net 353 me = #go :@alice +bob carol",
		":a!b@c JOIN #go",
		"MODE #go +ov alice bob",
		":srv CAP * LS * :sasl=PLAIN multi-prefix",
		"PRIVMSG #c :",
		"PRIVMSG #c ::-)",
		"QUIT",
	} {
		msg := ParseMessage(line)
		again := ParseMessage(msg.String())
		assert.Equal(t, msg, again, line)
	}
}

func TestBuildLine(t *testing.T) {
	assert.Equal(t, "CAP LS 302", buildLine("CAP", "LS", "302"))
	assert.Equal(t, "CAP REQ sasl", buildLine("CAP", "REQ", "sasl"))
	assert.Equal(t, "PRIVMSG #go :hi there", buildLine("PRIVMSG", "#go", "hi there"))
	assert.Equal(t, "QUIT", buildLine("QUIT"))
}
