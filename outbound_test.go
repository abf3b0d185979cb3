package irc

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessageNotConnected(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.send("PRIVMSG bob :hi"), ErrNotConnected)
}

func TestSendMessageRules(t *testing.T) {
	h := newHarness(t)
	h.register()
	h.recv(":alice!user@host JOIN #go", ":irc.example.net 353 alice = #go :alice bob")
	h.browser.take()

	tests := []struct {
		line string
		err  error
		sent bool
	}{
		{"PRIVMSG #go :hello there", nil, true},
		{"PRIVMSG bob :hi", nil, true},
		{"NOTICE bob :psst", nil, true},
		{"PRIVMSG #other :hello", ErrRejected, false},
		{"PRIVMSG @#go :ops only", ErrRejected, false},
		{"PRIVMSG a,b :both", ErrRejected, false},
		{"PRIVMSG #go", ErrRejected, false},
		{"JOIN #go", ErrRejected, false},
		{"JOIN #irc,#go", ErrRejected, false},
		{"JOIN #", ErrRejected, false},
		{"JOIN", ErrRejected, false},
		{":me PRIVMSG bob :hi", ErrRejected, false},
		{"PRIVMSG bob :a\x00b", ErrLine, false},
		{"PRIVMSG bob :" + strings.Repeat("x", 500), ErrLine, false},
		{"WHOIS bob", nil, true},
		{"JOIN #irc", nil, true},
	}
	for _, tt := range tests {
		err := h.send(tt.line)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.line)
		} else {
			assert.NoError(t, err, tt.line)
		}
		sent := h.sent()
		if tt.sent {
			assert.Equal(t, []string{tt.line}, sent, tt.line)
		} else {
			assert.Empty(t, sent, tt.line)
		}
	}
}

func TestSendMessageEcho(t *testing.T) {
	h := newHarness(t)
	h.register()
	h.recv(":alice!user@host JOIN #go")
	h.browser.take()
	require.NoError(t, h.send("PRIVMSG #go :hello there"))
	assert.Contains(t, h.browser.take(), "@1600000000 :alice!*@* PRIVMSG #go :hello there")
	require.NoError(t, h.send("NOTICE bob hi"))
	lines := h.client.cache.All()
	assert.Equal(t, "@1600000000 :alice!*@* NOTICE bob :hi", lines[len(lines)-1])
	require.NoError(t, h.send("WHOIS bob"))
	assert.Len(t, h.client.cache.All(), len(lines))
}

func TestSendMessageClearsMembers(t *testing.T) {
	h := newHarness(t)
	h.register()
	h.recv(
		":alice!user@host JOIN #go",
		":irc.example.net 353 alice = #go :alice bob",
		":alice!user@host JOIN #irc",
		":irc.example.net 353 alice = #irc :alice carol",
		":alice!user@host PART #irc",
	)
	require.NoError(t, h.send("NAMES #go"))
	assert.Empty(t, h.client.getChannel("#go").members)

	h.client.getChannel("#irc").members = []Member{{Nick: "stale"}}
	require.NoError(t, h.send("JOIN #irc"))
	assert.Empty(t, h.client.getChannel("#irc").members)
}

func TestSendMessageQuit(t *testing.T) {
	h := newHarness(t)
	h.register()
	h.recv(":alice!user@host JOIN #go")
	conn := h.conn()
	require.NoError(t, h.send("QUIT :see you"))
	assert.Equal(t, []string{"QUIT :see you"}, conn.take())
	assert.Equal(t, PhaseIdle, h.client.phase)
	assert.False(t, h.client.connectOn)
	assert.False(t, h.client.reconnect.active())
	assert.Equal(t, "", h.client.rejoin)
	h.tick(100)
	assert.Len(t, h.transport.conns, 1)
}

func TestSendMessageQuitWaitsForServer(t *testing.T) {
	h := newHarness(t)
	h.register()
	var pending []func()
	h.client.after = func(_ time.Duration, fn func()) { pending = append(pending, fn) }
	require.NoError(t, h.send("QUIT"))
	assert.Equal(t, PhaseDisconnecting, h.client.phase)
	require.Len(t, pending, 1)
	h.serverClose()
	h.event(pending[0])
	assert.Equal(t, PhaseIdle, h.client.phase)
}
