package irc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdchat/ircgateway/cache"
	"github.com/stdchat/ircgateway/config"
)

// scriptedServer accepts one client and plays script: lines starting with
// "<" are expected from the client (by prefix), others are sent.
func scriptedServer(t *testing.T, script ...string) (port int, done <-chan error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	result := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			result <- err
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		for _, step := range script {
			if want, ok := strings.CutPrefix(step, "<"); ok {
				conn.SetReadDeadline(time.Now().Add(5 * time.Second))
				line, err := r.ReadString('\n')
				if err != nil {
					result <- fmt.Errorf("waiting for %q: %w", want, err)
					return
				}
				if !strings.HasPrefix(line, want) {
					result <- fmt.Errorf("got %q, want %q", line, want)
					return
				}
				continue
			}
			if _, err := fmt.Fprintf(conn, "%s\r\n", step); err != nil {
				result <- err
				return
			}
		}
		result <- nil
	}()
	return ln.Addr().(*net.TCPAddr).Port, result
}

func TestClientSession(t *testing.T) {
	port, serverDone := scriptedServer(t,
		"<NICK gopher",
		"<USER gopher 0 * :Gopher",
		":irc.test 001 gopher :Welcome to the test network gopher!g@127.0.0.1",
		":irc.test 005 gopher CHANTYPES=# PREFIX=(ov)@+ :are supported by this server",
		"<JOIN #test",
		":gopher!g@127.0.0.1 JOIN #test",
		":irc.test 353 gopher = #test :gopher @op",
		":irc.test 366 gopher #test :End of /NAMES list.",
		"<QUIT",
	)

	timeouts := config.DefaultTimeouts()
	timeouts.SettleMillis = 0
	browser := &fakeBrowser{}
	client := New(Options{
		Servers: &config.ServerList{
			ConfigVersion: config.ServerListVersion,
			Servers: []config.ServerDefinition{{
				Name:      "Test",
				Host:      "127.0.0.1",
				Port:      port,
				Reconnect: true,
				Nick:      "gopher",
				User:      "gopher",
				Real:      "Gopher",
			}},
		},
		Timeouts: timeouts,
		Version:  "ircgateway test",
		Cache:    cache.New(50),
		Browser:  browser,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(ctx) }()

	require.NoError(t, client.Connect(ConnectRequest{}))
	require.Eventually(t, func() bool {
		state, err := client.State()
		return err == nil && state.Registered
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, client.SendMessage("JOIN #test"))
	require.Eventually(t, func() bool {
		state, err := client.State()
		return err == nil && len(state.ChannelStates) == 1 && len(state.ChannelStates[0].Names) == 2
	}, 5*time.Second, 10*time.Millisecond)

	state, err := client.State()
	require.NoError(t, err)
	assert.Equal(t, "gopher", state.NickName)
	assert.Equal(t, "g@127.0.0.1", state.UserHost)
	assert.Equal(t, []string{"gopher", "@op"}, state.ChannelStates[0].Names)
	assert.True(t, state.ChannelStates[0].Joined)
	assert.Equal(t, 1, state.Count.IRCConnect)
	assert.NotEmpty(t, client.CacheLines())

	require.NoError(t, client.Disconnect())
	select {
	case err := <-serverDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server script did not finish")
	}
	state, err = client.State()
	require.NoError(t, err)
	assert.False(t, state.ConnectOn)
	assert.False(t, state.Connected)
	assert.False(t, state.Reconnecting)

	cancel()
	assert.ErrorIs(t, <-runDone, context.Canceled)
	assert.ErrorIs(t, client.Disconnect(), ErrClosed)
}

func TestClientConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	client := New(Options{
		Servers: &config.ServerList{
			ConfigVersion: config.ServerListVersion,
			Servers:       []config.ServerDefinition{{Name: "Gone", Host: "127.0.0.1", Port: port, Nick: "gopher"}},
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	require.NoError(t, client.Connect(ConnectRequest{}))
	require.Eventually(t, func() bool {
		state, err := client.State()
		return err == nil && state.Count.IRCConnectError == 1 && state.Phase == "idle"
	}, 5*time.Second, 10*time.Millisecond)
}
