// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package irc is the gateway's IRC connection engine: one server connection
// on behalf of one browser user, with registration, CAP/SASL, nickname
// recovery, watchdogs and auto-reconnect.
package irc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/stdchat/ircgateway/cache"
	"github.com/stdchat/ircgateway/config"
)

// Browser is the push channel to the user's web page.
type Browser interface {
	Broadcast(text string)
	ConnectionCount() int
}

var (
	ErrNotConnected   = errors.New("not connected to IRC")
	ErrBusy           = errors.New("IRC connection is active")
	ErrNoServer       = errors.New("no such server")
	ErrServerDisabled = errors.New("server is disabled")
	ErrNick           = errors.New("invalid nickname")
	ErrNoChannel      = errors.New("no such channel")
	ErrChannelJoined  = errors.New("channel is joined")
	ErrRejected       = errors.New("command rejected")
	ErrLine           = errors.New("invalid line")
	ErrClosed         = errors.New("engine stopped")
)

// Phase is the connection lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseRegistering
	PhaseRegistered
	PhaseDisconnecting
)

func (phase Phase) String() string {
	switch phase {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseRegistering:
		return "registering"
	case PhaseRegistered:
		return "registered"
	case PhaseDisconnecting:
		return "disconnecting"
	default:
		return "phase(" + strconv.Itoa(int(phase)) + ")"
	}
}

const (
	modeDelay     = time.Second
	identifyDelay = 2 * time.Second
	joinDelay     = 3 * time.Second
	quitWait      = 2 * time.Second
	writeTimeout  = 10 * time.Second
)

// Options configure a Client.
type Options struct {
	Servers     *config.ServerList
	ServerIndex int // initially selected server
	Timeouts    config.Timeouts
	Proxy       config.Proxy
	Version     string // CTCP VERSION reply and QUIT message.
	Verbose     bool   // log every line sent and received.
	Cache       cache.Cache
	Browser     Browser
	Transport   TransportFunc // nil picks by server flags.
}

// ConnectRequest is the user's connect form.
type ConnectRequest struct {
	Nick     string `json:"nickName"`
	RealName string `json:"realName"`
	UserMode string `json:"userMode"`
}

// Client owns one IRC connection. All state is confined to the goroutine
// running Run; the exported methods hand work to it.
type Client struct {
	events   chan func()
	done     chan struct{}
	ctx      context.Context
	dispatch func(func())                // queues an event for the loop.
	after    func(time.Duration, func()) // schedules an event.
	spawn    func(func())                // runs blocking work off the loop.
	now      func() time.Time

	servers   *config.ServerList
	timeouts  config.Timeouts
	proxy     config.Proxy
	transport TransportFunc
	cache     cache.Cache
	browser   Browser
	version   string
	Verbose   bool
	ctcpLim   *rate.Limiter

	phase        Phase
	conn         net.Conn
	secure       bool
	gen          int // bumped per connection; events from older ones are dropped.
	writeErr     error
	changed      bool // push UPDATE after the current event.
	connID       string
	netID        string
	framer       Framer
	serverIndex  int
	server       config.ServerDefinition // copy in use by the current connection.
	connectOn    bool
	connectCount int
	errorCount   int
	stateCalls   int
	startTime    time.Time
	connectTime  time.Time

	primaryNick string
	nick        string // live nickname
	altTried    bool
	realName    string
	userMode    string // requested at registration
	userModes   string // current, without '+'
	userHost    string
	connectHost string
	away        bool
	support     isupport
	channels    []*Channel
	rejoin      string // channels to rejoin on reconnect, comma separated.

	sasl           saslNegotiator
	connectWatch   countdown
	registerWatch  stopwatch
	activity       stopwatch
	pingInterval   stopwatch
	pingAwait      stopwatch
	pingSent       time.Time
	lastPing       time.Duration
	reconnect      reconnectSchedule
	rotateInhibit  countdown
	rotateDebounce countdown
	recovery       nickRecovery
}

type nopBrowser struct{}

func (nopBrowser) Broadcast(string)     {}
func (nopBrowser) ConnectionCount() int { return 0 }

func New(opts Options) *Client {
	client := &Client{
		events:      make(chan func(), 64),
		done:        make(chan struct{}),
		ctx:         context.Background(),
		now:         time.Now,
		servers:     opts.Servers,
		serverIndex: opts.ServerIndex,
		timeouts:    opts.Timeouts,
		proxy:       opts.Proxy,
		transport:   opts.Transport,
		cache:       opts.Cache,
		browser:     opts.Browser,
		version:     opts.Version,
		Verbose:     opts.Verbose,
		ctcpLim:     rate.NewLimiter(rate.Every(2*time.Second), 3),
		support:     defaultSupport.clone(),
	}
	if client.servers == nil {
		client.servers = &config.ServerList{ConfigVersion: config.ServerListVersion}
	}
	if client.serverIndex < 0 || client.serverIndex >= client.servers.Len() {
		client.serverIndex = -1
	}
	if client.timeouts == (config.Timeouts{}) {
		client.timeouts = config.DefaultTimeouts()
	}
	if client.transport == nil {
		client.transport = transportFor
	}
	if client.cache == nil {
		client.cache = cache.New(100)
	}
	if client.browser == nil {
		client.browser = nopBrowser{}
	}
	if client.version == "" {
		client.version = "ircgateway"
	}
	client.dispatch = client.enqueue
	client.after = func(d time.Duration, fn func()) {
		time.AfterFunc(d, func() { client.post(fn) })
	}
	client.spawn = func(fn func()) { go fn() }
	client.startTime = client.now()
	return client
}

// Run processes events and the 1 Hz tick until ctx is done.
// It must be called once.
func (client *Client) Run(ctx context.Context) error {
	client.ctx = ctx
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	defer close(client.done)
	for {
		select {
		case <-ctx.Done():
			client.runEvent(client.shutdown)
			return ctx.Err()
		case fn := <-client.events:
			client.runEvent(fn)
		case <-ticker.C:
			client.runEvent(client.tick)
		}
	}
}

func (client *Client) enqueue(fn func()) {
	select {
	case client.events <- fn:
	case <-client.done:
	}
}

// post hands fn to the event loop. Not for use from the loop itself.
func (client *Client) post(fn func()) {
	client.dispatch(fn)
}

// runEvent runs one event to completion, then applies its deferred effects.
func (client *Client) runEvent(fn func()) {
	fn()
	if err := client.writeErr; err != nil {
		client.writeErr = nil
		if client.conn != nil {
			client.warn("Socket write error: " + err.Error())
			client.disconnect("write error")
		}
	}
	if client.changed {
		client.changed = false
		client.browser.Broadcast("UPDATE")
	}
}

// call runs fn on the event loop and waits for its result.
func (client *Client) call(fn func() error) error {
	result := make(chan error, 1)
	select {
	case client.events <- func() { result <- fn() }:
	case <-client.done:
		return ErrClosed
	}
	select {
	case err := <-result:
		return err
	case <-client.done:
		return ErrClosed
	}
}

// later runs fn after d unless the connection went away meanwhile.
func (client *Client) later(d time.Duration, fn func()) {
	gen := client.gen
	client.after(d, func() {
		if client.gen == gen && client.conn != nil {
			fn()
		}
	})
}

// Connect starts a new connect epoch on the selected server.
func (client *Client) Connect(req ConnectRequest) error {
	return client.call(func() error { return client.requestConnect(req) })
}

// Disconnect closes the connection and stops auto-reconnect.
func (client *Client) Disconnect() error {
	return client.call(client.requestDisconnect)
}

// SendMessage sends one raw IRC line typed by the user.
func (client *Client) SendMessage(text string) error {
	return client.call(func() error { return client.sendMessage(text) })
}

func (client *Client) State() (StateSnapshot, error) {
	var snap StateSnapshot
	err := client.call(func() error {
		snap = client.snapshot()
		return nil
	})
	return snap, err
}

// SelectServer picks the server for the next connect.
func (client *Client) SelectServer(index int) error {
	return client.call(func() error { return client.selectServer(index) })
}

// CycleServer moves the selection by dir (+1 or -1), skipping disabled servers.
func (client *Client) CycleServer(dir int) error {
	return client.call(func() error { return client.cycleServer(dir) })
}

// PruneChannel forgets a channel that is no longer joined.
func (client *Client) PruneChannel(name string) error {
	return client.call(func() error { return client.pruneChannel(name) })
}

// EraseCache erases the replay cache, or only lines of one IRC command.
func (client *Client) EraseCache(category string) error {
	return client.call(func() error {
		if err := client.cache.EraseByCategory(category); err != nil {
			return err
		}
		client.changed = true
		return nil
	})
}

// CacheLines returns the replay cache, oldest first.
func (client *Client) CacheLines() []string {
	return client.cache.All()
}

// ReloadServers swaps in a new server list. A live connection keeps its
// copy of the old record.
func (client *Client) ReloadServers(list *config.ServerList) error {
	if list == nil {
		return ErrNoServer
	}
	return client.call(func() error {
		client.servers = list
		if client.serverIndex >= list.Len() {
			client.serverIndex = list.Len() - 1
		}
		if client.serverIndex < 0 && list.Len() > 0 {
			client.serverIndex = 0
		}
		client.changed = true
		return nil
	})
}

func (client *Client) cm() caseMapping {
	return client.support.caseMapping()
}

func (client *Client) isMe(nick string) bool {
	return nick != "" && client.cm().Equal(nick, client.nick)
}

// deliver stamps a line, pushes it to the browser and caches it.
func (client *Client) deliver(line string) {
	stamped := "@" + strconv.FormatInt(client.now().Unix(), 10) + " " + line
	client.browser.Broadcast(stamped)
	client.cache.Append(stamped)
}

func (client *Client) notice(text string) {
	log.Printf("INFO %s", text)
	client.browser.Broadcast("webServer: " + text)
}

func (client *Client) warn(text string) {
	log.Printf("WARN %s", text)
	client.browser.Broadcast("webError: " + text)
}

func (client *Client) write(command string, params ...string) error {
	return client.writeLine(buildLine(command, params...))
}

// checkLine enforces the outbound line rules.
func checkLine(line string) error {
	switch {
	case len(line)+2 > MaxLineBytes:
		return fmt.Errorf("%w: longer than %d bytes", ErrLine, MaxLineBytes-2)
	case !utf8.ValidString(line):
		return fmt.Errorf("%w: not UTF-8", ErrLine)
	case strings.ContainsAny(line, "\x00\r\n"):
		return fmt.Errorf("%w: control character", ErrLine)
	}
	return nil
}

// writeLine sends one line. A failed write is not retried; the connection
// is dropped once the current event completes.
func (client *Client) writeLine(line string) error {
	if client.writeErr != nil {
		return client.writeErr
	}
	if client.conn == nil {
		return ErrNotConnected
	}
	if err := checkLine(line); err != nil {
		log.Printf("ERROR not sending line: %v", err)
		return err
	}
	if client.Verbose {
		log.Printf("-> %s", line)
	}
	client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := client.conn.Write([]byte(line + "\r\n")); err != nil {
		log.Printf("ERROR write: %v", err)
		client.writeErr = err
		return err
	}
	metricLines.WithLabelValues("out").Inc()
	return nil
}
