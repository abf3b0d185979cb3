// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package web

import (
	"log"
	"sync"

	"golang.org/x/net/websocket"
)

// Lines queued per browser before it is considered too slow.
const clientQueue = 256

// Hub fans engine output out to every connected browser.
// It implements irc.Browser.
type Hub struct {
	mx      sync.Mutex
	clients map[*websocket.Conn]chan string // locked by mx
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan string)}
}

// Broadcast queues text for every browser; it never blocks.
func (hub *Hub) Broadcast(text string) {
	hub.mx.Lock()
	defer hub.mx.Unlock()
	for ws, ch := range hub.clients {
		select {
		case ch <- text:
		default:
			log.Printf("WARN websocket client %s too slow, dropping line", ws.Request().RemoteAddr)
		}
	}
}

func (hub *Hub) ConnectionCount() int {
	hub.mx.Lock()
	defer hub.mx.Unlock()
	return len(hub.clients)
}

func (hub *Hub) add(ws *websocket.Conn) chan string {
	ch := make(chan string, clientQueue)
	hub.mx.Lock()
	hub.clients[ws] = ch
	n := len(hub.clients)
	hub.mx.Unlock()
	metricWebsockets.Set(float64(n))
	return ch
}

func (hub *Hub) remove(ws *websocket.Conn) {
	hub.mx.Lock()
	delete(hub.clients, ws)
	n := len(hub.clients)
	hub.mx.Unlock()
	metricWebsockets.Set(float64(n))
}

// Handler serves one browser's websocket until either side closes it.
func (hub *Hub) Handler() websocket.Handler {
	return func(ws *websocket.Conn) {
		defer ws.Close()
		ch := hub.add(ws)
		defer hub.remove(ws)

		// Browsers only listen; reading detects the close.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			var discard string
			for websocket.Message.Receive(ws, &discard) == nil {
			}
		}()

		for {
			select {
			case text := <-ch:
				if err := websocket.Message.Send(ws, text); err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	}
}
