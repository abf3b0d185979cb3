// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds the gateway's metrics; the web server exposes it.
var Registry = prometheus.NewRegistry()

var (
	metricConnects = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "ircgateway_connects_total",
		Help: "Successful IRC registrations.",
	})
	metricConnectErrors = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "ircgateway_connect_errors_total",
		Help: "Failed connect or registration attempts.",
	})
	metricReconnects = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "ircgateway_reconnect_attempts_total",
		Help: "Automatic reconnect attempts.",
	})
	metricRotations = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "ircgateway_server_rotations_total",
		Help: "Switches to another server of the same group.",
	})
	metricLines = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "ircgateway_lines_total",
		Help: "IRC lines by direction.",
	}, []string{"direction"})
	metricDropped = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "ircgateway_dropped_lines_total",
		Help: "Inbound lines dropped by the framer.",
	}, []string{"reason"})
	metricPingRTT = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "ircgateway_ping_rtt_seconds",
		Help: "Round trip time of the last keepalive PING.",
	})
)
