// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package web

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	irc "github.com/stdchat/ircgateway"
)

var (
	metricRequestDuration = promauto.With(irc.Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	metricRequests = promauto.With(irc.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by status code",
		},
		[]string{"path", "method", "code"},
	)
	metricWebsockets = promauto.With(irc.Registry).NewGauge(prometheus.GaugeOpts{
		Name: "ircgateway_websocket_clients",
		Help: "Connected browser websockets.",
	})
)

// metricsMiddleware records latency and status per route.
func metricsMiddleware(skip func(c echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip != nil && skip(c) {
				return next(c)
			}
			start := time.Now()
			path := c.Path()
			method := c.Request().Method
			if err := next(c); err != nil {
				// Let the error handler set the status before recording it.
				c.Error(err)
			}
			metricRequestDuration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
			metricRequests.WithLabelValues(path, method, strconv.Itoa(c.Response().Status)).Inc()
			return nil
		}
	}
}
