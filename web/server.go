// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package web is the browser facing HTTP API and websocket of the gateway.
package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	irc "github.com/stdchat/ircgateway"
	"github.com/stdchat/ircgateway/cache"
)

// Engine is the part of *irc.Client the API drives.
type Engine interface {
	Connect(req irc.ConnectRequest) error
	Disconnect() error
	SendMessage(text string) error
	State() (irc.StateSnapshot, error)
	SelectServer(index int) error
	CycleServer(dir int) error
	PruneChannel(name string) error
	EraseCache(category string) error
	CacheLines() []string
}

type connectRequest struct {
	Nick     string `json:"nickName" validate:"omitempty,max=64"`
	RealName string `json:"realName" validate:"omitempty,max=128"`
	UserMode string `json:"userMode" validate:"omitempty,max=16"`
}

type messageRequest struct {
	Message string `json:"message" validate:"required"`
}

// serverRequest selects Index, or cycles by Direction when Index is absent.
type serverRequest struct {
	Index     *int `json:"index" validate:"omitempty,gte=0"`
	Direction int  `json:"direction" validate:"oneof=-1 0 1"`
}

type pruneRequest struct {
	Channel string `json:"channel" validate:"required"`
}

type eraseRequest struct {
	Erase string `json:"erase" validate:"required"`
}

type result struct {
	Error   bool   `json:"error"`
	Message string `json:"message,omitempty"`
}

type Server struct {
	Echo   *echo.Echo
	engine Engine
}

// NewServer builds the routes. hub may be nil to serve without a websocket.
func NewServer(engine Engine, hub *Hub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.Use(middleware.Recover())
	e.Use(metricsMiddleware(func(c echo.Context) bool { return c.Path() == "/metrics" }))

	srv := &Server{Echo: e, engine: engine}
	g := e.Group("/irc")
	g.POST("/connect", srv.connect)
	g.POST("/disconnect", srv.disconnect)
	g.POST("/message", srv.message)
	g.GET("/getircstate", srv.state)
	g.POST("/server", srv.selectServer)
	g.POST("/prune", srv.prune)
	g.POST("/erase", srv.erase)
	g.GET("/cache", srv.cacheLines)
	if hub != nil {
		g.GET("/ws", echo.WrapHandler(hub.Handler()))
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(irc.Registry, promhttp.HandlerOpts{})))
	return srv
}

func bindValid(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return err
	}
	return c.Validate(v)
}

// httpError maps engine errors to status codes.
func httpError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, irc.ErrBusy), errors.Is(err, irc.ErrNotConnected), errors.Is(err, irc.ErrChannelJoined):
		code = http.StatusConflict
	case errors.Is(err, irc.ErrNoServer), errors.Is(err, irc.ErrNoChannel):
		code = http.StatusNotFound
	case errors.Is(err, irc.ErrNick), errors.Is(err, irc.ErrServerDisabled),
		errors.Is(err, irc.ErrRejected), errors.Is(err, irc.ErrLine), errors.Is(err, cache.ErrCategory):
		code = http.StatusBadRequest
	case errors.Is(err, irc.ErrClosed):
		code = http.StatusServiceUnavailable
	}
	return echo.NewHTTPError(code, err.Error())
}

func (srv *Server) ok(c echo.Context) error {
	return c.JSON(http.StatusOK, result{})
}

func (srv *Server) connect(c echo.Context) error {
	var req connectRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	err := srv.engine.Connect(irc.ConnectRequest{Nick: req.Nick, RealName: req.RealName, UserMode: req.UserMode})
	if err != nil {
		return httpError(err)
	}
	return srv.ok(c)
}

func (srv *Server) disconnect(c echo.Context) error {
	if err := srv.engine.Disconnect(); err != nil {
		return httpError(err)
	}
	return srv.ok(c)
}

// message answers 400 with {"error":true} so the page can show why.
func (srv *Server) message(c echo.Context) error {
	var req messageRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := srv.engine.SendMessage(req.Message); err != nil {
		return c.JSON(http.StatusBadRequest, result{Error: true, Message: err.Error()})
	}
	return srv.ok(c)
}

func (srv *Server) state(c echo.Context) error {
	state, err := srv.engine.State()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (srv *Server) selectServer(c echo.Context) error {
	var req serverRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	var err error
	if req.Index != nil {
		err = srv.engine.SelectServer(*req.Index)
	} else {
		dir := req.Direction
		if dir == 0 {
			dir = 1
		}
		err = srv.engine.CycleServer(dir)
	}
	if err != nil {
		return httpError(err)
	}
	return srv.state(c)
}

func (srv *Server) prune(c echo.Context) error {
	var req pruneRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := srv.engine.PruneChannel(req.Channel); err != nil {
		return httpError(err)
	}
	return srv.ok(c)
}

func (srv *Server) erase(c echo.Context) error {
	var req eraseRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := srv.engine.EraseCache(req.Erase); err != nil {
		return httpError(err)
	}
	return srv.ok(c)
}

func (srv *Server) cacheLines(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.engine.CacheLines())
}
