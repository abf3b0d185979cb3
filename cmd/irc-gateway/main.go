// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	irc "github.com/stdchat/ircgateway"
	"github.com/stdchat/ircgateway/cache"
	"github.com/stdchat/ircgateway/config"
	"github.com/stdchat/ircgateway/web"
)

func main() {
	settingsFile := flag.String("config", "", "settings file (yaml, toml or json)")
	serverList := flag.String("servers", "", "server list file, overrides the settings")
	listen := flag.String("listen", "", "HTTP listen address, overrides the settings")
	verbose := flag.Bool("verbose", false, "log every IRC line")
	flag.Parse()

	settings, err := config.LoadSettings(*settingsFile)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if *serverList != "" {
		settings.ServerList = *serverList
	}
	if *listen != "" {
		settings.Listen = *listen
	}
	settings.Verbose = settings.Verbose || *verbose

	servers, err := config.LoadServerList(settings.ServerList)
	if err != nil {
		log.Fatalf("Failed to load server list: %v", err)
	}
	log.Printf("Loaded %d servers from %s", servers.Len(), settings.ServerList)

	lines := cache.New(settings.CacheLines)
	var store *cache.Store
	if settings.CacheDB != "" {
		store, err = cache.OpenStore(settings.CacheDB)
		if err != nil {
			log.Fatalf("Failed to open cache database: %v", err)
		}
		defer store.Close()
		saved, err := store.Load()
		if err != nil {
			log.Printf("WARN unable to restore cache: %v", err)
		}
		lines.Load(saved)
	}

	hub := web.NewHub()
	client := irc.New(irc.Options{
		Servers:  servers,
		Timeouts: settings.Timeouts,
		Proxy:    settings.Proxy,
		Version:  settings.Version,
		Verbose:  settings.Verbose,
		Cache:    lines,
		Browser:  hub,
	})
	srv := web.NewServer(client, hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		client.Run(ctx)
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			list, err := config.LoadServerList(settings.ServerList)
			if err != nil {
				log.Printf("ERROR reloading server list: %v", err)
				continue
			}
			if err := client.ReloadServers(list); err != nil {
				log.Printf("ERROR reloading server list: %v", err)
				continue
			}
			log.Printf("Reloaded %d servers", list.Len())
		}
	}()

	go func() {
		log.Printf("Listening on %s", settings.Listen)
		if err := srv.Echo.Start(settings.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Echo.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR stopping HTTP server: %v", err)
	}
	<-engineDone
	if store != nil {
		if err := store.Save(lines.All()); err != nil {
			log.Printf("ERROR saving cache: %v", err)
		}
	}
}
