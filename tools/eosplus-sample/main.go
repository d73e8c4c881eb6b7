// Copyright 2024 The Nakama Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command eosplus-sample runs a sample game instance on top of two in-memory online
// subsystems and serves a small debug API for poking at the aggregated identities.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/echotools/eosplus/server"
	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
	"github.com/echotools/eosplus/server/oss/osstest"
	prom "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	flagConfig   = flag.String("config", "", "Path to a YAML configuration file")
	flagAddr     = flag.String("addr", "127.0.0.1:7360", "Debug HTTP listen address")
	flagInterval = flag.Duration("tick", 50*time.Millisecond, "Game loop tick interval")
)

func main() {
	flag.Parse()

	tmpLogger := server.NewJSONLogger(os.Stdout, zapcore.InfoLevel, server.JSONFormat)

	cfg, err := loadConfig(*flagConfig)
	if err != nil {
		tmpLogger.Fatal("Failed to load configuration", zap.Error(err))
	}
	logger, startupLogger := server.SetupLogging(tmpLogger, cfg.Logger)
	startupLogger.Info("Starting eosplus sample", zap.String("platform", cfg.PlatformSubsystem), zap.String("addr", *flagAddr))

	registry := prom.NewRegistry()
	scope, scopeCloser := server.NewPrometheusScope(logger, cfg.Metrics, registry)
	defer scopeCloser.Close()
	metrics := server.NewLocalMetrics(logger, scope)

	tick := oss.NewTickQueue()
	platform := osstest.New(cfg.PlatformSubsystem, tick, osstest.WithUsers())
	eos := osstest.New(netid.EOSType, tick)
	seed(platform, eos)

	plus, err := server.NewEOSPlus(logger, server.NewSettings(cfg), platform, eos, tick, metrics)
	if err != nil {
		startupLogger.Fatal("Failed to create eosplus", zap.Error(err))
	}
	defer plus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g := newGame(logger, plus, *flagInterval)
	g.start()
	go g.run(ctx)

	srv := &http.Server{
		Addr:              *flagAddr,
		Handler:           newRouter(logger, g, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			startupLogger.Fatal("Debug API listener failed", zap.Error(err))
		}
	}()
	startupLogger.Info("Debug API listening", zap.String("addr", *flagAddr))

	<-ctx.Done()
	startupLogger.Info("Shutdown started")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		startupLogger.Error("Debug API shutdown failed", zap.Error(err))
	}
	startupLogger.Info("Shutdown complete")
}

func loadConfig(path string) (*server.EOSPlusConfig, error) {
	if path != "" {
		return server.LoadEOSPlusConfig(path)
	}
	cfg := server.NewEOSPlusConfig()
	cfg.UseEAS = true
	cfg.UseEASForFriends = true
	cfg.MirrorPresenceToEAS = true
	cfg.MaxLocalPlayers = 2
	return cfg, cfg.Validate()
}

// seed gives both fakes two local accounts, a few friends and some presence.
func seed(platform, eos *osstest.Subsystem) {
	name := platform.Name()

	platform.FakeIdentity().SetAccount(0, osstest.PlatformID(name, "76561198000000001"), "Ada")
	platform.FakeIdentity().SetAccount(1, osstest.PlatformID(name, "76561198000000002"), "Grace")
	eos.FakeIdentity().SetAccount(0, osstest.NewEOSID(), "Ada")
	eos.FakeIdentity().SetAccount(1, osstest.NewEOSID(), "Grace")

	linus := osstest.PlatformID(name, "76561198000000010")
	ken := osstest.PlatformID(name, "76561198000000011")

	pending := osstest.NewFriend(ken, "Ken")
	pending.InviteStatus = oss.InvitePendingInbound
	platform.FakeFriends().SetFriends(0, defaultListName, osstest.NewFriend(linus, "Linus"), pending)
	eos.FakeFriends().SetFriends(0, defaultListName, osstest.NewFriend(osstest.NewEOSID(), "Barbara"))

	platform.FakePresence().SetCachedPresence(linus, &oss.UserPresence{
		IsOnline:          true,
		IsPlaying:         true,
		IsPlayingThisGame: true,
		LastOnline:        time.Now().UTC(),
		Status:            oss.PresenceStatus{StatusStr: "In a match", State: oss.PresenceOnline},
	})

	platform.FakeUsers().SetUser(&oss.OnlineUser{ID: linus, DisplayName: "Linus"})
	platform.FakeUsers().SetUser(&oss.OnlineUser{ID: ken, DisplayName: "Ken"})
}
