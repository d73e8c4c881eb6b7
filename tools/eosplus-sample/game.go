package main

import (
	"context"
	"sync"
	"time"

	"github.com/echotools/eosplus/server"
	"github.com/echotools/eosplus/server/oss"
	"go.uber.org/zap"
)

const defaultListName = "default"

// game owns the tick loop. Every call into eosplus happens with the lock held, so
// HTTP handlers and the loop never touch the subsystems at the same time.
type game struct {
	sync.Mutex
	logger   *zap.Logger
	plus     *server.EOSPlus
	interval time.Duration
	subs     oss.SubscriptionGroup
}

func newGame(logger *zap.Logger, plus *server.EOSPlus, interval time.Duration) *game {
	return &game{
		logger:   logger.With(zap.String("component", "game")),
		plus:     plus,
		interval: interval,
	}
}

// start subscribes to the events the sample reacts to and signs in the local players.
func (g *game) start() {
	events := g.plus.Events()

	g.subs.Add(events.LoginComplete.Add(func(evt server.LoginCompleteEvent) {
		if !evt.Success {
			g.logger.Warn("Login failed", zap.Int("slot", evt.Slot), zap.String("error", evt.Error))
			return
		}
		g.logger.Info("Player signed in", zap.Int("slot", evt.Slot), zap.String("plus_id", evt.UserID.String()), zap.String("eos_error", evt.EOSError))
		g.plus.Friends().ReadFriendsList(evt.Slot, defaultListName, func(result oss.ListResult) {
			g.logger.Info("Friends list read", zap.Int("slot", result.Slot), zap.Bool("success", result.Success))
		})
	}))
	g.subs.Add(events.InviteReceived.Add(func(evt server.FriendEvent) {
		g.logger.Info("Invite received", zap.String("user_id", evt.UserID.String()), zap.String("friend_id", evt.FriendID.String()))
	}))
	g.subs.Add(events.PresenceReceived.Add(func(evt server.PresenceReceivedEvent) {
		g.logger.Info("Presence received", zap.String("user_id", evt.UserID.String()), zap.String("status", evt.Presence.Status.StatusStr))
	}))
	g.subs.Add(events.LogoutComplete.Add(func(evt oss.LogoutCompleteEvent) {
		g.logger.Info("Player signed out", zap.Int("slot", evt.Slot), zap.Bool("success", evt.Success))
	}))

	g.Lock()
	defer g.Unlock()
	g.plus.Login(0, oss.Credentials{Type: "developer", ID: "ada"})
	g.plus.AutoLogin(1)
}

func (g *game) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	defer g.subs.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Lock()
			g.plus.Tick().Tick()
			g.Unlock()
		}
	}
}

// do runs fn with the game lock held.
func (g *game) do(fn func(plus *server.EOSPlus)) {
	g.Lock()
	defer g.Unlock()
	fn(g.plus)
}

// await runs fn with the lock held and waits for it to call done, ticking the loop
// until then. It gives up after timeout.
func (g *game) await(ctx context.Context, timeout time.Duration, fn func(plus *server.EOSPlus, done func())) bool {
	finished := make(chan struct{})
	var once sync.Once
	g.do(func(plus *server.EOSPlus) {
		fn(plus, func() { once.Do(func() { close(finished) }) })
	})

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-finished:
		return true
	case <-ctx.Done():
		return false
	}
}
