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

package server

import (
	"fmt"
	"strings"

	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
	"go.uber.org/zap"
)

// EOSPlus presents a platform subsystem and EOS as one online service whose player
// ids are composites of both. All completions and events are delivered from the
// tick queue the host drives.
type EOSPlus struct {
	logger   *zap.Logger
	settings *Settings
	metrics  Metrics
	tick     *oss.TickQueue

	platform oss.Subsystem
	eos      oss.Subsystem

	registry *IdentityRegistry
	events   *Events
	login    *LoginOrchestrator
	fanout   *EventFanout
	friends  *FriendsPlus
	presence *PresencePlus
	users    *UserInfoPlus

	subscriptions *oss.SubscriptionGroup
}

func NewEOSPlus(logger *zap.Logger, settings *Settings, platform, eos oss.Subsystem, tick *oss.TickQueue, metrics Metrics) (*EOSPlus, error) {
	if platform == nil || platform.Identity() == nil || platform.Friends() == nil || platform.Presence() == nil {
		return nil, fmt.Errorf("platform subsystem: %w", ErrSubsystemUnavailable)
	}
	if eos == nil || eos.Identity() == nil || eos.Friends() == nil || eos.Presence() == nil {
		return nil, fmt.Errorf("EOS subsystem: %w", ErrSubsystemUnavailable)
	}
	if settings == nil {
		settings = NewSettings(nil)
	}
	if tick == nil {
		tick = oss.NewTickQueue()
	}
	if metrics == nil {
		metrics = NewLocalMetrics(logger, nil)
	}

	cfg := settings.Load()
	if !strings.EqualFold(platform.Name(), cfg.PlatformSubsystem) {
		logger.Warn("Platform subsystem name does not match configuration",
			zap.String("platform", platform.Name()),
			zap.String("configured", cfg.PlatformSubsystem))
	}

	registry := NewIdentityRegistry(logger, settings, metrics)
	events := NewEvents()

	p := &EOSPlus{
		logger:   logger,
		settings: settings,
		metrics:  metrics,
		tick:     tick,

		platform: platform,
		eos:      eos,

		registry: registry,
		events:   events,
		login:    NewLoginOrchestrator(logger, settings, metrics, registry, platform.Identity(), eos.Identity(), events),
		fanout:   NewEventFanout(logger, settings, metrics, registry, platform, eos, events),
		friends:  NewFriendsPlus(logger, settings, metrics, registry, platform.Friends(), eos.Friends(), tick),
		presence: NewPresencePlus(logger, settings, metrics, registry, platform.Presence(), eos.Presence(), tick),
		users:    NewUserInfoPlus(logger, registry, platform.Users(), events, tick),

		subscriptions: &oss.SubscriptionGroup{},
	}

	p.login.Subscribe(p.subscriptions)
	p.fanout.Subscribe(p.subscriptions)

	logger.Info("EOSPlus initialized",
		zap.String("platform", platform.Name()),
		zap.Bool("use_eas", cfg.UseEAS),
		zap.Bool("use_eos_connect", cfg.UseEOSConnect),
		zap.Bool("use_eas_for_friends", cfg.UseEASForFriends),
		zap.Bool("mirror_presence_to_eas", cfg.MirrorPresenceToEAS),
		zap.Int("max_local_players", cfg.MaxLocalPlayers),
		zap.Int("subscriptions", p.subscriptions.Len()))

	return p, nil
}

// Close releases every subscription held on the underlying subsystems. It is safe
// to call more than once.
func (p *EOSPlus) Close() {
	p.subscriptions.Close()
}

func (p *EOSPlus) Events() *Events                { return p.events }
func (p *EOSPlus) Registry() *IdentityRegistry    { return p.registry }
func (p *EOSPlus) Friends() *FriendsPlus          { return p.friends }
func (p *EOSPlus) Presence() *PresencePlus        { return p.presence }
func (p *EOSPlus) Users() *UserInfoPlus           { return p.users }
func (p *EOSPlus) Tick() *oss.TickQueue           { return p.tick }
func (p *EOSPlus) Settings() *Settings            { return p.settings }
func (p *EOSPlus) PlatformName() string           { return p.platform.Name() }
func (p *EOSPlus) SubscriptionCount() int         { return p.subscriptions.Len() }
func (p *EOSPlus) LoginState(slot int) LoginState { return p.login.State(slot) }

// Orchestrator exposes the login state machine, mainly for diagnostics.
func (p *EOSPlus) Orchestrator() *LoginOrchestrator { return p.login }

// Login starts the platform login for slot. Completion is reported through
// Events.LoginComplete.
func (p *EOSPlus) Login(slot int, creds oss.Credentials) bool {
	return p.login.Login(slot, creds)
}

func (p *EOSPlus) AutoLogin(slot int) bool {
	return p.login.AutoLogin(slot)
}

func (p *EOSPlus) Logout(slot int) bool {
	return p.login.Logout(slot)
}

func (p *EOSPlus) GetUniquePlayerID(slot int) (*netid.PlusID, bool) {
	return p.registry.LocalPlayer(slot)
}

func (p *EOSPlus) GetUserAccount(id *netid.PlusID) (*UserAccountPlus, bool) {
	if id == nil {
		return nil, false
	}
	return p.registry.Account(id.String())
}

func (p *EOSPlus) GetAllUserAccounts() []*UserAccountPlus {
	return p.registry.Accounts()
}

// GetLoginStatus reports the platform login status of slot.
func (p *EOSPlus) GetLoginStatus(slot int) oss.LoginStatus {
	return p.platform.Identity().LoginStatus(slot)
}

func (p *EOSPlus) GetLoginStatusByID(id *netid.PlusID) oss.LoginStatus {
	if id == nil {
		return oss.NotLoggedIn
	}
	platformID, ok := p.registry.PlatformID(id.String())
	if !ok {
		return oss.NotLoggedIn
	}
	return p.platform.Identity().LoginStatusByID(platformID)
}

func (p *EOSPlus) GetPlayerNickname(slot int) string {
	return p.platform.Identity().PlayerNickname(slot)
}

func (p *EOSPlus) GetPlayerNicknameByID(id *netid.PlusID) string {
	if id == nil {
		return ""
	}
	platformID, ok := p.registry.PlatformID(id.String())
	if !ok {
		return ""
	}
	return p.platform.Identity().PlayerNicknameByID(platformID)
}

func (p *EOSPlus) GetAuthToken(slot int) string {
	return p.platform.Identity().AuthToken(slot)
}

func (p *EOSPlus) GetAuthType() string {
	return p.platform.Identity().AuthType()
}

// GetPlatformUserID returns the platform's user handle for a composite id or a
// platform id. Unknown ids map to InvalidPlatformUserID.
func (p *EOSPlus) GetPlatformUserID(id netid.ID) oss.PlatformUserID {
	if id == nil {
		return oss.InvalidPlatformUserID
	}
	if _, ok := p.registry.PlusIDForPlatform(id); ok {
		return p.platform.Identity().PlatformUserID(id)
	}
	if platformID, ok := p.registry.PlatformID(id.String()); ok {
		return p.platform.Identity().PlatformUserID(platformID)
	}
	return oss.InvalidPlatformUserID
}

// GetUserPrivilege checks privilege on the platform. The result carries the composite
// id; an unknown player fails with PrivilegeUserNotFound on the next tick.
func (p *EOSPlus) GetUserPrivilege(userID *netid.PlusID, privilege oss.UserPrivilege, done func(oss.PrivilegeResult)) {
	platformID, ok := p.platformIDOf(userID)
	if !ok {
		p.logger.Error("GetUserPrivilege for unknown player", zap.String("plus_id", idString(asNetID(userID))))
		p.tick.ExecuteNextTick(func() {
			if done != nil {
				done(oss.PrivilegeResult{UserID: asNetID(userID), Privilege: privilege, Failures: oss.PrivilegeUserNotFound})
			}
		})
		return
	}
	p.platform.Identity().UserPrivilege(platformID, privilege, func(result oss.PrivilegeResult) {
		if plusID, ok := p.registry.Resolve(result.UserID); ok {
			result.UserID = plusID
		} else {
			p.logger.Warn("GetUserPrivilege completed for unknown player", zap.String("platform_id", idString(result.UserID)))
			result.UserID = asNetID(userID)
		}
		if done != nil {
			done(result)
		}
	})
}

// RevokeAuthToken revokes the platform token of a local player.
func (p *EOSPlus) RevokeAuthToken(userID *netid.PlusID, done func(oss.AuthTokenResult)) {
	platformID, ok := p.platformIDOf(userID)
	if !ok {
		p.tick.ExecuteNextTick(func() {
			if done != nil {
				done(oss.AuthTokenResult{UserID: asNetID(userID), Error: ErrUnknownPlayer.Message})
			}
		})
		return
	}
	p.platform.Identity().RevokeAuthToken(platformID, func(result oss.AuthTokenResult) {
		result.UserID = userID
		if done != nil {
			done(result)
		}
	})
}

func (p *EOSPlus) GetLinkedAccountAuthToken(slot int, done func(oss.AuthTokenResult)) {
	p.platform.Identity().LinkedAccountAuthToken(slot, func(result oss.AuthTokenResult) {
		if result.UserID != nil {
			if plusID, ok := p.registry.Resolve(result.UserID); ok {
				result.UserID = plusID
			}
		}
		if done != nil {
			done(result)
		}
	})
}

// asNetID keeps a nil composite a nil interface.
func asNetID(id *netid.PlusID) netid.ID {
	if id == nil {
		return nil
	}
	return id
}

func (p *EOSPlus) platformIDOf(id *netid.PlusID) (netid.ID, bool) {
	if id == nil {
		return nil, false
	}
	return p.registry.PlatformID(id.String())
}

// CreateUniquePlayerID decodes the byte form of a composite id and registers it as a
// remote player.
func (p *EOSPlus) CreateUniquePlayerID(b []byte) (*netid.PlusID, error) {
	decoded, err := netid.PlusIDFromBytes(b, p.settings.Load().PlatformTag(), p.platform.Identity(), p.eos.Identity())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlayerID, err)
	}
	return p.registry.RegisterRemotePlayer(decoded.PlatformID(), decoded.EOSID())
}

// ParseUniquePlayerID decodes the string form of a composite id and registers it as a
// remote player.
func (p *EOSPlus) ParseUniquePlayerID(s string) (*netid.PlusID, error) {
	decoded, err := netid.PlusIDFromString(s, p.platform.Identity(), p.eos.Identity())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlayerID, err)
	}
	return p.registry.RegisterRemotePlayer(decoded.PlatformID(), decoded.EOSID())
}
