package server

import (
	"time"

	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	eventInviteReceived        = "invite_received"
	eventInviteAccepted        = "invite_accepted"
	eventInviteRejected        = "invite_rejected"
	eventInviteAborted         = "invite_aborted"
	eventFriendRemoved         = "friend_removed"
	eventFriendsChange         = "friends_change"
	eventOutgoingInviteSent    = "outgoing_invite_sent"
	eventPresenceReceived      = "presence_received"
	eventPresenceArrayUpdated  = "presence_array_updated"
	eventLoginChanged          = "login_changed"
	eventLoginStatusChanged    = "login_status_changed"
	eventLogoutComplete        = "logout_complete"
	eventQueryUserInfoComplete = "query_user_info_complete"
	eventControllerPairing     = "controller_pairing_changed"
)

// EventFanout republishes the notifications of both subsystems on Events with every
// underlying id replaced by its composite. Events that cannot be fully resolved are
// dropped.
type EventFanout struct {
	logger   *zap.Logger
	settings *Settings
	metrics  Metrics
	registry *IdentityRegistry
	platform oss.Subsystem
	eos      oss.Subsystem
	events   *Events

	dropLog *rate.Sometimes
}

func NewEventFanout(logger *zap.Logger, settings *Settings, metrics Metrics, registry *IdentityRegistry, platform, eos oss.Subsystem, events *Events) *EventFanout {
	return &EventFanout{
		logger:   logger.With(zap.String("component", "event_fanout")),
		settings: settings,
		metrics:  metrics,
		registry: registry,
		platform: platform,
		eos:      eos,
		events:   events,
		dropLog:  &rate.Sometimes{First: 10, Interval: 10 * time.Second},
	}
}

func (f *EventFanout) Subscribe(group *oss.SubscriptionGroup) {
	for _, friends := range []oss.Friends{f.platform.Friends(), f.eos.Friends()} {
		group.Add(friends.OnInviteReceived(f.relayFriendEvent(eventInviteReceived, f.events.InviteReceived)))
		group.Add(friends.OnInviteAccepted(f.relayFriendEvent(eventInviteAccepted, f.events.InviteAccepted)))
		group.Add(friends.OnInviteRejected(f.relayFriendEvent(eventInviteRejected, f.events.InviteRejected)))
		group.Add(friends.OnInviteAborted(f.relayFriendEvent(eventInviteAborted, f.events.InviteAborted)))
		group.Add(friends.OnFriendRemoved(f.relayFriendEvent(eventFriendRemoved, f.events.FriendRemoved)))
		group.Add(friends.OnFriendsChange(f.onFriendsChange))
		group.Add(friends.OnOutgoingInviteSent(f.onOutgoingInviteSent))
	}

	// Presence flows in from the platform only; EOS presence is written, never read back.
	presence := f.platform.Presence()
	group.Add(presence.OnPresenceReceived(f.onPresenceReceived))
	group.Add(presence.OnPresenceArrayUpdated(f.onPresenceArrayUpdated))

	identity := f.platform.Identity()
	group.Add(identity.OnLoginChanged(f.onPlatformLoginChanged))
	group.Add(f.eos.Identity().OnLoginChanged(f.onEOSLoginChanged))
	group.Add(identity.OnLoginStatusChanged(f.onLoginStatusChanged))
	group.Add(identity.OnLogoutComplete(f.onLogoutComplete))
	group.Add(identity.OnControllerPairingChanged(f.onControllerPairingChanged))

	if users := f.platform.Users(); users != nil {
		group.Add(users.OnQueryUserInfoComplete(f.onQueryUserInfoComplete))
	} else {
		f.logger.Warn("Platform has no user info service, user info completions will not be relayed")
	}
}

func (f *EventFanout) drop(event string, fields ...zap.Field) {
	f.metrics.CountFanoutDropped(event)
	f.dropLog.Do(func() {
		f.logger.Warn("Dropping event with unknown player", append(fields, zap.String("event", event))...)
	})
}

func (f *EventFanout) published(event string) {
	f.metrics.CountFanoutPublished(event)
}

func idString(id netid.ID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func (f *EventFanout) relayFriendEvent(event string, hub *oss.Hub[FriendEvent]) func(oss.FriendEvent) {
	return func(evt oss.FriendEvent) {
		userID, ok := f.registry.Resolve(evt.UserID)
		if !ok {
			f.drop(event, zap.String("user_id", idString(evt.UserID)))
			return
		}
		friendID, ok := f.registry.Resolve(evt.FriendID)
		if !ok {
			f.drop(event, zap.String("friend_id", idString(evt.FriendID)))
			return
		}
		f.published(event)
		hub.Broadcast(FriendEvent{UserID: userID, FriendID: friendID})
	}
}

// onFriendsChange carries no ids, so it is repeated for every possible local slot.
func (f *EventFanout) onFriendsChange(oss.FriendsChangeEvent) {
	for slot := 0; slot < f.settings.Load().MaxLocalPlayers; slot++ {
		f.published(eventFriendsChange)
		f.events.FriendsChange.Broadcast(oss.FriendsChangeEvent{Slot: slot})
	}
}

func (f *EventFanout) onOutgoingInviteSent(oss.OutgoingInviteSentEvent) {
	for slot := 0; slot < f.settings.Load().MaxLocalPlayers; slot++ {
		f.published(eventOutgoingInviteSent)
		f.events.OutgoingInviteSent.Broadcast(oss.OutgoingInviteSentEvent{Slot: slot})
	}
}

func (f *EventFanout) onPresenceReceived(evt oss.PresenceReceivedEvent) {
	userID, ok := f.registry.PlusIDForPlatform(evt.UserID)
	if !ok {
		f.drop(eventPresenceReceived, zap.String("platform_id", idString(evt.UserID)))
		return
	}
	f.published(eventPresenceReceived)
	f.events.PresenceReceived.Broadcast(PresenceReceivedEvent{UserID: userID, Presence: evt.Presence})
}

func (f *EventFanout) onPresenceArrayUpdated(evt oss.PresenceArrayUpdatedEvent) {
	userID, ok := f.registry.PlusIDForPlatform(evt.UserID)
	if !ok {
		f.drop(eventPresenceArrayUpdated, zap.String("platform_id", idString(evt.UserID)))
		return
	}
	f.published(eventPresenceArrayUpdated)
	f.events.PresenceArrayUpdated.Broadcast(PresenceArrayUpdatedEvent{UserID: userID, Presences: evt.Presences})
}

func (f *EventFanout) onPlatformLoginChanged(evt oss.LoginChangedEvent) {
	f.published(eventLoginChanged)
	f.events.LoginChanged.Broadcast(evt)
}

// onEOSLoginChanged only forwards EOS changes that leave the slot logged in, and only
// when EOS login is part of the flow at all.
func (f *EventFanout) onEOSLoginChanged(evt oss.LoginChangedEvent) {
	if !f.settings.Load().EOSLoginEnabled() {
		return
	}
	if f.eos.Identity().LoginStatus(evt.Slot) != oss.LoggedIn {
		f.logger.Debug("EOS login changed to a non logged in state", zap.Int("slot", evt.Slot))
		return
	}
	f.published(eventLoginChanged)
	f.events.LoginChanged.Broadcast(evt)
}

func (f *EventFanout) onLoginStatusChanged(evt oss.LoginStatusChangedEvent) {
	if evt.New != oss.UsingLocalProfile {
		return
	}
	if !f.settings.Load().EOSLoginEnabled() {
		f.eos.Identity().Logout(evt.Slot)
	}

	var newID *netid.PlusID
	if evt.NewID != nil {
		var ok bool
		if newID, ok = f.registry.Resolve(evt.NewID); !ok {
			f.drop(eventLoginStatusChanged, zap.Int("slot", evt.Slot), zap.String("platform_id", idString(evt.NewID)))
			return
		}
	}
	f.published(eventLoginStatusChanged)
	f.events.LoginStatusChanged.Broadcast(LoginStatusChangedEvent{Slot: evt.Slot, Old: evt.Old, New: evt.New, NewID: newID})
}

func (f *EventFanout) onLogoutComplete(evt oss.LogoutCompleteEvent) {
	f.published(eventLogoutComplete)
	f.events.LogoutComplete.Broadcast(evt)
}

func (f *EventFanout) onQueryUserInfoComplete(evt oss.QueryUserInfoCompleteEvent) {
	var ids []*netid.PlusID
	if evt.Success {
		ids = make([]*netid.PlusID, 0, len(evt.UserIDs))
		for _, id := range evt.UserIDs {
			plusID, ok := f.registry.Resolve(id)
			if !ok {
				f.drop(eventQueryUserInfoComplete, zap.String("user_id", idString(id)))
				continue
			}
			ids = append(ids, plusID)
		}
	}
	f.published(eventQueryUserInfoComplete)
	f.events.QueryUserInfoComplete.Broadcast(QueryUserInfoCompleteEvent{Slot: evt.Slot, Success: evt.Success, UserIDs: ids, Error: evt.Error})
}

func (f *EventFanout) pairingUser(user oss.ControllerPairingUser) (ControllerPairingUser, bool) {
	out := ControllerPairingUser{ControllersRemaining: user.ControllersRemaining}
	if user.ID == nil {
		return out, true
	}
	plusID, ok := f.registry.Resolve(user.ID)
	if !ok {
		f.drop(eventControllerPairing, zap.String("platform_id", idString(user.ID)))
		return out, false
	}
	out.ID = plusID
	return out, true
}

func (f *EventFanout) onControllerPairingChanged(evt oss.ControllerPairingChangedEvent) {
	previous, ok := f.pairingUser(evt.Previous)
	if !ok {
		return
	}
	next, ok := f.pairingUser(evt.New)
	if !ok {
		return
	}
	f.published(eventControllerPairing)
	f.events.ControllerPairingChanged.Broadcast(ControllerPairingChangedEvent{Slot: evt.Slot, Previous: previous, New: next})
}
