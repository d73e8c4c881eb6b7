package oss

import "github.com/echotools/eosplus/server/netid"

type LoginCompleteEvent struct {
	Slot    int
	Success bool
	UserID  netid.ID
	Error   string
}

type LogoutCompleteEvent struct {
	Slot    int
	Success bool
}

type LoginChangedEvent struct {
	Slot int
}

type LoginStatusChangedEvent struct {
	Slot  int
	Old   LoginStatus
	New   LoginStatus
	NewID netid.ID
}

type FriendsChangeEvent struct {
	Slot int
}

type OutgoingInviteSentEvent struct {
	Slot int
}

// FriendEvent carries the two parties of an invite or friend removal.
type FriendEvent struct {
	UserID   netid.ID
	FriendID netid.ID
}

type PresenceReceivedEvent struct {
	UserID   netid.ID
	Presence UserPresence
}

type PresenceArrayUpdatedEvent struct {
	UserID    netid.ID
	Presences []UserPresence
}

type QueryUserInfoCompleteEvent struct {
	Slot    int
	Success bool
	UserIDs []netid.ID
	Error   string
}

type ControllerPairingChangedEvent struct {
	Slot     int
	Previous ControllerPairingUser
	New      ControllerPairingUser
}
