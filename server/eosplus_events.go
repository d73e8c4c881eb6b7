package server

import (
	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
)

// LoginCompleteEvent reports the outcome of a login for a local slot. UserID is nil
// when the platform login failed. EOSError carries the EOS failure text when the
// platform succeeded but EOS did not.
type LoginCompleteEvent struct {
	Slot     int
	Success  bool
	UserID   *netid.PlusID
	Error    string
	EOSError string
}

type LoginStatusChangedEvent struct {
	Slot  int
	Old   oss.LoginStatus
	New   oss.LoginStatus
	NewID *netid.PlusID
}

// FriendEvent is an invite or friend removal expressed in composite ids.
type FriendEvent struct {
	UserID   *netid.PlusID
	FriendID *netid.PlusID
}

type PresenceReceivedEvent struct {
	UserID   *netid.PlusID
	Presence oss.UserPresence
}

type PresenceArrayUpdatedEvent struct {
	UserID    *netid.PlusID
	Presences []oss.UserPresence
}

type QueryUserInfoCompleteEvent struct {
	Slot    int
	Success bool
	UserIDs []*netid.PlusID
	Error   string
}

type ControllerPairingUser struct {
	ID                   *netid.PlusID
	ControllersRemaining int
}

// ControllerPairingChangedEvent reports a controller moving between users. Either
// side's ID is nil when that side had no user.
type ControllerPairingChangedEvent struct {
	Slot     int
	Previous ControllerPairingUser
	New      ControllerPairingUser
}

// Events is the single event surface exposed to game code.
type Events struct {
	LoginComplete         *oss.Hub[LoginCompleteEvent]
	LogoutComplete        *oss.Hub[oss.LogoutCompleteEvent]
	LoginChanged          *oss.Hub[oss.LoginChangedEvent]
	LoginStatusChanged    *oss.Hub[LoginStatusChangedEvent]
	FriendsChange         *oss.Hub[oss.FriendsChangeEvent]
	OutgoingInviteSent    *oss.Hub[oss.OutgoingInviteSentEvent]
	InviteReceived        *oss.Hub[FriendEvent]
	InviteAccepted        *oss.Hub[FriendEvent]
	InviteRejected        *oss.Hub[FriendEvent]
	InviteAborted         *oss.Hub[FriendEvent]
	FriendRemoved         *oss.Hub[FriendEvent]
	PresenceReceived      *oss.Hub[PresenceReceivedEvent]
	PresenceArrayUpdated  *oss.Hub[PresenceArrayUpdatedEvent]
	QueryUserInfoComplete *oss.Hub[QueryUserInfoCompleteEvent]

	ControllerPairingChanged *oss.Hub[ControllerPairingChangedEvent]
}

func NewEvents() *Events {
	return &Events{
		LoginComplete:         oss.NewHub[LoginCompleteEvent](),
		LogoutComplete:        oss.NewHub[oss.LogoutCompleteEvent](),
		LoginChanged:          oss.NewHub[oss.LoginChangedEvent](),
		LoginStatusChanged:    oss.NewHub[LoginStatusChangedEvent](),
		FriendsChange:         oss.NewHub[oss.FriendsChangeEvent](),
		OutgoingInviteSent:    oss.NewHub[oss.OutgoingInviteSentEvent](),
		InviteReceived:        oss.NewHub[FriendEvent](),
		InviteAccepted:        oss.NewHub[FriendEvent](),
		InviteRejected:        oss.NewHub[FriendEvent](),
		InviteAborted:         oss.NewHub[FriendEvent](),
		FriendRemoved:         oss.NewHub[FriendEvent](),
		PresenceReceived:      oss.NewHub[PresenceReceivedEvent](),
		PresenceArrayUpdated:  oss.NewHub[PresenceArrayUpdatedEvent](),
		QueryUserInfoComplete: oss.NewHub[QueryUserInfoCompleteEvent](),

		ControllerPairingChanged: oss.NewHub[ControllerPairingChangedEvent](),
	}
}
