package oss

import "github.com/echotools/eosplus/server/netid"

// Subsystem is one online service backend: a platform (Steam, console services, ...)
// or EOS. Users may be nil when the backend has no user info service.
type Subsystem interface {
	Name() string
	Identity() Identity
	Friends() Friends
	Presence() Presence
	Users() Users
}

// Identity is the login side of a subsystem. Login, AutoLogin and Logout return
// whether the request was started; the outcome arrives through OnLoginComplete and
// OnLogoutComplete on a later tick.
type Identity interface {
	netid.Parser

	Login(slot int, creds Credentials) bool
	AutoLogin(slot int) bool
	Logout(slot int) bool

	UniquePlayerID(slot int) (netid.ID, bool)
	UserAccount(id netid.ID) (*UserAccount, bool)
	AllUserAccounts() []*UserAccount
	LoginStatus(slot int) LoginStatus
	LoginStatusByID(id netid.ID) LoginStatus
	PlayerNickname(slot int) string
	PlayerNicknameByID(id netid.ID) string
	AuthToken(slot int) string
	AuthType() string
	PlatformUserID(id netid.ID) PlatformUserID

	UserPrivilege(userID netid.ID, privilege UserPrivilege, done func(PrivilegeResult))
	RevokeAuthToken(userID netid.ID, done func(AuthTokenResult))
	LinkedAccountAuthToken(slot int, done func(AuthTokenResult))

	OnLoginComplete(fn func(LoginCompleteEvent)) *Subscription
	OnLogoutComplete(fn func(LogoutCompleteEvent)) *Subscription
	OnLoginChanged(fn func(LoginChangedEvent)) *Subscription
	OnLoginStatusChanged(fn func(LoginStatusChangedEvent)) *Subscription
	OnControllerPairingChanged(fn func(ControllerPairingChangedEvent)) *Subscription
}

// Friends covers the friends list, invites, recent players and the block list.
// Methods taking a done callback invoke it exactly once, on a later tick, when they
// return true.
type Friends interface {
	ReadFriendsList(slot int, listName string, done func(ListResult)) bool
	DeleteFriendsList(slot int, listName string, done func(ListResult)) bool
	SendInvite(slot int, friendID netid.ID, listName string, done func(InviteResult)) bool
	AcceptInvite(slot int, friendID netid.ID, listName string, done func(InviteResult)) bool
	RejectInvite(slot int, friendID netid.ID, listName string) bool
	DeleteFriend(slot int, friendID netid.ID, listName string) bool

	FriendsList(slot int, listName string) ([]*Friend, bool)
	Friend(slot int, friendID netid.ID, listName string) (*Friend, bool)
	IsFriend(slot int, friendID netid.ID, listName string) bool

	SetFriendAlias(slot int, friendID netid.ID, listName, alias string, done func(AliasResult))
	DeleteFriendAlias(slot int, friendID netid.ID, listName string, done func(AliasResult))

	QueryRecentPlayers(userID netid.ID, namespace string, done func(QueryResult)) bool
	RecentPlayers(userID netid.ID, namespace string) ([]*RecentPlayer, bool)

	BlockPlayer(slot int, playerID netid.ID) bool
	UnblockPlayer(slot int, playerID netid.ID) bool
	QueryBlockedPlayers(userID netid.ID, done func(QueryResult)) bool
	BlockedPlayers(userID netid.ID) ([]*BlockedPlayer, bool)

	OnFriendsChange(fn func(FriendsChangeEvent)) *Subscription
	OnOutgoingInviteSent(fn func(OutgoingInviteSentEvent)) *Subscription
	OnInviteReceived(fn func(FriendEvent)) *Subscription
	OnInviteAccepted(fn func(FriendEvent)) *Subscription
	OnInviteRejected(fn func(FriendEvent)) *Subscription
	OnInviteAborted(fn func(FriendEvent)) *Subscription
	OnFriendRemoved(fn func(FriendEvent)) *Subscription
}

type Presence interface {
	SetPresence(userID netid.ID, status PresenceStatus, done func(PresenceResult))
	QueryPresence(userID netid.ID, done func(PresenceResult))
	CachedPresence(userID netid.ID) (*UserPresence, CachedResult)
	CachedPresenceForApp(localUserID, userID netid.ID, appID string) (*UserPresence, CachedResult)

	OnPresenceReceived(fn func(PresenceReceivedEvent)) *Subscription
	OnPresenceArrayUpdated(fn func(PresenceArrayUpdatedEvent)) *Subscription
}

type Users interface {
	QueryUserInfo(slot int, userIDs []netid.ID) bool
	AllUserInfo(slot int) ([]*OnlineUser, bool)
	UserInfo(slot int, userID netid.ID) (*OnlineUser, bool)
	QueryUserIDMapping(userID netid.ID, displayNameOrEmail string, done func(UserMappingResult)) bool

	// External id lookups return ids of the external service, not of this subsystem.
	QueryExternalIDMappings(userID netid.ID, opts ExternalIDQueryOptions, externalIDs []string, done func(ExternalIDMappingResult)) bool
	ExternalIDMappings(opts ExternalIDQueryOptions, externalIDs []string) []netid.ID
	ExternalIDMapping(opts ExternalIDQueryOptions, externalID string) (netid.ID, bool)

	OnQueryUserInfoComplete(fn func(QueryUserInfoCompleteEvent)) *Subscription
}
