package osstest

import (
	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
)

var _ oss.Friends = (*Friends)(nil)

const aliasAttribute = "alias"

type Friends struct {
	sys *Subsystem

	lists    map[int]map[string][]*oss.Friend
	readFail map[int]string
	recent   map[string][]*oss.RecentPlayer
	blocked  map[string][]*oss.BlockedPlayer
	invites  []netid.ID

	friendsChange      *oss.Hub[oss.FriendsChangeEvent]
	outgoingInviteSent *oss.Hub[oss.OutgoingInviteSentEvent]
	inviteReceived     *oss.Hub[oss.FriendEvent]
	inviteAccepted     *oss.Hub[oss.FriendEvent]
	inviteRejected     *oss.Hub[oss.FriendEvent]
	inviteAborted      *oss.Hub[oss.FriendEvent]
	friendRemoved      *oss.Hub[oss.FriendEvent]
}

func newFriends(s *Subsystem) *Friends {
	return &Friends{
		sys:                s,
		lists:              make(map[int]map[string][]*oss.Friend),
		readFail:           make(map[int]string),
		recent:             make(map[string][]*oss.RecentPlayer),
		blocked:            make(map[string][]*oss.BlockedPlayer),
		friendsChange:      oss.NewHub[oss.FriendsChangeEvent](),
		outgoingInviteSent: oss.NewHub[oss.OutgoingInviteSentEvent](),
		inviteReceived:     oss.NewHub[oss.FriendEvent](),
		inviteAccepted:     oss.NewHub[oss.FriendEvent](),
		inviteRejected:     oss.NewHub[oss.FriendEvent](),
		inviteAborted:      oss.NewHub[oss.FriendEvent](),
		friendRemoved:      oss.NewHub[oss.FriendEvent](),
	}
}

// NewFriend builds an accepted friend record for id.
func NewFriend(id netid.ID, displayName string) *oss.Friend {
	return &oss.Friend{
		OnlineUser: oss.OnlineUser{
			ID:          id,
			DisplayName: displayName,
		},
		InviteStatus: oss.InviteAccepted,
	}
}

// SetFriends replaces the named list for slot.
func (f *Friends) SetFriends(slot int, listName string, friends ...*oss.Friend) {
	if f.lists[slot] == nil {
		f.lists[slot] = make(map[string][]*oss.Friend)
	}
	f.lists[slot][listName] = friends
}

// FailRead makes ReadFriendsList on slot complete with errStr.
func (f *Friends) FailRead(slot int, errStr string) {
	f.readFail[slot] = errStr
}

func (f *Friends) SetRecentPlayers(userID netid.ID, players ...*oss.RecentPlayer) {
	f.recent[userID.String()] = players
}

func (f *Friends) SetBlockedPlayers(userID netid.ID, players ...*oss.BlockedPlayer) {
	f.blocked[userID.String()] = players
}

// SentInvites returns the ids passed to SendInvite, in call order.
func (f *Friends) SentInvites() []netid.ID {
	return append([]netid.ID(nil), f.invites...)
}

func (f *Friends) find(slot int, friendID netid.ID, listName string) (int, *oss.Friend) {
	for i, friend := range f.lists[slot][listName] {
		if sameID(friend.ID, friendID) {
			return i, friend
		}
	}
	return -1, nil
}

func (f *Friends) remove(slot int, friendID netid.ID, listName string) bool {
	idx, _ := f.find(slot, friendID, listName)
	if idx < 0 {
		return false
	}
	list := f.lists[slot][listName]
	f.lists[slot][listName] = append(list[:idx:idx], list[idx+1:]...)
	return true
}

func (f *Friends) slotUser(slot int) string {
	if account, ok := f.sys.identity.accounts[slot]; ok {
		return account.ID.String()
	}
	return ""
}

func (f *Friends) ReadFriendsList(slot int, listName string, done func(oss.ListResult)) bool {
	f.sys.record("ReadFriendsList")
	f.sys.later(func() {
		result := oss.ListResult{Slot: slot, Success: true, ListName: listName}
		if errStr, ok := f.readFail[slot]; ok {
			result.Success = false
			result.Error = errStr
		}
		if done != nil {
			done(result)
		}
	})
	return true
}

func (f *Friends) DeleteFriendsList(slot int, listName string, done func(oss.ListResult)) bool {
	f.sys.record("DeleteFriendsList")
	delete(f.lists[slot], listName)
	f.sys.later(func() {
		if done != nil {
			done(oss.ListResult{Slot: slot, Success: true, ListName: listName})
		}
	})
	return true
}

func (f *Friends) SendInvite(slot int, friendID netid.ID, listName string, done func(oss.InviteResult)) bool {
	f.sys.record("SendInvite")
	f.invites = append(f.invites, friendID)
	f.sys.later(func() {
		if done != nil {
			done(oss.InviteResult{Slot: slot, Success: true, FriendID: friendID, ListName: listName})
		}
		f.outgoingInviteSent.Broadcast(oss.OutgoingInviteSentEvent{Slot: slot})
	})
	return true
}

func (f *Friends) AcceptInvite(slot int, friendID netid.ID, listName string, done func(oss.InviteResult)) bool {
	f.sys.record("AcceptInvite")
	_, friend := f.find(slot, friendID, listName)
	f.sys.later(func() {
		result := oss.InviteResult{Slot: slot, FriendID: friendID, ListName: listName}
		if friend == nil {
			result.Error = "invite not found"
		} else {
			friend.InviteStatus = oss.InviteAccepted
			result.Success = true
		}
		if done != nil {
			done(result)
		}
	})
	return true
}

func (f *Friends) RejectInvite(slot int, friendID netid.ID, listName string) bool {
	f.sys.record("RejectInvite")
	return f.remove(slot, friendID, listName)
}

func (f *Friends) DeleteFriend(slot int, friendID netid.ID, listName string) bool {
	f.sys.record("DeleteFriend")
	return f.remove(slot, friendID, listName)
}

func (f *Friends) FriendsList(slot int, listName string) ([]*oss.Friend, bool) {
	f.sys.record("FriendsList")
	list, ok := f.lists[slot][listName]
	return append([]*oss.Friend(nil), list...), ok
}

func (f *Friends) Friend(slot int, friendID netid.ID, listName string) (*oss.Friend, bool) {
	f.sys.record("Friend")
	_, friend := f.find(slot, friendID, listName)
	return friend, friend != nil
}

func (f *Friends) IsFriend(slot int, friendID netid.ID, listName string) bool {
	f.sys.record("IsFriend")
	_, friend := f.find(slot, friendID, listName)
	return friend != nil && friend.InviteStatus == oss.InviteAccepted
}

func (f *Friends) SetFriendAlias(slot int, friendID netid.ID, listName, alias string, done func(oss.AliasResult)) {
	f.sys.record("SetFriendAlias")
	_, friend := f.find(slot, friendID, listName)
	f.sys.later(func() {
		result := oss.AliasResult{FriendID: friendID}
		if friend == nil {
			result.Error = "friend not found"
		} else {
			friend.SetAttribute(aliasAttribute, alias)
			result.Success = true
		}
		if done != nil {
			done(result)
		}
	})
}

func (f *Friends) DeleteFriendAlias(slot int, friendID netid.ID, listName string, done func(oss.AliasResult)) {
	f.sys.record("DeleteFriendAlias")
	_, friend := f.find(slot, friendID, listName)
	f.sys.later(func() {
		result := oss.AliasResult{FriendID: friendID}
		if friend == nil {
			result.Error = "friend not found"
		} else {
			delete(friend.Attributes, aliasAttribute)
			result.Success = true
		}
		if done != nil {
			done(result)
		}
	})
}

func (f *Friends) QueryRecentPlayers(userID netid.ID, namespace string, done func(oss.QueryResult)) bool {
	f.sys.record("QueryRecentPlayers")
	f.sys.later(func() {
		if done != nil {
			done(oss.QueryResult{UserID: userID, Success: true})
		}
	})
	return true
}

func (f *Friends) RecentPlayers(userID netid.ID, namespace string) ([]*oss.RecentPlayer, bool) {
	f.sys.record("RecentPlayers")
	players, ok := f.recent[userID.String()]
	return append([]*oss.RecentPlayer(nil), players...), ok
}

func (f *Friends) BlockPlayer(slot int, playerID netid.ID) bool {
	f.sys.record("BlockPlayer")
	key := f.slotUser(slot)
	if key == "" {
		return false
	}
	f.blocked[key] = append(f.blocked[key], &oss.BlockedPlayer{OnlineUser: oss.OnlineUser{ID: playerID}})
	return true
}

func (f *Friends) UnblockPlayer(slot int, playerID netid.ID) bool {
	f.sys.record("UnblockPlayer")
	key := f.slotUser(slot)
	for i, p := range f.blocked[key] {
		if sameID(p.ID, playerID) {
			f.blocked[key] = append(f.blocked[key][:i:i], f.blocked[key][i+1:]...)
			return true
		}
	}
	return false
}

func (f *Friends) QueryBlockedPlayers(userID netid.ID, done func(oss.QueryResult)) bool {
	f.sys.record("QueryBlockedPlayers")
	f.sys.later(func() {
		if done != nil {
			done(oss.QueryResult{UserID: userID, Success: true})
		}
	})
	return true
}

func (f *Friends) BlockedPlayers(userID netid.ID) ([]*oss.BlockedPlayer, bool) {
	f.sys.record("BlockedPlayers")
	players, ok := f.blocked[userID.String()]
	return append([]*oss.BlockedPlayer(nil), players...), ok
}

func (f *Friends) OnFriendsChange(fn func(oss.FriendsChangeEvent)) *oss.Subscription {
	return f.friendsChange.Add(fn)
}

func (f *Friends) OnOutgoingInviteSent(fn func(oss.OutgoingInviteSentEvent)) *oss.Subscription {
	return f.outgoingInviteSent.Add(fn)
}

func (f *Friends) OnInviteReceived(fn func(oss.FriendEvent)) *oss.Subscription {
	return f.inviteReceived.Add(fn)
}

func (f *Friends) OnInviteAccepted(fn func(oss.FriendEvent)) *oss.Subscription {
	return f.inviteAccepted.Add(fn)
}

func (f *Friends) OnInviteRejected(fn func(oss.FriendEvent)) *oss.Subscription {
	return f.inviteRejected.Add(fn)
}

func (f *Friends) OnInviteAborted(fn func(oss.FriendEvent)) *oss.Subscription {
	return f.inviteAborted.Add(fn)
}

func (f *Friends) OnFriendRemoved(fn func(oss.FriendEvent)) *oss.Subscription {
	return f.friendRemoved.Add(fn)
}

func (f *Friends) EmitFriendsChange(slot int) {
	f.friendsChange.Broadcast(oss.FriendsChangeEvent{Slot: slot})
}

func (f *Friends) EmitOutgoingInviteSent(slot int) {
	f.outgoingInviteSent.Broadcast(oss.OutgoingInviteSentEvent{Slot: slot})
}

func (f *Friends) EmitInviteReceived(userID, friendID netid.ID) {
	f.inviteReceived.Broadcast(oss.FriendEvent{UserID: userID, FriendID: friendID})
}

func (f *Friends) EmitInviteAccepted(userID, friendID netid.ID) {
	f.inviteAccepted.Broadcast(oss.FriendEvent{UserID: userID, FriendID: friendID})
}

func (f *Friends) EmitInviteRejected(userID, friendID netid.ID) {
	f.inviteRejected.Broadcast(oss.FriendEvent{UserID: userID, FriendID: friendID})
}

func (f *Friends) EmitInviteAborted(userID, friendID netid.ID) {
	f.inviteAborted.Broadcast(oss.FriendEvent{UserID: userID, FriendID: friendID})
}

func (f *Friends) EmitFriendRemoved(userID, friendID netid.ID) {
	f.friendRemoved.Broadcast(oss.FriendEvent{UserID: userID, FriendID: friendID})
}

func (f *Friends) Subscribers() int {
	return f.friendsChange.Len() + f.outgoingInviteSent.Len() + f.inviteReceived.Len() +
		f.inviteAccepted.Len() + f.inviteRejected.Len() + f.inviteAborted.Len() + f.friendRemoved.Len()
}
