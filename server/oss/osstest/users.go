package osstest

import (
	"sort"
	"strings"

	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
)

var _ oss.Users = (*Users)(nil)

type Users struct {
	sys      *Subsystem
	users    map[string]*oss.OnlineUser
	external map[string]netid.ID

	queryComplete *oss.Hub[oss.QueryUserInfoCompleteEvent]
}

func (u *Users) SetUser(user *oss.OnlineUser) {
	u.users[user.ID.String()] = user
}

// QueryUserInfo completes with the subset of userIDs the fake knows about.
func (u *Users) QueryUserInfo(slot int, userIDs []netid.ID) bool {
	u.sys.record("QueryUserInfo")
	ids := append([]netid.ID(nil), userIDs...)
	u.sys.later(func() {
		found := make([]netid.ID, 0, len(ids))
		for _, id := range ids {
			if _, ok := u.users[id.String()]; ok {
				found = append(found, id)
			}
		}
		u.queryComplete.Broadcast(oss.QueryUserInfoCompleteEvent{Slot: slot, Success: true, UserIDs: found})
	})
	return true
}

func (u *Users) AllUserInfo(slot int) ([]*oss.OnlineUser, bool) {
	u.sys.record("AllUserInfo")
	keys := make([]string, 0, len(u.users))
	for k := range u.users {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	users := make([]*oss.OnlineUser, 0, len(keys))
	for _, k := range keys {
		users = append(users, u.users[k])
	}
	return users, len(users) > 0
}

func (u *Users) UserInfo(slot int, userID netid.ID) (*oss.OnlineUser, bool) {
	u.sys.record("UserInfo")
	user, ok := u.users[userID.String()]
	return user, ok
}

func (u *Users) QueryUserIDMapping(userID netid.ID, displayNameOrEmail string, done func(oss.UserMappingResult)) bool {
	u.sys.record("QueryUserIDMapping")
	u.sys.later(func() {
		result := oss.UserMappingResult{DisplayName: displayNameOrEmail}
		for _, user := range u.users {
			if strings.EqualFold(user.DisplayName, displayNameOrEmail) {
				result.Success = true
				result.FoundID = user.ID
				break
			}
		}
		if !result.Success {
			result.Error = "user not found"
		}
		if done != nil {
			done(result)
		}
	})
	return true
}

// SetExternalID maps externalID of the service named by opts to id.
func (u *Users) SetExternalID(opts oss.ExternalIDQueryOptions, externalID string, id netid.ID) {
	u.external[opts.Key(externalID)] = id
}

// QueryExternalIDMappings succeeds when every external id is known.
func (u *Users) QueryExternalIDMappings(userID netid.ID, opts oss.ExternalIDQueryOptions, externalIDs []string, done func(oss.ExternalIDMappingResult)) bool {
	u.sys.record("QueryExternalIDMappings")
	ids := append([]string(nil), externalIDs...)
	u.sys.later(func() {
		result := oss.ExternalIDMappingResult{UserID: userID, Options: opts, ExternalIDs: ids, Success: true}
		for _, externalID := range ids {
			if _, ok := u.external[opts.Key(externalID)]; !ok {
				result.Success = false
				result.Error = "unknown external id " + externalID
				break
			}
		}
		if done != nil {
			done(result)
		}
	})
	return true
}

// ExternalIDMappings returns one entry per external id, nil where unknown.
func (u *Users) ExternalIDMappings(opts oss.ExternalIDQueryOptions, externalIDs []string) []netid.ID {
	u.sys.record("ExternalIDMappings")
	out := make([]netid.ID, 0, len(externalIDs))
	for _, externalID := range externalIDs {
		out = append(out, u.external[opts.Key(externalID)])
	}
	return out
}

func (u *Users) ExternalIDMapping(opts oss.ExternalIDQueryOptions, externalID string) (netid.ID, bool) {
	u.sys.record("ExternalIDMapping")
	id, ok := u.external[opts.Key(externalID)]
	return id, ok
}

func (u *Users) OnQueryUserInfoComplete(fn func(oss.QueryUserInfoCompleteEvent)) *oss.Subscription {
	return u.queryComplete.Add(fn)
}

func (u *Users) EmitQueryUserInfoComplete(slot int, success bool, userIDs ...netid.ID) {
	u.queryComplete.Broadcast(oss.QueryUserInfoCompleteEvent{Slot: slot, Success: success, UserIDs: userIDs})
}

func (u *Users) Subscribers() int {
	return u.queryComplete.Len()
}
