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

// Package oss describes the online subsystem contract the aggregation layer is built
// on: identity, friends, presence and user info, plus the event hubs and the tick
// queue that drive asynchronous completions.
package oss

import (
	"time"

	"github.com/echotools/eosplus/server/netid"
)

type LoginStatus int

const (
	NotLoggedIn LoginStatus = iota
	UsingLocalProfile
	LoggedIn
)

func (s LoginStatus) String() string {
	switch s {
	case UsingLocalProfile:
		return "UsingLocalProfile"
	case LoggedIn:
		return "LoggedIn"
	default:
		return "NotLoggedIn"
	}
}

type InviteStatus int

const (
	InviteUnknown InviteStatus = iota
	InviteAccepted
	InvitePendingInbound
	InvitePendingOutbound
	InviteBlocked
	InviteSuggested
)

func (s InviteStatus) String() string {
	switch s {
	case InviteAccepted:
		return "Accepted"
	case InvitePendingInbound:
		return "PendingInbound"
	case InvitePendingOutbound:
		return "PendingOutbound"
	case InviteBlocked:
		return "Blocked"
	case InviteSuggested:
		return "Suggested"
	default:
		return "Unknown"
	}
}

// CachedResult is returned by synchronous cache reads.
type CachedResult int

const (
	CachedNotFound CachedResult = iota
	CachedSuccess
)

type PresenceState int

const (
	PresenceOnline PresenceState = iota
	PresenceOffline
	PresenceAway
	PresenceExtendedAway
	PresenceDoNotDisturb
	PresenceChat
)

// Credentials are handed to a subsystem's Login.
type Credentials struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Token string `json:"token"`
}

// OnlineUser is the common record every subsystem user type carries.
type OnlineUser struct {
	ID          netid.ID          `json:"-"`
	DisplayName string            `json:"display_name"`
	RealName    string            `json:"real_name"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

func (u *OnlineUser) Attribute(key string) (string, bool) {
	if u == nil || u.Attributes == nil {
		return "", false
	}
	v, ok := u.Attributes[key]
	return v, ok
}

func (u *OnlineUser) SetAttribute(key, value string) bool {
	if u == nil {
		return false
	}
	if u.Attributes == nil {
		u.Attributes = make(map[string]string)
	}
	u.Attributes[key] = value
	return true
}

// UserAccount is a logged in local user.
type UserAccount struct {
	OnlineUser
	AccessToken    string            `json:"-"`
	AuthAttributes map[string]string `json:"-"`
}

func (a *UserAccount) AuthAttribute(key string) (string, bool) {
	if a == nil || a.AuthAttributes == nil {
		return "", false
	}
	v, ok := a.AuthAttributes[key]
	return v, ok
}

func (a *UserAccount) SetAuthAttribute(key, value string) bool {
	if a == nil {
		return false
	}
	if a.AuthAttributes == nil {
		a.AuthAttributes = make(map[string]string)
	}
	a.AuthAttributes[key] = value
	return true
}

type Friend struct {
	OnlineUser
	InviteStatus InviteStatus `json:"invite_status"`
	Presence     UserPresence `json:"presence"`
}

type RecentPlayer struct {
	OnlineUser
	LastSeen time.Time `json:"last_seen"`
}

type BlockedPlayer struct {
	OnlineUser
}

type PresenceStatus struct {
	StatusStr  string            `json:"status"`
	State      PresenceState     `json:"state"`
	Properties map[string]string `json:"properties,omitempty"`
}

type UserPresence struct {
	SessionID         string         `json:"session_id,omitempty"`
	IsOnline          bool           `json:"is_online"`
	IsPlaying         bool           `json:"is_playing"`
	IsPlayingThisGame bool           `json:"is_playing_this_game"`
	IsJoinable        bool           `json:"is_joinable"`
	HasVoiceSupport   bool           `json:"has_voice_support"`
	LastOnline        time.Time      `json:"last_online"`
	Status            PresenceStatus `json:"status"`
}

// ListResult completes a friends list read or delete.
type ListResult struct {
	Slot     int
	Success  bool
	ListName string
	Error    string
}

// InviteResult completes SendInvite, AcceptInvite and DeleteFriend style requests.
type InviteResult struct {
	Slot     int
	Success  bool
	FriendID netid.ID
	ListName string
	Error    string
}

type AliasResult struct {
	UserID   netid.ID
	FriendID netid.ID
	Success  bool
	Error    string
}

type PresenceResult struct {
	UserID  netid.ID
	Success bool
}

// QueryResult completes recent and blocked player queries.
type QueryResult struct {
	UserID  netid.ID
	Success bool
	Error   string
}

type UserMappingResult struct {
	Slot        int
	Success     bool
	DisplayName string
	FoundID     netid.ID
	Error       string
}

// UserPrivilege names a capability checked by Identity.UserPrivilege.
type UserPrivilege int

const (
	PrivilegeCanPlay UserPrivilege = iota
	PrivilegeCanPlayOnline
	PrivilegeCanCommunicateOnline
	PrivilegeCanUseUserGeneratedContent
	PrivilegeCanCrossPlay
)

// PrivilegeFailure is a set of reasons a privilege was denied. Zero means granted.
type PrivilegeFailure uint32

const PrivilegeNoFailures PrivilegeFailure = 0

const (
	PrivilegeUserNotFound PrivilegeFailure = 1 << iota
	PrivilegeUserNotLoggedIn
	PrivilegeAgeRestriction
	PrivilegeChatRestriction
	PrivilegeOnlinePlayRestricted
	PrivilegeGenericFailure
)

type PrivilegeResult struct {
	UserID    netid.ID
	Privilege UserPrivilege
	Failures  PrivilegeFailure
}

func (r PrivilegeResult) Granted() bool {
	return r.Failures == PrivilegeNoFailures
}

// PlatformUserID is the operating system's handle for a signed in user.
type PlatformUserID int

const InvalidPlatformUserID PlatformUserID = -1

// AuthTokenResult completes RevokeAuthToken and LinkedAccountAuthToken. Token is
// empty for revocations.
type AuthTokenResult struct {
	Slot    int
	UserID  netid.ID
	Success bool
	Token   string
	Error   string
}

// ControllerPairingUser is one side of a controller pairing change. ID is nil when
// the controller had no user.
type ControllerPairingUser struct {
	ID                   netid.ID
	ControllersRemaining int
}

type ExternalIDQueryOptions struct {
	AuthType            string
	LookupByDisplayName bool
}

// Key is the lookup key for externalID under these options.
func (o ExternalIDQueryOptions) Key(externalID string) string {
	if o.LookupByDisplayName {
		return o.AuthType + ":name:" + externalID
	}
	return o.AuthType + ":" + externalID
}

type ExternalIDMappingResult struct {
	UserID      netid.ID
	Options     ExternalIDQueryOptions
	ExternalIDs []string
	Success     bool
	Error       string
}
