package server

import (
	"testing"

	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
	"github.com/echotools/eosplus/server/oss/osstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserInfoPlus_WithoutUserService(t *testing.T) {
	h := newTestHarness(t, nil)
	users := h.plus.Users()
	friend := h.remote("76561198000000600", nil)

	var completions []QueryUserInfoCompleteEvent
	h.plus.Events().QueryUserInfoComplete.Add(func(evt QueryUserInfoCompleteEvent) { completions = append(completions, evt) })

	assert.True(t, users.QueryUserInfo(2, []*netid.PlusID{friend}))
	assert.Empty(t, completions, "failure is reported on the next tick")
	h.tick.Tick()

	require.Len(t, completions, 1)
	assert.Equal(t, 2, completions[0].Slot)
	assert.False(t, completions[0].Success)
	assert.Equal(t, ErrSubsystemUnavailable.Message, completions[0].Error)

	_, ok := users.AllUserInfo(0)
	assert.False(t, ok)
	_, ok = users.UserInfo(0, friend)
	assert.False(t, ok)

	var mapping *oss.UserMappingResult
	assert.True(t, users.QueryUserIDMapping(friend, "someone", func(r oss.UserMappingResult) { mapping = &r }))
	h.tick.Tick()
	require.NotNil(t, mapping)
	assert.False(t, mapping.Success)
}

func TestUserInfoPlus_QueryUserInfo(t *testing.T) {
	h := newTestHarness(t, nil, osstest.WithUsers())
	users := h.plus.Users()
	known := h.remote("76561198000000601", nil)
	h.platform.FakeUsers().SetUser(&oss.OnlineUser{ID: known.PlatformID(), DisplayName: "Pat"})

	var completions []QueryUserInfoCompleteEvent
	h.plus.Events().QueryUserInfoComplete.Add(func(evt QueryUserInfoCompleteEvent) { completions = append(completions, evt) })

	require.True(t, users.QueryUserInfo(0, []*netid.PlusID{known}))
	h.tick.Drain(10)

	require.Len(t, completions, 1)
	assert.True(t, completions[0].Success)
	require.Len(t, completions[0].UserIDs, 1)
	assert.Same(t, known, completions[0].UserIDs[0])

	info, ok := users.UserInfo(0, known)
	require.True(t, ok)
	assert.Equal(t, "Pat", info.DisplayName())
	assert.Same(t, known, info.ID)

	// An id with no platform half never reaches the platform.
	eosOnly := h.remote("", osstest.NewEOSID())
	completions = nil
	require.True(t, users.QueryUserInfo(0, []*netid.PlusID{known, eosOnly}))
	h.tick.Drain(10)
	require.Len(t, completions, 1)
	assert.False(t, completions[0].Success)
	assert.Equal(t, 1, h.platform.Calls("QueryUserInfo"))
}

func TestUserInfoPlus_AllUserInfoWrapsEveryUser(t *testing.T) {
	h := newTestHarness(t, nil, osstest.WithUsers())
	known := h.remote("76561198000000602", osstest.NewEOSID())
	h.platform.FakeUsers().SetUser(&oss.OnlineUser{ID: known.PlatformID(), DisplayName: "Quinn"})
	h.platform.FakeUsers().SetUser(&oss.OnlineUser{ID: steamID("76561198000000603"), DisplayName: "Riley"})

	all, ok := h.plus.Users().AllUserInfo(0)
	require.True(t, ok)
	require.Len(t, all, 2)
	assert.Same(t, known, all[0].ID)
	assert.Equal(t, "Riley", all[1].DisplayName())

	_, registered := h.plus.Registry().PlusIDForPlatform(steamID("76561198000000603"))
	assert.True(t, registered)
}

func TestUserInfoPlus_QueryUserIDMapping(t *testing.T) {
	h := newTestHarness(t, nil, osstest.WithUsers())
	local := h.login(0, "76561198000000604", nil)
	h.platform.FakeUsers().SetUser(&oss.OnlineUser{ID: steamID("76561198000000605"), DisplayName: "Sam"})

	tests := []struct {
		name        string
		query       string
		wantSuccess bool
	}{
		{"found", "sam", true},
		{"not found", "nobody", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result oss.UserMappingResult
			require.True(t, h.plus.Users().QueryUserIDMapping(local, tt.query, func(r oss.UserMappingResult) { result = r }))
			h.tick.Drain(10)

			assert.Equal(t, tt.wantSuccess, result.Success)
			if !tt.wantSuccess {
				assert.Nil(t, result.FoundID)
				return
			}
			require.NotNil(t, result.FoundID)
			assert.Equal(t, netid.PlusType, result.FoundID.Type())
			found, ok := h.plus.Registry().PlusIDForPlatform(steamID("76561198000000605"))
			require.True(t, ok)
			assert.Equal(t, found.String(), result.FoundID.String())
		})
	}
}

func TestUserInfoPlus_ExternalIDMappings(t *testing.T) {
	opts := oss.ExternalIDQueryOptions{AuthType: "discord"}
	discordID := osstest.PlatformID("discord", "1200")

	tests := []struct {
		name        string
		withUsers   bool
		known       bool
		externalIDs []string
		wantSuccess bool
		wantError   string
		wantCalls   int
	}{
		{"mapped", true, true, []string{"1200"}, true, "", 1},
		{"unmapped external id", true, true, []string{"1200", "9999"}, false, "unknown external id 9999", 1},
		{"unknown player", true, false, []string{"1200"}, false, ErrSubsystemUnavailable.Message, 0},
		{"no user service", false, true, []string{"1200"}, false, ErrSubsystemUnavailable.Message, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opt []osstest.Option
			if tt.withUsers {
				opt = append(opt, osstest.WithUsers())
			}
			h := newTestHarness(t, nil, opt...)
			if tt.withUsers {
				h.platform.FakeUsers().SetExternalID(opts, "1200", discordID)
			}

			userID := h.remote("76561198000000610", nil)
			if !tt.known {
				var err error
				userID, err = netid.NewPlusID(steamID("76561198000000619"), nil)
				require.NoError(t, err)
			}

			var result *oss.ExternalIDMappingResult
			require.True(t, h.plus.Users().QueryExternalIDMappings(userID, opts, tt.externalIDs, func(r oss.ExternalIDMappingResult) { result = &r }))
			assert.Nil(t, result, "completion must not run synchronously")
			h.tick.Drain(10)

			require.NotNil(t, result)
			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantError, result.Error)
			assert.Same(t, userID, result.UserID)
			assert.Equal(t, opts, result.Options)
			assert.Equal(t, tt.externalIDs, result.ExternalIDs)
			assert.Equal(t, tt.wantCalls, h.platform.Calls("QueryExternalIDMappings"))

			id, ok := h.plus.Users().ExternalIDMapping(opts, "1200")
			ids := h.plus.Users().ExternalIDMappings(opts, []string{"1200", "9999"})
			if !tt.withUsers {
				assert.False(t, ok)
				assert.Nil(t, ids)
				return
			}
			require.True(t, ok)
			assert.Equal(t, discordID.String(), id.String())
			require.Len(t, ids, 2)
			assert.Equal(t, discordID.String(), ids[0].String())
			assert.Nil(t, ids[1])

			_, ok = h.plus.Users().ExternalIDMapping(oss.ExternalIDQueryOptions{AuthType: "discord", LookupByDisplayName: true}, "1200")
			assert.False(t, ok, "display name lookups use their own keys")
		})
	}
}
