package server

import (
	"errors"
	"testing"

	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
	"github.com/echotools/eosplus/server/oss/osstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc/codes"
)

type testHarness struct {
	t        *testing.T
	tick     *oss.TickQueue
	platform *osstest.Subsystem
	eos      *osstest.Subsystem
	scope    tally.TestScope
	logs     *observer.ObservedLogs
	plus     *EOSPlus
}

func newTestHarness(t *testing.T, configure func(cfg *EOSPlusConfig), opts ...osstest.Option) *testHarness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	cfg := NewEOSPlusConfig()
	if configure != nil {
		configure(cfg)
	}

	tick := oss.NewTickQueue()
	scope := tally.NewTestScope("", nil)
	platform := osstest.New(netid.SteamSubsystem, tick, opts...)
	eos := osstest.New(netid.EOSType, tick)

	plus, err := NewEOSPlus(logger, NewSettings(cfg), platform, eos, tick, NewLocalMetrics(logger, scope))
	require.NoError(t, err)
	t.Cleanup(plus.Close)

	return &testHarness{
		t:        t,
		tick:     tick,
		platform: platform,
		eos:      eos,
		scope:    scope,
		logs:     logs,
		plus:     plus,
	}
}

// login signs slot in on both fakes and drives the tick queue until the login settles.
// eosID may be nil to leave the EOS fake without an account for the slot.
func (h *testHarness) login(slot int, platformValue string, eosID netid.ID) *netid.PlusID {
	h.t.Helper()
	platformID := osstest.PlatformID(netid.SteamSubsystem, platformValue)
	h.platform.FakeIdentity().SetAccount(slot, platformID, "player-"+platformValue)
	if eosID != nil {
		h.eos.FakeIdentity().SetAccount(slot, eosID, "eos-"+platformValue)
	}

	var completed *LoginCompleteEvent
	sub := h.plus.Events().LoginComplete.Add(func(evt LoginCompleteEvent) {
		if evt.Slot == slot {
			completed = &evt
		}
	})
	defer sub.Unsubscribe()

	require.True(h.t, h.plus.Login(slot, oss.Credentials{Type: "password", ID: platformValue, Token: "secret"}))
	h.tick.Drain(10)

	require.NotNil(h.t, completed, "login did not complete")
	require.True(h.t, completed.Success, completed.Error)
	return completed.UserID
}

// remote registers a player seen only through another player's lists.
func (h *testHarness) remote(platformValue string, eosID netid.ID) *netid.PlusID {
	h.t.Helper()
	var platformID netid.ID
	if platformValue != "" {
		platformID = osstest.PlatformID(netid.SteamSubsystem, platformValue)
	}
	plusID, err := h.plus.Registry().RegisterRemotePlayer(platformID, eosID)
	require.NoError(h.t, err)
	return plusID
}

func counterValue(scope tally.TestScope, name string, tags map[string]string) int64 {
	var total int64
	for _, c := range scope.Snapshot().Counters() {
		if c.Name() != name {
			continue
		}
		match := true
		for k, v := range tags {
			if c.Tags()[k] != v {
				match = false
				break
			}
		}
		if match {
			total += c.Value()
		}
	}
	return total
}

func gaugeValue(scope tally.TestScope, name string) float64 {
	for _, g := range scope.Snapshot().Gauges() {
		if g.Name() == name {
			return g.Value()
		}
	}
	return 0
}

func TestNewEOSPlus_RequiresSubsystems(t *testing.T) {
	tick := oss.NewTickQueue()
	platform := osstest.New(netid.SteamSubsystem, tick)
	eos := osstest.New(netid.EOSType, tick)

	tests := []struct {
		name     string
		platform oss.Subsystem
		eos      oss.Subsystem
	}{
		{"missing platform", nil, eos},
		{"missing eos", platform, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEOSPlus(zap.NewNop(), nil, tt.platform, tt.eos, tick, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSubsystemUnavailable))
			assert.Equal(t, codes.Unavailable, ErrorCode(err))
		})
	}
}

func TestNewEOSPlus_WarnsOnPlatformMismatch(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	tick := oss.NewTickQueue()
	cfg := NewEOSPlusConfig()
	cfg.PlatformSubsystem = netid.PS4Subsystem

	plus, err := NewEOSPlus(zap.New(core), NewSettings(cfg), osstest.New(netid.SteamSubsystem, tick), osstest.New(netid.EOSType, tick), tick, nil)
	require.NoError(t, err)
	defer plus.Close()

	assert.Equal(t, 1, logs.FilterMessage("Platform subsystem name does not match configuration").Len())
}

func TestEOSPlus_CloseReleasesSubscriptions(t *testing.T) {
	h := newTestHarness(t, nil, osstest.WithUsers())

	require.Greater(t, h.platform.Subscribers(), 0)
	require.Greater(t, h.eos.Subscribers(), 0)

	h.plus.Close()
	assert.Equal(t, 0, h.platform.Subscribers())
	assert.Equal(t, 0, h.eos.Subscribers())
	assert.Equal(t, 0, h.plus.SubscriptionCount())

	// A second close must not panic or release anything twice.
	h.plus.Close()
	assert.Equal(t, 0, h.platform.Subscribers())
}

func TestEOSPlus_IdentityPassThroughs(t *testing.T) {
	h := newTestHarness(t, func(cfg *EOSPlusConfig) { cfg.UseEAS = true })
	eosID := osstest.NewEOSID()
	plusID := h.login(0, "76561198000000001", eosID)

	got, ok := h.plus.GetUniquePlayerID(0)
	require.True(t, ok)
	assert.True(t, plusID.Equals(got))

	_, ok = h.plus.GetUniquePlayerID(1)
	assert.False(t, ok)

	account, ok := h.plus.GetUserAccount(plusID)
	require.True(t, ok)
	assert.Equal(t, "player-76561198000000001", account.DisplayName())
	assert.NotNil(t, account.EOSAccount())
	assert.Len(t, h.plus.GetAllUserAccounts(), 1)

	assert.Equal(t, oss.LoggedIn, h.plus.GetLoginStatus(0))
	assert.Equal(t, oss.LoggedIn, h.plus.GetLoginStatusByID(plusID))
	assert.Equal(t, oss.NotLoggedIn, h.plus.GetLoginStatusByID(h.remote("unknown", nil)))
	assert.Equal(t, "player-76561198000000001", h.plus.GetPlayerNickname(0))
	assert.Equal(t, "player-76561198000000001", h.plus.GetPlayerNicknameByID(plusID))
	assert.Equal(t, "STEAM-token-76561198000000001", h.plus.GetAuthToken(0))
	assert.Equal(t, "STEAM:fake", h.plus.GetAuthType())
}

func TestEOSPlus_CreateUniquePlayerID(t *testing.T) {
	h := newTestHarness(t, nil)
	eosID := osstest.NewEOSID()
	source, err := netid.NewPlusID(osstest.PlatformID(netid.SteamSubsystem, "76561198000000002"), eosID)
	require.NoError(t, err)

	fromBytes, err := h.plus.CreateUniquePlayerID(source.Bytes())
	require.NoError(t, err)
	assert.True(t, source.Equals(fromBytes))

	fromString, err := h.plus.ParseUniquePlayerID(source.String())
	require.NoError(t, err)
	assert.Same(t, fromBytes, fromString, "the second decode should return the registered composite")

	resolved, ok := h.plus.Registry().PlusIDForEOS(eosID)
	require.True(t, ok)
	assert.True(t, source.Equals(resolved))

	_, err = h.plus.CreateUniquePlayerID(make([]byte, netid.EOSIDByteSize-1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPlayerID))
	assert.True(t, errors.Is(err, netid.ErrInvalidPlusIDSize))
	assert.Equal(t, codes.InvalidArgument, ErrorCode(err))

	_, err = h.plus.ParseUniquePlayerID("no-separator")
	require.Error(t, err)
	assert.True(t, errors.Is(err, netid.ErrMissingSeparator))
}

func TestEOSPlus_GetUserPrivilege(t *testing.T) {
	h := newTestHarness(t, nil)
	local := h.login(0, "76561198000000120", osstest.NewEOSID())
	muted := h.login(1, "76561198000000121", nil)
	h.platform.FakeIdentity().DenyPrivilege(muted.PlatformID(), oss.PrivilegeChatRestriction)
	stranger := h.remote("76561198000000122", nil)

	tests := []struct {
		name         string
		id           *netid.PlusID
		wantFailures oss.PrivilegeFailure
		wantPlatform int
	}{
		{"granted", local, oss.PrivilegeNoFailures, 1},
		{"denied", muted, oss.PrivilegeChatRestriction, 1},
		{"remote player", stranger, oss.PrivilegeUserNotFound, 1},
		{"nil id", nil, oss.PrivilegeUserNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := h.platform.Calls("UserPrivilege")

			var result *oss.PrivilegeResult
			h.plus.GetUserPrivilege(tt.id, oss.PrivilegeCanCommunicateOnline, func(r oss.PrivilegeResult) { result = &r })
			assert.Nil(t, result, "completion must not run synchronously")
			h.tick.Drain(10)

			require.NotNil(t, result)
			assert.Equal(t, tt.wantPlatform, h.platform.Calls("UserPrivilege")-before)
			assert.Equal(t, oss.PrivilegeCanCommunicateOnline, result.Privilege)
			assert.Equal(t, tt.wantFailures, result.Failures)
			assert.Equal(t, tt.wantFailures == oss.PrivilegeNoFailures, result.Granted())
			if tt.id == nil {
				assert.Nil(t, result.UserID)
				return
			}
			assert.Same(t, tt.id, result.UserID)
		})
	}
}

func TestEOSPlus_GetUserPrivilegeUnknownPlayer(t *testing.T) {
	h := newTestHarness(t, nil)
	unknown, err := netid.NewPlusID(steamID("76561198000000123"), nil)
	require.NoError(t, err)

	var result *oss.PrivilegeResult
	h.plus.GetUserPrivilege(unknown, oss.PrivilegeCanPlay, func(r oss.PrivilegeResult) { result = &r })
	h.tick.Drain(10)

	require.NotNil(t, result)
	assert.Equal(t, oss.PrivilegeUserNotFound, result.Failures)
	assert.Same(t, unknown, result.UserID)
	assert.Zero(t, h.platform.Calls("UserPrivilege"))
	assert.Equal(t, 1, h.logs.FilterMessage("GetUserPrivilege for unknown player").Len())
}

func TestEOSPlus_GetPlatformUserID(t *testing.T) {
	h := newTestHarness(t, func(cfg *EOSPlusConfig) { cfg.UseEAS = true })
	h.login(0, "76561198000000130", nil)
	second := h.login(1, "76561198000000131", osstest.NewEOSID())
	eosOnly := h.remote("", osstest.NewEOSID())

	tests := []struct {
		name string
		id   netid.ID
		want oss.PlatformUserID
	}{
		{"composite", second, 1},
		{"platform id", second.PlatformID(), 1},
		{"eos half", second.EOSID(), oss.InvalidPlatformUserID},
		{"eos only composite", eosOnly, oss.InvalidPlatformUserID},
		{"unregistered", steamID("76561198000000139"), oss.InvalidPlatformUserID},
		{"nil", nil, oss.InvalidPlatformUserID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.plus.GetPlatformUserID(tt.id))
		})
	}
}

func TestEOSPlus_AuthTokens(t *testing.T) {
	h := newTestHarness(t, nil)
	local := h.login(0, "76561198000000140", osstest.NewEOSID())
	stranger := h.remote("76561198000000141", nil)
	token := h.plus.GetAuthToken(0)
	require.NotEmpty(t, token)

	t.Run("linked account token", func(t *testing.T) {
		tests := []struct {
			name        string
			slot        int
			wantSuccess bool
			wantToken   string
			wantID      *netid.PlusID
		}{
			{"logged in slot", 0, true, token, local},
			{"empty slot", 3, false, "", nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var result *oss.AuthTokenResult
				h.plus.GetLinkedAccountAuthToken(tt.slot, func(r oss.AuthTokenResult) { result = &r })
				h.tick.Drain(10)

				require.NotNil(t, result)
				assert.Equal(t, tt.wantSuccess, result.Success)
				assert.Equal(t, tt.wantToken, result.Token)
				if tt.wantID == nil {
					assert.Nil(t, result.UserID)
				} else {
					assert.Same(t, tt.wantID, result.UserID)
				}
			})
		}
	})

	t.Run("revoke", func(t *testing.T) {
		tests := []struct {
			name         string
			id           *netid.PlusID
			wantSuccess  bool
			wantError    string
			wantPlatform int
		}{
			{"unknown player", func() *netid.PlusID {
				id, err := netid.NewPlusID(steamID("76561198000000149"), nil)
				require.NoError(t, err)
				return id
			}(), false, ErrUnknownPlayer.Message, 0},
			{"remote player", stranger, false, "user not logged in", 1},
			{"local player", local, true, "", 1},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				before := h.platform.Calls("RevokeAuthToken")

				var result *oss.AuthTokenResult
				h.plus.RevokeAuthToken(tt.id, func(r oss.AuthTokenResult) { result = &r })
				assert.Nil(t, result, "completion must not run synchronously")
				h.tick.Drain(10)

				require.NotNil(t, result)
				assert.Equal(t, tt.wantPlatform, h.platform.Calls("RevokeAuthToken")-before)
				assert.Equal(t, tt.wantSuccess, result.Success)
				assert.Equal(t, tt.wantError, result.Error)
				assert.Same(t, tt.id, result.UserID)
			})
		}
		assert.Empty(t, h.plus.GetAuthToken(0))
	})
}
