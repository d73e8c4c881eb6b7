package server

import (
	"testing"

	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
	"github.com/echotools/eosplus/server/oss/osstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginOrchestrator_EOSLegFollowsConfig(t *testing.T) {
	tests := []struct {
		name      string
		configure func(cfg *EOSPlusConfig)
		wantEOS   bool
	}{
		{"eos disabled", nil, false},
		{"use eas", func(cfg *EOSPlusConfig) { cfg.UseEAS = true }, true},
		{"use eos connect", func(cfg *EOSPlusConfig) { cfg.UseEOSConnect = true }, true},
		{"friends only", func(cfg *EOSPlusConfig) { cfg.UseEASForFriends = true }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t, tt.configure)
			eosID := osstest.NewEOSID()

			plusID := h.login(0, "76561198000000100", eosID)

			assert.Equal(t, "76561198000000100", plusID.PlatformID().String())
			assert.Equal(t, LoginComplete, h.plus.LoginState(0))
			assert.EqualValues(t, 1, counterValue(h.scope, "login_total", map[string]string{"result": "success"}))

			if tt.wantEOS {
				assert.Equal(t, 1, h.eos.Calls("Login"))
				require.NotNil(t, plusID.EOSID())
				assert.Equal(t, eosID.String(), plusID.EOSID().String())
				creds, ok := h.eos.FakeIdentity().LastCredentials(0)
				require.True(t, ok)
				assert.Equal(t, oss.Credentials{Type: "password", ID: "76561198000000100", Token: "secret"}, creds)
			} else {
				assert.Equal(t, 0, h.eos.Calls("Login"))
				assert.Nil(t, plusID.EOSID())
			}
		})
	}
}

func TestLoginOrchestrator_EOSFailureKeepsPlatformIdentity(t *testing.T) {
	h := newTestHarness(t, func(cfg *EOSPlusConfig) { cfg.UseEAS = true })
	platformID := osstest.PlatformID(netid.SteamSubsystem, "76561198000000101")
	h.platform.FakeIdentity().SetAccount(0, platformID, "Bob")
	h.eos.FakeIdentity().FailLogin(0, "eos unavailable")

	var events []LoginCompleteEvent
	h.plus.Events().LoginComplete.Add(func(evt LoginCompleteEvent) { events = append(events, evt) })

	require.True(t, h.plus.Login(0, oss.Credentials{}))
	assert.Equal(t, LoginPlatformPending, h.plus.LoginState(0))
	h.tick.Tick()
	assert.Equal(t, LoginEOSPending, h.plus.LoginState(0))
	h.tick.Drain(10)

	require.Len(t, events, 1)
	evt := events[0]
	assert.True(t, evt.Success)
	assert.Equal(t, "eos unavailable", evt.EOSError)
	require.NotNil(t, evt.UserID)
	assert.Nil(t, evt.UserID.EOSID())
	assert.Equal(t, platformID.String(), evt.UserID.PlatformID().String())

	assert.Equal(t, LoginComplete, h.plus.LoginState(0))
	assert.EqualValues(t, 1, counterValue(h.scope, "eos_login_total", map[string]string{"result": "failure"}))
	assert.EqualValues(t, 1, counterValue(h.scope, "login_total", map[string]string{"result": "success"}))
	assert.Equal(t, 1, h.logs.FilterMessage("EOS login failed, continuing with platform identity").Len())
}

func TestLoginOrchestrator_PlatformFailure(t *testing.T) {
	h := newTestHarness(t, func(cfg *EOSPlusConfig) { cfg.UseEAS = true })
	h.platform.FakeIdentity().FailLogin(1, "bad password")

	var events []LoginCompleteEvent
	h.plus.Events().LoginComplete.Add(func(evt LoginCompleteEvent) { events = append(events, evt) })

	require.True(t, h.plus.Login(1, oss.Credentials{Type: "password"}))
	h.tick.Drain(10)

	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Equal(t, "bad password", events[0].Error)
	assert.Nil(t, events[0].UserID)

	assert.Equal(t, LoginFailed, h.plus.LoginState(1))
	assert.Equal(t, 0, h.eos.Calls("Login"))
	_, ok := h.plus.GetUniquePlayerID(1)
	assert.False(t, ok)
	assert.EqualValues(t, 1, counterValue(h.scope, "login_total", map[string]string{"result": "failure"}))
}

func TestLoginOrchestrator_InvalidSlot(t *testing.T) {
	h := newTestHarness(t, nil)

	assert.False(t, h.plus.Login(-1, oss.Credentials{}))
	assert.False(t, h.plus.Login(4, oss.Credentials{}))
	assert.False(t, h.plus.AutoLogin(9))
	assert.Equal(t, 0, h.platform.TotalCalls())
}

func TestLoginOrchestrator_AutoLoginUsesEmptyCredentials(t *testing.T) {
	h := newTestHarness(t, func(cfg *EOSPlusConfig) { cfg.UseEAS = true })
	h.platform.FakeIdentity().SetAccount(2, osstest.PlatformID(netid.SteamSubsystem, "76561198000000102"), "Carol")
	h.eos.FakeIdentity().SetAccount(2, osstest.NewEOSID(), "Carol")

	require.True(t, h.plus.AutoLogin(2))
	creds, ok := h.plus.Orchestrator().Credentials(2)
	require.True(t, ok)
	assert.Equal(t, oss.Credentials{}, creds)

	h.tick.Drain(10)

	assert.Equal(t, 1, h.platform.Calls("AutoLogin"))
	eosCreds, ok := h.eos.FakeIdentity().LastCredentials(2)
	require.True(t, ok)
	assert.Equal(t, oss.Credentials{}, eosCreds)

	plusID, ok := h.plus.GetUniquePlayerID(2)
	require.True(t, ok)
	assert.NotNil(t, plusID.EOSID())
}

func TestLoginOrchestrator_IgnoresUnexpectedCompletion(t *testing.T) {
	h := newTestHarness(t, nil)

	h.plus.Orchestrator().onPlatformLoginComplete(oss.LoginCompleteEvent{
		Slot:    3,
		Success: true,
		UserID:  osstest.PlatformID(netid.SteamSubsystem, "76561198000000103"),
	})
	h.plus.Orchestrator().onEOSLoginComplete(oss.LoginCompleteEvent{Slot: 3, Success: true, UserID: osstest.NewEOSID()})

	_, ok := h.plus.GetUniquePlayerID(3)
	assert.False(t, ok)
	assert.Equal(t, LoginIdle, h.plus.LoginState(3))
}

func TestLoginOrchestrator_Logout(t *testing.T) {
	h := newTestHarness(t, func(cfg *EOSPlusConfig) { cfg.UseEAS = true })
	plusID := h.login(0, "76561198000000104", osstest.NewEOSID())

	var logouts []oss.LogoutCompleteEvent
	h.plus.Events().LogoutComplete.Add(func(evt oss.LogoutCompleteEvent) { logouts = append(logouts, evt) })

	assert.True(t, h.plus.Logout(0))
	assert.Equal(t, 1, h.eos.Calls("Logout"))
	assert.Equal(t, 1, h.platform.Calls("Logout"))
	assert.Equal(t, LoginIdle, h.plus.LoginState(0))

	_, ok := h.plus.GetUniquePlayerID(0)
	assert.False(t, ok)
	assert.Equal(t, 0, h.plus.Registry().references(plusID.String()))

	h.tick.Drain(10)
	require.Len(t, logouts, 1, "only the platform logout completion is relayed")
	assert.Equal(t, oss.LogoutCompleteEvent{Slot: 0, Success: true}, logouts[0])
}

func TestLoginState_String(t *testing.T) {
	tests := map[LoginState]string{
		LoginIdle:            "Idle",
		LoginPlatformPending: "PlatformLoginPending",
		LoginEOSPending:      "EOSLoginPending",
		LoginComplete:        "Complete",
		LoginFailed:          "Failed",
	}
	for state, want := range tests {
		assert.Equal(t, want, state.String())
	}
}
