package server

import (
	"errors"
	"testing"

	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
	"github.com/echotools/eosplus/server/oss/osstest"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) (*IdentityRegistry, tally.TestScope) {
	t.Helper()
	scope := tally.NewTestScope("", nil)
	logger := zap.NewNop()
	return NewIdentityRegistry(logger, NewSettings(nil), NewLocalMetrics(logger, scope)), scope
}

func steamID(value string) netid.ID {
	return osstest.PlatformID(netid.SteamSubsystem, value)
}

func TestIdentityRegistry_RegisterLocalPlayer(t *testing.T) {
	registry, scope := newTestRegistry(t)
	platformID := steamID("76561198000000010")
	eosID := osstest.NewEOSID()
	platformAccount := &oss.UserAccount{OnlineUser: oss.OnlineUser{ID: platformID, DisplayName: "Alice"}}

	plusID, err := registry.RegisterLocalPlayer(1, platformID, eosID, platformAccount, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		lookup func() (*netid.PlusID, bool)
	}{
		{"by composite", func() (*netid.PlusID, bool) { return registry.PlusID(plusID.String()) }},
		{"by platform", func() (*netid.PlusID, bool) { return registry.PlusIDForPlatform(platformID) }},
		{"by eos", func() (*netid.PlusID, bool) { return registry.PlusIDForEOS(eosID) }},
		{"by platform string", func() (*netid.PlusID, bool) { return registry.PlusID(platformID.String()) }},
		{"by slot", func() (*netid.PlusID, bool) { return registry.LocalPlayer(1) }},
		{"resolve eos", func() (*netid.PlusID, bool) { return registry.Resolve(eosID) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.lookup()
			require.True(t, ok)
			assert.Same(t, plusID, got)
		})
	}

	gotPlatform, ok := registry.PlatformID(plusID.String())
	require.True(t, ok)
	assert.Equal(t, platformID.String(), gotPlatform.String())

	gotEOS, ok := registry.EOSID(plusID.String())
	require.True(t, ok)
	assert.Equal(t, eosID.String(), gotEOS.String())

	slot, ok := registry.SlotForPlusID(plusID.String())
	require.True(t, ok)
	assert.Equal(t, 1, slot)

	account, ok := registry.Account(plusID.String())
	require.True(t, ok)
	assert.Equal(t, "Alice", account.DisplayName())
	assert.Nil(t, account.EOSAccount())

	assert.Equal(t, []int{1}, registry.LocalSlots())
	assert.Equal(t, float64(1), gaugeValue(scope, "registered_local_players"))
}

func TestIdentityRegistry_InvalidSlot(t *testing.T) {
	registry, _ := newTestRegistry(t)

	for _, slot := range []int{-1, 4, 100} {
		_, err := registry.RegisterLocalPlayer(slot, steamID("1"), nil, nil, nil)
		assert.True(t, errors.Is(err, ErrInvalidSlot), "slot %d", slot)
	}
	assert.Equal(t, RegistryStats{}, registry.Stats())
}

func TestIdentityRegistry_RequiresOneID(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.RegisterLocalPlayer(0, nil, nil, nil, nil)
	assert.True(t, errors.Is(err, netid.ErrEmptyPlusID))

	_, err = registry.RegisterRemotePlayer(nil, nil)
	assert.True(t, errors.Is(err, netid.ErrEmptyPlusID))
}

func TestIdentityRegistry_DeregisterLeavesNoEntries(t *testing.T) {
	tests := []struct {
		name       string
		platformID netid.ID
		eosID      netid.ID
	}{
		{"both", steamID("76561198000000011"), osstest.NewEOSID()},
		{"platform only", steamID("76561198000000012"), nil},
		{"eos only", nil, osstest.NewEOSID()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, _ := newTestRegistry(t)

			plusID, err := registry.RegisterLocalPlayer(0, tt.platformID, tt.eosID, &oss.UserAccount{}, nil)
			require.NoError(t, err)
			require.Greater(t, registry.references(plusID.String()), 0)

			registry.DeregisterLocalPlayer(0)

			assert.Equal(t, 0, registry.references(plusID.String()))
			if diff := cmp.Diff(RegistryStats{}, registry.Stats()); diff != "" {
				t.Errorf("registry not empty after deregister (-want +got):\n%s", diff)
			}
			_, ok := registry.Account(plusID.String())
			assert.False(t, ok)
			assert.Empty(t, registry.LocalSlots())
		})
	}
}

func TestIdentityRegistry_DeregisterUnknownSlot(t *testing.T) {
	registry, _ := newTestRegistry(t)
	plusID, err := registry.RegisterLocalPlayer(0, steamID("76561198000000013"), nil, nil, nil)
	require.NoError(t, err)

	registry.DeregisterLocalPlayer(3)

	got, ok := registry.LocalPlayer(0)
	require.True(t, ok)
	assert.Same(t, plusID, got)
}

func TestIdentityRegistry_ReregisterSlotReplacesIdentity(t *testing.T) {
	registry, _ := newTestRegistry(t)
	first, err := registry.RegisterLocalPlayer(0, steamID("76561198000000014"), osstest.NewEOSID(), nil, nil)
	require.NoError(t, err)

	second, err := registry.RegisterLocalPlayer(0, steamID("76561198000000015"), osstest.NewEOSID(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, registry.references(first.String()))
	got, ok := registry.LocalPlayer(0)
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, RegistryStats{
		LocalPlayers:    1,
		PlatformEntries: 1,
		EOSEntries:      1,
		PlusEntries:     1,
		PlusToPlatform:  1,
		PlusToEOS:       1,
		Accounts:        1,
	}, registry.Stats())
}

func TestIdentityRegistry_RegisterRemotePlayer(t *testing.T) {
	registry, _ := newTestRegistry(t)
	platformID := steamID("76561198000000016")

	first, err := registry.RegisterRemotePlayer(platformID, nil)
	require.NoError(t, err)
	again, err := registry.RegisterRemotePlayer(steamID("76561198000000016"), nil)
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, ok := registry.Account(first.String())
	assert.False(t, ok, "remote players have no account")
	assert.Empty(t, registry.LocalSlots())

	stats := registry.Stats()
	assert.Equal(t, 0, stats.LocalPlayers)
	assert.Equal(t, 1, stats.PlusEntries)
}

func TestIdentityRegistry_ResolveOrRegister(t *testing.T) {
	registry, _ := newTestRegistry(t)
	eosID := osstest.NewEOSID()

	plusID, found, err := registry.ResolveOrRegister(eosID)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, plusID.PlatformID())
	assert.Equal(t, eosID.String(), plusID.EOSID().String())

	again, found, err := registry.ResolveOrRegister(eosID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Same(t, plusID, again)

	_, _, err = registry.ResolveOrRegister(nil)
	assert.True(t, errors.Is(err, ErrInvalidPlayerID))
}

func TestIdentityRegistry_AccountsOrderedBySlot(t *testing.T) {
	registry, _ := newTestRegistry(t)
	for _, slot := range []int{3, 0, 2} {
		id := steamID(string(rune('a' + slot)))
		_, err := registry.RegisterLocalPlayer(slot, id, nil, &oss.UserAccount{OnlineUser: oss.OnlineUser{ID: id, DisplayName: id.String()}}, nil)
		require.NoError(t, err)
	}

	names := make([]string, 0, 3)
	for _, account := range registry.Accounts() {
		names = append(names, account.DisplayName())
	}
	assert.Equal(t, []string{"a", "c", "d"}, names)
	assert.Equal(t, []int{0, 2, 3}, registry.LocalSlots())
}
