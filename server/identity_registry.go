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

package server

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// IdentityRegistry maps platform ids, EOS ids, composite ids and local slots onto
// each other. It is the only writer of those tables; every other component reads
// through the lookup methods. No method calls out while holding the lock, so
// completion handlers may re-enter the registry freely.
type IdentityRegistry struct {
	sync.RWMutex
	logger   *zap.Logger
	settings *Settings
	metrics  Metrics

	platformToPlus map[string]*netid.PlusID
	eosToPlus      map[string]*netid.PlusID
	plusToPlus     map[string]*netid.PlusID
	plusToPlatform map[string]netid.ID
	plusToEOS      map[string]netid.ID
	slotToPlus     map[int]*netid.PlusID
	plusToAccount  map[string]*UserAccountPlus

	slots *bitset.BitSet
}

// RegistryStats is a point-in-time count of each table.
type RegistryStats struct {
	LocalPlayers    int `json:"local_players"`
	PlatformEntries int `json:"platform_entries"`
	EOSEntries      int `json:"eos_entries"`
	PlusEntries     int `json:"plus_entries"`
	PlusToPlatform  int `json:"plus_to_platform"`
	PlusToEOS       int `json:"plus_to_eos"`
	Accounts        int `json:"accounts"`
}

func NewIdentityRegistry(logger *zap.Logger, settings *Settings, metrics Metrics) *IdentityRegistry {
	return &IdentityRegistry{
		logger:   logger.With(zap.String("component", "identity_registry")),
		settings: settings,
		metrics:  metrics,

		platformToPlus: make(map[string]*netid.PlusID),
		eosToPlus:      make(map[string]*netid.PlusID),
		plusToPlus:     make(map[string]*netid.PlusID),
		plusToPlatform: make(map[string]netid.ID),
		plusToEOS:      make(map[string]netid.ID),
		slotToPlus:     make(map[int]*netid.PlusID),
		plusToAccount:  make(map[string]*UserAccountPlus),

		slots: bitset.New(maxLocalPlayersLimit),
	}
}

func (r *IdentityRegistry) validSlot(slot int) bool {
	return slot >= 0 && slot < r.settings.Load().MaxLocalPlayers
}

// RegisterLocalPlayer binds slot to the composite of platformID and eosID. A slot that
// is already registered is fully deregistered first.
func (r *IdentityRegistry) RegisterLocalPlayer(slot int, platformID, eosID netid.ID, platformAccount, eosAccount *oss.UserAccount) (*netid.PlusID, error) {
	if !r.validSlot(slot) {
		return nil, ErrInvalidSlot
	}
	plusID, err := netid.NewPlusID(platformID, eosID)
	if err != nil {
		return nil, fmt.Errorf("failed to create composite id: %w", err)
	}

	r.Lock()
	if _, ok := r.slotToPlus[slot]; ok {
		r.deregisterLocked(slot)
	}
	r.insertLocked(plusID)
	r.slotToPlus[slot] = plusID
	r.plusToAccount[plusID.String()] = NewUserAccountPlus(plusID, platformAccount, eosAccount)
	r.slots.Set(uint(slot))
	count := int(r.slots.Count())
	r.Unlock()

	r.metrics.GaugeLocalPlayers(count)
	r.logger.Debug("Registered local player", zap.Int("slot", slot), zap.String("plus_id", plusID.String()))
	return plusID, nil
}

// RegisterRemotePlayer records the composite of another player. It never touches the
// slot or account tables. Registering the same pair again returns the existing id.
func (r *IdentityRegistry) RegisterRemotePlayer(platformID, eosID netid.ID) (*netid.PlusID, error) {
	plusID, err := netid.NewPlusID(platformID, eosID)
	if err != nil {
		return nil, fmt.Errorf("failed to create composite id: %w", err)
	}

	r.Lock()
	defer r.Unlock()
	if existing, ok := r.plusToPlus[plusID.String()]; ok {
		return existing, nil
	}
	r.insertLocked(plusID)
	return plusID, nil
}

func (r *IdentityRegistry) insertLocked(plusID *netid.PlusID) {
	key := plusID.String()
	r.plusToPlus[key] = plusID
	if platformID := plusID.PlatformID(); platformID != nil {
		r.platformToPlus[platformID.String()] = plusID
		r.plusToPlatform[key] = platformID
	}
	if eosID := plusID.EOSID(); eosID != nil {
		r.eosToPlus[eosID.String()] = plusID
		r.plusToEOS[key] = eosID
	}
}

// DeregisterLocalPlayer removes every entry the slot's registration created. Unknown
// slots are ignored.
func (r *IdentityRegistry) DeregisterLocalPlayer(slot int) {
	r.Lock()
	plusID, ok := r.deregisterLocked(slot)
	count := int(r.slots.Count())
	r.Unlock()

	if !ok {
		return
	}
	r.metrics.GaugeLocalPlayers(count)
	r.logger.Debug("Deregistered local player", zap.Int("slot", slot), zap.String("plus_id", plusID.String()))
}

func (r *IdentityRegistry) deregisterLocked(slot int) (*netid.PlusID, bool) {
	plusID, ok := r.slotToPlus[slot]
	if !ok {
		return nil, false
	}
	key := plusID.String()

	delete(r.plusToAccount, key)

	if platformID, ok := r.plusToPlatform[key]; ok {
		if current, ok := r.platformToPlus[platformID.String()]; ok && current.Equals(plusID) {
			delete(r.platformToPlus, platformID.String())
		}
		delete(r.plusToPlatform, key)
	}
	if eosID, ok := r.plusToEOS[key]; ok {
		if current, ok := r.eosToPlus[eosID.String()]; ok && current.Equals(plusID) {
			delete(r.eosToPlus, eosID.String())
		}
		delete(r.plusToEOS, key)
	}
	delete(r.plusToPlus, key)

	delete(r.slotToPlus, slot)
	r.slots.Clear(uint(slot))
	return plusID, true
}

// PlusID resolves any id string (composite, platform or EOS) to its composite.
func (r *IdentityRegistry) PlusID(key string) (*netid.PlusID, bool) {
	r.RLock()
	defer r.RUnlock()
	if plusID, ok := r.plusToPlus[key]; ok {
		return plusID, true
	}
	if plusID, ok := r.platformToPlus[key]; ok {
		return plusID, true
	}
	if plusID, ok := r.eosToPlus[key]; ok {
		return plusID, true
	}
	return nil, false
}

// Resolve looks id up by its string form. A nil id is never found.
func (r *IdentityRegistry) Resolve(id netid.ID) (*netid.PlusID, bool) {
	if id == nil {
		return nil, false
	}
	return r.PlusID(id.String())
}

func (r *IdentityRegistry) PlusIDForPlatform(platformID netid.ID) (*netid.PlusID, bool) {
	if platformID == nil {
		return nil, false
	}
	r.RLock()
	defer r.RUnlock()
	plusID, ok := r.platformToPlus[platformID.String()]
	return plusID, ok
}

func (r *IdentityRegistry) PlusIDForEOS(eosID netid.ID) (*netid.PlusID, bool) {
	if eosID == nil {
		return nil, false
	}
	r.RLock()
	defer r.RUnlock()
	plusID, ok := r.eosToPlus[eosID.String()]
	return plusID, ok
}

// PlatformID returns the platform half of a registered composite.
func (r *IdentityRegistry) PlatformID(plusKey string) (netid.ID, bool) {
	r.RLock()
	defer r.RUnlock()
	id, ok := r.plusToPlatform[plusKey]
	return id, ok
}

// EOSID returns the EOS half of a registered composite.
func (r *IdentityRegistry) EOSID(plusKey string) (netid.ID, bool) {
	r.RLock()
	defer r.RUnlock()
	id, ok := r.plusToEOS[plusKey]
	return id, ok
}

func (r *IdentityRegistry) LocalPlayer(slot int) (*netid.PlusID, bool) {
	r.RLock()
	defer r.RUnlock()
	plusID, ok := r.slotToPlus[slot]
	return plusID, ok
}

// SlotForPlusID returns the local slot a composite is registered to.
func (r *IdentityRegistry) SlotForPlusID(plusKey string) (int, bool) {
	r.RLock()
	defer r.RUnlock()
	for slot, plusID := range r.slotToPlus {
		if plusID.String() == plusKey {
			return slot, true
		}
	}
	return 0, false
}

// LocalSlots returns the registered slots in ascending order.
func (r *IdentityRegistry) LocalSlots() []int {
	r.RLock()
	defer r.RUnlock()
	slots := make([]int, 0, r.slots.Count())
	for i, ok := r.slots.NextSet(0); ok; i, ok = r.slots.NextSet(i + 1) {
		slots = append(slots, int(i))
	}
	return slots
}

func (r *IdentityRegistry) Account(plusKey string) (*UserAccountPlus, bool) {
	r.RLock()
	defer r.RUnlock()
	account, ok := r.plusToAccount[plusKey]
	return account, ok
}

// Accounts returns the accounts of all local players ordered by slot.
func (r *IdentityRegistry) Accounts() []*UserAccountPlus {
	slots := r.LocalSlots()

	r.RLock()
	defer r.RUnlock()
	return lo.FilterMap(slots, func(slot int, _ int) (*UserAccountPlus, bool) {
		plusID, ok := r.slotToPlus[slot]
		if !ok {
			return nil, false
		}
		account, ok := r.plusToAccount[plusID.String()]
		return account, ok
	})
}

// ResolveOrRegister returns the composite for an id issued by either subsystem,
// registering a remote player when the id has not been seen before.
func (r *IdentityRegistry) ResolveOrRegister(id netid.ID) (*netid.PlusID, bool, error) {
	if id == nil || !id.IsValid() {
		return nil, false, ErrInvalidPlayerID
	}
	if id.Type() == netid.EOSType {
		if plusID, ok := r.PlusIDForEOS(id); ok {
			return plusID, true, nil
		}
		plusID, err := r.RegisterRemotePlayer(nil, id)
		return plusID, false, err
	}
	if plusID, ok := r.PlusIDForPlatform(id); ok {
		return plusID, true, nil
	}
	plusID, err := r.RegisterRemotePlayer(id, nil)
	return plusID, false, err
}

func (r *IdentityRegistry) Stats() RegistryStats {
	r.RLock()
	defer r.RUnlock()
	return RegistryStats{
		LocalPlayers:    len(r.slotToPlus),
		PlatformEntries: len(r.platformToPlus),
		EOSEntries:      len(r.eosToPlus),
		PlusEntries:     len(r.plusToPlus),
		PlusToPlatform:  len(r.plusToPlatform),
		PlusToEOS:       len(r.plusToEOS),
		Accounts:        len(r.plusToAccount),
	}
}

// references counts the table entries that point at plusKey.
func (r *IdentityRegistry) references(plusKey string) int {
	r.RLock()
	defer r.RUnlock()
	n := 0
	for _, m := range []map[string]*netid.PlusID{r.platformToPlus, r.eosToPlus, r.plusToPlus} {
		for k, v := range m {
			if k == plusKey || v.String() == plusKey {
				n++
			}
		}
	}
	if _, ok := r.plusToPlatform[plusKey]; ok {
		n++
	}
	if _, ok := r.plusToEOS[plusKey]; ok {
		n++
	}
	if _, ok := r.plusToAccount[plusKey]; ok {
		n++
	}
	for _, v := range r.slotToPlus {
		if v.String() == plusKey {
			n++
		}
	}
	return n
}
