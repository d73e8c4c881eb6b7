package server

import (
	"sort"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	wrapperKindFriend        = "friend"
	wrapperKindRecentPlayer  = "recent_player"
	wrapperKindBlockedPlayer = "blocked_player"
)

// wrapped holds whichever of the two underlying records are known for one composite.
type wrapped[T any] struct {
	id       *netid.PlusID
	platform *T
	eos      *T
}

func (w *wrapped[T]) ID() *netid.PlusID { return w.id }

// PlatformRecord returns the platform side, or nil.
func (w *wrapped[T]) PlatformRecord() *T { return w.platform }

// EOSRecord returns the EOS side, or nil.
func (w *wrapped[T]) EOSRecord() *T { return w.eos }

// fill stores record on its side unless that side is already held.
func (w *wrapped[T]) fill(fromEOS bool, record *T) {
	switch {
	case fromEOS && w.eos == nil:
		w.eos = record
	case !fromEOS && w.platform == nil:
		w.platform = record
	}
}

type FriendPlus struct {
	wrapped[oss.Friend]
}

func (f *FriendPlus) primary() *oss.Friend {
	if f.platform != nil {
		return f.platform
	}
	return f.eos
}

func (f *FriendPlus) DisplayName() string {
	if p := f.primary(); p != nil {
		return p.DisplayName
	}
	return ""
}

func (f *FriendPlus) InviteStatus() oss.InviteStatus {
	if p := f.primary(); p != nil {
		return p.InviteStatus
	}
	return oss.InviteUnknown
}

func (f *FriendPlus) Presence() oss.UserPresence {
	if p := f.primary(); p != nil {
		return p.Presence
	}
	return oss.UserPresence{}
}

func (f *FriendPlus) Attribute(key string) (string, bool) {
	if f.platform != nil {
		if v, ok := f.platform.Attribute(key); ok {
			return v, true
		}
	}
	if f.eos != nil {
		return f.eos.Attribute(key)
	}
	return "", false
}

// ToAPI renders the friend in the Nakama API shape.
func (f *FriendPlus) ToAPI() *api.Friend {
	presence := f.Presence()
	user := &api.User{
		Id:          f.id.String(),
		DisplayName: f.DisplayName(),
		Online:      presence.IsOnline,
	}
	if platformID := f.id.PlatformID(); platformID != nil {
		user.Username = platformID.String()
		if platformID.Type() == netid.SteamSubsystem {
			user.SteamId = platformID.String()
		}
	}
	if !presence.LastOnline.IsZero() {
		user.UpdateTime = timestamppb.New(presence.LastOnline)
	}

	friend := &api.Friend{User: user}
	switch f.InviteStatus() {
	case oss.InviteAccepted:
		friend.State = wrapperspb.Int32(int32(api.Friend_FRIEND))
	case oss.InvitePendingOutbound:
		friend.State = wrapperspb.Int32(int32(api.Friend_INVITE_SENT))
	case oss.InvitePendingInbound:
		friend.State = wrapperspb.Int32(int32(api.Friend_INVITE_RECEIVED))
	case oss.InviteBlocked:
		friend.State = wrapperspb.Int32(int32(api.Friend_BLOCKED))
	}
	return friend
}

type RecentPlayerPlus struct {
	wrapped[oss.RecentPlayer]
}

func (r *RecentPlayerPlus) DisplayName() string {
	if r.platform != nil {
		return r.platform.DisplayName
	}
	if r.eos != nil {
		return r.eos.DisplayName
	}
	return ""
}

type BlockedPlayerPlus struct {
	wrapped[oss.BlockedPlayer]
}

func (b *BlockedPlayerPlus) DisplayName() string {
	if b.platform != nil {
		return b.platform.DisplayName
	}
	if b.eos != nil {
		return b.eos.DisplayName
	}
	return ""
}

// wrapperCache lazily builds one wrapper per composite id and hands out the same
// instance on every later sighting of the underlying record.
type wrapperCache[T any, W any] struct {
	sync.Mutex
	kind     string
	registry *IdentityRegistry
	metrics  Metrics
	idOf     func(*T) netid.ID
	build    func(*netid.PlusID) *W
	inner    func(*W) *wrapped[T]
	items    map[string]*W
}

func newWrapperCache[T any, W any](kind string, registry *IdentityRegistry, metrics Metrics, idOf func(*T) netid.ID, build func(*netid.PlusID) *W, inner func(*W) *wrapped[T]) *wrapperCache[T, W] {
	return &wrapperCache[T, W]{
		kind:     kind,
		registry: registry,
		metrics:  metrics,
		idOf:     idOf,
		build:    build,
		inner:    inner,
		items:    make(map[string]*W),
	}
}

// get resolves the record's id to a composite, registering a remote player when
// needed, and returns the cached wrapper for it. A cached wrapper is returned as is,
// except that a side it has not seen yet is filled from record.
func (c *wrapperCache[T, W]) get(record *T) (*W, error) {
	id := c.idOf(record)
	plusID, _, err := c.registry.ResolveOrRegister(id)
	if err != nil {
		return nil, err
	}
	fromEOS := id.Type() == netid.EOSType

	c.Lock()
	defer c.Unlock()
	w, hit := c.items[plusID.String()]
	if !hit {
		w = c.build(plusID)
		c.items[plusID.String()] = w
	}
	c.inner(w).fill(fromEOS, record)
	c.metrics.CountWrapperCache(c.kind, hit)
	return w, nil
}

// wrapper returns the cached wrapper for record without counting a cache access,
// building one on first sight.
func (c *wrapperCache[T, W]) wrapper(record *T) (*W, error) {
	if plusID, ok := c.registry.Resolve(c.idOf(record)); ok {
		if w, ok := c.lookup(plusID.String()); ok {
			return w, nil
		}
	}
	return c.get(record)
}

func (c *wrapperCache[T, W]) lookup(plusKey string) (*W, bool) {
	c.Lock()
	defer c.Unlock()
	w, ok := c.items[plusKey]
	return w, ok
}

func (c *wrapperCache[T, W]) len() int {
	c.Lock()
	defer c.Unlock()
	return len(c.items)
}

// snapshot returns the cached wrappers ordered by composite id.
func (c *wrapperCache[T, W]) snapshot() []*W {
	c.Lock()
	defer c.Unlock()
	keys := lo.Keys(c.items)
	sort.Strings(keys)
	return lo.Map(keys, func(k string, _ int) *W { return c.items[k] })
}

func (c *wrapperCache[T, W]) wrapAll(logger *zap.Logger, records []*T) []*W {
	out := make([]*W, 0, len(records))
	for _, record := range records {
		w, err := c.get(record)
		if err != nil {
			logger.Warn("Skipping record with invalid id", zap.String("kind", c.kind), zap.Error(err))
			continue
		}
		out = append(out, w)
	}
	return out
}

// FriendsPlus exposes the friends, recent player and block list services of both
// subsystems in composite ids. Writes are routed to the platform; the EOS friends list
// is merged in when UseEASForFriends is set.
type FriendsPlus struct {
	logger   *zap.Logger
	settings *Settings
	registry *IdentityRegistry
	platform oss.Friends
	eos      oss.Friends
	tick     *oss.TickQueue

	friends *wrapperCache[oss.Friend, FriendPlus]
	recent  *wrapperCache[oss.RecentPlayer, RecentPlayerPlus]
	blocked *wrapperCache[oss.BlockedPlayer, BlockedPlayerPlus]
}

func NewFriendsPlus(logger *zap.Logger, settings *Settings, metrics Metrics, registry *IdentityRegistry, platform, eos oss.Friends, tick *oss.TickQueue) *FriendsPlus {
	return &FriendsPlus{
		logger:   logger.With(zap.String("component", "friends_plus")),
		settings: settings,
		registry: registry,
		platform: platform,
		eos:      eos,
		tick:     tick,

		friends: newWrapperCache(wrapperKindFriend, registry, metrics,
			func(f *oss.Friend) netid.ID { return f.ID },
			func(id *netid.PlusID) *FriendPlus { return &FriendPlus{wrapped[oss.Friend]{id: id}} },
			func(w *FriendPlus) *wrapped[oss.Friend] { return &w.wrapped }),
		recent: newWrapperCache(wrapperKindRecentPlayer, registry, metrics,
			func(p *oss.RecentPlayer) netid.ID { return p.ID },
			func(id *netid.PlusID) *RecentPlayerPlus { return &RecentPlayerPlus{wrapped[oss.RecentPlayer]{id: id}} },
			func(w *RecentPlayerPlus) *wrapped[oss.RecentPlayer] { return &w.wrapped }),
		blocked: newWrapperCache(wrapperKindBlockedPlayer, registry, metrics,
			func(p *oss.BlockedPlayer) netid.ID { return p.ID },
			func(id *netid.PlusID) *BlockedPlayerPlus { return &BlockedPlayerPlus{wrapped[oss.BlockedPlayer]{id: id}} },
			func(w *BlockedPlayerPlus) *wrapped[oss.BlockedPlayer] { return &w.wrapped }),
	}
}

func (f *FriendsPlus) platformID(id *netid.PlusID) (netid.ID, bool) {
	if id == nil {
		return nil, false
	}
	return f.registry.PlatformID(id.String())
}

func (f *FriendsPlus) eosID(id *netid.PlusID) (netid.ID, bool) {
	if id == nil {
		return nil, false
	}
	return f.registry.EOSID(id.String())
}

// ReadFriendsList reads the platform list and, when it succeeded and EAS friends are
// enabled, the EOS list. done receives the platform outcome.
func (f *FriendsPlus) ReadFriendsList(slot int, listName string, done func(oss.ListResult)) bool {
	return f.platform.ReadFriendsList(slot, listName, func(result oss.ListResult) {
		if !result.Success || !f.settings.Load().UseEASForFriends {
			if done != nil {
				done(result)
			}
			return
		}
		started := f.eos.ReadFriendsList(slot, listName, func(eosResult oss.ListResult) {
			if !eosResult.Success {
				f.logger.Warn("EOS friends list read failed", zap.Int("slot", slot), zap.String("error", eosResult.Error))
			}
			if done != nil {
				done(result)
			}
		})
		if !started {
			f.logger.Warn("EOS friends list read could not be started", zap.Int("slot", slot))
			if done != nil {
				done(result)
			}
		}
	})
}

func (f *FriendsPlus) DeleteFriendsList(slot int, listName string, done func(oss.ListResult)) bool {
	return f.platform.DeleteFriendsList(slot, listName, done)
}

func (f *FriendsPlus) inviteDone(friendID *netid.PlusID, done func(oss.InviteResult)) func(oss.InviteResult) {
	return func(result oss.InviteResult) {
		result.FriendID = friendID
		if done != nil {
			done(result)
		}
	}
}

func (f *FriendsPlus) SendInvite(slot int, friendID *netid.PlusID, listName string, done func(oss.InviteResult)) bool {
	platformID, ok := f.platformID(friendID)
	if !ok {
		return false
	}
	return f.platform.SendInvite(slot, platformID, listName, f.inviteDone(friendID, done))
}

func (f *FriendsPlus) AcceptInvite(slot int, friendID *netid.PlusID, listName string, done func(oss.InviteResult)) bool {
	platformID, ok := f.platformID(friendID)
	if !ok {
		return false
	}
	return f.platform.AcceptInvite(slot, platformID, listName, f.inviteDone(friendID, done))
}

func (f *FriendsPlus) RejectInvite(slot int, friendID *netid.PlusID, listName string) bool {
	platformID, ok := f.platformID(friendID)
	if !ok {
		return false
	}
	return f.platform.RejectInvite(slot, platformID, listName)
}

func (f *FriendsPlus) DeleteFriend(slot int, friendID *netid.PlusID, listName string) bool {
	platformID, ok := f.platformID(friendID)
	if !ok {
		return false
	}
	return f.platform.DeleteFriend(slot, platformID, listName)
}

// AddFriend wraps an underlying friend record. It is idempotent per composite id.
func (f *FriendsPlus) AddFriend(friend *oss.Friend) (*FriendPlus, error) {
	return f.friends.get(friend)
}

// GetFriendWrapper returns the wrapper for an underlying friend record, creating it on
// first sight.
func (f *FriendsPlus) GetFriendWrapper(friend *oss.Friend) (*FriendPlus, error) {
	return f.friends.wrapper(friend)
}

// GetFriendsList merges the cached platform list with the EOS list when enabled. It
// succeeds when either side does.
func (f *FriendsPlus) GetFriendsList(slot int, listName string) ([]*FriendPlus, bool) {
	platformFriends, success := f.platform.FriendsList(slot, listName)
	out := f.friends.wrapAll(f.logger, platformFriends)

	if f.settings.Load().UseEASForFriends {
		eosFriends, eosSuccess := f.eos.FriendsList(slot, listName)
		success = success || eosSuccess
		out = append(out, f.friends.wrapAll(f.logger, eosFriends)...)
	}

	return lo.UniqBy(out, func(w *FriendPlus) string { return w.id.String() }), success
}

func (f *FriendsPlus) GetFriend(slot int, friendID *netid.PlusID, listName string) (*FriendPlus, bool) {
	if platformID, ok := f.platformID(friendID); ok {
		if friend, ok := f.platform.Friend(slot, platformID, listName); ok {
			w, err := f.friends.get(friend)
			return w, err == nil
		}
	}
	if !f.settings.Load().UseEASForFriends {
		return nil, false
	}
	if eosID, ok := f.eosID(friendID); ok {
		if friend, ok := f.eos.Friend(slot, eosID, listName); ok {
			w, err := f.friends.get(friend)
			return w, err == nil
		}
	}
	return nil, false
}

func (f *FriendsPlus) IsFriend(slot int, friendID *netid.PlusID, listName string) bool {
	if platformID, ok := f.platformID(friendID); ok && f.platform.IsFriend(slot, platformID, listName) {
		return true
	}
	if !f.settings.Load().UseEASForFriends {
		return false
	}
	if eosID, ok := f.eosID(friendID); ok {
		return f.eos.IsFriend(slot, eosID, listName)
	}
	return false
}

func (f *FriendsPlus) aliasDone(friendID *netid.PlusID, done func(oss.AliasResult)) func(oss.AliasResult) {
	return func(result oss.AliasResult) {
		result.FriendID = friendID
		if done != nil {
			done(result)
		}
	}
}

func (f *FriendsPlus) failAlias(friendID *netid.PlusID, done func(oss.AliasResult)) {
	var id netid.ID
	if friendID != nil {
		id = friendID
	}
	f.tick.ExecuteNextTick(func() {
		if done != nil {
			done(oss.AliasResult{FriendID: id, Error: ErrUnknownPlayer.Message})
		}
	})
}

// SetFriendAlias writes the alias on the platform side when the friend has one, else
// on the EOS side.
func (f *FriendsPlus) SetFriendAlias(slot int, friendID *netid.PlusID, listName, alias string, done func(oss.AliasResult)) {
	if platformID, ok := f.platformID(friendID); ok {
		f.platform.SetFriendAlias(slot, platformID, listName, alias, f.aliasDone(friendID, done))
		return
	}
	if eosID, ok := f.eosID(friendID); ok {
		f.eos.SetFriendAlias(slot, eosID, listName, alias, f.aliasDone(friendID, done))
		return
	}
	f.failAlias(friendID, done)
}

func (f *FriendsPlus) DeleteFriendAlias(slot int, friendID *netid.PlusID, listName string, done func(oss.AliasResult)) {
	if platformID, ok := f.platformID(friendID); ok {
		f.platform.DeleteFriendAlias(slot, platformID, listName, f.aliasDone(friendID, done))
		return
	}
	if eosID, ok := f.eosID(friendID); ok {
		f.eos.DeleteFriendAlias(slot, eosID, listName, f.aliasDone(friendID, done))
		return
	}
	f.failAlias(friendID, done)
}

func (f *FriendsPlus) queryDone(userID *netid.PlusID, done func(oss.QueryResult)) func(oss.QueryResult) {
	return func(result oss.QueryResult) {
		result.UserID = userID
		if done != nil {
			done(result)
		}
	}
}

func (f *FriendsPlus) QueryRecentPlayers(userID *netid.PlusID, namespace string, done func(oss.QueryResult)) bool {
	platformID, ok := f.platformID(userID)
	if !ok {
		return false
	}
	return f.platform.QueryRecentPlayers(platformID, namespace, f.queryDone(userID, done))
}

func (f *FriendsPlus) AddRecentPlayer(player *oss.RecentPlayer) (*RecentPlayerPlus, error) {
	return f.recent.get(player)
}

// GetRecentPlayer returns the wrapper for an underlying recent player record, creating
// it on first sight.
func (f *FriendsPlus) GetRecentPlayer(player *oss.RecentPlayer) (*RecentPlayerPlus, error) {
	return f.recent.wrapper(player)
}

func (f *FriendsPlus) GetRecentPlayers(userID *netid.PlusID, namespace string) ([]*RecentPlayerPlus, bool) {
	platformID, ok := f.platformID(userID)
	if !ok {
		return nil, false
	}
	players, success := f.platform.RecentPlayers(platformID, namespace)
	return f.recent.wrapAll(f.logger, players), success
}

func (f *FriendsPlus) BlockPlayer(slot int, playerID *netid.PlusID) bool {
	platformID, ok := f.platformID(playerID)
	if !ok {
		return false
	}
	return f.platform.BlockPlayer(slot, platformID)
}

func (f *FriendsPlus) UnblockPlayer(slot int, playerID *netid.PlusID) bool {
	platformID, ok := f.platformID(playerID)
	if !ok {
		return false
	}
	return f.platform.UnblockPlayer(slot, platformID)
}

func (f *FriendsPlus) QueryBlockedPlayers(userID *netid.PlusID, done func(oss.QueryResult)) bool {
	platformID, ok := f.platformID(userID)
	if !ok {
		return false
	}
	return f.platform.QueryBlockedPlayers(platformID, f.queryDone(userID, done))
}

func (f *FriendsPlus) AddBlockedPlayer(player *oss.BlockedPlayer) (*BlockedPlayerPlus, error) {
	return f.blocked.get(player)
}

func (f *FriendsPlus) GetBlockedPlayer(player *oss.BlockedPlayer) (*BlockedPlayerPlus, error) {
	return f.blocked.wrapper(player)
}

func (f *FriendsPlus) GetBlockedPlayers(userID *netid.PlusID) ([]*BlockedPlayerPlus, bool) {
	platformID, ok := f.platformID(userID)
	if !ok {
		return nil, false
	}
	players, success := f.platform.BlockedPlayers(platformID)
	return f.blocked.wrapAll(f.logger, players), success
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	MaxDepth:                5,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// DumpRecentPlayers logs every cached recent player wrapper at debug level and
// returns the rendered dump.
func (f *FriendsPlus) DumpRecentPlayers() string {
	dump := dumpConfig.Sdump(f.recent.snapshot())
	f.logger.Debug("Recent players", zap.Int("count", f.recent.len()), zap.String("dump", dump))
	return dump
}

func (f *FriendsPlus) DumpBlockedPlayers() string {
	dump := dumpConfig.Sdump(f.blocked.snapshot())
	f.logger.Debug("Blocked players", zap.Int("count", f.blocked.len()), zap.String("dump", dump))
	return dump
}
