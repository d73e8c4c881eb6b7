package server

import (
	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// OnlineUserPlus is a platform user under its composite id.
type OnlineUserPlus struct {
	ID   *netid.PlusID
	User *oss.OnlineUser
}

func (u *OnlineUserPlus) DisplayName() string {
	if u.User == nil {
		return ""
	}
	return u.User.DisplayName
}

func (u *OnlineUserPlus) RealName() string {
	if u.User == nil {
		return ""
	}
	return u.User.RealName
}

func (u *OnlineUserPlus) Attribute(key string) (string, bool) {
	return u.User.Attribute(key)
}

// UserInfoPlus forwards user info queries to the platform user service. It tolerates
// a platform without one by failing every request.
type UserInfoPlus struct {
	logger   *zap.Logger
	registry *IdentityRegistry
	platform oss.Users
	events   *Events
	tick     *oss.TickQueue
}

func NewUserInfoPlus(logger *zap.Logger, registry *IdentityRegistry, platform oss.Users, events *Events, tick *oss.TickQueue) *UserInfoPlus {
	return &UserInfoPlus{
		logger:   logger.With(zap.String("component", "user_info_plus")),
		registry: registry,
		platform: platform,
		events:   events,
		tick:     tick,
	}
}

func (u *UserInfoPlus) failQuery(slot int) {
	u.tick.ExecuteNextTick(func() {
		u.events.QueryUserInfoComplete.Broadcast(QueryUserInfoCompleteEvent{
			Slot:  slot,
			Error: ErrSubsystemUnavailable.Message,
		})
	})
}

// QueryUserInfo starts a platform query for userIDs. Completion is reported through
// Events.QueryUserInfoComplete. A missing user service or an id with no platform half
// fails the query on the next tick.
func (u *UserInfoPlus) QueryUserInfo(slot int, userIDs []*netid.PlusID) bool {
	if u.platform == nil {
		u.logger.Warn("QueryUserInfo without a platform user service", zap.Int("slot", slot))
		u.failQuery(slot)
		return true
	}

	platformIDs := make([]netid.ID, 0, len(userIDs))
	for _, id := range userIDs {
		if id == nil {
			u.failQuery(slot)
			return true
		}
		platformID, ok := u.registry.PlatformID(id.String())
		if !ok {
			u.logger.Debug("QueryUserInfo for unknown player", zap.Int("slot", slot), zap.String("plus_id", id.String()))
			u.failQuery(slot)
			return true
		}
		platformIDs = append(platformIDs, platformID)
	}
	return u.platform.QueryUserInfo(slot, platformIDs)
}

func (u *UserInfoPlus) wrap(user *oss.OnlineUser) (*OnlineUserPlus, bool) {
	if user == nil {
		return nil, false
	}
	plusID, _, err := u.registry.ResolveOrRegister(user.ID)
	if err != nil {
		u.logger.Debug("Skipping user with invalid id", zap.Error(err))
		return nil, false
	}
	return &OnlineUserPlus{ID: plusID, User: user}, true
}

// AllUserInfo returns every cached platform user under its composite id.
func (u *UserInfoPlus) AllUserInfo(slot int) ([]*OnlineUserPlus, bool) {
	if u.platform == nil {
		return nil, false
	}
	users, ok := u.platform.AllUserInfo(slot)
	if !ok {
		return nil, false
	}
	return lo.FilterMap(users, func(user *oss.OnlineUser, _ int) (*OnlineUserPlus, bool) {
		return u.wrap(user)
	}), true
}

func (u *UserInfoPlus) UserInfo(slot int, userID *netid.PlusID) (*OnlineUserPlus, bool) {
	if u.platform == nil || userID == nil {
		return nil, false
	}
	platformID, ok := u.registry.PlatformID(userID.String())
	if !ok {
		return nil, false
	}
	user, ok := u.platform.UserInfo(slot, platformID)
	if !ok {
		return nil, false
	}
	return &OnlineUserPlus{ID: userID, User: user}, true
}

// QueryUserIDMapping looks up a player by display name or email. The found id is
// reported as a composite, registering it as a remote player on first sight.
func (u *UserInfoPlus) QueryUserIDMapping(userID *netid.PlusID, displayNameOrEmail string, done func(oss.UserMappingResult)) bool {
	fail := func() bool {
		u.tick.ExecuteNextTick(func() {
			if done != nil {
				done(oss.UserMappingResult{DisplayName: displayNameOrEmail, Error: ErrSubsystemUnavailable.Message})
			}
		})
		return true
	}
	if u.platform == nil || userID == nil {
		return fail()
	}
	platformID, ok := u.registry.PlatformID(userID.String())
	if !ok {
		return fail()
	}
	return u.platform.QueryUserIDMapping(platformID, displayNameOrEmail, func(result oss.UserMappingResult) {
		if result.Success && result.FoundID != nil {
			plusID, _, err := u.registry.ResolveOrRegister(result.FoundID)
			if err != nil {
				result.Success = false
				result.FoundID = nil
				result.Error = err.Error()
			} else {
				result.FoundID = plusID
			}
		}
		if done != nil {
			done(result)
		}
	})
}

// QueryExternalIDMappings resolves ids of an external service on the platform. The
// result carries the composite id of the querying player. Without a user service, or
// for an unknown player, the query fails on the next tick.
func (u *UserInfoPlus) QueryExternalIDMappings(userID *netid.PlusID, opts oss.ExternalIDQueryOptions, externalIDs []string, done func(oss.ExternalIDMappingResult)) bool {
	var platformID netid.ID
	ok := false
	if u.platform != nil && userID != nil {
		platformID, ok = u.registry.PlatformID(userID.String())
	}
	if !ok {
		u.logger.Warn("Unable to query external id mappings",
			zap.Bool("user_service", u.platform != nil),
			zap.String("plus_id", idString(asNetID(userID))))
		u.tick.ExecuteNextTick(func() {
			if done != nil {
				done(oss.ExternalIDMappingResult{
					UserID:      asNetID(userID),
					Options:     opts,
					ExternalIDs: externalIDs,
					Error:       ErrSubsystemUnavailable.Message,
				})
			}
		})
		return true
	}
	return u.platform.QueryExternalIDMappings(platformID, opts, externalIDs, func(result oss.ExternalIDMappingResult) {
		result.UserID = userID
		if done != nil {
			done(result)
		}
	})
}

// ExternalIDMappings returns the external service's own ids, not composites.
func (u *UserInfoPlus) ExternalIDMappings(opts oss.ExternalIDQueryOptions, externalIDs []string) []netid.ID {
	if u.platform == nil {
		u.logger.Warn("ExternalIDMappings without a platform user service")
		return nil
	}
	return u.platform.ExternalIDMappings(opts, externalIDs)
}

func (u *UserInfoPlus) ExternalIDMapping(opts oss.ExternalIDQueryOptions, externalID string) (netid.ID, bool) {
	if u.platform == nil {
		u.logger.Warn("ExternalIDMapping without a platform user service")
		return nil, false
	}
	return u.platform.ExternalIDMapping(opts, externalID)
}
