package server

import (
	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
	"go.uber.org/zap"
)

// PresencePlus routes presence through the platform. When MirrorPresenceToEAS is set a
// successful platform write is copied to EOS before the caller is told.
type PresencePlus struct {
	logger   *zap.Logger
	settings *Settings
	metrics  Metrics
	registry *IdentityRegistry
	platform oss.Presence
	eos      oss.Presence
	tick     *oss.TickQueue
}

func NewPresencePlus(logger *zap.Logger, settings *Settings, metrics Metrics, registry *IdentityRegistry, platform, eos oss.Presence, tick *oss.TickQueue) *PresencePlus {
	return &PresencePlus{
		logger:   logger.With(zap.String("component", "presence_plus")),
		settings: settings,
		metrics:  metrics,
		registry: registry,
		platform: platform,
		eos:      eos,
		tick:     tick,
	}
}

func (p *PresencePlus) fail(userID *netid.PlusID, done func(oss.PresenceResult)) {
	var id netid.ID
	if userID != nil {
		id = userID
	}
	p.tick.ExecuteNextTick(func() {
		if done != nil {
			done(oss.PresenceResult{UserID: id})
		}
	})
}

// SetPresence writes status on the platform. The result reported to done is always the
// platform outcome; an EOS mirror failure is logged and counted only.
func (p *PresencePlus) SetPresence(userID *netid.PlusID, status oss.PresenceStatus, done func(oss.PresenceResult)) {
	if userID == nil {
		p.fail(nil, done)
		return
	}
	platformID, ok := p.registry.PlatformID(userID.String())
	if !ok {
		p.logger.Debug("SetPresence for unknown player", zap.String("plus_id", userID.String()))
		p.fail(userID, done)
		return
	}

	p.platform.SetPresence(platformID, status, func(result oss.PresenceResult) {
		result.UserID = userID
		if !result.Success || !p.settings.Load().MirrorPresenceToEAS {
			if done != nil {
				done(result)
			}
			return
		}
		eosID, ok := p.registry.EOSID(userID.String())
		if !ok {
			if done != nil {
				done(result)
			}
			return
		}
		p.eos.SetPresence(eosID, status, func(eosResult oss.PresenceResult) {
			if !eosResult.Success {
				p.metrics.CustomCounter("presence_mirror_failed_total", nil, 1)
				p.logger.Warn("Failed to mirror presence to EOS", zap.String("plus_id", userID.String()), zap.Error(ErrEOSSideFailed))
			}
			if done != nil {
				done(result)
			}
		})
	})
}

// QueryPresence asks the platform for a fresh presence. Results also arrive through
// the presence events.
func (p *PresencePlus) QueryPresence(userID *netid.PlusID, done func(oss.PresenceResult)) {
	if userID == nil {
		p.fail(nil, done)
		return
	}
	platformID, ok := p.registry.PlatformID(userID.String())
	if !ok {
		p.fail(userID, done)
		return
	}
	p.platform.QueryPresence(platformID, func(result oss.PresenceResult) {
		result.UserID = userID
		if done != nil {
			done(result)
		}
	})
}

func (p *PresencePlus) CachedPresence(userID *netid.PlusID) (*oss.UserPresence, oss.CachedResult) {
	if userID == nil {
		return nil, oss.CachedNotFound
	}
	platformID, ok := p.registry.PlatformID(userID.String())
	if !ok {
		return nil, oss.CachedNotFound
	}
	return p.platform.CachedPresence(platformID)
}

func (p *PresencePlus) CachedPresenceForApp(localUserID, userID *netid.PlusID, appID string) (*oss.UserPresence, oss.CachedResult) {
	if localUserID == nil || userID == nil {
		return nil, oss.CachedNotFound
	}
	localPlatformID, ok := p.registry.PlatformID(localUserID.String())
	if !ok {
		return nil, oss.CachedNotFound
	}
	platformID, ok := p.registry.PlatformID(userID.String())
	if !ok {
		return nil, oss.CachedNotFound
	}
	return p.platform.CachedPresenceForApp(localPlatformID, platformID, appID)
}
