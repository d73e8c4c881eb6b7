package osstest

import (
	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
)

var _ oss.Presence = (*Presence)(nil)

type Presence struct {
	sys *Subsystem

	cache      map[string]*oss.UserPresence
	appCache   map[string]*oss.UserPresence
	lastStatus map[string]oss.PresenceStatus
	failSet    bool

	presenceReceived     *oss.Hub[oss.PresenceReceivedEvent]
	presenceArrayUpdated *oss.Hub[oss.PresenceArrayUpdatedEvent]
}

func newPresence(s *Subsystem) *Presence {
	return &Presence{
		sys:                  s,
		cache:                make(map[string]*oss.UserPresence),
		appCache:             make(map[string]*oss.UserPresence),
		lastStatus:           make(map[string]oss.PresenceStatus),
		presenceReceived:     oss.NewHub[oss.PresenceReceivedEvent](),
		presenceArrayUpdated: oss.NewHub[oss.PresenceArrayUpdatedEvent](),
	}
}

// FailSetPresence makes SetPresence complete unsuccessfully while fail is true.
func (p *Presence) FailSetPresence(fail bool) {
	p.failSet = fail
}

func (p *Presence) SetCachedPresence(userID netid.ID, presence *oss.UserPresence) {
	p.cache[userID.String()] = presence
}

func (p *Presence) SetCachedPresenceForApp(userID netid.ID, appID string, presence *oss.UserPresence) {
	p.appCache[appID+"/"+userID.String()] = presence
}

// LastStatus returns the status most recently passed to SetPresence for userID.
func (p *Presence) LastStatus(userID netid.ID) (oss.PresenceStatus, bool) {
	s, ok := p.lastStatus[userID.String()]
	return s, ok
}

func (p *Presence) SetPresence(userID netid.ID, status oss.PresenceStatus, done func(oss.PresenceResult)) {
	p.sys.record("SetPresence")
	p.lastStatus[userID.String()] = status
	success := !p.failSet
	p.sys.later(func() {
		if success {
			presence, ok := p.cache[userID.String()]
			if !ok {
				presence = &oss.UserPresence{IsOnline: true}
				p.cache[userID.String()] = presence
			}
			presence.Status = status
		}
		if done != nil {
			done(oss.PresenceResult{UserID: userID, Success: success})
		}
	})
}

func (p *Presence) QueryPresence(userID netid.ID, done func(oss.PresenceResult)) {
	p.sys.record("QueryPresence")
	p.sys.later(func() {
		presence, ok := p.cache[userID.String()]
		if ok {
			p.presenceReceived.Broadcast(oss.PresenceReceivedEvent{UserID: userID, Presence: *presence})
		}
		if done != nil {
			done(oss.PresenceResult{UserID: userID, Success: ok})
		}
	})
}

func (p *Presence) CachedPresence(userID netid.ID) (*oss.UserPresence, oss.CachedResult) {
	p.sys.record("CachedPresence")
	if presence, ok := p.cache[userID.String()]; ok {
		return presence, oss.CachedSuccess
	}
	return nil, oss.CachedNotFound
}

func (p *Presence) CachedPresenceForApp(localUserID, userID netid.ID, appID string) (*oss.UserPresence, oss.CachedResult) {
	p.sys.record("CachedPresenceForApp")
	if presence, ok := p.appCache[appID+"/"+userID.String()]; ok {
		return presence, oss.CachedSuccess
	}
	return nil, oss.CachedNotFound
}

func (p *Presence) OnPresenceReceived(fn func(oss.PresenceReceivedEvent)) *oss.Subscription {
	return p.presenceReceived.Add(fn)
}

func (p *Presence) OnPresenceArrayUpdated(fn func(oss.PresenceArrayUpdatedEvent)) *oss.Subscription {
	return p.presenceArrayUpdated.Add(fn)
}

func (p *Presence) EmitPresenceReceived(userID netid.ID, presence oss.UserPresence) {
	p.presenceReceived.Broadcast(oss.PresenceReceivedEvent{UserID: userID, Presence: presence})
}

func (p *Presence) EmitPresenceArrayUpdated(userID netid.ID, presences ...oss.UserPresence) {
	p.presenceArrayUpdated.Broadcast(oss.PresenceArrayUpdatedEvent{UserID: userID, Presences: presences})
}

func (p *Presence) Subscribers() int {
	return p.presenceReceived.Len() + p.presenceArrayUpdated.Len()
}
