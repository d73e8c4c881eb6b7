// Package osstest provides an in-memory oss.Subsystem. Every asynchronous completion
// is scheduled on the supplied TickQueue, so tests step the fake exactly like a game
// loop would. The fakes are not safe for concurrent use; drive them from one goroutine.
package osstest

import (
	"sync"

	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
	"github.com/gofrs/uuid/v5"
)

var _ oss.Subsystem = (*Subsystem)(nil)

type Option func(*Subsystem)

// WithUsers gives the fake a user info service.
func WithUsers() Option {
	return func(s *Subsystem) {
		s.users = &Users{sys: s, users: make(map[string]*oss.OnlineUser), external: make(map[string]netid.ID)}
		s.users.queryComplete = oss.NewHub[oss.QueryUserInfoCompleteEvent]()
	}
}

type Subsystem struct {
	name   string
	tick   *oss.TickQueue
	parser netid.Parser

	mu    sync.Mutex
	calls map[string]int

	identity *Identity
	friends  *Friends
	presence *Presence
	users    *Users
}

// New builds a fake named name. An EOS fake parses EOS ids; any other name parses
// plain string ids tagged with that name.
func New(name string, tick *oss.TickQueue, opts ...Option) *Subsystem {
	s := &Subsystem{
		name:  name,
		tick:  tick,
		calls: make(map[string]int),
	}
	if name == netid.EOSType {
		s.parser = netid.EOSParser{}
	} else {
		s.parser = netid.StringParser{Subsystem: name}
	}
	s.identity = newIdentity(s)
	s.friends = newFriends(s)
	s.presence = newPresence(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Subsystem) Name() string           { return s.name }
func (s *Subsystem) Identity() oss.Identity { return s.identity }
func (s *Subsystem) Friends() oss.Friends   { return s.friends }
func (s *Subsystem) Presence() oss.Presence { return s.presence }

func (s *Subsystem) Users() oss.Users {
	if s.users == nil {
		return nil
	}
	return s.users
}

func (s *Subsystem) FakeIdentity() *Identity { return s.identity }
func (s *Subsystem) FakeFriends() *Friends   { return s.friends }
func (s *Subsystem) FakePresence() *Presence { return s.presence }
func (s *Subsystem) FakeUsers() *Users       { return s.users }

// Calls returns how many times method was invoked on any of the fake's services.
func (s *Subsystem) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// TotalCalls returns the number of recorded calls across all methods.
func (s *Subsystem) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *Subsystem) record(method string) {
	s.mu.Lock()
	s.calls[method]++
	s.mu.Unlock()
}

func (s *Subsystem) later(fn func()) {
	s.tick.ExecuteNextTick(fn)
}

// PlatformID returns a string id issued by the named platform.
func PlatformID(subsystem, value string) netid.ID {
	return netid.NewStringID(subsystem, value)
}

// NewEOSID returns an EOS id with both halves set to fresh random values.
func NewEOSID() netid.EOSID {
	return netid.NewEOSID(uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()))
}

func sameID(a, b netid.ID) bool {
	if a == nil || b == nil {
		return false
	}
	return a.String() == b.String()
}

// Subscribers returns the number of live event handlers across all services.
func (s *Subsystem) Subscribers() int {
	n := s.identity.Subscribers() + s.friends.Subscribers() + s.presence.Subscribers()
	if s.users != nil {
		n += s.users.Subscribers()
	}
	return n
}
