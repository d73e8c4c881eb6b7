package server

import (
	"sync"

	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
	"go.uber.org/zap"
)

type LoginState int

const (
	LoginIdle LoginState = iota
	LoginPlatformPending
	LoginEOSPending
	LoginComplete
	LoginFailed
)

func (s LoginState) String() string {
	switch s {
	case LoginPlatformPending:
		return "PlatformLoginPending"
	case LoginEOSPending:
		return "EOSLoginPending"
	case LoginComplete:
		return "Complete"
	case LoginFailed:
		return "Failed"
	default:
		return "Idle"
	}
}

type loginSession struct {
	state      LoginState
	creds      oss.Credentials
	platformID netid.ID
}

// LoginOrchestrator drives the platform login and, when enabled, the EOS login that
// follows it. The platform result is authoritative: an EOS failure still completes the
// login with a composite id that has no EOS half.
type LoginOrchestrator struct {
	sync.Mutex
	logger   *zap.Logger
	settings *Settings
	metrics  Metrics
	registry *IdentityRegistry
	platform oss.Identity
	eos      oss.Identity
	events   *Events

	sessions map[int]*loginSession
}

func NewLoginOrchestrator(logger *zap.Logger, settings *Settings, metrics Metrics, registry *IdentityRegistry, platform, eos oss.Identity, events *Events) *LoginOrchestrator {
	return &LoginOrchestrator{
		logger:   logger.With(zap.String("component", "login_orchestrator")),
		settings: settings,
		metrics:  metrics,
		registry: registry,
		platform: platform,
		eos:      eos,
		events:   events,
		sessions: make(map[int]*loginSession),
	}
}

// Subscribe attaches the orchestrator to both identity services.
func (o *LoginOrchestrator) Subscribe(group *oss.SubscriptionGroup) {
	group.Add(o.platform.OnLoginComplete(o.onPlatformLoginComplete))
	group.Add(o.eos.OnLoginComplete(o.onEOSLoginComplete))
}

func (o *LoginOrchestrator) State(slot int) LoginState {
	o.Lock()
	defer o.Unlock()
	if s, ok := o.sessions[slot]; ok {
		return s.state
	}
	return LoginIdle
}

// Credentials returns the credentials stored for slot by the last Login or AutoLogin.
func (o *LoginOrchestrator) Credentials(slot int) (oss.Credentials, bool) {
	o.Lock()
	defer o.Unlock()
	if s, ok := o.sessions[slot]; ok {
		return s.creds, true
	}
	return oss.Credentials{}, false
}

func (o *LoginOrchestrator) Login(slot int, creds oss.Credentials) bool {
	return o.start(slot, creds, func() bool { return o.platform.Login(slot, creds) })
}

// AutoLogin starts a platform auto login. The EOS leg, if any, uses empty credentials.
func (o *LoginOrchestrator) AutoLogin(slot int) bool {
	return o.start(slot, oss.Credentials{}, func() bool { return o.platform.AutoLogin(slot) })
}

func (o *LoginOrchestrator) start(slot int, creds oss.Credentials, login func() bool) bool {
	if slot < 0 || slot >= o.settings.Load().MaxLocalPlayers {
		o.logger.Warn("Login requested for invalid slot", zap.Int("slot", slot))
		return false
	}

	o.Lock()
	o.sessions[slot] = &loginSession{
		state: LoginPlatformPending,
		creds: creds,
	}
	o.Unlock()

	if login() {
		return true
	}

	o.Lock()
	if s, ok := o.sessions[slot]; ok && s.state == LoginPlatformPending {
		s.state = LoginFailed
	}
	o.Unlock()
	o.metrics.CountLogin(false)
	o.logger.Warn("Platform login could not be started", zap.Int("slot", slot))
	return false
}

func (o *LoginOrchestrator) onPlatformLoginComplete(evt oss.LoginCompleteEvent) {
	logger := o.logger.With(zap.Int("slot", evt.Slot))

	o.Lock()
	s, ok := o.sessions[evt.Slot]
	if !ok || s.state != LoginPlatformPending {
		o.Unlock()
		logger.Debug("Ignoring platform login completion", zap.Bool("success", evt.Success))
		return
	}

	if !evt.Success {
		s.state = LoginFailed
		o.Unlock()
		logger.Info("Platform login failed", zap.String("error", evt.Error))
		o.metrics.CountLogin(false)
		o.events.LoginComplete.Broadcast(LoginCompleteEvent{Slot: evt.Slot, Error: evt.Error})
		return
	}

	s.platformID = evt.UserID
	if !o.settings.Load().EOSLoginEnabled() {
		o.Unlock()
		o.finish(evt.Slot, evt.UserID, nil, "")
		return
	}

	s.state = LoginEOSPending
	creds := s.creds
	o.Unlock()

	logger.Debug("Platform login complete, starting EOS login")
	if !o.eos.Login(evt.Slot, creds) {
		o.metrics.CountEOSLogin(false)
		o.completeEOS(evt.Slot, nil, "EOS login could not be started")
	}
}

func (o *LoginOrchestrator) onEOSLoginComplete(evt oss.LoginCompleteEvent) {
	o.metrics.CountEOSLogin(evt.Success)
	if !evt.Success {
		o.completeEOS(evt.Slot, nil, evt.Error)
		return
	}
	o.completeEOS(evt.Slot, evt.UserID, "")
}

func (o *LoginOrchestrator) completeEOS(slot int, eosID netid.ID, eosErr string) {
	o.Lock()
	s, ok := o.sessions[slot]
	if !ok || s.state != LoginEOSPending {
		o.Unlock()
		o.logger.Debug("Ignoring EOS login completion", zap.Int("slot", slot))
		return
	}
	platformID := s.platformID
	o.Unlock()

	if eosErr != "" {
		o.logger.Warn("EOS login failed, continuing with platform identity", zap.Int("slot", slot), zap.String("error", eosErr))
	}
	o.finish(slot, platformID, eosID, eosErr)
}

func (o *LoginOrchestrator) finish(slot int, platformID, eosID netid.ID, eosErr string) {
	var platformAccount, eosAccount *oss.UserAccount
	if platformID != nil {
		platformAccount, _ = o.platform.UserAccount(platformID)
	}
	if eosID != nil {
		eosAccount, _ = o.eos.UserAccount(eosID)
	}

	plusID, err := o.registry.RegisterLocalPlayer(slot, platformID, eosID, platformAccount, eosAccount)

	o.Lock()
	if s, ok := o.sessions[slot]; ok {
		if err != nil {
			s.state = LoginFailed
		} else {
			s.state = LoginComplete
		}
	}
	o.Unlock()

	if err != nil {
		o.logger.Error("Failed to register local player", zap.Int("slot", slot), zap.Error(err))
		o.metrics.CountLogin(false)
		o.events.LoginComplete.Broadcast(LoginCompleteEvent{Slot: slot, Error: err.Error(), EOSError: eosErr})
		return
	}

	o.logger.Info("Login complete", zap.Int("slot", slot), zap.String("plus_id", plusID.String()), zap.Bool("eos", eosID != nil))
	o.metrics.CountLogin(true)
	o.events.LoginComplete.Broadcast(LoginCompleteEvent{Slot: slot, Success: true, UserID: plusID, EOSError: eosErr})
}

// Logout forgets the slot, logs it out of EOS and then the platform, and returns the
// platform's result.
func (o *LoginOrchestrator) Logout(slot int) bool {
	o.registry.DeregisterLocalPlayer(slot)

	o.Lock()
	delete(o.sessions, slot)
	o.Unlock()

	o.eos.Logout(slot)
	return o.platform.Logout(slot)
}
