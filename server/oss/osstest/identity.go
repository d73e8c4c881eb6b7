package osstest

import (
	"sort"

	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
)

var _ oss.Identity = (*Identity)(nil)

type Identity struct {
	netid.Parser
	sys *Subsystem

	accounts  map[int]*oss.UserAccount
	status    map[int]oss.LoginStatus
	loginFail map[int]string
	creds     map[int]oss.Credentials
	denied    map[string]oss.PrivilegeFailure

	loginComplete      *oss.Hub[oss.LoginCompleteEvent]
	logoutComplete     *oss.Hub[oss.LogoutCompleteEvent]
	loginChanged       *oss.Hub[oss.LoginChangedEvent]
	loginStatusChanged *oss.Hub[oss.LoginStatusChangedEvent]
	controllerPairing  *oss.Hub[oss.ControllerPairingChangedEvent]
}

func newIdentity(s *Subsystem) *Identity {
	return &Identity{
		Parser:             s.parser,
		sys:                s,
		accounts:           make(map[int]*oss.UserAccount),
		status:             make(map[int]oss.LoginStatus),
		loginFail:          make(map[int]string),
		creds:              make(map[int]oss.Credentials),
		denied:             make(map[string]oss.PrivilegeFailure),
		loginComplete:      oss.NewHub[oss.LoginCompleteEvent](),
		logoutComplete:     oss.NewHub[oss.LogoutCompleteEvent](),
		loginChanged:       oss.NewHub[oss.LoginChangedEvent](),
		loginStatusChanged: oss.NewHub[oss.LoginStatusChangedEvent](),
		controllerPairing:  oss.NewHub[oss.ControllerPairingChangedEvent](),
	}
}

// SetAccount configures the account a login on slot will produce.
func (i *Identity) SetAccount(slot int, id netid.ID, displayName string) *oss.UserAccount {
	account := &oss.UserAccount{
		OnlineUser: oss.OnlineUser{
			ID:          id,
			DisplayName: displayName,
		},
		AccessToken: i.sys.name + "-token-" + id.String(),
	}
	i.accounts[slot] = account
	delete(i.loginFail, slot)
	return account
}

// FailLogin makes the next logins on slot fail with errStr.
func (i *Identity) FailLogin(slot int, errStr string) {
	i.loginFail[slot] = errStr
}

// SetLoginStatus overrides the status reported for slot without emitting events.
func (i *Identity) SetLoginStatus(slot int, status oss.LoginStatus) {
	i.status[slot] = status
}

func (i *Identity) LastCredentials(slot int) (oss.Credentials, bool) {
	c, ok := i.creds[slot]
	return c, ok
}

func (i *Identity) Login(slot int, creds oss.Credentials) bool {
	i.sys.record("Login")
	i.creds[slot] = creds
	i.sys.later(func() { i.completeLogin(slot) })
	return true
}

func (i *Identity) AutoLogin(slot int) bool {
	i.sys.record("AutoLogin")
	i.creds[slot] = oss.Credentials{}
	i.sys.later(func() { i.completeLogin(slot) })
	return true
}

func (i *Identity) completeLogin(slot int) {
	if errStr, ok := i.loginFail[slot]; ok {
		i.status[slot] = oss.NotLoggedIn
		i.loginComplete.Broadcast(oss.LoginCompleteEvent{Slot: slot, Error: errStr})
		return
	}
	account, ok := i.accounts[slot]
	if !ok {
		i.status[slot] = oss.NotLoggedIn
		i.loginComplete.Broadcast(oss.LoginCompleteEvent{Slot: slot, Error: "no account for slot"})
		return
	}
	i.status[slot] = oss.LoggedIn
	i.loginComplete.Broadcast(oss.LoginCompleteEvent{Slot: slot, Success: true, UserID: account.ID})
}

func (i *Identity) Logout(slot int) bool {
	i.sys.record("Logout")
	i.status[slot] = oss.NotLoggedIn
	i.sys.later(func() {
		i.logoutComplete.Broadcast(oss.LogoutCompleteEvent{Slot: slot, Success: true})
	})
	return true
}

func (i *Identity) loggedIn(slot int) (*oss.UserAccount, bool) {
	account, ok := i.accounts[slot]
	if !ok || i.status[slot] != oss.LoggedIn {
		return nil, false
	}
	return account, true
}

func (i *Identity) slotFor(id netid.ID) (int, bool) {
	for slot, account := range i.accounts {
		if sameID(account.ID, id) {
			return slot, true
		}
	}
	return 0, false
}

func (i *Identity) UniquePlayerID(slot int) (netid.ID, bool) {
	account, ok := i.loggedIn(slot)
	if !ok {
		return nil, false
	}
	return account.ID, true
}

func (i *Identity) UserAccount(id netid.ID) (*oss.UserAccount, bool) {
	slot, ok := i.slotFor(id)
	if !ok {
		return nil, false
	}
	return i.loggedIn(slot)
}

func (i *Identity) AllUserAccounts() []*oss.UserAccount {
	slots := make([]int, 0, len(i.accounts))
	for slot := range i.accounts {
		if _, ok := i.loggedIn(slot); ok {
			slots = append(slots, slot)
		}
	}
	sort.Ints(slots)
	accounts := make([]*oss.UserAccount, 0, len(slots))
	for _, slot := range slots {
		accounts = append(accounts, i.accounts[slot])
	}
	return accounts
}

func (i *Identity) LoginStatus(slot int) oss.LoginStatus {
	return i.status[slot]
}

func (i *Identity) LoginStatusByID(id netid.ID) oss.LoginStatus {
	slot, ok := i.slotFor(id)
	if !ok {
		return oss.NotLoggedIn
	}
	return i.status[slot]
}

func (i *Identity) PlayerNickname(slot int) string {
	if account, ok := i.loggedIn(slot); ok {
		return account.DisplayName
	}
	return ""
}

func (i *Identity) PlayerNicknameByID(id netid.ID) string {
	if account, ok := i.UserAccount(id); ok {
		return account.DisplayName
	}
	return ""
}

func (i *Identity) AuthToken(slot int) string {
	if account, ok := i.loggedIn(slot); ok {
		return account.AccessToken
	}
	return ""
}

func (i *Identity) AuthType() string {
	return i.sys.name + ":fake"
}

// PlatformUserID maps a known account to its slot.
func (i *Identity) PlatformUserID(id netid.ID) oss.PlatformUserID {
	slot, ok := i.slotFor(id)
	if !ok {
		return oss.InvalidPlatformUserID
	}
	return oss.PlatformUserID(slot)
}

// DenyPrivilege makes privilege checks for id report failures.
func (i *Identity) DenyPrivilege(id netid.ID, failures oss.PrivilegeFailure) {
	i.denied[id.String()] = failures
}

func (i *Identity) UserPrivilege(userID netid.ID, privilege oss.UserPrivilege, done func(oss.PrivilegeResult)) {
	i.sys.record("UserPrivilege")
	i.sys.later(func() {
		result := oss.PrivilegeResult{UserID: userID, Privilege: privilege}
		slot, ok := i.slotFor(userID)
		switch {
		case !ok:
			result.Failures = oss.PrivilegeUserNotFound
		case i.status[slot] != oss.LoggedIn:
			result.Failures = oss.PrivilegeUserNotLoggedIn
		default:
			result.Failures = i.denied[userID.String()]
		}
		if done != nil {
			done(result)
		}
	})
}

// RevokeAuthToken clears the access token of a logged in account.
func (i *Identity) RevokeAuthToken(userID netid.ID, done func(oss.AuthTokenResult)) {
	i.sys.record("RevokeAuthToken")
	i.sys.later(func() {
		result := oss.AuthTokenResult{UserID: userID}
		if slot, ok := i.slotFor(userID); ok {
			result.Slot = slot
			if account, ok := i.loggedIn(slot); ok {
				account.AccessToken = ""
				result.Success = true
			}
		}
		if !result.Success {
			result.Error = "user not logged in"
		}
		if done != nil {
			done(result)
		}
	})
}

func (i *Identity) LinkedAccountAuthToken(slot int, done func(oss.AuthTokenResult)) {
	i.sys.record("LinkedAccountAuthToken")
	i.sys.later(func() {
		result := oss.AuthTokenResult{Slot: slot}
		if account, ok := i.loggedIn(slot); ok && account.AccessToken != "" {
			result.UserID = account.ID
			result.Token = account.AccessToken
			result.Success = true
		} else {
			result.Error = "no linked account token"
		}
		if done != nil {
			done(result)
		}
	})
}

func (i *Identity) OnLoginComplete(fn func(oss.LoginCompleteEvent)) *oss.Subscription {
	return i.loginComplete.Add(fn)
}

func (i *Identity) OnLogoutComplete(fn func(oss.LogoutCompleteEvent)) *oss.Subscription {
	return i.logoutComplete.Add(fn)
}

func (i *Identity) OnLoginChanged(fn func(oss.LoginChangedEvent)) *oss.Subscription {
	return i.loginChanged.Add(fn)
}

func (i *Identity) OnLoginStatusChanged(fn func(oss.LoginStatusChangedEvent)) *oss.Subscription {
	return i.loginStatusChanged.Add(fn)
}

func (i *Identity) OnControllerPairingChanged(fn func(oss.ControllerPairingChangedEvent)) *oss.Subscription {
	return i.controllerPairing.Add(fn)
}

func (i *Identity) EmitControllerPairingChanged(slot int, previous, next oss.ControllerPairingUser) {
	i.controllerPairing.Broadcast(oss.ControllerPairingChangedEvent{Slot: slot, Previous: previous, New: next})
}

func (i *Identity) EmitLoginChanged(slot int) {
	i.loginChanged.Broadcast(oss.LoginChangedEvent{Slot: slot})
}

// EmitLoginStatusChanged records the new status and broadcasts the transition.
func (i *Identity) EmitLoginStatusChanged(slot int, oldStatus, newStatus oss.LoginStatus, id netid.ID) {
	i.status[slot] = newStatus
	i.loginStatusChanged.Broadcast(oss.LoginStatusChangedEvent{Slot: slot, Old: oldStatus, New: newStatus, NewID: id})
}

func (i *Identity) EmitLogoutComplete(slot int, success bool) {
	i.logoutComplete.Broadcast(oss.LogoutCompleteEvent{Slot: slot, Success: success})
}

// Subscribers reports the number of live identity handlers.
func (i *Identity) Subscribers() int {
	return i.loginComplete.Len() + i.logoutComplete.Len() + i.loginChanged.Len() + i.loginStatusChanged.Len() + i.controllerPairing.Len()
}
