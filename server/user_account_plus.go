package server

import (
	"github.com/echotools/eosplus/server/netid"
	"github.com/echotools/eosplus/server/oss"
)

// UserAccountPlus aggregates the platform and EOS accounts of one local player.
// Reads prefer the platform account and fall back to EOS.
type UserAccountPlus struct {
	id       *netid.PlusID
	platform *oss.UserAccount
	eos      *oss.UserAccount
}

func NewUserAccountPlus(id *netid.PlusID, platform, eos *oss.UserAccount) *UserAccountPlus {
	return &UserAccountPlus{
		id:       id,
		platform: platform,
		eos:      eos,
	}
}

func (a *UserAccountPlus) ID() *netid.PlusID                { return a.id }
func (a *UserAccountPlus) PlatformAccount() *oss.UserAccount { return a.platform }
func (a *UserAccountPlus) EOSAccount() *oss.UserAccount      { return a.eos }

func (a *UserAccountPlus) DisplayName() string {
	if a.platform != nil {
		return a.platform.DisplayName
	}
	if a.eos != nil {
		return a.eos.DisplayName
	}
	return ""
}

func (a *UserAccountPlus) RealName() string {
	if a.platform != nil {
		return a.platform.RealName
	}
	if a.eos != nil {
		return a.eos.RealName
	}
	return ""
}

func (a *UserAccountPlus) AccessToken() string {
	if a.platform != nil {
		return a.platform.AccessToken
	}
	if a.eos != nil {
		return a.eos.AccessToken
	}
	return ""
}

func (a *UserAccountPlus) AuthAttribute(key string) (string, bool) {
	if v, ok := a.platform.AuthAttribute(key); ok {
		return v, true
	}
	return a.eos.AuthAttribute(key)
}

func (a *UserAccountPlus) UserAttribute(key string) (string, bool) {
	if a.platform != nil {
		if v, ok := a.platform.Attribute(key); ok {
			return v, true
		}
	}
	if a.eos != nil {
		return a.eos.Attribute(key)
	}
	return "", false
}

// SetUserAttribute writes to the platform account only.
func (a *UserAccountPlus) SetUserAttribute(key, value string) bool {
	if a.platform == nil {
		return false
	}
	return a.platform.SetAttribute(key, value)
}
