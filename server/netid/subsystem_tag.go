package netid

import "strings"

// SubsystemTag identifies the platform that issued the platform half of a composite id.
// It is stored as a single byte in the composite byte form.
type SubsystemTag uint8

const (
	TagNull SubsystemTag = iota
	TagSteam
	TagPS4
	TagXboxLive
	TagSwitch
	TagApple
)

// Subsystem names as reported by Subsystem.Name().
const (
	NullSubsystem   = "NULL"
	SteamSubsystem  = "STEAM"
	PS4Subsystem    = "PS4"
	LiveSubsystem   = "LIVE"
	SwitchSubsystem = "SWITCH"
	AppleSubsystem  = "APPLE"
)

// TagFromName maps a subsystem name to its tag. Unknown names map to TagNull.
func TagFromName(name string) SubsystemTag {
	switch strings.ToUpper(name) {
	case SteamSubsystem:
		return TagSteam
	case PS4Subsystem:
		return TagPS4
	case LiveSubsystem:
		return TagXboxLive
	case SwitchSubsystem:
		return TagSwitch
	case AppleSubsystem:
		return TagApple
	default:
		return TagNull
	}
}

// KnownSubsystem reports whether name maps to a tag, including the null subsystem.
func KnownSubsystem(name string) bool {
	return TagFromName(name) != TagNull || strings.EqualFold(name, NullSubsystem)
}

// Name returns the subsystem name for the tag.
func (t SubsystemTag) Name() string {
	switch t {
	case TagSteam:
		return SteamSubsystem
	case TagPS4:
		return PS4Subsystem
	case TagXboxLive:
		return LiveSubsystem
	case TagSwitch:
		return SwitchSubsystem
	case TagApple:
		return AppleSubsystem
	default:
		return NullSubsystem
	}
}

func (t SubsystemTag) String() string {
	return t.Name()
}
