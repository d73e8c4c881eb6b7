package netid

import (
	"errors"
	"fmt"
	"strings"
)

const (
	PlusType        = "EOSPlus"
	PlusIDSeparator = "_+_"

	platformTagSize = 1
)

var (
	ErrEmptyPlusID       = errors.New("composite id requires a platform id or an EOS id")
	ErrInvalidPlusIDSize = errors.New("invalid composite id size")
	ErrMissingSeparator  = errors.New("composite id separator not found")
)

// PlusID is the composite identity of one player across the platform subsystem and EOS.
// It is immutable; the string and byte forms are computed once at construction.
//
// Byte form: EOS id block (EOSIDByteSize, zero when absent) | platform tag (1 byte) | platform id bytes.
type PlusID struct {
	platform ID
	eos      ID
	str      string
	raw      []byte
}

// NewPlusID fuses the two ids. Absent (nil or invalid) components are dropped; at least
// one component must be present.
func NewPlusID(platform, eos ID) (*PlusID, error) {
	if !present(platform) {
		platform = nil
	}
	if !present(eos) {
		eos = nil
	}
	if platform == nil && eos == nil {
		return nil, ErrEmptyPlusID
	}

	p := &PlusID{
		platform: platform,
		eos:      eos,
	}

	var b strings.Builder
	if platform != nil {
		b.WriteString(platform.String())
	}
	b.WriteString(PlusIDSeparator)
	if eos != nil {
		b.WriteString(eos.String())
	}
	p.str = b.String()

	var platformBytes []byte
	if platform != nil {
		platformBytes = platform.Bytes()
	}
	raw := make([]byte, EOSIDByteSize+platformTagSize, EOSIDByteSize+platformTagSize+len(platformBytes))
	if eos != nil {
		copy(raw[:EOSIDByteSize], eos.Bytes())
	}
	raw[EOSIDByteSize] = byte(TagNull)
	if platform != nil {
		raw[EOSIDByteSize] = byte(TagFromName(platform.Type()))
		raw = append(raw, platformBytes...)
	}
	p.raw = raw

	return p, nil
}

func (p *PlusID) Type() string { return PlusType }

// PlatformID returns the platform component, or nil.
func (p *PlusID) PlatformID() ID { return p.platform }

// EOSID returns the EOS component, or nil.
func (p *PlusID) EOSID() ID { return p.eos }

func (p *PlusID) String() string { return p.str }

func (p *PlusID) Bytes() []byte { return append([]byte(nil), p.raw...) }

// Size is the length of the byte form.
func (p *PlusID) Size() int { return len(p.raw) }

func (p *PlusID) IsValid() bool {
	return p != nil && (p.platform != nil || p.eos != nil)
}

// Equals compares display strings.
func (p *PlusID) Equals(other *PlusID) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.str == other.str
}

func (p *PlusID) MarshalText() ([]byte, error) {
	return []byte(p.str), nil
}

// PlusIDFromString splits "<platform>_+_<eos>" and parses each side with its parser.
// Either side may be empty.
func PlusIDFromString(s string, platform, eos Parser) (*PlusID, error) {
	idx := strings.Index(s, PlusIDSeparator)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingSeparator, s)
	}
	left, right := s[:idx], s[idx+len(PlusIDSeparator):]

	var (
		platformID ID
		eosID      ID
		err        error
	)
	if left != "" {
		if platformID, err = platform.ParseID(left); err != nil {
			return nil, fmt.Errorf("failed to parse platform id: %w", err)
		}
	}
	if right != "" {
		if eosID, err = eos.ParseID(right); err != nil {
			return nil, fmt.Errorf("failed to parse EOS id: %w", err)
		}
	}
	return NewPlusID(platformID, eosID)
}

// PlusIDFromBytes decodes the byte form. When the embedded tag does not name the active
// platform, the platform bytes are preserved as an opaque BinaryID.
func PlusIDFromBytes(b []byte, active SubsystemTag, platform, eos Parser) (*PlusID, error) {
	if len(b) < EOSIDByteSize+platformTagSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPlusIDSize, len(b))
	}

	var (
		eosID      ID
		platformID ID
		err        error
	)
	if block := b[:EOSIDByteSize]; !allZero(block) {
		if eosID, err = eos.IDFromBytes(block); err != nil {
			return nil, fmt.Errorf("failed to decode EOS id: %w", err)
		}
	}

	tag := SubsystemTag(b[EOSIDByteSize])
	if tail := b[EOSIDByteSize+platformTagSize:]; len(tail) > 0 {
		if tag == active {
			if platformID, err = platform.IDFromBytes(tail); err != nil {
				return nil, fmt.Errorf("failed to decode platform id: %w", err)
			}
		} else {
			platformID = NewBinaryID(tag.Name(), tail)
		}
	}
	return NewPlusID(platformID, eosID)
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
