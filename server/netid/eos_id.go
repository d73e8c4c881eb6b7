package netid

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-restruct/restruct"
	"github.com/gofrs/uuid/v5"
)

const (
	EOSType = "EOS"

	EOSIDHalfSize = 16
	EOSIDByteSize = EOSIDHalfSize * 2

	eosIDSeparator = "|"
)

var (
	ErrInvalidEOSID     = errors.New("invalid EOS id")
	ErrInvalidEOSIDSize = errors.New("invalid EOS id size")
)

// EOSID is the pair of account ids EOS hands out for a player: the Epic account id
// (EAS) and the product user id (EOS Connect). Either half may be nil.
type EOSID struct {
	epicAccountID uuid.UUID
	productUserID uuid.UUID
}

// eosIDBlock is the fixed-width binary layout of an EOSID.
type eosIDBlock struct {
	EpicAccountID [EOSIDHalfSize]byte
	ProductUserID [EOSIDHalfSize]byte
}

func NewEOSID(epicAccountID, productUserID uuid.UUID) EOSID {
	return EOSID{epicAccountID: epicAccountID, productUserID: productUserID}
}

func (e EOSID) EpicAccountID() uuid.UUID { return e.epicAccountID }
func (e EOSID) ProductUserID() uuid.UUID { return e.productUserID }

func (e EOSID) Type() string { return EOSType }

func (e EOSID) IsValid() bool {
	return e.epicAccountID != uuid.Nil || e.productUserID != uuid.Nil
}

// String renders "<epic account id>|<product user id>" using 32 hex digits per half.
func (e EOSID) String() string {
	return hex.EncodeToString(e.epicAccountID.Bytes()) + eosIDSeparator + hex.EncodeToString(e.productUserID.Bytes())
}

func (e EOSID) MarshalBinary() ([]byte, error) {
	block := eosIDBlock{
		EpicAccountID: e.epicAccountID,
		ProductUserID: e.productUserID,
	}
	return restruct.Pack(binary.LittleEndian, &block)
}

func (e EOSID) Bytes() []byte {
	data, err := e.MarshalBinary()
	if err != nil {
		// The block is two fixed arrays; packing cannot fail.
		return make([]byte, EOSIDByteSize)
	}
	return data
}

// ParseEOSID parses the "<epic>|<puid>" form. A missing or empty half is nil.
func ParseEOSID(s string) (EOSID, error) {
	if s == "" {
		return EOSID{}, ErrEmptyID
	}
	parts := strings.Split(s, eosIDSeparator)
	if len(parts) > 2 {
		return EOSID{}, fmt.Errorf("%w: %q", ErrInvalidEOSID, s)
	}

	var halves [2]uuid.UUID
	for i, part := range parts {
		if part == "" {
			continue
		}
		id, err := uuid.FromString(part)
		if err != nil {
			return EOSID{}, fmt.Errorf("%w: %w", ErrInvalidEOSID, err)
		}
		halves[i] = id
	}
	return NewEOSID(halves[0], halves[1]), nil
}

// EOSIDFromBytes decodes the fixed 32 byte block.
func EOSIDFromBytes(b []byte) (EOSID, error) {
	if len(b) != EOSIDByteSize {
		return EOSID{}, fmt.Errorf("%w: %d", ErrInvalidEOSIDSize, len(b))
	}
	block := eosIDBlock{}
	if err := restruct.Unpack(b, binary.LittleEndian, &block); err != nil {
		return EOSID{}, fmt.Errorf("%w: %w", ErrInvalidEOSID, err)
	}
	return NewEOSID(block.EpicAccountID, block.ProductUserID), nil
}

// EOSParser implements Parser for EOS ids.
type EOSParser struct{}

func (EOSParser) ParseID(s string) (ID, error) {
	id, err := ParseEOSID(s)
	if err != nil {
		return nil, err
	}
	return id, nil
}

func (EOSParser) IDFromBytes(b []byte) (ID, error) {
	id, err := EOSIDFromBytes(b)
	if err != nil {
		return nil, err
	}
	return id, nil
}
