package server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/echotools/eosplus/server/netid"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"nil", nil, codes.OK},
		{"unknown player", ErrUnknownPlayer, codes.NotFound},
		{"unknown slot", ErrUnknownSlot, codes.NotFound},
		{"invalid slot", ErrInvalidSlot, codes.InvalidArgument},
		{"wrapped unavailable", fmt.Errorf("platform subsystem: %w", ErrSubsystemUnavailable), codes.Unavailable},
		{"eos side", ErrEOSSideFailed, codes.Aborted},
		{"plus id size", fmt.Errorf("decode: %w", netid.ErrInvalidPlusIDSize), codes.InvalidArgument},
		{"missing separator", netid.ErrMissingSeparator, codes.InvalidArgument},
		{"eos id", netid.ErrInvalidEOSID, codes.InvalidArgument},
		{"other", errors.New("boom"), codes.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
