package server

import (
	"errors"

	"github.com/echotools/eosplus/server/netid"
	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/grpc/codes"
)

var (
	ErrUnknownPlayer        = runtime.NewError("unknown player", int(codes.NotFound))
	ErrUnknownSlot          = runtime.NewError("no player registered for local slot", int(codes.NotFound))
	ErrInvalidPlayerID      = runtime.NewError("invalid player id", int(codes.InvalidArgument))
	ErrInvalidSlot          = runtime.NewError("local slot out of range", int(codes.InvalidArgument))
	ErrSubsystemUnavailable = runtime.NewError("unable to call method in platform interface", int(codes.Unavailable))
	ErrEOSSideFailed        = runtime.NewError("EOS side failed, platform result kept", int(codes.Aborted))
)

// ErrorCode classifies err into the gRPC code space used by the aggregation layer.
func ErrorCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}

	var rerr *runtime.Error
	if errors.As(err, &rerr) {
		return codes.Code(rerr.Code)
	}

	switch {
	case errors.Is(err, netid.ErrEmptyID),
		errors.Is(err, netid.ErrInvalidIDFormat),
		errors.Is(err, netid.ErrInvalidEOSID),
		errors.Is(err, netid.ErrInvalidEOSIDSize),
		errors.Is(err, netid.ErrEmptyPlusID),
		errors.Is(err, netid.ErrInvalidPlusIDSize),
		errors.Is(err, netid.ErrMissingSeparator):
		return codes.InvalidArgument
	}
	return codes.Unknown
}
