package driver

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Status is the result code reported across the driver boundary.
type Status int32

const (
	StatusSuccess Status = iota
	StatusInvalidParameter
	StatusOutOfMemory
	StatusUnsupported
	StatusGenericFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusInvalidParameter:
		return "INVALID_PARAMETER"
	case StatusOutOfMemory:
		return "OUT_OF_MEMORY"
	case StatusUnsupported:
		return "UNSUPPORTED"
	case StatusGenericFailure:
		return "GENERIC_FAILURE"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// StatusFromError maps an error returned by this module to a driver status.
func StatusFromError(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.NotFound, codes.OutOfRange:
		return StatusInvalidParameter
	case codes.ResourceExhausted:
		return StatusOutOfMemory
	case codes.Unimplemented:
		return StatusUnsupported
	default:
		return StatusGenericFailure
	}
}
