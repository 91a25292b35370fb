package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an error that is not a domain error.
	CodeUnknown Code = "UNKNOWN"

	// CodeConflict means a precondition on existing state was violated,
	// e.g. a duplicate open session or a lost claim.
	CodeConflict Code = "CONFLICT"

	// CodeInvalidState means the operation is not allowed from the
	// session's current state.
	CodeInvalidState Code = "INVALID_STATE"

	CodeNotFound        Code = "NOT_FOUND"
	CodeForbidden       Code = "FORBIDDEN"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeConflict:
		return codes.AlreadyExists
	case CodeInvalidState:
		return codes.FailedPrecondition
	case CodeNotFound:
		return codes.NotFound
	case CodeForbidden:
		return codes.PermissionDenied
	case CodeInvalidArgument:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}
