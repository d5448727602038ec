package remote

import (
	"context"
	"errors"
	"net"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hackfest/syncengine/internal/core/domain"
)

// Classify maps a raw failure to exactly one ClassifiedError. It is total
// (every non-nil error gets a kind, default Unknown) and deterministic.
func Classify(err error) *domain.ClassifiedError {
	if err == nil {
		return nil
	}

	// Already classified (e.g. by the deadline guard)
	var ce *domain.ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewClassifiedError(domain.ErrTimeout, err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewClassifiedError(domain.ErrClient, err.Error())
	}

	// Transport status codes carry the most signal when present.
	var se *StatusError
	if errors.As(err, &se) {
		return domain.NewClassifiedError(kindForHTTPStatus(se.Code), err.Error())
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		return domain.NewClassifiedError(kindForGRPCCode(st.Code()), err.Error())
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return domain.NewClassifiedError(domain.ErrTimeout, err.Error())
		}
		return domain.NewClassifiedError(domain.ErrNetwork, err.Error())
	}

	return domain.NewClassifiedError(kindForMessage(err.Error()), err.Error())
}

func kindForHTTPStatus(code int) domain.ErrorKind {
	switch {
	case code == 400 || code == 422:
		return domain.ErrValidation
	case code == 401 || code == 403:
		return domain.ErrPermission
	case code == 408:
		return domain.ErrTimeout
	case code == 429:
		return domain.ErrServer
	case code >= 500:
		return domain.ErrServer
	case code >= 400:
		return domain.ErrClient
	default:
		return domain.ErrUnknown
	}
}

func kindForGRPCCode(code codes.Code) domain.ErrorKind {
	switch code {
	case codes.Unavailable:
		return domain.ErrNetwork
	case codes.DeadlineExceeded:
		return domain.ErrTimeout
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return domain.ErrValidation
	case codes.PermissionDenied, codes.Unauthenticated:
		return domain.ErrPermission
	case codes.Internal, codes.ResourceExhausted, codes.Aborted, codes.DataLoss:
		return domain.ErrServer
	case codes.NotFound, codes.AlreadyExists, codes.Canceled:
		return domain.ErrClient
	default:
		return domain.ErrUnknown
	}
}

// kindForMessage is the last resort: substring patterns over the raw message.
func kindForMessage(msg string) domain.ErrorKind {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "network is unreachable"),
		strings.Contains(lower, "broken pipe"),
		strings.Contains(lower, "dial tcp"),
		strings.Contains(lower, "offline"):
		return domain.ErrNetwork

	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "deadline exceeded"):
		return domain.ErrTimeout

	case strings.Contains(lower, "validation"),
		strings.Contains(lower, "invalid "),
		strings.Contains(lower, "required field"),
		strings.Contains(lower, "malformed"):
		return domain.ErrValidation

	case strings.Contains(lower, "permission"),
		strings.Contains(lower, "forbidden"),
		strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "unauthenticated"):
		return domain.ErrPermission

	case strings.Contains(lower, "internal server error"),
		strings.Contains(lower, "service unavailable"),
		strings.Contains(lower, "bad gateway"),
		strings.Contains(lower, "too many requests"),
		strings.Contains(lower, "rate limit"):
		return domain.ErrServer

	case strings.Contains(lower, "not found"),
		strings.Contains(lower, "conflict"),
		strings.Contains(lower, "already exists"):
		return domain.ErrClient

	default:
		return domain.ErrUnknown
	}
}
