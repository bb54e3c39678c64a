package lnd

import (
	"context"
	"errors"
	"strings"

	"github.com/lnwallet-ledger/internal/domain/lightning"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// serviceError classifies a gRPC failure. Deadline errors become timeouts:
// the node may still complete the call.
func serviceError(op string, err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded) || status.Code(err) == codes.DeadlineExceeded
	return &lightning.LightningServiceError{Op: op, Timeout: timeout, Err: err}
}

// dispatchError classifies a failure of a payment RPC. Once the request may
// have reached the node the payment can still complete, so only codes showing
// the node refused the request are definite failures.
func dispatchError(op string, err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied, codes.Unimplemented:
		return &lightning.LightningServiceError{Op: op, Err: err}
	default:
		return &lightning.LightningServiceError{Op: op, Timeout: true, Err: err}
	}
}

func isNotFound(err error) bool {
	if status.Code(err) == codes.NotFound {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unable to locate invoice") ||
		strings.Contains(msg, "there are no existing invoices") ||
		strings.Contains(msg, "payment isn't initiated")
}

func isNoRoute(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unable to find a path") || strings.Contains(msg, "no route")
}
