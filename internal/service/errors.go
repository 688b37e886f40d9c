package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/messbook/internal/ledger"
)

// toConnectError maps core errors onto Connect codes. Unexpected errors are
// logged and reported as Internal without leaking their text.
func toConnectError(ctx context.Context, op string, err error) error {
	var (
		validation *ledger.ValidationError
		notFound   *ledger.NotFoundError
		permission *ledger.PermissionError
		conflict   *ledger.ConflictError
	)

	switch {
	case errors.As(err, &validation):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.As(err, &notFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.As(err, &permission):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.As(err, &conflict):
		if conflict.Blocked() {
			return blockedError(conflict)
		}
		if conflict.Stale {
			return connect.NewError(connect.CodeAborted, err)
		}
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	slog.ErrorContext(ctx, op+" failed", "error", err)
	return connect.NewError(connect.CodeInternal, errors.New(op+" failed"))
}

// blockedError is FailedPrecondition with the policy reasons attached as a
// google.protobuf.Struct detail {"reasons": [...]}.
func blockedError(conflict *ledger.ConflictError) error {
	connectErr := connect.NewError(connect.CodeFailedPrecondition, conflict)

	reasons := make([]any, len(conflict.Reasons))
	for i, r := range conflict.Reasons {
		reasons[i] = string(r)
	}
	detailMsg, err := structpb.NewStruct(map[string]any{"reasons": reasons})
	if err != nil {
		return connectErr
	}
	if detail, err := connect.NewErrorDetail(detailMsg); err == nil {
		connectErr.AddDetail(detail)
	}
	return connectErr
}

// BlockedReasons extracts the leave-policy reasons from a FailedPrecondition
// error returned by GroupService.LeaveGroup.
func BlockedReasons(err error) []string {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return nil
	}
	for _, detail := range connectErr.Details() {
		value, err := detail.Value()
		if err != nil {
			continue
		}
		s, ok := value.(*structpb.Struct)
		if !ok {
			continue
		}
		var reasons []string
		for _, v := range s.GetFields()["reasons"].GetListValue().GetValues() {
			reasons = append(reasons, v.GetStringValue())
		}
		return reasons
	}
	return nil
}
