package dispatch

import (
	"context"
	"errors"
	"net"

	"companion/model"
)

// ErrToolRoundsExceeded fails a cycle whose model keeps asking for tools.
var ErrToolRoundsExceeded = errors.New("tool call rounds exceeded")

// ErrEmptyReply fails a cycle whose model produced no displayable text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// Classify maps a dispatch error onto the failure taxonomy shown to users.
func Classify(err error) model.FailureKind {
	if err == nil {
		return model.FailureOther
	}
	if errors.Is(err, model.ErrModelNotFound) {
		return model.FailureModelNotFound
	}
	if errors.Is(err, model.ErrConnection) || errors.Is(err, context.DeadlineExceeded) {
		return model.FailureConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return model.FailureConnection
	}
	return model.FailureOther
}
