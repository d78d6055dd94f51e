package dispatch

import "companion/model"

// Listener receives the scheduler's outbound events. Calls are made from
// the goroutine running the cycle and never after Close.
type Listener interface {
	ThinkingStarted(cycleID string)
	ThinkingStopped(cycleID string)
	DispatchSucceeded(result model.DispatchResult)
	DispatchFailed(failure model.DispatchFailure)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnThinkingStarted func(cycleID string)
	OnThinkingStopped func(cycleID string)
	OnSuccess         func(model.DispatchResult)
	OnFailure         func(model.DispatchFailure)
}

func (l ListenerFuncs) ThinkingStarted(id string) {
	if l.OnThinkingStarted != nil {
		l.OnThinkingStarted(id)
	}
}

func (l ListenerFuncs) ThinkingStopped(id string) {
	if l.OnThinkingStopped != nil {
		l.OnThinkingStopped(id)
	}
}

func (l ListenerFuncs) DispatchSucceeded(r model.DispatchResult) {
	if l.OnSuccess != nil {
		l.OnSuccess(r)
	}
}

func (l ListenerFuncs) DispatchFailed(f model.DispatchFailure) {
	if l.OnFailure != nil {
		l.OnFailure(f)
	}
}
