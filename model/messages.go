package model

import "time"

// DispatchResult is emitted after a successful dispatch cycle.
type DispatchResult struct {
	CycleID      string
	CandidateID  string // empty when the cycle consumed a queued message
	DisplayText  string
	AppendedText string
	Image        *Image
	QuickReplies []string
	CompletedAt  time.Time
}

// DispatchFailure is emitted when a dispatch cycle fails.
type DispatchFailure struct {
	CycleID     string
	CandidateID string
	Kind        FailureKind
	Message     string
	Err         error
}

// ThinkingStartedMsg and ThinkingStoppedMsg bracket every dispatch cycle that
// reaches the model.
type ThinkingStartedMsg struct {
	CycleID string
}

type ThinkingStoppedMsg struct {
	CycleID string
}

// DispatchDoneMsg carries a DispatchResult through the UI event loop.
type DispatchDoneMsg struct {
	Result DispatchResult
}

// DispatchErrorMsg carries a DispatchFailure through the UI event loop.
type DispatchErrorMsg struct {
	Failure DispatchFailure
}

// ConnectivityMsg reports the result of an explicit connectivity probe.
type ConnectivityMsg struct {
	Result Connectivity
}

// ModelsMsg carries the models offered by the active provider.
type ModelsMsg struct {
	Models []ModelInfo
	Err    error
}
