package ui

import (
	"companion/model"
)

type thinkingStartedMsg = model.ThinkingStartedMsg
type thinkingStoppedMsg = model.ThinkingStoppedMsg
type dispatchDoneMsg = model.DispatchDoneMsg
type dispatchErrorMsg = model.DispatchErrorMsg
type connectivityMsg = model.ConnectivityMsg

// markdownRenderedMsg carries an asynchronously rendered transcript entry.
type markdownRenderedMsg struct {
	Index    int
	Width    int
	Rendered string
}

// triggerResultMsg reports the outcome of /trigger and /random.
type triggerResultMsg struct {
	ID  string // empty for /random
	Err error
}
