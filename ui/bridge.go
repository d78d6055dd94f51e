package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"companion/model"
)

// Bridge forwards scheduler events into the bubbletea event loop. It
// implements dispatch.Listener. Events raised before Attach are dropped.
type Bridge struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach routes events to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.attach(p.Send)
}

func (b *Bridge) attach(send func(tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = send
}

func (b *Bridge) emit(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

func (b *Bridge) ThinkingStarted(cycleID string) {
	b.emit(model.ThinkingStartedMsg{CycleID: cycleID})
}

func (b *Bridge) ThinkingStopped(cycleID string) {
	b.emit(model.ThinkingStoppedMsg{CycleID: cycleID})
}

func (b *Bridge) DispatchSucceeded(result model.DispatchResult) {
	b.emit(model.DispatchDoneMsg{Result: result})
}

func (b *Bridge) DispatchFailed(failure model.DispatchFailure) {
	b.emit(model.DispatchErrorMsg{Failure: failure})
}
