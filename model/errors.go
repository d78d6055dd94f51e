package model

import "errors"

// Providers wrap backend failures in these sentinels so callers can tell a
// setup problem from an ordinary chat failure.
var (
	// ErrConnection marks network, DNS and timeout failures reaching the backend.
	ErrConnection = errors.New("model backend unreachable")

	// ErrModelNotFound marks a backend rejecting the configured model id.
	ErrModelNotFound = errors.New("model not found")
)

// FailureKind classifies a failed dispatch for presentation.
type FailureKind string

const (
	FailureConnection    FailureKind = "connection"
	FailureModelNotFound FailureKind = "model_not_found"
	FailureOther         FailureKind = "other"
)

// IsSetup reports whether the failure should prompt reconfiguration rather
// than being shown as an inline chat error.
func (k FailureKind) IsSetup() bool {
	return k == FailureConnection || k == FailureModelNotFound
}

// Connectivity is the outcome of a single connectivity probe.
type Connectivity struct {
	OK   bool
	Kind FailureKind
	Err  error
}
