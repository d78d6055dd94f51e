package ollama

import (
	"errors"

	"github.com/ollama/ollama/api"
)

// asStatusError matches both value and pointer forms of api.StatusError.
func asStatusError(err error, target *api.StatusError) bool {
	if errors.As(err, target) {
		return true
	}
	var ptr *api.StatusError
	if errors.As(err, &ptr) && ptr != nil {
		*target = *ptr
		return true
	}
	return false
}

// StatusCode extracts the HTTP status of an Ollama API error, or 0.
func StatusCode(err error) int {
	var status api.StatusError
	if asStatusError(err, &status) {
		return status.StatusCode
	}
	return 0
}
