package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"

	"companion/model"
	"companion/ollama"
)

// normalizeError wraps backend failures in the model sentinels. Errors that
// already carry a sentinel and caller cancellations pass through.
func normalizeError(backend string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, model.ErrConnection) ||
		errors.Is(err, model.ErrModelNotFound) {
		return err
	}

	switch status := statusCode(err); {
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w: %w", backend, model.ErrModelNotFound, err)
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %w: %w", backend, model.ErrConnection, err)
	case status != 0:
		if looksLikeMissingModel(err) {
			return fmt.Errorf("%s: %w: %w", backend, model.ErrModelNotFound, err)
		}
		return fmt.Errorf("%s: %w", backend, err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %w", backend, model.ErrConnection, err)
	}
	return fmt.Errorf("%s: %w", backend, err)
}

func statusCode(err error) int {
	if code := ollama.StatusCode(err); code != 0 {
		return code
	}
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return oaiErr.StatusCode
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode
	}
	return 0
}

// looksLikeMissingModel catches backends that report an unknown model with
// 400 instead of 404.
func looksLikeMissingModel(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "model_not_found") ||
		(strings.Contains(msg, "model") && strings.Contains(msg, "not found")) ||
		strings.Contains(msg, "not a valid model")
}
