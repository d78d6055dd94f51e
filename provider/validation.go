package provider

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"companion/model"
)

// ProbeTimeout bounds a connectivity probe. The probe makes one attempt.
const ProbeTimeout = 5 * time.Second

// TestConnectivity pings the provider once and classifies the outcome.
func TestConnectivity(ctx context.Context, p model.Provider) model.Connectivity {
	if p == nil {
		return model.Connectivity{Kind: model.FailureConnection, Err: errors.New("no provider configured")}
	}
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	err := p.Ping(ctx)
	switch {
	case err == nil:
		return model.Connectivity{OK: true}
	case errors.Is(err, model.ErrModelNotFound):
		return model.Connectivity{Kind: model.FailureModelNotFound, Err: err}
	default:
		return model.Connectivity{Kind: model.FailureConnection, Err: err}
	}
}

// CheckConnectivity runs TestConnectivity as a bubbletea command.
func CheckConnectivity(p model.Provider) tea.Cmd {
	return func() tea.Msg {
		return model.ConnectivityMsg{Result: TestConnectivity(context.Background(), p)}
	}
}

// FetchModels lists the provider's models as a bubbletea command.
func FetchModels(p model.Provider) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), ProbeTimeout)
		defer cancel()
		models, err := p.ListModels(ctx)
		return model.ModelsMsg{Models: models, Err: err}
	}
}
