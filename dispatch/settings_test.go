package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"companion/model"
)

func TestSettingsClamped(t *testing.T) {
	got := Settings{
		Cooldown:         time.Second,
		MaxHistory:       0,
		MaxToolRounds:    99,
		PeriodicInterval: 3 * time.Second,
	}.Clamped()

	assert.Equal(t, MinCooldown, got.Cooldown)
	assert.Equal(t, 1, got.MaxHistory)
	assert.Equal(t, MaxToolRoundsLimit, got.MaxToolRounds)
	assert.Equal(t, MinPeriodicInterval, got.PeriodicInterval)
	assert.Equal(t, DefaultSettings().RoundTimeout, got.RoundTimeout)

	assert.Equal(t, 1, Settings{MaxToolRounds: -3}.Clamped().MaxToolRounds)
	assert.Zero(t, Settings{PeriodicInterval: -time.Second}.Clamped().PeriodicInterval)
	assert.Equal(t, DefaultSettings(), DefaultSettings().Clamped())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want model.FailureKind
	}{
		{fmt.Errorf("x: %w", model.ErrConnection), model.FailureConnection},
		{fmt.Errorf("x: %w", model.ErrModelNotFound), model.FailureModelNotFound},
		{context.DeadlineExceeded, model.FailureConnection},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, model.FailureConnection},
		{ErrToolRoundsExceeded, model.FailureOther},
		{errors.New("boom"), model.FailureOther},
		{nil, model.FailureOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}
