package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFan(sender *recordingSender) *Fan {
	return NewFan(Config{Device: testDevice(), Attr: "fan_speed", Kind: domain.KindFan}, sender, zap.NewNop())
}

func TestFanInbound(t *testing.T) {

	assert := assert.New(t)

	f := newTestFan(&recordingSender{})
	assert.Nil(f.IsOn(), "unknown until first report")
	assert.Nil(f.Percentage())

	f.Apply(domain.Props{"fan_speed": 2})
	require.NotNil(t, f.IsOn())
	assert.True(*f.IsOn())
	assert.Equal(66, *f.Percentage())

	f.Apply(domain.Props{"fan_speed": 9})
	assert.False(*f.IsOn(), "unknown speed is off")
	assert.Equal(0, *f.Percentage())

	f.Apply(domain.Props{"fan_speed": nil})
	assert.False(*f.IsOn())

	f.Apply(domain.Props{"other": 3})
	assert.Equal(0, *f.Percentage(), "foreign keys ignored")
}

func TestFanTurnOnDefaultsToFullSpeed(t *testing.T) {

	assert := assert.New(t)

	sender := &recordingSender{}
	f := newTestFan(sender)

	assert.NoError(f.Execute(context.Background(), command(domain.CommandTurnOn, "")))
	assert.Equal(domain.Props{"fan_speed": 3}, sender.last())
	assert.Equal(100, *f.Percentage(), "optimistic update")
	assert.True(*f.IsOn())
}

func TestFanCommands(t *testing.T) {

	assert := assert.New(t)
	ctx := context.Background()

	sender := &recordingSender{}
	f := newTestFan(sender)

	assert.NoError(f.Execute(ctx, command(domain.CommandSetPercentage, "50")))
	assert.Equal(domain.Props{"fan_speed": 2}, sender.last())
	assert.Equal(66, *f.Percentage())

	assert.NoError(f.Execute(ctx, command(domain.CommandTurnOn, "20")))
	assert.Equal(domain.Props{"fan_speed": 1}, sender.last())

	assert.NoError(f.Execute(ctx, command(domain.CommandTurnOn, "medium")))
	assert.Equal(domain.Props{"fan_speed": 2}, sender.last())

	assert.NoError(f.Execute(ctx, command(domain.CommandSetPresetMode, "whirlwind")))
	assert.Equal(domain.Props{"fan_speed": 3}, sender.last(), "unknown preset is full speed")

	assert.NoError(f.Execute(ctx, command(domain.CommandTurnOff, "")))
	assert.Equal(domain.Props{"fan_speed": 0}, sender.last())
	assert.False(*f.IsOn())
	assert.Equal(0, *f.Percentage())

	assert.NoError(f.Execute(ctx, command(domain.CommandSetPercentage, "0")))
	assert.Equal(domain.Props{"fan_speed": 0}, sender.last())

	err := f.Execute(ctx, command(domain.CommandSetPercentage, "lots"))
	assert.True(errors.Is(err, domain.ErrInvalidCommandValue))
}

func TestFanUpdatesEvenWhenSendFails(t *testing.T) {

	assert := assert.New(t)

	sender := &recordingSender{err: errors.New("gateway offline")}
	f := newTestFan(sender)

	err := f.Execute(context.Background(), command(domain.CommandTurnOn, ""))
	assert.True(errors.Is(err, domain.ErrSendFailed), "failure surfaces to the caller")
	assert.Equal(100, *f.Percentage(), "fan state is always optimistic")
}

func TestFanPolicyOverride(t *testing.T) {

	assert := assert.New(t)

	sender := &recordingSender{outcome: domain.SendFailed}
	f := NewFan(Config{Device: testDevice(), Attr: "fan_speed", Kind: domain.KindFan, Policy: OptimisticUnlessFailed}, sender, zap.NewNop())

	err := f.Execute(context.Background(), command(domain.CommandTurnOn, ""))
	assert.True(errors.Is(err, domain.ErrSendFailed))
	assert.Nil(f.Percentage(), "no update on explicit failure")
}

func TestFanConfiguredProp(t *testing.T) {

	assert := assert.New(t)

	sender := &recordingSender{}
	f := NewFan(Config{Device: testDevice(), Attr: "ceiling_fan", Kind: domain.KindFan, Props: []string{"speed"}}, sender, zap.NewNop())
	assert.True(f.Accepts("speed"))
	assert.False(f.Accepts("ceiling_fan"))

	f.Apply(domain.Props{"speed": 1})
	require.NotNil(t, f.Percentage())
	assert.Equal(33, *f.Percentage())

	assert.NoError(f.Execute(context.Background(), command(domain.CommandTurnOn, "")))
	assert.Equal(domain.Props{"speed": 3}, sender.last())
}
