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

func newTestSelect(sender *recordingSender, enum map[string]string) *Select {
	return NewSelect(Config{
		Device:      testDevice(),
		Attr:        "scene",
		Kind:        domain.KindSelect,
		Enum:        enum,
		Placeholder: "none",
	}, sender, zap.NewNop())
}

func TestSelectOptions(t *testing.T) {

	assert := assert.New(t)

	s := newTestSelect(&recordingSender{}, map[string]string{"0": "off", "1": "relax"})
	assert.Equal([]string{"off", "relax"}, s.Options())

	s = newTestSelect(&recordingSender{}, nil)
	assert.Equal([]string{"none"}, s.Options(), "configured placeholder")

	s = NewSelect(Config{Device: testDevice(), Attr: "scene", Kind: domain.KindSelect}, &recordingSender{}, zap.NewNop())
	assert.Equal([]string{DEFAULT_SELECT_PLACEHOLDER}, s.Options())
}

func TestSelectInbound(t *testing.T) {

	s := newTestSelect(&recordingSender{}, nil)
	s.Apply(domain.Props{"scene": "relax"})
	require.NotNil(t, s.CurrentOption())
	assert.Equal(t, "relax", *s.CurrentOption())
}

func TestSelectUnknownOutcomeUpdates(t *testing.T) {

	assert := assert.New(t)

	sender := &recordingSender{outcome: domain.SendUnknown}
	s := newTestSelect(sender, nil)

	assert.NoError(s.Execute(context.Background(), command(domain.CommandSelectOption, "relax")))
	assert.Equal(domain.Props{"scene": "relax"}, sender.last())
	require.NotNil(t, s.CurrentOption())
	assert.Equal("relax", *s.CurrentOption())
}

func TestSelectExplicitFailureKeepsOption(t *testing.T) {

	assert := assert.New(t)

	sender := &recordingSender{outcome: domain.SendFailed}
	s := newTestSelect(sender, nil)
	s.Apply(domain.Props{"scene": "off"})

	err := s.Execute(context.Background(), command(domain.CommandSelectOption, "relax"))
	assert.True(errors.Is(err, domain.ErrSendFailed))
	assert.Equal("off", *s.CurrentOption())

	sender.outcome = domain.SendUnknown
	sender.err = errors.New("timeout")
	err = s.Execute(context.Background(), command(domain.CommandSelectOption, "relax"))
	assert.True(errors.Is(err, domain.ErrSendFailed))
	assert.Equal("off", *s.CurrentOption(), "transport error counts as failure")
}

func TestNewEntityFactory(t *testing.T) {

	assert := assert.New(t)

	e, err := New(Config{Device: testDevice(), Attr: "heater", Kind: domain.KindClimate, BathHeater: true}, &recordingSender{}, zap.NewNop())
	assert.NoError(err)
	_, ok := e.(*BathHeater)
	assert.True(ok)

	_, err = New(Config{Device: testDevice(), Attr: "light", Kind: "light"}, &recordingSender{}, zap.NewNop())
	assert.Error(err)

	_, err = New(Config{Device: testDevice(), Kind: domain.KindFan}, &recordingSender{}, zap.NewNop())
	assert.Error(err)
}

func TestParseOptimisticPolicy(t *testing.T) {

	assert := assert.New(t)

	p, err := ParseOptimisticPolicy("unless_failed")
	assert.NoError(err)
	assert.Equal(OptimisticUnlessFailed, p)
	_, err = ParseOptimisticPolicy("sometimes")
	assert.Error(err)

	assert.True(OptimisticAlways.ShouldApply(domain.SendFailed))
	assert.True(OptimisticUnlessFailed.ShouldApply(domain.SendUnknown))
	assert.False(OptimisticUnlessFailed.ShouldApply(domain.SendFailed))
	assert.False(OptimisticNever.ShouldApply(domain.SendSucceeded))
}

func TestSelectConfiguredProp(t *testing.T) {

	assert := assert.New(t)

	sender := &recordingSender{outcome: domain.SendUnknown}
	s := NewSelect(Config{Device: testDevice(), Attr: "scene", Kind: domain.KindSelect, Props: []string{"scene_id"}}, sender, zap.NewNop())
	assert.True(s.Accepts("scene_id"))

	s.Apply(domain.Props{"scene_id": "relax"})
	require.NotNil(t, s.CurrentOption())
	assert.Equal("relax", *s.CurrentOption())

	assert.NoError(s.Execute(context.Background(), command(domain.CommandSelectOption, "off")))
	assert.Equal(domain.Props{"scene_id": "off"}, sender.last())
}
