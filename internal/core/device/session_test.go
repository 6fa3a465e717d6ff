package device

import (
	"context"
	"errors"
	"testing"

	"github.com/berfenger/yeelightpro2mqtt/internal/config"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	sent    []domain.Props
	outcome domain.SendOutcome
}

func (s *recordingSender) SendProps(_ context.Context, props domain.Props) (domain.SendOutcome, error) {
	s.sent = append(s.sent, props.Clone())
	return s.outcome, nil
}

func testDeviceConfig() config.DeviceConfig {
	return config.DeviceConfig{
		Id:   "living_room",
		Name: "Living room",
		Entities: []config.EntityConfig{
			{Attr: "curtain", Kind: "cover"},
			{Attr: "fan_speed", Kind: "fan"},
			{Attr: "scene", Kind: "select", Options: map[string]string{"0": "off", "1": "relax"}},
		},
	}
}

func newTestSession(t *testing.T, sender *recordingSender) *Session {
	s, err := NewSessionFromConfig(testDeviceConfig(), config.EntitiesConfig{}, sender, nil, zap.NewNop())
	require.NoError(t, err)
	return s
}

func changedAttrs(changes []Change) []string {
	var attrs []string
	for _, c := range changes {
		attrs = append(attrs, c.Snapshot.Attr)
	}
	return attrs
}

func TestSessionBuildFromConfig(t *testing.T) {

	assert := assert.New(t)

	s := newTestSession(t, &recordingSender{})
	assert.Equal("Yeelight", s.Device().Manufacturer)
	assert.Equal([]string{"curtain", "fan_speed", "scene"}, changedAttrs(changesOf(s.Snapshots())))

	fan, ok := s.Entity("fan_speed")
	require.True(t, ok)
	assert.Equal(domain.KindFan, fan.Kind())

	_, ok = s.Entity("missing")
	assert.False(ok)
}

func TestSessionBuildRejectsBadConfig(t *testing.T) {

	assert := assert.New(t)

	cfg := testDeviceConfig()
	cfg.Entities[0].Optimistic = "sometimes"
	_, err := NewSessionFromConfig(cfg, config.EntitiesConfig{}, &recordingSender{}, nil, zap.NewNop())
	assert.Error(err)

	cfg = testDeviceConfig()
	cfg.Entities = append(cfg.Entities, config.EntityConfig{Attr: "curtain", Kind: "cover"})
	_, err = NewSessionFromConfig(cfg, config.EntitiesConfig{}, &recordingSender{}, nil, zap.NewNop())
	assert.Error(err, "duplicated attr")

	cfg = testDeviceConfig()
	cfg.Entities[0].Kind = "light"
	_, err = NewSessionFromConfig(cfg, config.EntitiesConfig{}, &recordingSender{}, nil, zap.NewNop())
	assert.Error(err, "unknown kind")
}

func TestSessionApplyRoutesByKey(t *testing.T) {

	assert := assert.New(t)

	s := newTestSession(t, &recordingSender{})

	changes := s.Apply(domain.Props{"current_position": 40, "fan_speed": 2})
	assert.Equal([]string{"curtain", "fan_speed"}, changedAttrs(changes))
	assert.Equal(40, changes[0].Snapshot.Values[domain.VALUE_POSITION])
	assert.Equal(66, changes[1].Snapshot.Values[domain.VALUE_PERCENTAGE])

	assert.Empty(s.Apply(domain.Props{"unrelated": 1}), "ignored keys")
}

func TestSessionApplyReportsTiltDiscovery(t *testing.T) {

	assert := assert.New(t)

	s := newTestSession(t, &recordingSender{})

	changes := s.Apply(domain.Props{"current_position": 0})
	require.Len(t, changes, 1)
	assert.False(changes[0].FeaturesChanged())
	assert.Equal(true, changes[0].Snapshot.Values[domain.VALUE_IS_CLOSED])

	changes = s.Apply(domain.Props{"current_angle": 90})
	require.Len(t, changes, 1)
	assert.True(changes[0].FeaturesChanged())
	assert.Equal(domain.FeaturesTilt, changes[0].Added)
	assert.Equal(domain.FeatureSet(0), changes[0].Removed)
	assert.Equal(50, changes[0].Snapshot.Values[domain.VALUE_TILT_POSITION])

	changes = s.Apply(domain.Props{"current_angle": 180})
	require.Len(t, changes, 1)
	assert.False(changes[0].FeaturesChanged(), "reported only once")
}

func TestSessionExecute(t *testing.T) {

	assert := assert.New(t)

	sender := &recordingSender{}
	s := newTestSession(t, sender)
	s.Apply(domain.Props{"current_angle": 90})

	change, err := s.Execute(context.Background(), domain.EntityCommand{
		DeviceId: "living_room", Attr: "curtain", Kind: domain.CommandSetTiltPosition, Value: "50"})
	assert.NoError(err)
	require.Len(t, sender.sent, 1)
	assert.Equal(domain.Props{"target_angle": 90}, sender.sent[0])
	assert.Equal("curtain", change.Snapshot.Attr)

	change, err = s.Execute(context.Background(), domain.EntityCommand{
		DeviceId: "living_room", Attr: "fan_speed", Kind: domain.CommandTurnOn})
	assert.NoError(err)
	assert.Equal(domain.Props{"fan_speed": 3}, sender.sent[1])
	assert.Equal(100, change.Snapshot.Values[domain.VALUE_PERCENTAGE], "fans are optimistic")

	_, err = s.Execute(context.Background(), domain.EntityCommand{
		DeviceId: "living_room", Attr: "missing", Kind: domain.CommandTurnOn})
	assert.True(errors.Is(err, domain.ErrUnknownEntity))
	assert.Len(sender.sent, 2)
}

func TestSessionRejectHook(t *testing.T) {

	assert := assert.New(t)

	cfg := testDeviceConfig()
	cfg.Entities = append(cfg.Entities, config.EntityConfig{Attr: "heater", Kind: "climate", BathHeater: true})
	var rejected []domain.EntityCommand
	hook := entity.RejectHook(func(cmd domain.EntityCommand, _ string) {
		rejected = append(rejected, cmd)
	})
	sender := &recordingSender{}
	s, err := NewSessionFromConfig(cfg, config.EntitiesConfig{}, sender, hook, zap.NewNop())
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), domain.EntityCommand{
		DeviceId: "living_room", Attr: "heater", Kind: domain.CommandSetHVACMode, Value: "cool"})
	assert.NoError(err)
	assert.Len(rejected, 1)
	assert.Empty(sender.sent)
}

func TestSessionAngleRoutingWithTwoCovers(t *testing.T) {

	assert := assert.New(t)

	cfg := config.DeviceConfig{
		Id: "bedroom",
		Entities: []config.EntityConfig{
			{Attr: "blind", Kind: "cover", Props: []string{"current_position", "current_angle"}},
			{Attr: "sheer", Kind: "cover", Props: []string{"current_position"}},
		},
	}
	s, err := NewSessionFromConfig(cfg, config.EntitiesConfig{}, &recordingSender{}, nil, zap.NewNop())
	require.NoError(t, err)

	changes := s.Apply(domain.Props{"current_angle": 90})
	assert.Equal([]string{"blind"}, changedAttrs(changes), "angle goes to the subscribed cover only")

	sheer, ok := s.Entity("sheer")
	require.True(t, ok)
	assert.False(sheer.Features().Has(domain.FeaturesTilt))

	// a position report reaching both covers leaves the unsubscribed one without tilt
	s.Apply(domain.Props{"current_position": 50, "target_angle": 20})
	assert.False(sheer.Features().Has(domain.FeaturesTilt))
	assert.Nil(sheer.Snapshot().Values[domain.VALUE_TILT_POSITION])
}

func changesOf(snapshots []domain.EntitySnapshot) []Change {
	out := make([]Change, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, Change{Snapshot: s})
	}
	return out
}
