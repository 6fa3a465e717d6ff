package actor

import (
	"errors"
	"testing"
	"time"

	adactor "github.com/berfenger/yeelightpro2mqtt/internal/adapter/actor"
	"github.com/berfenger/yeelightpro2mqtt/internal/config"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/metrics"
	"github.com/berfenger/yeelightpro2mqtt/internal/mqtt"
	"github.com/berfenger/yeelightpro2mqtt/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func spawnMaster(t *testing.T, cfg config.Config) (*actor.ActorSystem, *actor.PID, chan any) {
	as := actor.NewActorSystem()
	logger := zap.Must(zap.NewDevelopment())
	es := &eventstream.EventStream{}
	events := make(chan any, 64)
	es.Subscribe(func(evt any) {
		events <- evt
	})

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, nil, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, es, metrics.New(), logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	return as, pid, events
}

func TestMasterActor(t *testing.T) {

	assert := assert.New(t)

	as, pid, _ := spawnMaster(t, util.LoadTestConfig())
	defer as.Shutdown()

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	require.NoError(t, err)
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(ok)
	assert.True(healthResp.Healthy, "healthy is true")

	res, err = as.Root.RequestFuture(pid, domain.GetDevicesRequest{}, time.Second).Result()
	require.NoError(t, err)
	devices, ok := res.(domain.GetDevicesResponse)
	require.True(t, ok)
	assert.Len(devices.Devices, 2)
	assert.Equal("living_room", devices.Devices[0].Id)
}

func TestMasterActorRouting(t *testing.T) {

	assert := assert.New(t)

	as, pid, events := spawnMaster(t, util.LoadTestConfig())
	defer as.Shutdown()

	// command through the API path
	res, err := as.Root.RequestFuture(pid, domain.EntityCommandRequest{Command: domain.EntityCommand{
		DeviceId: "living_room", Attr: "ceiling_fan", Kind: domain.CommandSetPercentage, Value: "100",
	}}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.EntityCommandResponse)
	require.True(t, ok)
	assert.False(resp.HasResponseError())
	require.NotNil(t, resp.Snapshot)
	assert.Equal(100, resp.Snapshot.Values[domain.VALUE_PERCENTAGE])

	res, err = as.Root.RequestFuture(pid, domain.EntityCommandRequest{Command: domain.EntityCommand{
		DeviceId: "garage", Attr: "door", Kind: domain.CommandOpen,
	}}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok = res.(domain.EntityCommandResponse)
	require.True(t, ok)
	assert.True(errors.Is(resp.GetResponseError(), domain.ErrUnknownDevice))

	// command through the MQTT path
	as.Root.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		Component: "fan", DeviceId: "living_room", Attr: "ceiling_fan", Command: "command", Payload: "off",
	}})
	for {
		ev := nextEvent[domain.EntityStateEvent](t, events)
		if ev.Snapshot.Attr == "ceiling_fan" && ev.Snapshot.Values[domain.VALUE_IS_ON] == false {
			break
		}
	}

	// relayed device report
	as.Root.Send(pid, domain.DevicePropsEvent{
		DeviceEventMixIn: domain.DeviceEventMixIn{DeviceId: "living_room"},
		Props:            domain.Props{"current_position": 30},
	})
	ev := nextEvent[domain.EntityStateEvent](t, events)
	assert.Equal("curtain", ev.Snapshot.Attr)

	res, err = as.Root.RequestFuture(pid, domain.GetDeviceStateRequest{DeviceId: "living_room"}, time.Second).Result()
	require.NoError(t, err)
	state, ok := res.(domain.GetDeviceStateResponse)
	require.True(t, ok)
	for _, snapshot := range state.Entities {
		if snapshot.Attr == "curtain" {
			assert.Equal(30, snapshot.Values[domain.VALUE_POSITION])
		}
	}

	res, err = as.Root.RequestFuture(pid, domain.GetDeviceStateRequest{DeviceId: "garage"}, time.Second).Result()
	require.NoError(t, err)
	state, ok = res.(domain.GetDeviceStateResponse)
	require.True(t, ok)
	assert.True(errors.Is(state.GetResponseError(), domain.ErrUnknownDevice))
}

func TestMasterActorDiscoveryRepublishesState(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	cfg.MQTT.HADiscoveryEnable = true
	as, pid, events := spawnMaster(t, cfg)
	defer as.Shutdown()

	// discovery makes every device publish all of its entities once
	attrs := map[string]bool{}
	for len(attrs) < 3 {
		ev := nextEvent[domain.EntityStateEvent](t, events)
		attrs[ev.DeviceId+"/"+ev.Snapshot.Attr] = true
	}
	assert.True(attrs["living_room/curtain"])
	assert.True(attrs["living_room/ceiling_fan"])
	assert.True(attrs["bathroom/heater"])

	res, err := as.Root.RequestFuture(pid, domain.RepublishDiscoveryRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.IsType(domain.RepublishDiscoveryResponse{}, res)
}

func TestMasterHealthTimeoutOutlastsWrites(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	master := NewMasterOfPuppetsActor(cfg, nil, nil, nil, nil, zap.NewNop())
	assert.Greater(master.healthTimeout(), DEFAULT_SEND_TIMEOUT)

	cfg.Devices[1].SendTimeoutMillis = 8000
	master = NewMasterOfPuppetsActor(cfg, nil, nil, nil, nil, zap.NewNop())
	assert.Greater(master.healthTimeout(), 8*time.Second)
}
