package actor

import (
	"testing"
	"time"

	"github.com/berfenger/yeelightpro2mqtt/internal/config"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/mqtt"
	"github.com/berfenger/yeelightpro2mqtt/internal/util"
	"github.com/berfenger/yeelightpro2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	es := &eventstream.EventStream{}

	parent := newParentRecorder(func() actor.Actor { return NewTestMQTTActor(&cfg, es, logger) })
	as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return parent }))
	var pid *actor.PID
	select {
	case pid = <-parent.pids:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "mqtt actor not spawned")
	}

	result, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	health, ok := result.(domain.ActorHealthResponse)
	assert.True(ok)
	assert.True(health.Healthy)

	// relayed writes have no device ack
	result, err = as.Root.RequestFuture(pid, domain.SendDevicePropsRequest{
		DeviceId: "living_room",
		Props:    domain.Props{"position": 40},
	}, 2*time.Second).Result()
	require.NoError(t, err)
	sent, ok := result.(domain.SendDevicePropsResponse)
	assert.True(ok)
	assert.Equal(domain.SendUnknown, sent.Outcome)
	assert.False(sent.HasResponseError())

	as.Root.Send(pid, domain.DevicePropsEvent{
		DeviceEventMixIn: domain.DeviceEventMixIn{DeviceId: "living_room"},
		Props:            domain.Props{"current_position": 10},
	})
	select {
	case ev := <-parent.events:
		assert.Equal("living_room", ev.DeviceId)
		assert.Equal(domain.Props{"current_position": 10}, ev.Props)
	case <-time.After(2 * time.Second):
		assert.Fail("props not routed to parent")
	}

	as.Root.Send(pid, ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		Component: "cover", DeviceId: "living_room", Attr: "curtain", Command: "command", Payload: "open",
	}})
	select {
	case cmd := <-parent.commands:
		assert.Equal("curtain", cmd.Command.Attr)
	case <-time.After(2 * time.Second):
		assert.Fail("command not routed to parent")
	}
}

// newOfflineMQTTActor runs the broker-facing behavior on a client that never
// connected, so every publish completes with an error.
func newOfflineMQTTActor(cfg *config.Config, logger *zap.Logger) *MQTTActor {
	act := NewMQTTActor(cfg, &eventstream.EventStream{}, logger)
	act.client = mqtt.CreateMQTTClient(cfg, mqtt.OptsFromConfig(cfg), nil, nil)
	act.behavior.Become(act.DefaultReceive)
	return act
}

func TestMQTTActorAnswersQueuedRequests(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return newOfflineMQTTActor(&cfg, logger) }))

	// the health request and the second write queue up behind the first publish
	first := as.Root.RequestFuture(pid, domain.SendDevicePropsRequest{DeviceId: "living_room", Props: domain.Props{"position": 40}}, 2*time.Second)
	health := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second)
	second := as.Root.RequestFuture(pid, domain.SendDevicePropsRequest{DeviceId: "living_room", Props: domain.Props{"position": 60}}, 2*time.Second)

	for _, f := range []*actor.Future{first, second} {
		result, err := f.Result()
		require.NoError(t, err)
		sent, ok := result.(domain.SendDevicePropsResponse)
		assert.True(ok)
		// not connected
		assert.Equal(domain.SendFailed, sent.Outcome)
		assert.True(sent.HasResponseError())
	}

	result, err := health.Result()
	require.NoError(t, err)
	_, ok := result.(domain.ActorHealthResponse)
	assert.True(ok)
}

func TestEntityStateMessages(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	client := mqtt.CreateMQTTClient(&cfg, mqtt.OptsFromConfig(&cfg), nil, nil)

	msgs, err := entityStateMessages(client, domain.EntitySnapshot{
		DeviceId: "living_room",
		Attr:     "curtain",
		Kind:     domain.KindCover,
		Values:   map[string]any{"position": 40, "state": "open"},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal("yeelightpro/cover/living_room/curtain/attributes", msgs[0].topic)
	assert.Equal("{}", msgs[0].message)
	assert.Equal("yeelightpro/cover/living_room/curtain/state", msgs[1].topic)
	assert.JSONEq(`{"position":40,"state":"open"}`, msgs[1].message)
	assert.True(msgs[1].retain)
}

func TestBridgePayload(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(mqtt.MQTT_PAYLOAD_ONLINE, bridgePayload(true))
	assert.Equal(mqtt.MQTT_PAYLOAD_OFFLINE, bridgePayload(false))
}
