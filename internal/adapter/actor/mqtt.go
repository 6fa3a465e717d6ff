package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/berfenger/yeelightpro2mqtt/internal/config"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/mqtt"
	"github.com/berfenger/yeelightpro2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTActor talks to the broker for both sides of the bridge: Home Assistant
// state, discovery and commands, and the gateway relay of raw device props.
type MQTTActor struct {
	config         *config.Config
	behavior       actor.Behavior
	stash          *actorutil.Stash
	client         *mqtt.MQTTClient
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	logger         *zap.Logger
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
	// Response builds the reply for ReplyTo from the publish error.
	Response func(error) any
}

type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type onEventStreamMessage struct {
	message any
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")
		root := ctx.ActorSystem().Root
		self := ctx.Self()

		// create MQTT client
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			root.Send(self, MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				root.Send(self, MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")
		root := ctx.ActorSystem().Root
		self := ctx.Self()

		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		// subscribe to eventStream
		if state.eventStream != nil {
			state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
				root.Send(self, onEventStreamMessage{message: value})
			})
		}

		// subscribe to entity commands and relayed device props
		state.client.SubscribeToCommandTopics(func(c pahomqtt.Client, m pahomqtt.Message) {
			if cmd, err := state.client.ParseMQTTCommand(m); err == nil {
				root.Send(self, ParsedCommand{Command: cmd})
				return
			}
			if props, err := state.client.ParseDeviceProps(m); err == nil {
				root.Send(self, domain.DevicePropsEvent{
					DeviceEventMixIn: domain.DeviceEventMixIn{DeviceId: props.DeviceId},
					Props:            props.Props,
				})
			}
		}, func(err error) {
			if err != nil {
				root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				root.Send(self, MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		// init completed, transition to default state
		state.logger.Debug("mqtt@starting subscribed")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case ParsedCommand:
		// route command to parent
		state.logger.Debug("mqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case domain.DevicePropsEvent:
		// relayed device report, route to parent
		state.logger.Debug("mqtt@default DevicePropsEvent", zap.String("device", msg.DeviceId))
		ctx.Send(ctx.Parent(), msg)
	case onEventStreamMessage:
		if ev, ok := msg.message.(domain.EntityStateEvent); ok {
			state.publishEntityState(ctx, ev.Snapshot, nil, nil)
		} else if ev, ok := msg.message.(domain.BridgeStateUpdateEvent); ok {
			state.publishMessage(ctx, state.client.BridgeStateTopic(), bridgePayload(ev.Online), true, nil)
		}
	case domain.PublishEntityStateRequest:
		state.logger.Debug("mqtt@default PublishEntityStateRequest", zap.String("device", msg.Snapshot.DeviceId), zap.String("entity", msg.Snapshot.Attr))
		state.publishEntityState(ctx, msg.Snapshot, actorutil.ForRequest(msg).ReplyTo(ctx), func(err error) any {
			return domain.PublishEntityStateResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
		})
	case domain.SendDevicePropsRequest:
		state.logger.Debug("mqtt@default SendDevicePropsRequest", zap.String("device", msg.DeviceId), zap.Any("props", msg.Props))
		state.sendDeviceProps(ctx, msg.DeviceId, msg.Props, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.Any("message", msg))
		state.publishMessage(ctx, msg.Topic, msg.Payload, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishHADiscovery", zap.Int("entities", len(msg.Entities)))
		err := state.PublishHomeAssistantDiscovery(msg.Bridge, msg.Entities)
		if err != nil {
			state.logger.Error("mqtt@default PublishHADiscovery error", zap.Error(err))
		}
		if replyTo := actorutil.ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			ctx.Send(replyTo, domain.PublishDiscoveryResponse{ActorResponseMixIn: domain.ErrorResponse(err)})
		}
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func entityStateMessages(client *mqtt.MQTTClient, snapshot domain.EntitySnapshot) ([]rawMessage, error) {
	values, err := json.Marshal(snapshot.Values)
	if err != nil {
		return nil, err
	}
	attributes := snapshot.Attributes
	if attributes == nil {
		attributes = map[string]any{}
	}
	attrs, err := json.Marshal(attributes)
	if err != nil {
		return nil, err
	}
	return []rawMessage{
		{
			topic:   client.EntityAttributesTopic(snapshot.Kind, snapshot.DeviceId, snapshot.Attr),
			message: string(attrs),
			retain:  true,
		},
		{
			topic:   client.EntityStateTopic(snapshot.Kind, snapshot.DeviceId, snapshot.Attr),
			message: string(values),
			retain:  true,
		},
	}, nil
}

// publishEntityState sends the attributes without waiting and waits for the
// state publish, which answers replyTo if any.
func (state *MQTTActor) publishEntityState(ctx actor.Context, snapshot domain.EntitySnapshot, replyTo *actor.PID, response func(error) any) {
	msgs, err := entityStateMessages(state.client, snapshot)
	if err != nil {
		state.logger.Error("mqtt@publish could not encode entity state", zap.Error(err))
		if replyTo != nil {
			ctx.Send(replyTo, response(err))
		}
		return
	}
	attrs, st := msgs[0], msgs[1]
	state.client.Publish(attrs.topic, attrs.message, 0, attrs.retain, func(error) {}, 1*time.Second)
	state.publish(ctx, st.topic, st.message, 1, st.retain, replyTo, response)
}

// sendDeviceProps relays a write to the gateway. The broker ack says nothing
// about the device, so a successful publish is an unknown outcome.
func (state *MQTTActor) sendDeviceProps(ctx actor.Context, deviceId string, props domain.Props, replyTo *actor.PID) {
	payload, err := json.Marshal(props)
	if err != nil {
		if replyTo != nil {
			ctx.Send(replyTo, domain.SendDevicePropsResponse{ActorResponseMixIn: domain.ErrorResponse(err), Outcome: domain.SendFailed})
		}
		return
	}
	state.publish(ctx, state.client.DeviceSetTopic(deviceId), string(payload), 1, false, replyTo, func(err error) any {
		outcome := domain.SendUnknown
		if err != nil {
			outcome = domain.SendFailed
		}
		return domain.SendDevicePropsResponse{ActorResponseMixIn: domain.ErrorResponse(err), Outcome: outcome}
	})
}

func (state *MQTTActor) publishMessage(ctx actor.Context, topic, payload string, retain bool, replyTo *actor.PID) {
	state.publish(ctx, topic, payload, 1, retain, replyTo, func(err error) any {
		return domain.PublishMessageResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
	})
}

func (state *MQTTActor) publish(ctx actor.Context, topic, payload string, qos byte, retain bool, replyTo *actor.PID, response func(error) any) {
	state.logger.Sugar().Debugf("mqtt@publish: message publish %s => %s", topic, payload)
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	state.client.Publish(topic, payload, qos, retain, func(err error) {
		root.Send(self, publishResult{ReplyTo: replyTo, Error: err, Response: response})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.PublishResultReceive)
}

func (state *MQTTActor) PublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil && msg.Response != nil {
			ctx.Send(msg.ReplyTo, msg.Response(msg.Error))
		}
		state.behavior.UnbecomeStacked()
		// replayed publishes stack again and re-stash the rest in order
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		state.logger.Error("mqtt@publishing connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) PublishHomeAssistantDiscovery(bridge domain.Device, entities []domain.DiscoveryEntity) error {
	prefix := state.client.DiscoveryPrefix()
	if bridge.Id != "" {
		payload, err := json.Marshal(mqtt.BridgeToHADiscoveryMessage(state.client, bridge))
		if err != nil {
			return err
		}
		state.client.Publish(mqtt.HADiscoveryBridgeTopic(prefix, bridge), payload, 0, true, func(error) {}, 1*time.Second)
	}
	for i := range entities {
		msg := mqtt.EntityToHADiscoveryMessage(state.client, entities[i].Device, entities[i].Snapshot)
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := mqtt.HADiscoveryEntityTopic(prefix, entities[i].Snapshot)
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	return nil
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	if state.client != nil {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
}

func bridgePayload(online bool) string {
	if online {
		return mqtt.MQTT_PAYLOAD_ONLINE
	}
	return mqtt.MQTT_PAYLOAD_OFFLINE
}

// Dummy actor
func NewTestMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger("mqtt", logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

// DummyReceive answers like a connected actor without a broker. Relayed
// writes report an unknown outcome, as with a real gateway.
func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.SendDevicePropsRequest:
		if replyTo := actorutil.ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			ctx.Send(replyTo, domain.SendDevicePropsResponse{Outcome: domain.SendUnknown})
		}
	case domain.DevicePropsEvent:
		ctx.Send(ctx.Parent(), msg)
	case ParsedCommand:
		ctx.Send(ctx.Parent(), msg)
	case domain.PublishEntityStateRequest:
		if replyTo := actorutil.ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			ctx.Send(replyTo, domain.PublishEntityStateResponse{})
		}
	case domain.PublishMessageRequest:
		if replyTo := actorutil.ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			ctx.Send(replyTo, domain.PublishMessageResponse{})
		}
	case domain.PublishDiscoveryRequest:
		if replyTo := actorutil.ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			ctx.Send(replyTo, domain.PublishDiscoveryResponse{})
		}
	}
}
