package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/yeelightpro2mqtt/internal/config"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// HADiscoveryActor announces the bridge and every entity to Home Assistant
// once MQTT is up, then keeps discovery in sync with capability changes.
type HADiscoveryActor struct {
	config         *config.Config
	behavior       actor.Behavior
	stash          *actorutil.Stash
	mqttActor      *actor.PID
	deviceActors   map[string]*actor.PID
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	devices        map[string]domain.Device
	pending        int
	gathered       []domain.DiscoveryEntity
	logger         *zap.Logger
}

type onDiscoveryEvent struct {
	event domain.EntityFeaturesEvent
}

type gatherDone struct {
}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, deviceActors map[string]*actor.PID,
	eventStream *eventstream.EventStream, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:       config,
		mqttActor:    mqttActor,
		deviceActors: deviceActors,
		eventStream:  eventStream,
		devices:      map[string]domain.Device{},
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")
		// Check MQTT actor healthy
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 5*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			panic(errors.New("MQTT Actor is not healthy"))
		}
		if state.eventStream != nil && state.eventStreamSub == nil {
			root := ctx.ActorSystem().Root
			self := ctx.Self()
			state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
				if ev, ok := value.(domain.EntityFeaturesEvent); ok {
					root.Send(self, onDiscoveryEvent{event: ev})
				}
			})
		}
		state.gather(ctx)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// gather asks every device actor for its snapshots. Devices failing to answer
// are left out of this round.
func (state *HADiscoveryActor) gather(ctx actor.Context) {
	state.pending = len(state.deviceActors)
	state.gathered = nil
	for id, pid := range state.deviceActors {
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.GetDeviceStateRequest{DeviceId: id}, 2*time.Second), func(err error) any {
			return domain.GetDeviceStateResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
		})
	}
	state.behavior.Become(state.GatheringReceive)
	if state.pending == 0 {
		ctx.Send(ctx.Self(), gatherDone{})
	}
}

func (state *HADiscoveryActor) GatheringReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDeviceStateResponse:
		state.pending--
		if msg.HasResponseError() {
			state.logger.Warn("hadiscovery@gathering device did not answer", zap.Error(msg.GetResponseError()))
		} else {
			dev := msg.Device
			dev.ViaDevice = domain.BridgeDevice(state.config.MQTT.BaseTopic).Id
			state.devices[dev.Id] = dev
			for _, snapshot := range msg.Entities {
				state.gathered = append(state.gathered, domain.DiscoveryEntity{Device: dev, Snapshot: snapshot})
			}
		}
		if state.pending <= 0 {
			state.publish(ctx)
		}
	case gatherDone:
		state.publish(ctx)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("hadiscovery@gathering: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// publish sends the gathered discovery, then has every device publish its
// state so Home Assistant picks it up on the fresh entities.
func (state *HADiscoveryActor) publish(ctx actor.Context) {
	state.logger.Info("hadiscovery: publishing discovery", zap.Int("entities", len(state.gathered)))
	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
		Bridge:   domain.BridgeDevice(state.config.MQTT.BaseTopic),
		Entities: state.gathered,
	})
	for _, pid := range state.deviceActors {
		ctx.Send(pid, domain.RepublishStateRequest{})
	}
	state.gathered = nil
	state.behavior.Become(state.ReadyReceive)
	state.stash.UnstashAll(ctx)
}

func (state *HADiscoveryActor) ReadyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   "idle",
		})
	case onDiscoveryEvent:
		dev, ok := state.devices[msg.event.DeviceId]
		if !ok {
			state.logger.Warn("hadiscovery@ready features changed on unknown device", zap.String("device", msg.event.DeviceId))
			return
		}
		state.logger.Info("hadiscovery@ready republishing entity", zap.String("device", dev.Id),
			zap.String("entity", msg.event.Snapshot.Attr), zap.Strings("added", msg.event.Added.Names()))
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Entities: []domain.DiscoveryEntity{{Device: dev, Snapshot: msg.event.Snapshot}},
		})
	case domain.RepublishDiscoveryRequest:
		state.logger.Debug("hadiscovery@ready RepublishDiscoveryRequest")
		if replyTo := actorutil.ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			ctx.Send(replyTo, domain.RepublishDiscoveryResponse{})
		}
		state.gather(ctx)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("hadiscovery@ready: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) stop() {
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
}
