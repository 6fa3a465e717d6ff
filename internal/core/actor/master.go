package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/yeelightpro2mqtt/internal/adapter/actor"
	"github.com/berfenger/yeelightpro2mqtt/internal/config"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/device"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/metrics"
	. "github.com/berfenger/yeelightpro2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type ModbusActorProvider func() *adactor.ModbusActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck  healthCheckResult
	eventStream         *eventstream.EventStream
	modbusActor         *actor.PID
	mqttActor           *actor.PID
	haDiscoveryActor    *actor.PID
	deviceActors        map[string]*actor.PID
	modbusActorProvider ModbusActorProvider
	mqttActorProvider   MQTTActorProvider
	metrics             *metrics.Metrics
	logger              *zap.Logger
}

type healthCheckResult struct {
	expected  map[string]bool
	healthy   map[string]bool
	received  int
	respondTo *actor.PID
}

// NewMasterOfPuppetsActor supervises the transports, one actor per configured
// device and discovery. The event stream is shared by all of them.
func NewMasterOfPuppetsActor(config config.Config, modbusActorProvider ModbusActorProvider, mqttActorProvider MQTTActorProvider,
	eventStream *eventstream.EventStream, m *metrics.Metrics, logger *zap.Logger) *MasterOfPuppetsActor {
	if eventStream == nil {
		eventStream = &eventstream.EventStream{}
	}
	if m == nil {
		m = metrics.New()
	}
	act := &MasterOfPuppetsActor{
		config:              config,
		behavior:            actor.NewBehavior(),
		stash:               &Stash{},
		logger:              ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:         eventStream,
		deviceActors:        map[string]*actor.PID{},
		modbusActorProvider: modbusActorProvider,
		mqttActorProvider:   mqttActorProvider,
		metrics:             m,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start Modbus child, only when some device talks modbus
		if state.config.HasModbusDevices() {
			modbusActorPID, err := state.startModbusActor(ctx)
			if err != nil {
				panic(err)
			}
			state.modbusActor = modbusActorPID
		}

		// start one child per device
		for _, devCfg := range state.config.Devices {
			pid, err := state.startDeviceActor(ctx, devCfg)
			if err != nil {
				panic(err)
			}
			state.deviceActors[devCfg.Id] = pid
		}

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			pid, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
			state.haDiscoveryActor = pid
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		for id, pid := range state.children() {
			state.currentHealthCheck.expected[id] = true
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, state.healthTimeout()), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(state.healthTimeout() + 500*time.Millisecond)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to the device actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command == nil {
			return
		}
		cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
		if err != nil {
			state.logger.Warn("master@default invalid command", zap.Any("command", msg.Command), zap.Error(err))
			return
		}
		if pid, ok := state.deviceActors[cmd.DeviceId]; ok {
			ctx.Send(pid, domain.EntityCommandRequest{Command: *cmd})
		} else {
			state.logger.Warn("master@default command for unknown device", zap.String("device", cmd.DeviceId))
		}
	case domain.DevicePropsEvent:
		if pid, ok := state.deviceActors[msg.DeviceId]; ok {
			ctx.Send(pid, msg)
		} else {
			state.logger.Debug("master@default props for unknown device", zap.String("device", msg.DeviceId))
		}
	case domain.EntityCommandRequest:
		if pid, ok := state.deviceActors[msg.Command.DeviceId]; ok {
			ctx.Forward(pid)
		} else {
			ForRequest(msg).Respond(ctx, domain.EntityCommandResponse{
				ActorResponseMixIn: domain.ErrorResponse(fmt.Errorf("%w: %s", domain.ErrUnknownDevice, msg.Command.DeviceId)),
			})
		}
	case domain.GetDeviceStateRequest:
		if pid, ok := state.deviceActors[msg.DeviceId]; ok {
			ctx.Forward(pid)
		} else {
			ForRequest(msg).Respond(ctx, domain.GetDeviceStateResponse{
				ActorResponseMixIn: domain.ErrorResponse(fmt.Errorf("%w: %s", domain.ErrUnknownDevice, msg.DeviceId)),
			})
		}
	case domain.GetDevicesRequest:
		devices := make([]domain.Device, 0, len(state.config.Devices))
		for _, devCfg := range state.config.Devices {
			devices = append(devices, device.DeviceFromConfig(devCfg))
		}
		ForRequest(msg).Respond(ctx, domain.GetDevicesResponse{Devices: devices})
	case domain.RepublishDiscoveryRequest:
		state.logger.Debug("master@default RepublishDiscoveryRequest")
		if state.haDiscoveryActor != nil {
			ctx.Forward(state.haDiscoveryActor)
			return
		}
		// without discovery, refresh the state topics only
		for _, pid := range state.deviceActors {
			ctx.Send(pid, domain.RepublishStateRequest{})
		}
		ForRequest(msg).Respond(ctx, domain.RepublishDiscoveryResponse{})
	case *actor.Terminated:
		// if some transport fails on boot, terminate
		if state.modbusActor != nil && msg.Who.Id == state.modbusActor.Id {
			state.logger.Error("master@default modbus error")
			panic(errors.New("modbus terminated"))
		}
		if msg.Who.Id == state.mqttActor.Id {
			state.logger.Error("master@default mqtt error")
			panic(errors.New("mqtt terminated"))
		}
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx, state.logger)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.received++
		if msg.Healthy {
			state.currentHealthCheck.healthy[msg.Id] = true
		}
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx, state.logger)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// healthTimeout outlasts the slowest device write: a device actor answers
// only once its pending send settles.
func (state *MasterOfPuppetsActor) healthTimeout() time.Duration {
	timeout := 500 * time.Millisecond
	for _, dev := range state.config.Devices {
		timeout = max(timeout, sendTimeout(dev)+500*time.Millisecond)
	}
	return timeout
}

// children lists the actors taking part in the health check, keyed by the id
// they answer with.
func (state *MasterOfPuppetsActor) children() map[string]*actor.PID {
	children := map[string]*actor.PID{
		domain.ACTOR_ID_MQTT: state.mqttActor,
	}
	if state.modbusActor != nil {
		children[domain.ACTOR_ID_MODBUS] = state.modbusActor
	}
	for id, pid := range state.deviceActors {
		children[domain.DeviceActorId(id)] = pid
	}
	return children
}

// transportFor picks the actor writing props for a device.
func (state *MasterOfPuppetsActor) transportFor(devCfg config.DeviceConfig) *actor.PID {
	if devCfg.Transport == config.TRANSPORT_MODBUS {
		return state.modbusActor
	}
	return state.mqttActor
}

func (state *MasterOfPuppetsActor) startModbusActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	modbusProps := actor.PropsFromProducer(func() actor.Actor {
		return state.modbusActorProvider()
	}, actor.WithSupervisor(supervisor))
	modbusActorPID, err := ctx.SpawnNamed(modbusProps, domain.ACTOR_ID_MODBUS)
	if err != nil {
		return nil, err
	}

	return modbusActorPID, nil
}

func (state *MasterOfPuppetsActor) startDeviceActor(ctx actor.Context, devCfg config.DeviceConfig) (*actor.PID, error) {

	// fail early on a bad device, the producer cannot return errors
	if _, err := NewDeviceActor(devCfg, state.config.Entities, nil, state.eventStream, state.metrics, state.logger); err != nil {
		return nil, err
	}

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(3, 10*time.Second, decider)

	transport := state.transportFor(devCfg)
	deviceProps := actor.PropsFromProducer(func() actor.Actor {
		act, err := NewDeviceActor(devCfg, state.config.Entities, transport, state.eventStream, state.metrics, state.logger)
		if err != nil {
			panic(err)
		}
		return act
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(deviceProps, domain.DeviceActorId(devCfg.Id))
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.deviceActors, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *healthCheckResult) reset() {
	state.expected = map[string]bool{}
	state.healthy = map[string]bool{}
	state.received = 0
	state.respondTo = nil
}

func (state *healthCheckResult) allReceived() bool {
	return state.received >= len(state.expected)
}

func (state *healthCheckResult) allHealthy() bool {
	for id := range state.expected {
		if !state.healthy[id] {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context, logger *zap.Logger) {
	healthy := state.allHealthy()
	if !healthy {
		for id := range state.expected {
			if !state.healthy[id] {
				logger.Warn("master@healthcheck unhealthy child", zap.String("child", id))
			}
		}
	}
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: healthy,
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
