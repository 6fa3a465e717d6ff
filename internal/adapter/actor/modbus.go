package actor

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/berfenger/yeelightpro2mqtt/internal/config"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/util/actorutil"
	"github.com/berfenger/yeelightpro2mqtt/pkg/regmap"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// ModbusActor is the device transport of register mapped devices. It polls
// every device and reports raw props to its parent, and writes props on
// SendDevicePropsRequest. One Modbus transaction runs at a time.
type ModbusActor struct {
	behavior           actor.Behavior
	stash              *actorutil.Stash
	client             regmap.DeviceClient
	devices            map[string]regmap.DeviceMap
	deviceIds          []string
	pollInterval       time.Duration
	readDelayAfterSend time.Duration
	timeout            time.Duration
	scheduler          *scheduler.TimerScheduler
	logger             *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

type pollTick struct{}

type pollDevice struct {
	DeviceId string
}

type pollResult struct {
	Props  map[string]domain.Props
	Errors map[string]error
}

func NewModbusActor(client regmap.DeviceClient, devices map[string]regmap.DeviceMap, cfg config.ModbusConfig, logger *zap.Logger) *ModbusActor {
	ids := make([]string, 0, len(devices))
	for id := range devices {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	timeout := time.Duration(cfg.TimeoutMillis) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	act := &ModbusActor{
		client:             client,
		devices:            devices,
		deviceIds:          ids,
		pollInterval:       time.Duration(cfg.PollIntervalMillis) * time.Millisecond,
		readDelayAfterSend: time.Duration(cfg.ReadDelayAfterChangeMillis) * time.Millisecond,
		timeout:            timeout,
		behavior:           actor.NewBehavior(),
		stash:              &actorutil.Stash{},
		logger:             actorutil.ActorLogger(domain.ACTOR_ID_MODBUS, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

// ModbusDevicesFromConfig builds the register maps of every modbus device.
func ModbusDevicesFromConfig(devices []config.DeviceConfig) (map[string]regmap.DeviceMap, error) {
	out := map[string]regmap.DeviceMap{}
	for _, dev := range devices {
		if dev.Transport != config.TRANSPORT_MODBUS {
			continue
		}
		m := regmap.DeviceMap{UnitId: dev.UnitId}
		for _, rc := range dev.Registers {
			reg := regmap.Register{
				Prop:     rc.Prop,
				Address:  rc.Address,
				Type:     regmap.RegType(rc.Type),
				Scale:    rc.Scale,
				Signed:   rc.Signed,
				Writable: rc.Writable,
			}
			if reg.Type == "" {
				reg.Type = regmap.REG_HOLDING
			}
			if len(rc.Enum) > 0 {
				reg.Enum = map[uint16]string{}
				for k, v := range rc.Enum {
					raw, err := strconv.ParseUint(k, 10, 16)
					if err != nil {
						return nil, fmt.Errorf("device %s register %s: invalid enum key %q", dev.Id, rc.Prop, k)
					}
					reg.Enum[uint16(raw)] = v
				}
			}
			if err := reg.Validate(); err != nil {
				return nil, fmt.Errorf("device %s: %w", dev.Id, err)
			}
			m.Registers = append(m.Registers, reg)
		}
		out[dev.Id] = m
	}
	return out, nil
}

func (state *ModbusActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ModbusActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("modbus@starting started")
		if err := state.client.Open(); err != nil {
			panic(err)
		}
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		if state.pollInterval > 0 {
			ctx.Send(ctx.Self(), pollTick{})
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.client.Close()
	default:
		state.logger.Debug("modbus@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("modbus@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MODBUS,
			Healthy: true,
			State:   "idle",
		})
	case pollTick:
		state.logger.Debug("modbus@default: tick")
		state.poll(ctx, state.deviceIds)
		state.scheduler.RequestOnce(state.pollInterval, ctx.Self(), pollTick{})
	case pollDevice:
		state.logger.Debug("modbus@default: pollDevice", zap.String("device", msg.DeviceId))
		state.poll(ctx, []string{msg.DeviceId})
	case domain.SendDevicePropsRequest:
		state.logger.Debug("modbus@default: SendDevicePropsRequest", zap.String("device", msg.DeviceId), zap.Any("props", msg.Props))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		m, ok := state.devices[msg.DeviceId]
		if !ok {
			ctx.Send(sender, domain.SendDevicePropsResponse{
				ActorResponseMixIn: domain.ErrorResponse(fmt.Errorf("%w: %s", domain.ErrUnknownDevice, msg.DeviceId)),
				Outcome:            domain.SendFailed,
			})
			return
		}
		props := msg.Props
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.SendDevicePropsResponse {
			a := state.writeProps(m, props)
			return &a
		}), mapTaskResult[domain.SendDevicePropsResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SendDevicePropsResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
					Outcome:            domain.SendFailed,
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		if state.readDelayAfterSend > 0 {
			state.scheduler.RequestOnce(state.readDelayAfterSend, ctx.Self(), pollDevice{DeviceId: msg.DeviceId})
		}
		state.behavior.BecomeStacked(state.WaitingModbus)
	case *actor.Stopping:
		state.client.Close()
	default:
		state.logger.Debug("modbus@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ModbusActor) WaitingModbus(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("modbus@WaitingModbus backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case pollResult:
		for id, err := range msg.Errors {
			state.logger.Error("modbus@WaitingModbus poll error", zap.String("device", id), zap.Error(err))
		}
		for _, id := range state.deviceIds {
			if props, ok := msg.Props[id]; ok && len(props) > 0 {
				ctx.Send(ctx.Parent(), domain.DevicePropsEvent{
					DeviceEventMixIn: domain.DeviceEventMixIn{DeviceId: id},
					Props:            props,
				})
			}
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.client.Close()
	default:
		state.logger.Debug("modbus@WaitingModbus stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) poll(ctx actor.Context, ids []string) {
	actorutil.NewBackgroundTaskNoError(ctx, func() *pollResult {
		return state.readProps(ids)
	}).Recover(func(err error) pollResult {
		errs := map[string]error{}
		for _, id := range ids {
			errs[id] = err
		}
		return pollResult{Errors: errs}
	}).WithTimeout(state.timeout).PipeTo(ctx.Self())
	state.behavior.BecomeStacked(state.WaitingModbus)
}

func (state *ModbusActor) readProps(ids []string) *pollResult {
	result := &pollResult{
		Props:  map[string]domain.Props{},
		Errors: map[string]error{},
	}
	for _, id := range ids {
		m, ok := state.devices[id]
		if !ok {
			continue
		}
		props, err := state.client.ReadProps(m)
		if err != nil {
			result.Errors[id] = err
			continue
		}
		result.Props[id] = props
	}
	return result
}

func (state *ModbusActor) writeProps(m regmap.DeviceMap, props domain.Props) domain.SendDevicePropsResponse {
	if err := state.client.WriteProps(m, props); err != nil {
		state.logger.Error("modbus write error", zap.Error(err))
		return domain.SendDevicePropsResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
			Outcome:            domain.SendFailed,
		}
	}
	return domain.SendDevicePropsResponse{Outcome: domain.SendSucceeded}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
