package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/yeelightpro2mqtt/internal/config"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/device"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/port"
	"github.com/berfenger/yeelightpro2mqtt/internal/metrics"
	"github.com/berfenger/yeelightpro2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const DEFAULT_SEND_TIMEOUT = 5 * time.Second

// DeviceActor owns the session of one device. Every entity of the device is
// mutated from this actor only, including the optimistic updates done while
// a write is pending.
type DeviceActor struct {
	config      config.DeviceConfig
	behavior    actor.Behavior
	session     *device.Session
	transport   *actor.PID
	system      *actor.ActorSystem
	eventStream *eventstream.EventStream
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewDeviceActor(cfg config.DeviceConfig, defaults config.EntitiesConfig, transport *actor.PID,
	eventStream *eventstream.EventStream, m *metrics.Metrics, logger *zap.Logger) (*DeviceActor, error) {
	act := &DeviceActor{
		config:      cfg,
		behavior:    actor.NewBehavior(),
		transport:   transport,
		eventStream: eventStream,
		metrics:     m,
		logger:      actorutil.ActorLogger(domain.DeviceActorId(cfg.Id), logger),
	}
	session, err := device.NewSessionFromConfig(cfg, defaults, m.InstrumentSender(cfg.Id, port.SenderFunc(act.sendProps)),
		act.onReject, act.logger)
	if err != nil {
		return nil, err
	}
	act.session = session
	act.behavior.Become(act.DefaultReceive)
	return act, nil
}

func (state *DeviceActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *DeviceActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("device@default started")
		state.system = ctx.ActorSystem()
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.DeviceActorId(state.config.Id),
			Healthy: true,
			State:   "idle",
		})
	case domain.DevicePropsEvent:
		state.logger.Debug("device@default DevicePropsEvent", zap.Any("props", msg.Props))
		state.metrics.InboundUpdates.WithLabelValues(state.config.Id).Inc()
		for _, change := range state.session.Apply(msg.Props) {
			state.publishChange(change)
		}
	case domain.EntityCommandRequest:
		state.logger.Debug("device@default EntityCommandRequest", zap.Stringer("command", msg.Command))
		change, err := state.session.Execute(context.Background(), msg.Command)
		state.metrics.Commands.WithLabelValues(state.config.Id, string(msg.Command.Kind), metrics.CommandResult(err)).Inc()
		resp := domain.EntityCommandResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
		if err != nil {
			state.logger.Warn("device@default command failed", zap.Stringer("command", msg.Command), zap.Error(err))
		}
		if !errors.Is(err, domain.ErrUnknownEntity) {
			state.publishChange(change)
			resp.Snapshot = &change.Snapshot
		}
		if replyTo := actorutil.ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			ctx.Send(replyTo, resp)
		}
	case domain.GetDeviceStateRequest:
		ctx.Respond(domain.GetDeviceStateResponse{
			Device:    state.session.Device(),
			Entities:  state.session.Snapshots(),
			Transport: state.config.Transport,
		})
	case domain.RepublishStateRequest:
		for _, snapshot := range state.session.Snapshots() {
			state.publishChange(device.Change{Snapshot: snapshot})
		}
		if replyTo := actorutil.ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			ctx.Send(replyTo, domain.RepublishStateResponse{})
		}
	default:
		state.logger.Debug("device@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *DeviceActor) publishChange(change device.Change) {
	state.eventStream.Publish(domain.EntityStateEvent{
		DeviceEventMixIn: domain.DeviceEventMixIn{DeviceId: state.config.Id},
		Snapshot:         change.Snapshot,
	})
	if change.FeaturesChanged() {
		state.metrics.FeatureChanges.WithLabelValues(state.config.Id, change.Snapshot.Attr).Inc()
		state.eventStream.Publish(domain.EntityFeaturesEvent{
			DeviceEventMixIn: domain.DeviceEventMixIn{DeviceId: state.config.Id},
			Snapshot:         change.Snapshot,
			Added:            change.Added,
			Removed:          change.Removed,
		})
	}
}

func (state *DeviceActor) onReject(cmd domain.EntityCommand, reason string) {
	state.metrics.Rejected.WithLabelValues(state.config.Id, string(cmd.Kind)).Inc()
	state.eventStream.Publish(domain.CommandRejectedEvent{
		DeviceEventMixIn: domain.DeviceEventMixIn{DeviceId: state.config.Id},
		Command:          cmd,
		Reason:           reason,
	})
}

func sendTimeout(cfg config.DeviceConfig) time.Duration {
	if cfg.SendTimeoutMillis > 0 {
		return time.Duration(cfg.SendTimeoutMillis) * time.Millisecond
	}
	return DEFAULT_SEND_TIMEOUT
}

// sendProps blocks until the transport answers. The transport never calls
// back into device actors synchronously, so waiting here cannot deadlock.
func (state *DeviceActor) sendProps(ctx context.Context, props domain.Props) (domain.SendOutcome, error) {
	if state.system == nil || state.transport == nil {
		return domain.SendFailed, fmt.Errorf("no transport for %s", state.config.Id)
	}
	timeout := sendTimeout(state.config)
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	res, err := state.system.Root.RequestFuture(state.transport, domain.SendDevicePropsRequest{
		DeviceId: state.config.Id,
		Props:    props,
	}, timeout).Result()
	if err != nil {
		return domain.SendFailed, err
	}
	resp, ok := res.(domain.SendDevicePropsResponse)
	if !ok {
		return domain.SendFailed, fmt.Errorf("unexpected response %T", res)
	}
	if resp.HasResponseError() {
		return domain.SendFailed, resp.GetResponseError()
	}
	return resp.Outcome, nil
}
