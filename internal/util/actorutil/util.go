package actorutil

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps a command topic hit to an entity command.
// The generic command topic carries the kind in its payload, every other
// topic names the kind and carries the value.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (*domain.EntityCommand, error) {
	if !domain.EntityKind(cmd.Component).Valid() {
		return nil, fmt.Errorf("%w: component %s", domain.ErrUnsupportedCommand, cmd.Component)
	}
	var kind domain.CommandKind
	value := cmd.Payload
	if cmd.Command == mqtt.MQTT_COMMAND_GENERIC {
		switch cmd.Payload {
		case mqtt.MQTT_PAYLOAD_ON:
			kind = domain.CommandTurnOn
		case mqtt.MQTT_PAYLOAD_OFF:
			kind = domain.CommandTurnOff
		default:
			k, err := domain.ParseCommandKind(cmd.Payload)
			if err != nil {
				return nil, err
			}
			kind = k
		}
		value = ""
	} else {
		k, err := domain.ParseCommandKind(cmd.Command)
		if err != nil {
			return nil, err
		}
		kind = k
	}
	return &domain.EntityCommand{
		DeviceId: cmd.DeviceId,
		Attr:     cmd.Attr,
		Kind:     kind,
		Value:    value,
	}, nil
}
