package actorutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tuupertunut/fanning/internal/core/domain"
	"github.com/tuupertunut/fanning/internal/mqtt"

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
	case zap.ErrorLevel, zap.PanicLevel, zap.FatalLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

type curveCommandPayload struct {
	SensorID     string           `json:"sensor"`
	ChangePoints []domain.Mapping `json:"changePoints"`
}

// ParsedMQTTCommandToCommand maps a curve command received over MQTT to a
// control request.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ControlRequest, error) {
	switch cmd.Command {
	case mqtt.COMMAND_CURVE_SET:
		var payload curveCommandPayload
		if err := json.Unmarshal([]byte(cmd.Payload), &payload); err != nil {
			return nil, fmt.Errorf("curve %s: %w: %w", cmd.DeviceId, domain.ErrMalformedData, err)
		}
		return domain.PutCurveRequest{
			Spec: domain.CurveSpec{
				SensorID:     payload.SensorID,
				ControllerID: cmd.DeviceId,
				ChangePoints: payload.ChangePoints,
			},
		}, nil
	case mqtt.COMMAND_CURVE_CLEAR:
		return domain.DeleteCurveRequest{
			ControllerID: cmd.DeviceId,
		}, nil
	case mqtt.COMMAND_CURVES_STORE:
		return domain.StoreCurvesRequest{}, nil
	}
	return nil, fmt.Errorf("unknown command %q", cmd.Command)
}
