package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tuupertunut/fanning/internal/config"
	"github.com/tuupertunut/fanning/internal/core/domain"
	"github.com/tuupertunut/fanning/internal/core/service"
	. "github.com/tuupertunut/fanning/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// ControlActor serializes access to the ControlService for the HTTP and
// MQTT surfaces and owns its periodic schedule.
type ControlActor struct {
	ActorWithStates
	stash   *Stash
	config  *config.Config
	service *service.ControlService

	logger *zap.Logger
}

type curvesLoaded struct {
	err error
}

type persistResult struct {
	replyTo  *actor.PID
	response domain.ActorResponse
}

func NewControlActor(config *config.Config, service *service.ControlService, logger *zap.Logger) *ControlActor {
	act := &ControlActor{
		config:  config,
		service: service,
		stash:   &Stash{},
		logger:  ActorLogger(domain.ACTOR_ID_CONTROL, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CStartingState{
		actor: act,
	})
	return act
}

func (state *ControlActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (state *ControlActor) pollInterval() time.Duration {
	return time.Duration(state.config.Control.PollIntervalMillis) * time.Millisecond
}

func (state *ControlActor) storeTimeout() time.Duration {
	return time.Duration(state.config.Control.StoreTimeoutMillis) * time.Millisecond
}

func (state *ControlActor) health(ctx actor.Context) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_CONTROL,
		Healthy: state.service.IsRunning(),
		State:   state.StateName(),
	})
}

func (state *ControlActor) stop() {
	state.service.Stop()
}

// Starting state

type CStartingState struct {
	actor *ControlActor
}

func (state CStartingState) Name() string {
	return "starting"
}

func (state CStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("control@starting started")
		svc := state.actor.service
		timeout := state.actor.storeTimeout()
		NewBackgroundTask(ctx, func() (*curvesLoaded, error) {
			c, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return &curvesLoaded{err: svc.Load(c)}, nil
		}).WithTimeout(timeout).Recover(func(err error) curvesLoaded {
			return curvesLoaded{err: err}
		}).PipeTo(ctx.Self())
	case curvesLoaded:
		switch {
		case msg.err == nil:
			state.actor.logger.Info("control@starting curves loaded", zap.Int("count", len(state.actor.service.Curves())))
		case errors.Is(msg.err, domain.ErrNotFound):
			state.actor.logger.Warn("control@starting stored curves reference unknown hardware", zap.Error(msg.err))
		default:
			state.actor.logger.Error("control@starting could not load curves", zap.Error(msg.err))
		}
		err := state.actor.service.StartPeriodic(state.actor.pollInterval())
		if err != nil && !errors.Is(err, service.ErrAlreadyStarted) {
			panic(err)
		}
		state.actor.Become(CIdleState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		state.actor.health(ctx)
	case *actor.Stopping:
		state.actor.stop()
	case *actor.Restarting:
		state.actor.stop()
	default:
		state.actor.logger.Debug("control@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Idle state

type CIdleState struct {
	actor *ControlActor
}

func (state CIdleState) Name() string {
	return "idle"
}

func (state CIdleState) Receive(ctx actor.Context) {
	svc := state.actor.service
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("control@idle ActorHealthRequest")
		state.actor.health(ctx)
	case domain.GetHardwareRequest:
		ForRequest(msg).Respond(ctx, domain.GetHardwareResponse{
			Root: domain.Snapshot(svc.Backend().Root()),
		})
	case domain.GetCurvesRequest:
		curves := svc.Curves()
		specs := make([]domain.CurveSpec, 0, len(curves))
		for _, c := range curves {
			specs = append(specs, c.Spec())
		}
		ForRequest(msg).Respond(ctx, domain.GetCurvesResponse{
			Curves: specs,
		})
	case domain.PutCurveRequest:
		state.actor.logger.Debug("control@idle PutCurveRequest", zap.String("controller", msg.Spec.ControllerID))
		curve, err := domain.ResolveCurve(svc.Backend().Root(), msg.Spec)
		if err != nil {
			ForRequest(msg).Respond(ctx, domain.PutCurveResponse{
				ControlResponseMixIn: controlError(err),
			})
			return
		}
		replaced := svc.Put(curve)
		ForRequest(msg).Respond(ctx, domain.PutCurveResponse{
			Replaced: replaced,
		})
	case domain.DeleteCurveRequest:
		state.actor.logger.Debug("control@idle DeleteCurveRequest", zap.String("controller", msg.ControllerID))
		removed := svc.RemoveCurveOfController(msg.ControllerID)
		ForRequest(msg).Respond(ctx, domain.DeleteCurveResponse{
			Removed: removed,
		})
	case domain.StoreCurvesRequest:
		state.actor.logger.Debug("control@idle StoreCurvesRequest")
		state.persist(ctx, ForRequest(msg).ReplyTo(ctx), func(c context.Context) domain.ActorResponse {
			return domain.StoreCurvesResponse{
				ControlResponseMixIn: controlError(svc.Store(c)),
			}
		}, func(err error) domain.ActorResponse {
			return domain.StoreCurvesResponse{
				ControlResponseMixIn: controlError(err),
			}
		})
	case domain.LoadCurvesRequest:
		state.actor.logger.Debug("control@idle LoadCurvesRequest")
		state.persist(ctx, ForRequest(msg).ReplyTo(ctx), func(c context.Context) domain.ActorResponse {
			if err := svc.Load(c); err != nil {
				return domain.LoadCurvesResponse{
					ControlResponseMixIn: controlError(err),
				}
			}
			return domain.LoadCurvesResponse{
				Count: len(svc.Curves()),
			}
		}, func(err error) domain.ActorResponse {
			return domain.LoadCurvesResponse{
				ControlResponseMixIn: controlError(err),
			}
		})
	case *actor.Stopping:
		state.actor.stop()
	case *actor.Restarting:
		state.actor.stop()
	default:
		state.actor.logger.Debug("control@idle unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// persist runs a store or load off the mailbox and waits for it in the
// persisting state, so that curve edits never interleave with file access.
func (state CIdleState) persist(ctx actor.Context, replyTo *actor.PID, fn func(context.Context) domain.ActorResponse,
	failed func(error) domain.ActorResponse) {
	timeout := state.actor.storeTimeout()
	NewBackgroundTask(ctx, func() (*persistResult, error) {
		c, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return &persistResult{replyTo: replyTo, response: fn(c)}, nil
	}).WithTimeout(timeout).Recover(func(err error) persistResult {
		return persistResult{replyTo: replyTo, response: failed(err)}
	}).PipeTo(ctx.Self())
	state.actor.BecomeStacked(CPersistingState{
		actor: state.actor,
	})
}

// Persisting state

type CPersistingState struct {
	actor *ControlActor
}

func (state CPersistingState) Name() string {
	return "persisting"
}

func (state CPersistingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case persistResult:
		if msg.response.HasResponseError() {
			state.actor.logger.Error("control@persisting failed", zap.Error(msg.response.GetResponseError()))
		}
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.response)
		}
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		state.actor.health(ctx)
	case *actor.Stopping:
		state.actor.stop()
	case *actor.Restarting:
		state.actor.stop()
	default:
		state.actor.logger.Debug("control@persisting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

func controlError(err error) domain.ControlResponseMixIn {
	return domain.ControlResponseMixIn{
		ActorResponseMixIn: domain.ActorResponseMixIn{
			ResponseError: err,
		},
	}
}
