package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tuupertunut/fanning/internal/core/domain"
	"github.com/tuupertunut/fanning/internal/core/port"
	"github.com/tuupertunut/fanning/internal/metrics"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const controlCycleJobName = "control-cycle"

var ErrAlreadyStarted = errors.New("periodic updates already started")

// ControlService owns the curve collection and drives controllers from it.
// Structural edits of the collection are serialized; update cycles never
// overlap.
type ControlService struct {
	backend     port.HardwareBackend
	storage     port.CurveStorage
	eventStream *eventstream.EventStream
	metrics     *metrics.Metrics
	logger      *zap.Logger

	mu     sync.RWMutex
	curves []*domain.Curve

	cycleMu sync.Mutex

	schedMu   sync.Mutex
	scheduler quartz.Scheduler
	cancel    context.CancelFunc
}

type Option func(*ControlService)

// WithEventStream publishes a domain.CycleCompletedEvent after every cycle.
func WithEventStream(es *eventstream.EventStream) Option {
	return func(s *ControlService) {
		s.eventStream = es
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ControlService) {
		s.metrics = m
	}
}

func NewControlService(backend port.HardwareBackend, storage port.CurveStorage, logger *zap.Logger, opts ...Option) *ControlService {
	s := &ControlService{
		backend: backend,
		storage: storage,
		logger:  logger,
		curves:  []*domain.Curve{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ControlService) Backend() port.HardwareBackend {
	return s.backend
}

// Curves returns a snapshot of the collection in order.
func (s *ControlService) Curves() []*domain.Curve {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.Curve{}, s.curves...)
}

// Add appends a curve. A second curve for the same controller is kept but
// shadowed by the first one.
func (s *ControlService) Add(curve *domain.Curve) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.curves = append(s.curves, curve)
	s.curveCountChanged()
}

// Put replaces the first curve of the same controller in place, or appends.
func (s *ControlService) Put(curve *domain.Curve) (replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.curveCountChanged()
	for i, c := range s.curves {
		if sameController(c.Controller(), curve.Controller()) {
			s.curves[i] = curve
			return true
		}
	}
	s.curves = append(s.curves, curve)
	return false
}

func (s *ControlService) Remove(curve *domain.Curve) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.curves {
		if c == curve {
			s.curves = append(s.curves[:i], s.curves[i+1:]...)
			s.curveCountChanged()
			return true
		}
	}
	return false
}

// RemoveCurveOfController removes every curve driving the given controller.
func (s *ControlService) RemoveCurveOfController(controllerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.curves[:0]
	removed := false
	for _, c := range s.curves {
		if c.Controller() != nil && c.Controller().ID() == controllerID {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(s.curves); i++ {
		s.curves[i] = nil
	}
	s.curves = kept
	s.curveCountChanged()
	return removed
}

func (s *ControlService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.curves = []*domain.Curve{}
	s.curveCountChanged()
}

// FindCurveOfController returns the first curve in collection order whose
// controller is c.
func (s *ControlService) FindCurveOfController(c *domain.Controller) (*domain.Curve, bool) {
	if c == nil {
		return nil, false
	}
	return s.FindCurveOfControllerID(c.ID())
}

func (s *ControlService) FindCurveOfControllerID(controllerID string) (*domain.Curve, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, curve := range s.curves {
		if curve.Controller() != nil && curve.Controller().ID() == controllerID {
			return curve, true
		}
	}
	return nil, false
}

// Load replaces the collection with the stored curves. On failure the
// collection is left untouched.
func (s *ControlService) Load(ctx context.Context) error {
	curves, err := s.storage.Load(ctx)
	if err != nil {
		return fmt.Errorf("load curves: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.curves = append([]*domain.Curve{}, curves...)
	s.curveCountChanged()
	return nil
}

func (s *ControlService) Store(ctx context.Context) error {
	if err := s.storage.Store(ctx, s.Curves()); err != nil {
		return fmt.Errorf("store curves: %w", err)
	}
	return nil
}

// RunCycleOnce refreshes the backend and commands every controller from its
// curve, clearing controllers that have no curve or an empty one. A failed
// refresh leaves all controllers as they were.
func (s *ControlService) RunCycleOnce(ctx context.Context) (err error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("update cycle panic: %v", r)
		}
		s.cycleCompleted(time.Since(start), err)
	}()

	if err := s.backend.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh hardware: %w", err)
	}

	for _, controller := range domain.AllControllers(s.backend.Root()) {
		curve, ok := s.FindCurveOfController(controller)
		if !ok {
			controller.ClearCommandedValue()
			continue
		}
		value, ok := curve.Evaluate(curve.Sensor().Value())
		if !ok {
			controller.ClearCommandedValue()
			continue
		}
		controller.SetCommandedValue(value)
	}
	return nil
}

// StartPeriodic runs an update cycle every period until Stop is called.
// A failing cycle is logged and does not stop the schedule.
func (s *ControlService) StartPeriodic(period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("invalid update period %s", period)
	}

	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	if s.scheduler != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	sched := quartz.NewStdScheduler()
	sched.Start(ctx)

	jobDetail := quartz.NewJobDetail(&controlCycleJob{service: s}, quartz.NewJobKey(controlCycleJobName))
	if err := sched.ScheduleJob(jobDetail, quartz.NewSimpleTrigger(period)); err != nil {
		sched.Stop()
		cancel()
		return fmt.Errorf("schedule update cycle: %w", err)
	}

	s.logger.Info("periodic updates started", zap.Duration("period", period))
	s.scheduler = sched
	s.cancel = cancel
	return nil
}

// Stop halts scheduling. A cycle in progress is allowed to finish.
func (s *ControlService) Stop() {
	s.schedMu.Lock()
	sched, cancel := s.scheduler, s.cancel
	s.scheduler, s.cancel = nil, nil
	s.schedMu.Unlock()

	if sched == nil {
		return
	}
	sched.Stop()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	sched.Wait(waitCtx)
	waitCancel()
	cancel()

	// a cycle started just before the scheduler stopped holds cycleMu
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	s.logger.Info("periodic updates stopped")
}

func (s *ControlService) IsRunning() bool {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	return s.scheduler != nil
}

func (s *ControlService) cycleCompleted(d time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("update cycle report panic", zap.Any("reason", r))
		}
	}()
	if err != nil {
		s.logger.Warn("update cycle failed", zap.Error(err))
	}

	root := s.backend.Root()
	event := domain.CycleCompletedEvent{
		Duration: d,
		Err:      err,
	}
	for _, sensor := range domain.AllSensors(root) {
		event.Sensors = append(event.Sensors, domain.SensorReading{ID: sensor.ID(), Value: sensor.Value()})
	}
	for _, controller := range domain.AllControllers(root) {
		v, ok := controller.CommandedValue()
		event.Controllers = append(event.Controllers, domain.ControllerReading{ID: controller.ID(), Value: v, Controlled: ok})
	}

	if s.metrics != nil {
		s.metrics.ObserveCycle(d, err)
		for _, r := range event.Sensors {
			s.metrics.SetSensorValue(r.ID, r.Value)
		}
		for _, r := range event.Controllers {
			s.metrics.SetCommandedValue(r.ID, r.Value, r.Controlled)
		}
	}
	if s.eventStream != nil {
		s.eventStream.Publish(event)
	}
}

// must be called with mu held
func (s *ControlService) curveCountChanged() {
	if s.metrics != nil {
		s.metrics.SetCurveCount(len(s.curves))
	}
}

func sameController(a, b *domain.Controller) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a == b || a.ID() == b.ID()
}

type controlCycleJob struct {
	service *ControlService
}

func (j *controlCycleJob) Execute(ctx context.Context) error {
	// errors are reported through cycleCompleted
	_ = j.service.RunCycleOnce(ctx)
	return nil
}

func (j *controlCycleJob) Description() string {
	return controlCycleJobName
}

var _ quartz.Job = (*controlCycleJob)(nil)
