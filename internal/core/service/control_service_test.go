package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tuupertunut/fanning/internal/adapter/hardware"
	"github.com/tuupertunut/fanning/internal/adapter/storage"
	"github.com/tuupertunut/fanning/internal/core/domain"
	"github.com/tuupertunut/fanning/internal/core/port"
	"github.com/tuupertunut/fanning/internal/metrics"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingStorage struct {
	err error
}

func (s failingStorage) Load(context.Context) ([]*domain.Curve, error) { return nil, s.err }
func (s failingStorage) Store(context.Context, []*domain.Curve) error { return s.err }

type flakyBackend struct {
	*hardware.MockBackend
	fail    atomic.Bool
	explode atomic.Bool
}

func (b *flakyBackend) Refresh(ctx context.Context) error {
	if b.explode.Load() {
		panic("sensor read exploded")
	}
	if b.fail.Load() {
		return errors.New("sensor read failed")
	}
	return b.MockBackend.Refresh(ctx)
}

var _ port.HardwareBackend = (*flakyBackend)(nil)

func newTestService(t *testing.T) (*ControlService, *hardware.MockBackend) {
	backend := hardware.NewDefaultMockBackend()
	store := storage.NewJSONCurveStore(filepath.Join(t.TempDir(), "fanCurves.json"), backend, zap.NewNop())
	return NewControlService(backend, store, zap.Must(zap.NewDevelopment())), backend
}

func curveFor(t *testing.T, root *domain.HardwareItem, sensorID, controllerID string, points ...domain.Mapping) *domain.Curve {
	c, err := domain.ResolveCurve(root, domain.CurveSpec{
		SensorID:     sensorID,
		ControllerID: controllerID,
		ChangePoints: points,
	})
	require.NoError(t, err)
	return c
}

func TestCycleCommandsAndClears(t *testing.T) {

	require := require.New(t)

	svc, backend := newTestService(t)
	root := backend.Root()
	ca, _ := domain.FindControllerByID(root, "ca")
	cb, _ := domain.FindControllerByID(root, "cb")

	backend.Pin("sa", 70)
	curve := curveFor(t, root, "sa", "ca",
		domain.Mapping{Key: 40, Value: 30}, domain.Mapping{Key: 60, Value: 45}, domain.Mapping{Key: 80, Value: 50})
	svc.Add(curve)

	cb.SetCommandedValue(500)

	require.NoError(svc.RunCycleOnce(context.Background()))

	v, ok := ca.CommandedValue()
	require.True(ok)
	require.Equal(45.0, v)

	_, ok = cb.CommandedValue()
	require.False(ok, "controller without curve is released")

	// the controlled sensor follows on the next refresh
	require.NoError(svc.RunCycleOnce(context.Background()))
	require.Equal(45.0, ca.Sensor().Value())

	// an emptied curve releases the controller
	curve.Clear()
	require.NoError(svc.RunCycleOnce(context.Background()))
	_, ok = ca.CommandedValue()
	require.False(ok)
}

func TestFirstCurveWins(t *testing.T) {

	require := require.New(t)

	svc, backend := newTestService(t)
	root := backend.Root()
	backend.Pin("sa", 35)

	first := curveFor(t, root, "sa", "ca", domain.Mapping{Key: 0, Value: 31})
	second := curveFor(t, root, "sa", "ca", domain.Mapping{Key: 0, Value: 49})
	svc.Add(first)
	svc.Add(second)

	found, ok := svc.FindCurveOfControllerID("ca")
	require.True(ok)
	require.Same(first, found)

	require.NoError(svc.RunCycleOnce(context.Background()))
	ca, _ := domain.FindControllerByID(root, "ca")
	v, _ := ca.CommandedValue()
	require.Equal(31.0, v)

	require.True(svc.Remove(first))
	found, _ = svc.FindCurveOfController(ca)
	require.Same(second, found)
}

func TestPutReplacesCurveOfController(t *testing.T) {

	require := require.New(t)

	svc, backend := newTestService(t)
	root := backend.Root()

	require.False(svc.Put(curveFor(t, root, "sa", "ca")))
	require.False(svc.Put(curveFor(t, root, "sd", "cb")))
	replacement := curveFor(t, root, "sb", "ca", domain.Mapping{Key: 1, Value: 1})
	require.True(svc.Put(replacement))

	curves := svc.Curves()
	require.Len(curves, 2)
	require.Same(replacement, curves[0], "replaced in place")

	require.True(svc.RemoveCurveOfController("ca"))
	require.False(svc.RemoveCurveOfController("ca"))
	require.Len(svc.Curves(), 1)

	svc.Clear()
	require.Empty(svc.Curves())
}

func TestStoreAndLoad(t *testing.T) {

	require := require.New(t)

	svc, backend := newTestService(t)
	root := backend.Root()
	ctx := context.Background()

	svc.Add(curveFor(t, root, "sa", "ca", domain.Mapping{Key: 50, Value: 40}))
	require.NoError(svc.Store(ctx))

	svc.Clear()
	require.NoError(svc.Load(ctx))

	curves := svc.Curves()
	require.Len(curves, 1)
	require.Equal([]domain.Mapping{{Key: 50, Value: 40}}, curves[0].Mappings())
}

func TestFailedLoadKeepsCurves(t *testing.T) {

	require := require.New(t)

	backend := hardware.NewDefaultMockBackend()
	svc := NewControlService(backend, failingStorage{err: domain.ErrMalformedData}, zap.NewNop())
	existing := curveFor(t, backend.Root(), "sa", "ca")
	svc.Add(existing)

	err := svc.Load(context.Background())
	require.ErrorIs(err, domain.ErrMalformedData)
	require.Equal([]*domain.Curve{existing}, svc.Curves())

	require.ErrorIs(svc.Store(context.Background()), domain.ErrMalformedData)
}

func TestFailedRefreshKeepsCommands(t *testing.T) {

	require := require.New(t)

	backend := &flakyBackend{MockBackend: hardware.NewDefaultMockBackend()}
	svc := NewControlService(backend, failingStorage{}, zap.NewNop())
	ca, _ := domain.FindControllerByID(backend.Root(), "ca")
	ca.SetCommandedValue(33)

	backend.fail.Store(true)
	require.Error(svc.RunCycleOnce(context.Background()))
	v, ok := ca.CommandedValue()
	require.True(ok)
	require.Equal(33.0, v)

	backend.fail.Store(false)
	backend.explode.Store(true)
	err := svc.RunCycleOnce(context.Background())
	require.ErrorContains(err, "panic")

	backend.explode.Store(false)
	require.NoError(svc.RunCycleOnce(context.Background()))
	_, ok = ca.CommandedValue()
	require.False(ok)
}

func TestCycleEventsAndMetrics(t *testing.T) {

	require := require.New(t)

	es := &eventstream.EventStream{}
	m := metrics.New()
	backend := hardware.NewDefaultMockBackend()
	svc := NewControlService(backend, failingStorage{}, zap.NewNop(), WithEventStream(es), WithMetrics(m))
	svc.Add(curveFor(t, backend.Root(), "sa", "ca", domain.Mapping{Key: 0, Value: 40}))

	received := make(chan domain.CycleCompletedEvent, 1)
	sub := es.Subscribe(func(evt any) {
		if ev, ok := evt.(domain.CycleCompletedEvent); ok {
			received <- ev
		}
	})
	defer es.Unsubscribe(sub)

	require.NoError(svc.RunCycleOnce(context.Background()))

	select {
	case ev := <-received:
		require.NoError(ev.Err)
		require.Len(ev.Sensors, 5)
		require.Equal([]domain.ControllerReading{
			{ID: "ca", Value: 40, Controlled: true},
			{ID: "cb", Value: 0, Controlled: false},
		}, ev.Controllers)
	case <-time.After(time.Second):
		require.Fail("no cycle event")
	}

	families, err := m.Registry().Gather()
	require.NoError(err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(names["fanning_update_cycles_total"])
	require.True(names["fanning_controller_commanded_value"])
	require.True(names["fanning_curves"])
}

func TestPeriodicUpdates(t *testing.T) {

	assert := assert.New(t)

	svc, backend := newTestService(t)
	root := backend.Root()
	svc.Add(curveFor(t, root, "se", "ca", domain.Mapping{Key: 0, Value: 44}))

	assert.Error(svc.StartPeriodic(0))
	assert.NoError(svc.StartPeriodic(50 * time.Millisecond))
	assert.ErrorIs(svc.StartPeriodic(50*time.Millisecond), ErrAlreadyStarted)
	assert.True(svc.IsRunning())

	ca, _ := domain.FindControllerByID(root, "ca")
	assert.Eventually(func() bool {
		v, ok := ca.CommandedValue()
		return ok && v == 44
	}, 2*time.Second, 20*time.Millisecond)

	svc.Stop()
	assert.False(svc.IsRunning())

	// no more cycles after stop
	ca.ClearCommandedValue()
	time.Sleep(200 * time.Millisecond)
	_, ok := ca.CommandedValue()
	assert.False(ok)

	// stop is idempotent
	svc.Stop()
}
