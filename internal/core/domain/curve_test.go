package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCurve(t *testing.T, mappings ...Mapping) *Curve {
	sensor := NewSensor("s", "sensor", "Temperature", "°C", 0)
	controller := NewController("c", NewSensor("f", "fan", "Fan speed", "%", 0), 0, 100)
	curve, err := NewCurve(sensor, controller, mappings...)
	require.NoError(t, err)
	return curve
}

func TestEvaluate(t *testing.T) {

	assert := assert.New(t)

	curve := testCurve(t, Mapping{Key: 5.0, Value: 6.5}, Mapping{Key: 8.0, Value: 10})

	tests := []struct {
		x    float64
		want float64
	}{
		{3, 6.5},   // below the smallest key
		{5, 6.5},   // exact key
		{6, 6.5},   // holds the lower breakpoint
		{7.99, 6.5},
		{8, 10},
		{9, 10},
		{1e9, 10},
	}
	for _, tt := range tests {
		v, ok := curve.Evaluate(tt.x)
		assert.True(ok)
		assert.Equal(tt.want, v, "evaluate(%v)", tt.x)
	}
}

func TestEvaluateEmpty(t *testing.T) {

	curve := testCurve(t)
	_, ok := curve.Evaluate(50)
	assert.False(t, ok)
}

func TestEvaluateStepHold(t *testing.T) {

	assert := assert.New(t)

	curve := testCurve(t, Mapping{Key: 40, Value: 30}, Mapping{Key: 60, Value: 60}, Mapping{Key: 80, Value: 100})

	for x, want := range map[float64]float64{35: 30, 40: 30, 59.9: 30, 60: 60, 70: 60, 85: 100} {
		v, ok := curve.Evaluate(x)
		assert.True(ok)
		assert.Equal(want, v, "evaluate(%v)", x)
	}
}

func TestAddOrReplace(t *testing.T) {

	require := require.New(t)

	curve := testCurve(t, Mapping{Key: 50, Value: 20})
	require.NoError(curve.AddOrReplace(50, 90))
	require.Equal(1, curve.Len())

	v, ok := curve.Evaluate(55)
	require.True(ok)
	require.Equal(90.0, v)

	require.NoError(curve.AddOrReplace(10, 5))
	require.Equal([]Mapping{{Key: 10, Value: 5}, {Key: 50, Value: 90}}, curve.Mappings())
}

func TestNewCurveDuplicateKeys(t *testing.T) {

	curve := testCurve(t, Mapping{Key: 1, Value: 1}, Mapping{Key: 1, Value: 2})
	assert.Equal(t, []Mapping{{Key: 1, Value: 2}}, curve.Mappings())
}

func TestInvalidBreakpoint(t *testing.T) {

	require := require.New(t)

	curve := testCurve(t, Mapping{Key: 1, Value: 1})

	for _, m := range []Mapping{
		{Key: math.NaN(), Value: 1},
		{Key: 1, Value: math.NaN()},
		{Key: math.Inf(1), Value: 1},
		{Key: 2, Value: math.Inf(-1)},
	} {
		err := curve.AddOrReplace(m.Key, m.Value)
		require.True(errors.Is(err, ErrInvalidBreakpoint))
	}
	require.Equal([]Mapping{{Key: 1, Value: 1}}, curve.Mappings(), "state unchanged")

	_, err := NewCurve(curve.Sensor(), curve.Controller(), Mapping{Key: math.NaN(), Value: 0})
	require.ErrorIs(err, ErrInvalidBreakpoint)
}

func TestRemoveAndClear(t *testing.T) {

	require := require.New(t)

	curve := testCurve(t, Mapping{Key: 1, Value: 10}, Mapping{Key: 2, Value: 20})

	require.False(curve.Remove(Mapping{Key: 1, Value: 11}), "value must match")
	require.True(curve.Remove(Mapping{Key: 1, Value: 10}))
	require.Equal(1, curve.Len())

	curve.Clear()
	require.Equal(0, curve.Len())
	_, ok := curve.Evaluate(5)
	require.False(ok)
}

func TestResolveCurve(t *testing.T) {

	require := require.New(t)

	root := testTree()

	curve, err := ResolveCurve(root, CurveSpec{
		SensorID:     "sct1",
		ControllerID: "fc",
		ChangePoints: []Mapping{{Key: 60, Value: 40}, {Key: 30, Value: 30}},
	})
	require.NoError(err)
	require.Equal("sct1", curve.Sensor().ID())
	require.Equal("fc", curve.Controller().ID())

	spec := curve.Spec()
	require.Equal([]Mapping{{Key: 30, Value: 30}, {Key: 60, Value: 40}}, spec.ChangePoints)

	_, err = ResolveCurve(root, CurveSpec{SensorID: "nope", ControllerID: "fc"})
	require.ErrorIs(err, ErrNotFound)
	_, err = ResolveCurve(root, CurveSpec{SensorID: "sct1", ControllerID: "nope"})
	require.ErrorIs(err, ErrNotFound)
}
