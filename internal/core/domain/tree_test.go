package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() *HardwareItem {
	sct1 := NewSensor("sct1", "cpu temp 1", "Temperature", "°C", 0)
	scp := NewSensor("scp", "cpu fan", "Fan speed", "%", 0)
	fc := NewController("fc", scp, 30, 50)
	hc := NewHardwareItem("hc", "cpu", []*Sensor{sct1, scp}, []*Controller{fc}, nil)

	sgt := NewSensor("sgt", "gpu temp", "Temperature", "°C", 0)
	sgf := NewSensor("sgf", "gpu fan speed", "Fan speed", "RPM", 0)
	sgp := NewSensor("sgp", "gpu fan", "Fan speed", "%", 0)
	fg := NewController("fg", sgp, 0, 100)
	hg := NewHardwareItem("hg", "gpu", []*Sensor{sgt, sgf, sgp}, []*Controller{fg}, nil)

	return NewHardwareItem("c", "computer", nil, nil, []*HardwareItem{hc, hg})
}

func ids[T TreeElement](elements []T) []string {
	out := []string{}
	for _, e := range elements {
		out = append(out, e.ID())
	}
	return out
}

func TestTraversalOrder(t *testing.T) {

	assert := assert.New(t)

	root := testTree()

	assert.Equal([]string{"c", "hc", "hg"}, ids(AllHardware(root)))
	assert.Equal([]string{"sct1", "scp", "sgt", "sgf", "sgp"}, ids(AllSensors(root)))
	assert.Equal([]string{"fc", "fg"}, ids(AllControllers(root)))
	assert.Equal([]string{"c", "hc", "sct1", "scp", "fc", "hg", "sgt", "sgf", "sgp", "fg"}, ids(Elements(root)))
}

func TestTraversalNilRoot(t *testing.T) {

	assert := assert.New(t)

	assert.Empty(AllHardware(nil))
	assert.Empty(AllSensors(nil))
	assert.Empty(AllControllers(nil))
	assert.Empty(Elements(nil))

	_, ok := FindSensorByID(nil, "sct1")
	assert.False(ok)
	_, ok = FindControllerByID(nil, "fc")
	assert.False(ok)
	assert.Nil(Snapshot(nil))
}

func TestFindByID(t *testing.T) {

	require := require.New(t)

	root := testTree()

	s, ok := FindSensorByID(root, "sgf")
	require.True(ok)
	require.Equal("gpu fan speed", s.Name())
	require.Equal("hg", s.Hardware().ID())

	c, ok := FindControllerByID(root, "fg")
	require.True(ok)
	require.Equal("sgp", c.Sensor().ID())
	require.Equal("gpu fan", c.Name())
	require.Equal(100.0, c.Max())

	_, ok = FindSensorByID(root, "missing")
	require.False(ok)
	_, ok = FindControllerByID(root, "sgp")
	require.False(ok, "sensor ids are not controller ids")
}

func TestFindByIDReturnsFirstMatch(t *testing.T) {

	require := require.New(t)

	first := NewSensor("dup", "first", "Temperature", "°C", 1)
	second := NewSensor("dup", "second", "Temperature", "°C", 2)
	child := NewHardwareItem("child", "child", []*Sensor{second}, nil, nil)
	root := NewHardwareItem("root", "root", []*Sensor{first}, nil, []*HardwareItem{child})

	s, ok := FindSensorByID(root, "dup")
	require.True(ok)
	require.Same(first, s)
}

func TestCommandedValue(t *testing.T) {

	assert := assert.New(t)

	c := NewController("fc", NewSensor("s", "s", "Fan speed", "%", 0), 0, 100)

	_, ok := c.CommandedValue()
	assert.False(ok, "new controller is uncontrolled")

	c.SetCommandedValue(42)
	v, ok := c.CommandedValue()
	assert.True(ok)
	assert.Equal(42.0, v)

	c.ClearCommandedValue()
	_, ok = c.CommandedValue()
	assert.False(ok)
}

func TestSnapshot(t *testing.T) {

	require := require.New(t)

	root := testTree()
	fc, _ := FindControllerByID(root, "fc")
	fc.SetCommandedValue(40)
	sct1, _ := FindSensorByID(root, "sct1")
	sct1.SetValue(55.5)

	view := Snapshot(root)
	require.NotNil(view)
	require.Equal("c", view.ID)
	require.Len(view.Children, 2)

	sensors := view.AllSensorViews()
	require.Len(sensors, 5)
	require.Equal(55.5, sensors[0].Value)

	controllers := view.AllControllerViews()
	require.Len(controllers, 2)
	require.Equal("scp", controllers[0].SensorID)
	require.NotNil(controllers[0].CommandedValue)
	require.Equal(40.0, *controllers[0].CommandedValue)
	require.Nil(controllers[1].CommandedValue)
}
