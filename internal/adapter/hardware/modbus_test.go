package hardware

import (
	"context"
	"errors"
	"testing"

	"github.com/tuupertunut/fanning/internal/config"
	"github.com/tuupertunut/fanning/internal/core/domain"
	"github.com/tuupertunut/fanning/pkg/fan_modbus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testModbusConfig() config.ModbusConfig {
	release := 100.0
	return config.ModbusConfig{
		Host: "localhost",
		Port: 502,
		Name: "fan hub",
		Sensors: []config.ModbusSensorConfig{
			{Id: "cpu", Name: "cpu temp", Type: "Temperature", Unit: "°C", Register: 1, Input: true, ScaleFactor: -1, Signed: true},
			{Id: "fan1", Name: "fan 1", Type: "Control", Unit: "%", Register: 10},
		},
		Controllers: []config.ModbusControllerConfig{
			{Id: "fan1_ctl", Sensor: "fan1", Register: 10, Min: 20, Max: 100, ReleaseValue: &release},
		},
	}
}

func newTestModbusBackend(t *testing.T) (*ModbusBackend, *fan_modbus.TestRegisterClient) {
	t.Helper()
	bank := fan_modbus.NewTestRegisterClient()
	bank.Set(1, fan_modbus.INPUT_REGISTER, 425)
	bank.Set(10, fan_modbus.HOLDING_REGISTER, 50)
	b, err := NewModbusBackend(testModbusConfig(), fan_modbus.NewModbusClient(bank), zap.NewNop())
	require.NoError(t, err)
	return b, bank
}

func TestModbusTree(t *testing.T) {

	assert := assert.New(t)

	b, _ := newTestModbusBackend(t)
	root := b.Root()

	assert.Equal("modbus", root.ID())
	assert.Equal("fan hub", root.Name())
	assert.Len(root.Sensors(), 2)

	c, ok := domain.FindControllerByID(root, "fan1_ctl")
	require.True(t, ok)
	assert.Equal("fan1", c.Sensor().ID())
	assert.Equal("fan 1", c.Name())
}

func TestModbusRefresh(t *testing.T) {

	require := require.New(t)

	b, bank := newTestModbusBackend(t)
	ctx := context.Background()
	c, _ := domain.FindControllerByID(b.Root(), "fan1_ctl")
	cpu, _ := domain.FindSensorByID(b.Root(), "cpu")

	// uncontrolled writes the release value
	require.NoError(b.Refresh(ctx))
	require.True(bank.IsOpen())
	require.InDelta(42.5, cpu.Value(), 1e-9)
	require.Equal(100.0, c.Sensor().Value())
	require.Equal(1, bank.Writes())

	// commanded value is clamped and written once
	c.SetCommandedValue(5)
	require.NoError(b.Refresh(ctx))
	require.Equal(20.0, c.Sensor().Value())
	require.NoError(b.Refresh(ctx))
	require.Equal(2, bank.Writes())

	raw, ok := b.LastWritten("fan1_ctl")
	require.True(ok)
	require.Equal(uint16(20), raw)
}

func TestModbusRefreshFailure(t *testing.T) {

	assert := assert.New(t)

	b, bank := newTestModbusBackend(t)
	ctx := context.Background()
	c, _ := domain.FindControllerByID(b.Root(), "fan1_ctl")
	c.SetCommandedValue(60)

	bank.FailNext(errors.New("bus error"))
	err := b.Refresh(ctx)
	assert.ErrorContains(err, "fan1_ctl")
	assert.False(bank.IsOpen())
	_, ok := b.LastWritten("fan1_ctl")
	assert.False(ok)

	// reopens and retries the write
	assert.NoError(b.Refresh(ctx))
	v, _ := bank.Get(10, fan_modbus.HOLDING_REGISTER)
	assert.Equal(uint16(60), v)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(b.Refresh(cctx), context.Canceled)
}

func TestModbusClose(t *testing.T) {

	b, bank := newTestModbusBackend(t)
	c, _ := domain.FindControllerByID(b.Root(), "fan1_ctl")
	c.SetCommandedValue(40)
	require.NoError(t, b.Refresh(context.Background()))

	require.NoError(t, b.Close())
	v, _ := bank.Get(10, fan_modbus.HOLDING_REGISTER)
	assert.Equal(t, uint16(100), v)
	assert.False(t, bank.IsOpen())
}

func TestModbusInvalidConfig(t *testing.T) {

	client := fan_modbus.NewModbusClient(fan_modbus.NewTestRegisterClient())

	cfg := testModbusConfig()
	cfg.Controllers[0].Sensor = "nope"
	_, err := NewModbusBackend(cfg, client, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidModbusConfig)

	cfg = testModbusConfig()
	cfg.Sensors = append(cfg.Sensors, cfg.Sensors[0])
	_, err = NewModbusBackend(cfg, client, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidModbusConfig)

	cfg = testModbusConfig()
	cfg.Controllers[0].Min = 200
	_, err = NewModbusBackend(cfg, client, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidModbusConfig)
}
