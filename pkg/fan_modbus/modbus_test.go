package fan_modbus

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadScaled(t *testing.T) {

	require := require.New(t)

	bank := NewTestRegisterClient()
	bank.Set(10, INPUT_REGISTER, 425)
	bank.Set(11, HOLDING_REGISTER, 1200)
	bank.Set(12, INPUT_REGISTER, 0xFFF6) // -10

	reader := NewModbusClient(bank)

	v, err := reader.ReadScaled(10, INPUT_REGISTER, -1, false)
	require.NoError(err)
	require.InDelta(42.5, v, 1e-9)

	v, err = reader.ReadScaled(11, HOLDING_REGISTER, 0, false)
	require.NoError(err)
	require.Equal(1200.0, v)

	v, err = reader.ReadScaled(12, INPUT_REGISTER, 0, true)
	require.NoError(err)
	require.Equal(-10.0, v)

	_, err = reader.ReadScaled(13, INPUT_REGISTER, 0, false)
	require.ErrorIs(err, ErrTestRegisterUnset)
}

func TestWriteScaled(t *testing.T) {

	assert := assert.New(t)

	bank := NewTestRegisterClient()
	reader := NewModbusClient(bank)

	raw, err := reader.WriteScaled(20, 55.55, -1)
	assert.NoError(err)
	assert.Equal(uint16(556), raw)
	v, _ := bank.Get(20, HOLDING_REGISTER)
	assert.Equal(uint16(556), v)

	raw, _ = reader.WriteScaled(20, -3, 0)
	assert.Equal(uint16(0), raw, "negative saturates to zero")

	raw, _ = reader.WriteScaled(20, 1e9, 0)
	assert.Equal(uint16(math.MaxUint16), raw, "overflow saturates")

	bank.FailNext(errors.New("bus error"))
	_, err = reader.WriteScaled(20, 1, 0)
	assert.Error(err)
}

func TestInstrumentation(t *testing.T) {

	bank := NewTestRegisterClient()
	bank.Set(1, HOLDING_REGISTER, 1)

	var calls []string
	reader := NewModbusClient(bank, ModbusInstrument{
		RecordTime: func(fnName string, _ time.Duration) {
			calls = append(calls, fnName)
		},
	})

	_, _ = reader.ReadScaled(1, HOLDING_REGISTER, 0, false)
	_, _ = reader.WriteScaled(1, 2, 0)

	assert.Equal(t, []string{"ReadRegister", "WriteRegister"}, calls)
}
