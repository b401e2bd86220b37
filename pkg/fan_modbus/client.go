package fan_modbus

import (
	"fmt"
	"math"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type RegType = modbus.RegType

const (
	HOLDING_REGISTER = modbus.HOLDING_REGISTER
	INPUT_REGISTER   = modbus.INPUT_REGISTER
)

// RegisterClient is the subset of a Modbus client used to drive a fan
// controller. *modbus.ModbusClient satisfies it.
type RegisterClient interface {
	Open() error
	Close() error
	ReadRegister(addr uint16, regType modbus.RegType) (uint16, error)
	WriteRegister(addr uint16, value uint16) error
}

var _ RegisterClient = (*modbus.ModbusClient)(nil)

type ModbusClient struct {
	client     RegisterClient
	instrument []ModbusInstrument
}

type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

// NewModbusClient wraps client, reporting the duration of every request to
// the instruments.
func NewModbusClient(client RegisterClient, instrument ...ModbusInstrument) *ModbusClient {
	return &ModbusClient{
		client:     client,
		instrument: instrument,
	}
}

func CreateFanModbusClient(host string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (*ModbusClient, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	// instrumentation
	inst := []ModbusInstrument{traceLoggerInstrumentation(logger.With(zap.String("target", host), zap.Uint8("unit", unitId)))}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	// set unit address
	if unitId > 0 {
		err = client.SetUnitId(unitId)
		if err != nil {
			return nil, err
		}
	}

	return NewModbusClient(client, inst...), nil
}

func (reader *ModbusClient) Open() error {
	return reader.client.Open()
}

func (reader *ModbusClient) Close() error {
	return reader.client.Close()
}

// ReadScaled reads one register and applies the power of ten scale factor
// sf. Signed registers are read as two's complement.
func (reader *ModbusClient) ReadScaled(addr uint16, regType RegType, sf int16, signed bool) (float64, error) {
	raw, err := reader.readRegister(addr, regType)
	if err != nil {
		return 0, err
	}
	if signed {
		return applySFint16(int16(raw), sf), nil
	}
	return applySF(raw, sf), nil
}

// WriteScaled writes value to a holding register after removing the scale
// factor. Values outside the register range are saturated.
func (reader *ModbusClient) WriteScaled(addr uint16, value float64, sf int16) (uint16, error) {
	raw := EncodeScaled(value, sf)
	return raw, reader.writeRegister(addr, raw)
}

// EncodeScaled returns the raw register WriteScaled would write for value.
func EncodeScaled(value float64, sf int16) uint16 {
	return toRegister(applySFInv(value, sf))
}

func (reader *ModbusClient) readRegister(addr uint16, regType modbus.RegType) (uint16, error) {
	defer RecordTimer("ReadRegister", reader.instrument)()
	return reader.client.ReadRegister(addr, regType)
}

func (reader *ModbusClient) writeRegister(addr uint16, value uint16) error {
	defer RecordTimer("WriteRegister", reader.instrument)()
	return reader.client.WriteRegister(addr, value)
}

func applySF(number uint16, sf int16) float64 {
	return float64(number) * math.Pow(10, float64(sf))
}

func applySFint16(number int16, sf int16) float64 {
	return float64(number) * math.Pow(10, float64(sf))
}

func applySFInv(number float64, sf int16) float64 {
	return number / math.Pow(10, float64(sf))
}

func toRegister(v float64) uint16 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func traceLoggerInstrumentation(logger *zap.Logger) ModbusInstrument {
	return ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus request", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}
