package hardware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/tuupertunut/fanning/internal/config"
	"github.com/tuupertunut/fanning/internal/core/domain"
	"github.com/tuupertunut/fanning/internal/core/port"
	"github.com/tuupertunut/fanning/pkg/fan_modbus"

	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"
)

const modbusRootID = "modbus"

var ErrInvalidModbusConfig = errors.New("invalid modbus config")

type modbusSensor struct {
	sensor *domain.Sensor
	config config.ModbusSensorConfig
}

type modbusController struct {
	controller *domain.Controller
	config     config.ModbusControllerConfig
}

// ModbusBackend drives a fan controller unit over Modbus. Refresh first
// writes the commanded value of every controller whose register is out of
// date, then reads all sensors.
type ModbusBackend struct {
	mu          sync.Mutex
	client      *fan_modbus.ModbusClient
	root        *domain.HardwareItem
	sensors     []modbusSensor
	controllers []modbusController
	written     cmap.ConcurrentMap[string, uint16]
	open        bool
	logger      *zap.Logger
}

// NewModbusBackend builds the hardware tree described by cfg. The client is
// opened lazily on the first refresh.
func NewModbusBackend(cfg config.ModbusConfig, client *fan_modbus.ModbusClient, logger *zap.Logger) (*ModbusBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: no client", ErrInvalidModbusConfig)
	}

	b := &ModbusBackend{
		client:  client,
		written: cmap.New[uint16](),
		logger:  logger.Named("modbus"),
	}

	ids := make(map[string]bool)
	byID := make(map[string]*domain.Sensor)
	var sensors []*domain.Sensor
	for _, sc := range cfg.Sensors {
		if sc.Id == "" || ids[sc.Id] {
			return nil, fmt.Errorf("%w: missing or duplicate sensor id %q", ErrInvalidModbusConfig, sc.Id)
		}
		ids[sc.Id] = true
		name := sc.Name
		if name == "" {
			name = sc.Id
		}
		s := domain.NewSensor(sc.Id, name, sc.Type, sc.Unit, 0)
		byID[sc.Id] = s
		sensors = append(sensors, s)
		b.sensors = append(b.sensors, modbusSensor{sensor: s, config: sc})
	}

	var controllers []*domain.Controller
	for _, cc := range cfg.Controllers {
		if cc.Id == "" || ids[cc.Id] {
			return nil, fmt.Errorf("%w: missing or duplicate controller id %q", ErrInvalidModbusConfig, cc.Id)
		}
		ids[cc.Id] = true
		s, ok := byID[cc.Sensor]
		if !ok {
			return nil, fmt.Errorf("%w: controller %q refers to unknown sensor %q", ErrInvalidModbusConfig, cc.Id, cc.Sensor)
		}
		if cc.Min > cc.Max {
			return nil, fmt.Errorf("%w: controller %q has min > max", ErrInvalidModbusConfig, cc.Id)
		}
		c := domain.NewController(cc.Id, s, cc.Min, cc.Max)
		controllers = append(controllers, c)
		b.controllers = append(b.controllers, modbusController{controller: c, config: cc})
	}

	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("modbus %s:%d", cfg.Host, cfg.Port)
	}
	b.root = domain.NewHardwareItem(modbusRootID, name, sensors, controllers, nil)
	return b, nil
}

// CreateModbusBackend connects the configured unit over Modbus TCP.
func CreateModbusBackend(cfg config.ModbusConfig, logger *zap.Logger, instrumentation *fan_modbus.ModbusInstrument) (*ModbusBackend, error) {
	client, err := fan_modbus.CreateFanModbusClient(cfg.Host, cfg.Port, cfg.UnitId,
		time.Duration(cfg.TimeoutMillis)*time.Millisecond, logger, instrumentation)
	if err != nil {
		return nil, err
	}
	return NewModbusBackend(cfg, client, logger)
}

func (b *ModbusBackend) Root() *domain.HardwareItem {
	return b.root
}

// LastWritten returns the raw register last written for a controller.
func (b *ModbusBackend) LastWritten(controllerID string) (uint16, bool) {
	return b.written.Get(controllerID)
}

func (b *ModbusBackend) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		if err := b.client.Open(); err != nil {
			return fmt.Errorf("modbus open: %w", err)
		}
		b.open = true
	}

	var errs []error
	for _, mc := range b.controllers {
		if err := b.writeController(mc); err != nil {
			errs = append(errs, fmt.Errorf("controller %s: %w", mc.controller.ID(), err))
		}
	}
	for _, ms := range b.sensors {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		v, err := b.client.ReadScaled(ms.config.Register, registerType(ms.config.Input), ms.config.ScaleFactor, ms.config.Signed)
		if err != nil {
			errs = append(errs, fmt.Errorf("sensor %s: %w", ms.sensor.ID(), err))
			continue
		}
		ms.sensor.SetValue(v)
	}

	if len(errs) > 0 {
		// reconnect on the next refresh
		if err := b.client.Close(); err != nil {
			b.logger.Debug("error closing modbus client", zap.Error(err))
		}
		b.open = false
		b.written.Clear()
		return errors.Join(errs...)
	}
	return nil
}

// Close releases every controller and closes the connection.
func (b *ModbusBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	var errs []error
	for _, mc := range b.controllers {
		if mc.config.ReleaseValue == nil {
			continue
		}
		if _, err := b.client.WriteScaled(mc.config.Register, *mc.config.ReleaseValue, mc.config.ScaleFactor); err != nil {
			errs = append(errs, err)
		}
	}
	b.open = false
	b.written.Clear()
	errs = append(errs, b.client.Close())
	return errors.Join(errs...)
}

func (b *ModbusBackend) writeController(mc modbusController) error {
	var value float64
	if v, ok := mc.controller.CommandedValue(); ok {
		value = clamp(v, mc.controller.Min(), mc.controller.Max())
	} else if mc.config.ReleaseValue != nil {
		value = *mc.config.ReleaseValue
	} else {
		b.written.Remove(mc.controller.ID())
		return nil
	}

	raw := fan_modbus.EncodeScaled(value, mc.config.ScaleFactor)
	if last, ok := b.written.Get(mc.controller.ID()); ok && last == raw {
		return nil
	}
	if _, err := b.client.WriteScaled(mc.config.Register, value, mc.config.ScaleFactor); err != nil {
		return err
	}
	b.written.Set(mc.controller.ID(), raw)
	b.logger.Debug("controller written", zap.String("controller", mc.controller.ID()), zap.Float64("value", value))
	return nil
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

func registerType(input bool) fan_modbus.RegType {
	if input {
		return fan_modbus.INPUT_REGISTER
	}
	return fan_modbus.HOLDING_REGISTER
}

var _ port.HardwareBackend = (*ModbusBackend)(nil)
