package domain

import (
	"math"
	"sync/atomic"
)

type ElementKind int

const (
	ElementKindHardware ElementKind = iota
	ElementKindSensor
	ElementKindController
)

func (k ElementKind) String() string {
	switch k {
	case ElementKindHardware:
		return "hardware"
	case ElementKindSensor:
		return "sensor"
	case ElementKindController:
		return "controller"
	default:
		return "unknown"
	}
}

// TreeElement is implemented by every node kind of the hardware tree.
type TreeElement interface {
	ID() string
	Name() string
	Kind() ElementKind
}

// HardwareItem is a node of the hardware tree. It owns its sensors,
// controllers and children.
type HardwareItem struct {
	id          string
	name        string
	sensors     []*Sensor
	controllers []*Controller
	children    []*HardwareItem
}

func NewHardwareItem(id, name string, sensors []*Sensor, controllers []*Controller, children []*HardwareItem) *HardwareItem {
	item := &HardwareItem{
		id:          id,
		name:        name,
		sensors:     sensors,
		controllers: controllers,
		children:    children,
	}
	for _, s := range sensors {
		s.hardware = item
	}
	for _, c := range controllers {
		c.hardware = item
	}
	return item
}

func (h *HardwareItem) ID() string { return h.id }
func (h *HardwareItem) Name() string { return h.name }
func (h *HardwareItem) Kind() ElementKind { return ElementKindHardware }
func (h *HardwareItem) Sensors() []*Sensor { return h.sensors }
func (h *HardwareItem) Controllers() []*Controller { return h.controllers }
func (h *HardwareItem) Children() []*HardwareItem { return h.children }

// Sensor is a readable measurement point. Its value is written by the
// backend refresh and read concurrently by the update loop.
type Sensor struct {
	id         string
	name       string
	sensorType string
	unit       string
	value      atomic.Uint64
	hardware   *HardwareItem
}

func NewSensor(id, name, sensorType, unit string, value float64) *Sensor {
	s := &Sensor{
		id:         id,
		name:       name,
		sensorType: sensorType,
		unit:       unit,
	}
	s.SetValue(value)
	return s
}

func (s *Sensor) ID() string { return s.id }
func (s *Sensor) Name() string { return s.name }
func (s *Sensor) Kind() ElementKind { return ElementKindSensor }
func (s *Sensor) Type() string { return s.sensorType }
func (s *Sensor) Unit() string { return s.unit }

// Hardware returns the item this sensor belongs to, nil if detached.
func (s *Sensor) Hardware() *HardwareItem { return s.hardware }

func (s *Sensor) Value() float64 {
	return math.Float64frombits(s.value.Load())
}

func (s *Sensor) SetValue(v float64) {
	s.value.Store(math.Float64bits(v))
}

// Controller is an actuator bound to a sensor that measures its effect.
// An absent commanded value means the controller is left to the hardware.
type Controller struct {
	id        string
	sensor    *Sensor
	min       float64
	max       float64
	commanded atomic.Pointer[float64]
	hardware  *HardwareItem
}

func NewController(id string, sensor *Sensor, min, max float64) *Controller {
	return &Controller{
		id:     id,
		sensor: sensor,
		min:    min,
		max:    max,
	}
}

func (c *Controller) ID() string { return c.id }
func (c *Controller) Kind() ElementKind { return ElementKindController }
func (c *Controller) Sensor() *Sensor { return c.sensor }
func (c *Controller) Min() float64 { return c.min }
func (c *Controller) Max() float64 { return c.max }

// Name, Type and Unit are those of the associated sensor.
func (c *Controller) Name() string {
	if c.sensor == nil {
		return c.id
	}
	return c.sensor.Name()
}

func (c *Controller) Type() string {
	if c.sensor == nil {
		return ""
	}
	return c.sensor.Type()
}

func (c *Controller) Unit() string {
	if c.sensor == nil {
		return ""
	}
	return c.sensor.Unit()
}

func (c *Controller) Hardware() *HardwareItem { return c.hardware }

func (c *Controller) CommandedValue() (float64, bool) {
	v := c.commanded.Load()
	if v == nil {
		return 0, false
	}
	return *v, true
}

func (c *Controller) SetCommandedValue(v float64) {
	c.commanded.Store(&v)
}

func (c *Controller) ClearCommandedValue() {
	c.commanded.Store(nil)
}

var (
	_ TreeElement = (*HardwareItem)(nil)
	_ TreeElement = (*Sensor)(nil)
	_ TreeElement = (*Controller)(nil)
)
