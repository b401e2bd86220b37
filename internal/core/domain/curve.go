package domain

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Mapping is a single breakpoint of a curve.
type Mapping struct {
	Key   float64 `json:"key"`
	Value float64 `json:"value"`
}

func (m Mapping) valid() bool {
	return !math.IsNaN(m.Key) && !math.IsInf(m.Key, 0) &&
		!math.IsNaN(m.Value) && !math.IsInf(m.Value, 0)
}

// Curve maps readings of a sensor to commanded values of a controller.
// Evaluation holds the value of the greatest breakpoint not above the input
// and never interpolates. Sensor and controller are borrowed from the
// hardware tree.
type Curve struct {
	sensor     *Sensor
	controller *Controller

	mu     sync.RWMutex
	points map[float64]float64
}

// NewCurve builds a curve from the given breakpoints. A later mapping with an
// already seen key replaces the earlier one.
func NewCurve(sensor *Sensor, controller *Controller, mappings ...Mapping) (*Curve, error) {
	c := &Curve{
		sensor:     sensor,
		controller: controller,
		points:     make(map[float64]float64, len(mappings)),
	}
	for _, m := range mappings {
		if !m.valid() {
			return nil, fmt.Errorf("key %v value %v: %w", m.Key, m.Value, ErrInvalidBreakpoint)
		}
		c.points[m.Key] = m.Value
	}
	return c, nil
}

func (c *Curve) Sensor() *Sensor { return c.sensor }
func (c *Curve) Controller() *Controller { return c.controller }

// Evaluate returns the commanded value for input x, false when the curve is empty.
func (c *Curve) Evaluate(x float64) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.points) == 0 {
		return 0, false
	}

	floorFound := false
	var floorKey, minKey float64
	first := true
	for k := range c.points {
		if first || k < minKey {
			minKey = k
			first = false
		}
		if k <= x && (!floorFound || k > floorKey) {
			floorKey = k
			floorFound = true
		}
	}
	if floorFound {
		return c.points[floorKey], true
	}
	return c.points[minKey], true
}

// AddOrReplace inserts the breakpoint, replacing the value of an existing key.
func (c *Curve) AddOrReplace(key, value float64) error {
	m := Mapping{Key: key, Value: value}
	if !m.valid() {
		return fmt.Errorf("key %v value %v: %w", key, value, ErrInvalidBreakpoint)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points[key] = value
	return nil
}

// Remove deletes the breakpoint only when both key and value match.
func (c *Curve) Remove(m Mapping) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.points[m.Key]
	if !ok || v != m.Value {
		return false
	}
	delete(c.points, m.Key)
	return true
}

func (c *Curve) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points = make(map[float64]float64)
}

func (c *Curve) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.points)
}

// Mappings returns a copy of the breakpoints sorted by key.
func (c *Curve) Mappings() []Mapping {
	c.mu.RLock()
	mappings := make([]Mapping, 0, len(c.points))
	for k, v := range c.points {
		mappings = append(mappings, Mapping{Key: k, Value: v})
	}
	c.mu.RUnlock()

	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].Key < mappings[j].Key
	})
	return mappings
}

// CurveSpec is the id based form of a curve, as persisted and as exchanged
// over HTTP and MQTT.
type CurveSpec struct {
	SensorID     string    `json:"sensor"`
	ControllerID string    `json:"fanController"`
	ChangePoints []Mapping `json:"changePoints"`
}

func (c *Curve) Spec() CurveSpec {
	return CurveSpec{
		SensorID:     c.sensor.ID(),
		ControllerID: c.controller.ID(),
		ChangePoints: c.Mappings(),
	}
}

// ResolveCurve binds a spec to the sensor and controller of the given tree.
func ResolveCurve(root *HardwareItem, spec CurveSpec) (*Curve, error) {
	sensor, ok := FindSensorByID(root, spec.SensorID)
	if !ok {
		return nil, fmt.Errorf("sensor %q: %w", spec.SensorID, ErrNotFound)
	}
	controller, ok := FindControllerByID(root, spec.ControllerID)
	if !ok {
		return nil, fmt.Errorf("controller %q: %w", spec.ControllerID, ErrNotFound)
	}
	return NewCurve(sensor, controller, spec.ChangePoints...)
}
