package domain

import (
	"fmt"
	"time"
)

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

// ControllerUpdateEvent carries the commanded value of a controller.
// Controlled is false when the controller is left to the hardware.
type ControllerUpdateEvent struct {
	SensorUpdateEventMixIn
	Value      float64
	Controlled bool
	Decimals   uint
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type SensorReading struct {
	ID    string
	Value float64
}

type ControllerReading struct {
	ID         string
	Value      float64
	Controlled bool
}

// CycleCompletedEvent is published after every update cycle.
type CycleCompletedEvent struct {
	Sensors     []SensorReading
	Controllers []ControllerReading
	Duration    time.Duration
	Err         error
}

var (
	_ SensorUpdateEvent = (*FloatSensorUpdateEvent)(nil)
	_ SensorUpdateEvent = (*ControllerUpdateEvent)(nil)
)
