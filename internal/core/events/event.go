package events

import (
	"github.com/tuupertunut/fanning/internal/core/domain"
)

// CycleToUpdateEvents splits a completed cycle into one update event per
// sensor and per controller, in traversal order.
func CycleToUpdateEvents(cycle domain.CycleCompletedEvent) []any {
	var events []any

	for _, s := range cycle.Sensors {
		events = append(events, domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: s.ID,
			},
			Value:    s.Value,
			Decimals: 2,
		})
	}
	for _, c := range cycle.Controllers {
		events = append(events, domain.ControllerUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: c.ID,
			},
			Value:      c.Value,
			Controlled: c.Controlled,
			Decimals:   2,
		})
	}

	return events
}

func BridgeStateUpdateEvent(online bool) any {
	return domain.BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	}
}
