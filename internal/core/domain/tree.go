package domain

// All traversals below are pre-order depth-first: a node's own sensors and
// controllers come before those of its children, children in stored order.
// A nil root yields empty results.

func walk(root *HardwareItem, visit func(*HardwareItem) bool) bool {
	if root == nil {
		return true
	}
	if !visit(root) {
		return false
	}
	for _, child := range root.children {
		if !walk(child, visit) {
			return false
		}
	}
	return true
}

func AllHardware(root *HardwareItem) []*HardwareItem {
	items := []*HardwareItem{}
	walk(root, func(h *HardwareItem) bool {
		items = append(items, h)
		return true
	})
	return items
}

func AllSensors(root *HardwareItem) []*Sensor {
	sensors := []*Sensor{}
	walk(root, func(h *HardwareItem) bool {
		sensors = append(sensors, h.sensors...)
		return true
	})
	return sensors
}

func AllControllers(root *HardwareItem) []*Controller {
	controllers := []*Controller{}
	walk(root, func(h *HardwareItem) bool {
		controllers = append(controllers, h.controllers...)
		return true
	})
	return controllers
}

// Elements lists every node of the tree: each item followed by its sensors,
// its controllers and then its children's elements.
func Elements(root *HardwareItem) []TreeElement {
	elements := []TreeElement{}
	walk(root, func(h *HardwareItem) bool {
		elements = append(elements, h)
		for _, s := range h.sensors {
			elements = append(elements, s)
		}
		for _, c := range h.controllers {
			elements = append(elements, c)
		}
		return true
	})
	return elements
}

// FindSensorByID returns the first sensor with the given id in traversal order.
func FindSensorByID(root *HardwareItem, id string) (*Sensor, bool) {
	var found *Sensor
	walk(root, func(h *HardwareItem) bool {
		for _, s := range h.sensors {
			if s.id == id {
				found = s
				return false
			}
		}
		return true
	})
	return found, found != nil
}

// FindControllerByID returns the first controller with the given id in traversal order.
func FindControllerByID(root *HardwareItem, id string) (*Controller, bool) {
	var found *Controller
	walk(root, func(h *HardwareItem) bool {
		for _, c := range h.controllers {
			if c.id == id {
				found = c
				return false
			}
		}
		return true
	})
	return found, found != nil
}
