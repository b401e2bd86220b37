package domain

// HardwareView is a point in time copy of the hardware tree.
type HardwareView struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Sensors     []SensorView     `json:"sensors"`
	Controllers []ControllerView `json:"controllers"`
	Children    []HardwareView   `json:"children"`
}

type SensorView struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

type ControllerView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	SensorID       string   `json:"sensor"`
	Type           string   `json:"type"`
	Unit           string   `json:"unit"`
	Min            float64  `json:"min"`
	Max            float64  `json:"max"`
	CommandedValue *float64 `json:"commandedValue"`
}

// Snapshot copies the tree with its current values. Nil for a nil root.
func Snapshot(root *HardwareItem) *HardwareView {
	if root == nil {
		return nil
	}
	view := snapshot(root)
	return &view
}

func snapshot(h *HardwareItem) HardwareView {
	view := HardwareView{
		ID:          h.id,
		Name:        h.name,
		Sensors:     make([]SensorView, 0, len(h.sensors)),
		Controllers: make([]ControllerView, 0, len(h.controllers)),
		Children:    make([]HardwareView, 0, len(h.children)),
	}
	for _, s := range h.sensors {
		view.Sensors = append(view.Sensors, SensorView{
			ID:    s.id,
			Name:  s.name,
			Type:  s.sensorType,
			Unit:  s.unit,
			Value: s.Value(),
		})
	}
	for _, c := range h.controllers {
		cv := ControllerView{
			ID:   c.id,
			Name: c.Name(),
			Type: c.Type(),
			Unit: c.Unit(),
			Min:  c.min,
			Max:  c.max,
		}
		if c.sensor != nil {
			cv.SensorID = c.sensor.id
		}
		if v, ok := c.CommandedValue(); ok {
			cv.CommandedValue = &v
		}
		view.Controllers = append(view.Controllers, cv)
	}
	for _, child := range h.children {
		view.Children = append(view.Children, snapshot(child))
	}
	return view
}

// AllSensorViews lists the sensors of the view in traversal order.
func (v *HardwareView) AllSensorViews() []SensorView {
	sensors := append([]SensorView{}, v.Sensors...)
	for i := range v.Children {
		sensors = append(sensors, v.Children[i].AllSensorViews()...)
	}
	return sensors
}

// AllControllerViews lists the controllers of the view in traversal order.
func (v *HardwareView) AllControllerViews() []ControllerView {
	controllers := append([]ControllerView{}, v.Controllers...)
	for i := range v.Children {
		controllers = append(controllers, v.Children[i].AllControllerViews()...)
	}
	return controllers
}
