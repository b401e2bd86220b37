package hardware

import (
	"context"
	"math/rand/v2"

	"github.com/tuupertunut/fanning/internal/core/domain"
	"github.com/tuupertunut/fanning/internal/core/port"

	cmap "github.com/orcaman/concurrent-map/v2"
)

const (
	mockValueMin = 30.0
	mockValueMax = 50.0
)

// MockBackend simulates hardware. On refresh a sensor driven by a controlled
// controller follows the commanded value, a pinned sensor keeps its pinned
// value and any other sensor reads a random value in [30, 50).
type MockBackend struct {
	root   *domain.HardwareItem
	pinned cmap.ConcurrentMap[string, float64]
	random func() float64
}

func NewMockBackend(root *domain.HardwareItem) *MockBackend {
	return &MockBackend{
		root:   root,
		pinned: cmap.New[float64](),
		random: func() float64 {
			return mockValueMin + rand.Float64()*(mockValueMax-mockValueMin)
		},
	}
}

// NewDefaultMockBackend returns a backend with two hardware items under a
// computer root.
func NewDefaultMockBackend() *MockBackend {
	return NewMockBackend(DefaultMockTree())
}

func DefaultMockTree() *domain.HardwareItem {
	sa := domain.NewSensor("sa", "sensor a", "Temperature", "°C", 0)
	sb := domain.NewSensor("sb", "sensor b", "Temperature", "°C", 0)
	sc := domain.NewSensor("sc", "sensor c", "Voltage", "V", 0)
	ca := domain.NewController("ca", sc, 30, 50)
	ha := domain.NewHardwareItem("ha", "hardware a",
		[]*domain.Sensor{sa, sb, sc}, []*domain.Controller{ca}, nil)

	sd := domain.NewSensor("sd", "sensor d", "Fan speed", "RPM", 0)
	se := domain.NewSensor("se", "sensor e", "Voltage", "V", 0)
	cb := domain.NewController("cb", sd, 300, 1000)
	hb := domain.NewHardwareItem("hb", "hardware b",
		[]*domain.Sensor{sd, se}, []*domain.Controller{cb}, nil)

	return domain.NewHardwareItem("c", "computer", nil, nil, []*domain.HardwareItem{ha, hb})
}

func (b *MockBackend) Root() *domain.HardwareItem {
	return b.root
}

// Pin fixes the value a sensor reads on refresh, unless a controller drives it.
func (b *MockBackend) Pin(sensorID string, value float64) {
	b.pinned.Set(sensorID, value)
}

func (b *MockBackend) Unpin(sensorID string) {
	b.pinned.Remove(sensorID)
}

func (b *MockBackend) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	driven := make(map[*domain.Sensor]float64)
	for _, c := range domain.AllControllers(b.root) {
		if v, ok := c.CommandedValue(); ok && c.Sensor() != nil {
			driven[c.Sensor()] = v
		}
	}

	for _, s := range domain.AllSensors(b.root) {
		if v, ok := driven[s]; ok {
			s.SetValue(v)
		} else if v, ok := b.pinned.Get(s.ID()); ok {
			s.SetValue(v)
		} else {
			s.SetValue(b.random())
		}
	}
	return nil
}

var _ port.HardwareBackend = (*MockBackend)(nil)
