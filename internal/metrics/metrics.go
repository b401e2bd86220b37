package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the collectors of the control loop on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	sensorValue     *prometheus.GaugeVec
	commandedValue  *prometheus.GaugeVec
	controllerState *prometheus.GaugeVec
	curves          prometheus.Gauge
	modbusRequest   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanning_update_cycles_total",
				Help: "Update cycles by result.",
			},
			[]string{"result"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fanning_update_cycle_duration_seconds",
				Help:    "Duration of an update cycle.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
		),
		sensorValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fanning_sensor_value",
				Help: "Last sensor reading.",
			},
			[]string{"sensor"},
		),
		commandedValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fanning_controller_commanded_value",
				Help: "Commanded value of a controlled controller.",
			},
			[]string{"controller"},
		),
		controllerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fanning_controller_controlled",
				Help: "1 if the controller has a commanded value, 0 otherwise.",
			},
			[]string{"controller"},
		),
		curves: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fanning_curves",
				Help: "Number of curves in the collection.",
			},
		),
		modbusRequest: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fanning_modbus_request_duration_seconds",
				Help:    "Duration of a modbus register request.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
			},
			[]string{"op"},
		),
	}
	m.registry.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.sensorValue,
		m.commandedValue,
		m.controllerState,
		m.curves,
		m.modbusRequest,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCycle(d time.Duration, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) SetSensorValue(id string, v float64) {
	m.sensorValue.WithLabelValues(id).Set(v)
}

func (m *Metrics) SetCommandedValue(id string, v float64, controlled bool) {
	if controlled {
		m.commandedValue.WithLabelValues(id).Set(v)
		m.controllerState.WithLabelValues(id).Set(1)
		return
	}
	m.commandedValue.DeleteLabelValues(id)
	m.controllerState.WithLabelValues(id).Set(0)
}

func (m *Metrics) SetCurveCount(n int) {
	m.curves.Set(float64(n))
}

func (m *Metrics) ObserveModbusRequest(op string, d time.Duration) {
	m.modbusRequest.WithLabelValues(op).Observe(d.Seconds())
}
