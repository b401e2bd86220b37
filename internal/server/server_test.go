package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	adactor "github.com/tuupertunut/fanning/internal/adapter/actor"
	"github.com/tuupertunut/fanning/internal/adapter/hardware"
	"github.com/tuupertunut/fanning/internal/adapter/storage"
	coreactor "github.com/tuupertunut/fanning/internal/core/actor"
	"github.com/tuupertunut/fanning/internal/core/domain"
	"github.com/tuupertunut/fanning/internal/core/service"
	"github.com/tuupertunut/fanning/internal/metrics"
	"github.com/tuupertunut/fanning/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	cfg := util.LoadTestConfig()
	cfg.MQTT.Enable = false
	logger := zap.Must(zap.NewDevelopment())

	es := &eventstream.EventStream{}
	m := metrics.New()
	backend := hardware.NewDefaultMockBackend()
	store := storage.NewJSONCurveStore(filepath.Join(t.TempDir(), "fanCurves.json"), backend, logger)
	svc := service.NewControlService(backend, store, logger, service.WithEventStream(es), service.WithMetrics(m))

	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)

	props := actor.PropsFromProducer(func() actor.Actor {
		return coreactor.NewMasterOfPuppetsActor(cfg, es, func() *coreactor.ControlActor {
			return coreactor.NewControlActor(&cfg, svc, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, logger)
		}, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)

	s := &Server{
		rootContext:    as.Root,
		masterActor:    pid,
		metricsHandler: m.Handler(),
	}
	return s.RegisterRoutes()
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {

	h := newTestHandler(t)

	assert.Eventually(t, func() bool {
		return do(h, http.MethodGet, "/healthcheck", "").Code == http.StatusOK
	}, 5*time.Second, 100*time.Millisecond)

	rec := do(h, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "revision")
}

func TestCurveRoutes(t *testing.T) {

	require := require.New(t)
	h := newTestHandler(t)

	rec := do(h, http.MethodPut, "/api/curves/ca", `{"sensor":"sa","changePoints":[{"key":40,"value":30},{"key":60,"value":50}]}`)
	require.Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(h, http.MethodPut, "/api/curves/ca", `{"sensor":"sb","changePoints":[{"key":40,"value":35}]}`)
	require.Equal(http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"replaced":true}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/api/curves", "")
	require.Equal(http.StatusOK, rec.Code)
	var specs []domain.CurveSpec
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &specs))
	require.Len(specs, 1)
	assert.Equal(t, "sb", specs[0].SensorID)
	assert.Equal(t, "ca", specs[0].ControllerID)

	rec = do(h, http.MethodPut, "/api/curves/unknown", `{"sensor":"sa","changePoints":[]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodPut, "/api/curves/ca", `{"sensor":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/curves/store", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodDelete, "/api/curves/ca", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(h, http.MethodDelete, "/api/curves/ca", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodPost, "/api/curves/load", "")
	require.Equal(http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())
}

func TestHardwareAndMetricsRoutes(t *testing.T) {

	h := newTestHandler(t)

	rec := do(h, http.MethodGet, "/api/hardware", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var root domain.HardwareView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &root))
	assert.Equal(t, "c", root.ID)
	assert.Len(t, root.AllSensorViews(), 5)

	// cycles run on the schedule and are counted
	assert.Eventually(t, func() bool {
		return strings.Contains(do(h, http.MethodGet, "/metrics", "").Body.String(), `fanning_update_cycles_total{result="ok"}`)
	}, 3*time.Second, 100*time.Millisecond)
}
