package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tuupertunut/fanning/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const requestTimeout = 10 * time.Second

type curvePayload struct {
	SensorID     string           `json:"sensor"`
	ChangePoints []domain.Mapping `json:"changePoints"`
}

type versionResponse struct {
	Version    string    `json:"version"`
	Revision   string    `json:"revision"`
	LastCommit time.Time `json:"lastCommit"`
	DirtyBuild bool      `json:"dirtyBuild"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/version", s.VersionHandler)
	if s.metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}

	api := e.Group("/api")
	api.GET("/hardware", s.GetHardwareHandler)
	api.GET("/curves", s.GetCurvesHandler)
	api.PUT("/curves/:controller", s.PutCurveHandler)
	api.DELETE("/curves/:controller", s.DeleteCurveHandler)
	api.POST("/curves/store", s.StoreCurvesHandler)
	api.POST("/curves/load", s.LoadCurvesHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, requestTimeout).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) VersionHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, versionResponse{
		Version:    versioninfo.Version,
		Revision:   versioninfo.Revision,
		LastCommit: versioninfo.LastCommit,
		DirtyBuild: versioninfo.DirtyBuild,
	})
}

func (s *Server) GetHardwareHandler(c echo.Context) error {
	resp, err := ask[domain.GetHardwareResponse](s, domain.GetHardwareRequest{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp.Root)
}

func (s *Server) GetCurvesHandler(c echo.Context) error {
	resp, err := ask[domain.GetCurvesResponse](s, domain.GetCurvesRequest{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp.Curves)
}

func (s *Server) PutCurveHandler(c echo.Context) error {
	var payload curvePayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid curve").SetInternal(err)
	}
	resp, err := ask[domain.PutCurveResponse](s, domain.PutCurveRequest{
		Spec: domain.CurveSpec{
			SensorID:     payload.SensorID,
			ControllerID: c.Param("controller"),
			ChangePoints: payload.ChangePoints,
		},
	})
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if resp.Replaced {
		status = http.StatusOK
	}
	return c.JSON(status, map[string]bool{"replaced": resp.Replaced})
}

func (s *Server) DeleteCurveHandler(c echo.Context) error {
	resp, err := ask[domain.DeleteCurveResponse](s, domain.DeleteCurveRequest{
		ControllerID: c.Param("controller"),
	})
	if err != nil {
		return err
	}
	if !resp.Removed {
		return echo.NewHTTPError(http.StatusNotFound, "no curve for controller")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) StoreCurvesHandler(c echo.Context) error {
	if _, err := ask[domain.StoreCurvesResponse](s, domain.StoreCurvesRequest{}); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) LoadCurvesHandler(c echo.Context) error {
	resp, err := ask[domain.LoadCurvesResponse](s, domain.LoadCurvesRequest{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"count": resp.Count})
}

// ask sends a control request through the master actor and maps failures to
// HTTP errors.
func ask[T domain.ActorResponse](s *Server, req domain.ControlRequest) (T, error) {
	var zero T
	res, err := s.rootContext.RequestFuture(s.masterActor, req, requestTimeout).Result()
	if err != nil {
		return zero, echo.NewHTTPError(http.StatusServiceUnavailable, "control unavailable").SetInternal(err)
	}
	resp, ok := res.(T)
	if !ok {
		return zero, echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("unexpected response %T", res))
	}
	if resp.HasResponseError() {
		return zero, httpError(resp.GetResponseError())
	}
	return resp, nil
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error()).SetInternal(err)
	case errors.Is(err, domain.ErrMalformedData), errors.Is(err, domain.ErrInvalidBreakpoint):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
}
