package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cast"
)

const requestTimeout = 10 * time.Second

type commandBody struct {
	Command string `json:"command"`
	// Value is passed to the entity as text, numbers are accepted too.
	Value any `json:"value"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	e.GET("/ws", s.WebSocketHandler)

	api := e.Group("/api")
	api.GET("/devices", s.DevicesHandler)
	api.GET("/devices/:id", s.DeviceStateHandler)
	api.POST("/devices/:id/entities/:attr/commands", s.EntityCommandHandler)
	api.POST("/discovery/republish", s.RepublishDiscoveryHandler)

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

func (s *Server) DevicesHandler(c echo.Context) error {
	res, err := s.request(domain.GetDevicesRequest{})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, res.(domain.GetDevicesResponse).Devices)
}

func (s *Server) DeviceStateHandler(c echo.Context) error {
	res, err := s.request(domain.GetDeviceStateRequest{DeviceId: c.Param("id")})
	if err != nil {
		return errorResponse(c, err)
	}
	state := res.(domain.GetDeviceStateResponse)
	return c.JSON(http.StatusOK, map[string]any{
		"device":    state.Device,
		"transport": state.Transport,
		"entities":  state.Entities,
	})
}

func (s *Server) EntityCommandHandler(c echo.Context) error {
	var body commandBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	kind, err := domain.ParseCommandKind(body.Command)
	if err != nil {
		return errorResponse(c, err)
	}
	value := ""
	if body.Value != nil {
		if value, err = cast.ToStringE(body.Value); err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		}
	}
	res, err := s.request(domain.EntityCommandRequest{Command: domain.EntityCommand{
		DeviceId: c.Param("id"),
		Attr:     c.Param("attr"),
		Kind:     kind,
		Value:    value,
	}})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, res.(domain.EntityCommandResponse).Snapshot)
}

func (s *Server) RepublishDiscoveryHandler(c echo.Context) error {
	if _, err := s.request(domain.RepublishDiscoveryRequest{}); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// request asks the master actor and unwraps error responses.
func (s *Server) request(msg any) (domain.ActorResponse, error) {
	res, err := s.rootContext.RequestFuture(s.masterActor, msg, requestTimeout).Result()
	if err != nil {
		return nil, err
	}
	resp, ok := res.(domain.ActorResponse)
	if !ok {
		return nil, errors.New("unexpected response")
	}
	if resp.HasResponseError() {
		return resp, resp.GetResponseError()
	}
	return resp, nil
}

func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownDevice), errors.Is(err, domain.ErrUnknownEntity):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedCommand), errors.Is(err, domain.ErrInvalidCommandValue):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSendFailed):
		status = http.StatusBadGateway
	}
	return c.JSON(status, errorBody{Error: err.Error()})
}
