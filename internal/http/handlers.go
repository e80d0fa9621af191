package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/growth"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/memory"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/pipeline"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/services"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/store"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: s.config.Service})
}

// handleCreatePlan runs the pipeline for the posted PlanRequest.
func (s *Server) handleCreatePlan(c echo.Context) error {
	var req growth.PlanRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid plan request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}

	res, err := s.planner.CreatePlan(c.Request().Context(), req)
	if err != nil {
		return s.planError(c, res, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (s *Server) handleListPlans(c echo.Context) error {
	plans, err := s.planner.ListPlans(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	if plans == nil {
		plans = []*store.PlanRecord{}
	}
	return c.JSON(http.StatusOK, plans)
}

func (s *Server) handleSummary(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	plans, err := s.planner.ListPlans(ctx, id)
	if err != nil {
		return s.errorResponse(c, err)
	}
	mem, err := s.planner.Memory(ctx, id)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, Summarize(id, plans, mem))
}

func (s *Server) handleMemory(c echo.Context) error {
	rec, err := s.planner.Memory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleRecordFailure(c echo.Context) error {
	var req FailureRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}
	rec, err := s.planner.RecordFailure(c.Request().Context(), c.Param("id"), req.Experiment)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleUpdateExperiment(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "experiment id must be a positive integer"})
	}

	var req OutcomeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}

	out, err := s.planner.UpdateExperimentResult(c.Request().Context(), id, req.Status, req.ObservedResult)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// planError reports a failed plan request. Pipeline failures include the
// failing stage and the partial audit trail.
func (s *Server) planError(c echo.Context, res *services.PlanResult, err error) error {
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		return s.errorResponse(c, err)
	}

	status := statusFor(err)
	body := ErrorResponse{Message: err.Error(), Stage: stageErr.Stage}
	if res != nil {
		body.Audit = res.Audit
	}
	s.logger.Error(c.Request().Context(), "plan request failed",
		zap.String("stage", stageErr.Stage), zap.Error(err))
	return c.JSON(status, body)
}

func (s *Server) errorResponse(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed", zap.Error(err))
		return c.JSON(status, ErrorResponse{Message: http.StatusText(status)})
	}
	return c.JSON(status, ErrorResponse{Message: err.Error()})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, memory.ErrEmptyBusinessID),
		errors.Is(err, memory.ErrEmptyExperiment):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrExperimentNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, memory.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
