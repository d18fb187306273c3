package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/sift/internal/pipeline"
	"github.com/mohammad-safakhou/sift/internal/store"
)

// RunsHandler triggers pipeline runs and lists their history.
type RunsHandler struct {
	Store    *store.Store
	Pipeline *pipeline.Pipeline
}

func (h *RunsHandler) Register(g *echo.Group) {
	g.POST("/pipeline/run", h.trigger)
	g.GET("/runs", h.list)
}

func (h *RunsHandler) trigger(c echo.Context) error {
	// fire and forget; run history records the outcome
	go func() {
		if err := h.Pipeline.Run(context.Background(), "manual"); err != nil {
			if errors.Is(err, pipeline.ErrAlreadyRunning) {
				log.Printf("[HTTP] manual trigger skipped: run already in progress")
				return
			}
			log.Printf("[HTTP] manual pipeline run failed: %v", err)
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *RunsHandler) list(c echo.Context) error {
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	runs, err := h.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"runs": runs})
}
