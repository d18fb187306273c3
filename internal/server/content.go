package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/sift/internal/store"
	"github.com/mohammad-safakhou/sift/models"
)

// ContentHandler exposes the read-only dashboard endpoints.
type ContentHandler struct {
	Store *store.Store
}

func (h *ContentHandler) Register(g *echo.Group) {
	g.GET("/stats", h.stats)
	g.GET("/content", h.list)
	g.GET("/content/:id", h.detail)
}

func (h *ContentHandler) stats(c echo.Context) error {
	stats, err := h.Store.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *ContentHandler) list(c echo.Context) error {
	filter := c.QueryParam("status")
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	items, err := h.Store.ListItems(c.Request().Context(), filter, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items, "count": len(items)})
}

func (h *ContentHandler) detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	item, err := h.Store.GetItem(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrItemNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "content item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, item)
}
