package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/sift/internal/store"
)

// SubscribeHandler manages digest recipients.
type SubscribeHandler struct {
	Store *store.Store
}

func (h *SubscribeHandler) Register(g *echo.Group) {
	g.POST("/subscribe", h.subscribe)
	g.POST("/unsubscribe", h.unsubscribe)
}

type subscribeRequest struct {
	Phone string `json:"phone"`
}

func (h *SubscribeHandler) subscribe(c echo.Context) error {
	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	phone := normalizePhone(req.Phone)
	if phone == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone is required")
	}
	rcpt, err := h.Store.UpsertRecipient(c.Request().Context(), phone)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rcpt)
}

func (h *SubscribeHandler) unsubscribe(c echo.Context) error {
	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	phone := normalizePhone(req.Phone)
	if phone == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone is required")
	}
	if err := h.Store.SetOptIn(c.Request().Context(), phone, false); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "unsubscribed"})
}

// normalizePhone strips whitespace and hyphens so stored numbers are
// comparable regardless of how the client formats them.
func normalizePhone(phone string) string {
	r := strings.NewReplacer(" ", "", "-", "", "\t", "")
	return r.Replace(strings.TrimSpace(phone))
}
