package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is probed by load balancers and monitoring. Plain "ok", 200.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
