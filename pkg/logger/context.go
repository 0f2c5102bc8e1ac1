package logger

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// FromContext retrieves the request-scoped logger from the Echo context,
// falling back to the global logger when middleware has not set one.
func FromContext(c echo.Context) *zap.Logger {
	if l, ok := c.Get("logger").(*zap.Logger); ok {
		return l
	}
	return GetLogger()
}
