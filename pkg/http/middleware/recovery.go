package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	"OmniSpectrum/pkg/logger"
)

// Recover turns handler panics into a 500 {error, message} response.
func Recover(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					perr, ok := r.(error)
					if !ok {
						perr = fmt.Errorf("%v", r)
					}
					l.Error("panic recovered", logger.Error(perr), logger.String("stack", string(debug.Stack())))
					err = c.JSON(http.StatusInternalServerError, map[string]string{
						"error":   "Internal Server Error",
						"message": "unexpected failure",
					})
				}
			}()
			return next(c)
		}
	}
}
