package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// JSONResponse writes v as JSON with the given status.
func JSONResponse(c echo.Context, status int, v interface{}) error {
	return c.JSON(status, v)
}

// RawJSONResponse writes pre-encoded JSON untouched.
func RawJSONResponse(c echo.Context, status int, raw []byte) error {
	return c.Blob(status, echo.MIMEApplicationJSONCharsetUTF8, raw)
}

// AppErrorResponse writes err as {error, message}. Errors that are not
// AppErrors become a generic 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.JSON(appErr.Status, appErr)
	}
	return c.JSON(http.StatusInternalServerError, InternalError("Internal Server Error", "Something went wrong"))
}
