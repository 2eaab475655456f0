package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/trilha/internal/interfaces/rest/handler"
	"go.uber.org/zap"
)

// ErrorHandlingOption options for error handling
type ErrorHandlingOption struct {
	Logger *zap.Logger // receives unexpected errors and recovered panics
}

// ErrorHandling turn errors and panics escaping the handlers into RESTStandardError bodies,
// the request id travels as trace_id. Nothing behind it sees a returned error.
func ErrorHandling(options ...*ErrorHandlingOption) echo.MiddlewareFunc {
	logger := zap.NewNop()
	if len(options) > 0 && options[0].Logger != nil {
		logger = options[0].Logger
	}
	unexpected := func(c echo.Context, err error) {
		traceID := writeError(c, http.StatusInternalServerError, err.Error())
		logger.Error(err.Error(), zap.String("trace.id", traceID),
			zap.String("url.path", c.Request().RequestURI),
			zap.String("http.request.method", c.Request().Method))
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					err, ok := r.(error)
					if !ok {
						err = fmt.Errorf("%v", r)
					}
					unexpected(c, err)
				}
			}()

			err := next(c)
			if err == nil {
				return nil
			}
			if he, ok := err.(*echo.HTTPError); ok {
				detail := ""
				if msg, ok := he.Message.(string); ok && msg != http.StatusText(he.Code) {
					detail = msg
				}
				writeError(c, he.Code, detail)
				return nil
			}
			unexpected(c, err)
			return nil
		}
	}
}

func writeError(c echo.Context, code int, detail string) (traceID string) {
	traceID = c.Response().Header().Get(echo.HeaderXRequestID)
	if !c.Response().Committed {
		c.JSON(code, handler.NewRESTStandardError(code, detail).SetTraceID(traceID))
	}
	return traceID
}
