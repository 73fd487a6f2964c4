package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wayfarer/apperr"
	"wayfarer/logger"
)

type errorBody struct {
	*apperr.Error
	Stack string `json:"stack,omitempty"`
}

// ErrorHandler renders the last error a handler attached with c.Error.
// Outside production the response carries the wrapped error chain.
func ErrorHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		appErr := apperr.Translate(err)

		if appErr.Status >= 500 {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}

		body := errorBody{Error: appErr}
		if !production {
			body.Stack = fmt.Sprintf("%+v", err)
		}
		c.AbortWithStatusJSON(appErr.Status, body)
	}
}
