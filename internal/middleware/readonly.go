package middleware

import (
	"net/http"

	"github.com/GoPolymarket/fundgate/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

// ReadOnlyMiddleware rejects every mutating request while the registry is
// frozen. Dry-run validation and digest computation stay available.
func ReadOnlyMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled || isSafeRequest(c) {
			c.Next()
			return
		}
		c.Error(apperrors.New(apperrors.ErrReadOnly, "read-only mode enabled", nil))
		c.Abort()
	}
}

// WriterMiddleware rejects writes from read-only operators.
func WriterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeRequest(c) {
			c.Next()
			return
		}
		if op, ok := GetOperator(c); ok && op.ReadOnly {
			c.Error(apperrors.New(apperrors.ErrForbidden, "operator is read-only", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}

func isSafeRequest(c *gin.Context) bool {
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	switch c.FullPath() {
	case "/v1/funds/validate", "/v1/funds/:address/digest", "/v1/funds/:address/quote":
		return true
	}
	return false
}
