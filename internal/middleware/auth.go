package middleware

import (
	"github.com/GoPolymarket/fundgate/internal/config"
	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/GoPolymarket/fundgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/fundgate/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	HeaderAPIKey       = "X-Api-Key"
	ContextOperatorKey = "operator"
)

func AuthMiddleware(cfg *config.Config, reg *service.OperatorRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderAPIKey)
		if apiKey == "" {
			if cfg != nil && !cfg.Auth.RequireAPIKey {
				if op := reg.Default(); op != nil {
					c.Set(ContextOperatorKey, op)
					c.Next()
					return
				}
			}
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "missing API key", nil))
			c.Abort()
			return
		}

		op, ok := reg.ByAPIKey(apiKey)
		if !ok {
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "invalid API key", nil))
			c.Abort()
			return
		}
		c.Set(ContextOperatorKey, op)
		c.Next()
	}
}

// GetOperator returns the operator AuthMiddleware attached to c.
func GetOperator(c *gin.Context) (*model.Operator, bool) {
	val, exists := c.Get(ContextOperatorKey)
	if !exists {
		return nil, false
	}
	op, ok := val.(*model.Operator)
	return op, ok && op != nil
}
