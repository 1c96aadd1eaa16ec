package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/apprenticeship-hours-api/internal/service"
)

// AuditContext stamps the client address and user agent onto the request
// context so audit records written further down carry them.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithRequestInfo(c.Request.Context(), c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
