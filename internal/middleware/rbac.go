package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/response"
)

// RequireRoles only lets the listed roles through. Ownership checks on
// enrollments happen in the services.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
