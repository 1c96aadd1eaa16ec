package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// TokenValidator turns a bearer token into claims.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT rejects requests without a valid bearer token and stores the caller's
// claims under ContextUserKey. The user id is also exposed as "user_id" for
// request logging.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var claims *models.JWTClaims
			if claims, err = validator.ValidateToken(token); err == nil {
				c.Set(ContextUserKey, claims)
				c.Set("user_id", claims.UserID)
				c.Next()
				return
			}
		}
		response.Error(c, err)
		c.Abort()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return token, nil
}
