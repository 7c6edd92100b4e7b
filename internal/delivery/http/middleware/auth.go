package middleware

import (
	"github.com/budgetloop/optimizer/pkg/errors"
	"github.com/budgetloop/optimizer/pkg/jwt"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the shared service token on every request
// to the core's five operations. There is no end-user/org model left
// to authenticate (spec.md §1) — only whether the caller holds the
// configured secret.
type AuthMiddleware struct {
	jwtManager *jwt.Manager
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(jwtManager *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// Authenticate returns a middleware that validates the service token.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.abortWithError(c, errors.ErrUnauthorized("Missing authorization header"))
			return
		}

		token, err := jwt.ExtractTokenFromHeader(authHeader)
		if err != nil {
			m.abortWithError(c, errors.ErrUnauthorized("Invalid authorization header"))
			return
		}

		if _, err := m.jwtManager.ValidateToken(token); err != nil {
			if jwt.IsTokenExpired(err) {
				m.abortWithError(c, errors.ErrUnauthorized("Token has expired"))
				return
			}
			m.abortWithError(c, errors.ErrUnauthorized("Invalid token"))
			return
		}

		c.Next()
	}
}

// abortWithError aborts the request with an error response.
func (m *AuthMiddleware) abortWithError(c *gin.Context, err *errors.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus, gin.H{
		"error": gin.H{
			"code":    err.Code,
			"message": err.Message,
		},
	})
}
