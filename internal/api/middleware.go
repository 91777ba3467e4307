package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "investorradar/internal/errors"
	"investorradar/models"
)

const userContextKey = "authedUser"

// bearerToken pulls the API token from the Authorization header, falling
// back to the access_token query parameter for EventSource clients that
// cannot set headers.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("access_token")
}

// requireAuth authenticates the request token and stashes the account on
// the context. Requests without a valid token are rejected with 401.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
				Error: "missing bearer token",
				Code:  apperrors.CodeUnauthorized,
			})
			return
		}
		user, err := s.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			status, code, message := statusFor(err)
			if status == http.StatusInternalServerError {
				s.log.Error("authenticate: %v", err)
			} else {
				status, code, message = http.StatusUnauthorized, apperrors.CodeUnauthorized, "invalid or expired token"
			}
			c.AbortWithStatusJSON(status, errorBody{Error: message, Code: code})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// requireAdmin gates mutating admin routes. Must run after requireAuth.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{
				Error: "administrator role required",
				Code:  apperrors.CodeForbidden,
			})
			return
		}
		c.Next()
	}
}

// currentUser returns the authenticated account, nil when the request
// skipped requireAuth.
func currentUser(c *gin.Context) *models.User {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}

// observeRequests records one counter tick and one latency sample per
// request, labeled by route template rather than raw path so dataset ids
// do not explode the cardinality.
func (s *Server) observeRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
