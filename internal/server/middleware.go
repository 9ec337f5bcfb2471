package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/voucherportal/internal/audit/domain"
	authdomain "github.com/smallbiznis/voucherportal/internal/auth/domain"
	obscontext "github.com/smallbiznis/voucherportal/internal/observability/context"
)

const (
	contextUserKey   = "current_user"
	contextUserIDKey = "user_id"
)

// AuthRequired resolves the session cookie to an active user and attaches
// it to the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		session, err := s.authsvc.Authenticate(ctx, token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		user, err := s.authsvc.GetUser(ctx, session.UserID)
		if err != nil {
			if errors.Is(err, authdomain.ErrUserNotFound) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}
		if !user.IsActive {
			AbortWithError(c, authdomain.ErrUserInactive)
			return
		}

		c.Set(contextUserKey, user)
		c.Set(contextUserIDKey, user.ID.String())
		c.Request = c.Request.WithContext(obscontext.WithActor(ctx, string(auditdomain.ActorTypeUser), user.ID.String()))
		c.Next()
	}
}

func currentUser(c *gin.Context) (*authdomain.User, bool) {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*authdomain.User)
	return user, ok && user != nil
}

func (s *Server) requireAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}

		if err := s.authzSvc.Authorize(c.Request.Context(), user, strings.TrimSpace(object), strings.TrimSpace(action)); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
