package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/voucherportal/internal/audit/domain"
	authdomain "github.com/smallbiznis/voucherportal/internal/auth/domain"
	"github.com/smallbiznis/voucherportal/internal/observability/logger"
	"go.uber.org/zap"
)

type signupRequest struct {
	Username             string `json:"username"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type loginRequest struct {
	// Login is a username or an email address.
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Signup creates a regular account and logs it in.
func (s *Server) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.authsvc.Signup(c.Request.Context(), authdomain.SignupRequest{
		Username:             req.Username,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Login:     user.Username,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	login := strings.TrimSpace(req.Login)
	result, err := s.authsvc.Login(ctx, authdomain.LoginRequest{
		Login:     login,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		if auditErr := s.auditSvc.AuditLog(ctx, auditdomain.Entry{
			ActorType:  string(auditdomain.ActorTypeUser),
			Action:     "user.login_failed",
			TargetType: "user",
			Metadata:   map[string]any{"login": login},
		}); auditErr != nil {
			logger.FromContext(ctx).Warn("login audit failed", zap.Error(auditErr))
		}
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)

	if err := s.auditSvc.AuditLog(ctx, auditdomain.Entry{
		ActorType:  string(auditdomain.ActorTypeUser),
		ActorID:    result.User.ID,
		Action:     "user.login",
		TargetType: "user",
		TargetID:   result.User.ID,
	}); err != nil {
		logger.FromContext(ctx).Warn("login audit failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) Logout(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.authsvc.Logout(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": authdomain.NewUserView(user)})
}
