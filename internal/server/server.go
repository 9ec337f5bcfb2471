package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/voucherportal/internal/audit"
	auditdomain "github.com/smallbiznis/voucherportal/internal/audit/domain"
	"github.com/smallbiznis/voucherportal/internal/auth"
	authdomain "github.com/smallbiznis/voucherportal/internal/auth/domain"
	"github.com/smallbiznis/voucherportal/internal/auth/session"
	"github.com/smallbiznis/voucherportal/internal/authorization"
	"github.com/smallbiznis/voucherportal/internal/config"
	"github.com/smallbiznis/voucherportal/internal/observability"
	obsmiddleware "github.com/smallbiznis/voucherportal/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/voucherportal/internal/observability/metrics"
	obstracing "github.com/smallbiznis/voucherportal/internal/observability/tracing"
	"github.com/smallbiznis/voucherportal/internal/ratelimit"
	"github.com/smallbiznis/voucherportal/internal/redemption"
	redemptiondomain "github.com/smallbiznis/voucherportal/internal/redemption/domain"
	"github.com/smallbiznis/voucherportal/internal/voucher"
	voucherdomain "github.com/smallbiznis/voucherportal/internal/voucher/domain"
	"github.com/smallbiznis/voucherportal/internal/voucherrecord"
	recorddomain "github.com/smallbiznis/voucherportal/internal/voucherrecord/domain"
	"github.com/smallbiznis/voucherportal/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	auth.Module,
	voucher.Module,
	redemption.Module,
	voucherrecord.Module,
	ratelimit.Module,
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
		IsQuiet:         obsCfg.IsQuietRoute,
	}))
	r.Use(correlation.GinMiddleware())
	r.Use(obstracing.GinMiddleware(obsCfg.IsQuietRoute))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	authsvc    authdomain.Service
	sessions   *session.Manager
	authzSvc   authorization.Service
	auditSvc   auditdomain.Service
	voucherSvc voucherdomain.Service
	redeemSvc  redemptiondomain.Service
	recordSvc  recorddomain.Service
	limiter    *ratelimit.RedeemLimiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Authsvc    authdomain.Service
	Sessions   *session.Manager
	AuthzSvc   authorization.Service
	AuditSvc   auditdomain.Service
	VoucherSvc voucherdomain.Service
	RedeemSvc  redemptiondomain.Service
	RecordSvc  recorddomain.Service
	Limiter    *ratelimit.RedeemLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		authsvc:    p.Authsvc,
		sessions:   p.Sessions,
		authzSvc:   p.AuthzSvc,
		auditSvc:   p.AuditSvc,
		voucherSvc: p.VoucherSvc,
		redeemSvc:  p.RedeemSvc,
		recordSvc:  p.RecordSvc,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerVoucherRoutes()
	svc.registerRedemptionRoutes()
	svc.registerRecordRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.Signup)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerVoucherRoutes() {
	vouchers := s.engine.Group("/vouchers", s.AuthRequired())

	vouchers.GET("", s.requireAction(authorization.ObjectVoucher, authorization.ActionVoucherView), s.ListVouchers)
	vouchers.POST("", s.requireAction(authorization.ObjectVoucher, authorization.ActionVoucherCreate), s.CreateVoucher)
	vouchers.GET("/:id", s.requireAction(authorization.ObjectVoucher, authorization.ActionVoucherView), s.GetVoucher)
	vouchers.PATCH("/:id", s.requireAction(authorization.ObjectVoucher, authorization.ActionVoucherUpdate), s.UpdateVoucher)
	vouchers.DELETE("/:id", s.requireAction(authorization.ObjectVoucher, authorization.ActionVoucherDelete), s.DeleteVoucher)
}

func (s *Server) registerRedemptionRoutes() {
	r := s.engine.Group("/", s.AuthRequired())

	r.POST("/redeem",
		s.requireAction(authorization.ObjectRedemption, authorization.ActionRedemptionRedeem),
		s.RedeemRateLimit(),
		s.Redeem,
	)
	r.GET("/redemptions", s.requireAction(authorization.ObjectRedemption, authorization.ActionRedemptionView), s.ListRedemptions)
}

func (s *Server) registerRecordRoutes() {
	records := s.engine.Group("/api/records", s.AuthRequired())

	records.GET("", s.requireAction(authorization.ObjectVoucherRecord, authorization.ActionVoucherRecordView), s.ListRecords)
	records.POST("", s.requireAction(authorization.ObjectVoucherRecord, authorization.ActionVoucherRecordCreate), s.CreateRecord)
	records.GET("/:id", s.requireAction(authorization.ObjectVoucherRecord, authorization.ActionVoucherRecordView), s.GetRecord)
	records.PATCH("/:id", s.requireAction(authorization.ObjectVoucherRecord, authorization.ActionVoucherRecordUpdate), s.UpdateRecord)
	records.DELETE("/:id", s.requireAction(authorization.ObjectVoucherRecord, authorization.ActionVoucherRecordDelete), s.DeleteRecord)
}

func (s *Server) registerAdminRoutes() {
	s.engine.GET("/audit-logs",
		s.AuthRequired(),
		s.requireAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView),
		s.ListAuditLogs,
	)
}
