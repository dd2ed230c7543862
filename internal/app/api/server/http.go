package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/matchpay/docs"
	"github.com/fatflowers/matchpay/internal/app/api/handlers"
	mw "github.com/fatflowers/matchpay/internal/app/api/middleware"
	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/internal/app/service/payment"
	"github.com/fatflowers/matchpay/internal/app/service/statistics"
	"github.com/fatflowers/matchpay/internal/app/service/webhook"
	cfgpkg "github.com/fatflowers/matchpay/pkg/config"
	metrics "github.com/fatflowers/matchpay/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeDeps struct {
	fx.In

	Log      *zap.SugaredLogger
	Cfg      *cfgpkg.Config
	Payments *payment.Service
	Gate     *webhook.Gate
	Repo     repository.Repository
	Stats    *statistics.Service
}

func registerRoutes(lc fx.Lifecycle, r *gin.Engine, d routeDeps) {
	log := d.Log
	// Prometheus metrics
	if d.Cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{Logger: log})
		r.Use(p.HandlerFunc())
		serve(lc, log, "metrics", &http.Server{Addr: d.Cfg.MetricsAddr, Handler: p.Router(), ReadHeaderTimeout: 5 * time.Second})
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))

	// Caller RPCs
	pay := apiV1.Group("/payment")
	pay.Use(mw.AuthRequired(d.Cfg, log))
	handlers.RegisterPaymentRoutes(pay, d.Payments, log)

	// Gateway callbacks authenticate by signature
	handlers.RegisterWebhookRoutes(apiV1.Group("/webhook"), d.Gate, log)

	// Admin payment APIs
	handlers.RegisterAdminPaymentRoutes(apiV1.Group("/admin"), d.Repo, d.Stats, log)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	serve(lc, log, "http", &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second})
}

func serve(lc fx.Lifecycle, log *zap.SugaredLogger, name string, srv *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting server", "name", name, "addr", srv.Addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("%s server error: %v", name, err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping server", "name", name)
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
