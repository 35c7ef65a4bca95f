// Package web provides the trojan-ui HTTP server: routing, middleware and
// background job scheduling.
package web

import (
	"context"
	"embed"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/trojan-ui/trojan-ui/caching"
	"github.com/trojan-ui/trojan-ui/config"
	"github.com/trojan-ui/trojan-ui/database"
	"github.com/trojan-ui/trojan-ui/logger"
	"github.com/trojan-ui/trojan-ui/sub"
	"github.com/trojan-ui/trojan-ui/util/common"
	"github.com/trojan-ui/trojan-ui/web/controller"
	"github.com/trojan-ui/trojan-ui/web/job"
	"github.com/trojan-ui/trojan-ui/web/locale"
	"github.com/trojan-ui/trojan-ui/web/service"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

//go:embed translation/*
var i18nFS embed.FS

const (
	shutdownTimeout    = 10 * time.Second
	maxLoginFailures   = 5
	loginFailureWindow = 10 * time.Minute
)

// Server represents the trojan-ui web server with its services and scheduled jobs.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	store          database.EntitlementStore
	settingService service.SettingService
	authService    *service.AuthService
	usageService   *service.UsageService
	nodeService    *service.NodeService
	userService    *service.UserService
	subService     *sub.SubService

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new web server instance with a cancellable context.
func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{ctx: ctx, cancel: cancel}
}

// initServices wires the services around the opened database. The link
// renderer, and with it the clash template, is built once here.
func (s *Server) initServices() error {
	s.store = database.DefaultStore()
	renderer, err := service.LoadLinkRenderer(&s.settingService)
	if err != nil {
		return err
	}
	s.authService = &service.AuthService{}
	s.usageService = &service.UsageService{}
	s.nodeService = service.NewNodeService(s.store, s.usageService)
	reconcileService := service.NewReconcileService(s.store, s.usageService)
	s.userService = service.NewUserService(s.store, s.nodeService, reconcileService, s.usageService, renderer)
	s.subService = sub.NewSubService(s.store, renderer)
	return nil
}

// initRouter initializes Gin, registers middleware and controllers and
// returns the configured engine.
func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()
	proxies, err := s.settingService.GetTrustedProxies()
	if err != nil {
		return nil, err
	}
	if err := controller.TrustProxies(engine, proxies); err != nil {
		return nil, err
	}

	// subscription bodies are small and fetched by clients that may not
	// handle compression, so only the panel API is gzipped
	engine.Use(gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/user/", "/node/"}),
	))

	if err := locale.InitLocalizer(i18nFS); err != nil {
		return nil, err
	}
	engine.Use(locale.LocalizerMiddleware())

	g := engine.Group("/")
	controller.NewIndexController(g, s.userService, s.authService, caching.NewLoginLimiter(maxLoginFailures, loginFailureWindow))
	controller.NewAPIController(g, s.authService, s.userService, s.nodeService)
	controller.NewNodeAgentController(g, s.nodeService)
	sub.NewSUBController(g, s.subService)

	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusNotFound)
	})

	return engine, nil
}

// startTask schedules background jobs.
func (s *Server) startTask() error {
	spec, err := s.settingService.GetUsageCheckCron()
	if err != nil {
		return err
	}
	if _, err := s.cron.AddJob(spec, job.NewUsageCheckJob(s.store, s.usageService)); err != nil {
		logger.Errorf("usage check schedule %q invalid, using @every 1m: %v", spec, err)
		if _, err := s.cron.AddJob("@every 1m", job.NewUsageCheckJob(s.store, s.usageService)); err != nil {
			return err
		}
	}
	return nil
}

// Start initializes and starts the web server.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	if err = s.initServices(); err != nil {
		return err
	}

	loc, err := s.settingService.GetTimeLocation()
	if err != nil {
		return err
	}
	s.cron = cron.New(cron.WithLocation(loc), cron.WithSeconds())
	s.cron.Start()

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	listen, err := s.settingService.GetListen()
	if err != nil {
		return err
	}
	port, err := s.settingService.GetPort()
	if err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(listen, strconv.Itoa(port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	logger.Info("Web server running HTTP on", listener.Addr())

	s.listener = listener
	s.httpServer = &http.Server{Handler: engine, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("web server stopped:", err)
		}
	}()

	return s.startTask()
}

// Stop gracefully shuts down the web server and cron jobs.
func (s *Server) Stop() error {
	s.cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	var err1, err2 error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err1 = s.httpServer.Shutdown(ctx)
	}
	if s.listener != nil {
		// Shutdown has usually closed it already.
		if err2 = s.listener.Close(); errors.Is(err2, net.ErrClosed) {
			err2 = nil
		}
	}
	return common.Combine(err1, err2)
}

// GetCtx returns the server's context.
func (s *Server) GetCtx() context.Context { return s.ctx }

// GetCron returns the server's cron scheduler instance.
func (s *Server) GetCron() *cron.Cron { return s.cron }
