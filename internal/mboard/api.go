// Package mboard is the HTTP surface of the task board: gin routes over the
// rules engine, plus the WebSocket endpoint that streams change events.
package mboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/michae-lzhou/Task-Board/internal/events"
	"github.com/michae-lzhou/Task-Board/internal/logging"
	"github.com/michae-lzhou/Task-Board/internal/realtime"
	"github.com/michae-lzhou/Task-Board/internal/rules"
	"github.com/michae-lzhou/Task-Board/internal/store"
	"github.com/michae-lzhou/Task-Board/internal/store/memory"
	"github.com/michae-lzhou/Task-Board/internal/store/postgres"
	"github.com/michae-lzhou/Task-Board/internal/utils"
)

type Server struct {
	config     Config
	logger     *zap.Logger
	store      store.Store
	rules      *rules.Engine
	hub        *realtime.Hub
	dispatcher events.Multi
	engine     *gin.Engine
}

// NewServer wires the routes over st. Events go to the WebSocket hub and
// then to each of extra.
func NewServer(config Config, st store.Store, logger *zap.Logger, extra ...events.Dispatcher) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	hub := realtime.NewHub(realtime.Options{
		AllowedOrigins: config.AllowedOrigins,
		SendBuffer:     config.WSSendBuffer,
	}, logger)

	s := &Server{
		config:     config,
		logger:     logger.Named("api"),
		store:      st,
		rules:      rules.New(logger),
		hub:        hub,
		dispatcher: append(events.Multi{hub}, extra...),
		engine:     gin.New(),
	}

	s.engine.Use(
		logging.RequestID(),
		logging.RequestLogger(logger.Named("http")),
		logging.Recovery(logger),
	)
	s.setCors()
	s.setRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setCors() {
	corsconfig := cors.DefaultConfig()
	if utils.Contains(s.config.AllowedOrigins, "*") {
		corsconfig.AllowAllOrigins = true
	} else {
		corsconfig.AllowOrigins = s.config.AllowedOrigins
	}
	corsconfig.AllowMethods = s.config.AllowedMethods
	corsconfig.AllowHeaders = s.config.AllowedHeaders
	corsconfig.ExposeHeaders = []string{logging.RequestIDHeader}
	corsconfig.MaxAge = 12 * time.Hour
	s.engine.Use(cors.New(corsconfig))
}

func (s *Server) setRoutes() {
	root := s.engine.Group("/")
	{
		root.GET("/", rootHandler)
		root.GET("/healthz", healthHandler)
		root.GET("/ws", s.hub.ServeWS)
	}

	projects := root.Group("/projects")
	{
		projects.POST("", s.createProjectHandler)
		projects.GET("", s.listProjectsHandler)
		projects.GET("/:project_id", s.getProjectHandler)
		projects.PUT("/:project_id", s.renameProjectHandler)
		projects.DELETE("/:project_id", s.deleteProjectHandler)
		projects.POST("/:project_id/add-member", s.addMemberByIdentityHandler)
		projects.POST("/:project_id/remove-member", s.removeMemberByIdentityHandler)
		projects.POST("/:project_id/members", s.addMemberHandler)
		projects.DELETE("/:project_id/members/:user_id", s.removeMemberHandler)
		projects.GET("/:project_id/tasks", s.projectTasksHandler)
		projects.GET("/:project_id/users", s.projectUsersHandler)
	}

	tasks := root.Group("/tasks")
	{
		tasks.POST("", s.createTaskHandler)
		tasks.GET("/:task_id", s.getTaskHandler)
		tasks.PUT("/:task_id", s.updateTaskHandler)
		tasks.DELETE("/:task_id", s.deleteTaskHandler)
	}

	users := root.Group("/users")
	{
		users.POST("", s.createUserHandler)
		users.GET("", s.listUsersHandler)
		users.GET("/:user_id", s.getUserHandler)
		users.DELETE("/:user_id", s.deleteUserHandler)
	}
}

func openStore(ctx context.Context, config Config, logger *zap.Logger) (store.Store, error) {
	if config.Store == storeMemory {
		logger.Warn("using the in-memory store, data is lost on exit")
		return memory.New(), nil
	}

	dsn := postgres.DSN(config.DBUser, config.DBPassword, config.DBAddress, config.DBName, config.DBSSLMode)
	if config.AutoMigrate {
		logger.Info("executing migrations...")
		if err := postgres.RunMigrations(dsn, logger); err != nil {
			return nil, err
		}
	}
	return postgres.New(ctx, postgres.Options{DSN: dsn, MaxConns: int32(config.DBMaxConns)}, logger)
}

// InitAndServe loads the config at confPath, serves until SIGINT or SIGTERM
// and then shuts down gracefully.
func InitAndServe(confPath string) error {
	config, err := loadConfig(confPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(config.Profile, config.Verbose)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info(config.toString())
	setGinMode(config.ApiGinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", config.Store, err)
	}
	defer st.Close()

	s := NewServer(config, st, logger)

	if config.RedisAddress != "" {
		rc, err := realtime.NewRedisClient(ctx, realtime.RedisOptions{
			Address:  config.RedisAddress,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		if err != nil {
			return err
		}

		bridge := realtime.NewBridge(rc, config.RedisChannel, s.hub, logger)
		s.dispatcher = append(s.dispatcher, bridge)
		wait := startRelay(ctx, bridge, logger)
		// the subscription must unwind before its client goes away
		defer func() {
			stop()
			wait()
			_ = rc.Close()
		}()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", config.Ip, config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second * 5,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	stop()
	logger.Info("shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	s.hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exiting")
	return nil
}

type relay interface {
	Run(ctx context.Context) error
}

// startRelay runs r until ctx is done. The returned func blocks until Run
// has returned.
func startRelay(ctx context.Context, r relay, logger *zap.Logger) func() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := r.Run(ctx); err != nil {
			logger.Error("event relay stopped", zap.Error(err))
		}
	}()
	return func() { <-done }
}

func setGinMode(mode string) {
	switch strings.ToLower(mode) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
}
