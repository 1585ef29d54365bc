package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"

	"github.com/customeros/mailnotify/api"
	"github.com/customeros/mailnotify/config"
	"github.com/customeros/mailnotify/internal/cron"
	"github.com/customeros/mailnotify/internal/election"
	"github.com/customeros/mailnotify/internal/logger"
	"github.com/customeros/mailnotify/internal/repository"
	"github.com/customeros/mailnotify/internal/tracing"
	"github.com/customeros/mailnotify/services/discord"
	"github.com/customeros/mailnotify/services/imap"
	"github.com/customeros/mailnotify/services/notifier"
)

const (
	shutdownTimeout = 15 * time.Second
	loopStopTimeout = 10 * time.Second
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	repositories *repository.Repositories
	notifier     *notifier.Notifier
	cron         *cron.CronManager
	elector      *election.Elector
	tracerCloser io.Closer
}

// NewServer wires the notifier. cursorDB is nil for the in-memory cursor store.
func NewServer(cfg *config.Config, cursorDB *gorm.DB) (*Server, error) {
	// Initialize logger
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	// Initialize tracing
	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize jaeger tracer")
	}
	opentracing.SetGlobalTracer(tracer)

	// Initialize repositories
	repos := repository.InitRepositories(cursorDB)

	chatClient, err := discord.NewClient(cfg.Discord)
	if err != nil {
		return nil, err
	}

	connector := imap.NewConnector(cfg.Imap, appLogger)
	sessions := imap.NewSessionManager(cfg.Imap, connector, appLogger)
	detector := imap.NewChangeDetector(cfg.Imap.Email, cfg.Imap.Folder, cfg.Notifier.MaxBatch, appLogger)
	dispatcher := discord.NewDispatcher(chatClient, cfg.Discord.UserID, appLogger)

	mailNotifier := notifier.NewNotifier(
		cfg.Notifier,
		cfg.Imap.Email,
		cfg.Imap.Folder,
		sessions,
		detector,
		dispatcher,
		repos.MailboxCursorRepository,
		appLogger,
	)

	var k8s kubernetes.Interface
	if cfg.LeaderElection.Enabled {
		k8s, err = election.NewKubernetesClient()
		if err != nil {
			appLogger.Warnf("Leader election unavailable, falling back to local mode: %v", err)
		}
	}

	// Initialize Gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		repositories: repos,
		notifier:     mailNotifier,
		cron:         cron.NewCronManager(cfg.Cron, appLogger, cfg.AppConfig.PodName, mailNotifier),
		elector:      election.NewElector(cfg.LeaderElection, appLogger, k8s, cfg.AppConfig.PodName),
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		// Create a new span for the panic
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		// Mark span as failed
		ext.Error.Set(span, true)

		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		s.log.Errorf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	defer func() {
		_ = s.log.Sync()
	}()

	// Create root context for the application
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api.RegisterRoutes(s.router, s.notifier)

	if err := s.cron.Start(); err != nil {
		return errors.Wrap(err, "could not start cron manager")
	}

	loopDone := make(chan error, 1)
	go func() {
		// stays set if the loop panics
		loopErr := errors.New("mail notifier panicked")
		defer func() {
			loopDone <- loopErr
		}()
		s.wrapGoroutine("notifier", func() {
			loopErr = s.elector.Run(ctx, func(leaderCtx context.Context) {
				if err := s.notifier.Run(leaderCtx); err != nil {
					s.log.Errorf("Mail notifier stopped with error: %v", err)
				}
			})
		})
	}()

	go s.wrapGoroutine("http_server", func() {
		s.log.Infof("Starting HTTP server on port %s", s.config.AppConfig.APIPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	})

	s.log.Infow("Mail notifier is running",
		"mailbox", s.config.Imap.Email,
		"folder", s.config.Imap.Folder,
		"server", fmt.Sprintf("%s:%d", s.config.Imap.Host, s.config.Imap.Port))

	return s.waitForShutdown(cancel, loopDone)
}

func (s *Server) waitForShutdown(cancel context.CancelFunc, loopDone chan error) error {
	defer s.recoverWithJaeger("shutdown")

	// Set up signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var loopErr error
	loopFinished := false
	select {
	case sig := <-stop:
		s.log.Infof("Received %s, shutting down", sig)
	case loopErr = <-loopDone:
		loopFinished = true
		s.log.Errorf("Mail notifier exited unexpectedly: %v", loopErr)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	}

	s.cron.Stop()

	if !loopFinished {
		select {
		case loopErr = <-loopDone:
			s.log.Info("Mail notifier stopped gracefully")
		case <-time.After(loopStopTimeout):
			s.log.Warn("Mail notifier stop timed out, forcing exit")
		}
	}

	if s.tracerCloser != nil {
		_ = s.tracerCloser.Close()
	}

	if loopErr != nil {
		return loopErr
	}
	if loopFinished {
		return errors.New("mail notifier exited before shutdown was requested")
	}
	return nil
}
