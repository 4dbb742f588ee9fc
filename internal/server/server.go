// Package server exposes the HTTP entrypoints: the webhook receiving
// change notifications, channel setup and renewal, and a health probe.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/drivegit/internal/drive"
	"github.com/tonimelisma/drivegit/internal/state"
)

// shutdownTimeout bounds graceful shutdown after the context is canceled.
const shutdownTimeout = 10 * time.Second

// Config holds the server settings.
type Config struct {
	Addr              string // listen address, e.g. ":8080"
	WebhookURL        string // public URL Drive delivers notifications to
	VerificationToken string // google-site-verification token, optional
}

// WatchService manages push-notification channels. Satisfied by
// *drive.Client.
type WatchService interface {
	Watch(ctx context.Context, address, cursor string) (*drive.Channel, error)
	StopWatch(ctx context.Context, channelID, resourceID string) error
	StartPageToken(ctx context.Context) (string, error)
}

// SubscriptionStore is the persisted cursor and channel registration.
// Satisfied by *state.Store.
type SubscriptionStore interface {
	Cursor(ctx context.Context) (string, error)
	SetCursor(ctx context.Context, token string) error
	Subscription(ctx context.Context) (*state.Subscription, error)
	SetSubscription(ctx context.Context, sub *state.Subscription) error
}

// Syncer runs a sync cycle under the distributed lock. Satisfied by
// *sync.Coordinator.
type Syncer interface {
	HandleNotification(ctx context.Context) error
}

// InitialSyncer imports the current folder contents. Satisfied by
// *sync.Engine.
type InitialSyncer interface {
	RunInitialSync(ctx context.Context) (int, error)
}

// Server routes webhook traffic to the sync coordinator.
type Server struct {
	cfg     Config
	watches WatchService
	store   SubscriptionStore
	syncer  Syncer
	initial InitialSyncer
	logger  *slog.Logger

	engine *gin.Engine
}

// New creates the Server and registers its routes.
func New(cfg Config, watches WatchService, store SubscriptionStore, syncer Syncer, initial InitialSyncer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		cfg:     cfg,
		watches: watches,
		store:   store,
		syncer:  syncer,
		initial: initial,
		logger:  logger,
		engine:  engine,
	}

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/webhook", s.handleVerification)
	engine.POST("/webhook", s.handleNotification)
	engine.GET("/setup", s.handleVerification)
	engine.POST("/setup", s.handleSetup)
	engine.POST("/renew", s.handleRenew)

	return s
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("listening", "addr", s.cfg.Addr)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
