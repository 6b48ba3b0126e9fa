package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pfrederiksen/telefication/internal/config"
	"github.com/pfrederiksen/telefication/internal/event"
	"github.com/pfrederiksen/telefication/internal/logger"
	"github.com/pfrederiksen/telefication/internal/notifier"
	"github.com/pfrederiksen/telefication/internal/telegram"
)

const shutdownTimeout = 5 * time.Second

// Dispatcher delivers an event to its handlers
type Dispatcher interface {
	Dispatch(ctx context.Context, evt event.Event) ([]notifier.Result, error)
}

// SettingsStore persists the settings record
type SettingsStore interface {
	config.Source
	Save(ctx context.Context, cfg *config.Config) error
}

// Options configures a Server
type Options struct {
	// Source provides a settings snapshot per request. Required.
	Source config.Source
	// Store enables GET/PUT /settings when set
	Store SettingsStore
	// Dispatcher handles /events; nil builds handlers from Source per event
	Dispatcher Dispatcher
	// Bypass enables GET /bypass when set
	Bypass *telegram.BypassRelay
	// ClientOptions are passed to every Telegram client the server creates
	ClientOptions []telegram.Option
	// RateLimit is the per-client request rate on /ajax (requests per second); 0 disables
	// it. The limiter is sized once, in New.
	RateLimit float64
	RateBurst int
}

// Server is the HTTP surface: admin ajax endpoints, event ingestion, settings and status
type Server struct {
	source     config.Source
	store      SettingsStore
	dispatcher Dispatcher
	bypass     *telegram.BypassRelay
	clientOpts []telegram.Option
	engine     *gin.Engine
}

// New creates a server and its routes
func New(opts Options) *Server {
	s := &Server{
		source:     opts.Source,
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		bypass:     opts.Bypass,
		clientOpts: opts.ClientOptions,
	}
	if s.dispatcher == nil {
		s.dispatcher = &notifier.Factory{
			Source: opts.Source,
			NewSender: func(cfg *config.Config) notifier.Sender {
				return notifier.NewSender(cfg, s.clientOpts...)
			},
		}
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), accessLog())

	engine.GET("/status", s.handleStatus)
	engine.GET("/bypass", s.handleBypass)

	api := engine.Group("", requireAPIKey(opts.Source))

	ajax := api.Group("/ajax")
	if opts.RateLimit > 0 {
		ajax.Use(rateLimit(newLimiters(opts.RateLimit, opts.RateBurst)))
	}
	ajax.POST("/send-test-message", s.handleSendTestMessage)
	ajax.POST("/get-chat-id", s.handleGetChatID)

	api.POST("/events", s.handleEnvelope)
	api.POST("/events/:kind", s.handleEvent)
	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handlePutSettings)

	s.engine = engine
	return s
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully. onReady, when
// non-nil, is called once the listener is bound.
func (s *Server) Run(ctx context.Context, addr string, onReady func()) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	logger.Info("Server listening", logger.Fields{"addr": ln.Addr().String()})
	if onReady != nil {
		onReady()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	logger.Info("Server stopped", nil)
	return nil
}
