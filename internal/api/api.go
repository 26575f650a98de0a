// Package api provides the HTTP server for the nutrition bot.
//
// It exposes the webhook endpoint the messaging platform delivers events to
// and a health-check endpoint, and assembles the gateway, store, completion
// and flow modules at startup.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openai/openai-go"
	"golang.org/x/sync/errgroup"

	"github.com/lampapompa/line-nutrition-bot/internal/flow"
	"github.com/lampapompa/line-nutrition-bot/internal/genai"
	"github.com/lampapompa/line-nutrition-bot/internal/line"
	"github.com/lampapompa/line-nutrition-bot/internal/messaging"
	"github.com/lampapompa/line-nutrition-bot/internal/models"
	"github.com/lampapompa/line-nutrition-bot/internal/scheduler"
	"github.com/lampapompa/line-nutrition-bot/internal/store"
)

// Default server configuration.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultCleanupSchedule sweeps expired pending images hourly.
	DefaultCleanupSchedule = "0 * * * *"
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr            string
	Backend         string // "line" (default) or "twilio"
	PendingImageTTL time.Duration
	DelayCap        time.Duration
	Segmentation    string // "single" (default) or "punctuation"
	KeywordGate     bool   // use the keyword intent gate instead of the classifier
	CleanupSchedule string // cron expression for the expired-session sweep
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address (overrides $API_ADDR).
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithBackend selects the messaging gateway backend.
func WithBackend(backend string) Option {
	return func(o *Opts) { o.Backend = backend }
}

// WithPendingImageTTL sets the pending-image time-to-live.
func WithPendingImageTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.PendingImageTTL = ttl }
}

// WithDelayCap bounds the humanization delay.
func WithDelayCap(cap time.Duration) Option {
	return func(o *Opts) { o.DelayCap = cap }
}

// WithSegmentation selects the reply segmentation strategy.
func WithSegmentation(mode string) Option {
	return func(o *Opts) { o.Segmentation = mode }
}

// WithKeywordGate selects the keyword intent gate. With this set the service
// can start without an OpenAI key, answering generation paths with the
// service-instability apology.
func WithKeywordGate() Option {
	return func(o *Opts) { o.KeywordGate = true }
}

// WithCleanupSchedule sets the cron expression for the expired-session sweep.
func WithCleanupSchedule(expr string) Option {
	return func(o *Opts) { o.CleanupSchedule = expr }
}

// Server handles webhook and health requests and owns the event dispatcher.
type Server struct {
	gateway    messaging.Gateway
	store      store.Store
	dispatcher *flow.Dispatcher
	addr       string
}

// NewServer creates a server over already-constructed modules.
func NewServer(gateway messaging.Gateway, st store.Store, dispatcher *flow.Dispatcher, addr string) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{gateway: gateway, store: st, dispatcher: dispatcher, addr: addr}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run assembles all modules from their options and serves until SIGINT or
// SIGTERM. Required collaborators (gateway credentials, completion key unless
// the keyword gate is selected) are fatal when missing; the session store
// degrades to in-memory with a warning.
func Run(lineOpts []line.Option, storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Backend == "" {
		cfg.Backend = "line"
	}

	gateway, err := buildGateway(cfg, lineOpts)
	if err != nil {
		return err
	}

	st := buildStore(storeOpts)
	defer st.Close()

	client, gate, err := buildIntentModules(cfg, genaiOpts)
	if err != nil {
		return err
	}

	dispatcherOpts := []flow.DispatcherOption{}
	if cfg.PendingImageTTL > 0 {
		dispatcherOpts = append(dispatcherOpts, flow.WithPendingImageTTL(cfg.PendingImageTTL))
	}
	if cfg.DelayCap > 0 {
		dispatcherOpts = append(dispatcherOpts, flow.WithPacer(flow.NewPacer(cfg.DelayCap)))
	}
	if cfg.Segmentation == "punctuation" {
		dispatcherOpts = append(dispatcherOpts, flow.WithSegmenter(flow.PunctuationSegmenter{}))
	}
	dispatcher := flow.NewDispatcher(gateway, st, gate, flow.NewComposer(client), dispatcherOpts...)
	defer dispatcher.Stop()

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	cleanup := cfg.CleanupSchedule
	if cleanup == "" {
		cleanup = DefaultCleanupSchedule
	}
	if err := sched.AddJob(cleanup, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if purged, err := st.PurgeExpired(ctx); err != nil {
			slog.Warn("Server.Run: expired-session sweep failed", "error", err)
		} else if purged > 0 {
			slog.Info("Server.Run: swept expired pending images", "count", purged)
		}
	}); err != nil {
		return err
	}

	server := NewServer(gateway, st, dispatcher, cfg.Addr)
	httpServer := &http.Server{Addr: server.addr, Handler: server.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server.Run: listening", "addr", server.addr, "backend", gateway.Platform())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server.Run: server failed", "error", err)
		return err
	}
	slog.Info("Server.Run: shutdown complete")
	return nil
}

// buildGateway constructs the selected messaging backend.
func buildGateway(cfg Opts, lineOpts []line.Option) (messaging.Gateway, error) {
	switch cfg.Backend {
	case "twilio":
		gw, err := messaging.NewTwilioGateway()
		if err != nil {
			slog.Error("Server.Run: failed to create Twilio gateway", "error", err)
			return nil, err
		}
		return gw, nil
	default:
		client, err := line.NewClient(lineOpts...)
		if err != nil {
			slog.Error("Server.Run: failed to create LINE client", "error", err)
			return nil, err
		}
		return messaging.NewLineGateway(client), nil
	}
}

// buildStore constructs the session store from its DSN, falling back to the
// in-memory store when no DSN is set or the backend cannot be reached.
func buildStore(storeOpts []store.Option) store.Store {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("Server.Run: no store DSN configured, using in-memory session store")
		return store.NewInMemoryStore()
	}

	var (
		st  store.Store
		err error
	)
	switch store.DetectDSNType(cfg.DSN) {
	case "postgres":
		st, err = store.NewPostgresStore(storeOpts...)
	default:
		st, err = store.NewSQLiteStore(storeOpts...)
	}
	if err != nil {
		slog.Warn("Server.Run: session store unavailable, degrading to in-memory", "error", err)
		return store.NewInMemoryStore()
	}
	return st
}

// buildIntentModules constructs the completion client and intent gate. With
// the keyword gate selected a missing OpenAI key is tolerated: generation
// paths then answer with the service-instability apology.
func buildIntentModules(cfg Opts, genaiOpts []genai.Option) (genai.ClientInterface, flow.IntentGate, error) {
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		if cfg.KeywordGate && errors.Is(err, genai.ErrAPIKeyNotSet) {
			slog.Warn("Server.Run: no OpenAI key, generation paths will apologize")
			return disabledCompletionClient{}, flow.NewKeywordGate(), nil
		}
		slog.Error("Server.Run: failed to create GenAI client", "error", err)
		return nil, nil, err
	}

	if cfg.KeywordGate {
		return client, flow.NewKeywordGate(), nil
	}
	return client, flow.NewClassifierGate(client), nil
}

// disabledCompletionClient stands in when no completion service is
// configured. Every call reports the service as unavailable.
type disabledCompletionClient struct{}

var errCompletionDisabled = errors.New("completion service not configured")

func (disabledCompletionClient) GenerateWithMessages(context.Context, []openai.ChatCompletionMessageParamUnion) (string, error) {
	return "", models.NewCompletionError(models.CompletionErrorUnavailable, errCompletionDisabled)
}

func (disabledCompletionClient) GenerateWithOptions(context.Context, []openai.ChatCompletionMessageParamUnion, genai.GenerateOptions) (string, error) {
	return "", models.NewCompletionError(models.CompletionErrorUnavailable, errCompletionDisabled)
}
