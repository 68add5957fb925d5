package proxy

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mercator-hq/claude-proxy/pkg/config"
	"mercator-hq/claude-proxy/pkg/credentials"
	"mercator-hq/claude-proxy/pkg/oauth"
	"mercator-hq/claude-proxy/pkg/providers"
	"mercator-hq/claude-proxy/pkg/providers/codex"
	"mercator-hq/claude-proxy/pkg/providers/gemini"
	"mercator-hq/claude-proxy/pkg/providers/openrouter"
	"mercator-hq/claude-proxy/pkg/providers/passthrough"
	"mercator-hq/claude-proxy/pkg/proxy/middleware"
	"mercator-hq/claude-proxy/pkg/router"
	"mercator-hq/claude-proxy/pkg/telemetry/metrics"
	"mercator-hq/claude-proxy/pkg/vision"
)

// maxBodySize bounds a Messages API request body. Conversations carry
// inline images, so the cap is generous.
const maxBodySize = 100 << 20

// Gateway wires the HTTP surface to the router, adapters and credential
// subsystem.
type Gateway struct {
	cfg       *config.Handle
	logger    *slog.Logger
	store     *credentials.Store
	engine    *oauth.Engine
	active    *router.Active
	metrics   *metrics.Collector
	describer *vision.Describer

	adapters map[router.Provider]providers.Adapter
	relay    *passthrough.Adapter

	startedAt time.Time
}

// NewGateway creates the gateway and its adapter set.
func NewGateway(cfg *config.Handle, store *credentials.Store, engine *oauth.Engine, collector *metrics.Collector, logger *slog.Logger) *Gateway {
	g := &Gateway{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		engine:    engine,
		active:    &router.Active{},
		metrics:   collector,
		describer: vision.New(cfg, logger),
		relay:     passthrough.New(),
		startedAt: time.Now(),
	}

	geminiAdapter := gemini.New(cfg, engine, logger)
	g.adapters = map[router.Provider]providers.Adapter{
		router.ProviderCodex:       codex.New(cfg, engine, logger),
		router.ProviderOpenAI:      codex.New(cfg, engine, logger),
		router.ProviderGemini:      geminiAdapter,
		router.ProviderGeminiOAuth: geminiAdapter,
		router.ProviderOpenRouter:  openrouter.New(cfg),
	}
	return g
}

// Routes builds the HTTP handler with the middleware chain applied.
func (g *Gateway) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(g.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(g.logger))

	r.Post("/v1/messages", g.handleMessages)
	r.Get("/healthz", g.handleHealthz)
	r.Get("/_status", g.handleStatus)
	r.Handle("/metrics", g.metrics.Handler())

	r.Get("/{provider}/login", g.handleLogin)
	r.Get("/{provider}/login/start", g.handleLogin)
	r.Get("/{provider}/callback", g.handleCallback)
	r.Get("/{provider}/status", g.handleProviderStatus)
	r.Post("/{provider}/logout", g.handleLogout)
	r.Get("/oauth/status", g.handleOAuthStatus)
	r.Post("/oauth/logout", g.handleLogout)

	return r
}
