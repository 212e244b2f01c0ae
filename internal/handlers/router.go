package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type middlewareChain = []func(http.Handler) http.Handler

// routeGroup is a path prefix with its own registrar and middleware.
type routeGroup struct {
	prefix     string
	name       string
	registrars []RouteRegistrar
	chain      middlewareChain
	bodyLimit  int64
	// stubEmpty answers 501 when no registrar is configured.
	stubEmpty bool
}

type routerConfig struct {
	global  middlewareChain
	timeout time.Duration
	health  *HealthHandlers

	checkout routeGroup
	webhooks routeGroup
	internal routeGroup
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	checkoutPrefix = "/api"

	defaultRequestTimeout = 60 * time.Second
	// Checkout payloads carry a cart; provider webhooks can be larger event envelopes.
	checkoutBodyLimit = 256 << 10
	webhookBodyLimit  = 1 << 20

	errorNotFoundCode = "route_not_found"
)

// NewRouter builds the chi router serving the checkout API, payment webhooks and internal jobs.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		timeout:  defaultRequestTimeout,
		checkout: routeGroup{prefix: checkoutPrefix, name: "checkout", bodyLimit: checkoutBodyLimit},
		webhooks: routeGroup{prefix: "/webhooks", name: "webhooks", bodyLimit: webhookBodyLimit, stubEmpty: true},
		internal: routeGroup{prefix: "/internal", name: "internal", bodyLimit: checkoutBodyLimit, stubEmpty: true},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if cfg.timeout > 0 {
		r.Use(middleware.Timeout(cfg.timeout))
	}
	for _, mw := range cfg.global {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	// Checkout responses are never cacheable.
	cfg.checkout.chain = append(middlewareChain{middleware.NoCache}, cfg.checkout.chain...)
	for _, group := range []routeGroup{cfg.checkout, cfg.webhooks, cfg.internal} {
		group.mount(r)
	}
	return r
}

func (g routeGroup) mount(r chi.Router) {
	r.Route(g.prefix, func(sub chi.Router) {
		if g.bodyLimit > 0 {
			sub.Use(middleware.RequestSize(g.bodyLimit))
		}
		for _, mw := range g.chain {
			if mw != nil {
				sub.Use(mw)
			}
		}
		registered := false
		for _, registrar := range g.registrars {
			if registrar != nil {
				registrar(sub)
				registered = true
			}
		}
		if !registered && g.stubEmpty {
			notImplemented(sub, g.name)
		}
	})
}

// WithMiddlewares appends global middleware, applied after request id and timeout handling.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.global = append(cfg.global, mw...)
	}
}

// WithRequestTimeout overrides the per-request deadline. Zero disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *routerConfig) {
		cfg.timeout = d
	}
}

// WithHealthHandlers overrides the handlers used for /healthz and /readyz endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithAPIRoutes adds registrars mounted under /api.
func WithAPIRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.checkout.registrars = append(cfg.checkout.registrars, regs...)
	}
}

// WithWebhookRoutes adds the payment provider webhook registrar mounted under /webhooks.
func WithWebhookRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.webhooks.registrars = append(cfg.webhooks.registrars, reg)
	}
}

// WithWebhookMiddlewares configures middlewares applied to the /webhooks group.
func WithWebhookMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.webhooks.chain = append(cfg.webhooks.chain, mw...)
	}
}

// WithInternalRoutes adds the scheduler-facing registrar mounted under /internal.
func WithInternalRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.internal.registrars = append(cfg.internal.registrars, reg)
	}
}

// WithInternalMiddlewares configures middlewares applied to the /internal group.
func WithInternalMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.internal.chain = append(cfg.internal.chain, mw...)
	}
}

func notImplemented(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes are not configured", name), http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
}
