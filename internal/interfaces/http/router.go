package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/logging"
	"github.com/pharmaref/pharmaref/internal/infrastructure/monitoring/prometheus"
	"github.com/pharmaref/pharmaref/internal/interfaces/http/handlers"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree.
type RouterConfig struct {
	// Handlers
	CompoundHandler   *handlers.CompoundHandler
	ProductHandler    *handlers.ProductHandler
	IngredientHandler *handlers.IngredientHandler
	SimilarityHandler *handlers.SimilarityHandler
	HealthHandler     *handlers.HealthHandler

	// Middleware
	CORSMiddleware    func(http.Handler) http.Handler
	LoggingMiddleware func(http.Handler) http.Handler

	// Infrastructure
	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter constructs the complete HTTP route tree from the given configuration.
// It wires global middleware, public health endpoints, and the API v1 resource
// groups into a single http.Handler suitable for use with http.Server.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Global middleware (applied to every request) ---
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.CORSMiddleware != nil {
		r.Use(cfg.CORSMiddleware)
	}
	if cfg.LoggingMiddleware != nil {
		r.Use(cfg.LoggingMiddleware)
	}

	// --- Public health endpoints ---
	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}

	// --- Metrics endpoint (expected behind an internal firewall rule) ---
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	// --- API v1 ---
	r.Route("/api/v1", func(api chi.Router) {
		registerCompoundRoutes(api, cfg.CompoundHandler)
		registerProductRoutes(api, cfg.ProductHandler)
		registerIngredientRoutes(api, cfg.IngredientHandler)
		registerSimilarityRoutes(api, cfg.SimilarityHandler)
	})

	return r
}

// registerCompoundRoutes mounts compound resource endpoints under /compounds.
func registerCompoundRoutes(r chi.Router, h *handlers.CompoundHandler) {
	if h == nil {
		return
	}
	r.Route("/compounds", func(cr chi.Router) {
		cr.Get("/", h.List)
		cr.Post("/", h.Create)
		cr.Post("/bulk", h.BulkCreate)
		cr.Get("/statistics", h.Statistics)
		cr.Get("/search", h.Search)

		cr.Route("/{compoundID}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Put("/", h.Update)
			item.Patch("/", h.Update)
			item.Delete("/", h.Delete)
			item.Get("/products", h.Products)
			item.Get("/similar", h.Similar)
		})
	})
}

// registerProductRoutes mounts product resource endpoints under /products.
func registerProductRoutes(r chi.Router, h *handlers.ProductHandler) {
	if h == nil {
		return
	}
	r.Route("/products", func(pr chi.Router) {
		pr.Get("/", h.List)
		pr.Post("/", h.Create)
		pr.Get("/statistics", h.Statistics)
		pr.Get("/search", h.Search)

		pr.Route("/{productID}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Put("/", h.Update)
			item.Patch("/", h.Update)
			item.Delete("/", h.Delete)
			item.Get("/ingredients", h.Ingredients)
		})
	})
}

// registerIngredientRoutes mounts ingredient curation endpoints under /ingredients.
func registerIngredientRoutes(r chi.Router, h *handlers.IngredientHandler) {
	if h == nil {
		return
	}
	r.Route("/ingredients", func(ir chi.Router) {
		ir.Get("/", h.List)
		ir.Get("/failed_normalizations", h.FailedNormalizations)

		ir.Route("/{ingredientID}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Patch("/", h.Update)
		})
	})
}

// registerSimilarityRoutes mounts similarity analysis endpoints under /similarities.
func registerSimilarityRoutes(r chi.Router, h *handlers.SimilarityHandler) {
	if h == nil {
		return
	}
	r.Route("/similarities", func(sr chi.Router) {
		sr.Get("/", h.List)
		sr.Post("/", h.Create)
		sr.Post("/bulk", h.BulkCreate)
		sr.Get("/statistics", h.Statistics)
		sr.Get("/by_compound", h.ByCompound)
		sr.Post("/invalidate", h.Invalidate)

		sr.Route("/{similarityID}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Delete("/", h.Delete)
		})
	})
}
