// Package routes assembles the chi router and Huma API for the screening
// service. Keeping registration here lets the server and tests share one
// route table.
package routes

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/merchantsafe/kyc-screener/internal/config"
	"github.com/merchantsafe/kyc-screener/internal/http/handlers"
	"github.com/merchantsafe/kyc-screener/internal/http/mw"
	"github.com/merchantsafe/kyc-screener/internal/service"
	"github.com/merchantsafe/kyc-screener/internal/version"
)

// syncScreeningTimeout bounds the synchronous screening path. Async requests
// return immediately and are unaffected.
const syncScreeningTimeout = 5 * time.Minute

const defaultRequestTimeout = 30 * time.Second

// NewRouter builds the full HTTP handler: middleware chain, public API with
// OpenAPI docs, and hidden Kubernetes probes.
func NewRouter(cfg *config.Config, db handlers.DBPinger, services *service.Services) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:          defaultRequestTimeout,
		Extended:         syncScreeningTimeout,
		ExtendedPatterns: []string{"/screenings"},
	}))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Merchant inputs are small; anything larger is abuse.
	router.Use(middleware.RequestSize(1 * 1024 * 1024))
	router.Use(httprate.LimitByIP(100, time.Minute))
	router.Use(middleware.Throttle(100))

	api := humachi.New(router, newHumaConfig(cfg.BaseURL))

	// Probes stay out of the docs.
	hiddenConfig := huma.DefaultConfig("MerchantSafe KYC Screener", version.Get().Short())
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	Register(api, hiddenAPI, db, services)

	return router
}

// Register attaches all routes to the given APIs.
func Register(api, hiddenAPI huma.API, db handlers.DBPinger, services *service.Services) {
	huma.Get(api, "/api/v1/health", handlers.HealthCheck)

	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	huma.Get(hiddenAPI, "/readyz", handlers.NewReadyzHandler(db).Readyz)

	screenings := handlers.NewScreeningHandler(services.Screening, services.Job)
	huma.Register(api, huma.Operation{
		OperationID: "createScreening",
		Method:      http.MethodPost,
		Path:        "/api/v1/screenings",
		Summary:     "Screen a merchant website",
		Description: "Runs the scan inline with wait=true, or queues a background job and returns its reference.",
		Tags:        []string{"Screenings"},
	}, screenings.CreateScreening)
	huma.Register(api, huma.Operation{
		OperationID: "getScreening",
		Method:      http.MethodGet,
		Path:        "/api/v1/screenings/{id}",
		Summary:     "Get screening status and decision",
		Tags:        []string{"Screenings"},
	}, screenings.GetScreening)
}

// newHumaConfig creates the shared Huma configuration for the API.
func newHumaConfig(baseURL string) huma.Config {
	cfg := huma.DefaultConfig("MerchantSafe KYC Screener", version.Get().Short())
	cfg.Info.Description = "Automated merchant-website screening: crawls a merchant site, " +
		"verifies policies, checkout flow, and declared identity, and returns " +
		"a PASS/FAIL/ESCALATE decision with a full audit trail."

	if baseURL != "" {
		cfg.Servers = []*huma.Server{
			{URL: baseURL, Description: "API Server"},
		}
	}

	cfg.Tags = []*huma.Tag{
		{Name: "Screenings", Description: "Merchant website screening and decision retrieval"},
		{Name: "Health", Description: "System health and status"},
	}

	return cfg
}
