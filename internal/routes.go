package internal

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"
	"gorm.io/gorm"

	v1 "rankrent/api/v1"
	"rankrent/internal/config"
	"rankrent/internal/conversions"
	"rankrent/internal/engine"
	"rankrent/internal/goals"
	"rankrent/internal/http"
	"rankrent/internal/http/middleware"
	"rankrent/internal/pkg/geoip"
	"rankrent/internal/pkg/metrics"
	"rankrent/internal/pkg/projcache"
	"rankrent/internal/pkg/user_agent"
	"rankrent/internal/sites"
	"rankrent/internal/timeframe"
	"rankrent/internal/tracking"
)

// publicCORSConfig is shared by the collector endpoints, which receive
// cross-origin posts from every rented site.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// Dependencies are the services the HTTP layer needs.
type Dependencies struct {
	Engine      *engine.Engine
	Goals       *goals.Store
	Conversions *conversions.Store
	Processor   *conversions.Processor
	Collector   *tracking.Collector
	Sites       *sites.Directory
	Parser      *timeframe.Parser
}

// NewServices wires the stores, engine and collector on db. A Redis URL that
// cannot be reached disables the projection cache. A nil geo resolver is
// opened from the configured path.
func NewServices(cfg *config.Config, db *gorm.DB, logger *slog.Logger, geo *geoip.Resolver) Dependencies {
	events := tracking.NewStore(db, logger)
	goalStore := goals.NewStore(db, logger)
	convStore := conversions.NewStore(db, logger)
	matcher := goals.NewMatcher(goals.WithLogger(logger))

	var cache projcache.Cache = projcache.Noop{}
	if cfg.RedisURL != "" {
		client, err := projcache.Connect(cfg.RedisURL, cfg.ProjectionCacheTTL(), logger)
		if err != nil {
			logger.Warn("Projection cache unavailable, continuing without it", slog.Any("error", err))
		} else {
			cache = client
		}
	}

	if geo == nil {
		geo = OpenGeo(cfg, logger)
	}

	return Dependencies{
		Engine: engine.New(events, goalStore, convStore,
			engine.WithCache(cache),
			engine.WithMatcher(matcher),
			engine.WithSettings(engine.SettingsFromConfig(cfg)),
			engine.WithLogger(logger)),
		Goals:       goalStore,
		Conversions: convStore,
		Processor:   conversions.NewProcessor(events, goalStore, convStore, matcher, logger, conversions.DefaultBatchSize),
		Collector:   tracking.NewCollector(events, geo, user_agent.Default(), logger),
		Sites:       sites.NewDirectory(db, logger, 5*time.Minute),
		Parser:      timeframe.NewParser(),
	}
}

// BuildDependencies wires the services on the server's database.
func BuildDependencies(srv *cartridge.Server, geo *geoip.Resolver) Dependencies {
	return NewServices(config.GetConfig(), srv.GetDBManager().GetConnection(), srv.GetLogger(), geo)
}

// OpenGeo opens the GeoLite database. A broken file disables geo enrichment
// instead of failing startup.
func OpenGeo(cfg *config.Config, logger *slog.Logger) *geoip.Resolver {
	geo, err := geoip.Open(cfg.GeoDBPath, logger)
	if err != nil {
		logger.Warn("GeoIP disabled", slog.Any("error", err))
		geo, _ = geoip.Open("", logger)
	}
	return geo
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	MountRoutes(srv, BuildDependencies(srv, nil))
}

// RoutesWithGeo mounts the application routes sharing geo with the background jobs.
func RoutesWithGeo(geo *geoip.Resolver) func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		MountRoutes(srv, BuildDependencies(srv, geo))
	}
}

// MountRoutes mounts the collector, dashboard API and operational endpoints.
func MountRoutes(srv *cartridge.Server, deps Dependencies) {
	cfg := config.GetConfig()
	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()

	// Rate limiting would interfere with tests and local development.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 70/min per IP covers a busy visitor without letting a script flood the store.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	// The dashboard API is called server-to-server, so browser fetch metadata is absent.
	apiConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware: []fiber.Handler{
			middleware.APIKeyAuth(cfg.APIKey, logger),
		},
	}

	siteAPIConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware: []fiber.Handler{
			middleware.APIKeyAuth(cfg.APIKey, logger),
			middleware.SiteScope(deps.Sites, logger),
			middleware.OnboardingHint(db, logger),
		},
	}

	noContent := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	// === OPERATIONAL ===
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)
	if cfg.MetricsEnabled {
		srv.App().Get("/metrics", metrics.Handler())
	}

	// === COLLECTOR ===
	events := v1.NewEventsAPI(deps.Collector)
	srv.Post("/x/api/v1/events", events.CreateEventAction, publicAPIConfig)
	srv.Options("/x/api/v1/events", noContent, publicAPIConfig)
	srv.Post("/x/api/v1/events/beacon", events.CreateEventBeaconAction, publicAPIConfig)
	srv.Options("/x/api/v1/events/beacon", noContent, publicAPIConfig)

	// === SITES ===
	srv.Get("/api/v1/sites", http.SitesIndexAction, apiConfig)
	srv.Post("/api/v1/sites", http.SiteCreateAction, apiConfig)

	// === ANALYTICS ===
	analytics := http.NewAnalyticsHandler(deps.Engine, deps.Conversions, deps.Parser)
	srv.Get("/api/v1/sites/:site_id/sessions", analytics.SessionsIndexAction, siteAPIConfig)
	srv.Get("/api/v1/sites/:site_id/report", analytics.ReportAction, siteAPIConfig)
	srv.Get("/api/v1/sites/:site_id/compare", analytics.CompareAction, siteAPIConfig)
	srv.Get("/api/v1/sites/:site_id/conversions", analytics.ConversionsIndexAction, siteAPIConfig)
	srv.Get("/api/v1/sites/:site_id/conversions/:conversion_id/journey", analytics.JourneyAction, siteAPIConfig)

	// === GOALS ===
	goalsHandler := http.NewGoalsHandler(deps.Goals)
	srv.Get("/api/v1/sites/:site_id/goals", goalsHandler.GoalsIndexAction, siteAPIConfig)
	srv.Post("/api/v1/sites/:site_id/goals", goalsHandler.GoalCreateAction, siteAPIConfig)
	srv.Get("/api/v1/sites/:site_id/goals/:goal_id", goalsHandler.GoalShowAction, siteAPIConfig)
	srv.Post("/api/v1/sites/:site_id/goals/:goal_id", goalsHandler.GoalUpdateAction, siteAPIConfig)
	srv.Post("/api/v1/sites/:site_id/goals/:goal_id/activate", goalsHandler.GoalActivateAction, siteAPIConfig)
	srv.Post("/api/v1/sites/:site_id/goals/:goal_id/deactivate", goalsHandler.GoalDeactivateAction, siteAPIConfig)
	srv.Delete("/api/v1/sites/:site_id/goals/:goal_id", goalsHandler.GoalDeleteAction, siteAPIConfig)

	// === ONBOARDING ===
	srv.Get("/api/v1/sites/:site_id/onboarding", http.OnboardingStateAction, siteAPIConfig)
	srv.Post("/api/v1/sites/:site_id/onboarding/:step", http.OnboardingMarkAction, siteAPIConfig)
	srv.Delete("/api/v1/sites/:site_id/onboarding", http.OnboardingResetAction, siteAPIConfig)

	// === PROCESSING ===
	processing := http.NewProcessingHandler(deps.Processor, deps.Parser)
	srv.Post("/api/v1/sites/:site_id/reprocess", processing.ReprocessAction, siteAPIConfig)
}
