package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"
	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	if len(deps.AllowOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(deps.AllowOrigins, ","),
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		}))
	}

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 300 requests per minute per IP. Position fixes are
	// pushed continuously, so this sits above a browser's watch rate.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1", AuthMiddleware(deps, false))
	with := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, requestTimeout)
	}

	// Planning sessions
	v1.Post("/sessions", CreateSessionHandler(deps))
	v1.Get("/sessions/:id", GetSessionHandler(deps))
	v1.Delete("/sessions/:id", CloseSessionHandler(deps))
	v1.Post("/sessions/:id/reset", ResetSessionHandler(deps))
	v1.Get("/sessions/:id/waypoints", ListWaypointsHandler(deps))
	v1.Post("/sessions/:id/waypoints", AddWaypointHandler(deps))
	v1.Delete("/sessions/:id/waypoints", ClearWaypointsHandler(deps))
	v1.Get("/sessions/:id/waypoints/latest", LatestWaypointHandler(deps))
	v1.Post("/sessions/:id/suggestions", SelectSuggestionHandler(deps))
	v1.Post("/sessions/:id/location/fix", with(CurrentFixHandler(deps)))
	v1.Post("/sessions/:id/location/watch", StartWatchHandler(deps))
	v1.Delete("/sessions/:id/location/watch", StopWatchHandler(deps))
	v1.Post("/sessions/:id/location/fixes", PushFixHandler(deps))
	v1.Get("/sessions/:id/route", RouteHandler(deps))
	v1.Get("/sessions/:id/history", with(RouteHistoryHandler(deps)))
	v1.Post("/sessions/:id/focus", FocusHandler(deps))
	v1.Post("/sessions/:id/query", with(QueryHandler(deps)))

	// Stateless lookups
	v1.Get("/geocode/reverse", with(ReverseGeocodeHandler(deps)))
	v1.Get("/geocode/search", with(SearchPlacesHandler(deps)))
	v1.Post("/city", with(CityHandler(deps)))
	v1.Get("/destinations/nearby", with(NearbyDestinationsHandler(deps)))
	v1.Get("/destinations/:id", with(GetDestinationHandler(deps)))
	v1.Post("/chat", with(ChatHandler(deps)))

	// Identity
	v1.Post("/users/sync", with(SyncUserHandler(deps)))
	v1.Get("/users/me", AuthMiddleware(deps, true), with(MeHandler(deps)))

	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), requestTimeout))

	SetupDocs(app, deps.OpenAPIPath)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
