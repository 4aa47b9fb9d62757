package http

import (
	"github.com/nats-io/nats.go"
	"github.com/samirrijal/tripplanner/internal/adapters/postgres"
	"github.com/samirrijal/tripplanner/internal/adapters/valkey"
	"github.com/samirrijal/tripplanner/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions     *usecases.SessionService
	Geocode      *usecases.GeocodeService
	Destinations *usecases.DestinationService
	Chat         *usecases.ChatService
	Users        *usecases.UserService
	RouteLog     *usecases.RouteLogService

	// NATS, when set, carries session frames to WebSocket clients so any
	// API replica can serve them.
	NATS  *nats.Conn
	DB    *postgres.DB
	Cache *valkey.Cache

	AllowOrigins []string
	// OpenAPIPath locates the document served under /docs.
	OpenAPIPath string
}
