package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// ReverseGeocodeHandler names a coordinate. Lookup failures still answer
// 200 with the unknown-location label.
func ReverseGeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		coord, err := queryCoordinate(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		name := deps.Geocode.ResolveName(c.UserContext(), coord)
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(fiber.Map{"name": name, "coordinate": coord})
	}
}

// SearchPlacesHandler returns forward-geocoding candidates.
func SearchPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := c.Query("q")
		if len(q) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		places := deps.Geocode.SearchByText(c.UserContext(), q, c.QueryInt("limit", 5))
		return c.JSON(places)
	}
}

type cityRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// CityHandler resolves the locality around a coordinate.
func CityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req cityRequest
		if err := c.BodyParser(&req); err != nil || req.Lat == nil || req.Lon == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Latitude and longitude are required"})
		}
		city, err := deps.Geocode.ResolveCity(c.UserContext(), domain.Coordinate{Lat: *req.Lat, Lng: *req.Lon})
		if err != nil {
			LoggerFromCtx(c.UserContext()).Warn("city lookup failed", "error", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unable to fetch location"})
		}
		return c.JSON(fiber.Map{"city": city})
	}
}

// NearbyDestinationsHandler lists curated destinations around a point.
func NearbyDestinationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		coord, err := queryCoordinate(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		radius := c.QueryFloat("radius", 5000)
		if radius <= 0 || radius > 50000 {
			return errBadRequest(c, "radius must be between 1 and 50000 meters")
		}

		ds, err := deps.Destinations.FindNearby(c.UserContext(), coord, radius, c.QueryInt("limit", 20))
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(ds)
	}
}

// GetDestinationHandler returns a single destination by ID.
func GetDestinationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := deps.Destinations.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(d)
	}
}

type chatRequest struct {
	Message string `json:"message" validate:"max=2000"`
}

// ChatHandler answers a travel question.
func ChatHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req chatRequest
		if ok, err := parseBody(c, &req); !ok {
			return err
		}
		reply, err := deps.Chat.Ask(c.UserContext(), req.Message)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(reply)
	}
}

// SyncUserHandler upserts the caller's identity and returns a session token.
func SyncUserHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var identity domain.Identity
		if ok, err := parseBody(c, &identity); !ok {
			return err
		}
		user, err := deps.Users.Sync(c.UserContext(), identity)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"user": user, "token": user.Token})
	}
}

// MeHandler returns the authenticated user.
func MeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := deps.Users.Me(c.UserContext(), claimsFrom(c))
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "private, no-store")
		return c.JSON(user)
	}
}

func queryCoordinate(c *fiber.Ctx) (domain.Coordinate, error) {
	if c.Query("lat") == "" || c.Query("lng") == "" {
		return domain.Coordinate{}, errMissingLatLng
	}
	coord := domain.Coordinate{Lat: c.QueryFloat("lat"), Lng: c.QueryFloat("lng")}
	return coord, coord.Validate()
}
