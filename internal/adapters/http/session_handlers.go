package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/usecases"
)

type watchRequest struct {
	MaxAgeMs     int64 `json:"max_age_ms" validate:"gte=0"`
	TimeoutMs    int64 `json:"timeout_ms" validate:"gte=0"`
	HighAccuracy *bool `json:"high_accuracy"`
}

type createSessionRequest struct {
	Features *domain.FeatureFlags `json:"features"`
	Watch    *watchRequest        `json:"watch"`
}

type coordinateRequest struct {
	Lat   *float64 `json:"lat" validate:"required"`
	Lng   *float64 `json:"lng" validate:"required"`
	Label string   `json:"label" validate:"max=200"`
}

func (r coordinateRequest) coordinate() domain.Coordinate {
	return domain.Coordinate{Lat: *r.Lat, Lng: *r.Lng}
}

type focusRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type fixRequest struct {
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	Accuracy  float64    `json:"accuracy" validate:"gte=0"`
	Timestamp *time.Time `json:"timestamp"`
	Error     string     `json:"error"`
	Message   string     `json:"message"`
}

type queryRequest struct {
	Query string `json:"query" validate:"max=200"`
}

// parseBody decodes and validates a JSON body. When it reports false the 400
// has already been written and the handler must return without going on.
func parseBody(c *fiber.Ctx, v any) (bool, error) {
	if err := c.BodyParser(v); err != nil {
		return false, errBadRequest(c, "invalid request body")
	}
	if err := domain.ValidateStruct(v); err != nil {
		return false, errBadRequest(c, err.Error())
	}
	return true, nil
}

// lookupSession resolves :id, writing a 404 when it is unknown.
func lookupSession(c *fiber.Ctx, deps *Dependencies) (*usecases.Session, error) {
	sess, err := deps.Sessions.Get(c.Params("id"))
	if err != nil {
		return nil, errFromDomain(c, err)
	}
	return sess, nil
}

// CreateSessionHandler opens a planning session.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createSessionRequest
		if len(c.Body()) > 0 {
			if ok, err := parseBody(c, &req); !ok {
				return err
			}
		}

		opts := usecases.CreateSessionOptions{Features: req.Features}
		if claims := claimsFrom(c); claims != nil {
			opts.UserID = claims.UserID
		}
		if req.Watch != nil {
			highAccuracy := true
			if req.Watch.HighAccuracy != nil {
				highAccuracy = *req.Watch.HighAccuracy
			}
			opts.Watch = &domain.WatchOptions{
				MaxAgeMs:     req.Watch.MaxAgeMs,
				TimeoutMs:    req.Watch.TimeoutMs,
				HighAccuracy: highAccuracy,
			}
		}

		sess, err := deps.Sessions.Create(opts)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"session_id": sess.ID,
			"frame":      sess.Frame(),
		})
	}
}

// GetSessionHandler returns the session's current frame.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		return c.JSON(sess.Frame())
	}
}

// CloseSessionHandler closes a session.
func CloseSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ResetSessionHandler clears the view on navigation.
func ResetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		if err := sess.Reset(); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(sess.Frame())
	}
}

// ListWaypointsHandler returns the waypoints in insertion order.
func ListWaypointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		return c.JSON(sess.Waypoints())
	}
}

// AddWaypointHandler appends a waypoint. Without a label it is treated as a
// map click and named asynchronously.
func AddWaypointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		var req coordinateRequest
		if ok, err := parseBody(c, &req); !ok {
			return err
		}

		var wp domain.Waypoint
		if req.Label != "" {
			wp, err = sess.AddLabeledWaypoint(req.coordinate(), req.Label)
		} else {
			wp, err = sess.AddWaypoint(req.coordinate())
		}
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(wp)
	}
}

// ClearWaypointsHandler removes every waypoint.
func ClearWaypointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		if err := sess.ClearWaypoints(); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// LatestWaypointHandler returns the most recently added waypoint.
func LatestWaypointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		wp, ok := sess.LatestWaypoint()
		if !ok {
			return errNotFound(c, "no waypoints")
		}
		return c.JSON(wp)
	}
}

// SelectSuggestionHandler adds an autocomplete pick and focuses on it.
func SelectSuggestionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		var req coordinateRequest
		if ok, err := parseBody(c, &req); !ok {
			return err
		}
		wp, cam, err := sess.SelectSuggestion(domain.Place{Coordinate: req.coordinate(), Label: req.Label})
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"waypoint": wp, "camera": cam})
	}
}

// CurrentFixHandler requests a one-shot position.
func CurrentFixHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		res, err := sess.GetCurrentFix(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(res)
	}
}

// StartWatchHandler begins continuous tracking.
func StartWatchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		status, err := sess.StartWatching()
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(status)
	}
}

// StopWatchHandler ends continuous tracking.
func StopWatchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		status, err := sess.StopWatching()
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(status)
	}
}

// PushFixHandler accepts a reading or a failure from the device.
func PushFixHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		var req fixRequest
		if ok, err := parseBody(c, &req); !ok {
			return err
		}

		if req.Error != "" {
			err = sess.PushFailure(domain.ParsePositionFailure(req.Error), req.Message)
		} else {
			if req.Lat == nil || req.Lng == nil {
				return errBadRequest(c, "lat and lng are required")
			}
			ts := time.Now().UTC()
			if req.Timestamp != nil {
				ts = *req.Timestamp
			}
			err = sess.PushFix(domain.PositionFix{
				Coordinate: domain.Coordinate{Lat: *req.Lat, Lng: *req.Lng},
				Accuracy:   req.Accuracy,
				Timestamp:  ts,
			})
		}
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	}
}

// RouteHandler returns the installed route.
func RouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		route := sess.Route()
		if route == nil {
			return errNotFound(c, "no route installed")
		}
		return c.JSON(route)
	}
}

// FocusHandler moves the camera to a coordinate, or to the current
// location when the body has none.
func FocusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		var req focusRequest
		if len(c.Body()) > 0 {
			if ok, err := parseBody(c, &req); !ok {
				return err
			}
		}

		var cam domain.Camera
		switch {
		case req.Lat != nil && req.Lng != nil:
			cam, err = sess.FocusOn(domain.Coordinate{Lat: *req.Lat, Lng: *req.Lng})
		case req.Lat == nil && req.Lng == nil:
			cam, err = sess.FocusOnLocation()
		default:
			return errBadRequest(c, "lat and lng must be given together")
		}
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(cam)
	}
}

// QueryHandler submits a search-bar query.
func QueryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		var req queryRequest
		if ok, err := parseBody(c, &req); !ok {
			return err
		}
		place, cam, err := sess.SubmitQuery(c.UserContext(), req.Query)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"place": place, "camera": cam})
	}
}

// RouteHistoryHandler lists the routes installed for a session.
func RouteHistoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.RouteLog == nil {
			return errNotFound(c, "route history not available")
		}
		events, err := deps.RouteLog.History(c.UserContext(), c.Params("id"), c.QueryInt("limit", 20))
		if err != nil {
			return errFromDomain(c, err)
		}
		if events == nil {
			events = []domain.RouteEvent{}
		}
		return c.JSON(events)
	}
}
