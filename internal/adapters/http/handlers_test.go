package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/tripplanner/internal/adapters/auth"
	handler "github.com/samirrijal/tripplanner/internal/adapters/http"
	"github.com/samirrijal/tripplanner/internal/adapters/positionfeed"
	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/ports"
	"github.com/samirrijal/tripplanner/internal/core/usecases"
)

// ---- Mock providers and repositories ----

type mockGeocoder struct {
	reverseFn func(ctx context.Context, c domain.Coordinate) (string, error)
	searchFn  func(ctx context.Context, query string, limit int) ([]domain.Place, error)
	searches  atomic.Int32
}

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, c domain.Coordinate) (string, error) {
	if m.reverseFn != nil {
		return m.reverseFn(ctx, c)
	}
	return "", nil
}

func (m *mockGeocoder) SearchPlaces(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	m.searches.Add(1)
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

type mockCities struct {
	resolveFn func(ctx context.Context, c domain.Coordinate) (string, error)
}

func (m *mockCities) ResolveCity(ctx context.Context, c domain.Coordinate) (string, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, c)
	}
	return "", domain.ErrEmptyResult
}

type mockDirections struct {
	directionsFn func(ctx context.Context, points []domain.Coordinate) ([]domain.RouteCandidate, error)
}

func (m *mockDirections) Directions(ctx context.Context, points []domain.Coordinate) ([]domain.RouteCandidate, error) {
	if m.directionsFn != nil {
		return m.directionsFn(ctx, points)
	}
	return nil, nil
}

type mockDestinationRepo struct {
	findNearbyFn func(ctx context.Context, lat, lng, radius float64, limit int) ([]domain.Destination, error)
	getByIDFn    func(ctx context.Context, id string) (*domain.Destination, error)
}

func (m *mockDestinationRepo) Upsert(ctx context.Context, d *domain.Destination) error { return nil }
func (m *mockDestinationRepo) UpsertBatch(ctx context.Context, ds []domain.Destination) error {
	return nil
}
func (m *mockDestinationRepo) GetByID(ctx context.Context, id string) (*domain.Destination, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}
func (m *mockDestinationRepo) FindNearby(ctx context.Context, lat, lng, radius float64, limit int) ([]domain.Destination, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lng, radius, limit)
	}
	return []domain.Destination{}, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func (m *memUserRepo) Upsert(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = make(map[string]domain.User)
	}
	if u.ID == "" {
		u.ID = "user-" + u.ExternalID
	}
	m.users[u.ExternalID] = *u
	return nil
}

func (m *memUserRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[externalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

type mockChatModel struct {
	generateFn func(ctx context.Context, prompt string) (string, error)
	calls      atomic.Int32
}

func (m *mockChatModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.calls.Add(1)
	if m.generateFn != nil {
		return m.generateFn(ctx, prompt)
	}
	return "", errors.New("model not configured")
}

// ---- Test harness ----

type testEnv struct {
	app          *fiber.App
	deps         *handler.Dependencies
	geocoder     *mockGeocoder
	cities       *mockCities
	directions   *mockDirections
	destinations *mockDestinationRepo
	chat         *mockChatModel
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		geocoder:     &mockGeocoder{},
		cities:       &mockCities{},
		directions:   &mockDirections{},
		destinations: &mockDestinationRepo{},
		chat:         &mockChatModel{},
	}

	geocode := usecases.NewGeocodeService(env.geocoder, env.cities, nil, 0, logger)
	sessions := usecases.NewSessionService(context.Background(), usecases.SessionConfig{
		Features:      domain.FeatureFlags{SearchBar: true, Autocomplete: true, RoutePanel: true},
		Watch:         domain.NewWatchOptions(10*time.Second, 50*time.Millisecond, true),
		Fallback:      domain.Coordinate{Lat: 40.7128, Lng: -74.0060},
		FocusZoom:     14,
		SearchZoom:    12,
		FocusDuration: 20 * time.Millisecond,
		RouteTimeout:  time.Second,
	}, usecases.SessionDeps{
		Directions: env.directions,
		Geocoder:   geocode,
		NewFeed:    func() ports.PositionFeed { return positionfeed.New() },
	}, time.Hour, logger)
	t.Cleanup(sessions.CloseAll)

	tokens, err := auth.NewManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	env.deps = &handler.Dependencies{
		Sessions:     sessions,
		Geocode:      geocode,
		Destinations: usecases.NewDestinationService(env.destinations, nil),
		Chat:         usecases.NewChatService(env.chat, logger).WithPicker(func(int) int { return 0 }),
		Users:        usecases.NewUserService(&memUserRepo{}, tokens, nil),
	}
	env.app = fiber.New()
	handler.SetupRoutes(env.app, env.deps)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			reader = strings.NewReader(string(data))
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, data
}

func (e *testEnv) createSession(t *testing.T, body any) string {
	t.Helper()
	resp, data := e.do(t, "POST", "/v1/sessions", body)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create session: status %d: %s", resp.StatusCode, data)
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out.SessionID
}

func (e *testEnv) session(t *testing.T, id string) *usecases.Session {
	t.Helper()
	sess, err := e.deps.Sessions.Get(id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return sess
}

func (e *testEnv) frame(t *testing.T, id string) domain.Frame {
	t.Helper()
	resp, data := e.do(t, "GET", "/v1/sessions/"+id, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("get frame: status %d: %s", resp.StatusCode, data)
	}
	var f domain.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return f
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, data []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, data)
	}
}

// ---- System ----

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	env.createSession(t, nil)

	resp, data := env.do(t, "GET", "/v1/health", nil)
	expectStatus(t, resp, data, 200)

	body := decode[map[string]any](t, data)
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	if body["sessions"] != float64(1) {
		t.Errorf("expected 1 session, got %v", body["sessions"])
	}
}

func TestReadyHandler_WithoutDatabase(t *testing.T) {
	env := newTestEnv(t)
	resp, data := env.do(t, "GET", "/v1/ready", nil)
	expectStatus(t, resp, data, 503)

	body := decode[struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}](t, data)
	if body.Checks["database"] != "not configured" {
		t.Errorf("unexpected database check %q", body.Checks["database"])
	}
}

// ---- Sessions ----

func TestCreateSession_Defaults(t *testing.T) {
	env := newTestEnv(t)
	resp, data := env.do(t, "POST", "/v1/sessions", nil)
	expectStatus(t, resp, data, 201)

	body := decode[struct {
		SessionID string       `json:"session_id"`
		Frame     domain.Frame `json:"frame"`
	}](t, data)
	if body.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if body.Frame.Version != 1 {
		t.Errorf("expected initial frame version 1, got %d", body.Frame.Version)
	}
	if !body.Frame.Features.SearchBar || !body.Frame.Features.RoutePanel {
		t.Errorf("expected default features, got %+v", body.Frame.Features)
	}
	if body.Frame.Watch.MaxAgeMs != 10000 || !body.Frame.Watch.HighAccuracy {
		t.Errorf("unexpected watch options %+v", body.Frame.Watch)
	}
	if body.Frame.Tracker.State != domain.TrackerIdle {
		t.Errorf("expected idle tracker, got %s", body.Frame.Tracker.State)
	}
}

func TestCreateSession_Overrides(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, map[string]any{
		"features": map[string]bool{"search_bar": false, "autocomplete": true},
		"watch":    map[string]any{"timeout_ms": 2000},
	})

	f := env.frame(t, id)
	if f.Features.SearchBar || !f.Features.Autocomplete || f.Features.RoutePanel {
		t.Errorf("unexpected features %+v", f.Features)
	}
	if f.Watch.TimeoutMs != 2000 || f.Watch.MaxAgeMs != 10000 || !f.Watch.HighAccuracy {
		t.Errorf("unexpected watch options %+v", f.Watch)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	env := newTestEnv(t)
	resp, data := env.do(t, "GET", "/v1/sessions/does-not-exist", nil)
	expectStatus(t, resp, data, 404)

	apiErr := decode[handler.APIError](t, data)
	if apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %q", apiErr.Code)
	}
}

func TestCloseSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "DELETE", "/v1/sessions/"+id, nil)
	expectStatus(t, resp, data, 204)

	resp, data = env.do(t, "GET", "/v1/sessions/"+id, nil)
	expectStatus(t, resp, data, 404)
}

// ---- Waypoints ----

func TestAddWaypoint_MapClickResolvesLabel(t *testing.T) {
	env := newTestEnv(t)
	env.geocoder.reverseFn = func(ctx context.Context, c domain.Coordinate) (string, error) {
		return "Guggenheim Museum Bilbao", nil
	}
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/waypoints", map[string]float64{"lat": 43.2687, "lng": -2.9340})
	expectStatus(t, resp, data, 201)
	wp := decode[domain.Waypoint](t, data)
	if wp.Label != domain.PlaceholderLabel || wp.Resolved {
		t.Errorf("expected placeholder label, got %+v", wp)
	}

	env.session(t, id).WaitIdle()

	resp, data = env.do(t, "GET", "/v1/sessions/"+id+"/waypoints", nil)
	expectStatus(t, resp, data, 200)
	list := decode[[]domain.Waypoint](t, data)
	if len(list) != 1 {
		t.Fatalf("expected 1 waypoint, got %d", len(list))
	}
	if list[0].ID != wp.ID || list[0].Label != "Guggenheim Museum Bilbao" || !list[0].Resolved {
		t.Errorf("expected resolved label in place, got %+v", list[0])
	}
}

func TestAddWaypoint_GeocodeFailureUsesUnknownLocation(t *testing.T) {
	env := newTestEnv(t)
	env.geocoder.reverseFn = func(ctx context.Context, c domain.Coordinate) (string, error) {
		return "", domain.ErrNetworkFailure
	}
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/waypoints", map[string]float64{"lat": 1, "lng": 2})
	expectStatus(t, resp, data, 201)
	env.session(t, id).WaitIdle()

	latest, ok := env.session(t, id).LatestWaypoint()
	if !ok || latest.Label != domain.UnknownLocation {
		t.Errorf("expected %q, got %+v", domain.UnknownLocation, latest)
	}
}

func TestAddWaypoint_InvalidCoordinate(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/waypoints", map[string]float64{"lat": 91, "lng": 0})
	expectStatus(t, resp, data, 400)

	resp, data = env.do(t, "POST", "/v1/sessions/"+id+"/waypoints", `{"lng": 3}`)
	expectStatus(t, resp, data, 400)

	if n := len(env.session(t, id).Waypoints()); n != 0 {
		t.Errorf("expected no waypoints after rejected input, got %d", n)
	}
}

func TestSelectSuggestion_MissingCoordinate(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	for _, body := range []string{`{"lat": 43.26, "label": "Casco Viejo"}`, `{"lng": -2.93}`, `{}`} {
		resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/suggestions", body)
		expectStatus(t, resp, data, 400)
	}

	sess := env.session(t, id)
	if n := len(sess.Waypoints()); n != 0 {
		t.Errorf("expected no waypoints after rejected suggestions, got %d", n)
	}
	if f := sess.Frame(); f.Camera != nil {
		t.Errorf("expected no camera target, got %+v", f.Camera)
	}
}

func TestAddWaypoint_LabelTooLong(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/waypoints",
		map[string]any{"lat": 43.26, "lng": -2.93, "label": strings.Repeat("x", 201)})
	expectStatus(t, resp, data, 400)
	if n := len(env.session(t, id).Waypoints()); n != 0 {
		t.Errorf("expected no waypoints, got %d", n)
	}
}

func TestLatestWaypoint(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "GET", "/v1/sessions/"+id+"/waypoints/latest", nil)
	expectStatus(t, resp, data, 404)

	env.do(t, "POST", "/v1/sessions/"+id+"/waypoints", map[string]any{"lat": 1, "lng": 1, "label": "First"})
	env.do(t, "POST", "/v1/sessions/"+id+"/waypoints", map[string]any{"lat": 2, "lng": 2, "label": "Second"})

	resp, data = env.do(t, "GET", "/v1/sessions/"+id+"/waypoints/latest", nil)
	expectStatus(t, resp, data, 200)
	if wp := decode[domain.Waypoint](t, data); wp.Label != "Second" {
		t.Errorf("expected Second, got %q", wp.Label)
	}
}

func TestClearWaypointsAndReset(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	env.do(t, "POST", "/v1/sessions/"+id+"/waypoints", map[string]any{"lat": 1, "lng": 1, "label": "A"})
	resp, data := env.do(t, "DELETE", "/v1/sessions/"+id+"/waypoints", nil)
	expectStatus(t, resp, data, 204)
	if f := env.frame(t, id); len(f.Waypoints) != 0 {
		t.Errorf("expected no markers after clear, got %d", len(f.Waypoints))
	}

	env.do(t, "POST", "/v1/sessions/"+id+"/waypoints", map[string]any{"lat": 1, "lng": 1, "label": "B"})
	env.do(t, "POST", "/v1/sessions/"+id+"/focus", map[string]float64{"lat": 1, "lng": 1})
	resp, data = env.do(t, "POST", "/v1/sessions/"+id+"/reset", nil)
	expectStatus(t, resp, data, 200)
	f := decode[domain.Frame](t, data)
	if len(f.Waypoints) != 0 || f.Camera != nil {
		t.Errorf("expected empty view after reset, got %d markers camera=%v", len(f.Waypoints), f.Camera)
	}
}

func TestSelectSuggestion(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/suggestions", map[string]any{"lat": 43.26, "lng": -2.93, "label": "Bilbao"})
	expectStatus(t, resp, data, 201)
	body := decode[struct {
		Waypoint domain.Waypoint `json:"waypoint"`
		Camera   domain.Camera   `json:"camera"`
	}](t, data)
	if body.Waypoint.Label != "Bilbao" || !body.Waypoint.Resolved {
		t.Errorf("unexpected waypoint %+v", body.Waypoint)
	}
	if body.Camera.Zoom != 14 || body.Camera.Center != body.Waypoint.Coordinate {
		t.Errorf("expected focus on the suggestion, got %+v", body.Camera)
	}

	disabled := env.createSession(t, map[string]any{"features": map[string]bool{"search_bar": true}})
	resp, data = env.do(t, "POST", "/v1/sessions/"+disabled+"/suggestions", map[string]any{"lat": 1, "lng": 1, "label": "X"})
	expectStatus(t, resp, data, 409)
}

// ---- Location ----

func TestCurrentFix_FallsBackOnTimeout(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/location/fix", nil)
	expectStatus(t, resp, data, 200)
	res := decode[usecases.FixResult](t, data)
	if !res.Fallback || res.Warning == "" {
		t.Errorf("expected fallback with warning, got %+v", res)
	}
	if res.Location.Coordinate != (domain.Coordinate{Lat: 40.7128, Lng: -74.0060}) {
		t.Errorf("expected default coordinate, got %+v", res.Location.Coordinate)
	}
	if f := env.frame(t, id); f.Tracker.State != domain.TrackerFallback || f.Location == nil {
		t.Errorf("expected fallback marker, got tracker=%+v location=%v", f.Tracker, f.Location)
	}
}

func TestCurrentFix_UsesPushedFix(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/location/fixes", map[string]float64{"lat": 43.263, "lng": -2.935, "accuracy": 8})
	expectStatus(t, resp, data, 202)

	resp, data = env.do(t, "POST", "/v1/sessions/"+id+"/location/fix", nil)
	expectStatus(t, resp, data, 200)
	res := decode[usecases.FixResult](t, data)
	if res.Fallback || res.Location.Coordinate.Lat != 43.263 || res.Location.Accuracy != 8 {
		t.Errorf("unexpected fix result %+v", res)
	}
}

func TestWatch_PermissionDeniedIsBlocking(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/location/watch", nil)
	expectStatus(t, resp, data, 200)
	if st := decode[domain.TrackerStatus](t, data); !st.Watching {
		t.Fatalf("expected watching, got %+v", st)
	}

	resp, data = env.do(t, "POST", "/v1/sessions/"+id+"/location/fixes", map[string]string{"error": "permission-denied"})
	expectStatus(t, resp, data, 202)

	f := env.frame(t, id)
	if f.Tracker.State != domain.TrackerPermissionDenied || !f.Tracker.Blocking || f.Tracker.Watching {
		t.Errorf("expected blocking permission_denied, got %+v", f.Tracker)
	}
	if f.Location != nil {
		t.Errorf("location must not be substituted on permission denial, got %+v", f.Location)
	}
}

func TestWatch_FixAfterStopIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	env.do(t, "POST", "/v1/sessions/"+id+"/location/watch", nil)
	resp, data := env.do(t, "DELETE", "/v1/sessions/"+id+"/location/watch", nil)
	expectStatus(t, resp, data, 200)

	env.do(t, "POST", "/v1/sessions/"+id+"/location/fixes", map[string]float64{"lat": 10, "lng": 10})
	if f := env.frame(t, id); f.Location != nil {
		t.Errorf("expected no location after stop, got %+v", f.Location)
	}
}

func TestPushFix_Validation(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/location/fixes", map[string]float64{"accuracy": 3})
	expectStatus(t, resp, data, 400)

	resp, data = env.do(t, "POST", "/v1/sessions/"+id+"/location/fixes", map[string]float64{"lat": -95, "lng": 0})
	expectStatus(t, resp, data, 400)
}

func TestPushFix_NegativeAccuracyNotApplied(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/location/fixes",
		map[string]float64{"lat": 43.263, "lng": -2.935, "accuracy": -5})
	expectStatus(t, resp, data, 400)

	// Nothing reached the feed, so a one-shot request times out onto the fallback.
	resp, data = env.do(t, "POST", "/v1/sessions/"+id+"/location/fix", nil)
	expectStatus(t, resp, data, 200)
	res := decode[usecases.FixResult](t, data)
	if !res.Fallback || res.Location.Coordinate != (domain.Coordinate{Lat: 40.7128, Lng: -74.0060}) {
		t.Errorf("expected the fallback location, got %+v", res)
	}
}

func TestPushFix_MalformedBody(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/location/fixes", `{"lat": "north"`)
	expectStatus(t, resp, data, 400)
	if loc := env.session(t, id).Location(); loc != nil {
		t.Errorf("expected no location, got %+v", loc)
	}
}

// ---- Route ----

func TestRoute_InstalledThroughLocationAndWaypoints(t *testing.T) {
	env := newTestEnv(t)
	origin := domain.Coordinate{Lat: 43.263, Lng: -2.935}
	dest := domain.Coordinate{Lat: 43.2687, Lng: -2.9340}

	var got []domain.Coordinate
	var mu sync.Mutex
	env.directions.directionsFn = func(ctx context.Context, points []domain.Coordinate) ([]domain.RouteCandidate, error) {
		mu.Lock()
		got = points
		mu.Unlock()
		return []domain.RouteCandidate{{
			Geometry:        []domain.Coordinate{origin, dest},
			DistanceMeters:  1200,
			DurationSeconds: 240,
		}}, nil
	}
	id := env.createSession(t, nil)

	resp, data := env.do(t, "GET", "/v1/sessions/"+id+"/route", nil)
	expectStatus(t, resp, data, 404)

	env.do(t, "POST", "/v1/sessions/"+id+"/location/fixes", map[string]float64{"lat": origin.Lat, "lng": origin.Lng})
	env.do(t, "POST", "/v1/sessions/"+id+"/location/fix", nil)
	env.do(t, "POST", "/v1/sessions/"+id+"/waypoints", map[string]any{"lat": dest.Lat, "lng": dest.Lng, "label": "Guggenheim"})
	env.session(t, id).WaitIdle()

	resp, data = env.do(t, "GET", "/v1/sessions/"+id+"/route", nil)
	expectStatus(t, resp, data, 200)
	route := decode[domain.RoutePath](t, data)
	if len(route.Geometry) != 2 || route.DistanceMeters != 1200 {
		t.Errorf("unexpected route %+v", route)
	}

	mu.Lock()
	if len(got) != 2 || got[0] != origin || got[1] != dest {
		t.Errorf("expected [origin, dest] request, got %v", got)
	}
	mu.Unlock()

	f := env.frame(t, id)
	if len(f.Path) != 2 || f.FitBounds == nil {
		t.Errorf("expected path and bounds in frame, got %+v", f)
	}
	if f.Summary == nil || len(f.Summary.Stops) != 1 || f.Summary.Stops[0] != "Guggenheim" {
		t.Errorf("expected route summary, got %+v", f.Summary)
	}
}

// ---- Camera & search ----

func TestFocus(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/focus", nil)
	expectStatus(t, resp, data, 404)

	resp, data = env.do(t, "POST", "/v1/sessions/"+id+"/focus", map[string]float64{"lat": 43.26})
	expectStatus(t, resp, data, 400)

	resp, data = env.do(t, "POST", "/v1/sessions/"+id+"/focus", map[string]float64{"lat": 43.26, "lng": -2.93})
	expectStatus(t, resp, data, 200)
	cam := decode[domain.Camera](t, data)
	if cam.Zoom != 14 || cam.DurationMs != 20 || !cam.Animating || cam.Seq != 1 {
		t.Errorf("unexpected camera %+v", cam)
	}
}

func TestQuery_FliesToFirstMatch(t *testing.T) {
	env := newTestEnv(t)
	env.geocoder.searchFn = func(ctx context.Context, q string, limit int) ([]domain.Place, error) {
		return []domain.Place{
			{Coordinate: domain.Coordinate{Lat: 43.263, Lng: -2.935}, Label: "Bilbao, Spain"},
		}, nil
	}
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/query", map[string]string{"query": "bilbao"})
	expectStatus(t, resp, data, 200)
	body := decode[struct {
		Place  *domain.Place  `json:"place"`
		Camera *domain.Camera `json:"camera"`
	}](t, data)
	if body.Place == nil || body.Place.Label != "Bilbao, Spain" {
		t.Fatalf("expected first match, got %+v", body.Place)
	}
	if body.Camera == nil || body.Camera.Zoom != 12 {
		t.Errorf("expected search zoom 12, got %+v", body.Camera)
	}
	if q := env.session(t, id).Query(); q != "" {
		t.Errorf("expected query reset, got %q", q)
	}
}

func TestQuery_NoMatch(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/query", map[string]string{"query": "zzzz"})
	expectStatus(t, resp, data, 200)
	body := decode[map[string]json.RawMessage](t, data)
	if string(body["place"]) != "null" || string(body["camera"]) != "null" {
		t.Errorf("expected null place and camera, got %s", data)
	}
}

func TestQuery_FeatureDisabled(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, map[string]any{"features": map[string]bool{}})

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/query", map[string]string{"query": "bilbao"})
	expectStatus(t, resp, data, 409)
	if env.geocoder.searches.Load() != 0 {
		t.Error("expected no geocoder call for a disabled search bar")
	}
}

func TestQuery_TooLong(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)

	resp, data := env.do(t, "POST", "/v1/sessions/"+id+"/query", map[string]string{"query": strings.Repeat("b", 201)})
	expectStatus(t, resp, data, 400)
	if env.geocoder.searches.Load() != 0 {
		t.Error("expected no geocoder call for a rejected query")
	}
	if f := env.frame(t, id); f.Camera != nil {
		t.Errorf("expected no camera target, got %+v", f.Camera)
	}
}

// ---- Stateless lookups ----

func TestReverseGeocode(t *testing.T) {
	env := newTestEnv(t)
	env.geocoder.reverseFn = func(ctx context.Context, c domain.Coordinate) (string, error) {
		return "", errors.New("boom")
	}

	resp, data := env.do(t, "GET", "/v1/geocode/reverse?lat=43.26&lng=-2.93", nil)
	expectStatus(t, resp, data, 200)
	if body := decode[map[string]any](t, data); body["name"] != domain.UnknownLocation {
		t.Errorf("expected %q, got %v", domain.UnknownLocation, body["name"])
	}

	resp, data = env.do(t, "GET", "/v1/geocode/reverse?lat=43.26", nil)
	expectStatus(t, resp, data, 400)
}

func TestSearchPlaces_BlankQuery(t *testing.T) {
	env := newTestEnv(t)
	resp, data := env.do(t, "GET", "/v1/geocode/search?q=%20%20", nil)
	expectStatus(t, resp, data, 200)
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("expected empty list, got %s", data)
	}
	if env.geocoder.searches.Load() != 0 {
		t.Error("expected no provider call for a blank query")
	}
}

func TestCityHandler(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, "POST", "/v1/city", map[string]float64{"lat": 43.26})
	expectStatus(t, resp, data, 400)

	resp, data = env.do(t, "POST", "/v1/city", map[string]float64{"lat": 43.26, "lon": -2.93})
	expectStatus(t, resp, data, 400)
	if body := decode[map[string]string](t, data); body["error"] != "Unable to fetch location" {
		t.Errorf("unexpected error body %v", body)
	}

	env.cities.resolveFn = func(ctx context.Context, c domain.Coordinate) (string, error) {
		if c.Lng != -2.93 {
			t.Errorf("expected lon mapped to lng, got %+v", c)
		}
		return "Bilbao", nil
	}
	resp, data = env.do(t, "POST", "/v1/city", map[string]float64{"lat": 43.26, "lon": -2.93})
	expectStatus(t, resp, data, 200)
	if body := decode[map[string]string](t, data); body["city"] != "Bilbao" {
		t.Errorf("expected Bilbao, got %v", body)
	}
}

func TestNearbyDestinations(t *testing.T) {
	env := newTestEnv(t)
	var gotRadius float64
	env.destinations.findNearbyFn = func(ctx context.Context, lat, lng, radius float64, limit int) ([]domain.Destination, error) {
		gotRadius = radius
		d := 350.0
		return []domain.Destination{{ID: "d1", Slug: "guggenheim", Name: "Guggenheim", Location: domain.Coordinate{Lat: lat, Lng: lng}, Distance: &d}}, nil
	}

	resp, data := env.do(t, "GET", "/v1/destinations/nearby?lat=43.26&lng=-2.93", nil)
	expectStatus(t, resp, data, 200)
	list := decode[[]domain.Destination](t, data)
	if len(list) != 1 || list[0].Slug != "guggenheim" {
		t.Errorf("unexpected destinations %+v", list)
	}
	if gotRadius != 5000 {
		t.Errorf("expected default radius 5000, got %v", gotRadius)
	}

	resp, data = env.do(t, "GET", "/v1/destinations/nearby?lat=43.26&lng=-2.93&radius=90000", nil)
	expectStatus(t, resp, data, 400)
}

func TestGetDestination_NotFound(t *testing.T) {
	env := newTestEnv(t)
	resp, data := env.do(t, "GET", "/v1/destinations/unknown", nil)
	expectStatus(t, resp, data, 404)
}

func TestChatHandler(t *testing.T) {
	env := newTestEnv(t)
	env.chat.generateFn = func(ctx context.Context, prompt string) (string, error) {
		return "Visit the old town.", nil
	}

	resp, data := env.do(t, "POST", "/v1/chat", map[string]string{"message": "  "})
	expectStatus(t, resp, data, 400)

	resp, data = env.do(t, "POST", "/v1/chat", map[string]string{"message": "What is the derivative of x^2?"})
	expectStatus(t, resp, data, 200)
	if reply := decode[domain.ChatReply](t, data); reply.Allowed || reply.Text != usecases.RefusalReply {
		t.Errorf("expected refusal, got %+v", reply)
	}

	resp, data = env.do(t, "POST", "/v1/chat", map[string]string{"message": "Best places to visit in Bilbao?"})
	expectStatus(t, resp, data, 200)
	if reply := decode[domain.ChatReply](t, data); !reply.Allowed || reply.Text != "Visit the old town." {
		t.Errorf("expected model answer, got %+v", reply)
	}
}

func TestChatHandler_MessageTooLong(t *testing.T) {
	env := newTestEnv(t)
	env.chat.generateFn = func(ctx context.Context, prompt string) (string, error) {
		return "Visit the old town.", nil
	}

	msg := "Best places to visit in Bilbao? " + strings.Repeat("a", 2000)
	resp, data := env.do(t, "POST", "/v1/chat", map[string]string{"message": msg})
	expectStatus(t, resp, data, 400)
	if n := env.chat.calls.Load(); n != 0 {
		t.Errorf("expected no model call, got %d", n)
	}
}

func TestUsers_SyncInvalidBody(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, "POST", "/v1/users/sync", `not json`)
	expectStatus(t, resp, data, 400)
	if e := decode[handler.APIError](t, data); e.Code != "bad_request" {
		t.Errorf("expected bad_request, got %+v", e)
	}
}

// ---- Users ----

func TestUsers_SyncAndMe(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, "GET", "/v1/users/me", nil)
	expectStatus(t, resp, data, 401)

	resp, data = env.do(t, "POST", "/v1/users/sync", map[string]any{"external_id": "user_1", "email": "not-an-email"})
	expectStatus(t, resp, data, 400)

	resp, data = env.do(t, "POST", "/v1/users/sync", map[string]any{
		"external_id": "user_1",
		"first_name":  "Ada",
		"last_name":   "Lovelace",
		"email":       "ada@example.com",
		"providers":   []string{"google"},
	})
	expectStatus(t, resp, data, 200)
	synced := decode[struct {
		User  domain.User `json:"user"`
		Token string      `json:"token"`
	}](t, data)
	if synced.Token == "" || synced.User.Name != "Ada Lovelace" {
		t.Fatalf("unexpected sync result %+v", synced)
	}

	resp, data = env.do(t, "GET", "/v1/users/me", nil, "Authorization", "Bearer "+synced.Token)
	expectStatus(t, resp, data, 200)
	if me := decode[domain.User](t, data); me.Email != "ada@example.com" || me.Providers != "google" {
		t.Errorf("unexpected user %+v", me)
	}

	resp, data = env.do(t, "GET", "/v1/users/me", nil, "Authorization", "Bearer garbage")
	expectStatus(t, resp, data, 401)
}

func TestCreateSession_CarriesUserFromToken(t *testing.T) {
	env := newTestEnv(t)
	_, data := env.do(t, "POST", "/v1/users/sync", map[string]any{"external_id": "user_2", "email": "u2@example.com"})
	token := decode[struct {
		Token string `json:"token"`
	}](t, data).Token

	resp, data := env.do(t, "POST", "/v1/sessions", nil, "Authorization", "Bearer "+token)
	expectStatus(t, resp, data, 201)
	id := decode[struct {
		SessionID string `json:"session_id"`
	}](t, data).SessionID
	if got := env.session(t, id).UserID; got != "user_2" {
		t.Errorf("expected session owned by user_2, got %q", got)
	}
}

// ---- GraphQL ----

func TestGraphQL_SessionFrame(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, nil)
	env.do(t, "POST", "/v1/sessions/"+id+"/waypoints", map[string]any{"lat": 1, "lng": 2, "label": "Stop"})

	resp, data := env.do(t, "POST", "/graphql", map[string]string{
		"query": `{ session(id: "` + id + `") { session_id version waypoints { label color } } }`,
	})
	expectStatus(t, resp, data, 200)

	body := decode[struct {
		Data struct {
			Session struct {
				SessionID string `json:"session_id"`
				Version   int    `json:"version"`
				Waypoints []struct {
					Label string `json:"label"`
					Color string `json:"color"`
				} `json:"waypoints"`
			} `json:"session"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}](t, data)
	if len(body.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", body.Errors)
	}
	s := body.Data.Session
	if s.SessionID != id || s.Version != 2 || len(s.Waypoints) != 1 || s.Waypoints[0].Label != "Stop" || s.Waypoints[0].Color != "blue" {
		t.Errorf("unexpected session %+v", s)
	}
}
