package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// Mapbox implements ports.Geocoder and ports.DirectionsProvider against the
// Mapbox Geocoding v5 and Directions v5 APIs.
type Mapbox struct {
	*client
	baseURL string
	token   string
	profile string
}

// NewMapbox creates a Mapbox client. profile is the routing profile,
// e.g. "driving".
func NewMapbox(baseURL, token, profile string, httpClient *http.Client, maxRetries int) *Mapbox {
	if profile == "" {
		profile = "driving"
	}
	return &Mapbox{
		client:  newClient(httpClient, maxRetries),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		profile: profile,
	}
}

type mapboxFeature struct {
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Center    []float64 `json:"center"`
}

type mapboxGeocodeResponse struct {
	Features []mapboxFeature `json:"features"`
}

// geocodeURL builds a places endpoint; segment must already be path-safe.
func (m *Mapbox) geocodeURL(segment string, params url.Values) string {
	params.Set("access_token", m.token)
	return fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", m.baseURL, segment, params.Encode())
}

// ReverseGeocode returns the place name at c, or "" when nothing is there.
func (m *Mapbox) ReverseGeocode(ctx context.Context, c domain.Coordinate) (string, error) {
	endpoint := m.geocodeURL(fmt.Sprintf("%.6f,%.6f", c.Lng, c.Lat), url.Values{"limit": {"1"}})

	var decoded mapboxGeocodeResponse
	err := m.getJSON(ctx, "mapbox.reverseGeocode", func(ctx context.Context) (*http.Request, error) {
		return m.newRequest(ctx, http.MethodGet, endpoint, nil)
	}, &decoded)
	if err != nil {
		return "", networkFailure("mapbox reverse geocode", err)
	}
	if len(decoded.Features) == 0 {
		return "", nil
	}
	return decoded.Features[0].PlaceName, nil
}

// SearchPlaces forward-geocodes query.
func (m *Mapbox) SearchPlaces(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	endpoint := m.geocodeURL(url.PathEscape(query), url.Values{
		"limit":        {strconv.Itoa(limit)},
		"autocomplete": {"true"},
	})

	var decoded mapboxGeocodeResponse
	err := m.getJSON(ctx, "mapbox.searchPlaces", func(ctx context.Context) (*http.Request, error) {
		return m.newRequest(ctx, http.MethodGet, endpoint, nil)
	}, &decoded)
	if err != nil {
		return nil, networkFailure("mapbox search", err)
	}

	places := make([]domain.Place, 0, len(decoded.Features))
	for _, f := range decoded.Features {
		if len(f.Center) < 2 {
			continue
		}
		label := f.PlaceName
		if label == "" {
			label = f.Text
		}
		places = append(places, domain.Place{
			Coordinate: domain.Coordinate{Lat: f.Center[1], Lng: f.Center[0]},
			Label:      label,
		})
	}
	return places, nil
}

type routeGeometry struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry routeGeometry `json:"geometry"`
		Distance float64       `json:"distance"`
		Duration float64       `json:"duration"`
	} `json:"routes"`
}

func (r routeResponse) candidates() []domain.RouteCandidate {
	out := make([]domain.RouteCandidate, 0, len(r.Routes))
	for _, rt := range r.Routes {
		geom := lineString(rt.Geometry.Coordinates)
		if len(geom) == 0 {
			continue
		}
		out = append(out, domain.RouteCandidate{
			Geometry:        geom,
			DistanceMeters:  rt.Distance,
			DurationSeconds: rt.Duration,
		})
	}
	return out
}

// noRoute reports whether a routing API rejected the request as unroutable.
func noRoute(err error) bool {
	var he *httpStatusError
	if !errors.As(err, &he) {
		return false
	}
	return strings.Contains(he.Body, "NoRoute") || strings.Contains(he.Body, "NoSegment")
}

// Directions returns candidate routes through points in order.
func (m *Mapbox) Directions(ctx context.Context, points []domain.Coordinate) ([]domain.RouteCandidate, error) {
	params := url.Values{
		"geometries":   {"geojson"},
		"overview":     {"full"},
		"access_token": {m.token},
	}
	endpoint := fmt.Sprintf("%s/directions/v5/mapbox/%s/%s?%s",
		m.baseURL, m.profile, coordinatePath(points), params.Encode())

	var decoded routeResponse
	err := m.getJSON(ctx, "mapbox.directions", func(ctx context.Context) (*http.Request, error) {
		return m.newRequest(ctx, http.MethodGet, endpoint, nil)
	}, &decoded)
	if err != nil {
		if noRoute(err) {
			return nil, nil
		}
		return nil, networkFailure("mapbox directions", err)
	}
	if decoded.Code != "" && decoded.Code != "Ok" {
		return nil, nil
	}
	return decoded.candidates(), nil
}
