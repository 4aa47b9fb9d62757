package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// GoogleGeocoder implements ports.CityResolver with the Google Geocoding API.
type GoogleGeocoder struct {
	*client
	endpoint string
	apiKey   string
}

// NewGoogleGeocoder creates a city resolver.
func NewGoogleGeocoder(endpoint, apiKey string, httpClient *http.Client, maxRetries int) *GoogleGeocoder {
	return &GoogleGeocoder{client: newClient(httpClient, maxRetries), endpoint: endpoint, apiKey: apiKey}
}

type googleGeocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// ResolveCity returns the locality component of the first result.
func (g *GoogleGeocoder) ResolveCity(ctx context.Context, c domain.Coordinate) (string, error) {
	params := url.Values{
		"latlng": {fmt.Sprintf("%f,%f", c.Lat, c.Lng)},
		"key":    {g.apiKey},
	}
	endpoint := g.endpoint + "?" + params.Encode()

	var decoded googleGeocodeResponse
	err := g.getJSON(ctx, "google.geocode", func(ctx context.Context) (*http.Request, error) {
		return g.newRequest(ctx, http.MethodGet, endpoint, nil)
	}, &decoded)
	if err != nil {
		return "", networkFailure("google geocode", err)
	}
	if decoded.Status != "OK" || len(decoded.Results) == 0 {
		return "", fmt.Errorf("google geocode status %q: %w", decoded.Status, domain.ErrEmptyResult)
	}

	for _, comp := range decoded.Results[0].AddressComponents {
		if slices.Contains(comp.Types, "locality") {
			return comp.LongName, nil
		}
	}
	return "", fmt.Errorf("no locality component: %w", domain.ErrEmptyResult)
}
