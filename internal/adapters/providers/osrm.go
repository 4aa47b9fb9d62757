package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// OSRM implements ports.DirectionsProvider against an OSRM route service.
type OSRM struct {
	*client
	baseURL string
}

// NewOSRM creates an OSRM client.
func NewOSRM(baseURL string, httpClient *http.Client, maxRetries int) *OSRM {
	return &OSRM{client: newClient(httpClient, maxRetries), baseURL: strings.TrimRight(baseURL, "/")}
}

// Directions returns candidate driving routes through points in order.
func (o *OSRM) Directions(ctx context.Context, points []domain.Coordinate) ([]domain.RouteCandidate, error) {
	endpoint := fmt.Sprintf("%s/route/v1/driving/%s?overview=full&geometries=geojson", o.baseURL, coordinatePath(points))

	var decoded routeResponse
	err := o.getJSON(ctx, "osrm.route", func(ctx context.Context) (*http.Request, error) {
		return o.newRequest(ctx, http.MethodGet, endpoint, nil)
	}, &decoded)
	if err != nil {
		if noRoute(err) {
			return nil, nil
		}
		return nil, networkFailure("osrm route", err)
	}
	if decoded.Code != "Ok" {
		return nil, nil
	}
	return decoded.candidates(), nil
}
