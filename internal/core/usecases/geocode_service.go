package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcloughlin/geohash"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/ports"
	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 10

	// precision 9 cells are roughly 5m across, close enough to share a name.
	reverseGeohashPrecision = 9
)

// GeocodeService names coordinates and turns free text into places. Naming
// failures degrade to domain.UnknownLocation and never reach the caller.
type GeocodeService struct {
	geocoder ports.Geocoder
	cities   ports.CityResolver
	cache    ports.CacheService
	cacheTTL int
	logger   *slog.Logger
}

// NewGeocodeService creates a GeocodeService. cache and cities may be nil.
func NewGeocodeService(geocoder ports.Geocoder, cities ports.CityResolver, cache ports.CacheService, cacheTTLSeconds int, logger *slog.Logger) *GeocodeService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTLSeconds <= 0 {
		cacheTTLSeconds = 3600
	}
	return &GeocodeService{
		geocoder: geocoder,
		cities:   cities,
		cache:    cache,
		cacheTTL: cacheTTLSeconds,
		logger:   logger,
	}
}

// ResolveName reverse-geocodes c.
func (s *GeocodeService) ResolveName(ctx context.Context, c domain.Coordinate) string {
	if err := c.Validate(); err != nil {
		return domain.UnknownLocation
	}

	cacheKey := "geocode:reverse:" + geohash.EncodeWithPrecision(c.Lat, c.Lng, reverseGeohashPrecision)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil && len(data) > 0 {
			metrics.CacheHits.WithLabelValues("geocode_reverse").Inc()
			return string(data)
		}
		metrics.CacheMisses.WithLabelValues("geocode_reverse").Inc()
	}

	name, err := s.geocoder.ReverseGeocode(ctx, c)
	switch {
	case err != nil:
		metrics.GeocodeRequests.WithLabelValues("reverse", "failed").Inc()
		s.logger.Warn("reverse geocode failed", "lat", c.Lat, "lng", c.Lng, "error", err)
		return domain.UnknownLocation
	case strings.TrimSpace(name) == "":
		metrics.GeocodeRequests.WithLabelValues("reverse", "empty").Inc()
		return domain.UnknownLocation
	}
	metrics.GeocodeRequests.WithLabelValues("reverse", "ok").Inc()

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, []byte(name), s.cacheTTL)
	}
	return name
}

// SearchByText returns candidate places for query in provider order. A blank
// query returns an empty slice without calling the provider; provider
// failures also yield an empty slice.
func (s *GeocodeService) SearchByText(ctx context.Context, query string, limit int) []domain.Place {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Place{}
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	cacheKey := fmt.Sprintf("geocode:search:%s:%d", strings.ToLower(query), limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var places []domain.Place
			if err := json.Unmarshal(data, &places); err == nil {
				metrics.CacheHits.WithLabelValues("geocode_search").Inc()
				return places
			}
		}
		metrics.CacheMisses.WithLabelValues("geocode_search").Inc()
	}

	places, err := s.geocoder.SearchPlaces(ctx, query, limit)
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("search", "failed").Inc()
		s.logger.Warn("place search failed", "query", query, "error", err)
		return []domain.Place{}
	}

	valid := make([]domain.Place, 0, len(places))
	for _, p := range places {
		if p.Coordinate.Validate() == nil {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		metrics.GeocodeRequests.WithLabelValues("search", "empty").Inc()
		return valid
	}
	metrics.GeocodeRequests.WithLabelValues("search", "ok").Inc()

	if s.cache != nil {
		if data, err := json.Marshal(valid); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}
	return valid
}

// ResolveCity returns the locality containing c. Unlike ResolveName it
// reports failures, since the city endpoint answers with an error body.
func (s *GeocodeService) ResolveCity(ctx context.Context, c domain.Coordinate) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	if s.cities == nil {
		return "", fmt.Errorf("city lookup: %w", domain.ErrFeatureDisabled)
	}

	city, err := s.cities.ResolveCity(ctx, c)
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("city", "failed").Inc()
		if errors.Is(err, domain.ErrEmptyResult) {
			return "", err
		}
		return "", fmt.Errorf("city lookup: %w: %v", domain.ErrNetworkFailure, err)
	}
	if city == "" {
		metrics.GeocodeRequests.WithLabelValues("city", "empty").Inc()
		return "", fmt.Errorf("city lookup: %w", domain.ErrEmptyResult)
	}
	metrics.GeocodeRequests.WithLabelValues("city", "ok").Inc()
	return city, nil
}
