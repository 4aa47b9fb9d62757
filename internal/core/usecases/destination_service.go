package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/ports"
	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
)

const (
	defaultNearbyRadius = 5000
	maxNearbyRadius     = 50000
)

// DestinationService serves the curated destination catalog.
type DestinationService struct {
	destinations ports.DestinationRepository
	cache        ports.CacheService
}

// NewDestinationService creates a new DestinationService.
func NewDestinationService(destinations ports.DestinationRepository, cache ports.CacheService) *DestinationService {
	return &DestinationService{destinations: destinations, cache: cache}
}

// FindNearby returns destinations within radiusMeters of c, nearest first.
func (s *DestinationService) FindNearby(ctx context.Context, c domain.Coordinate, radiusMeters float64, limit int) ([]domain.Destination, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		radiusMeters = defaultNearbyRadius
	}
	if radiusMeters > maxNearbyRadius {
		radiusMeters = maxNearbyRadius
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("destinations:nearby:%.4f:%.4f:%.0f:%d", c.Lat, c.Lng, radiusMeters, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var out []domain.Destination
			if err := json.Unmarshal(data, &out); err == nil {
				metrics.CacheHits.WithLabelValues("destinations_nearby").Inc()
				return out, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("destinations_nearby").Inc()
	}

	out, err := s.destinations.FindNearby(ctx, c.Lat, c.Lng, radiusMeters, limit)
	if err != nil {
		return nil, err
	}

	// Cache for 5 minutes; the catalog only changes on seed runs.
	if s.cache != nil {
		if data, err := json.Marshal(out); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}
	return out, nil
}

// GetByID returns a single destination.
func (s *DestinationService) GetByID(ctx context.Context, id string) (*domain.Destination, error) {
	return s.destinations.GetByID(ctx, id)
}

// Import upserts a batch of destinations, validating each location first.
func (s *DestinationService) Import(ctx context.Context, ds []domain.Destination) (int, error) {
	valid := make([]domain.Destination, 0, len(ds))
	for _, d := range ds {
		if d.Slug == "" || d.Name == "" {
			continue
		}
		if d.Location.Validate() != nil {
			continue
		}
		valid = append(valid, d)
	}
	if len(valid) == 0 {
		return 0, nil
	}
	if err := s.destinations.UpsertBatch(ctx, valid); err != nil {
		return 0, fmt.Errorf("upsert destinations: %w", err)
	}
	return len(valid), nil
}
