package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/usecases"
)

func TestGeocodeService_ResolveNameIsCached(t *testing.T) {
	geo := &mockGeocoder{
		reverseFn: func(ctx context.Context, c domain.Coordinate) (string, error) {
			return "Gran Vía, Bilbao", nil
		},
	}
	cache := newMemCache()
	svc := usecases.NewGeocodeService(geo, nil, cache, 60, discardLogger())

	if got := svc.ResolveName(context.Background(), stopA); got != "Gran Vía, Bilbao" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := svc.ResolveName(context.Background(), stopA); got != "Gran Vía, Bilbao" {
		t.Errorf("unexpected cached name %q", got)
	}

	if rev, _ := geo.counts(); rev != 1 {
		t.Errorf("expected one provider lookup, got %d", rev)
	}
}

func TestGeocodeService_ResolveNameFailures(t *testing.T) {
	tests := []struct {
		name    string
		coord   domain.Coordinate
		reverse func(ctx context.Context, c domain.Coordinate) (string, error)
		calls   int
	}{
		{
			name:  "provider error",
			coord: stopA,
			reverse: func(ctx context.Context, c domain.Coordinate) (string, error) {
				return "", errors.New("dial tcp: i/o timeout")
			},
			calls: 1,
		},
		{
			name:  "empty result",
			coord: stopA,
			reverse: func(ctx context.Context, c domain.Coordinate) (string, error) {
				return "   ", nil
			},
			calls: 1,
		},
		{
			name:  "invalid coordinate",
			coord: domain.Coordinate{Lat: -91, Lng: 0},
			calls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geo := &mockGeocoder{reverseFn: tt.reverse}
			cache := newMemCache()
			svc := usecases.NewGeocodeService(geo, nil, cache, 60, discardLogger())

			if got := svc.ResolveName(context.Background(), tt.coord); got != domain.UnknownLocation {
				t.Errorf("expected %q, got %q", domain.UnknownLocation, got)
			}
			if rev, _ := geo.counts(); rev != tt.calls {
				t.Errorf("expected %d lookups, got %d", tt.calls, rev)
			}
			if cache.sets != 0 {
				t.Error("failures must not be cached")
			}
		})
	}
}

func TestGeocodeService_SearchByText(t *testing.T) {
	var gotLimit int
	geo := &mockGeocoder{
		searchFn: func(ctx context.Context, query string, limit int) ([]domain.Place, error) {
			gotLimit = limit
			return []domain.Place{
				{Coordinate: stopA, Label: "Guggenheim Museum Bilbao"},
				{Coordinate: domain.Coordinate{Lat: 120, Lng: 0}, Label: "Broken"},
				{Coordinate: stopB, Label: "Guggenheim Bridge"},
			}, nil
		},
	}
	svc := usecases.NewGeocodeService(geo, nil, nil, 0, discardLogger())

	places := svc.SearchByText(context.Background(), "  guggenheim ", 0)
	if len(places) != 2 || places[0].Label != "Guggenheim Museum Bilbao" || places[1].Label != "Guggenheim Bridge" {
		t.Errorf("expected valid places in provider order, got %+v", places)
	}
	if gotLimit != 5 {
		t.Errorf("expected default limit 5, got %d", gotLimit)
	}

	svc.SearchByText(context.Background(), "guggenheim", 50)
	if gotLimit != 10 {
		t.Errorf("expected limit capped at 10, got %d", gotLimit)
	}
}

func TestGeocodeService_SearchBlankQuery(t *testing.T) {
	geo := &mockGeocoder{}
	svc := usecases.NewGeocodeService(geo, nil, nil, 0, discardLogger())

	for _, q := range []string{"", "   ", "\t\n"} {
		places := svc.SearchByText(context.Background(), q, 5)
		if places == nil || len(places) != 0 {
			t.Errorf("query %q: expected an empty non-nil slice, got %#v", q, places)
		}
	}
	if _, searches := geo.counts(); searches != 0 {
		t.Errorf("blank queries must not reach the provider, got %d", searches)
	}
}

func TestGeocodeService_SearchFailureIsEmpty(t *testing.T) {
	geo := &mockGeocoder{
		searchFn: func(ctx context.Context, query string, limit int) ([]domain.Place, error) {
			return nil, errors.New("status 500")
		},
	}
	svc := usecases.NewGeocodeService(geo, nil, nil, 0, discardLogger())

	if places := svc.SearchByText(context.Background(), "bilbao", 3); len(places) != 0 {
		t.Errorf("expected no places, got %+v", places)
	}
}

func TestGeocodeService_ResolveCity(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc := usecases.NewGeocodeService(&mockGeocoder{}, nil, nil, 0, discardLogger())
		if _, err := svc.ResolveCity(context.Background(), stopA); !errors.Is(err, domain.ErrFeatureDisabled) {
			t.Errorf("expected ErrFeatureDisabled, got %v", err)
		}
	})

	t.Run("found", func(t *testing.T) {
		cities := &mockCities{resolveFn: func(ctx context.Context, c domain.Coordinate) (string, error) {
			return "Bilbao", nil
		}}
		svc := usecases.NewGeocodeService(&mockGeocoder{}, cities, nil, 0, discardLogger())
		city, err := svc.ResolveCity(context.Background(), stopA)
		if err != nil || city != "Bilbao" {
			t.Errorf("expected Bilbao, got %q err=%v", city, err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		svc := usecases.NewGeocodeService(&mockGeocoder{}, &mockCities{}, nil, 0, discardLogger())
		if _, err := svc.ResolveCity(context.Background(), stopA); !errors.Is(err, domain.ErrEmptyResult) {
			t.Errorf("expected ErrEmptyResult, got %v", err)
		}
	})

	t.Run("network", func(t *testing.T) {
		cities := &mockCities{resolveFn: func(ctx context.Context, c domain.Coordinate) (string, error) {
			return "", errors.New("connection refused")
		}}
		svc := usecases.NewGeocodeService(&mockGeocoder{}, cities, nil, 0, discardLogger())
		if _, err := svc.ResolveCity(context.Background(), stopA); !errors.Is(err, domain.ErrNetworkFailure) {
			t.Errorf("expected ErrNetworkFailure, got %v", err)
		}
	})

	t.Run("invalid coordinate", func(t *testing.T) {
		svc := usecases.NewGeocodeService(&mockGeocoder{}, &mockCities{}, nil, 0, discardLogger())
		if _, err := svc.ResolveCity(context.Background(), domain.Coordinate{Lat: 100}); !errors.Is(err, domain.ErrInvalidCoordinate) {
			t.Errorf("expected ErrInvalidCoordinate, got %v", err)
		}
	})
}
