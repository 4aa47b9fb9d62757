package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/samirrijal/tripplanner/internal/adapters/postgres"
	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/usecases"
	"github.com/samirrijal/tripplanner/internal/pkg/config"
	"github.com/samirrijal/tripplanner/internal/pkg/logging"
)

// ---------------------------------------------------------------------------
// Catalog types
// ---------------------------------------------------------------------------

type Catalog struct {
	Source       string         `json:"source"`
	Destinations []CatalogEntry `json:"destinations"`
}

type CatalogEntry struct {
	Slug        string            `json:"slug,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Image       string            `json:"image,omitempty"`
	Location    domain.Coordinate `json:"location"`
}

const batchSize = 500

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("tripplanner-seed")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Load catalog
	catalogPath := "configs/destinations.json"
	if len(os.Args) > 1 {
		catalogPath = os.Args[1]
	}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		log.Fatalf("read catalog: %v", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		log.Fatalf("parse catalog: %v", err)
	}

	// Filter destinations (optional CLI arg: slug list)
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	destinations := toDestinations(catalog.Destinations, slugFilter)
	slog.Info("seeding destinations", "source", catalog.Source, "path", catalogPath, "count", len(destinations))

	svc := usecases.NewDestinationService(postgres.NewDestinationRepo(db), nil)
	total, err := importInBatches(ctx, svc, destinations)
	if err != nil {
		slog.Error("seed failed", "imported", total, "error", err)
		os.Exit(1)
	}

	slog.Info("seed complete", "imported", total, "skipped", len(destinations)-total)
}

func importInBatches(ctx context.Context, svc *usecases.DestinationService, ds []domain.Destination) (int, error) {
	total := 0
	for start := 0; start < len(ds); start += batchSize {
		end := min(start+batchSize, len(ds))
		n, err := svc.Import(ctx, ds[start:end])
		if err != nil {
			return total, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		total += n
		slog.Debug("batch imported", "from", start, "to", end, "rows", n)
	}
	return total, nil
}

// toDestinations maps catalog entries to domain destinations, deriving a
// slug from the name when the entry has none.
func toDestinations(entries []CatalogEntry, slugFilter map[string]bool) []domain.Destination {
	out := make([]domain.Destination, 0, len(entries))
	for _, e := range entries {
		slug := e.Slug
		if slug == "" {
			slug = slugify(e.Name)
		}
		if len(slugFilter) > 0 && !slugFilter[slug] {
			continue
		}
		out = append(out, domain.Destination{
			Slug:        slug,
			Name:        strings.TrimSpace(e.Name),
			Description: e.Description,
			ImageURL:    e.Image,
			Location:    e.Location,
		})
	}
	return out
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
