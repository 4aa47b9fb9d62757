package main

import (
	"testing"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Solang Valley", "solang-valley"},
		{"  Hidimba Devi Temple ", "hidimba-devi-temple"},
		{"Guggenheim Museum (Bilbao)", "guggenheim-museum-bilbao"},
		{"Café--Bar!", "café-bar"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToDestinations(t *testing.T) {
	entries := []CatalogEntry{
		{Name: "Solang Valley", Image: "solang.jpg", Location: domain.Coordinate{Lat: 32.3166, Lng: 77.1570}},
		{Slug: "old-manali", Name: " Old Manali ", Location: domain.Coordinate{Lat: 32.2574, Lng: 77.1734}},
	}

	all := toDestinations(entries, nil)
	if len(all) != 2 {
		t.Fatalf("expected 2 destinations, got %d", len(all))
	}
	if all[0].Slug != "solang-valley" || all[0].ImageURL != "solang.jpg" {
		t.Errorf("unexpected first destination %+v", all[0])
	}
	if all[1].Slug != "old-manali" || all[1].Name != "Old Manali" {
		t.Errorf("unexpected second destination %+v", all[1])
	}

	filtered := toDestinations(entries, map[string]bool{"old-manali": true})
	if len(filtered) != 1 || filtered[0].Slug != "old-manali" {
		t.Errorf("expected only old-manali, got %+v", filtered)
	}
}
