package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// RouteLogRepo implements ports.RouteLogRepository.
type RouteLogRepo struct {
	db *DB
}

func NewRouteLogRepo(db *DB) *RouteLogRepo {
	return &RouteLogRepo{db: db}
}

// Insert appends an installed route. Replays of the same session generation
// are ignored.
func (r *RouteLogRepo) Insert(ctx context.Context, ev *domain.RouteEvent) error {
	stops, err := json.Marshal(ev.Stops)
	if err != nil {
		return fmt.Errorf("marshal stops: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO route_log (session_id, user_id, generation, origin, stops, distance_meters, duration_seconds, installed_at)
		VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6, $7, $8, $9)
		ON CONFLICT (session_id, generation) DO NOTHING
	`, ev.SessionID, nilIfEmpty(ev.UserID), int64(ev.Generation),
		ev.Origin.Lng, ev.Origin.Lat, stops, ev.DistanceMeters, ev.DurationSeconds, ev.InstalledAt)
	return err
}

func (r *RouteLogRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.RouteEvent, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT session_id, user_id, generation,
		       ST_Y(origin::geometry) as lat,
		       ST_X(origin::geometry) as lng,
		       stops, distance_meters, duration_seconds, installed_at
		FROM route_log
		WHERE session_id = $1
		ORDER BY installed_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.RouteEvent
	for rows.Next() {
		var ev domain.RouteEvent
		var userID sql.NullString
		var gen int64
		var stops []byte
		if err := rows.Scan(
			&ev.SessionID, &userID, &gen,
			&ev.Origin.Lat, &ev.Origin.Lng,
			&stops, &ev.DistanceMeters, &ev.DurationSeconds, &ev.InstalledAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stops, &ev.Stops); err != nil {
			return nil, fmt.Errorf("decode stops: %w", err)
		}
		ev.UserID = userID.String
		ev.Generation = uint64(gen)
		events = append(events, ev)
	}
	return events, rows.Err()
}
