package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/fixlite/internal/geo"
)

const defaultGeoKey = "technician:locs"

var errInvalidGeoResult = errors.New("invalid geo search result")

// RedisGeoIndex keeps technician coordinates in a Redis GEO set. It serves
// deployments where the presence feed outpaces the document store; the
// authoritative candidate pool stays in the user directory.
type RedisGeoIndex struct {
	client redis.Cmdable
	key    string
}

// NewRedisGeoIndex constructs a Redis-backed geo index.
func NewRedisGeoIndex(client redis.Cmdable, key string) *RedisGeoIndex {
	if key == "" {
		key = defaultGeoKey
	}
	return &RedisGeoIndex{client: client, key: key}
}

// UpsertLocation stores the technician's latest coordinates.
func (r *RedisGeoIndex) UpsertLocation(ctx context.Context, technicianID uuid.UUID, point geo.Point) error {
	if r == nil || r.client == nil {
		return errors.New("redis geo index not configured")
	}
	err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      technicianID.String(),
		Latitude:  point.Lat,
		Longitude: point.Lng,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis geoadd: %w", err)
	}
	return nil
}

// Nearby returns up to limit technician ids within radiusKM, closest first.
func (r *RedisGeoIndex) Nearby(ctx context.Context, origin geo.Point, radiusKM float64, limit int) ([]uuid.UUID, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("redis geo index not configured")
	}

	query := &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  origin.Lng,
			Latitude:   origin.Lat,
			Radius:     radiusKM,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithDist: true,
	}

	results, err := r.client.GeoSearchLocation(ctx, r.key, query).Result()
	if err != nil {
		return nil, fmt.Errorf("redis geosearch: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(results))
	for _, res := range results {
		id, err := uuid.Parse(res.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errInvalidGeoResult, res.Name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
