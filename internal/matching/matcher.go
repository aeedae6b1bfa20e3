// Package matching surfaces nearby available technicians to interventions.
// It is read-only: availability is never mutated here.
package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/example/fixlite/internal/geo"
	"github.com/example/fixlite/internal/intervention/domain"
)

// maxGeoCandidates caps how many ids one index query may return.
const maxGeoCandidates = 128

// CandidateSource provides the technician candidate pool. Satisfied by
// domain.UserDirectory.
type CandidateSource interface {
	AvailableTechnicians(ctx context.Context) ([]domain.User, error)
}

// GeoIndex narrows the candidate pool by proximity before the directory
// is consulted. Satisfied by RedisGeoIndex.
type GeoIndex interface {
	Nearby(ctx context.Context, origin geo.Point, radiusKM float64, limit int) ([]uuid.UUID, error)
}

// CandidateResolver resolves index hits to full profiles. Satisfied by
// domain.UserDirectory.
type CandidateResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
}

// Match is one nearby technician with the computed distance.
type Match struct {
	Technician domain.User
	DistanceKM float64
}

// Service filters and orders candidates by great-circle distance.
type Service struct {
	source   CandidateSource
	index    GeoIndex
	resolver CandidateResolver
}

// NewService constructs the matching service over a full directory scan.
func NewService(source CandidateSource) *Service {
	return &Service{source: source}
}

// NewServiceWithIndex constructs the matching service with a geo index in
// front of the directory scan. The index narrows candidates; profiles,
// availability and skills still come from the resolver, so a stale index
// entry can only over-select, never fabricate a match.
func NewServiceWithIndex(source CandidateSource, index GeoIndex, resolver CandidateResolver) *Service {
	return &Service{source: source, index: index, resolver: resolver}
}

// FindNearby returns available technicians within radiusKM of the origin,
// inclusive at the boundary, ascending by distance. Equal distances keep
// the candidate pool's order. Candidates missing coordinates are skipped
// silently; an empty pool yields an empty result, not an error. A non-nil
// category restricts candidates to technicians listing it as a skill.
func (s *Service) FindNearby(ctx context.Context, origin geo.Point, radiusKM float64, category *domain.Category) ([]Match, error) {
	if !origin.Valid() {
		return nil, fmt.Errorf("origin coordinates: %w", domain.ErrInvalidArgument)
	}
	if radiusKM < 0 || math.IsNaN(radiusKM) {
		return nil, fmt.Errorf("radius: %w", domain.ErrInvalidArgument)
	}

	start := time.Now()
	candidates, err := s.candidates(ctx, origin, radiusKM)
	if err != nil {
		observeSearch("error", start)
		return nil, fmt.Errorf("candidate pool: %w: %v", domain.ErrUpstream, err)
	}

	matches := make([]Match, 0, len(candidates))
	for _, tech := range candidates {
		if tech.Latitude == nil || tech.Longitude == nil {
			continue
		}
		if category != nil && !hasSkill(tech, *category) {
			continue
		}
		point := geo.Point{Lat: *tech.Latitude, Lng: *tech.Longitude}
		if !point.Valid() {
			continue
		}
		dist := geo.DistanceKM(origin, point)
		if dist <= radiusKM {
			matches = append(matches, Match{Technician: tech, DistanceKM: roundKM(dist)})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DistanceKM < matches[j].DistanceKM
	})

	result := "miss"
	if len(matches) > 0 {
		result = "hit"
	}
	observeSearch(result, start)
	return matches, nil
}

// candidates narrows the pool through the geo index when one is
// configured, falling back to the full directory scan when the index is
// absent or unreachable.
func (s *Service) candidates(ctx context.Context, origin geo.Point, radiusKM float64) ([]domain.User, error) {
	if s.index == nil || s.resolver == nil {
		return s.source.AvailableTechnicians(ctx)
	}
	ids, err := s.index.Nearby(ctx, origin, radiusKM, maxGeoCandidates)
	if err != nil {
		return s.source.AvailableTechnicians(ctx)
	}
	candidates := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		tech, err := s.resolver.GetByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			// index entries outlive directory records; skip strays
			continue
		}
		if err != nil {
			return nil, err
		}
		if tech.Role != domain.RoleTechnician || !tech.Available || !tech.Active {
			continue
		}
		candidates = append(candidates, tech)
	}
	return candidates, nil
}

func hasSkill(tech domain.User, category domain.Category) bool {
	for _, skill := range tech.Skills {
		if skill == string(category) {
			return true
		}
	}
	return false
}

// roundKM keeps reported distances at centimeter-irrelevant precision
// without disturbing relative order at the two-decimal scale callers see.
func roundKM(km float64) float64 {
	return math.Round(km*100) / 100
}
