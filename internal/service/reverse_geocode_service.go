package service

import (
	"context"
	"strings"
	"sync/atomic"

	"geomedia-api/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// PlaceProvider returns the normalized geocoder envelope for a location.
type PlaceProvider interface {
	Lookup(ctx context.Context, loc models.Location) (string, bool)
}

// ResponseCache memoizes parsed responses by location cache key.
type ResponseCache interface {
	Get(key string) (*models.PlaceResponse, bool)
	Put(key string, resp *models.PlaceResponse)
}

// Lookup priorities, first present wins.
var (
	cityComponents = []string{
		"city", "city_district", "town", "hamlet", "locality",
		"neighbourhood", "suburb", "village", "county",
	}

	siteComponents = []string{
		"playground", "aerodrome", "archaeological_site", "arts_centre", "attraction",
		"bakery", "bar", "basin", "building", "cafe", "car_wash", "chemist", "cinema",
		"cycleway", "department_store", "fast_food", "furniture", "garden",
		"garden_centre", "golf_course", "grave_yard", "hospital", "hotel", "house",
		"information", "library", "mall", "marina", "memorial", "military", "monument",
		"motel", "museum", "park", "parking", "path", "pedestrian", "pitch",
		"place_of_worship", "pub", "public_building", "restaurant", "roman_road",
		"school", "slipway", "sports_centre", "stadium", "supermarket", "theatre",
		"townhall", "viewpoint", "water", "zoo", "footway", "nature_reserve",
	}

	acceptedComponents = map[string]bool{
		"state":   true,
		"country": true,
	}

	fieldExclusions = map[string][]string{
		"country": {"United States of America"},
	}

	detailedRegions = []string{"country", "state", "region", "state_district", "county"}
	detailedLocal   = []string{"city_district", "suburb", "neighbourhood"}
)

// PlaceNameService composes human-readable place names from reverse
// geocoder responses.
type PlaceNameService struct {
	provider PlaceProvider
	cache    ResponseCache
	group    singleflight.Group

	internalLookups atomic.Int64
	externalLookups atomic.Int64
}

// NewPlaceNameService creates a resolver over provider, memoizing parsed
// responses in cache.
func NewPlaceNameService(provider PlaceProvider, cache ResponseCache) *PlaceNameService {
	return &PlaceNameService{provider: provider, cache: cache}
}

// LookupStats counts resolver calls and calls that reached the provider.
type LookupStats struct {
	Internal int64 `json:"internal"`
	External int64 `json:"external"`
}

// Stats returns the lookup counters.
func (s *PlaceNameService) Stats() LookupStats {
	return LookupStats{
		Internal: s.internalLookups.Load(),
		External: s.externalLookups.Load(),
	}
}

// PlaceName returns the composed name of loc, or "" when nothing is known.
func (s *PlaceNameService) PlaceName(ctx context.Context, loc models.Location, filter models.PlaceNameFilter) string {
	return s.Describe(ctx, loc, filter).Name
}

// SiteName returns the first point-of-interest component of loc, or "".
func (s *PlaceNameService) SiteName(ctx context.Context, loc models.Location) string {
	return firstMatch(siteComponents, s.components(ctx, loc))
}

// Components returns the ordered response fields for loc, display name first.
func (s *PlaceNameService) Components(ctx context.Context, loc models.Location) models.OrderedFields {
	return s.components(ctx, loc)
}

// Describe composes the place name for loc along with its side attributes.
func (s *PlaceNameService) Describe(ctx context.Context, loc models.Location, filter models.PlaceNameFilter) models.Place {
	s.internalLookups.Add(1)
	return compose(s.components(ctx, loc), filter)
}

func (s *PlaceNameService) components(ctx context.Context, loc models.Location) models.OrderedFields {
	if loc.IsNone() {
		return nil
	}

	key := loc.CacheKey()
	if resp, ok := s.cache.Get(key); ok {
		return resp.Fields
	}

	// The result is shared and memoized, so one caller's cancellation must
	// not decide it for everyone.
	flightCtx := context.WithoutCancel(ctx)
	v, _, _ := s.group.Do(key, func() (any, error) {
		if resp, ok := s.cache.Get(key); ok {
			return resp, nil
		}
		resp := s.retrieve(flightCtx, loc)
		s.cache.Put(key, resp)
		return resp, nil
	})
	return v.(*models.PlaceResponse).Fields
}

func (s *PlaceNameService) retrieve(ctx context.Context, loc models.Location) *models.PlaceResponse {
	s.externalLookups.Add(1)

	data, ok := s.provider.Lookup(ctx, loc)
	if !ok {
		return &models.PlaceResponse{}
	}

	resp, err := models.ParsePlaceResponse(data)
	if err != nil {
		log.Warn().Err(err).Str("location", loc.ToDMS()).Str("data", data).Msg("Failed to parse place response")
		return &models.PlaceResponse{}
	}
	if resp.Error != "" {
		log.Warn().Str("location", loc.ToDMS()).Str("error", resp.Error).Msg("GeoLocation error")
	}
	return resp
}

func compose(fields models.OrderedFields, filter models.PlaceNameFilter) models.Place {
	place := models.Place{
		SiteName: firstMatch(siteComponents, fields),
		City:     firstMatch(cityComponents, fields),
	}

	var parts []string
	if filter == models.FilterStandard {
		if place.SiteName != "" {
			parts = append(parts, place.SiteName)
		}
		if place.City != "" {
			parts = append(parts, place.City)
		}
	}

	for _, f := range fields {
		switch f.Name {
		case "country_code":
			place.Country = f.Value
			continue
		case "county":
			place.County = f.Value
		}

		switch filter {
		case models.FilterStandard:
			if acceptedComponents[f.Name] && !isExcluded(f.Name, f.Value) {
				parts = append(parts, f.Value)
			}
		case models.FilterNone:
			if f.Name != models.DisplayNameField {
				parts = append(parts, f.Value)
			}
		case models.FilterMinimal:
			if f.Name != "county" || !fields.Has("city") {
				parts = append(parts, f.Value)
			}
		}
	}

	if filter == models.FilterDetailed {
		parts = detailed(fields, place)
	}

	if len(parts) == 0 {
		if name, ok := fields.Get(models.DisplayNameField); ok {
			parts = append(parts, name)
		}
	}

	place.Name = strings.Join(parts, ", ")
	return place
}

// detailed orders the known components from most general to most specific.
func detailed(fields models.OrderedFields, place models.Place) []string {
	var parts []string
	add := func(v string) {
		if v == "" {
			return
		}
		for _, p := range parts {
			if p == v {
				return
			}
		}
		parts = append(parts, v)
	}

	for _, name := range detailedRegions {
		v, _ := fields.Get(name)
		add(v)
	}
	add(place.City)
	for _, name := range detailedLocal {
		v, _ := fields.Get(name)
		add(v)
	}
	add(place.SiteName)
	return parts
}

func firstMatch(names []string, fields models.OrderedFields) string {
	for _, name := range names {
		if v, ok := fields.Get(name); ok {
			return v
		}
	}
	return ""
}

func isExcluded(name, value string) bool {
	for _, excluded := range fieldExclusions[name] {
		if excluded == value {
			return true
		}
	}
	return false
}
