package handler

import (
	"context"
	"net/http"
	"strconv"

	"geomedia-api/internal/models"
	"geomedia-api/internal/service"

	"github.com/gin-gonic/gin"
)

// ReverseGeocodeHandler handles reverse geocoding requests
type ReverseGeocodeHandler struct {
	service PlaceNameService
}

// PlaceNameService interface for dependency injection
type PlaceNameService interface {
	Describe(context.Context, models.Location, models.PlaceNameFilter) models.Place
	Stats() service.LookupStats
}

// ReverseGeocodeResponse is the body of a successful GET /reverse-geocode.
type ReverseGeocodeResponse struct {
	models.Place
	DMS string `json:"dms"`
}

// NewReverseGeocodeHandler creates a new reverse geocode handler
func NewReverseGeocodeHandler(svc PlaceNameService) *ReverseGeocodeHandler {
	return &ReverseGeocodeHandler{service: svc}
}

// ReverseGeocode handles GET /reverse-geocode requests
//
//	@Summary	Resolve a coordinate to a place name
//	@Tags		geocoding
//	@Produce	json
//	@Param		lat		query		number	true	"Latitude in decimal degrees"
//	@Param		lon		query		number	true	"Longitude in decimal degrees"
//	@Param		filter	query		string	false	"standard, minimal, none or detailed"
//	@Success	200		{object}	ReverseGeocodeResponse
//	@Failure	400		{object}	map[string]string
//	@Failure	404		{object}	map[string]string
//	@Router		/reverse-geocode [get]
func (h *ReverseGeocodeHandler) ReverseGeocode(c *gin.Context) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")

	if latStr == "" || lonStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required query parameters 'lat' and 'lon'"})
		return
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid latitude"})
		return
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid longitude"})
		return
	}

	filter := models.FilterStandard
	if f := c.Query("filter"); f != "" {
		filter, err = models.ParsePlaceNameFilter(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter"})
			return
		}
	}

	loc := models.NewLocation(lat, lon)
	place := h.service.Describe(c.Request.Context(), loc, filter)
	if place.Name == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no place name found for the specified coordinates"})
		return
	}

	c.JSON(http.StatusOK, ReverseGeocodeResponse{Place: place, DMS: loc.ToDMS()})
}

// Stats handles GET /stats requests
//
//	@Summary	Lookup counters
//	@Tags		geocoding
//	@Produce	json
//	@Success	200	{object}	service.LookupStats
//	@Router		/stats [get]
func (h *ReverseGeocodeHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Stats())
}
