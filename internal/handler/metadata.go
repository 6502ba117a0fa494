package handler

import (
	"io"
	"net/http"
	"time"

	"geomedia-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// MetadataHandler handles media metadata uploads
type MetadataHandler struct {
	media  MediaService
	places PlaceNameService
}

// MediaService interface for dependency injection
type MediaService interface {
	DetailsFromReader(r io.ReadSeeker, name string, createdTime time.Time) *models.MediaDetails
}

// MetadataResponse is the body of a successful POST /metadata.
type MetadataResponse struct {
	models.MediaDetails
	Location  *models.Location `json:"location,omitempty"`
	DMS       string           `json:"dms,omitempty"`
	PlaceName string           `json:"placename,omitempty"`
	SiteName  string           `json:"site,omitempty"`
}

// NewMetadataHandler creates a new metadata handler
func NewMetadataHandler(media MediaService, places PlaceNameService) *MetadataHandler {
	return &MetadataHandler{media: media, places: places}
}

// Metadata handles POST /metadata requests
//
//	@Summary	Extract location, creation time and keywords from a media file
//	@Tags		media
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		file	formData	file	true	"JPEG or MP4/QuickTime file"
//	@Success	200		{object}	MetadataResponse
//	@Failure	400		{object}	map[string]string
//	@Router		/metadata [post]
func (h *MetadataHandler) Metadata(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required form file 'file'"})
		return
	}

	file, err := header.Open()
	if err != nil {
		log.Error().Err(err).Str("file", header.Filename).Msg("Failed to open upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	defer file.Close()

	details := h.media.DetailsFromReader(file, header.Filename, time.Now())
	resp := MetadataResponse{MediaDetails: *details}
	if details.HasLocation() {
		loc := details.Location
		place := h.places.Describe(c.Request.Context(), loc, models.FilterStandard)
		resp.Location = &loc
		resp.DMS = loc.ToDMS()
		resp.PlaceName = place.Name
		resp.SiteName = place.SiteName
	}

	c.JSON(http.StatusOK, resp)
}
