package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"geomedia-api/internal/models"

	"github.com/rs/zerolog/log"
)

// Defaults for NominatimConfig.
const (
	DefaultURL       = "https://nominatim.openstreetmap.org/reverse"
	DefaultZoom      = 18
	DefaultLanguage  = "en-us"
	DefaultTimeout   = 5 * time.Second
	DefaultUserAgent = "geomedia-api/1.0"
)

// NominatimConfig configures the network provider.
type NominatimConfig struct {
	URL       string
	APIKey    string
	Language  string
	UserAgent string
	Zoom      int
	Timeout   time.Duration
}

// NominatimProvider calls a Nominatim-compatible reverse endpoint once per
// lookup and normalizes the answer down to display_name and address.
type NominatimProvider struct {
	client *http.Client
	cfg    NominatimConfig
}

// NewNominatimProvider creates a network provider. Zero config fields take
// the package defaults.
func NewNominatimProvider(cfg NominatimConfig) *NominatimProvider {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Zoom <= 0 {
		cfg.Zoom = DefaultZoom
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &NominatimProvider{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

type nominatimResponse struct {
	DisplayName string               `json:"display_name"`
	Address     models.OrderedFields `json:"address"`
	Error       json.RawMessage      `json:"error"`
}

// Lookup implements Provider. Transport failures, timeouts and non-2xx
// answers are logged and reported as no result.
func (p *NominatimProvider) Lookup(ctx context.Context, loc models.Location) (string, bool) {
	if loc.IsNone() {
		return "", false
	}

	start := time.Now()
	logger := log.With().
		Float64("lat", loc.Latitude).
		Float64("lon", loc.Longitude).
		Logger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.requestURL(loc), nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to build geolocation request")
		return "", false
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("Geolocation request failed")
		return "", false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("Failed to read geolocation response")
		return "", false
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Dur("elapsed", time.Since(start)).
			Msg("Geolocation request rejected")
		return "", false
	}

	envelope, err := normalize(body)
	if err != nil {
		logger.Warn().Err(err).Str("body", string(body)).Msg("Failed to parse geolocation response")
		return "", false
	}
	if envelope.GeoError != "" {
		logger.Warn().Str("error", envelope.GeoError).Str("body", string(body)).Msg("Geolocation error")
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to encode geolocation envelope")
		return "", false
	}

	logger.Debug().Dur("elapsed", time.Since(start)).Msg("Geolocation resolved")
	return string(data), true
}

func (p *NominatimProvider) requestURL(loc models.Location) string {
	params := url.Values{}
	if p.cfg.APIKey != "" {
		params.Set("key", p.cfg.APIKey)
	}
	params.Set("format", "json")
	params.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	params.Set("addressdetails", "1")
	params.Set("zoom", strconv.Itoa(p.cfg.Zoom))
	params.Set("accept-language", p.cfg.Language)

	return fmt.Sprintf("%s?%s", p.cfg.URL, params.Encode())
}

// normalize keeps only display_name and address, or only the error.
func normalize(body []byte) (models.Envelope, error) {
	var raw nominatimResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.Envelope{}, err
	}

	if len(raw.Error) > 0 && string(raw.Error) != "null" {
		var msg string
		if err := json.Unmarshal(raw.Error, &msg); err != nil {
			msg = string(raw.Error)
		}
		return models.Envelope{GeoError: msg}, nil
	}

	return models.Envelope{DisplayName: raw.DisplayName, Address: raw.Address}, nil
}
