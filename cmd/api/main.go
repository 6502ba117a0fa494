package main

import (
	"context"
	"net/http"

	_ "geomedia-api/docs"
	"geomedia-api/internal/config"
	"geomedia-api/internal/geocode"
	"geomedia-api/internal/handler"
	"geomedia-api/internal/logger"
	"geomedia-api/internal/repository"
	"geomedia-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			GeoMedia API
//	@version		1.0
//	@description	Reverse geocoding and media metadata extraction.
//	@BasePath		/
func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file loaded")
	}

	config, err := config.LoadConfig("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	logger.Setup(config.Log.Level, config.Log.Pretty)

	// Reverse geocoding chain
	network := geocode.NewNominatimProvider(geocode.NominatimConfig{
		URL:       config.Geocoder.BaseURL,
		APIKey:    config.Geocoder.APIKey,
		Language:  config.Geocoder.Language,
		UserAgent: config.Geocoder.UserAgent,
		Zoom:      config.Geocoder.Zoom,
		Timeout:   config.Geocoder.Timeout,
	})

	var provider service.PlaceProvider = network
	store, closeStore := newLocationStore(context.Background(), config.Cache)
	defer closeStore()
	if store != nil {
		provider = geocode.NewCachingProvider(store, network)
	}

	// Initialize layers
	placeNameService := service.NewPlaceNameService(provider, geocode.NewMemoryCache())
	mediaService := service.NewMediaService()

	reverseGeocodeHandler := handler.NewReverseGeocodeHandler(placeNameService)
	metadataHandler := handler.NewMetadataHandler(mediaService, placeNameService)

	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	r.GET("/reverse-geocode", reverseGeocodeHandler.ReverseGeocode)
	r.GET("/stats", reverseGeocodeHandler.Stats)
	r.POST("/metadata", metadataHandler.Metadata)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	log.Info().
		Str("addr", config.ServerAddress).
		Str("cache", config.Cache.Backend).
		Msg("Web server started")

	if err := r.Run(config.ServerAddress); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// newLocationStore builds the durable cache for the configured backend. A
// nil store means lookups go straight to the network.
func newLocationStore(ctx context.Context, cfg config.CacheConfig) (geocode.Store, func()) {
	switch cfg.Backend {
	case "postgres":
		repo := repository.NewLocationCacheRepository(repository.OpenPool(cfg.DBSource))
		return repo, repo.Close
	case "s3":
		s3, err := repository.NewS3LocationCache(repository.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err == nil {
			err = s3.EnsureBucket(ctx)
		}
		if err != nil {
			log.Error().Err(err).Msg("Location cache unavailable, continuing without it")
			return nil, func() {}
		}
		return s3, func() {}
	default:
		return nil, func() {}
	}
}
