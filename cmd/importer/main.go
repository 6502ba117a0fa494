package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"geomedia-api/internal/config"
	"geomedia-api/internal/logger"
	"geomedia-api/internal/models"
	"geomedia-api/internal/repository"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// CacheRecord is one row of a location cache export.
type CacheRecord struct {
	GeoLocation   string
	FullPlacename string
}

type cacheInserter interface {
	Insert(ctx context.Context, key, value string) (bool, error)
}

func main() {
	file := flag.String("file", "", "Path to the CSV file to import (geoLocation,fullPlacename)")
	configDir := flag.String("config", "configs", "Directory containing app.yaml")
	flag.Parse()

	if *file == "" {
		fmt.Println("Error: --file flag is required")
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().Str("file", *file).Msg("Starting import")

	records, err := parseCSV(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing CSV")
	}
	log.Info().Int("records", len(records)).Msg("Parsed records")

	ctx := context.Background()
	repo := repository.NewLocationCacheRepository(repository.OpenPool(cfg.DBSource()))
	defer repo.Close()

	if err := repo.Open(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error opening location cache")
	}

	inserted, skipped, err := insertRecords(ctx, repo, records)
	if err != nil {
		log.Fatal().Err(err).Msg("Error inserting records")
	}

	count, err := repo.Count(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error verifying import")
	}

	log.Info().
		Int("inserted", inserted).
		Int("skipped", skipped).
		Int64("total", count).
		Msg("Import finished")
}

func parseCSV(filePath string) ([]CacheRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return readRecords(file)
}

// readRecords reads geoLocation,fullPlacename rows. A header row is
// skipped and rows whose key is not a valid DMS location are dropped.
func readRecords(r io.Reader) ([]CacheRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	var records []CacheRecord
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		if line == 1 && strings.EqualFold(record[0], "geoLocation") {
			continue
		}

		if models.FromDMS(record[0]).IsNone() {
			log.Warn().Int("line", line).Str("geoLocation", record[0]).Msg("Skipping row with invalid location key")
			continue
		}
		if strings.TrimSpace(record[1]) == "" {
			log.Warn().Int("line", line).Msg("Skipping row with empty placename")
			continue
		}

		records = append(records, CacheRecord{GeoLocation: record[0], FullPlacename: record[1]})
	}

	return records, nil
}

// insertRecords writes each record once; keys already present are counted
// as skipped and left untouched.
func insertRecords(ctx context.Context, repo cacheInserter, records []CacheRecord) (int, int, error) {
	var inserted, skipped int
	for _, r := range records {
		ok, err := repo.Insert(ctx, r.GeoLocation, r.FullPlacename)
		if err != nil {
			return inserted, skipped, err
		}
		if ok {
			inserted++
		} else {
			skipped++
		}
	}
	return inserted, skipped, nil
}
