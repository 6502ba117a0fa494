package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"geomedia-api/internal/container"
	"geomedia-api/internal/models"
	"geomedia-api/internal/xmp"

	mp4 "github.com/abema/go-mp4"
	"github.com/rs/zerolog/log"
	"github.com/rwcarlsen/goexif/exif"
)

// Seconds between 1904-01-01 (QuickTime epoch) and 1970-01-01.
const appleEpochOffset = 2082844800

const exifTimeLayout = "2006:01:02 15:04:05"

// EXIF time tags in order of preference.
var exifTimeFields = []exif.FieldName{exif.DateTimeDigitized, exif.DateTimeOriginal, exif.DateTime}

// MediaService extracts location, creation time and keywords from media files.
type MediaService struct{}

// NewMediaService creates a media metadata extractor.
func NewMediaService() *MediaService {
	return &MediaService{}
}

// Details reads the metadata of the file at path. Only failing to open or
// stat the file is an error; missing or malformed metadata yields defaults.
func (s *MediaService) Details(path string) (*models.MediaDetails, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("service: failed to open media file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("service: failed to stat media file: %w", err)
	}

	return s.DetailsFromReader(f, path, info.ModTime()), nil
}

// DetailsFromReader reads metadata from r. createdTime is used when the
// content carries no creation time of its own.
func (s *MediaService) DetailsFromReader(r io.ReadSeeker, name string, createdTime time.Time) *models.MediaDetails {
	details := &models.MediaDetails{
		Path:        name,
		Location:    models.None,
		CreatedTime: createdTime,
		Keywords:    []string{},
	}
	logger := log.With().Str("path", name).Logger()

	format := container.Detect(r)
	haveTime := false

	if format == container.FormatJPEG {
		if t, loc, err := readExif(r); err != nil {
			logger.Debug().Err(err).Msg("No usable EXIF data")
		} else {
			if !t.IsZero() {
				details.CreatedTime = t
				haveTime = true
			}
			details.Location = loc
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			logger.Warn().Err(err).Msg("Failed to rewind media stream")
			return details
		}
	}

	if md, ok := readXMP(r, name); ok {
		details.Keywords = md.Keywords
		if !haveTime && md.HasCreatedTime() {
			details.CreatedTime = md.CreatedTime
			haveTime = true
		}
		if details.Location.IsNone() && !md.Location.IsNone() {
			details.Location = md.Location
		}
	}

	if format == container.FormatMP4 && !haveTime {
		if _, err := r.Seek(0, io.SeekStart); err == nil {
			if t, err := movieCreationTime(r); err != nil {
				logger.Debug().Err(err).Msg("No movie creation time")
			} else {
				details.CreatedTime = t
			}
		}
	}

	return details
}

// Keywords re-reads only the XMP keywords of the file at path.
func (s *MediaService) Keywords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("service: failed to open media file: %w", err)
	}
	defer f.Close()

	if md, ok := readXMP(f, path); ok {
		return md.Keywords, nil
	}
	return []string{}, nil
}

// ReloadKeywords replaces details.Keywords with the keywords currently
// stored in the file.
func (s *MediaService) ReloadKeywords(details *models.MediaDetails) error {
	keywords, err := s.Keywords(details.Path)
	if err != nil {
		return err
	}
	details.Keywords = keywords
	return nil
}

func readXMP(r io.ReadSeeker, name string) (*xmp.Metadata, bool) {
	data, _, err := container.FindXMP(r)
	if err != nil {
		if !errors.Is(err, container.ErrNotFound) {
			log.Warn().Err(err).Str("path", name).Msg("Failed to read XMP block")
		}
		return nil, false
	}

	md, err := xmp.Parse(data)
	if err != nil {
		log.Warn().Err(err).Str("path", name).Msg("Failed to parse XMP packet")
	}
	return md, true
}

func readExif(r io.Reader) (time.Time, models.Location, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return time.Time{}, models.None, err
	}

	var created time.Time
	for _, field := range exifTimeFields {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		value, err := tag.StringVal()
		if err != nil {
			continue
		}
		t, err := time.ParseInLocation(exifTimeLayout, strings.TrimRight(value, "\x00 "), time.Local)
		if err != nil {
			continue
		}
		created = t
		break
	}

	loc := models.None
	if lat, lon, err := x.LatLong(); err == nil {
		loc = models.NewLocation(lat, lon)
	}
	return created, loc, nil
}

func movieCreationTime(r io.ReadSeeker) (time.Time, error) {
	boxes, err := mp4.ExtractBoxesWithPayload(r, nil, []mp4.BoxPath{
		{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()},
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("service: failed to read movie structure: %w", err)
	}

	for _, box := range boxes {
		mvhd, ok := box.Payload.(*mp4.Mvhd)
		if !ok {
			continue
		}
		created := mvhd.GetCreationTime()
		if created == 0 {
			return time.Time{}, errors.New("service: movie creation time is zero")
		}
		return time.Unix(int64(created)-appleEpochOffset, 0).Local(), nil
	}
	return time.Time{}, errors.New("service: movie header not found")
}
