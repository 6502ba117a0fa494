package service

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"geomedia-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taggedPacket = `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about=""
    xmlns:xmp="http://ns.adobe.com/xap/1.0/"
    xmlns:exif="http://ns.adobe.com/exif/1.0/"
    xmlns:dc="http://purl.org/dc/elements/1.1/">
   <xmp:CreateDate>2014-06-06T01:19:27</xmp:CreateDate>
   <exif:GPSLatitude>47,35.15N</exif:GPSLatitude>
   <exif:GPSLongitude>122,19.716667W</exif:GPSLongitude>
   <dc:subject><rdf:Bag><rdf:li>ferry</rdf:li><rdf:li>sound</rdf:li></rdf:Bag></dc:subject>
  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`

const keywordsOnlyPacket = `<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about="" xmlns:dc="http://purl.org/dc/elements/1.1/">
   <dc:subject><rdf:Bag><rdf:li>clip</rdf:li></rdf:Bag></dc:subject>
  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>`

var xmpUUID = []byte{
	0xBE, 0x7A, 0xCF, 0xCB, 0x97, 0xA9, 0x42, 0xE8,
	0x9C, 0x71, 0x99, 0x94, 0x91, 0xE3, 0xAF, 0xAC,
}

func jpegWithXMP(packet string) []byte {
	payload := append([]byte("http://ns.adobe.com/xap/1.0/\x00"), packet...)
	out := []byte{0xFF, 0xD8, 0xFF, 0xE1}
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2))
	out = append(out, payload...)
	return append(out, 0xFF, 0xD9)
}

func mp4Box(kind string, payload []byte) []byte {
	b := binary.BigEndian.AppendUint32(nil, uint32(len(payload)+8))
	b = append(b, kind...)
	return append(b, payload...)
}

// mvhdV0 builds a version 0 movie header with the given creation time.
func mvhdV0(created uint32) []byte {
	p := make([]byte, 100)
	binary.BigEndian.PutUint32(p[4:], created)
	binary.BigEndian.PutUint32(p[8:], created)
	binary.BigEndian.PutUint32(p[12:], 600)
	binary.BigEndian.PutUint32(p[20:], 0x00010000)
	binary.BigEndian.PutUint16(p[24:], 0x0100)
	binary.BigEndian.PutUint32(p[96:], 2)
	return p
}

func movie(created uint32, packet string) []byte {
	ftyp := mp4Box("ftyp", []byte("isom\x00\x00\x00\x00isom"))
	moov := mp4Box("moov", mp4Box("mvhd", mvhdV0(created)))
	uuid := mp4Box("uuid", append(append([]byte{}, xmpUUID...), packet...))
	return append(append(ftyp, moov...), uuid...)
}

func TestMediaService_DetailsFromReader(t *testing.T) {
	fallback := time.Date(2021, 3, 4, 5, 6, 7, 0, time.Local)
	svc := NewMediaService()

	tests := []struct {
		name         string
		data         []byte
		expectedTime time.Time
		expectedKeys []string
		expectedDMS  string
	}{
		{
			name:         "jpeg xmp supplies everything",
			data:         jpegWithXMP(taggedPacket),
			expectedTime: time.Date(2014, 6, 6, 1, 19, 27, 0, time.UTC),
			expectedKeys: []string{"ferry", "sound"},
			expectedDMS:  `47° 35' 09" N, 122° 19' 43" W`,
		},
		{
			name:         "movie header time when xmp has no date",
			data:         movie(uint32(1600000000+appleEpochOffset), keywordsOnlyPacket),
			expectedTime: time.Unix(1600000000, 0),
			expectedKeys: []string{"clip"},
		},
		{
			name:         "xmp date wins over movie header",
			data:         movie(uint32(1600000000+appleEpochOffset), taggedPacket),
			expectedTime: time.Date(2014, 6, 6, 1, 19, 27, 0, time.UTC),
			expectedKeys: []string{"ferry", "sound"},
			expectedDMS:  `47° 35' 09" N, 122° 19' 43" W`,
		},
		{
			name:         "unknown content keeps defaults",
			data:         []byte("just some text"),
			expectedTime: fallback,
			expectedKeys: []string{},
		},
		{
			name:         "truncated jpeg keeps defaults",
			data:         []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x40},
			expectedTime: fallback,
			expectedKeys: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details := svc.DetailsFromReader(bytes.NewReader(tt.data), "media", fallback)

			assert.Equal(t, "media", details.Path)
			assert.True(t, tt.expectedTime.Equal(details.CreatedTime), "got %v", details.CreatedTime)
			assert.Equal(t, tt.expectedKeys, details.Keywords)
			assert.Equal(t, tt.expectedDMS, details.Location.ToDMS())
			assert.Equal(t, tt.expectedDMS != "", details.HasLocation())
		})
	}
}

func TestMediaService_Details(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.bin")
	require.NoError(t, os.WriteFile(path, []byte("no metadata here"), 0o644))

	modTime := time.Date(2019, 8, 1, 12, 0, 0, 0, time.Local)
	require.NoError(t, os.Chtimes(path, modTime, modTime))

	details, err := NewMediaService().Details(path)
	require.NoError(t, err)
	assert.Equal(t, path, details.Path)
	assert.True(t, modTime.Equal(details.CreatedTime))
	assert.True(t, details.Location.Equal(models.None))
	assert.Empty(t, details.Keywords)

	_, err = NewMediaService().Details(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}

func TestMediaService_ReloadKeywords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, jpegWithXMP(keywordsOnlyPacket), 0o644))

	svc := NewMediaService()
	details, err := svc.Details(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"clip"}, details.Keywords)

	require.NoError(t, os.WriteFile(path, jpegWithXMP(taggedPacket), 0o644))
	require.NoError(t, svc.ReloadKeywords(details))
	assert.Equal(t, []string{"ferry", "sound"}, details.Keywords)

	details.Path = filepath.Join(t.TempDir(), "gone.jpg")
	assert.Error(t, svc.ReloadKeywords(details))
}
