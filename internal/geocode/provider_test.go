package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"geomedia-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockStore) Put(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Lookup(ctx context.Context, loc models.Location) (string, bool) {
	args := m.Called(ctx, loc)
	return args.String(0), args.Bool(1)
}

const salisbury = `{"display_name":"A303, Salisbury","address":{"road":"A303","city":"Salisbury"}}`

func TestNominatimProvider_Lookup(t *testing.T) {
	var query map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k, v := range r.URL.Query() {
			query[k] = v[0]
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"place_id":1,"licence":"ODbL","lat":"51.1","lon":"-1.8",` +
			`"display_name":"A303, Salisbury","address":{"road":"A303","city":"Salisbury"},"boundingbox":["1","2"]}`))
	}))
	defer server.Close()

	p := NewNominatimProvider(NominatimConfig{URL: server.URL, APIKey: "secret"})
	value, ok := p.Lookup(context.Background(), models.NewLocation(51.1, -1.8))

	require.True(t, ok)
	assert.Equal(t, salisbury, value)
	assert.Equal(t, map[string]string{
		"key":             "secret",
		"format":          "json",
		"lat":             "51.1",
		"lon":             "-1.8",
		"addressdetails":  "1",
		"zoom":            "18",
		"accept-language": "en-us",
	}, query)
}

func TestNominatimProvider_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		expected   string
		expectedOK bool
	}{
		{
			name:       "geocoder error is normalized",
			status:     http.StatusOK,
			body:       `{"error":"Unable to geocode"}`,
			expected:   `{"geoError":"Unable to geocode"}`,
			expectedOK: true,
		},
		{
			name:       "structured error keeps raw text",
			status:     http.StatusOK,
			body:       `{"error":{"code":1}}`,
			expected:   `{"geoError":"{\"code\":1}"}`,
			expectedOK: true,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `oops`,
		},
		{
			name:   "invalid body",
			status: http.StatusOK,
			body:   `<html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := NewNominatimProvider(NominatimConfig{URL: server.URL})
			value, ok := p.Lookup(context.Background(), models.NewLocation(1, 2))

			assert.Equal(t, tt.expectedOK, ok)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestNominatimProvider_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := NewNominatimProvider(NominatimConfig{URL: server.URL, Timeout: 50 * time.Millisecond})
	value, ok := p.Lookup(context.Background(), models.NewLocation(1, 2))

	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestNominatimProvider_None(t *testing.T) {
	p := NewNominatimProvider(NominatimConfig{URL: "http://127.0.0.1:1"})
	_, ok := p.Lookup(context.Background(), models.None)
	assert.False(t, ok)
}

func TestCachingProvider_Lookup(t *testing.T) {
	loc := models.NewLocation(51.1789, -1.8262)
	key := loc.CacheKey()

	tests := []struct {
		name       string
		setup      func(*MockStore, *MockProvider)
		expected   string
		expectedOK bool
	}{
		{
			name: "cache hit skips provider",
			setup: func(s *MockStore, p *MockProvider) {
				s.On("Get", mock.Anything, key).Return(salisbury, true, nil)
			},
			expected:   salisbury,
			expectedOK: true,
		},
		{
			name: "miss stores provider result",
			setup: func(s *MockStore, p *MockProvider) {
				s.On("Get", mock.Anything, key).Return("", false, nil)
				p.On("Lookup", mock.Anything, loc).Return(salisbury, true)
				s.On("Put", mock.Anything, key, salisbury).Return(nil)
			},
			expected:   salisbury,
			expectedOK: true,
		},
		{
			name: "store failures degrade to provider",
			setup: func(s *MockStore, p *MockProvider) {
				s.On("Get", mock.Anything, key).Return("", false, errors.New("connection refused"))
				p.On("Lookup", mock.Anything, loc).Return(salisbury, true)
				s.On("Put", mock.Anything, key, salisbury).Return(errors.New("connection refused"))
			},
			expected:   salisbury,
			expectedOK: true,
		},
		{
			name: "empty provider result is not stored",
			setup: func(s *MockStore, p *MockProvider) {
				s.On("Get", mock.Anything, key).Return("", false, nil)
				p.On("Lookup", mock.Anything, loc).Return("  ", true)
			},
		},
		{
			name: "provider failure",
			setup: func(s *MockStore, p *MockProvider) {
				s.On("Get", mock.Anything, key).Return("", false, nil)
				p.On("Lookup", mock.Anything, loc).Return("", false)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			inner := new(MockProvider)
			tt.setup(store, inner)

			p := NewCachingProvider(store, inner)
			value, ok := p.Lookup(context.Background(), loc)

			assert.Equal(t, tt.expectedOK, ok)
			assert.Equal(t, tt.expected, value)
			store.AssertExpectations(t)
			inner.AssertExpectations(t)
			store.AssertNotCalled(t, "Put", mock.Anything, key, "  ")
		})
	}
}

func TestCachingProvider_NoneNeverReachesChain(t *testing.T) {
	store := new(MockStore)
	inner := new(MockProvider)

	_, ok := NewCachingProvider(store, inner).Lookup(context.Background(), models.None)

	assert.False(t, ok)
	store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	inner.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

func TestMemoryCache_FirstValueWins(t *testing.T) {
	c := NewMemoryCache()
	first := &models.PlaceResponse{Error: "first"}

	var wg sync.WaitGroup
	var stored atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 0 {
				c.Put("k", first)
			} else {
				c.Put("k", &models.PlaceResponse{})
			}
			stored.Add(1)
		}(i)
	}
	wg.Wait()

	resp, ok := c.Get("k")
	require.True(t, ok)
	assert.NotNil(t, resp)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int32(16), stored.Load())

	_, ok = c.Get("missing")
	assert.False(t, ok)
}
