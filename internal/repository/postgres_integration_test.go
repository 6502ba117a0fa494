//go:build integration

package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jackc/pgx/v5/pgxpool"
)

func setupTestDatabase(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	postgresC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		postgresC.Terminate(ctx)
	})

	host, err := postgresC.Host(ctx)
	require.NoError(t, err)

	port, err := postgresC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return "postgres://testuser:testpass@" + host + ":" + port.Port() + "/testdb?sslmode=disable"
}

func TestLocationCacheRepository_GetPut(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	repo := NewLocationCacheRepository(OpenPool(setupTestDatabase(t)))
	t.Cleanup(repo.Close)
	ctx := context.Background()

	key := `51° 10' 44.04000000000000" N, 01° 49' 34.32000000000000" W`
	value := `{"display_name":"Stonehenge","address":{"attraction":"Stonehenge"}}`

	_, found, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Put(ctx, key, value))

	got, found, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, value, got)

	inserted, err := repo.Insert(ctx, key, `{"display_name":"other"}`)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, _, err = repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestLocationCacheRepository_ConcurrentPutSameKey(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	dsn := setupTestDatabase(t)
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewLocationCacheRepositoryWithPool(pool)
	ctx := context.Background()
	key := `47° 36' 20.63748767584000" N, 122° 21' 08.17694550360000" W`

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.Put(ctx, key, fmt.Sprintf(`{"display_name":"writer %d"}`, i)))
		}(i)
	}
	wg.Wait()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	first, found, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	again, _, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}
