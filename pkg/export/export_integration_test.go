//go:build integration

package export

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Sternrassler/tosdr-export/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	t.Cleanup(func() {
		client.Close()
		redisContainer.Terminate(ctx)
	})

	return client
}

func TestIntegration_ServicesServedFromCache(t *testing.T) {
	redisClient := setupRedisContainer(t)

	mock := testutil.NewMockTOSDR()
	defer mock.Close()
	for _, id := range []int{1, 2, 3} {
		mock.SetService(id, testutil.NewOKResponse(testutil.ServiceBody(id)))
	}

	dir := t.TempDir()
	metadata := filepath.Join(dir, "all_services_metadata.ndjson.gz")
	writeMetadata(t, metadata, 1, 2, 3)

	e := newTestExporter(t, mock, redisClient)
	ctx := context.Background()

	first := filepath.Join(dir, "first.ndjson.gz")
	if _, err := e.Services(ctx, metadata, first); err != nil {
		t.Fatalf("first Services() error = %v", err)
	}
	second := filepath.Join(dir, "second.ndjson.gz")
	if _, err := e.Services(ctx, metadata, second); err != nil {
		t.Fatalf("second Services() error = %v", err)
	}

	for _, id := range []int{1, 2, 3} {
		if got := mock.ServiceRequests(id); got != 1 {
			t.Errorf("service %d requested %d times, want 1", id, got)
		}
	}
	if a, b := readIDs(t, first), readIDs(t, second); !reflect.DeepEqual(a, b) {
		t.Errorf("cached export differs: %v vs %v", a, b)
	}
}

func TestIntegration_ServicesCacheRetainsFullRecord(t *testing.T) {
	redisClient := setupRedisContainer(t)

	mock := testutil.NewMockTOSDR()
	defer mock.Close()
	mock.SetService(42, testutil.NewOKResponse(testutil.ServiceBody(42)))

	dir := t.TempDir()
	metadata := filepath.Join(dir, "metadata.ndjson.gz")
	writeMetadata(t, metadata, 42)

	e := newTestExporter(t, mock, redisClient)
	ctx := context.Background()

	for _, name := range []string{"a.ndjson.gz", "b.ndjson.gz"} {
		if _, err := e.Services(ctx, metadata, filepath.Join(dir, name)); err != nil {
			t.Fatalf("Services() error = %v", err)
		}
	}

	a := readRaw(t, filepath.Join(dir, "a.ndjson.gz"))
	b := readRaw(t, filepath.Join(dir, "b.ndjson.gz"))
	if a != b {
		t.Errorf("cached record differs:\n%s\n%s", a, b)
	}
}
