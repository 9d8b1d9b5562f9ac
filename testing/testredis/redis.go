package testredis

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	sharedContainer *RedisContainer
	sharedOnce      sync.Once
)

type RedisContainer struct {
	Container testcontainers.Container
	Addr      string
}

// SetupSharedRedis starts one Redis container per test binary.
func SetupSharedRedis(t *testing.T) *RedisContainer {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	sharedOnce.Do(func() {
		ctx := context.Background()

		redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForLog("Ready to accept connections"),
			},
			Started: true,
		})
		require.NoError(t, err)

		host, err := redisContainer.Host(ctx)
		require.NoError(t, err)

		port, err := redisContainer.MappedPort(ctx, "6379")
		require.NoError(t, err)

		sharedContainer = &RedisContainer{
			Container: redisContainer,
			Addr:      host + ":" + port.Port(),
		}
	})

	return sharedContainer
}

func (rc *RedisContainer) Cleanup(t *testing.T) {
	t.Helper()

	if rc.Container != nil {
		if err := rc.Container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
}
