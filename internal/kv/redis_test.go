package kv_test

import (
	"context"
	"testing"

	"github.com/alagappainfotech/student-registration-app/internal/kv"
	"github.com/alagappainfotech/student-registration-app/testing/testredis"

	"github.com/stretchr/testify/require"
)

func TestRedis_Shared(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	rc := testredis.SetupSharedRedis(t)
	defer rc.Cleanup(t)

	store, err := kv.NewRedis(context.Background(), rc.Addr, "", 0, "academy:test:")
	require.NoError(t, err)
	defer store.Close()

	testStore(t, store)
}
