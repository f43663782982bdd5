package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/demographics-cli/internal/store"
)

func TestPrintCacheStats(t *testing.T) {
	var buf bytes.Buffer
	printCacheStats(&buf, "/tmp/census.db", store.Stats{Entries: 12, Expired: 2, Bytes: 3072})

	out := buf.String()
	assert.Contains(t, out, "/tmp/census.db")
	assert.Contains(t, out, "entries:  12")
	assert.Contains(t, out, "expired:  2")
	assert.Contains(t, out, "3.0 KiB")
}

func TestOpenCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	cache, err := openCache(ctx, path)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, cache.Close())

	reopened, err := openCache(ctx, path)
	require.NoError(t, err)
	defer reopened.Close() //nolint:errcheck
	body, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(body))
}

func TestCacheCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range cacheCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["stats"])
	assert.True(t, names["prune"])
	assert.True(t, names["clear"])
}
