package census

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/demographics-cli/internal/geo"
)

const collinTracts = `[["NAME","state","county","tract"],
["Census Tract 303","48","085","030300"],
["Census Tract 301","48","085","030100"],
["Census Tract 302","48","085","030200"],
["Census Tract 302","48","085","030200"]]`

func TestCatalog_ListTracts(t *testing.T) {
	srv := newCountingServer(t, map[string]string{"/2022/acs/acs5": collinTracts}, nil)
	cat := NewCatalog(NewClient(newTestFetcher(), srv.URL, ""), "2022", "")

	tracts, err := cat.ListTracts(context.Background(), collin)
	require.NoError(t, err)
	require.Len(t, tracts, 3, "duplicates collapse")
	assert.Equal(t, "030100", tracts[0].TractID)
	assert.Equal(t, "030300", tracts[2].TractID)
	assert.Equal(t, "48", tracts[0].StateFIPS)
	assert.Equal(t, "085", tracts[0].CountyFIPS)
}

func TestCatalog_ListTracts_CachedPerCounty(t *testing.T) {
	srv := newCountingServer(t, map[string]string{"/2022/acs/acs5": collinTracts}, nil)
	cat := NewCatalog(NewClient(newTestFetcher(), srv.URL, ""), "2022", "")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cat.ListTracts(context.Background(), collin)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	first, err := cat.ListTracts(context.Background(), collin)
	require.NoError(t, err)
	first[0].TractID = "mutated"
	second, err := cat.ListTracts(context.Background(), collin)
	require.NoError(t, err)

	assert.Equal(t, int32(1), srv.count("/2022/acs/acs5"))
	assert.Equal(t, "030100", second[0].TractID, "callers get copies")
}

func TestCatalog_ListTracts_NoTracts(t *testing.T) {
	srv := newCountingServer(t, map[string]string{"/2022/acs/acs5": `[["NAME","state","county","tract"]]`}, nil)
	cat := NewCatalog(NewClient(newTestFetcher(), srv.URL, ""), "2022", "")

	_, err := cat.ListTracts(context.Background(), collin)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoTractsFound))

	_, err = cat.ListTracts(context.Background(), collin)
	assert.True(t, eris.Is(err, ErrNoTractsFound))
	assert.Equal(t, int32(1), srv.count("/2022/acs/acs5"))
}

func TestCatalog_ListTracts_UpstreamFailureNotCached(t *testing.T) {
	srv := newCountingServer(t, nil, map[string]int{"/2022/acs/acs5": http.StatusServiceUnavailable})
	cat := NewCatalog(NewClient(newTestFetcher(), srv.URL, ""), "2022", "")

	_, err := cat.ListTracts(context.Background(), collin)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUpstreamUnavailable))

	_, err = cat.ListTracts(context.Background(), collin)
	require.Error(t, err)
	assert.Equal(t, int32(2), srv.count("/2022/acs/acs5"))
}

func TestCatalog_DistinctCounties(t *testing.T) {
	srv := newCountingServer(t, map[string]string{"/2022/acs/acs5": collinTracts}, nil)
	cat := NewCatalog(NewClient(newTestFetcher(), srv.URL, ""), "2022", "")

	_, err := cat.ListTracts(context.Background(), collin)
	require.NoError(t, err)
	_, err = cat.ListTracts(context.Background(), geo.CountyKey{StateFIPS: "48", CountyFIPS: "113"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.count("/2022/acs/acs5"))
	assert.Equal(t, 2, cat.cache.len())
}
