package census

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sells-group/demographics-cli/internal/fetcher"
)

// countingServer serves canned bodies by path and counts hits per path.
type countingServer struct {
	*httptest.Server
	hits   map[string]*atomic.Int32
	bodies map[string]string
	status map[string]int
}

func newCountingServer(t *testing.T, bodies map[string]string, status map[string]int) *countingServer {
	t.Helper()
	cs := &countingServer{hits: map[string]*atomic.Int32{}, bodies: bodies, status: status}
	for p := range bodies {
		cs.hits[p] = &atomic.Int32{}
	}
	for p := range status {
		if cs.hits[p] == nil {
			cs.hits[p] = &atomic.Int32{}
		}
	}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := cs.hits[r.URL.Path]; ok {
			c.Add(1)
		}
		if code, ok := cs.status[r.URL.Path]; ok {
			w.WriteHeader(code)
			return
		}
		body, ok := cs.bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *countingServer) count(path string) int32 {
	if c, ok := cs.hits[path]; ok {
		return c.Load()
	}
	return 0
}

func newTestFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		RetryBase:  time.Millisecond,
	})
}
