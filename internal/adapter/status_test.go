package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedStatusEchoesCompatibleProtocol(t *testing.T) {
	s := &FixedStatus{
		VersionName:      "Passage",
		PreferredVersion: 769,
		MinVersion:       760,
		MaxVersion:       770,
	}

	got, err := s.Status(context.Background(), Request{Protocol: 765})
	require.NoError(t, err)
	assert.Equal(t, int32(765), got.Version.Protocol, "in-range client sees its own protocol")

	got, err = s.Status(context.Background(), Request{Protocol: 42})
	require.NoError(t, err)
	assert.Equal(t, int32(769), got.Version.Protocol, "out-of-range client sees the preferred protocol")

	got, err = s.Status(context.Background(), Request{Protocol: 9999})
	require.NoError(t, err)
	assert.Equal(t, int32(769), got.Version.Protocol)
}

func TestNoneStatusHidesServer(t *testing.T) {
	got, err := NoneStatus{}.Status(context.Background(), Request{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHTTPStatusFetchesAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"version":{"name":"Backend","protocol":769},"players":{"online":7,"max":100}}`))
	}))
	defer srv.Close()

	s := NewHTTPStatus(srv.URL, time.Minute)

	got, err := s.Status(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "Backend", got.Version.Name)
	assert.Equal(t, 7, got.Players.Online)

	// second call within the TTL is served from cache
	_, err = s.Status(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPStatusCoalescesConcurrentFetches(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		<-release
		w.Write([]byte(`{"version":{"name":"Backend","protocol":769}}`))
	}))
	defer srv.Close()

	s := NewHTTPStatus(srv.URL, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Status(context.Background(), Request{})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent pings share one upstream fetch")
}

func TestHTTPStatusServesStaleOnError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"version":{"name":"Backend","protocol":769}}`))
	}))
	defer srv.Close()

	s := NewHTTPStatus(srv.URL, time.Nanosecond)

	got, err := s.Status(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, "Backend", got.Version.Name)

	fail.Store(true)
	time.Sleep(time.Millisecond)

	got, err = s.Status(context.Background(), Request{})
	require.NoError(t, err, "a stale value beats an upstream failure")
	assert.Equal(t, "Backend", got.Version.Name)
}

func TestHTTPStatusErrorsWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTPStatus(srv.URL, time.Minute)
	_, err := s.Status(context.Background(), Request{})
	require.Error(t, err)
}

func TestFixedDiscoveryCopiesList(t *testing.T) {
	d := &FixedDiscovery{List: []Target{{ID: "hub-1"}, {ID: "hub-2"}}}

	got, err := d.Targets(context.Background(), Request{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got[0].ID = "mutated"
	again, err := d.Targets(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "hub-1", again[0].ID, "callers must not see each other's mutations")
}

func TestNoneDiscoveryIsEmpty(t *testing.T) {
	got, err := NoneDiscovery{}.Targets(context.Background(), Request{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
