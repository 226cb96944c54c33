package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wisefido-careplan/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string]string{}} }

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func TestElderDirectoryClient_ElderExists(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Path {
		case "/elders/elder-1":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"elder_id":"elder-1"}`))
		case "/elders/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cache := newFakeKV()
	client := NewElderDirectoryClient(srv.URL, time.Second, cache, zap.NewNop())
	ctx := context.Background()

	ok, err := client.ElderExists(ctx, "elder-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", cache.data[store.ElderCacheKey("elder-1")])

	// 第二次命中缓存
	ok, err = client.ElderExists(ctx, "elder-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	ok, err = client.ElderExists(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	_, cached := cache.data[store.ElderCacheKey("ghost")]
	assert.False(t, cached)

	_, err = client.ElderExists(ctx, "broken")
	assert.Error(t, err)
}
