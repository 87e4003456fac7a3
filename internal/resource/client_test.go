package resource_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/config"
	"townchat/backend/internal/resource"
)

func newClient(baseURL string, retries int, timeout time.Duration) *resource.Client {
	return resource.NewClient(config.ResourcesConfig{
		Timeout: timeout,
		Retries: retries,
		Backoff: time.Millisecond,
		Product: config.ResourceConfig{
			BaseURL:    baseURL,
			ContentURL: "https://shop.example/message-product/%s/",
		},
		Announcement: config.ResourceConfig{
			BaseURL: baseURL,
		},
	})
}

func TestFetch_ParsesOwnerAndTitle(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"guid":"p-1","user":{"guid":"owner-1"},"short_description":"Red bike","price":120}`))
	}))
	defer srv.Close()

	res, err := newClient(srv.URL+"/api/", 0, time.Second).Fetch(context.Background(), resource.Product, "p-1")

	require.NoError(t, err)
	assert.Equal(t, "/api/product-data/p-1", path)
	assert.Equal(t, resource.Product, res.Kind)
	assert.Equal(t, "p-1", res.ID)
	assert.Equal(t, "owner-1", res.Owner)
	assert.Equal(t, "Red bike", res.Title)
	assert.Equal(t, float64(120), res.Raw["price"])
}

func TestFetch_OwnerFieldVariants(t *testing.T) {
	bodies := map[string]string{
		"user":      `{"user":"u-1"}`,
		"user_guid": `{"user_guid":"u-1"}`,
		"user_id":   `{"user":"","user_id":"u-1"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			res, err := newClient(srv.URL, 0, time.Second).Fetch(context.Background(), resource.Announcement, "a-1")
			require.NoError(t, err)
			assert.Equal(t, "u-1", res.Owner)
			assert.Equal(t, "a-1", res.ID)
		})
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"user":"u-1"}`))
	}))
	defer srv.Close()

	res, err := newClient(srv.URL, 2, time.Second).Fetch(context.Background(), resource.Product, "p-1")

	require.NoError(t, err)
	assert.Equal(t, "u-1", res.Owner)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind apperr.Kind
		wantHits int32
	}{
		{
			name:     "not found is not retried",
			handler:  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			wantKind: apperr.KindNotFound,
			wantHits: 1,
		},
		{
			name:     "server errors exhaust retries",
			handler:  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			wantKind: apperr.KindUpstream,
			wantHits: 3,
		},
		{
			name:     "client errors are not retried",
			handler:  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) },
			wantKind: apperr.KindUpstream,
			wantHits: 1,
		},
		{
			name:     "invalid json",
			handler:  func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) },
			wantKind: apperr.KindUpstream,
			wantHits: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			_, err := newClient(srv.URL, 2, time.Second).Fetch(context.Background(), resource.Product, "p-1")

			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Equal(t, tt.wantHits, hits.Load())
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := newClient(srv.URL, 0, 50*time.Millisecond).Fetch(context.Background(), resource.Product, "p-1")

	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestFetch_Validation(t *testing.T) {
	c := newClient("http://127.0.0.1:1", 0, time.Second)

	_, err := c.Fetch(context.Background(), resource.Kind("course"), "c-1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = c.Fetch(context.Background(), resource.Product, "  ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestContentURL(t *testing.T) {
	c := newClient("http://shop", 0, time.Second)

	u, err := c.ContentURL(resource.Product, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/message-product/p-1/", u)

	_, err = c.ContentURL(resource.Announcement, "a-1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
