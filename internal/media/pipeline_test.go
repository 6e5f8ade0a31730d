package media

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

type fakeRenderer struct {
	mu   sync.Mutex
	urls []string
	data []byte
	err  error
}

func (r *fakeRenderer) Screenshot(ctx context.Context, url string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
	if r.err != nil {
		return nil, r.err
	}
	return r.data, nil
}

func (r *fakeRenderer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.urls)
}

func TestAcquireDirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("raw-png-bytes"))
	}))
	defer srv.Close()

	renderer := &fakeRenderer{data: []byte("unused")}
	p := NewPipeline(renderer)

	img, err := p.Acquire(context.Background(), Request{URL: srv.URL + "/pic.png"})
	require.NoError(t, err)
	assert.Equal(t, MethodDirect, img.Method)
	assert.Equal(t, []byte("raw-png-bytes"), img.Data)
	assert.Equal(t, "image/png", img.Mime)
	assert.Zero(t, renderer.callCount(), "render tier must not run for declared images")
}

func TestAcquireRenderFallback(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
	}{
		{"html page", "text/html; charset=utf-8"},
		{"unknown type", "application/octet-stream"},
		{"missing type", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.contentType != "" {
					w.Header().Set("Content-Type", tc.contentType)
				}
			}))
			defer srv.Close()

			renderer := &fakeRenderer{data: []byte("screenshot-bytes")}
			p := NewPipeline(renderer)

			img, err := p.Acquire(context.Background(), Request{URL: srv.URL + "/page"})
			require.NoError(t, err)
			assert.Equal(t, MethodRendered, img.Method)
			assert.Equal(t, []byte("screenshot-bytes"), img.Data)
			require.Equal(t, 1, renderer.callCount())
			assert.Equal(t, srv.URL+"/page", renderer.urls[0])
		})
	}
}

func TestAcquireProbeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // probe has nowhere to connect

	p := NewPipeline(&fakeRenderer{})
	_, err := p.Acquire(context.Background(), Request{URL: srv.URL + "/gone"})
	require.ErrorIs(t, err, ErrProbeFailed)
}

func TestAcquireProbeTimeoutFallsBackToRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	renderer := &fakeRenderer{data: []byte("screenshot-bytes")}
	p := NewPipeline(renderer)
	p.http.SetTimeout(50 * time.Millisecond)

	img, err := p.Acquire(context.Background(), Request{URL: srv.URL + "/slow"})
	require.NoError(t, err)
	assert.Equal(t, MethodRendered, img.Method)
	assert.Equal(t, 1, renderer.callCount())
}

func TestAcquireFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewPipeline(&fakeRenderer{})
	_, err := p.Acquire(context.Background(), Request{URL: srv.URL + "/missing.jpg"})
	require.ErrorIs(t, err, ErrFetchFailed)
}

func TestAcquireEmptyBuffers(t *testing.T) {
	t.Run("empty direct body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
		}))
		defer srv.Close()

		p := NewPipeline(&fakeRenderer{})
		_, err := p.Acquire(context.Background(), Request{URL: srv.URL + "/empty.png"})
		require.ErrorIs(t, err, ErrEmptyMedia)
	})

	t.Run("empty screenshot", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
		}))
		defer srv.Close()

		p := NewPipeline(&fakeRenderer{data: nil})
		_, err := p.Acquire(context.Background(), Request{URL: srv.URL + "/page"})
		require.ErrorIs(t, err, ErrEmptyMedia)
	})
}

func TestAcquireTemplateBypassesNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	renderer := &fakeRenderer{data: []byte("unused")}
	p := NewPipeline(renderer)

	img, err := p.Acquire(context.Background(), Request{
		URL:    srv.URL, // present but must be ignored for template requests
		Poster: &PosterRequest{Name: "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, MethodTemplated, img.Method)
	assert.Equal(t, "image/jpeg", img.Mime)
	assert.NotZero(t, img.Size())
	assert.Zero(t, hits.Load(), "template path must not touch the probe or fetch tiers")
	assert.Zero(t, renderer.callCount())
}
