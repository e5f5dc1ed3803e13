package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestOptimizeImage(t *testing.T) {
	src := pngBytes(t, 1200, 600)

	thumb, err := OptimizeImage(src, "thumb")
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 150, cfg.Height)

	t.Run("small images are not upscaled", func(t *testing.T) {
		out, err := OptimizeImage(pngBytes(t, 100, 80), "medium")
		require.NoError(t, err)
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 100, cfg.Width)
	})

	t.Run("invalid size", func(t *testing.T) {
		_, err := OptimizeImage(src, "huge")
		assert.ErrorIs(t, err, ErrInvalidSize)
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := OptimizeImage([]byte("nope"), "thumb")
		assert.Error(t, err)
	})
}

func TestImageOptimizer_GetCachesOnDisk(t *testing.T) {
	src := pngBytes(t, 900, 900)
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/ipfs/bafyimage/7.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(src)
	}))
	defer server.Close()

	dir := t.TempDir()
	optimizer := NewImageOptimizer(server.Client(), NewGatewayRotator([]string{server.URL + "/ipfs"}), ImageOptions{
		ImageHash:      "bafyimage",
		CacheDir:       dir,
		MaxRetries:     2,
		RequestTimeout: time.Second,
	})
	require.NoError(t, optimizer.EnsureCacheDir())

	first, err := optimizer.Get(context.Background(), 7, "medium")
	require.NoError(t, err)
	_, err = os.Stat(optimizer.CachePath(7, "medium"))
	require.NoError(t, err)

	second, err := optimizer.Get(context.Background(), 7, "medium")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, hits.Load())

	_, err = optimizer.Get(context.Background(), 8, "thumb")
	assert.ErrorIs(t, err, ErrNotMinted)

	_, err = optimizer.Get(context.Background(), 7, "poster")
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestImageOptimizer_RotatesOnFailure(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	small := pngBytes(t, 10, 10)
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(small)
	}))
	defer up.Close()

	optimizer := NewImageOptimizer(nil, NewGatewayRotator([]string{down.URL, up.URL}), ImageOptions{
		ImageHash:      "h",
		CacheDir:       t.TempDir(),
		MaxRetries:     2,
		RequestTimeout: time.Second,
	})
	_, err := optimizer.Get(context.Background(), 1, "thumb")
	assert.NoError(t, err)
}

func TestImageOptimizer_BacksOffBetweenRetries(t *testing.T) {
	small := pngBytes(t, 10, 10)
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(small)
	}))
	defer server.Close()

	optimizer := NewImageOptimizer(server.Client(), NewGatewayRotator([]string{server.URL}), ImageOptions{
		ImageHash:      "h",
		CacheDir:       t.TempDir(),
		MaxRetries:     3,
		RetryDelay:     50 * time.Millisecond,
		RequestTimeout: time.Second,
	})

	start := time.Now()
	_, err := optimizer.Get(context.Background(), 1, "thumb")
	require.NoError(t, err)
	assert.EqualValues(t, 3, hits.Load())
	// 50ms after the first failure, 100ms after the second
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestImageOptimizer_SharedDownloadSurvivesCancelledCaller(t *testing.T) {
	small := pngBytes(t, 10, 10)
	started := make(chan struct{})
	release := make(chan struct{})
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write(small)
	}))
	defer server.Close()

	optimizer := NewImageOptimizer(server.Client(), NewGatewayRotator([]string{server.URL}), ImageOptions{
		ImageHash:      "h",
		CacheDir:       t.TempDir(),
		MaxRetries:     1,
		RequestTimeout: 5 * time.Second,
	})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := optimizer.Get(ctxA, 1, "thumb")
		errA <- err
	}()
	<-started

	type result struct {
		data []byte
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		data, err := optimizer.Get(context.Background(), 1, "thumb")
		resB <- result{data, err}
	}()
	// let the second caller join the in-flight download
	time.Sleep(50 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	assert.NotEmpty(t, b.data)
	assert.EqualValues(t, 1, hits.Load())
	assert.True(t, optimizer.Cached(1, "thumb"))
}
