package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/singleflight"

	"deadbears-gallery/logger"
)

const (
	// Quality settings
	qualityThumb  = 60
	qualityMedium = 75
	// Size settings (max dimension)
	maxSizeThumb  = 300
	maxSizeMedium = 800

	maxImageBytes = 20 << 20
)

// ErrInvalidSize is returned for an image size other than thumb or medium
var ErrInvalidSize = errors.New("size must be thumb or medium")

// ImageOptions configures the ImageOptimizer. Retries follow the metadata loader's policy.
type ImageOptions struct {
	ImageHash      string
	CacheDir       string
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

// ImageOptimizer serves resized JPEG renditions of token images, caching them on disk
type ImageOptimizer struct {
	client   *http.Client
	gateways *GatewayRotator
	opts     ImageOptions

	group singleflight.Group
}

// NewImageOptimizer creates an ImageOptimizer. client may be nil.
func NewImageOptimizer(client *http.Client, gateways *GatewayRotator, opts ImageOptions) *ImageOptimizer {
	if client == nil {
		client = &http.Client{}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	return &ImageOptimizer{
		client:   client,
		gateways: gateways,
		opts:     opts,
	}
}

// EnsureCacheDir ensures the cache directory exists, creates it if it doesn't
func (o *ImageOptimizer) EnsureCacheDir() error {
	if err := os.MkdirAll(o.opts.CacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return nil
}

// CachePath returns the cache file path for a token id and size
func (o *ImageOptimizer) CachePath(id int, size string) string {
	return filepath.Join(o.opts.CacheDir, fmt.Sprintf("bear_%d_%s.jpg", id, size))
}

// Cached reports whether the rendition for id and size is already on disk
func (o *ImageOptimizer) Cached(id int, size string) bool {
	_, err := os.Stat(o.CachePath(id, size))
	return err == nil
}

// Get returns the optimized image for id, from cache when present. Concurrent misses for the same
// id and size share one download, which keeps running when the caller that started it goes away.
func (o *ImageOptimizer) Get(ctx context.Context, id int, size string) ([]byte, error) {
	if size != "thumb" && size != "medium" {
		return nil, ErrInvalidSize
	}

	cachePath := o.CachePath(id, size)
	if data, err := os.ReadFile(cachePath); err == nil {
		logger.Debug("✓ Serving cached image: %s", cachePath)
		return data, nil
	}

	ch := o.group.DoChan(cachePath, func() (interface{}, error) {
		dctx, cancel := o.downloadContext(ctx)
		defer cancel()

		raw, err := o.download(dctx, id)
		if err != nil {
			return nil, err
		}
		optimized, err := OptimizeImage(raw, size)
		if err != nil {
			return nil, err
		}
		if err := o.saveToCache(cachePath, optimized); err != nil {
			// the image is still served, only caching failed
			logger.Warn("⚠️  %v", err)
		}
		return optimized, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// downloadContext detaches a shared download from the cancellation of the caller that started it.
// The download is still bounded by the time every attempt and backoff can take.
func (o *ImageOptimizer) downloadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if o.opts.RequestTimeout <= 0 {
		return context.WithCancel(base)
	}
	var budget time.Duration
	for attempt := 1; attempt <= o.opts.MaxRetries; attempt++ {
		budget += o.opts.RequestTimeout + o.opts.RetryDelay*time.Duration(attempt)
	}
	return context.WithTimeout(base, budget)
}

func (o *ImageOptimizer) download(ctx context.Context, id int) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= o.opts.MaxRetries; attempt++ {
		idx, gateway := o.gateways.Current()
		data, err := o.fetch(ctx, fmt.Sprintf("%s/%s/%d.png", gateway, o.opts.ImageHash, id))
		if err == nil {
			fetchAttempts.WithLabelValues(gateway, "ok").Inc()
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrNotMinted) {
			fetchAttempts.WithLabelValues(gateway, "not_found").Inc()
			return nil, err
		}
		outcome := "error"
		if errors.Is(err, errRateLimited) {
			outcome = "rate_limited"
		}
		fetchAttempts.WithLabelValues(gateway, outcome).Inc()
		lastErr = err
		o.gateways.RotateFrom(idx)

		if attempt < o.opts.MaxRetries && !errors.Is(err, errRateLimited) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.opts.RetryDelay * time.Duration(attempt)):
			}
		}
	}
	return nil, fmt.Errorf("image %d unavailable after %d attempts: %w", id, o.opts.MaxRetries, lastErr)
}

func (o *ImageOptimizer) fetch(ctx context.Context, url string) ([]byte, error) {
	if o.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotMinted, url)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", errRateLimited, url)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("gateway returned status %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

func (o *ImageOptimizer) saveToCache(cachePath string, imageData []byte) error {
	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(cachePath, imageData, 0644); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	logger.Info("✓ Image cached: %s", cachePath)
	return nil
}

// OptimizeImage converts an image to JPEG, scaling it down so neither side exceeds the size's
// max dimension. size is "thumb" or "medium".
func OptimizeImage(imageData []byte, size string) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	logger.Debug("📸 Image decoded: format=%s, bounds=%v", format, img.Bounds())

	var maxDim, quality int
	switch size {
	case "thumb":
		maxDim, quality = maxSizeThumb, qualityThumb
	case "medium":
		maxDim, quality = maxSizeMedium, qualityMedium
	default:
		return nil, ErrInvalidSize
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var resized image.Image = img
	if width > maxDim || height > maxDim {
		if width > height {
			resized = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
		} else {
			resized = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
		}
		logger.Debug("🔄 Resized image: %dx%d -> %v", width, height, resized.Bounds().Size())
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode to JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
