package service

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"deadbears-gallery/logger"
	"deadbears-gallery/models"
)

// maxParallelDownloads bounds concurrent gateway requests while warming the cache
const maxParallelDownloads = 8

// DownloadServiceInterface defines the contract for bulk image downloads
type DownloadServiceInterface interface {
	DownloadAllImages(ctx context.Context, ids []int, size string) (models.WarmReport, error)
}

// DownloadService downloads and optimizes token images ahead of time so the gallery is served from cache
type DownloadService struct {
	images *ImageOptimizer
}

// NewDownloadService creates a new DownloadService
func NewDownloadService(images *ImageOptimizer) *DownloadService {
	return &DownloadService{images: images}
}

// Ensure DownloadService implements DownloadServiceInterface
var _ DownloadServiceInterface = (*DownloadService)(nil)

// DownloadAllImages fetches, optimizes and caches the given size for every id.
// Ids already cached are skipped; per-image failures are collected in the report and do not stop the run.
// The returned error is only set when ctx is cancelled.
func (ds *DownloadService) DownloadAllImages(ctx context.Context, ids []int, size string) (models.WarmReport, error) {
	report := models.WarmReport{Size: size, Total: len(ids)}
	if size != "thumb" && size != "medium" {
		return report, ErrInvalidSize
	}

	logger.Info("📥 Warming %s image cache for %d bears", size, len(ids))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDownloads)
	for _, id := range ids {
		if ds.images.Cached(id, size) {
			report.Skipped++
			continue
		}
		g.Go(func() error {
			if _, err := ds.images.Get(gctx, id, size); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				errorMsg := fmt.Sprintf("Failed to cache image %d: %v", id, err)
				logger.Warn("❌ %s", errorMsg)
				mu.Lock()
				report.Errors = append(report.Errors, errorMsg)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			report.Downloaded++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Failed = len(report.Errors)
	logger.Info("🎉 Cache warm completed: %d downloaded, %d skipped, %d failed out of %d total images",
		report.Downloaded, report.Skipped, report.Failed, report.Total)
	return report, nil
}
