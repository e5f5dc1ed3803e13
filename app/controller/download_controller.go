package controller

import (
	"errors"
	"net/http"

	"deadbears-gallery/logger"
	"deadbears-gallery/repository"
	"deadbears-gallery/service"
)

// DownloadController handles HTTP requests for bulk image downloads
type DownloadController struct {
	downloadService service.DownloadServiceInterface
	catalog         repository.CatalogRepositoryInterface
	adminToken      string
}

// NewDownloadController creates a new DownloadController
func NewDownloadController(downloadService service.DownloadServiceInterface, catalog repository.CatalogRepositoryInterface, adminToken string) *DownloadController {
	return &DownloadController{
		downloadService: downloadService,
		catalog:         catalog,
		adminToken:      adminToken,
	}
}

// WarmImages handles POST /api/gallery/images/warm?size=thumb|medium (admin)
// Downloads, optimizes and caches the image of every loaded bear
func (c *DownloadController) WarmImages(w http.ResponseWriter, r *http.Request) {
	// Only allow POST method
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !requireAdmin(w, r, c.adminToken) {
		return
	}

	size := r.URL.Query().Get("size")
	if size == "" {
		size = "thumb"
	}

	items := c.catalog.All()
	ids := make([]int, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	logger.Info("📥 Warm request received: size=%s bears=%d", size, len(ids))

	report, err := c.downloadService.DownloadAllImages(r.Context(), ids, size)
	switch {
	case errors.Is(err, service.ErrInvalidSize):
		http.Error(w, "Invalid size. Valid sizes: thumb, medium", http.StatusBadRequest)
		return
	case err != nil:
		logger.Error("❌ Warm failed: %v", err)
		http.Error(w, "Failed to warm image cache", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
