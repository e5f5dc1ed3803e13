package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"deadbears-gallery/logger"
	"deadbears-gallery/models"
	"deadbears-gallery/repository"
	"deadbears-gallery/service"
)

// maxSentinelSteps bounds the "more" parameter so a request cannot grow the window without limit
const maxSentinelSteps = 1000

// GalleryController handles HTTP requests for the collection gallery
type GalleryController struct {
	catalog       repository.CatalogRepositoryInterface
	loader        service.MetadataLoaderInterface
	images        *service.ImageOptimizer
	sheets        *service.SheetService
	traitTypes    []string
	initialWindow int
	windowStep    int
	adminToken    string
}

// NewGalleryController creates a new GalleryController
func NewGalleryController(
	catalog repository.CatalogRepositoryInterface,
	loader service.MetadataLoaderInterface,
	images *service.ImageOptimizer,
	sheets *service.SheetService,
	traitTypes []string,
	initialWindow, windowStep int,
	adminToken string,
) *GalleryController {
	return &GalleryController{
		catalog:       catalog,
		loader:        loader,
		images:        images,
		sheets:        sheets,
		traitTypes:    traitTypes,
		initialWindow: initialWindow,
		windowStep:    windowStep,
		adminToken:    adminToken,
	}
}

// parseView builds a view model from the query string:
//
//	search=12  trait=Hat:Crown (repeatable)  specials=true  sort=id-asc|id-desc|random  seed=N  more=N
//
// more is the number of times the client saw the end-of-list sentinel since its last filter/sort change.
func (c *GalleryController) parseView(q url.Values) (*service.CatalogViewModel, error) {
	filter := models.FilterState{
		Search:       q.Get("search"),
		OnlySpecials: q.Get("specials") == "true" || q.Get("specials") == "1",
	}
	for _, raw := range q["trait"] {
		traitType, value, ok := strings.Cut(raw, ":")
		if !ok || traitType == "" || value == "" {
			return nil, fmt.Errorf("invalid trait %q, expected Type:Value", raw)
		}
		filter.AddTrait(traitType, value)
	}

	// Without a seed the order gets a fresh one, echoed back in the page so the client can keep it
	sortState := models.SortState{Option: models.SortIDAsc, Seed: rand.Uint64()}
	if s := q.Get("sort"); s != "" {
		sortState.Option = models.SortOption(s)
		if !sortState.Option.Valid() {
			return nil, fmt.Errorf("invalid sort %q. Valid values: id-asc, id-desc, random", s)
		}
	}
	if s := q.Get("seed"); s != "" {
		seed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid seed %q", s)
		}
		sortState.Seed = seed
	}

	more := 0
	if s := q.Get("more"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid more %q", s)
		}
		more = min(n, maxSentinelSteps)
	}

	vm := service.NewCatalogViewModel(c.initialWindow, c.windowStep)
	if err := vm.SetFilter(filter); err != nil {
		return nil, err
	}
	vm.SetSort(sortState)
	for i := 0; i < more; i++ {
		vm.OnSentinelVisible()
	}
	return vm, nil
}

// GetGallery handles GET /api/gallery
func (c *GalleryController) GetGallery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	vm, err := c.parseView(r.URL.Query())
	if err != nil {
		logger.Debug("❌ GetGallery: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	items := c.catalog.All()
	page := vm.Page(items, len(items), c.catalog.Supply())
	writeJSON(w, http.StatusOK, page)
}

// GetStatus handles GET /api/gallery/status
func (c *GalleryController) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, c.loader.Status())
}

// GetTraits handles GET /api/gallery/traits
func (c *GalleryController) GetTraits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, service.TraitFacets(c.catalog.All(), c.traitTypes))
}

// GetSheet handles GET /api/gallery/sheet?format=html|pdf plus the gallery view parameters.
// The sheet covers the whole filtered view, not only the current window.
func (c *GalleryController) GetSheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if format == "" {
		format = "html"
	}
	if format != "html" && format != "pdf" {
		http.Error(w, "Invalid format. Valid formats: html, pdf", http.StatusBadRequest)
		return
	}

	vm, err := c.parseView(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter, sortState := vm.State()
	items := service.ApplyView(c.catalog.All(), filter, sortState)

	switch format {
	case "html":
		htmlContent, err := c.sheets.RenderHTML(items, filter)
		if err != nil {
			logger.Error("❌ GetSheet: Error rendering HTML: %v", err)
			http.Error(w, "Failed to render contact sheet", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(htmlContent)); err != nil {
			logger.Error("❌ GetSheet: Error writing HTML response: %v", err)
		}

	case "pdf":
		pdfData, err := c.sheets.GeneratePDF(r.Context(), r.URL.RawQuery)
		if err != nil {
			logger.Error("❌ GetSheet: Error generating PDF: %v", err)
			http.Error(w, "Failed to generate PDF", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="deadbears_sheet.pdf"`)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(pdfData); err != nil {
			logger.Error("❌ GetSheet: Error writing PDF response: %v", err)
		}
	}
}

// HandleItem routes /api/gallery/{id}, /api/gallery/{id}/image and /api/gallery/{id}/refresh (admin)
func (c *GalleryController) HandleItem(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/gallery/"), "/")
	idStr, action, _ := strings.Cut(path, "/")

	id, err := strconv.Atoi(idStr)
	if err != nil || id < 0 {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}

	switch action {
	case "":
		c.getItem(w, r, id)
	case "image":
		c.getImage(w, r, id)
	case "refresh":
		c.refreshItem(w, r, id)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (c *GalleryController) getItem(w http.ResponseWriter, r *http.Request, id int) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	item, err := c.catalog.Get(id)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			http.Error(w, fmt.Sprintf("Bear %d not found", id), http.StatusNotFound)
			return
		}
		logger.Error("❌ getItem: %v", err)
		http.Error(w, "Failed to fetch item", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (c *GalleryController) getImage(w http.ResponseWriter, r *http.Request, id int) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if id >= c.catalog.Supply() {
		http.Error(w, fmt.Sprintf("Bear %d not found", id), http.StatusNotFound)
		return
	}

	size := r.URL.Query().Get("size")
	if size == "" {
		size = "medium"
	}

	data, err := c.images.Get(r.Context(), id, size)
	switch {
	case errors.Is(err, service.ErrInvalidSize):
		http.Error(w, "Invalid size. Valid sizes: thumb, medium", http.StatusBadRequest)
		return
	case errors.Is(err, service.ErrNotMinted):
		http.Error(w, fmt.Sprintf("Bear %d not found", id), http.StatusNotFound)
		return
	case err != nil:
		logger.Error("❌ getImage: %v", err)
		http.Error(w, "Image unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Error("❌ getImage: Error writing response: %v", err)
	}
}

func (c *GalleryController) refreshItem(w http.ResponseWriter, r *http.Request, id int) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !requireAdmin(w, r, c.adminToken) {
		return
	}
	// Stored items are immutable; only ids the load omitted can be fetched again
	if _, err := c.catalog.Get(id); err == nil {
		http.Error(w, fmt.Sprintf("Bear %d is already loaded", id), http.StatusConflict)
		return
	}

	item, err := c.loader.Backfill(r.Context(), id, func(item models.NFT) error {
		_, err := c.catalog.Add(item)
		return err
	})
	switch {
	case errors.Is(err, service.ErrLoadInProgress):
		http.Error(w, "Collection is still loading, try again when it finishes", http.StatusConflict)
		return
	case errors.Is(err, repository.ErrDuplicateID):
		http.Error(w, fmt.Sprintf("Bear %d is already loaded", id), http.StatusConflict)
		return
	case errors.Is(err, service.ErrNotMinted):
		http.Error(w, fmt.Sprintf("Bear %d is not minted", id), http.StatusNotFound)
		return
	case err != nil:
		logger.Error("❌ refreshItem: %v", err)
		http.Error(w, "Failed to refresh item", http.StatusBadGateway)
		return
	}

	logger.Info("✓ Backfilled bear %d", id)
	writeJSON(w, http.StatusOK, item)
}

// writeJSON encodes v as the JSON response body
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("❌ Error encoding JSON response: %v", err)
	}
}
