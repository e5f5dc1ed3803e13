package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deadbears-gallery/app/controller"
)

type Controllers struct {
	Gallery  *controller.GalleryController
	Reward   *controller.RewardController
	Terminal *controller.TerminalController
	Download *controller.DownloadController
}

// pingHandler handles GET /ping
func pingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func SetupRoutes(mux *http.ServeMux, controllers *Controllers) {
	// Ping endpoint
	mux.HandleFunc("/ping", pingHandler)

	// Prometheus exposition
	mux.Handle("/metrics", promhttp.Handler())

	// Secret word check (GET lore, POST word)
	mux.HandleFunc("/api/check-word", controllers.Reward.CheckWord)

	// Reward ledger: GET /api/rewards/{code}, POST /api/rewards/{code}/redeem (admin token)
	mux.HandleFunc("/api/rewards/", controllers.Reward.HandleCode)

	// Ritual terminal
	mux.HandleFunc("/api/terminal", controllers.Terminal.Input)

	// Gallery routes
	mux.HandleFunc("/api/gallery", controllers.Gallery.GetGallery)
	mux.HandleFunc("/api/gallery/status", controllers.Gallery.GetStatus)
	mux.HandleFunc("/api/gallery/traits", controllers.Gallery.GetTraits)
	mux.HandleFunc("/api/gallery/sheet", controllers.Gallery.GetSheet)

	// Download, optimize and cache every loaded image (admin token)
	mux.HandleFunc("/api/gallery/images/warm", controllers.Download.WarmImages)

	// Single bear: /api/gallery/{id}, /api/gallery/{id}/image, /api/gallery/{id}/refresh (admin token)
	mux.HandleFunc("/api/gallery/", controllers.Gallery.HandleItem)
}
