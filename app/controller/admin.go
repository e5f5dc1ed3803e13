package controller

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"deadbears-gallery/logger"
)

// adminTokenHeader is accepted alongside "Authorization: Bearer <token>"
const adminTokenHeader = "X-Admin-Token"

// requireAdmin reports whether r carries the admin token and answers the request itself when it does not.
// An empty token disables the endpoint.
func requireAdmin(w http.ResponseWriter, r *http.Request, token string) bool {
	if token == "" {
		http.Error(w, "Admin endpoints are disabled", http.StatusForbidden)
		return false
	}

	got := r.Header.Get(adminTokenHeader)
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		got = bearer
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
		logger.Warn("⚠️  Rejected admin request %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}
