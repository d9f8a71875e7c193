package server

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/fetchgateway/internal/app"
	"github.com/ternarybob/fetchgateway/internal/common"
)

// APIHandler serves the gateway's small set of system endpoints.
type APIHandler struct {
	app *app.App
}

func NewAPIHandler(application *app.App) *APIHandler {
	return &APIHandler{app: application}
}

// VersionHandler returns version information.
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
	})
}

// HealthHandler always reports status "ok" together with the number of
// active browser tabs. It does not check orchestrator readiness and does
// not require a live browser slot.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     "ok",
		"activeTabs": len(h.app.Pool.ActiveTabs()),
	})
}

// NotFoundHandler handles unmatched routes with a JSON response.
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"service": "fetchgateway"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
