// -----------------------------------------------------------------------
// Fetch API - POST /fetch (enqueue) and GET /fetch/{id} (job snapshot)
// -----------------------------------------------------------------------

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/fetchgateway/internal/app"
	"github.com/ternarybob/fetchgateway/internal/models"
	"github.com/ternarybob/fetchgateway/internal/services/orchestrator"
)

var validate = validator.New()

// enqueueRequest is the wire shape of POST /fetch, per spec §7.
type enqueueRequest struct {
	URL            string `json:"url" validate:"required,url"`
	Kind           string `json:"kind" validate:"required,oneof=product store category"`
	EphemeralProxy string `json:"ephemeralProxy,omitempty" validate:"omitempty"`
}

// FetchHandler serves the job-queue portion of the external interface.
type FetchHandler struct {
	app *app.App
}

func NewFetchHandler(application *app.App) *FetchHandler {
	return &FetchHandler{app: application}
}

// EnqueueHandler handles POST /fetch: validates the request body,
// enqueues (or folds into a live duplicate), and returns the job
// snapshot with 202 Accepted.
func (h *FetchHandler) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.app.Enqueue(r.Context(), req.URL, models.JobKind(req.Kind), req.EphemeralProxy)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNotReady) {
			writeError(w, http.StatusServiceUnavailable, "gateway still loading persisted state")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(job)
}

// GetJobHandler handles GET /fetch/{id}: returns the current job
// snapshot, including partial results for in-flight jobs.
func (h *FetchHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/fetch/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	job, ok := h.app.Orchestrator.GetJob(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
