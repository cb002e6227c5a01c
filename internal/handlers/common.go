package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lehigh-university-libraries/pagegen/internal/session"
)

// maxUploadSize caps reference image uploads.
const maxUploadSize = 10 * 1024 * 1024

type Handler struct {
	session    *session.Service
	httpClient *http.Client
}

func New(s *session.Service) *Handler {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}
	return &Handler{session: s, httpClient: client}
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/state", h.HandleState)
	mux.HandleFunc("PUT /api/topic", h.HandleTopic)
	mux.HandleFunc("PUT /api/outline", h.HandleOutline)
	mux.HandleFunc("POST /api/pages", h.HandleAddPage)
	mux.HandleFunc("PUT /api/pages/{index}", h.HandleUpdatePage)
	mux.HandleFunc("DELETE /api/pages/{index}", h.HandleDeletePage)
	mux.HandleFunc("POST /api/pages/move", h.HandleMovePage)
	mux.HandleFunc("POST /api/reset", h.HandleReset)

	mux.HandleFunc("POST /api/generation", h.HandleBeginGeneration)
	mux.HandleFunc("POST /api/generation/report", h.HandleReport)
	mux.HandleFunc("POST /api/generation/{index}/retry", h.HandleRetry)
	mux.HandleFunc("POST /api/generation/{index}/replace", h.HandleReplace)
	mux.HandleFunc("POST /api/generation/finish", h.HandleFinish)
	mux.HandleFunc("GET /api/generation/failed", h.HandleFailed)

	mux.HandleFunc("POST /api/uploads", h.HandleUpload)
	mux.HandleFunc("GET /api/uploads", h.HandleListUploads)
	mux.HandleFunc("GET /api/uploads/{n}", h.HandleUserImage)
	mux.HandleFunc("DELETE /api/uploads", h.HandleClearUploads)

	mux.HandleFunc("GET /api/history", h.HandleHistoryList)
	mux.HandleFunc("GET /api/history/search", h.HandleHistorySearch)
	mux.HandleFunc("GET /api/history/stats", h.HandleHistoryStats)
	mux.HandleFunc("GET /api/history/{id}", h.HandleHistoryDetail)
	mux.HandleFunc("DELETE /api/history/{id}", h.HandleHistoryDelete)

	mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})

	return mux
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug("Rejected request", "status", code, "reason", message)
	}
	http.Error(w, message, code)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		h.writeError(w, "Invalid "+name+": "+r.PathValue(name), http.StatusBadRequest)
		return 0, false
	}
	return v, true
}
