package handlers

import (
	"net/http"
	"strconv"

	"github.com/lehigh-university-libraries/pagegen/internal/history"
)

func (h *Handler) historyStore(w http.ResponseWriter) (*history.Store, bool) {
	store := h.session.History()
	if store == nil {
		h.writeError(w, "History is not enabled", http.StatusNotFound)
		return nil, false
	}
	return store, true
}

func (h *Handler) HandleHistoryList(w http.ResponseWriter, r *http.Request) {
	store, ok := h.historyStore(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	status := history.Status(q.Get("status"))
	if status != "" && !status.Valid() {
		h.writeError(w, "Invalid status: "+string(status), http.StatusBadRequest)
		return
	}

	result, err := store.List(r.Context(), page, pageSize, status)
	if err != nil {
		h.writeError(w, "Unable to list history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, result)
}

func (h *Handler) HandleHistorySearch(w http.ResponseWriter, r *http.Request) {
	store, ok := h.historyStore(w)
	if !ok {
		return
	}
	keyword := r.URL.Query().Get("q")
	if keyword == "" {
		h.writeError(w, "q is required", http.StatusBadRequest)
		return
	}
	records, err := store.Search(r.Context(), keyword)
	if err != nil {
		h.writeError(w, "Unable to search history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, records)
}

func (h *Handler) HandleHistoryStats(w http.ResponseWriter, r *http.Request) {
	store, ok := h.historyStore(w)
	if !ok {
		return
	}
	stats, err := store.Statistics(r.Context())
	if err != nil {
		h.writeError(w, "Unable to read history statistics: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, stats)
}

func (h *Handler) HandleHistoryDetail(w http.ResponseWriter, r *http.Request) {
	store, ok := h.historyStore(w)
	if !ok {
		return
	}
	rec, err := store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, "Unable to read history record: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		h.writeError(w, "History record not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, rec)
}

func (h *Handler) HandleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	store, ok := h.historyStore(w)
	if !ok {
		return
	}
	deleted, err := store.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, "Unable to delete history record: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !deleted {
		h.writeError(w, "History record not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
