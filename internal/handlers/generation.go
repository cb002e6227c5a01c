package handlers

import (
	"net/http"

	"github.com/lehigh-university-libraries/pagegen/internal/outline"
	"github.com/lehigh-university-libraries/pagegen/internal/progress"
	"github.com/lehigh-university-libraries/pagegen/internal/workflow"
)

func (h *Handler) HandleBeginGeneration(w http.ResponseWriter, r *http.Request) {
	round, pages := h.session.BeginGeneration(r.Context())
	h.writeJSON(w, map[string]any{
		"round": round,
		"pages": pages,
	})
}

// HandleReport is the callback for the generation service. Reports for a
// stale round or an unknown page are acknowledged but not applied.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	var report progress.Report
	if !h.decode(w, r, &report) {
		return
	}
	if !report.Status.Valid() {
		h.writeError(w, "Invalid status: "+string(report.Status), http.StatusBadRequest)
		return
	}

	var applied bool
	var p progress.Progress
	h.session.Do(func(c *workflow.Controller) error {
		applied = c.ReportStatus(report)
		p = c.Snapshot().Progress
		return nil
	})
	h.writeJSON(w, map[string]any{
		"applied":  applied,
		"progress": p,
	})
}

// HandleRetry marks a page as retrying and returns the page so the caller
// can resubmit it.
func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	index, ok := h.pathInt(w, r, "index")
	if !ok {
		return
	}

	var (
		marked bool
		page   outline.Page
		round  progress.Round
	)
	h.session.Do(func(c *workflow.Controller) error {
		marked = c.MarkRetrying(index)
		for _, p := range c.Pages() {
			if p.Index == index {
				page = p
			}
		}
		round = c.Round()
		return nil
	})
	if !marked {
		h.writeError(w, "No generation record for page", http.StatusNotFound)
		return
	}
	h.writeJSON(w, map[string]any{
		"round": round,
		"page":  page,
	})
}

func (h *Handler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	index, ok := h.pathInt(w, r, "index")
	if !ok {
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		h.writeError(w, "url is required", http.StatusBadRequest)
		return
	}

	var replaced bool
	h.session.Do(func(c *workflow.Controller) error {
		replaced = c.ReplaceImage(index, req.URL)
		return nil
	})
	if !replaced {
		h.writeError(w, "No generation record for page", http.StatusNotFound)
		return
	}
	h.respondState(w)
}

func (h *Handler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID string `json:"taskId"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	h.session.Finish(r.Context(), req.TaskID)
	h.respondState(w)
}

func (h *Handler) HandleFailed(w http.ResponseWriter, r *http.Request) {
	records := []progress.Record{}
	pages := []outline.Page{}
	h.session.Do(func(c *workflow.Controller) error {
		records = append(records, c.FailedRecords()...)
		pages = append(pages, c.FailedPages()...)
		return nil
	})
	h.writeJSON(w, map[string]any{
		"records": records,
		"pages":   pages,
	})
}
