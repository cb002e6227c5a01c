package handlers

import (
	"net/http"

	"github.com/lehigh-university-libraries/pagegen/internal/models"
	"github.com/lehigh-university-libraries/pagegen/internal/outline"
	"github.com/lehigh-university-libraries/pagegen/internal/progress"
	"github.com/lehigh-university-libraries/pagegen/internal/workflow"
)

type stateResponse struct {
	models.Snapshot
	Round      progress.Round `json:"round"`
	UserImages int            `json:"userImages"`
}

func currentState(c *workflow.Controller) stateResponse {
	return stateResponse{
		Snapshot:   c.Snapshot(),
		Round:      c.Round(),
		UserImages: len(c.UserImages()),
	}
}

func (h *Handler) respondState(w http.ResponseWriter) {
	var resp stateResponse
	h.session.Do(func(c *workflow.Controller) error {
		resp = currentState(c)
		return nil
	})
	h.writeJSON(w, resp)
}

func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	h.respondState(w)
}

func (h *Handler) HandleTopic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic string `json:"topic"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	h.session.Do(func(c *workflow.Controller) error {
		c.SetTopic(req.Topic)
		return nil
	})
	h.respondState(w)
}

func (h *Handler) HandleOutline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Raw   string         `json:"raw"`
		Pages []outline.Page `json:"pages"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	for _, p := range req.Pages {
		if !p.Type.Valid() {
			h.writeError(w, "Invalid page type: "+string(p.Type), http.StatusBadRequest)
			return
		}
	}
	h.session.SetOutline(r.Context(), req.Raw, req.Pages)
	h.respondState(w)
}

func (h *Handler) HandleAddPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type    outline.PageType `json:"type"`
		Content string           `json:"content"`
		After   *int             `json:"after"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Type == "" {
		req.Type = outline.PageContent
	}
	if !req.Type.Valid() {
		h.writeError(w, "Invalid page type: "+string(req.Type), http.StatusBadRequest)
		return
	}
	h.session.Do(func(c *workflow.Controller) error {
		if req.After != nil {
			c.InsertPage(*req.After, req.Type, req.Content)
		} else {
			c.AddPage(req.Type, req.Content)
		}
		return nil
	})
	h.respondState(w)
}

func (h *Handler) HandleUpdatePage(w http.ResponseWriter, r *http.Request) {
	index, ok := h.pathInt(w, r, "index")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	var found bool
	h.session.Do(func(c *workflow.Controller) error {
		found = c.UpdatePage(index, req.Content)
		return nil
	})
	if !found {
		h.writeError(w, "Page not found", http.StatusNotFound)
		return
	}
	h.respondState(w)
}

func (h *Handler) HandleDeletePage(w http.ResponseWriter, r *http.Request) {
	index, ok := h.pathInt(w, r, "index")
	if !ok {
		return
	}
	var found bool
	h.session.Do(func(c *workflow.Controller) error {
		found = c.DeletePage(index)
		return nil
	})
	if !found {
		h.writeError(w, "Page not found", http.StatusNotFound)
		return
	}
	h.respondState(w)
}

func (h *Handler) HandleMovePage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	var moved bool
	h.session.Do(func(c *workflow.Controller) error {
		moved = c.MovePage(req.From, req.To)
		return nil
	})
	if !moved {
		h.writeError(w, "Page not found", http.StatusNotFound)
		return
	}
	h.respondState(w)
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.session.Do(func(c *workflow.Controller) error {
		c.Reset()
		return nil
	})
	h.respondState(w)
}
