package handlers

import (
	"net/http"
	"strconv"

	"github.com/lehigh-university-libraries/pagegen/internal/workflow"
)

// HandleUserImage serves the bytes of an uploaded reference image.
func (h *Handler) HandleUserImage(w http.ResponseWriter, r *http.Request) {
	n, ok := h.pathInt(w, r, "n")
	if !ok {
		return
	}

	var img *workflow.UserImage
	h.session.Do(func(c *workflow.Controller) error {
		images := c.UserImages()
		if n >= 0 && n < len(images) {
			img = &images[n]
		}
		return nil
	})
	if img == nil {
		h.writeError(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(img.Data); err != nil {
		h.writeError(w, "Unable to write image: "+err.Error(), http.StatusInternalServerError)
	}
}
