package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/pagegen/internal/workflow"
)

type uploadInfo struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int    `json:"size"`
}

// HandleUpload attaches a reference image, either from a multipart file or
// from a JSON body naming an image URL.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		h.handleURLUpload(w, r)
		return
	}
	h.handleFileUpload(w, r)
}

func (h *Handler) handleURLUpload(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ImageURL string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if request.ImageURL == "" {
		h.writeError(w, "image_url is required", http.StatusBadRequest)
		return
	}

	data, filename, err := h.downloadImageFromURL(r.Context(), request.ImageURL)
	if err != nil {
		h.writeError(w, "Failed to process image URL: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.attach(w, data, filename)
}

func (h *Handler) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1024*1024)
	file, header, err := r.FormFile("files")
	if err != nil {
		file, header, err = r.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				h.writeError(w, errTooLarge.Error(), http.StatusRequestEntityTooLarge)
				return
			}
			h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	defer file.Close()

	data, err := readLimited(file)
	if errors.Is(err, errTooLarge) {
		h.writeError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.attach(w, data, header.Filename)
}

func (h *Handler) attach(w http.ResponseWriter, data []byte, filename string) {
	img, err := processImage(data, filename)
	if errors.Is(err, errTooLarge) {
		h.writeError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var index int
	h.session.Do(func(c *workflow.Controller) error {
		index = len(c.UserImages())
		c.AttachUserImage(img)
		return nil
	})

	h.writeJSON(w, map[string]any{
		"message": "Successfully uploaded 1 image",
		"image":   describeUpload(index, img),
	})
}

func (h *Handler) HandleListUploads(w http.ResponseWriter, r *http.Request) {
	uploads := []uploadInfo{}
	h.session.Do(func(c *workflow.Controller) error {
		for i, img := range c.UserImages() {
			uploads = append(uploads, describeUpload(i, img))
		}
		return nil
	})
	h.writeJSON(w, uploads)
}

func (h *Handler) HandleClearUploads(w http.ResponseWriter, r *http.Request) {
	h.session.Do(func(c *workflow.Controller) error {
		c.ClearUserImages()
		return nil
	})
	w.WriteHeader(http.StatusNoContent)
}

func describeUpload(i int, img workflow.UserImage) uploadInfo {
	return uploadInfo{
		Index:       i,
		Name:        img.Name,
		ContentType: img.ContentType,
		Width:       img.Width,
		Height:      img.Height,
		Size:        len(img.Data),
	}
}
