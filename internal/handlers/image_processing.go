package handlers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/lehigh-university-libraries/pagegen/internal/workflow"
)

// Reference images above compressTarget are re-encoded as JPEG, stepping
// quality down from qualityStart to qualityMin and then shrinking the
// longest side towards minDimension until they fit.
const (
	compressTarget = 200 * 1024
	maxDimension   = 2048
	minDimension   = 512
	qualityStart   = 85
	qualityMin     = 20
	qualityStep    = 5
)

var errTooLarge = fmt.Errorf("file too large (max %dMB)", maxUploadSize/1024/1024)

// processImage checks that data is a decodable image and builds the user
// image for it.
func processImage(data []byte, filename string) (workflow.UserImage, error) {
	if len(data) > maxUploadSize {
		return workflow.UserImage{}, errTooLarge
	}
	if _, _, err := imageDimensions(data); err != nil {
		return workflow.UserImage{}, fmt.Errorf("not a supported image: %w", err)
	}

	data = compressImage(data)
	width, height, err := imageDimensions(data)
	if err != nil {
		return workflow.UserImage{}, fmt.Errorf("not a supported image: %w", err)
	}
	img := workflow.UserImage{
		Name:        filename,
		ContentType: http.DetectContentType(data),
		Width:       width,
		Height:      height,
		Data:        data,
	}
	slog.Info("Reference image accepted", "name", filename, "type", img.ContentType, "width", width, "height", height, "bytes", len(data))
	return img, nil
}

// compressImage returns data unchanged when it already fits compressTarget
// or when re-encoding does not make it smaller.
func compressImage(data []byte) []byte {
	if len(data) <= compressTarget {
		return data
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Warn("Unable to decode image for compression", "err", err)
		return data
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), maxDimension)
	img := flatten(src, w, h)

	var out []byte
	quality := qualityStart
	for ; quality >= qualityMin; quality -= qualityStep {
		out, err = encodeJPEG(img, quality)
		if err != nil {
			slog.Warn("Unable to encode image", "err", err)
			return data
		}
		if len(out) <= compressTarget {
			break
		}
	}

	for len(out) > compressTarget && max(w, h) > minDimension {
		w, h = max(w*9/10, 1), max(h*9/10, 1)
		out, err = encodeJPEG(flatten(img, w, h), qualityMin)
		if err != nil {
			slog.Warn("Unable to encode image", "err", err)
			return data
		}
	}

	if len(out) >= len(data) {
		return data
	}
	slog.Debug("Compressed reference image", "from", len(data), "to", len(out), "width", w, "height", h)
	return out
}

// fitWithin scales w x h down so that neither side exceeds limit.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(h*limit/w, 1)
	}
	return max(w*limit/h, 1), limit
}

// flatten draws src onto an opaque white w x h canvas using nearest
// neighbour sampling.
func flatten(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
		return dst
	}
	scaled := image.NewRGBA(dst.Bounds())
	for y := 0; y < h; y++ {
		sy := b.Min.Y + y*b.Dy()/h
		for x := 0; x < w; x++ {
			scaled.Set(x, y, src.At(b.Min.X+x*b.Dx()/w, sy))
		}
	}
	draw.Draw(dst, dst.Bounds(), scaled, image.Point{}, draw.Over)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *Handler) downloadImageFromURL(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image URL: %w", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, "", err
	}

	filename := path.Base(resp.Request.URL.Path)
	if filename == "" || filename == "/" || filename == "." {
		filename = "image"
	}
	return data, filename, nil
}

// readLimited reads at most maxUploadSize bytes and fails when r holds more.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > maxUploadSize {
		return nil, errTooLarge
	}
	return data, nil
}

func imageDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
