package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/pagegen/internal/config"
	"github.com/lehigh-university-libraries/pagegen/internal/history"
	"github.com/lehigh-university-libraries/pagegen/internal/models"
	"github.com/lehigh-university-libraries/pagegen/internal/outline"
	"github.com/lehigh-university-libraries/pagegen/internal/progress"
	"github.com/lehigh-university-libraries/pagegen/internal/session"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	s, err := session.Open(context.Background(), config.Config{}, true)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s).Routes()
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHealthcheck(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/healthcheck", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestOutlineEditing(t *testing.T) {
	h := newTestServer(t)

	st := decodeState(t, do(t, h, http.MethodGet, "/api/state", nil))
	require.Equal(t, models.StageInput, st.Stage)

	decodeState(t, do(t, h, http.MethodPut, "/api/topic", map[string]string{"topic": "picnic"}))
	st = decodeState(t, do(t, h, http.MethodPut, "/api/outline", map[string]string{"raw": "Cover<page>Body"}))
	require.Equal(t, models.StageOutline, st.Stage)
	require.Len(t, st.Outline.Pages, 2)
	require.NotNil(t, st.RecordID)

	after := 0
	st = decodeState(t, do(t, h, http.MethodPost, "/api/pages", map[string]any{"content": "X", "after": after}))
	require.Equal(t, "Cover\n\n<page>\n\nX\n\n<page>\n\nBody", st.Outline.Raw)

	st = decodeState(t, do(t, h, http.MethodPost, "/api/pages", map[string]any{"type": "summary", "content": "End"}))
	require.Len(t, st.Outline.Pages, 4)
	require.Equal(t, outline.PageSummary, st.Outline.Pages[3].Type)

	st = decodeState(t, do(t, h, http.MethodPost, "/api/pages/move", map[string]int{"from": 3, "to": 0}))
	require.Equal(t, "End", st.Outline.Pages[0].Content)

	st = decodeState(t, do(t, h, http.MethodPut, "/api/pages/1", map[string]string{"content": "Cover v2"}))
	require.Equal(t, "Cover v2", st.Outline.Pages[1].Content)

	st = decodeState(t, do(t, h, http.MethodDelete, "/api/pages/0", nil))
	require.Len(t, st.Outline.Pages, 3)
	require.Equal(t, 0, st.Outline.Pages[0].Index)

	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/pages/9", nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodPut, "/api/pages/9", map[string]string{"content": "x"}).Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/pages/move", map[string]int{"from": 7, "to": 0}).Code)
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/api/pages/abc", map[string]string{"content": "x"}).Code)
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/pages", map[string]string{"type": "poster"}).Code)

	req := httptest.NewRequest(http.MethodPut, "/api/topic", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerationFlow(t *testing.T) {
	h := newTestServer(t)
	decodeState(t, do(t, h, http.MethodPut, "/api/outline", map[string]string{"raw": "A<page>B<page>C"}))

	rec := do(t, h, http.MethodPost, "/api/generation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var begun struct {
		Round progress.Round `json:"round"`
		Pages []outline.Page `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &begun))
	require.Len(t, begun.Pages, 3)

	report := func(r progress.Report) bool {
		rec := do(t, h, http.MethodPost, "/api/generation/report", r)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			Applied bool `json:"applied"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.Applied
	}

	require.True(t, report(progress.Report{Round: begun.Round, Index: 0, Status: progress.RecordDone, URL: "/a.png"}))
	require.True(t, report(progress.Report{Round: begun.Round, Index: 1, Status: progress.RecordError, Error: "boom"}))
	require.False(t, report(progress.Report{Round: begun.Round + 5, Index: 2, Status: progress.RecordDone}))
	require.False(t, report(progress.Report{Round: begun.Round, Index: 42, Status: progress.RecordDone}))
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/generation/report", map[string]any{"index": 0, "status": "lost"}).Code)

	rec = do(t, h, http.MethodGet, "/api/generation/failed", nil)
	var failed struct {
		Records []progress.Record `json:"records"`
		Pages   []outline.Page    `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	require.Len(t, failed.Records, 1)
	require.Equal(t, "B", failed.Pages[0].Content)

	rec = do(t, h, http.MethodPost, "/api/generation/1/retry", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"content":"B"`)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/generation/9/retry", nil).Code)

	st := decodeState(t, do(t, h, http.MethodPost, "/api/generation/1/replace", map[string]string{"url": "/b.png"}))
	require.Equal(t, progress.RecordDone, st.Images[1].Status)
	require.True(t, strings.HasPrefix(st.Images[1].URL, "/b.png?t="))
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/generation/1/replace", map[string]string{}).Code)

	require.True(t, report(progress.Report{Round: begun.Round, Index: 2, Status: progress.RecordDone, URL: "/c.png"}))

	st = decodeState(t, do(t, h, http.MethodPost, "/api/generation/finish", map[string]string{"taskId": "task_1"}))
	require.Equal(t, models.StageResult, st.Stage)
	require.Equal(t, "task_1", *st.TaskID)

	rec = do(t, h, http.MethodGet, "/api/history/"+*st.RecordID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var record history.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	require.Equal(t, history.StatusCompleted, record.Status)
	require.Len(t, record.Generated, 3)

	st = decodeState(t, do(t, h, http.MethodPost, "/api/reset", nil))
	require.Equal(t, models.StageInput, st.Stage)
	require.Empty(t, st.Images)
}

func TestHistoryEndpoints(t *testing.T) {
	h := newTestServer(t)
	decodeState(t, do(t, h, http.MethodPut, "/api/topic", map[string]string{"topic": "Garden Party"}))
	st := decodeState(t, do(t, h, http.MethodPut, "/api/outline", map[string]string{"raw": "A<page>B"}))
	id := *st.RecordID

	rec := do(t, h, http.MethodGet, "/api/history?page=1&page_size=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page history.ListPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
	require.Equal(t, id, page.Records[0].ID)

	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/history?status=lost", nil).Code)

	rec = do(t, h, http.MethodGet, "/api/history/search?q=garden", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), id)
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/history/search", nil).Code)

	rec = do(t, h, http.MethodGet, "/api/history/stats", nil)
	require.JSONEq(t, `{"total":1,"by_status":{"draft":1}}`, rec.Body.String())

	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/history/"+id, nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/history/"+id, nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/history/"+id, nil).Code)
}

func TestUploads(t *testing.T) {
	h := newTestServer(t)
	data := pngBytes(t, 4, 3)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "ref.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/uploads", nil)
	var uploads []uploadInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploads))
	require.Equal(t, []uploadInfo{{Index: 0, Name: "ref.png", ContentType: "image/png", Width: 4, Height: 3, Size: len(data)}}, uploads)

	rec = do(t, h, http.MethodGet, "/api/uploads/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, data, rec.Body.Bytes())
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/uploads/3", nil).Code)

	st := decodeState(t, do(t, h, http.MethodGet, "/api/state", nil))
	require.Equal(t, 1, st.UserImages)

	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/uploads", nil).Code)
	st = decodeState(t, do(t, h, http.MethodGet, "/api/state", nil))
	require.Equal(t, 0, st.UserImages)
}

func TestUploadRejectsNonImages(t *testing.T) {
	h := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadFromURL(t *testing.T) {
	data := pngBytes(t, 2, 2)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/sample.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer remote.Close()

	h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/api/uploads", map[string]string{"image_url": remote.URL + "/images/sample.png"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"name":"sample.png"`)

	rec = do(t, h, http.MethodPost, "/api/uploads", map[string]string{"image_url": remote.URL + "/missing.png"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/uploads", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadLimited(t *testing.T) {
	_, err := readLimited(bytes.NewReader(make([]byte, maxUploadSize+1)))
	require.ErrorIs(t, err, errTooLarge)

	data, err := readLimited(bytes.NewReader(make([]byte, 10)))
	require.NoError(t, err)
	require.Len(t, data, 10)
}
