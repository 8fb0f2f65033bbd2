package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"composition-corrector/classifier"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHOCR = `<html><body>
  <div class='ocr_page' id='page_1' title='bbox 0 0 600 300; ppageno 0'>
   <span class='ocr_line' id='line_1_1' title="bbox 20 30 300 50">
    <span class='ocrx_word' id='word_1_1' title='bbox 20 30 60 50; x_wconf 96'>My</span>
    <span class='ocrx_word' id='word_1_2' title='bbox 70 30 140 50; x_wconf 88'>sumer</span>
    <span class='ocrx_word' id='word_1_3' title='bbox 150 30 230 50; x_wconf 91'>familly</span>
   </span>
  </div>
</body></html>`

// setupTestRouter creates the service router around a fresh test app.
func setupTestRouter(t *testing.T) (*App, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app := newTestApp(t)
	return app, setupRouter(app)
}

// multipartBody builds a form with the given files and plain fields.
func multipartBody(t *testing.T, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := w.CreateFormFile(name, name+".bin")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for name, value := range fields {
		require.NoError(t, w.WriteField(name, value))
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func postForm(t *testing.T, router *gin.Engine, path string, files map[string][]byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, files, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	_, router := setupTestRouter(t)
	rec := get(router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestClassifyHandler(t *testing.T) {
	_, router := setupTestRouter(t)

	payload := `{"words": [
	  {"text": "sumer", "confidence": 90, "boundingBox": {"left": 10, "top": 10, "width": 50, "height": 20}},
	  {"text": "gud", "confidence": 90, "boundingBox": {"left": 70, "top": 10, "width": 30, "height": 20}},
	  {"text": "beach", "confidence": 90, "boundingBox": {"left": 110, "top": 10, "width": 50, "height": 20}},
	  {"text": "broken", "confidence": 400, "boundingBox": {"left": 0, "top": 0, "width": 5, "height": 5}}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/classify", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Words, 3)
	assert.Equal(t, classifier.KnownError, resp.Words[0].Category)
	assert.Equal(t, "summer", resp.Words[0].Suggestion)
	assert.Equal(t, classifier.PossibleError, resp.Words[1].Category)
	assert.Equal(t, classifier.TierMedium, resp.Words[1].Tier)
	assert.Equal(t, classifier.Clean, resp.Words[2].Category)

	require.Len(t, resp.Invalid, 1)
	assert.Equal(t, 3, resp.Invalid[0].Index)
	assert.Equal(t, "broken", resp.Invalid[0].Text)
}

func TestClassifyHandler_BadPayload(t *testing.T) {
	_, router := setupTestRouter(t)

	for _, payload := range []string{`not json`, `{"items": []}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/classify", bytes.NewBufferString(payload))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
	}
}

func TestAnnotateHandler(t *testing.T) {
	app, router := setupTestRouter(t)

	rec := postForm(t, router, "/api/annotate",
		map[string][]byte{"image": pagePNG(t), "words": sampleWordsJSON(t)},
		map[string]string{"title": "Summer essay"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "3", rec.Header().Get("X-Flagged-Words"))
	assert.Equal(t, "0", rec.Header().Get("X-Skipped-Words"))
	assert.Equal(t, "0", rec.Header().Get("X-Layout-Overflow"))
	assert.Equal(t, "1", rec.Header().Get("X-Run-ID"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 600, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())

	run, err := GetRun(app.Database, 1)
	require.NoError(t, err)
	assert.Equal(t, "Summer essay", run.Title)
	assert.Equal(t, "image.bin", run.Source)
	assert.Len(t, run.FlaggedWords, 3)
}

func TestAnnotateHandler_HOCR(t *testing.T) {
	_, router := setupTestRouter(t)

	rec := postForm(t, router, "/api/annotate",
		map[string][]byte{"image": pagePNG(t), "hocr": []byte(testHOCR)}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2", rec.Header().Get("X-Flagged-Words"))
}

func TestAnnotateHandler_Feedback(t *testing.T) {
	_, router := setupTestRouter(t)

	rec := postForm(t, router, "/api/annotate",
		map[string][]byte{"image": pagePNG(t), "words": sampleWordsJSON(t)},
		map[string]string{"feedback": `[{"word": "went", "category": "grammar_error", "comment": "tense"}]`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = postForm(t, router, "/api/annotate",
		map[string][]byte{"image": pagePNG(t), "words": sampleWordsJSON(t)},
		map[string]string{"feedback": `{not json`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnnotateHandler_Errors(t *testing.T) {
	_, router := setupTestRouter(t)

	tests := []struct {
		name  string
		files map[string][]byte
	}{
		{"missing image", map[string][]byte{"words": sampleWordsJSON(t)}},
		{"not an image", map[string][]byte{"image": []byte("plain text, not a picture"), "words": sampleWordsJSON(t)}},
		{"no words and no ocr", map[string][]byte{"image": pagePNG(t)}},
		{"bad words envelope", map[string][]byte{"image": pagePNG(t), "words": []byte(`{"items": []}`)}},
		{"hocr without page", map[string][]byte{"image": pagePNG(t), "hocr": []byte(`<html><body><p>hi</p></body></html>`)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postForm(t, router, "/api/annotate", tc.files, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestRunHandlers(t *testing.T) {
	_, router := setupTestRouter(t)

	rec := postForm(t, router, "/api/annotate",
		map[string][]byte{"image": pagePNG(t), "words": sampleWordsJSON(t)},
		map[string]string{"title": "Summer essay"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(router, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []AnnotationRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].KnownErrors)
	assert.Equal(t, 1, runs[0].PossibleErrors)

	rec = get(router, "/api/runs/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var run AnnotationRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.Len(t, run.FlaggedWords, 3)
	assert.Equal(t, "sumer", run.FlaggedWords[0].Word)

	rec = get(router, "/api/runs/1/report")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "# Summer essay")
	assert.Contains(t, rec.Body.String(), "summer")

	rec = get(router, "/api/runs/1/report?format=html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<table>")

	rec = get(router, "/api/runs/1/report?format=xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "run-1.xlsx")
	assert.NotZero(t, rec.Body.Len())

	assert.Equal(t, http.StatusBadRequest, get(router, "/api/runs/1/report?format=pdf").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/api/runs/abc").Code)
	assert.Equal(t, http.StatusNotFound, get(router, "/api/runs/99").Code)
}

func TestSettingsHandlers(t *testing.T) {
	app, router := setupTestRouter(t)

	rec := get(router, "/api/settings")
	require.Equal(t, http.StatusOK, rec.Code)
	var got Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, classifier.DefaultThreshold, got.SimilarityThreshold)

	req := httptest.NewRequest(http.MethodPost, "/api/settings",
		bytes.NewBufferString(`{"similarity_threshold": 0.9, "styles": {"possible_error": {"color": "#0000ff"}}}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, 0.9, app.Pipeline().Classifier().Threshold())
	assert.Equal(t, classifier.DefaultMinTokenLength, currentSettings().MinTokenLength, "unspecified fields kept")

	data, err := os.ReadFile(filepath.Join(configDir, settingsFile))
	require.NoError(t, err)
	var saved Settings
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, 0.9, saved.SimilarityThreshold)
	assert.Equal(t, "#0000ff", saved.Styles["possible_error"].Color)
}

func TestSettingsHandlers_Invalid(t *testing.T) {
	app, router := setupTestRouter(t)

	for _, payload := range []string{`{"similarity_threshold": 1.5}`, `{"styles": {"x": {"shape": "star"}}}`, `nope`} {
		req := httptest.NewRequest(http.MethodPost, "/api/settings", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
	}
	assert.Equal(t, classifier.DefaultThreshold, app.Pipeline().Classifier().Threshold())
}

func TestOCRStatusHandler(t *testing.T) {
	_, router := setupTestRouter(t)
	rec := get(router, "/api/ocr")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"enabled":false`)
}
