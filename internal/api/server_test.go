package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/checkmate/internal/config"
	"github.com/dgallion1/checkmate/internal/evaluate"
	"github.com/dgallion1/checkmate/internal/metrics"
	"github.com/dgallion1/checkmate/internal/session"
	"github.com/dgallion1/checkmate/internal/testutil"
)

func newTestServer(t *testing.T, cfg config.Config) (*Server, *session.Store) {
	t.Helper()
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 1 << 20
	}
	cfg.OpenAIModel = "gpt-4o-mini"

	svc := evaluate.NewService(evaluate.MockClient{}, evaluate.Config{})
	store := session.NewStore(time.Hour)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(svc, store, metrics.New(), log, cfg), store
}

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(srv http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{})
	rec := do(srv, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["mocked"])
}

func TestNormalize_Formats(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{})

	tests := []struct {
		name     string
		filename string
		content  []byte
		fields   map[string]string
		code     int
		text     string
		format   string
	}{
		{"text", "essay.txt", []byte("Plain draft"), nil, http.StatusOK, "Plain draft", "text"},
		{"pdf", "essay.pdf", testutil.PDF("First page", "Second page"), nil, http.StatusOK, "First page\nSecond page", "pdf"},
		{"docx", "essay.docx", testutil.DOCX(t, "A", "B"), nil, http.StatusOK, "A\nB", "docx"},
		{"declared format", "upload.bin", []byte("Declared text"), map[string]string{"format": "txt"}, http.StatusOK, "Declared text", "text"},
		{"windows path", `C:\Users\me\essay.txt`, []byte("x"), nil, http.StatusOK, "x", "text"},
		{"unsupported", "notes.md", []byte("# notes"), nil, http.StatusUnsupportedMediaType, "", ""},
		{"unknown declared format", "a.txt", []byte("x"), map[string]string{"format": "rtf"}, http.StatusUnsupportedMediaType, "", ""},
		{"corrupt", "broken.pdf", []byte("not a pdf"), nil, http.StatusUnprocessableEntity, "", ""},
		{"empty", "empty.txt", []byte{}, nil, http.StatusUnprocessableEntity, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.fields, tt.filename, tt.content)
			rec := do(srv, http.MethodPost, "/api/normalize", body, ct)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())

			resp := decodeJSON(t, rec)
			if tt.code != http.StatusOK {
				assert.NotEmpty(t, resp["error"])
				return
			}
			assert.Equal(t, tt.text, resp["text"])
			assert.Equal(t, tt.format, resp["format"])
			assert.EqualValues(t, len([]rune(tt.text)), resp["chars"])
		})
	}
}

func TestNormalize_FilenameIsSanitised(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{})
	body, ct := multipartBody(t, nil, "../../etc/essay.txt", []byte("x"))
	rec := do(srv, http.MethodPost, "/api/normalize", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "essay.txt", decodeJSON(t, rec)["filename"])
}

func TestNormalize_TooLarge(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{MaxUploadBytes: 100})
	body, ct := multipartBody(t, nil, "big.txt", bytes.Repeat([]byte("a"), 500))
	rec := do(srv, http.MethodPost, "/api/normalize", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestNormalize_MissingFile(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{})
	body, ct := multipartBody(t, map[string]string{"format": "pdf"}, "", nil)
	rec := do(srv, http.MethodPost, "/api/normalize", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIEvaluate(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{})
	payload := `{"conditions": ["Mention Wegener", " ", "Include evidence"], "text": "Wegener argued continents move.", "strictness": 3}`

	rec := do(srv, http.MethodPost, "/api/evaluate", strings.NewReader(payload), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp evaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Evaluation)
	require.Len(t, resp.Evaluation.Conditions, 2)
	assert.Equal(t, "Include evidence", resp.Evaluation.Conditions[1].ConditionText)
	assert.Equal(t, evaluate.StatusPartial, resp.Evaluation.Conditions[0].Status)
	assert.True(t, resp.Mocked)
	assert.Empty(t, resp.ParseError)
}

func TestAPIEvaluate_Validation(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{})
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"missing text", `{"conditions": ["a"]}`, "text is required"},
		{"no conditions", `{"conditions": [], "text": "t"}`, "conditions must satisfy min=1"},
		{"strictness out of range", `{"conditions": ["a"], "text": "t", "strictness": 5}`, "strictness"},
		{"unknown field", `{"conditions": ["a"], "text": "t", "level": 1}`, "invalid JSON"},
		{"not json", `conditions=a`, "invalid JSON"},
		{"blank conditions", `{"conditions": ["  "], "text": "t"}`, "no conditions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, http.MethodPost, "/api/evaluate", strings.NewReader(tt.payload), "application/json")
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decodeJSON(t, rec)["error"], tt.want)
		})
	}
}

func TestAPICorrect(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{})
	payload := `{"conditions": ["Mention Wegener"], "text": "Continents move."}`
	rec := do(srv, http.MethodPost, "/api/correct", strings.NewReader(payload), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Continents move.", decodeJSON(t, rec)["text"])
}

func TestLLMStats(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{})
	payload := `{"conditions": ["a"], "text": "t"}`
	require.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/api/evaluate", strings.NewReader(payload), "application/json").Code)

	rec := do(srv, http.MethodGet, "/api/stats/llm", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["all"].(map[string]any)["count"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{})
	do(srv, http.MethodGet, "/health", nil, "")

	rec := do(srv, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `checkmate_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
