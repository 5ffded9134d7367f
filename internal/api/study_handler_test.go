package api

import (
	"EdubotKing-Backend/internal/apperr"
	"EdubotKing-Backend/internal/model"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
)

type fakeStudy struct {
	summarize  func(ctx context.Context, text string) (string, error)
	quiz       func(ctx context.Context, summary string) ([]json.RawMessage, error)
	audio      func(ctx context.Context, summary string) (*model.AudioResult, error)
	lastText   string
	summarized int
}

func (f *fakeStudy) Summarize(ctx context.Context, text string) (string, error) {
	f.summarized++
	f.lastText = text
	return f.summarize(ctx, text)
}

func (f *fakeStudy) GenerateQuiz(ctx context.Context, summary string) ([]json.RawMessage, error) {
	f.lastText = summary
	return f.quiz(ctx, summary)
}

func (f *fakeStudy) SynthesizeAudio(ctx context.Context, summary string) (*model.AudioResult, error) {
	f.lastText = summary
	return f.audio(ctx, summary)
}

func newTestEngine(study StudyService, maxUpload int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewStudyHandler(study, maxUpload, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := gin.New()
	r.GET("/", h.RootHandler)
	r.GET("/health", h.HealthHandler)
	r.POST("/summary", h.SummaryHandler)
	r.POST("/quiz", h.QuizHandler)
	r.POST("/audio-summary", h.AudioHandler)
	return r
}

func uploadRequest(t *testing.T, field, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="apuntes.pdf"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/summary", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func readFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/apuntes.pdf")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func decodeError(t *testing.T, body io.Reader) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestRootAndHealth(t *testing.T) {
	r := newTestEngine(&fakeStudy{}, 0)

	tests := map[string]string{
		"/":       `{"message":"EdubotKing Backend Running 🚀","status":"ok"}`,
		"/health": `{"status":"UP"}`,
	}
	for path, want := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
		if w.Body.String() != want {
			t.Errorf("%s: expected %s, got %s", path, want, w.Body.String())
		}
	}
}

func TestSummaryHandler(t *testing.T) {
	study := &fakeStudy{summarize: func(context.Context, string) (string, error) { return "Resumen breve.", nil }}
	r := newTestEngine(study, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "pdfFile", "application/pdf", readFixture(t)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp model.SummaryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Summary != "Resumen breve." {
		t.Errorf("unexpected summary %q", resp.Summary)
	}
	if !strings.Contains(study.lastText, "la celula es la unidad basica") {
		t.Errorf("service did not receive the extracted text, got %q", study.lastText)
	}
}

func TestSummaryHandlerRejectsBadUploads(t *testing.T) {
	pdf := readFixture(t)

	tests := []struct {
		name        string
		field       string
		contentType string
		data        []byte
		status      int
		detail      string
	}{
		{name: "declared as text", field: "pdfFile", contentType: "text/plain", data: pdf, status: http.StatusBadRequest, detail: msgNotPDF},
		{name: "bytes are not pdf", field: "pdfFile", contentType: "application/pdf", data: []byte("hola, no soy un pdf"), status: http.StatusBadRequest, detail: msgNotPDF},
		{name: "wrong field", field: "file", contentType: "application/pdf", data: pdf, status: http.StatusBadRequest, detail: msgMissingFile},
		{name: "too large", field: "pdfFile", contentType: "application/pdf", data: bytes.Repeat(pdf, 200), status: http.StatusRequestEntityTooLarge, detail: msgUploadTooLarge},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			study := &fakeStudy{}
			r := newTestEngine(study, 64<<10)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, uploadRequest(t, test.field, test.contentType, test.data))

			if w.Code != test.status {
				t.Fatalf("expected %d, got %d: %s", test.status, w.Code, w.Body.String())
			}
			if resp := decodeError(t, w.Body); resp.Detail != test.detail {
				t.Errorf("expected detail %q, got %q", test.detail, resp.Detail)
			}
			if study.summarized != 0 {
				t.Error("service must not be called for a rejected upload")
			}
		})
	}
}

func TestSummaryHandlerMapsServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{name: "too short", err: apperr.New(apperr.KindValidation, "corto"), status: http.StatusBadRequest, kind: "validation_error"},
		{name: "upstream forbidden", err: apperr.Upstream(http.StatusForbidden, "Error en la API de Gemini: denied"), status: http.StatusForbidden, kind: "upstream_error"},
		{name: "exhausted", err: apperr.New(apperr.KindExhausted, "agotado"), status: http.StatusInternalServerError, kind: "retries_exhausted"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			study := &fakeStudy{summarize: func(context.Context, string) (string, error) { return "", test.err }}
			r := newTestEngine(study, 1<<20)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, uploadRequest(t, "pdfFile", "application/pdf", readFixture(t)))

			if w.Code != test.status {
				t.Fatalf("expected %d, got %d", test.status, w.Code)
			}
			want := model.ErrorResponse{Error: test.kind, Detail: apperr.Message(test.err)}
			if diff := cmp.Diff(want, decodeError(t, w.Body)); diff != "" {
				t.Errorf("error body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQuizHandler(t *testing.T) {
	quiz := []json.RawMessage{
		json.RawMessage(`{"question":"¿Qué es una célula?","options":["A","B","C","D"],"answer":"A","explanation":"Definición básica."}`),
	}
	study := &fakeStudy{quiz: func(context.Context, string) ([]json.RawMessage, error) { return quiz, nil }}
	r := newTestEngine(study, 0)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("/quiz", `{"summaryText":"La célula es la unidad básica."}`))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Quiz []map[string]any `json:"quiz"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []map[string]any{{
		"question":    "¿Qué es una célula?",
		"options":     []any{"A", "B", "C", "D"},
		"answer":      "A",
		"explanation": "Definición básica.",
	}}
	if diff := cmp.Diff(want, resp.Quiz); diff != "" {
		t.Errorf("quiz mismatch (-want +got):\n%s", diff)
	}
	if study.lastText != "La célula es la unidad básica." {
		t.Errorf("unexpected summary passed to service: %q", study.lastText)
	}
}

func TestQuizHandlerRejectsInvalidJSON(t *testing.T) {
	r := newTestEngine(&fakeStudy{}, 0)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("/quiz", `{"summaryText":`))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if resp := decodeError(t, w.Body); resp.Error != "validation_error" || resp.Detail != msgInvalidBody {
		t.Errorf("unexpected error body %+v", resp)
	}
}

func TestAudioHandler(t *testing.T) {
	audio := &model.AudioResult{AudioData: "UklGRg==", MimeType: "audio/L16;codec=pcm;rate=24000"}
	study := &fakeStudy{audio: func(context.Context, string) (*model.AudioResult, error) { return audio, nil }}
	r := newTestEngine(study, 0)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("/audio-summary", `{"summaryText":"Texto para leer."}`))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	want := `{"audioData":"UklGRg==","mimeType":"audio/L16;codec=pcm;rate=24000"}`
	if w.Body.String() != want {
		t.Errorf("expected %s, got %s", want, w.Body.String())
	}
}

func TestAudioHandlerPassesUpstreamStatus(t *testing.T) {
	study := &fakeStudy{audio: func(context.Context, string) (*model.AudioResult, error) {
		return nil, apperr.Upstream(http.StatusNotFound, "Error en la API de Gemini: model not found")
	}}
	r := newTestEngine(study, 0)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest("/audio-summary", `{"summaryText":"Texto"}`))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if resp := decodeError(t, w.Body); resp.Detail != "Error en la API de Gemini: model not found" {
		t.Errorf("unexpected detail %q", resp.Detail)
	}
}
