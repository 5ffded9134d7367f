package api

import (
	"EdubotKing-Backend/internal/apperr"
	"EdubotKing-Backend/internal/extractor"
	"EdubotKing-Backend/internal/middleware"
	"EdubotKing-Backend/internal/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

const pdfFormField = "pdfFile"

const (
	msgNotPDF         = "El archivo debe ser un PDF."
	msgMissingFile    = "No se recibió ningún archivo PDF en el campo pdfFile."
	msgUploadTooLarge = "El archivo PDF excede el tamaño máximo permitido."
	msgInvalidBody    = "El cuerpo de la solicitud debe ser JSON con el campo summaryText."
)

type StudyService interface {
	Summarize(ctx context.Context, documentText string) (string, error)
	GenerateQuiz(ctx context.Context, summary string) ([]json.RawMessage, error)
	SynthesizeAudio(ctx context.Context, summary string) (*model.AudioResult, error)
}

type StudyHandler struct {
	study          StudyService
	maxUploadBytes int64
	log            *slog.Logger
}

func NewStudyHandler(study StudyService, maxUploadBytes int64, log *slog.Logger) *StudyHandler {
	return &StudyHandler{study: study, maxUploadBytes: maxUploadBytes, log: log}
}

func (h *StudyHandler) handleError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.Request.URL.Path, "request_id", middleware.GetRequestID(c), "error", err)
	}
	c.JSON(status, model.ErrorResponse{
		Error:  apperr.KindOf(err).String(),
		Detail: apperr.Message(err),
	})
}

func (h *StudyHandler) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "EdubotKing Backend Running 🚀"})
}

func (h *StudyHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *StudyHandler) SummaryHandler(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		if c.Request.ContentLength > h.maxUploadBytes {
			h.uploadTooLarge(c, fmt.Errorf("content length %d over limit", c.Request.ContentLength))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	data, err := h.readPDF(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.uploadTooLarge(c, err)
			return
		}
		h.handleError(c, err)
		return
	}

	text, err := extractor.ExtractPDFText(data)
	if err != nil {
		h.handleError(c, err)
		return
	}

	summary, err := h.study.Summarize(c.Request.Context(), text)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SummaryResponse{Summary: summary})
}

func (h *StudyHandler) uploadTooLarge(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{Error: "upload_too_large", Detail: msgUploadTooLarge})
}

func (h *StudyHandler) readPDF(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile(pdfFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindValidation, msgMissingFile, err)
	}

	mediaType, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if err != nil || mediaType != extractor.PDFMimeType {
		return nil, apperr.New(apperr.KindValidation, msgNotPDF)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, msgMissingFile, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if !extractor.IsPDF(data) {
		return nil, apperr.New(apperr.KindValidation, msgNotPDF)
	}
	return data, nil
}

func (h *StudyHandler) bindText(c *gin.Context) (string, bool) {
	var req model.TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, apperr.Wrap(apperr.KindValidation, msgInvalidBody, err))
		return "", false
	}
	return req.SummaryText, true
}

func (h *StudyHandler) QuizHandler(c *gin.Context) {
	summary, ok := h.bindText(c)
	if !ok {
		return
	}

	quiz, err := h.study.GenerateQuiz(c.Request.Context(), summary)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.QuizResponse{Quiz: quiz})
}

func (h *StudyHandler) AudioHandler(c *gin.Context) {
	summary, ok := h.bindText(c)
	if !ok {
		return
	}

	audio, err := h.study.SynthesizeAudio(c.Request.Context(), summary)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, audio)
}
