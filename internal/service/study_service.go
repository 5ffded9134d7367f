package service

import (
	"EdubotKing-Backend/internal/apperr"
	"EdubotKing-Backend/internal/config"
	"EdubotKing-Backend/internal/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

//go:generate mockgen -source=study_service.go -destination=mock_gateway_test.go -package=service

type Gateway interface {
	Call(ctx context.Context, model string, payload any) (gjson.Result, error)
}

const (
	textPath       = "candidates.0.content.parts.0.text"
	inlineDataPath = "candidates.0.content.parts.0.inlineData"
)

// Causes kept apart for logs; callers only ever see msgQuizShape.
var (
	errQuizNoText = errors.New("response has no generated text")
	errQuizJSON   = errors.New("generated text is not a JSON array of questions")
	errQuizCount  = errors.New("unexpected number of questions")
	errQuizItem   = errors.New("question failed validation")
)

type StudyService struct {
	gateway   Gateway
	textModel string
	ttsModel  string
	voice     string
	validate  *validator.Validate
	log       *slog.Logger
}

func NewStudyService(gateway Gateway, cfg config.GeminiConfig, log *slog.Logger) *StudyService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(answerInOptions, model.QuizQuestion{})
	return &StudyService{
		gateway:   gateway,
		textModel: cfg.TextModel,
		ttsModel:  cfg.TTSModel,
		voice:     cfg.Voice,
		validate:  v,
		log:       log,
	}
}

func answerInOptions(sl validator.StructLevel) {
	q := sl.Current().Interface().(model.QuizQuestion)
	if !slices.Contains(q.Options, q.Answer) {
		sl.ReportError(q.Answer, "Answer", "answer", "answerinoptions", "")
	}
}

func (s *StudyService) Summarize(ctx context.Context, documentText string) (string, error) {
	if utf8.RuneCountInString(strings.TrimSpace(documentText)) < minDocumentChars {
		return "", apperr.New(apperr.KindValidation, msgDocumentTooShort)
	}

	resp, err := s.gateway.Call(ctx, s.textModel, buildSummaryPayload(documentText))
	if err != nil {
		return "", err
	}

	summary, ok := generatedText(resp)
	if !ok {
		s.log.Error("summary response has unexpected shape", "body", truncateRaw(resp.Raw))
		return "", apperr.New(apperr.KindResponseShape, msgSummaryShape)
	}
	return summary, nil
}

// GenerateQuiz asks for exactly QuizQuestionCount questions constrained by
// the quiz response schema. Items are validated against model.QuizQuestion
// but returned as the model wrote them, extra fields included.
func (s *StudyService) GenerateQuiz(ctx context.Context, summary string) ([]json.RawMessage, error) {
	if strings.TrimSpace(summary) == "" {
		return nil, apperr.New(apperr.KindValidation, msgQuizInputRequired)
	}

	resp, err := s.gateway.Call(ctx, s.textModel, buildQuizPayload(summary))
	if err != nil {
		return nil, err
	}

	quiz, err := s.parseQuiz(resp)
	if err != nil {
		s.log.Warn("quiz response rejected", "reason", err, "body", truncateRaw(resp.Raw))
		return nil, apperr.Wrap(apperr.KindResponseShape, msgQuizShape, err)
	}
	return quiz, nil
}

func (s *StudyService) parseQuiz(resp gjson.Result) ([]json.RawMessage, error) {
	text, ok := generatedText(resp)
	if !ok {
		return nil, errQuizNoText
	}

	var quiz []json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &quiz); err != nil {
		return nil, fmt.Errorf("%w: %v", errQuizJSON, err)
	}
	if len(quiz) != QuizQuestionCount {
		return nil, fmt.Errorf("%w: want %d, got %d", errQuizCount, QuizQuestionCount, len(quiz))
	}
	for i, raw := range quiz {
		var q model.QuizQuestion
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", errQuizItem, i+1, err)
		}
		if err := s.validate.Struct(q); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", errQuizItem, i+1, err)
		}
	}
	return quiz, nil
}

// SynthesizeAudio reads summary aloud with the configured prebuilt voice.
// The base64 audio is returned exactly as Gemini sent it.
func (s *StudyService) SynthesizeAudio(ctx context.Context, summary string) (*model.AudioResult, error) {
	if strings.TrimSpace(summary) == "" {
		return nil, apperr.New(apperr.KindValidation, msgAudioInputRequired)
	}

	resp, err := s.gateway.Call(ctx, s.ttsModel, buildAudioPayload(summary, s.voice))
	if err != nil {
		return nil, err
	}

	inline := resp.Get(inlineDataPath)
	data, mimeType := inline.Get("data"), inline.Get("mimeType")
	if !inline.IsObject() || data.Type != gjson.String || mimeType.Type != gjson.String {
		s.log.Error("audio response has unexpected shape", "body", truncateRaw(resp.Raw))
		return nil, apperr.New(apperr.KindResponseShape, msgAudioShape)
	}
	return &model.AudioResult{AudioData: data.Str, MimeType: mimeType.Str}, nil
}

func generatedText(resp gjson.Result) (string, bool) {
	r := resp.Get(textPath)
	if r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncateRaw(raw string) string {
	if len(raw) <= 500 {
		return raw
	}
	return raw[:500] + "..."
}
