package client

import (
	"EdubotKing-Backend/internal/apperr"
	"EdubotKing-Backend/internal/config"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/tidwall/gjson"
)

const (
	msgExhausted       = "Fallo la llamada a la API después de múltiples reintentos."
	msgUnknownUpstream = "Error desconocido de la API de Gemini"
	msgInvalidJSON     = "La API de Gemini devolvió una respuesta que no es JSON."
)

type GeminiClient struct {
	BaseURL     string
	APIKey      string
	MaxAttempts int
	HTTPClient  *http.Client
	Sleeper     Sleeper
	log         *slog.Logger
}

func NewGeminiClient(cfg config.GeminiConfig, log *slog.Logger) *GeminiClient {
	return &GeminiClient{
		BaseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:      cfg.APIKey,
		MaxAttempts: cfg.MaxAttempts,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		Sleeper: TimerSleeper,
		log:     log,
	}
}

func (c *GeminiClient) endpoint(model string) string {
	return fmt.Sprintf("%s/%s:generateContent?key=%s", c.BaseURL, url.PathEscape(model), url.QueryEscape(c.APIKey))
}

// Call posts payload to model's generateContent endpoint and returns the
// parsed JSON body. 429, 503 and network failures are retried with
// exponential backoff; any other error status fails on the spot.
func (c *GeminiClient) Call(ctx context.Context, model string, payload any) (gjson.Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, apperr.Wrap(apperr.KindInternal, "no se pudo serializar la petición a Gemini", err)
	}
	target := c.endpoint(model)

	state := newRetryState(c.MaxAttempts)
	for {
		result, err := c.attempt(ctx, target, body)
		switch state.record(err) {
		case actionDone:
			if state.attempts > 1 {
				c.log.Info("gemini call recovered", "model", model, "attempts", state.attempts)
			}
			return result, nil
		case actionFail:
			c.log.Error("gemini call failed", "model", model, "attempt", state.attempts, "error", err)
			return gjson.Result{}, err
		case actionGiveUp:
			c.log.Error("gemini call exhausted retries", "model", model, "attempts", state.attempts, "error", err)
			return gjson.Result{}, apperr.Wrap(apperr.KindExhausted, msgExhausted, state.lastErr)
		case actionRetry:
			wait := state.backoff()
			c.log.Warn("gemini attempt failed, retrying",
				"model", model,
				"attempt", state.attempts,
				"max_attempts", state.maxAttempts,
				"status", statusOf(err),
				"backoff", wait,
				"error", err,
			)
			if err := c.Sleeper.Sleep(ctx, wait); err != nil {
				return gjson.Result{}, fmt.Errorf("gemini retry aborted: %w", err)
			}
		}
	}
}

func (c *GeminiClient) attempt(ctx context.Context, target string, body []byte) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, apperr.Wrap(apperr.KindInternal, "no se pudo crear la petición a Gemini", redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return gjson.Result{}, fmt.Errorf("gemini request aborted: %w", ctx.Err())
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.log.Warn("gemini request timed out", "timeout", c.HTTPClient.Timeout.String())
		}
		return gjson.Result{}, &transientError{err: fmt.Errorf("gemini request failed: %w", redact(err))}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, &transientError{status: resp.StatusCode, err: fmt.Errorf("read gemini response: %w", redact(err))}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if !gjson.ValidBytes(data) {
			return gjson.Result{}, apperr.New(apperr.KindResponseShape, msgInvalidJSON)
		}
		return gjson.ParseBytes(data), nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusServiceUnavailable:
		return gjson.Result{}, &transientError{
			status: resp.StatusCode,
			err:    fmt.Errorf("gemini returned %s: %s", resp.Status, upstreamMessage(data)),
		}
	default:
		return gjson.Result{}, apperr.Upstream(resp.StatusCode, "Error en la API de Gemini: "+upstreamMessage(data))
	}
}

// upstreamMessage pulls a readable message out of an error body: the
// error.message field of a Gemini JSON error, or the title of an HTML
// error page served by a proxy in front of the API.
func upstreamMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Type == gjson.String && msg.Str != "" {
		return msg.Str
	}
	if len(body) > 0 && mimetype.Detect(body).Is("text/html") {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err == nil {
			if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
				return title
			}
			if text := strings.Join(strings.Fields(doc.Find("body").Text()), " "); text != "" {
				return truncate(text, 200)
			}
		}
	}
	return msgUnknownUpstream
}

func statusOf(err error) int {
	var t *transientError
	if errors.As(err, &t) {
		return t.status
	}
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// redact drops the request URL from transport errors; it carries the API key.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
