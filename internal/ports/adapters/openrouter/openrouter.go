package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/types"
)

const (
	defaultModel   = "anthropic/claude-3.5-sonnet"
	requestTimeout = 60 * time.Second
	maxTextRunes   = 4000
)

// Analyzer asks an OpenRouter chat model for the polarity and subjectivity
// of a piece of transcript text.
type Analyzer struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
	log     logrus.FieldLogger
}

func New(apiKey, model, baseURL string, log logrus.FieldLogger) *Analyzer {
	if model == "" {
		model = defaultModel
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Analyzer{
		key:     apiKey,
		model:   model,
		baseURL: normalizeBaseURL(baseURL),
		client:  &http.Client{Timeout: 2 * requestTimeout},
		log:     log.WithField("component", "openrouter"),
	}
}

func (a *Analyzer) Analyze(ctx context.Context, text string) (types.Sentiment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Sentiment{}, nil
	}

	start := time.Now()
	s, err := a.complete(ctx, text)
	log := a.log.WithFields(logrus.Fields{"model": a.model, "elapsed_ms": time.Since(start).Milliseconds()})
	if err != nil {
		log.WithError(err).Warn("sentiment request failed")
		return types.Sentiment{}, err
	}
	log.Debug("sentiment scored")
	return s, nil
}

func (a *Analyzer) complete(ctx context.Context, text string) (types.Sentiment, error) {
	body, err := json.Marshal(a.buildRequest(truncate(text, maxTextRunes)))
	if err != nil {
		return types.Sentiment{}, fmt.Errorf("marshal request: %w", err)
	}
	url := a.baseURL + "/api/v1/chat/completions"

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.Sentiment{}, err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return types.Sentiment{}, fmt.Errorf("openrouter timeout after %s (model=%s)", requestTimeout, a.model)
		}
		return types.Sentiment{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return types.Sentiment{}, fmt.Errorf("openrouter status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return types.Sentiment{}, fmt.Errorf("openrouter status %d: %s", resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return types.Sentiment{}, fmt.Errorf("decode openrouter response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return types.Sentiment{}, errors.New("openrouter: no choices in response")
	}
	content, err := messageContentToString(raw.Choices[0].Message.Content)
	if err != nil {
		return types.Sentiment{}, err
	}
	return parseSentiment(content)
}

func (a *Analyzer) buildRequest(text string) map[string]any {
	return map[string]any{
		"model":       a.model,
		"stream":      false,
		"temperature": 0,
		"messages": []map[string]any{
			{"role": "user", "content": buildPrompt(text)},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "clipforge_sentiment",
				"strict": true,
				"schema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"polarity":     map[string]any{"type": "number", "minimum": -1, "maximum": 1},
						"subjectivity": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					},
					"required":             []string{"polarity", "subjectivity"},
					"additionalProperties": false,
				},
			},
		},
	}
}

func buildPrompt(text string) string {
	return "Rate the sentiment of the transcript excerpt below. " +
		"Return strictly valid JSON (no markdown, no code fences) matching the provided schema. " +
		"polarity is in [-1, 1], where -1 is very negative, 0 is neutral and 1 is very positive. " +
		"subjectivity is in [0, 1], where 0 is purely factual and 1 is purely opinion or emotion." +
		"\n\nExcerpt:\n" + text
}

func parseSentiment(content string) (types.Sentiment, error) {
	clean, err := extractJSONObject(content)
	if err != nil {
		return types.Sentiment{}, err
	}
	var out struct {
		Polarity     *float64 `json:"polarity"`
		Subjectivity *float64 `json:"subjectivity"`
	}
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return types.Sentiment{}, fmt.Errorf("openrouter: decode sentiment: %w", err)
	}
	if out.Polarity == nil || out.Subjectivity == nil {
		return types.Sentiment{}, fmt.Errorf("openrouter: sentiment fields missing in %q", truncate(clean, 200))
	}
	return types.Sentiment{
		Polarity:     clampFinite(*out.Polarity, -1, 1),
		Subjectivity: clampFinite(*out.Subjectivity, 0, 1),
	}, nil
}

func clampFinite(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(hi, v))
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}

func extractJSONObject(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("openrouter: empty content")
	}

	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		return t[start : end+1], nil
	}
	return "", fmt.Errorf("openrouter: could not locate JSON object in: %q", truncate(t, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
