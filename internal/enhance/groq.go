// Package enhance rewrites outgoing messages with a Groq hosted chat model.
package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"chatmate/internal/schedule"
	logx "chatmate/pkg/logx"
)

const (
	DefaultBaseURL = "https://api.groq.com"
	DefaultModel   = "llama-3.3-70b-versatile"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

type Groq struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

var _ schedule.Enhancer = (*Groq)(nil)

func New(cfg Config, log logx.Logger) (*Groq, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("groq api key is empty")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Groq{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const systemPrompt = "You rewrite short chat messages so they read naturally. " +
	"Keep the original meaning, names, numbers, dates and links. " +
	"Return ONLY the rewritten message text with no explanations, labels or quotes."

func userPrompt(text string, opts schedule.EnhanceOptions) string {
	platform := opts.Platform
	if platform == "" {
		platform = "whatsapp"
	}
	tone := opts.Tone
	if tone == "" {
		tone = "friendly"
	}
	return fmt.Sprintf("Rewrite this %s message in a %s tone. Keep it about as long as the original.\n\nMessage:\n%s", platform, tone, text)
}

// Enhance returns the rewritten text. An empty completion is an error.
func (g *Groq) Enhance(ctx context.Context, text string, opts schedule.EnhanceOptions) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(text, opts)},
		},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/openai/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "groq request")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "groq read")
	}

	var out completionResponse
	decErr := json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decErr == nil && out.Error != nil && out.Error.Message != "" {
			return "", errors.Newf("groq %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", errors.Newf("groq %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if decErr != nil {
		return "", errors.Wrap(decErr, "groq decode")
	}
	if len(out.Choices) == 0 {
		return "", errors.New("groq returned no choices")
	}
	enhanced := clean(out.Choices[0].Message.Content)
	if enhanced == "" {
		return "", errors.New("groq returned empty content")
	}
	g.log.Debug("message enhanced", logx.String("model", g.cfg.Model), logx.Duration("took", time.Since(start)))
	return enhanced, nil
}

var labelPrefix = regexp.MustCompile(`(?i)^(rewritten|enhanced|improved|final)?\s*message\s*:\s*`)

// clean drops a leading label and wrapping quotes models sometimes add.
func clean(s string) string {
	s = strings.TrimSpace(s)
	s = labelPrefix.ReplaceAllString(s, "")
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}
